package worklog

import "strings"

// Normalized section keys.
const (
	SectionSummary    = "activity summary"
	SectionAnalysis   = "work analysis"
	SectionCompleted  = "completed tasks"
	SectionInProgress = "in progress"
	SectionLearning   = "research & learning"
	SectionBlockers   = "blockers"
	SectionInsights   = "ai insights"
	SectionPlan       = "tomorrow's plan"
)

// canonicalSections is the published order of the known sections.
var canonicalSections = []struct {
	key   string
	title string
}{
	{SectionSummary, "Activity Summary"},
	{SectionAnalysis, "Work Analysis"},
	{SectionCompleted, "Completed Tasks"},
	{SectionInProgress, "In Progress"},
	{SectionLearning, "Research & Learning"},
	{SectionBlockers, "Blockers"},
	{SectionInsights, "AI Insights"},
	{SectionPlan, "Tomorrow's Plan"},
}

// Bucket is one of the four task categories.
type Bucket string

const (
	BucketCompleted  Bucket = "completed"
	BucketInProgress Bucket = "in-progress"
	BucketLearning   Bucket = "learning"
	BucketBlockers   Bucket = "blocker"
)

// Buckets lists every bucket in intake order.
var Buckets = []Bucket{BucketCompleted, BucketLearning, BucketInProgress, BucketBlockers}

// ParseBucket accepts the external type tags used by clients.
func ParseBucket(tag string) (Bucket, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "completed", "done":
		return BucketCompleted, true
	case "in-progress", "inprogress", "in_progress", "in progress":
		return BucketInProgress, true
	case "learning", "research":
		return BucketLearning, true
	case "blocker", "blockers", "blocked":
		return BucketBlockers, true
	}
	return "", false
}

// SectionKey is the normalized key of the section holding the bucket.
func (b Bucket) SectionKey() (string, bool) {
	switch b {
	case BucketCompleted:
		return SectionCompleted, true
	case BucketInProgress:
		return SectionInProgress, true
	case BucketLearning:
		return SectionLearning, true
	case BucketBlockers:
		return SectionBlockers, true
	}
	return "", false
}

// Classify maps a section title onto a bucket. Rules are checked in order so
// "Completed learning" is a completed section.
func Classify(title string) (Bucket, bool) {
	key := NormalizeKey(title)
	switch {
	case strings.Contains(key, "completed"):
		return BucketCompleted, true
	case strings.Contains(key, "learning"):
		return BucketLearning, true
	case strings.Contains(key, "in progress"):
		return BucketInProgress, true
	case strings.Contains(key, "blocker"):
		return BucketBlockers, true
	}
	return "", false
}

func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// resolveSection returns the key and display title a header maps to.
func resolveSection(name string) (string, string) {
	key := NormalizeKey(name)
	if b, ok := Classify(key); ok {
		key, _ = b.SectionKey()
	}
	if title, ok := canonicalTitle(key); ok {
		return key, title
	}
	return key, strings.TrimSpace(name)
}

func canonicalTitle(key string) (string, bool) {
	for _, s := range canonicalSections {
		if s.key == key {
			return s.title, true
		}
	}
	return "", false
}

func canonicalRank(key string) int {
	for i, s := range canonicalSections {
		if s.key == key {
			return i
		}
	}
	return -1
}
