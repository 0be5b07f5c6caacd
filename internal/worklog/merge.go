package worklog

import (
	"fmt"
	"strings"
	"time"
)

// Update is a change applied to a document by Merge.
type Update interface {
	apply(doc *Document, now time.Time)
}

// QuickAdd appends one timestamped item to a bucket. Repeated quick adds of
// the same text are all kept.
type QuickAdd struct {
	Bucket      Bucket
	Description string
	At          time.Time
}

func (q QuickAdd) apply(doc *Document, now time.Time) {
	key, ok := q.Bucket.SectionKey()
	if !ok {
		return
	}
	text := singleLine(q.Description)
	if text == "" {
		return
	}
	at := q.At
	if at.IsZero() {
		at = now
	}
	doc.appendItems(key, stampItem(at, text))
}

// Commit is one commit discovered in a tracked repository.
type Commit struct {
	Project string `json:"project"`
	Message string `json:"message"`
}

// Item is the completed-task line a commit is recorded as.
func (c Commit) Item() string {
	return fmt.Sprintf("[%s] %s", singleLine(c.Project), singleLine(c.Message))
}

// Task is a manually recorded task waiting to be folded into the log.
type Task struct {
	ID      string
	Bucket  Bucket
	Content string
	At      time.Time
}

// Usage is time spent in one application or on one site.
type Usage struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// ActivitySummary aggregates a day of activity tracking.
type ActivitySummary struct {
	ActiveHours float64 `json:"activeHours"`
	AFKHours    float64 `json:"afkHours"`
	TopApps     []Usage `json:"topApps"`
	TopWebsites []Usage `json:"topWebsites"`
	TotalEvents int     `json:"totalEvents"`
}

// Lines renders the summary as activity summary items.
func (s ActivitySummary) Lines() []string {
	lines := []string{
		fmt.Sprintf("Active time: %.2fh", s.ActiveHours),
		fmt.Sprintf("AFK time: %.2fh", s.AFKHours),
	}
	if len(s.TopApps) > 0 {
		lines = append(lines, "Top apps: "+usageList(s.TopApps))
	}
	if len(s.TopWebsites) > 0 {
		lines = append(lines, "Top websites: "+usageList(s.TopWebsites))
	}
	return lines
}

// Snapshot is one collection run's worth of data.
type Snapshot struct {
	Commits []Commit
	Tasks   []Task
	Summary *ActivitySummary
}

// apply dedups commits on the rendered "[project] message" item, so the same
// message in two repositories counts twice and a rerun counts nothing.
func (s Snapshot) apply(doc *Document, now time.Time) {
	seen := make(map[string]bool)
	for _, item := range doc.Items(SectionCompleted) {
		seen[item] = true
	}
	var added []string
	projects := doc.Meta.ProjectList()
	for _, c := range s.Commits {
		item := c.Item()
		if seen[item] {
			continue
		}
		seen[item] = true
		added = append(added, item)
		projects = union(projects, singleLine(c.Project))
	}
	if len(added) > 0 {
		doc.appendItems(SectionCompleted, added...)
		doc.Meta.CommitsToday += len(added)
		doc.Meta.SetProjects(projects)
	}

	for _, t := range s.Tasks {
		QuickAdd{Bucket: t.Bucket, Description: t.Content, At: t.At}.apply(doc, now)
	}

	if s.Summary != nil {
		doc.Meta.HoursActive = Round2(s.Summary.ActiveHours)
		doc.replaceItems(SectionSummary, s.Summary.Lines())
	}
}

// Analysis is the structured result of a model pass over the day.
type Analysis struct {
	HoursActive  float64
	HoursCoding  float64
	Extra        []Field
	Projects     []string
	Tags         []string
	WorkAnalysis []string
	Completed    []string
	InProgress   []string
	Learning     []string
	Blockers     []string
	Insights     []string
	Plan         []string
}

func (a Analysis) apply(doc *Document, _ time.Time) {
	if a.HoursActive > 0 {
		doc.Meta.HoursActive = Round2(a.HoursActive)
	}
	if a.HoursCoding > 0 {
		doc.Meta.HoursCoding = Round2(a.HoursCoding)
	}
	for _, f := range a.Extra {
		doc.Meta.Set(f.Key, f.Value)
	}
	if len(a.Projects) > 0 {
		doc.Meta.SetProjects(union(doc.Meta.ProjectList(), a.Projects...))
	}
	if len(a.Tags) > 0 {
		doc.Meta.SetTags(union(doc.Meta.TagList(), a.Tags...))
	}

	replaceIfAny(doc, SectionAnalysis, a.WorkAnalysis)
	replaceIfAny(doc, SectionInsights, a.Insights)
	replaceIfAny(doc, SectionPlan, a.Plan)

	appendNew(doc, SectionCompleted, a.Completed)
	appendNew(doc, SectionInProgress, a.InProgress)
	appendNew(doc, SectionLearning, a.Learning)
	appendNew(doc, SectionBlockers, a.Blockers)
}

// Merge applies updates in order to a copy of existing, or to an empty
// document for now's date when existing is nil. The flag reports whether the
// result differs from the input in anything but the updated timestamp.
func Merge(existing *Document, now time.Time, updates ...Update) (*Document, bool) {
	base := existing
	if base == nil {
		base = Empty(DateOf(now))
	}
	merged := base.Clone()
	for _, u := range updates {
		if u != nil {
			u.apply(merged, now)
		}
	}
	return merged, !merged.Equal(base)
}

func stampItem(at time.Time, text string) string {
	return "[" + at.Format("15:04") + "] " + text
}

func replaceIfAny(doc *Document, key string, items []string) {
	items = cleanItems(items)
	if len(items) == 0 {
		return
	}
	doc.replaceItems(key, items)
}

func appendNew(doc *Document, key string, items []string) {
	seen := make(map[string]bool)
	for _, item := range doc.Items(key) {
		seen[item] = true
	}
	var added []string
	for _, item := range cleanItems(items) {
		if seen[item] {
			continue
		}
		seen[item] = true
		added = append(added, item)
	}
	doc.appendItems(key, added...)
}

func cleanItems(items []string) []string {
	var out []string
	for _, item := range items {
		if item = singleLine(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func union(list []string, items ...string) []string {
	out := append([]string(nil), list...)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out
}

func usageList(usage []Usage) string {
	parts := make([]string, 0, len(usage))
	for _, u := range usage {
		parts = append(parts, fmt.Sprintf("%s (%dm)", u.Name, int(u.Seconds/60+0.5)))
	}
	return strings.Join(parts, ", ")
}
