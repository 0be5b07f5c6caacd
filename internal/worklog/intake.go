package worklog

import "time"

// Intake is a batch of manual tasks grouped by bucket, the shape clients
// submit in one request.
type Intake struct {
	Completed  []string `json:"completed"`
	Learning   []string `json:"learning"`
	InProgress []string `json:"inProgress"`
	Blockers   []string `json:"blockers"`
}

// QuickAdds expands the batch in bucket order, skipping blank entries.
func (in Intake) QuickAdds(at time.Time) []QuickAdd {
	var out []QuickAdd
	for _, b := range Buckets {
		for _, desc := range in.items(b) {
			if singleLine(desc) == "" {
				continue
			}
			out = append(out, QuickAdd{Bucket: b, Description: desc, At: at})
		}
	}
	return out
}

func (in Intake) items(b Bucket) []string {
	switch b {
	case BucketCompleted:
		return in.Completed
	case BucketLearning:
		return in.Learning
	case BucketInProgress:
		return in.InProgress
	case BucketBlockers:
		return in.Blockers
	}
	return nil
}
