package worklog

// View is the client-facing projection of a document.
type View struct {
	Date         string        `json:"date"`
	Updated      string        `json:"updated,omitempty"`
	HoursActive  float64       `json:"hoursActive"`
	HoursCoding  float64       `json:"hoursCoding"`
	CommitsToday int           `json:"commitsToday"`
	Projects     []string      `json:"projects"`
	Tags         []string      `json:"tags"`
	Completed    []string      `json:"completed"`
	InProgress   []string      `json:"inProgress"`
	Learning     []string      `json:"learning"`
	Blockers     []string      `json:"blockers"`
	Sections     []SectionView `json:"sections"`
}

type SectionView struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

func NewView(doc *Document) View {
	v := View{
		Date:         doc.Date.String(),
		Updated:      formatUpdated(doc.Meta.Updated),
		HoursActive:  doc.Meta.HoursActive,
		HoursCoding:  doc.Meta.HoursCoding,
		CommitsToday: doc.Meta.CommitsToday,
		Projects:     orEmpty(doc.Meta.ProjectList()),
		Tags:         orEmpty(doc.Meta.TagList()),
		Completed:    orEmpty(doc.BucketItems(BucketCompleted)),
		InProgress:   orEmpty(doc.BucketItems(BucketInProgress)),
		Learning:     orEmpty(doc.BucketItems(BucketLearning)),
		Blockers:     orEmpty(doc.BucketItems(BucketBlockers)),
		Sections:     []SectionView{},
	}
	for _, s := range doc.ordered() {
		if len(s.Items) == 0 {
			continue
		}
		v.Sections = append(v.Sections, SectionView{Title: s.Title, Items: append([]string(nil), s.Items...)})
	}
	return v
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
