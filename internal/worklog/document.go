package worklog

import "time"

// Section is an ordered list of items under a "### Title" header.
type Section struct {
	Key   string
	Title string
	Items []string
}

// Document is the in-memory form of one daily log.
type Document struct {
	Date     Date
	Meta     Metadata
	Sections []Section
}

func Empty(date Date) *Document {
	return &Document{Date: date, Meta: DefaultMetadata()}
}

// FromFields builds a document from loose parts. Section names are resolved
// the same way parsed headers are, so "Completed" lands in completed tasks.
func FromFields(date Date, meta Metadata, sections ...Section) *Document {
	doc := &Document{Date: date, Meta: meta.clone()}
	for _, s := range sections {
		name := s.Title
		if name == "" {
			name = s.Key
		}
		i := doc.sectionIndex(name)
		if i < 0 {
			continue
		}
		doc.Sections[i].Items = append(doc.Sections[i].Items, s.Items...)
	}
	return doc
}

// Section returns a copy of the named section.
func (d *Document) Section(name string) (Section, bool) {
	key, _ := resolveSection(name)
	for _, s := range d.Sections {
		if s.Key == key {
			s.Items = append([]string(nil), s.Items...)
			return s, true
		}
	}
	return Section{}, false
}

// Items returns the items of the named section, or nil.
func (d *Document) Items(name string) []string {
	s, _ := d.Section(name)
	return s.Items
}

// BucketItems returns the items of a task bucket.
func (d *Document) BucketItems(b Bucket) []string {
	key, ok := b.SectionKey()
	if !ok {
		return nil
	}
	return d.Items(key)
}

func (d *Document) Updated() time.Time {
	return d.Meta.Updated
}

// IsEmpty reports whether the document would render with default metadata
// and no sections.
func (d *Document) IsEmpty() bool {
	if !d.Meta.isDefault() {
		return false
	}
	for _, s := range d.Sections {
		if len(s.Items) > 0 {
			return false
		}
	}
	return true
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Date: d.Date, Meta: d.Meta.clone()}
	if d.Sections != nil {
		out.Sections = make([]Section, len(d.Sections))
		for i, s := range d.Sections {
			s.Items = append([]string(nil), s.Items...)
			out.Sections[i] = s
		}
	}
	return out
}

// Equal compares content that reaches the published file, ignoring the
// updated timestamp. Empty sections never render and are skipped.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Date != o.Date || !d.Meta.equal(o.Meta) {
		return false
	}
	a, b := nonEmpty(d.ordered()), nonEmpty(o.ordered())
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Title != b[i].Title || len(a[i].Items) != len(b[i].Items) {
			return false
		}
		for j := range a[i].Items {
			if a[i].Items[j] != b[i].Items[j] {
				return false
			}
		}
	}
	return true
}

// ordered returns the sections in published order: canonical ones first,
// then the rest as they were inserted.
func (d *Document) ordered() []Section {
	out := make([]Section, 0, len(d.Sections))
	for _, c := range canonicalSections {
		for _, s := range d.Sections {
			if s.Key == c.key {
				out = append(out, s)
			}
		}
	}
	for _, s := range d.Sections {
		if canonicalRank(s.Key) < 0 {
			out = append(out, s)
		}
	}
	return out
}

// sectionIndex finds or creates the section a header maps to.
func (d *Document) sectionIndex(name string) int {
	key, title := resolveSection(name)
	if key == "" {
		return -1
	}
	for i, s := range d.Sections {
		if s.Key == key {
			return i
		}
	}
	d.Sections = append(d.Sections, Section{Key: key, Title: title})
	return len(d.Sections) - 1
}

func (d *Document) appendItems(name string, items ...string) {
	if len(items) == 0 {
		return
	}
	i := d.sectionIndex(name)
	if i < 0 {
		return
	}
	d.Sections[i].Items = append(d.Sections[i].Items, items...)
}

func (d *Document) replaceItems(name string, items []string) {
	i := d.sectionIndex(name)
	if i < 0 {
		return
	}
	d.Sections[i].Items = append([]string(nil), items...)
}

func nonEmpty(sections []Section) []Section {
	var out []Section
	for _, s := range sections {
		if len(s.Items) > 0 {
			out = append(out, s)
		}
	}
	return out
}
