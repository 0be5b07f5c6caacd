package worklog

import (
	"strconv"
	"strings"
	"time"
)

// Generate merges updates into doc, stamps it and renders the result.
func Generate(doc *Document, now time.Time, updates ...Update) string {
	merged, _ := Merge(doc, now, updates...)
	return Render(Stamp(merged, now))
}

// Stamp returns a copy with updated set to now, unless the stored value is
// already later.
func Stamp(doc *Document, now time.Time) *Document {
	out := doc.Clone()
	if out.Meta.Updated.After(now) {
		return out
	}
	out.Meta.Updated = now
	return out
}

// Render writes doc in the published text format. It is a pure function of
// its input; empty sections are omitted.
func Render(doc *Document) string {
	var b strings.Builder

	b.WriteString(metadataMarker + "\n")
	writeField(&b, FieldDate, doc.Date.String())
	writeField(&b, FieldUpdated, formatUpdated(doc.Meta.Updated))
	writeField(&b, FieldHoursActive, formatFloat(doc.Meta.HoursActive))
	writeField(&b, FieldHoursCoding, formatFloat(doc.Meta.HoursCoding))
	writeField(&b, FieldCommitsToday, strconv.Itoa(doc.Meta.CommitsToday))
	writeField(&b, FieldProjects, listOrEmpty(doc.Meta.Projects))
	writeField(&b, FieldTags, listOrEmpty(doc.Meta.Tags))
	for _, f := range doc.Meta.Extra {
		writeField(&b, f.Key, f.Value)
	}
	b.WriteString(metadataMarker + "\n\n")

	for _, s := range doc.ordered() {
		if len(s.Items) == 0 {
			continue
		}
		b.WriteString(headerMarker + " " + s.Title + "\n\n")
		for _, item := range s.Items {
			b.WriteString(bulletMarker + " " + item + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
