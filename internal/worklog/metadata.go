package worklog

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recognized metadata keys.
const (
	FieldDate         = "date"
	FieldUpdated      = "updated"
	FieldHoursActive  = "hours_active"
	FieldHoursCoding  = "hours_coding"
	FieldCommitsToday = "commits_today"
	FieldProjects     = "projects"
	FieldTags         = "tags"
)

const (
	updatedLayout = "2006-01-02T15:04:05.000Z07:00"
	emptyList     = "[]"
)

// Field is a metadata key the document model does not interpret.
type Field struct {
	Key   string
	Value string
}

// Metadata is the typed header of a daily log. Projects and Tags keep the raw
// list text as read from disk; use ProjectList/TagList to decode them.
type Metadata struct {
	Updated      time.Time
	HoursActive  float64
	HoursCoding  float64
	CommitsToday int
	Projects     string
	Tags         string
	Extra        []Field
}

func DefaultMetadata() Metadata {
	return Metadata{Projects: emptyList, Tags: emptyList}
}

func (m Metadata) ProjectList() []string { return decodeList(m.Projects) }
func (m Metadata) TagList() []string     { return decodeList(m.Tags) }

func (m *Metadata) SetProjects(items []string) { m.Projects = encodeList(items) }
func (m *Metadata) SetTags(items []string)     { m.Tags = encodeList(items) }

// Get returns the rendered value for any key, recognized or extra.
func (m Metadata) Get(key string) (string, bool) {
	switch key {
	case FieldUpdated:
		return formatUpdated(m.Updated), true
	case FieldHoursActive:
		return formatFloat(m.HoursActive), true
	case FieldHoursCoding:
		return formatFloat(m.HoursCoding), true
	case FieldCommitsToday:
		return strconv.Itoa(m.CommitsToday), true
	case FieldProjects:
		return listOrEmpty(m.Projects), true
	case FieldTags:
		return listOrEmpty(m.Tags), true
	}
	for _, f := range m.Extra {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set assigns a raw value. Recognized numeric keys fall back to zero on
// unparseable text; the date key is owned by the document and ignored.
func (m *Metadata) Set(key, value string) {
	key = singleLine(key)
	value = singleLine(value)
	switch key {
	case "", FieldDate:
	case FieldUpdated:
		m.Updated = parseUpdated(value)
	case FieldHoursActive:
		m.HoursActive = parseFloat(value)
	case FieldHoursCoding:
		m.HoursCoding = parseFloat(value)
	case FieldCommitsToday:
		m.CommitsToday = parseInt(value)
	case FieldProjects:
		m.Projects = value
	case FieldTags:
		m.Tags = value
	default:
		for i := range m.Extra {
			if m.Extra[i].Key == key {
				m.Extra[i].Value = value
				return
			}
		}
		m.Extra = append(m.Extra, Field{Key: key, Value: value})
	}
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = append([]Field(nil), m.Extra...)
	}
	return out
}

// equal compares everything except Updated.
func (m Metadata) equal(o Metadata) bool {
	if m.HoursActive != o.HoursActive || m.HoursCoding != o.HoursCoding || m.CommitsToday != o.CommitsToday {
		return false
	}
	if listOrEmpty(m.Projects) != listOrEmpty(o.Projects) || listOrEmpty(m.Tags) != listOrEmpty(o.Tags) {
		return false
	}
	if len(m.Extra) != len(o.Extra) {
		return false
	}
	for i := range m.Extra {
		if m.Extra[i] != o.Extra[i] {
			return false
		}
	}
	return true
}

func (m Metadata) isDefault() bool {
	return m.equal(DefaultMetadata())
}

func decodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == emptyList {
		return nil
	}
	var items []string
	if err := yaml.Unmarshal([]byte(raw), &items); err == nil {
		return compact(items)
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	return compact(strings.Split(raw, ","))
}

func encodeList(items []string) string {
	items = compact(items)
	if len(items) == 0 {
		return emptyList
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// singleLine folds line breaks so a value cannot escape its line when
// rendered.
func singleLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func listOrEmpty(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return emptyList
	}
	return raw
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(updatedLayout)
}

func parseUpdated(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseInt(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return int(parseFloat(s))
}

// Round2 rounds hours to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
