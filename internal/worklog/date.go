package worklog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date identifies one daily log (YYYY-MM-DD, local calendar).
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return string(d)
}

// Time returns local midnight of the day.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RelPath is the document location below the logs root: YYYY/MM/YYYY-MM-DD.md.
func (d Date) RelPath() string {
	s := string(d)
	if len(s) != len(dateLayout) {
		return s + ".md"
	}
	return filepath.Join(s[:4], s[5:7], s+".md")
}
