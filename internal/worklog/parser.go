package worklog

import "strings"

const (
	metadataMarker = "---"
	headerMarker   = "###"
	bulletMarker   = "-"
)

// Parse reads a daily log. It never fails: malformed metadata lines are
// skipped, text before the first header is ignored and so is any line in a
// section that is not a bullet.
func Parse(date Date, text string) *Document {
	doc := Empty(date)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	body := lines
	if meta, rest, ok := splitMetadata(lines); ok {
		for _, line := range meta {
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			doc.Meta.Set(key, value)
		}
		body = rest
	}

	current := -1
	for _, line := range body {
		if title, ok := headerTitle(line); ok {
			current = -1
			if title != "" {
				current = doc.sectionIndex(title)
			}
			continue
		}
		if current < 0 {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, bulletMarker) {
			continue
		}
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, bulletMarker))
		doc.Sections[current].Items = append(doc.Sections[current].Items, item)
	}
	return doc
}

// splitMetadata finds a leading "---" block. Without a closing marker the
// whole text is treated as body.
func splitMetadata(lines []string) ([]string, []string, bool) {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start == len(lines) || strings.TrimSpace(lines[start]) != metadataMarker {
		return nil, lines, false
	}
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == metadataMarker {
			return lines[start+1 : i], lines[i+1:], true
		}
	}
	return nil, lines, false
}

// headerTitle matches "### Title". A deeper header such as "####" is not a
// section start.
func headerTitle(line string) (string, bool) {
	if !strings.HasPrefix(line, headerMarker) || len(line) == len(headerMarker) {
		return "", false
	}
	switch line[len(headerMarker)] {
	case ' ', '\t':
		return strings.TrimSpace(line[len(headerMarker):]), true
	}
	return "", false
}
