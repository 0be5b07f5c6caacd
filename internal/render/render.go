// Package render turns a daily log into HTML for the browser and the CLI.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Markdown is the log as plain markdown: a title, a metadata table and the
// sections. The metadata block of the file format is not markdown, so it is
// replaced by the table.
func Markdown(doc *worklog.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Work Log %s\n\n", doc.Date)

	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, key := range []string{
		worklog.FieldUpdated, worklog.FieldHoursActive, worklog.FieldHoursCoding,
		worklog.FieldCommitsToday, worklog.FieldProjects, worklog.FieldTags,
	} {
		if v, ok := doc.Meta.Get(key); ok && v != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", key, escapeCell(v))
		}
	}
	for _, f := range doc.Meta.Extra {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(f.Key), escapeCell(f.Value))
	}
	b.WriteString("\n")

	text := worklog.Render(doc)
	if i := strings.Index(text, "\n---\n"); i >= 0 {
		text = text[i+len("\n---\n"):]
	}
	b.WriteString(strings.TrimLeft(text, "\n"))
	return b.String()
}

// HTML renders the log as an HTML fragment.
func HTML(doc *worklog.Document) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(doc)), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Work Log %s</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 0.25rem 0.75rem; text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`

// Page wraps HTML in a standalone document.
func Page(doc *worklog.Document) (string, error) {
	body, err := HTML(doc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(pageTemplate, html.EscapeString(doc.Date.String()), body), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
