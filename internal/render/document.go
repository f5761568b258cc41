// Package render turns a resolved sheet into a PDF by writing a Markdown
// document and handing it to an external document compiler.
package render

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/roSievers/worksheet-elm/internal/sheet"
)

// Markdown serializes s into the intermediate document: a metadata block with
// the sheet title, then one "# title" heading plus body per exercise, in
// order, blocks separated by a blank line.
func Markdown(s *sheet.ResolvedSheet) []byte {
	var b bytes.Buffer
	// a JSON string is a valid YAML scalar and escapes quotes and newlines
	title, _ := json.Marshal(s.Title)
	b.WriteString("---\ntitle: ")
	b.Write(title)
	b.WriteString("\n---\n")

	for _, e := range s.Exercises {
		b.WriteString("\n# ")
		b.WriteString(heading(e.Title))
		b.WriteString("\n\n")
		body := strings.TrimRight(e.Text, "\n")
		if body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
	}
	return b.Bytes()
}

// heading keeps a title on one line so it stays a single ATX heading.
func heading(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
