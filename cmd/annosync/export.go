// ABOUTME: HTML report export for annotation collections
// ABOUTME: Renders markdown comments through goldmark into a standalone page

package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/annosync/internal/annotation"
	"github.com/2389/annosync/internal/source"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// cmdExport downloads a backend and writes an HTML report.
func (a *app) cmdExport(args []string) error {
	name := ""
	out := a.prefs.Output.ExportPath

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--out":
			if i+1 < len(args) {
				out = args[i+1]
				i++
			}
		default:
			name = args[i]
		}
	}

	s, err := a.source(name)
	if err != nil {
		return err
	}
	result, err := s.DownloadChunk(context.Background(), source.ChunkOptions{})
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}

	page, err := renderReport(s.Endpoint().Name, result.Annotations)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := os.WriteFile(out, page, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Exported %d annotations to %s\n", len(result.Annotations), out)
	return nil
}

// renderReport builds the report page. Comments are markdown and pass
// through goldmark; every other field is escaped verbatim.
func renderReport(backend string, anns []annotation.Annotation) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	buf.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>Annotations: %s</title>\n", html.EscapeString(backend))
	buf.WriteString(`<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 60em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
.checked { color: #2a7; }
.comment p { margin: 0.2em 0; }
</style>
`)
	buf.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", html.EscapeString(backend))
	fmt.Fprintf(&buf, "<p>%d annotations, exported %s</p>\n",
		len(anns), time.Now().Format(time.RFC3339))

	buf.WriteString("<table>\n<tr><th>Key</th><th>Kind</th><th>User</th><th>Status</th><th>Title</th><th>Comment</th></tr>\n")
	for _, ann := range anns {
		buf.WriteString("<tr>")
		fmt.Fprintf(&buf, "<td><code>%s</code></td>", html.EscapeString(ann.Key))
		fmt.Fprintf(&buf, "<td>%s</td>", html.EscapeString(ann.Kind))
		fmt.Fprintf(&buf, "<td>%s</td>", html.EscapeString(ann.User()))
		if ann.Checked() {
			buf.WriteString(`<td class="checked">checked</td>`)
		} else {
			buf.WriteString("<td></td>")
		}
		fmt.Fprintf(&buf, "<td>%s</td>", html.EscapeString(ann.Title()))

		buf.WriteString(`<td class="comment">`)
		if comment := ann.Comment(); comment != "" {
			if err := markdown.Convert([]byte(comment), &buf); err != nil {
				return nil, fmt.Errorf("converting comment for %s: %w", ann.Key, err)
			}
		}
		buf.WriteString("</td></tr>\n")
	}
	buf.WriteString("</table>\n</body>\n</html>\n")

	return buf.Bytes(), nil
}
