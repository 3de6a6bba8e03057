package reporting

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codewithboateng/adlint/internal/model"
)

func WriteHTML(outDir string, doc Document) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, doc.ID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := RenderHTML(f, doc); err != nil {
		return "", err
	}
	return path, nil
}

func RenderHTML(w io.Writer, doc Document) error {
	rep := doc.Report
	var b strings.Builder

	fmt.Fprintf(&b, "<!doctype html><html lang='ko'><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(doc.ID))
	b.WriteString("<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} mark{background:#ffe08a} .HIGH{color:#b00020;font-weight:bold} .MEDIUM{color:#a65e00} .LOW{color:#555} pre{white-space:pre-wrap}</style>")
	b.WriteString("</head><body>")

	fmt.Fprintf(&b, "<h1>광고 심의 결과: %s</h1>", html.EscapeString(doc.ID))
	if doc.Source != "" {
		fmt.Fprintf(&b, "<p class='dim'>%s</p>", html.EscapeString(doc.Source))
	}
	fmt.Fprintf(&b, "<p><b>%s</b></p>", html.EscapeString(rep.Summary))
	fmt.Fprintf(&b, "<p>Status: %s &nbsp; Risk: <span class='%s'>%s</span> &nbsp; HIGH=%d MEDIUM=%d LOW=%d &nbsp; <span class='dim'>ruleset v%d</span></p>",
		rep.Status, rep.RiskLevel, rep.RiskLevel,
		rep.SeveritySummary.High, rep.SeveritySummary.Medium, rep.SeveritySummary.Low,
		doc.RulesetVersion)

	b.WriteString("<h2>Text</h2><pre>")
	b.WriteString(highlight(doc.Text, rep.Violations))
	b.WriteString("</pre>")

	if len(rep.Violations) > 0 {
		b.WriteString("<h2>Violations</h2><table><tr><th>#</th><th>Severity</th><th>Category</th><th>Text</th><th>Position</th><th>Context</th><th>Legal basis</th><th>Suggestion</th></tr>")
		for i, v := range rep.Violations {
			fmt.Fprintf(&b, "<tr><td>%d</td><td class='%s'>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				i+1,
				v.Severity, v.Severity.Label(),
				html.EscapeString(v.CategoryLabel),
				html.EscapeString(v.Text),
				v.Position,
				html.EscapeString(v.Context),
				html.EscapeString(v.LegalBasis),
				html.EscapeString(v.Suggestion),
			)
		}
		b.WriteString("</table>")
	} else {
		b.WriteString("<h2>Violations</h2><p class='dim'>No violations.</p>")
	}

	b.WriteString("</body></html>")
	_, err := io.WriteString(w, b.String())
	return err
}

// highlight wraps positioned violations in <mark>. Overlapping spans are
// merged so the markup stays well formed.
func highlight(text string, vs []model.ViolationDetail) string {
	runes := []rune(text)
	marked := make([]bool, len(runes))
	for _, v := range vs {
		if v.Position < 0 {
			continue
		}
		end := min(len(runes), v.Position+len([]rune(v.Text)))
		for i := v.Position; i < end; i++ {
			marked[i] = true
		}
	}
	var b strings.Builder
	open := false
	for i, r := range runes {
		if marked[i] && !open {
			b.WriteString("<mark>")
			open = true
		} else if !marked[i] && open {
			b.WriteString("</mark>")
			open = false
		}
		b.WriteString(html.EscapeString(string(r)))
	}
	if open {
		b.WriteString("</mark>")
	}
	return b.String()
}
