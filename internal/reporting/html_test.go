package reporting

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/adlint/internal/model"
)

func TestHighlight(t *testing.T) {
	vs := []model.ViolationDetail{
		{Text: "최고급", Position: 0},
		{Text: "최고", Position: 0},
		{Text: "<즉시>", Position: 4},
		{Text: "x", Position: -1},
	}
	got := highlight("최고급 <즉시> 끝", vs)
	assert.Equal(t, "<mark>최고급</mark> <mark>&lt;즉시&gt;</mark> 끝", got)
}

func TestHighlightClampsToText(t *testing.T) {
	got := highlight("치료", []model.ViolationDetail{{Text: "치료제", Position: 1}})
	assert.Equal(t, "치<mark>료</mark>", got)
}

func TestWriteHTML(t *testing.T) {
	d := doc("report-1", "이 크림은 치료 효과",
		viol("치료", model.CategoryMedicalClaim, model.SeverityHigh, 6))
	d.Source = "ads/<1>.txt"

	path, err := WriteHTML(t.TempDir(), d)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)

	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "<mark>치료</mark>")
	assert.Contains(t, out, "ads/&lt;1&gt;.txt")
	assert.Contains(t, out, "의약품적 표현")
	assert.Contains(t, out, "높음")
	assert.Contains(t, out, d.Report.Summary)
}

func TestRenderHTMLPass(t *testing.T) {
	var b strings.Builder
	require.NoError(t, RenderHTML(&b, doc("clean", "순한 크림")))
	assert.Contains(t, b.String(), "No violations.")
	assert.NotContains(t, b.String(), "<mark>")
}
