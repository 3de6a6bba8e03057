package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/codewithboateng/adlint/internal/model"
)

type tuple struct {
	Pattern, Category, Severity, LegalBasis, Suggestion, Description, Group string
	Active                                                                  bool
}

func tuples(rs []model.Rule) []tuple {
	out := make([]tuple, 0, len(rs))
	for _, r := range rs {
		out = append(out, tuple{
			r.Pattern, string(r.Category), string(r.Severity), r.LegalBasis,
			r.Suggestion, r.Description, r.Group, r.Active,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return strings.Join([]string{a.Pattern, a.Category, a.Severity, a.LegalBasis, a.Suggestion, a.Description, a.Group}, "\x00") <
			strings.Join([]string{b.Pattern, b.Category, b.Severity, b.LegalBasis, b.Suggestion, b.Description, b.Group}, "\x00")
	})
	return out
}

var patterns = []string{`치료`, `(최고|최상)`, `100%\s*안전`, `NO\.1`, `타제품보다`, `세계\s*최초`}

func genRule(t *rapid.T) model.Rule {
	text := rapid.StringMatching(`[가-힣a-zA-Z0-9 ,.()%]{0,24}`)
	return model.Rule{
		Pattern:     rapid.SampledFrom(patterns).Draw(t, "pattern"),
		Category:    rapid.SampledFrom(model.Categories).Draw(t, "category"),
		Severity:    rapid.SampledFrom(model.Severities).Draw(t, "severity"),
		LegalBasis:  text.Draw(t, "legal_basis"),
		Suggestion:  text.Draw(t, "suggestion"),
		Active:      rapid.Bool().Draw(t, "active"),
		Description: text.Draw(t, "description"),
		Group:       rapid.SampledFrom([]string{model.GroupDefault, model.GroupCustom, ""}).Draw(t, "group"),
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		_, err := db.Clear()
		require.NoError(rt, err)

		rules := rapid.SliceOfN(rapid.Custom(genRule), 0, 12).Draw(rt, "rules")
		for _, r := range rules {
			_, err := db.Add(r)
			require.NoError(rt, err)
		}
		before, err := db.ListAll()
		require.NoError(rt, err)

		name := rapid.SampledFrom([]string{"backup.json", "backup.yaml"}).Draw(rt, "file")
		path := filepath.Join(dir, name)
		require.NoError(rt, db.Backup(path))

		_, err = db.Clear()
		require.NoError(rt, err)
		n, err := db.Restore(path, true)
		require.NoError(rt, err)
		assert.Equal(rt, len(before), n)

		after, err := db.ListAll()
		require.NoError(rt, err)
		assert.Equal(rt, tuples(before), tuples(after))
	})
}

func TestRestoreIsAllOrNothing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Add(rule(model.CategoryMedicalClaim, model.SeverityHigh, `치료`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"pattern": "최고", "category": "SUPERLATIVE_EXPRESSION", "severity": "MEDIUM", "legal_basis": "", "suggestion": ""},
  {"pattern": "(broken", "category": "MEDICAL_CLAIM", "severity": "HIGH", "legal_basis": "", "suggestion": ""}
]`), 0o644))

	_, err = db.Restore(path, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidPattern)
	assert.Contains(t, err.Error(), "backup record 1")

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing rules untouched")
}

func TestRestoreAppendsWithoutClear(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Add(rule(model.CategoryMedicalClaim, model.SeverityHigh, `치료`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
- pattern: 무해한
  category: SAFETY_MISREPRESENTATION
  severity: HIGH
  legal_basis: 화장품법 제10조
  suggestion: 안전성을 고려했다는 표현으로 변경하세요
- pattern: 최고
  category: SUPERLATIVE_EXPRESSION
  severity: MEDIUM
  legal_basis: ""
  suggestion: ""
  is_active: false
`), 0o644))

	n, err := db.Restore(path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := db.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Active)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("a/b/rules.YAML"))
	assert.Equal(t, FormatYAML, FormatFor("rules.yml"))
	assert.Equal(t, FormatJSON, FormatFor("rules.json"))
	assert.Equal(t, FormatJSON, FormatFor("rules"))
}

func TestEncodeBackupKeepsInactiveFlag(t *testing.T) {
	r := rule(model.CategoryMedicalClaim, model.SeverityHigh, `치료`)
	r.Active = false
	var buf bytes.Buffer
	require.NoError(t, EncodeBackup(&buf, []model.Rule{r}, FormatJSON))
	assert.Contains(t, buf.String(), `"is_active": false`)

	got, err := DecodeBackup(&buf, FormatJSON)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Active)
}
