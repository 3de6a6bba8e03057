package rules

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/codewithboateng/adlint/internal/model"
)

func builtinRuleset() *Ruleset { return NewRuleset(Builtin(), 1) }

func r(cat model.Category, sev model.Severity, pattern string) model.Rule {
	return model.Rule{Pattern: pattern, Category: cat, Severity: sev, LegalBasis: "법", Suggestion: "제안", Active: true}
}

func TestScanSafetyScenario(t *testing.T) {
	e := NewEngine(nil)
	vs, err := e.Scan(builtinRuleset(), "이 제품은 100% 안전하며 부작용이 없습니다")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	for _, v := range vs {
		assert.Equal(t, model.CategorySafetyMisrepresentation, v.Category)
		assert.Equal(t, model.SeverityHigh, v.Severity)
	}
	assert.Equal(t, "100% 안전", vs[0].Text)
	assert.Equal(t, 6, vs[0].Position)
	assert.Equal(t, "부작용이 없", vs[1].Text)
	assert.Equal(t, 16, vs[1].Position)
}

func TestScanGentleCopyPasses(t *testing.T) {
	vs, err := NewEngine(nil).Scan(builtinRuleset(), "피부에 자극없이 순하게 사용하세요")
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestScanEmptyText(t *testing.T) {
	vs, err := NewEngine(nil).Scan(builtinRuleset(), "")
	require.NoError(t, err)
	assert.NotNil(t, vs)
	assert.Empty(t, vs)
}

func TestScanWithoutRuleset(t *testing.T) {
	_, err := NewEngine(nil).Scan(nil, "치료")
	assert.ErrorIs(t, err, model.ErrNoRuleset)
}

func TestScanDeduplicatesWithinCategory(t *testing.T) {
	rs := NewRuleset([]model.Rule{
		r(model.CategoryMedicalClaim, model.SeverityHigh, `치료`),
		r(model.CategoryMedicalClaim, model.SeverityMedium, `치료|완치`),
		r(model.CategoryExaggeratedEffect, model.SeverityLow, `치료`),
	}, 1)
	vs, err := NewEngine(nil).Scan(rs, "여드름 치료 크림")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, model.CategoryMedicalClaim, vs[0].Category)
	assert.Equal(t, model.SeverityHigh, vs[0].Severity, "first rule in evaluation order wins")
	assert.Equal(t, model.CategoryExaggeratedEffect, vs[1].Category)
	assert.Equal(t, vs[0].Position, vs[1].Position)
}

func TestScanKeepsContainedMatches(t *testing.T) {
	rs := NewRuleset([]model.Rule{
		r(model.CategorySuperlativeExpression, model.SeverityMedium, `최고`),
		r(model.CategorySuperlativeExpression, model.SeverityMedium, `최고급`),
	}, 1)
	vs, err := NewEngine(nil).Scan(rs, "최고급 크림")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.ElementsMatch(t, []string{"최고", "최고급"}, []string{vs[0].Text, vs[1].Text})
}

func TestScanFindsAllOccurrencesCaseInsensitive(t *testing.T) {
	rs := NewRuleset([]model.Rule{r(model.CategorySuperlativeExpression, model.SeverityMedium, `NO\.1`)}, 1)
	vs, err := NewEngine(nil).Scan(rs, "no.1 크림, 진짜 No.1")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "no.1", vs[0].Text)
	assert.Equal(t, 0, vs[0].Position)
	assert.Equal(t, "No.1", vs[1].Text)
	assert.Equal(t, 12, vs[1].Position)
}

func TestScanSkipsBrokenRule(t *testing.T) {
	rs := NewRuleset([]model.Rule{
		r(model.CategoryMedicalClaim, model.SeverityHigh, `(치료`),
		r(model.CategoryMedicalClaim, model.SeverityHigh, `병원`),
	}, 1)
	require.Equal(t, 2, rs.Len())
	vs, err := NewEngine(nil).Scan(rs, "병원에서 치료")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "병원", vs[0].Text)
}

func TestScanSkipsEmptyMatches(t *testing.T) {
	rs := NewRuleset([]model.Rule{r(model.CategoryMedicalClaim, model.SeverityHigh, `x*`)}, 1)
	vs, err := NewEngine(nil).Scan(rs, "abc")
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestNormalizeOrdersUnknownPositionsFirst(t *testing.T) {
	in := []model.Violation{
		{Text: "b", Category: model.CategoryMedicalClaim, Position: 5},
		{Text: "x", Category: model.CategoryMedicalClaim, Position: model.PositionUnknown},
		{Text: "a", Category: model.CategoryMedicalClaim, Position: 1},
		{Text: "y", Category: model.CategoryMedicalClaim, Position: model.PositionUnknown},
		{Text: "a", Category: model.CategoryMedicalClaim, Position: 1},
	}
	out := Normalize(in)
	var got []string
	for _, v := range out {
		got = append(got, v.Text)
	}
	assert.Equal(t, []string{"x", "y", "a", "b"}, got)
}

var vocabulary = []string{"치료", "최고", "100% 안전", "부작용이 없", "즉시", "타제품보다", "NO.1", "크림", " ", "피부", "a", "가", "\n"}

func genText(t *rapid.T) string {
	parts := rapid.SliceOfN(rapid.SampledFrom(vocabulary), 0, 30).Draw(t, "parts")
	return strings.Join(parts, "")
}

func TestScanIsDeterministic(t *testing.T) {
	e := NewEngine(nil)
	rs := builtinRuleset()
	rapid.Check(t, func(rt *rapid.T) {
		text := genText(rt)
		a, err := e.Scan(rs, text)
		require.NoError(rt, err)
		b, err := e.Scan(rs, text)
		require.NoError(rt, err)
		assert.Equal(rt, a, b)
	})
}

func TestScanOutputIsOrderedAndUnique(t *testing.T) {
	e := NewEngine(nil)
	rs := builtinRuleset()
	rapid.Check(t, func(rt *rapid.T) {
		text := genText(rt)
		vs, err := e.Scan(rs, text)
		require.NoError(rt, err)

		runes := []rune(text)
		seen := map[dedupeKey]bool{}
		for i, v := range vs {
			if i > 0 {
				assert.LessOrEqual(rt, vs[i-1].Position, v.Position)
			}
			k := dedupeKey{v.Text, v.Position, v.Category}
			assert.False(rt, seen[k], "duplicate %v", k)
			seen[k] = true

			n := utf8.RuneCountInString(v.Text)
			require.LessOrEqual(rt, v.Position+n, len(runes))
			assert.Equal(rt, v.Text, string(runes[v.Position:v.Position+n]))
		}
	})
}

func FuzzScan(f *testing.F) {
	for _, s := range []string{"", "이 제품은 100% 안전하며 부작용이 없습니다", "최고급 NO.1", "\xff\xfe치료"} {
		f.Add(s)
	}
	e := NewEngine(nil)
	rs := builtinRuleset()
	f.Fuzz(func(t *testing.T, text string) {
		vs, err := e.Scan(rs, text)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		for i := 1; i < len(vs); i++ {
			if vs[i-1].Position > vs[i].Position {
				t.Fatalf("positions out of order: %d > %d", vs[i-1].Position, vs[i].Position)
			}
		}
	})
}

func BenchmarkScan(b *testing.B) {
	e := NewEngine(nil)
	rs := builtinRuleset()
	text := strings.Repeat("이 제품은 피부 고민을 즉시 해결하는 최고의 크림입니다. 부작용이 없고 100% 안전합니다. ", 50)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Scan(rs, text); err != nil {
			b.Fatal(err)
		}
	}
}
