package reporting

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codewithboateng/adlint/internal/model"
)

// Diff compares two revisions of an ad text and their reports.
type Diff struct {
	BaseID   string          `json:"base_id"`
	HeadID   string          `json:"head_id"`
	BaseRisk model.RiskLevel `json:"base_risk"`
	HeadRisk model.RiskLevel `json:"head_risk"`
	Summary  DiffSummary     `json:"summary"`
	New      []DiffFinding   `json:"new"`
	Resolved []DiffFinding   `json:"resolved"`
	Changed  []DiffChanged   `json:"changed"`
	Patch    string          `json:"patch,omitempty"`
}

type DiffSummary struct {
	NewCount      int `json:"new"`
	ResolvedCount int `json:"resolved"`
	ChangedCount  int `json:"changed"`
}

type DiffFinding struct {
	Text     string         `json:"text"`
	Category model.Category `json:"category"`
	Severity model.Severity `json:"severity"`
	Position int            `json:"position"`
}

type DiffChanged struct {
	Key     string      `json:"key"`
	Base    DiffFinding `json:"base"`
	Head    DiffFinding `json:"head"`
	Changed []string    `json:"fields_changed"`
}

// Compare matches violations by (category, text) since positions shift
// between revisions. Repeated occurrences are paired in order.
func Compare(base, head Document) Diff {
	bm := index(base.Report.Violations)
	hm := index(head.Report.Violations)

	d := Diff{
		BaseID: base.ID, HeadID: head.ID,
		BaseRisk: base.Report.RiskLevel, HeadRisk: head.Report.RiskLevel,
		New: []DiffFinding{}, Resolved: []DiffFinding{}, Changed: []DiffChanged{},
	}
	for _, k := range sortedKeys(hm) {
		hs, bs := hm[k], bm[k]
		for i, hv := range hs {
			if i >= len(bs) {
				d.New = append(d.New, asDiff(hv))
				continue
			}
			if bs[i].Severity != hv.Severity {
				d.Changed = append(d.Changed, DiffChanged{
					Key: k, Base: asDiff(bs[i]), Head: asDiff(hv), Changed: []string{"severity"},
				})
			}
		}
	}
	for _, k := range sortedKeys(bm) {
		bs, hs := bm[k], hm[k]
		for i := len(hs); i < len(bs); i++ {
			d.Resolved = append(d.Resolved, asDiff(bs[i]))
		}
	}

	sort.SliceStable(d.New, func(i, j int) bool { return findingLess(d.New[i], d.New[j]) })
	sort.SliceStable(d.Resolved, func(i, j int) bool { return findingLess(d.Resolved[i], d.Resolved[j]) })
	sort.SliceStable(d.Changed, func(i, j int) bool {
		if d.Changed[i].Key != d.Changed[j].Key {
			return d.Changed[i].Key < d.Changed[j].Key
		}
		return findingLess(d.Changed[i].Head, d.Changed[j].Head)
	})

	d.Summary = DiffSummary{NewCount: len(d.New), ResolvedCount: len(d.Resolved), ChangedCount: len(d.Changed)}
	d.Patch = TextPatch(base.Text, head.Text)
	return d
}

// TextPatch renders the edit from base to head as a diff-match-patch patch.
func TextPatch(base, head string) string {
	if base == head {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, head, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(base, diffs))
}

func WriteDiffJSON(outDir string, d Diff) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, "diff_"+d.BaseID+"__"+d.HeadID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := EncodeJSON(f, d); err != nil {
		return "", err
	}
	return path, nil
}

func index(vs []model.ViolationDetail) map[string][]model.ViolationDetail {
	m := map[string][]model.ViolationDetail{}
	for _, v := range vs {
		k := keyOf(v)
		m[k] = append(m[k], v)
	}
	return m
}

// findingLess orders findings by position, category, text and severity so
// ties never depend on map iteration.
func findingLess(a, b DiffFinding) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
		return ra < rb
	}
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Severity.Rank() > b.Severity.Rank()
}

func sortedKeys(m map[string][]model.ViolationDetail) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keyOf(v model.ViolationDetail) string {
	return string(v.Category) + "|" + strings.ToLower(strings.TrimSpace(v.Text))
}

func asDiff(v model.ViolationDetail) DiffFinding {
	return DiffFinding{Text: v.Text, Category: v.Category, Severity: v.Severity, Position: v.Position}
}
