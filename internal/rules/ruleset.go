package rules

import (
	"regexp"
	"sort"

	"github.com/codewithboateng/adlint/internal/model"
)

// Entry is the matching view of one active rule.
type Entry struct {
	Pattern    string         `json:"pattern"`
	Severity   model.Severity `json:"severity"`
	LegalBasis string         `json:"legal_basis"`
	Suggestion string         `json:"suggestion"`

	re  *regexp.Regexp
	err error
}

// Group holds the entries of one category in evaluation order.
type Group struct {
	Category model.Category `json:"category"`
	Entries  []Entry        `json:"entries"`
}

// Ruleset is an immutable snapshot of active rules grouped by category.
// It is safe for concurrent scans.
type Ruleset struct {
	Version uint64  `json:"version"`
	Groups  []Group `json:"groups"`
}

// NewRuleset groups active rules by category in canonical category order.
// Within a category rules keep (severity desc, input order). Categories
// without active rules are omitted. Patterns are compiled once here; a
// failure is kept on the entry and reported at scan time.
func NewRuleset(rules []model.Rule, version uint64) *Ruleset {
	active := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		ci, cj := active[i].Category.Rank(), active[j].Category.Rank()
		if ci != cj {
			return ci < cj
		}
		return active[i].Severity.Rank() > active[j].Severity.Rank()
	})

	rs := &Ruleset{Version: version}
	for _, r := range active {
		e := Entry{
			Pattern:    r.Pattern,
			Severity:   r.Severity,
			LegalBasis: r.LegalBasis,
			Suggestion: r.Suggestion,
		}
		e.re, e.err = model.CompilePattern(r.Pattern)
		if n := len(rs.Groups); n == 0 || rs.Groups[n-1].Category != r.Category {
			rs.Groups = append(rs.Groups, Group{Category: r.Category})
		}
		g := &rs.Groups[len(rs.Groups)-1]
		g.Entries = append(g.Entries, e)
	}
	return rs
}

// Lookup returns the entries for a category.
func (rs *Ruleset) Lookup(c model.Category) ([]Entry, bool) {
	for _, g := range rs.Groups {
		if g.Category == c {
			return g.Entries, true
		}
	}
	return nil, false
}

// Categories lists the categories present, in evaluation order.
func (rs *Ruleset) Categories() []model.Category {
	out := make([]model.Category, 0, len(rs.Groups))
	for _, g := range rs.Groups {
		out = append(out, g.Category)
	}
	return out
}

// Len is the total number of entries.
func (rs *Ruleset) Len() int {
	n := 0
	for _, g := range rs.Groups {
		n += len(g.Entries)
	}
	return n
}
