package rules

import (
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/codewithboateng/adlint/internal/model"
)

// Engine scans text against a ruleset snapshot. It holds no mutable state;
// one Engine may serve concurrent scans.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Scan returns the deduplicated violations found in text, ordered by
// position. Positions count characters, not bytes. A nil ruleset is an
// error (detection could not run), distinct from an empty result.
func (e *Engine) Scan(rs *Ruleset, text string) ([]model.Violation, error) {
	if rs == nil {
		return nil, model.ErrNoRuleset
	}
	out := []model.Violation{}
	if text == "" {
		return out, nil
	}

	idx := newRuneIndex(text)
	for _, g := range rs.Groups {
		for _, entry := range g.Entries {
			if entry.re == nil {
				e.logger.Warn("skipping rule with unusable pattern",
					"category", g.Category, "pattern", entry.Pattern, "err", entry.err)
				continue
			}
			for _, loc := range entry.re.FindAllStringIndex(text, -1) {
				if loc[0] == loc[1] {
					continue // zero-length matches carry no text
				}
				out = append(out, model.Violation{
					Text:       text[loc[0]:loc[1]],
					Category:   g.Category,
					Severity:   entry.Severity,
					LegalBasis: entry.LegalBasis,
					Suggestion: entry.Suggestion,
					Position:   idx.at(loc[0]),
				})
			}
		}
	}
	return Normalize(out), nil
}

type dedupeKey struct {
	text     string
	position int
	category model.Category
}

// Normalize drops repeated (text, position, category) triples, keeping the
// first, then stable-sorts by position. Unknown positions (-1) sort first.
// It also applies to violations produced outside the engine.
func Normalize(vs []model.Violation) []model.Violation {
	seen := make(map[dedupeKey]struct{}, len(vs))
	out := make([]model.Violation, 0, len(vs))
	for _, v := range vs {
		k := dedupeKey{v.Text, v.Position, v.Category}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// runeIndex converts byte offsets into character offsets.
type runeIndex struct {
	ascii bool
	pos   []int // byte offset -> rune offset, only for non-ASCII text
}

func newRuneIndex(s string) runeIndex {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return runeIndex{ascii: true}
	}
	pos := make([]int, len(s)+1)
	n := 0
	for i := range s {
		pos[i] = n
		n++
	}
	pos[len(s)] = n
	return runeIndex{pos: pos}
}

func (ri runeIndex) at(b int) int {
	if ri.ascii {
		return b
	}
	return ri.pos[b]
}
