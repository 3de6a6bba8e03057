package rulesdsl

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/adlint/internal/model"
)

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	Category    string `yaml:"category"` // tag or Korean label
	Severity    string `yaml:"severity"` // LOW|MEDIUM|HIGH
	Pattern     string `yaml:"pattern"`
	LegalBasis  string `yaml:"legal_basis"`
	Suggestion  string `yaml:"suggestion"`
	Description string `yaml:"description"`
	Group       string `yaml:"group"`
	Active      *bool  `yaml:"active"`
}

// PackLoader reads a YAML rule pack and serves it as the seed catalog.
// The file is re-read on every Load so edits are picked up by reloads.
type PackLoader struct {
	Path string
}

func (l PackLoader) Load() ([]model.Rule, error) {
	b, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read rules pack: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a rule pack. Any invalid rule rejects the
// whole pack.
func Parse(b []byte) ([]model.Rule, error) {
	var pack dslPack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out := make([]model.Rule, 0, len(pack.Rules))
	for i, r := range pack.Rules {
		rule, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func compile(r dslRule) (model.Rule, error) {
	if strings.TrimSpace(r.Category) == "" || strings.TrimSpace(r.Severity) == "" || r.Pattern == "" {
		return model.Rule{}, fmt.Errorf("%w: missing required fields (category/severity/pattern)", model.ErrInvalidRule)
	}
	cat, err := model.ParseCategory(r.Category)
	if err != nil {
		return model.Rule{}, err
	}
	sev, err := model.ParseSeverity(r.Severity)
	if err != nil {
		return model.Rule{}, err
	}
	rule := model.Rule{
		Pattern:     r.Pattern,
		Category:    cat,
		Severity:    sev,
		LegalBasis:  strings.TrimSpace(r.LegalBasis),
		Suggestion:  strings.TrimSpace(r.Suggestion),
		Active:      r.Active == nil || *r.Active,
		Description: r.Description,
		Group:       r.Group,
	}
	if rule.Description == "" {
		rule.Description = cat.Label() + " 관련 패턴"
	}
	if rule.Group == "" {
		rule.Group = model.GroupDefault
	}
	if err := rule.Check(); err != nil {
		return model.Rule{}, err
	}
	return rule, nil
}
