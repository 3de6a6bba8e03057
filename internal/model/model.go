package model

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a violation. The string value is the persisted
// identity; Label returns the display text.
type Category string

const (
	CategoryMedicalClaim            Category = "MEDICAL_CLAIM"
	CategoryExaggeratedEffect       Category = "EXAGGERATED_EFFECT"
	CategorySafetyMisrepresentation Category = "SAFETY_MISREPRESENTATION"
	CategorySuperlativeExpression   Category = "SUPERLATIVE_EXPRESSION"
	CategoryComparativeAdViolation  Category = "COMPARATIVE_AD_VIOLATION"
)

// Categories lists every category in canonical order.
var Categories = []Category{
	CategoryMedicalClaim,
	CategoryExaggeratedEffect,
	CategorySafetyMisrepresentation,
	CategorySuperlativeExpression,
	CategoryComparativeAdViolation,
}

var categoryLabels = map[Category]string{
	CategoryMedicalClaim:            "의약품적 표현",
	CategoryExaggeratedEffect:       "효능 과장",
	CategorySafetyMisrepresentation: "안전성 허위",
	CategorySuperlativeExpression:   "최상급 표현",
	CategoryComparativeAdViolation:  "비교광고 위반",
}

func (c Category) String() string { return string(c) }

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Rank is the position of c in Categories (0-based), or len(Categories)
// for unknown values.
func (c Category) Rank() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}
	return len(Categories)
}

// ParseCategory accepts a machine tag (any case) or a display label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	up := Category(strings.ToUpper(s))
	if up.Valid() {
		return up, nil
	}
	for c, l := range categoryLabels {
		if l == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidRule, s)
}

// Severity is the risk classification of a rule or a match.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Severities lists every severity, highest first.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) String() string { return string(s) }

// Rank orders severities: HIGH=3, MEDIUM=2, LOW=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

func (s Severity) Label() string {
	switch s {
	case SeverityHigh:
		return "높음"
	case SeverityMedium:
		return "중간"
	case SeverityLow:
		return "낮음"
	default:
		return string(s)
	}
}

// ParseSeverity accepts a machine tag (any case) or a display label.
func ParseSeverity(s string) (Severity, error) {
	s = strings.TrimSpace(s)
	up := Severity(strings.ToUpper(s))
	if up.Valid() {
		return up, nil
	}
	for _, k := range Severities {
		if k.Label() == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, s)
}

const (
	GroupDefault = "기본"
	GroupCustom  = "사용자정의"
)

// Rule is one stored detection signature. ID is zero until persisted.
type Rule struct {
	ID          int64     `json:"id,omitempty"`
	Pattern     string    `json:"pattern"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	LegalBasis  string    `json:"legal_basis"`
	Suggestion  string    `json:"suggestion"`
	Active      bool      `json:"is_active"`
	Description string    `json:"description,omitempty"`
	Group       string    `json:"group_label,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Check validates the fields every stored rule must carry.
func (r Rule) Check() error {
	if _, err := CompilePattern(r.Pattern); err != nil {
		return err
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRule, r.Category)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, r.Severity)
	}
	return nil
}

// PositionUnknown marks a violation that did not come from a positional scan.
const PositionUnknown = -1

// Violation is one occurrence of a rule's pattern in a text. Rule fields are
// copied at match time.
type Violation struct {
	Text       string   `json:"text"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	LegalBasis string   `json:"legal_basis"`
	Suggestion string   `json:"suggestion"`
	Position   int      `json:"position"`
}

// RuleStats summarizes the rule repository. Distributions count active rules only.
type RuleStats struct {
	Total      int              `json:"total_patterns"`
	Active     int              `json:"active_patterns"`
	Inactive   int              `json:"inactive_patterns"`
	ByCategory map[Category]int `json:"type_distribution"`
	BySeverity map[Severity]int `json:"severity_distribution"`
	Source     string           `json:"source"`
}
