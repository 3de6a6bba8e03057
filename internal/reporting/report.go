package reporting

import (
	"fmt"
	"unicode/utf8"

	"github.com/codewithboateng/adlint/internal/model"
)

// ContextRadius is the number of characters shown on each side of a match.
const ContextRadius = 20

const (
	summaryPass       = "법규 위반사항이 발견되지 않았습니다."
	summaryViolations = "총 %d건의 위반사항이 발견되었습니다. 위험도: %s"
)

// Synthesize aggregates violations into a report. It is pure: the same
// input always yields the same report. Violations are kept in input order.
func Synthesize(violations []model.Violation, text string) model.Report {
	rep := model.Report{
		Status:     model.StatusPass,
		RiskLevel:  model.RiskLow,
		Violations: []model.ViolationDetail{},
		Categories: []model.Category{},
		Summary:    summaryPass,
	}
	if len(violations) == 0 {
		return rep
	}

	runes := []rune(text)
	seen := map[model.Category]bool{}
	for _, v := range violations {
		switch v.Severity {
		case model.SeverityHigh:
			rep.SeveritySummary.High++
		case model.SeverityMedium:
			rep.SeveritySummary.Medium++
		case model.SeverityLow:
			rep.SeveritySummary.Low++
		}
		if !seen[v.Category] {
			seen[v.Category] = true
			rep.Categories = append(rep.Categories, v.Category)
		}
		rep.Violations = append(rep.Violations, model.ViolationDetail{
			Text:          v.Text,
			Category:      v.Category,
			CategoryLabel: v.Category.Label(),
			Severity:      v.Severity,
			LegalBasis:    v.LegalBasis,
			Suggestion:    v.Suggestion,
			Context:       contextWindow(runes, v.Position, utf8.RuneCountInString(v.Text)),
			Position:      v.Position,
		})
	}

	rep.Status = model.StatusViolationFound
	rep.TotalViolations = len(violations)
	rep.RiskLevel = Risk(rep.SeveritySummary)
	rep.Summary = fmt.Sprintf(summaryViolations, rep.TotalViolations, rep.RiskLevel)
	return rep
}

// Risk applies the verdict policy in priority order: any HIGH, then more
// than two MEDIUM, then any MEDIUM.
func Risk(s model.SeveritySummary) model.RiskLevel {
	switch {
	case s.High > 0:
		return model.RiskHigh
	case s.Medium > 2:
		return model.RiskHigh
	case s.Medium >= 1:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func contextWindow(text []rune, pos, n int) string {
	if pos < 0 || pos > len(text) {
		return ""
	}
	start := max(0, pos-ContextRadius)
	end := min(len(text), pos+n+ContextRadius)
	return string(text[start:end])
}
