package model

type Status string

const (
	StatusPass           Status = "PASS"
	StatusViolationFound Status = "VIOLATION_FOUND"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Report is the aggregated verdict over one scan.
type Report struct {
	Status          Status            `json:"status"`
	TotalViolations int               `json:"total_violations"`
	RiskLevel       RiskLevel         `json:"risk_level"`
	Violations      []ViolationDetail `json:"violations"`
	SeveritySummary SeveritySummary   `json:"severity_summary"`
	Categories      []Category        `json:"categories"`
	Summary         string            `json:"summary"`
}

type ViolationDetail struct {
	Text          string   `json:"text"`
	Category      Category `json:"category"`
	CategoryLabel string   `json:"category_label"`
	Severity      Severity `json:"severity"`
	LegalBasis    string   `json:"legal_basis"`
	Suggestion    string   `json:"suggestion"`
	Context       string   `json:"context,omitempty"`
	Position      int      `json:"position"`
}

type SeveritySummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}
