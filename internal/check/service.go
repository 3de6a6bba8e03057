package check

import (
	"log/slog"
	"time"

	"github.com/codewithboateng/adlint/internal/cache"
	"github.com/codewithboateng/adlint/internal/metrics"
	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/reporting"
	"github.com/codewithboateng/adlint/internal/rules"
)

// RulesetSource hands out the current ruleset snapshot.
type RulesetSource interface {
	Ruleset() *rules.Ruleset
}

// Result is one checked text.
type Result struct {
	Report         model.Report `json:"report"`
	RulesetVersion uint64       `json:"ruleset_version"`
	Cached         bool         `json:"cached"`
}

// Service runs scan and synthesis against one snapshot per call. Cache and
// metrics are optional.
type Service struct {
	Rules   RulesetSource
	Engine  *rules.Engine
	Cache   *cache.ReportCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func New(src RulesetSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Rules: src, Engine: rules.NewEngine(logger), Logger: logger}
}

// Check scans text against the current snapshot. The snapshot is read once
// so a concurrent reload cannot split one check across two rulesets.
func (s *Service) Check(text string) (Result, error) {
	start := time.Now()
	rs := s.Rules.Ruleset()
	if rs == nil {
		s.Metrics.RecordScan("error", time.Since(start))
		return Result{}, model.ErrNoRuleset
	}

	key := cache.Key(rs.Version, text)
	if s.Cache != nil {
		if rep, ok := s.Cache.Get(key); ok {
			s.Metrics.RecordCacheLookup(true)
			s.Metrics.RecordScan(string(rep.Status), time.Since(start))
			return Result{Report: rep, RulesetVersion: rs.Version, Cached: true}, nil
		}
		s.Metrics.RecordCacheLookup(false)
	}

	vs, err := s.Engine.Scan(rs, text)
	if err != nil {
		s.Metrics.RecordScan("error", time.Since(start))
		return Result{}, err
	}
	rep := reporting.Synthesize(vs, text)
	for _, v := range vs {
		s.Metrics.RecordViolation(string(v.Category), string(v.Severity))
	}
	s.Cache.Set(key, rep)
	s.Metrics.RecordScan(string(rep.Status), time.Since(start))
	s.Logger.Debug("text checked",
		"ruleset_version", rs.Version, "violations", rep.TotalViolations, "risk", rep.RiskLevel)
	return Result{Report: rep, RulesetVersion: rs.Version}, nil
}

// Assess builds a report from violations produced elsewhere, such as a
// non-positional analyzer. They are deduplicated and ordered first.
func (s *Service) Assess(vs []model.Violation, text string) model.Report {
	return reporting.Synthesize(rules.Normalize(vs), text)
}
