package check

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/adlint/internal/cache"
	"github.com/codewithboateng/adlint/internal/metrics"
	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/rules"
)

type staticSource struct{ rs *rules.Ruleset }

func (s *staticSource) Ruleset() *rules.Ruleset { return s.rs }

func TestCheckScenario(t *testing.T) {
	svc := New(&staticSource{rs: rules.NewRuleset(rules.Builtin(), 1)}, nil)

	res, err := svc.Check("이 제품은 100% 안전하며 부작용이 없습니다")
	require.NoError(t, err)
	assert.Equal(t, model.StatusViolationFound, res.Report.Status)
	assert.Equal(t, model.RiskHigh, res.Report.RiskLevel)
	assert.Equal(t, 2, res.Report.TotalViolations)
	assert.EqualValues(t, 1, res.RulesetVersion)

	res, err = svc.Check("피부 보습에 도움을 줄 수 있습니다")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPass, res.Report.Status)
}

func TestCheckCachesPerVersion(t *testing.T) {
	src := &staticSource{rs: rules.NewRuleset(rules.Builtin(), 1)}
	svc := New(src, nil)
	svc.Cache = cache.New(time.Minute, 0)
	svc.Metrics = metrics.New()

	first, err := svc.Check("최고의 크림")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Check("최고의 크림")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Report, second.Report)

	src.rs = rules.NewRuleset(nil, 2)
	third, err := svc.Check("최고의 크림")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, model.StatusPass, third.Report.Status)
	assert.EqualValues(t, 2, third.RulesetVersion)
}

func TestCheckWithoutRuleset(t *testing.T) {
	svc := New(&staticSource{}, nil)
	_, err := svc.Check("최고")
	assert.ErrorIs(t, err, model.ErrNoRuleset)
}

func TestAssess(t *testing.T) {
	svc := New(&staticSource{}, nil)
	rep := svc.Assess([]model.Violation{
		{Text: "최고", Category: model.CategorySuperlativeExpression, Severity: model.SeverityMedium, Position: 4},
		{Text: "최고", Category: model.CategorySuperlativeExpression, Severity: model.SeverityMedium, Position: 4},
		{Text: "최상", Category: model.CategorySuperlativeExpression, Severity: model.SeverityMedium, Position: model.PositionUnknown},
	}, "크림은 최고")
	assert.Equal(t, 2, rep.TotalViolations)
	assert.Equal(t, model.RiskMedium, rep.RiskLevel)
	assert.Equal(t, "최상", rep.Violations[0].Text, "unknown positions sort first")
	assert.Empty(t, rep.Violations[0].Context)
	assert.Equal(t, "크림은 최고", rep.Violations[1].Context)
}
