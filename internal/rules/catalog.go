package rules

import "github.com/codewithboateng/adlint/internal/model"

// Loader supplies the seed rule set. Implementations have no side effects
// and return a fresh slice on every call.
type Loader interface {
	Load() ([]model.Rule, error)
}

// BuiltinLoader returns the compiled-in catalog.
type BuiltinLoader struct{}

func (BuiltinLoader) Load() ([]model.Rule, error) { return Builtin(), nil }

type seed struct {
	category   model.Category
	pattern    string
	severity   model.Severity
	legalBasis string
	suggestion string
}

var builtin = []seed{
	{
		category:   model.CategoryMedicalClaim,
		pattern:    `(치료|완치|의학적\s*효과|병원|의사|처방|진료|임상|약효)`,
		severity:   model.SeverityHigh,
		legalBasis: "화장품법 제2조(정의), 약사법 제85조",
		suggestion: "화장품의 기능적 효과로 표현을 변경하세요",
	},
	{
		category:   model.CategoryMedicalClaim,
		pattern:    `(항균|살균|세균\s*제거|바이러스\s*차단)`,
		severity:   model.SeverityHigh,
		legalBasis: "화장품법 제2조, 의료기기법",
		suggestion: "청결 유지나 세정 효과로 표현을 변경하세요",
	},
	{
		category:   model.CategoryExaggeratedEffect,
		pattern:    `(100%\s*효과|완벽한|즉시|바로|하루\s*만에|기적|마법)`,
		severity:   model.SeverityHigh,
		legalBasis: "화장품법 제10조(표시·광고의 금지 등)",
		suggestion: "점진적 개선이나 도움을 줄 수 있다는 표현으로 변경하세요",
	},
	{
		category:   model.CategoryExaggeratedEffect,
		pattern:    `(영구적|평생|절대|무조건|확실히)`,
		severity:   model.SeverityMedium,
		legalBasis: "표시·광고의 공정화에 관한 법률",
		suggestion: "개인차가 있을 수 있음을 명시하세요",
	},
	{
		category:   model.CategorySafetyMisrepresentation,
		pattern:    `(부작용\s*(이|은|도)?\s*없|무해한|100%\s*안전|완전히\s*안전)`,
		severity:   model.SeverityHigh,
		legalBasis: "화장품법 제10조, 소비자기본법",
		suggestion: "테스트를 거쳤다거나 안전성을 고려했다는 표현으로 변경하세요",
	},
	{
		category:   model.CategorySafetyMisrepresentation,
		pattern:    `(알레르기\s*반응\s*없음|자극\s*없음)`,
		severity:   model.SeverityMedium,
		legalBasis: "화장품법 제10조",
		suggestion: "개인에 따라 반응이 다를 수 있음을 명시하세요",
	},
	{
		category:   model.CategorySuperlativeExpression,
		pattern:    `(최고|최상|최적|1위|넘버원|NO\.1|으뜸)`,
		severity:   model.SeverityMedium,
		legalBasis: "표시·광고의 공정화에 관한 법률 제3조",
		suggestion: "객관적 근거가 있는 경우에만 사용하거나 삭제하세요",
	},
	{
		category:   model.CategorySuperlativeExpression,
		pattern:    `(유일한|독보적|독창적|세계\s*최초)`,
		severity:   model.SeverityHigh,
		legalBasis: "표시·광고의 공정화에 관한 법률",
		suggestion: "검증 가능한 사실이 아닌 경우 삭제하세요",
	},
	{
		category:   model.CategoryComparativeAdViolation,
		pattern:    `(타제품보다|경쟁사보다|다른\s*브랜드보다|비교\s*불가)`,
		severity:   model.SeverityMedium,
		legalBasis: "표시·광고의 공정화에 관한 법률 제6조",
		suggestion: "객관적 근거 자료와 함께 제시하거나 삭제하세요",
	},
}

// Builtin returns the default catalog as unsaved, active rules.
func Builtin() []model.Rule {
	out := make([]model.Rule, 0, len(builtin))
	for _, s := range builtin {
		out = append(out, model.Rule{
			Pattern:     s.pattern,
			Category:    s.category,
			Severity:    s.severity,
			LegalBasis:  s.legalBasis,
			Suggestion:  s.suggestion,
			Active:      true,
			Description: s.category.Label() + " 관련 패턴",
			Group:       model.GroupDefault,
		})
	}
	return out
}
