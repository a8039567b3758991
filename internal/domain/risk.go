package domain

// RiskLevel — уровень риска, присвоенный действию по результатам оценки правил.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// riskSeverity задает порядок строгости. Чем больше число — тем опаснее.
// Используется и в Go-коде, и в SQL (CASE WHEN) для сортировки очереди.
var riskSeverity = map[RiskLevel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// AllRiskLevels — закрытый список уровней для zero-fill статистики.
var AllRiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Severity возвращает числовой вес уровня. Неизвестный уровень трактуем как LOW,
// чтобы битые данные из БД не роняли сортировку.
func (r RiskLevel) Severity() int {
	if s, ok := riskSeverity[r]; ok {
		return s
	}
	return riskSeverity[RiskLow]
}

// IsValid проверяет, что уровень входит в закрытый набор (для авторинга правил).
func (r RiskLevel) IsValid() bool {
	_, ok := riskSeverity[r]
	return ok
}

// MaxRisk возвращает наиболее строгий из двух уровней.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}
