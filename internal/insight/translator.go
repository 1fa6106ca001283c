// Package insight переводит аномальный скор в уровень риска, рекомендацию
// и предупреждения по загрузке
package insight

import (
	"math"

	"equipment-insight/internal/models"
)

// Границы уровней риска
const (
	HighThreshold   = -0.5
	MediumThreshold = -0.2
	LowThreshold    = 0.0
)

// Пороги предупреждений
const (
	LowUtilizationThreshold = 0.2
	HighIdleThreshold       = 0.7
	LowIntensityThreshold   = 0.5
)

// Тексты предупреждений
const (
	WarnLowUtilization = "Very low utilization rate - equipment underused"
	WarnExcessiveIdle  = "Excessive idle time - potential efficiency issue"
	WarnLowIntensity   = "Low work intensity - high downtime during usage"
)

// Рекомендации по уровням
const (
	RecommendHigh   = "Immediate investigation required"
	RecommendMedium = "Monitor closely"
	RecommendLow    = "Continue normal monitoring"
	RecommendNormal = "Equipment operating normally"
)

// Tier возвращает уровень риска и рекомендацию
func Tier(score float64) (models.RiskTier, string) {
	switch {
	case score < HighThreshold:
		return models.RiskHigh, RecommendHigh
	case score < MediumThreshold:
		return models.RiskMedium, RecommendMedium
	case score < LowThreshold:
		return models.RiskLow, RecommendLow
	default:
		return models.RiskNormal, RecommendNormal
	}
}

// Warnings независимые правила, могут срабатывать одновременно
func Warnings(row models.FeatureRow) []string {
	warnings := make([]string, 0, 3)
	if row.UtilizationRate < LowUtilizationThreshold {
		warnings = append(warnings, WarnLowUtilization)
	}
	if row.IdleRate > HighIdleThreshold {
		warnings = append(warnings, WarnExcessiveIdle)
	}
	if row.WorkIntensity < LowIntensityThreshold {
		warnings = append(warnings, WarnLowIntensity)
	}
	return warnings
}

// Translate собирает оценку риска по скору и строке признаков
func Translate(score float64, row models.FeatureRow) models.RiskAssessment {
	tier, recommendation := Tier(score)
	return models.RiskAssessment{
		Score:          score,
		IsAnomaly:      score < 0,
		Confidence:     math.Abs(score),
		Tier:           tier,
		Recommendation: recommendation,
		Warnings:       Warnings(row),
		Utilization: models.UtilizationMetrics{
			UtilizationRate:     row.UtilizationRate,
			IdleRate:            row.IdleRate,
			CapacityUtilization: row.CapacityUtilization,
			WorkIntensity:       row.WorkIntensity,
		},
	}
}
