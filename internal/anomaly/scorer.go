package anomaly

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"equipment-insight/internal/features"
	"equipment-insight/internal/models"
)

// FeatureSubsetVersion версия набора признаков модели. Меняется при любом
// изменении FeatureSubset
const FeatureSubsetVersion = "utilization-v1"

// FeatureSubset признаки, на которых обучается и оценивает модель
var FeatureSubset = []string{
	features.ColFuelConsumption,
	features.ColDowntimeHours,
	features.ColEfficiencyScore,
	features.ColFuelEfficiency,
	features.ColAgeUsageRatio,
	features.ColUtilizationRate,
	features.ColIdleRate,
	features.ColCapacityUtilization,
	features.ColWorkIntensity,
	features.ColIdleHours,
	features.ColProductiveHours,
}

// Scorer обученная модель поверх фиксированного набора признаков
type Scorer struct {
	forest  *Forest
	subset  []string
	version string
}

// Fit обучает модель на подготовленных строках
func Fit(ctx context.Context, rows []models.FeatureRow, subset []string, cfg Config, logger *zap.Logger) (*Scorer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	x, err := matrix(rows, subset)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	forest, err := FitForest(ctx, x, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("anomaly model fitted",
		zap.Int("samples", len(x)),
		zap.Int("features", len(subset)),
		zap.Int("estimators", forest.Size()),
		zap.Float64("offset", forest.Offset()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Scorer{
		forest:  forest,
		subset:  append([]string(nil), subset...),
		version: FeatureSubsetVersion,
	}, nil
}

func matrix(rows []models.FeatureRow, subset []string) ([][]float64, error) {
	if len(subset) == 0 {
		return nil, fmt.Errorf("empty feature subset")
	}
	x := make([][]float64, len(rows))
	for i, r := range rows {
		v, err := features.Vector(r, subset)
		if err != nil {
			return nil, err
		}
		x[i] = v
	}
	return x, nil
}

// Score непрерывный скор строки, отрицательнее - аномальнее
func (s *Scorer) Score(row models.FeatureRow) (float64, error) {
	v, err := features.Vector(row, s.subset)
	if err != nil {
		return 0, err
	}
	return s.forest.Decision(v)
}

// Predict true, если строка лежит за нулевой границей решения
func (s *Scorer) Predict(row models.FeatureRow) (bool, error) {
	score, err := s.Score(row)
	if err != nil {
		return false, err
	}
	return IsAnomaly(score), nil
}

// ScoreAll оценивает набор строк
func (s *Scorer) ScoreAll(rows []models.FeatureRow) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		score, err := s.Score(r)
		if err != nil {
			return nil, err
		}
		out[i] = score
	}
	return out, nil
}

// IsAnomaly порог по нулевой границе решения
func IsAnomaly(score float64) bool {
	return score < 0
}

// Subset копия набора признаков модели
func (s *Scorer) Subset() []string {
	return append([]string(nil), s.subset...)
}

// Version версия набора признаков
func (s *Scorer) Version() string {
	return s.version
}
