package preprocess

import (
	"fmt"
	"math"

	"equipment-insight/internal/features"
	"equipment-insight/internal/models"
)

// Границы значений перед стандартизацией
const (
	ClipLow  = -1000.0
	ClipHigh = 1000.0
)

// ScaledColumns числовые колонки, которые проходят стандартизацию
var ScaledColumns = []string{
	features.ColAgeMonths,
	features.ColUsageHours,
	features.ColFuelConsumption,
	features.ColDowntimeHours,
	features.ColEfficiencyScore,
	features.ColUtilizationRate,
	features.ColIdleRate,
	features.ColCapacityUtilization,
	features.ColWorkIntensity,
	features.ColFuelEfficiency,
	features.ColAgeUsageRatio,
}

// Scaler стандартизация (x - mean) / std. После FitScaler не изменяется
type Scaler struct {
	columns []string
	mean    []float64
	scale   []float64
}

// ScalerParams сериализуемые параметры скейлера
type ScalerParams struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// FitScaler подбирает параметры по обучающим строкам
func FitScaler(rows []models.FeatureRow, columns []string) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit scaler: no rows")
	}
	for _, c := range columns {
		if !features.HasColumn(c) {
			return nil, &models.FeatureContractViolation{Column: c}
		}
	}

	stats := make([]RunningStats, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			v, _ := features.Value(row, c)
			stats[i].Add(sanitize(v))
		}
	}

	s := &Scaler{
		columns: append([]string(nil), columns...),
		mean:    make([]float64, len(columns)),
		scale:   make([]float64, len(columns)),
	}
	for i := range stats {
		s.mean[i] = stats[i].Mean()
		s.scale[i] = stats[i].StdDev()
		if s.scale[i] == 0 {
			s.scale[i] = 1
		}
	}
	return s, nil
}

// Transform возвращает копию строки со стандартизованными колонками
func (s *Scaler) Transform(row models.FeatureRow) models.FeatureRow {
	for i, c := range s.columns {
		v, _ := features.Value(row, c)
		features.SetValue(&row, c, (sanitize(v)-s.mean[i])/s.scale[i])
	}
	return row
}

// TransformAll применяет Transform к каждой строке
func (s *Scaler) TransformAll(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = s.Transform(r)
	}
	return out
}

// Params возвращает копию параметров
func (s *Scaler) Params() ScalerParams {
	return ScalerParams{
		Columns: append([]string(nil), s.columns...),
		Mean:    append([]float64(nil), s.mean...),
		Scale:   append([]float64(nil), s.scale...),
	}
}

// sanitize заменяет бесконечности нулем и ограничивает диапазон
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(math.Max(v, ClipLow), ClipHigh)
}
