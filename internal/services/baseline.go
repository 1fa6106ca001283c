package services

import (
	"context"
	"math"

	"equipment-insight/internal/models"
)

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m meanAcc) mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

type meanIndex struct {
	groups map[string]meanAcc
	global meanAcc
}

func newMeanIndex() *meanIndex {
	return &meanIndex{groups: make(map[string]meanAcc)}
}

func (m *meanIndex) add(key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	acc := m.groups[key]
	acc.add(v)
	m.groups[key] = acc
	m.global.add(v)
}

func (m *meanIndex) lookup(keys ...string) float64 {
	for _, k := range keys {
		if acc, ok := m.groups[k]; ok && acc.n > 0 {
			return acc.mean()
		}
	}
	return m.global.mean()
}

// SeasonalForecaster средний спрос по категории и месяцу,
// затем по категории, затем общий
type SeasonalForecaster struct {
	index *meanIndex
}

// FitSeasonalForecaster обучает прогноз спроса на строках признаков
func FitSeasonalForecaster(rows []models.FeatureRow) *SeasonalForecaster {
	idx := newMeanIndex()
	for _, r := range rows {
		idx.add(monthKey(r.Category, r.Month), r.Demand)
		idx.add(groupKey(r.Category), r.Demand)
	}
	return &SeasonalForecaster{index: idx}
}

func (s *SeasonalForecaster) Forecast(_ context.Context, f ServiceFeatures) (float64, error) {
	return s.index.lookup(monthKey(f.Category, f.Month), groupKey(f.Category)), nil
}

// CategoryMaintenanceRate доля техники категории, требующей обслуживания
type CategoryMaintenanceRate struct {
	index *meanIndex
}

// FitCategoryMaintenanceRate обучает вероятность обслуживания по разметке
func FitCategoryMaintenanceRate(rows []models.FeatureRow) *CategoryMaintenanceRate {
	idx := newMeanIndex()
	for _, r := range rows {
		idx.add(groupKey(r.Category), float64(r.NeedsMaintenance))
	}
	return &CategoryMaintenanceRate{index: idx}
}

func (c *CategoryMaintenanceRate) PredictMaintenance(_ context.Context, f ServiceFeatures) (float64, error) {
	return c.index.lookup(groupKey(f.Category)), nil
}

// LocationDurationMean средняя длительность аренды по категории и городу
type LocationDurationMean struct {
	index *meanIndex
}

// FitLocationDurationMean обучает прогноз длительности аренды
func FitLocationDurationMean(rows []models.FeatureRow) *LocationDurationMean {
	idx := newMeanIndex()
	for _, r := range rows {
		idx.add(groupKey(r.Category, r.Location), r.RentalDuration)
		idx.add(groupKey(r.Category), r.RentalDuration)
	}
	return &LocationDurationMean{index: idx}
}

func (l *LocationDurationMean) PredictDuration(_ context.Context, f ServiceFeatures) (float64, error) {
	return l.index.lookup(groupKey(f.Category, f.Location), groupKey(f.Category)), nil
}

// FitBaseline обучает базовые реализации всех внешних моделей
func FitBaseline(rows []models.FeatureRow) Bundle {
	return Bundle{
		Forecaster:  FitSeasonalForecaster(rows),
		Maintenance: FitCategoryMaintenanceRate(rows),
		Duration:    FitLocationDurationMean(rows),
	}
}
