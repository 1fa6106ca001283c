// Package services описывает внешние модели прогноза спроса, обслуживания и
// длительности аренды. Ядро вызывает их как непрозрачные функции
package services

import (
	"context"
	"strconv"
	"strings"

	"equipment-insight/internal/models"
	"equipment-insight/internal/preprocess"
)

// ServiceFeatures подмножество признаков для внешних моделей
type ServiceFeatures struct {
	CategoryEncoded int     `json:"equipment_type_encoded"`
	LocationEncoded int     `json:"location_encoded"`
	Category        string  `json:"equipment_type"`
	Location        string  `json:"location"`
	AgeMonths       float64 `json:"age_months"`
	UsageHours      float64 `json:"usage_hours"`
	FuelConsumption float64 `json:"fuel_consumption"`
	DowntimeHours   float64 `json:"downtime_hours"`
	EfficiencyScore float64 `json:"efficiency_score"`
	Month           int     `json:"month"`
	DayOfYear       int     `json:"day_of_year"`
	SeasonalDemand  float64 `json:"seasonal_demand"`
}

// Forecaster прогноз спроса
type Forecaster interface {
	Forecast(ctx context.Context, f ServiceFeatures) (float64, error)
}

// MaintenancePredictor вероятность необходимости обслуживания
type MaintenancePredictor interface {
	PredictMaintenance(ctx context.Context, f ServiceFeatures) (float64, error)
}

// DurationPredictor ожидаемая длительность аренды в днях
type DurationPredictor interface {
	PredictDuration(ctx context.Context, f ServiceFeatures) (float64, error)
}

// Bundle набор внешних моделей одного обучения
type Bundle struct {
	Forecaster  Forecaster
	Maintenance MaintenancePredictor
	Duration    DurationPredictor
}

// Extract собирает признаки для внешних моделей из строки признаков
func Extract(row models.FeatureRow, categories, locations preprocess.CategoryEncoder) ServiceFeatures {
	return ServiceFeatures{
		CategoryEncoded: categories.Encode(row.Category),
		LocationEncoded: locations.Encode(row.Location),
		Category:        row.Category,
		Location:        row.Location,
		AgeMonths:       row.AgeMonths,
		UsageHours:      row.UsageHours,
		FuelConsumption: row.FuelConsumption,
		DowntimeHours:   row.DowntimeHours,
		EfficiencyScore: row.EfficiencyScore,
		Month:           row.Month,
		DayOfYear:       row.DayOfYear,
		SeasonalDemand:  row.SeasonalDemand,
	}
}

func groupKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func monthKey(category string, month int) string {
	return groupKey(category, strconv.Itoa(month))
}
