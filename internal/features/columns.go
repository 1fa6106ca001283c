package features

import (
	"math"

	"equipment-insight/internal/models"
)

// Имена числовых колонок строки признаков
const (
	ColAgeMonths            = "age_months"
	ColUsageHours           = "usage_hours"
	ColDemand               = "demand"
	ColRentalDuration       = "rental_duration"
	ColFuelConsumption      = "fuel_consumption"
	ColDowntimeHours        = "downtime_hours"
	ColEfficiencyScore      = "efficiency_score"
	ColAvailableHours       = "available_hours"
	ColProductiveHours      = "productive_hours"
	ColIdleHours            = "idle_hours"
	ColUtilizationRate      = "utilization_rate"
	ColIdleRate             = "idle_rate"
	ColEquipmentCapacity    = "equipment_capacity"
	ColCapacityUtilization  = "capacity_utilization"
	ColWorkIntensity        = "work_intensity"
	ColOperatingHoursPerDay = "operating_hours_per_day"
	ColFuelEfficiency       = "fuel_efficiency"
	ColAgeUsageRatio        = "age_usage_ratio"
	ColSeasonalDemand       = "seasonal_demand"
)

// ColFuelConsumptionRate входная колонка соединения, в строку признаков не попадает
const ColFuelConsumptionRate = "fuel_consumption_rate"


var numericColumns = map[string]func(*models.FeatureRow) *float64{
	ColAgeMonths:            func(r *models.FeatureRow) *float64 { return &r.AgeMonths },
	ColUsageHours:           func(r *models.FeatureRow) *float64 { return &r.UsageHours },
	ColDemand:               func(r *models.FeatureRow) *float64 { return &r.Demand },
	ColRentalDuration:       func(r *models.FeatureRow) *float64 { return &r.RentalDuration },
	ColFuelConsumption:      func(r *models.FeatureRow) *float64 { return &r.FuelConsumption },
	ColDowntimeHours:        func(r *models.FeatureRow) *float64 { return &r.DowntimeHours },
	ColEfficiencyScore:      func(r *models.FeatureRow) *float64 { return &r.EfficiencyScore },
	ColAvailableHours:       func(r *models.FeatureRow) *float64 { return &r.AvailableHours },
	ColProductiveHours:      func(r *models.FeatureRow) *float64 { return &r.ProductiveHours },
	ColIdleHours:            func(r *models.FeatureRow) *float64 { return &r.IdleHours },
	ColUtilizationRate:      func(r *models.FeatureRow) *float64 { return &r.UtilizationRate },
	ColIdleRate:             func(r *models.FeatureRow) *float64 { return &r.IdleRate },
	ColEquipmentCapacity:    func(r *models.FeatureRow) *float64 { return &r.EquipmentCapacity },
	ColCapacityUtilization:  func(r *models.FeatureRow) *float64 { return &r.CapacityUtilization },
	ColWorkIntensity:        func(r *models.FeatureRow) *float64 { return &r.WorkIntensity },
	ColOperatingHoursPerDay: func(r *models.FeatureRow) *float64 { return &r.OperatingHoursPerDay },
	ColFuelEfficiency:       func(r *models.FeatureRow) *float64 { return &r.FuelEfficiency },
	ColAgeUsageRatio:        func(r *models.FeatureRow) *float64 { return &r.AgeUsageRatio },
	ColSeasonalDemand:       func(r *models.FeatureRow) *float64 { return &r.SeasonalDemand },
}

// NumericColumns порядок числовых колонок при приведении типов
var NumericColumns = []string{
	ColAgeMonths, ColUsageHours, ColDemand, ColRentalDuration, ColFuelConsumption,
	ColDowntimeHours, ColEfficiencyScore, ColAvailableHours, ColProductiveHours,
	ColIdleHours, ColUtilizationRate, ColIdleRate, ColEquipmentCapacity, ColCapacityUtilization,
	ColWorkIntensity, ColOperatingHoursPerDay, ColFuelEfficiency, ColAgeUsageRatio,
	ColSeasonalDemand,
}

// Value возвращает значение числовой колонки по имени
func Value(row models.FeatureRow, column string) (float64, bool) {
	get, ok := numericColumns[column]
	if !ok {
		return 0, false
	}
	return *get(&row), true
}

// SetValue записывает значение числовой колонки. false для неизвестной колонки
func SetValue(row *models.FeatureRow, column string, v float64) bool {
	get, ok := numericColumns[column]
	if !ok {
		return false
	}
	*get(row) = v
	return true
}

// Vector извлекает значения колонок в заданном порядке.
// Отсутствующая колонка - нарушение контракта признаков
func Vector(row models.FeatureRow, columns []string) ([]float64, error) {
	out := make([]float64, len(columns))
	for i, c := range columns {
		v, ok := Value(row, c)
		if !ok {
			return nil, &models.FeatureContractViolation{Column: c}
		}
		out[i] = v
	}
	return out, nil
}

// HasColumn проверяет, что колонка есть в строке признаков
func HasColumn(column string) bool {
	_, ok := numericColumns[column]
	return ok
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
