package models

import "time"

// FeatureRow каноническая строка признаков одной единицы техники.
// Общий контракт между обучением и инференсом
type FeatureRow struct {
	EquipmentID          string    `json:"equipment_id"`
	Category             string    `json:"equipment_type"`
	Location             string    `json:"location"`
	Date                 time.Time `json:"date"`
	AgeMonths            float64   `json:"age_months"`
	UsageHours           float64   `json:"usage_hours"`
	Demand               float64   `json:"demand"`
	NeedsMaintenance     int       `json:"needs_maintenance"`
	ReturnDate           time.Time `json:"return_date"`
	RentalDuration       float64   `json:"rental_duration"`
	FuelConsumption      float64   `json:"fuel_consumption"`
	DowntimeHours        float64   `json:"downtime_hours"`
	EfficiencyScore      float64   `json:"efficiency_score"`
	Month                int       `json:"month"`
	DayOfYear            int       `json:"day_of_year"`
	IsAnomaly            int       `json:"is_anomaly"`
	AvailableHours       float64   `json:"available_hours"`
	ProductiveHours      float64   `json:"productive_hours"`
	IdleHours            float64   `json:"idle_hours"`
	UtilizationRate      float64   `json:"utilization_rate"`
	IdleRate             float64   `json:"idle_rate"`
	EquipmentCapacity    float64   `json:"equipment_capacity"`
	CapacityUtilization  float64   `json:"capacity_utilization"`
	WorkIntensity        float64   `json:"work_intensity"`
	OperatingHoursPerDay float64   `json:"operating_hours_per_day"`
	FuelEfficiency       float64   `json:"fuel_efficiency"`
	AgeUsageRatio        float64   `json:"age_usage_ratio"`
	SeasonalDemand       float64   `json:"seasonal_demand"`
}
