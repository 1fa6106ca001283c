package aggregate

import (
	"equipment-insight/internal/models"
)

// Колонки сводки использования
var (
	ColRuntimeHoursMax    = ColumnName("runtime_hours_total", Max)
	ColIdleHoursSum       = ColumnName("idle_hours", Sum)
	ColFuelRateMean       = ColumnName("fuel_consumption_rate", Mean)
	ColEngineTempMean     = ColumnName("engine_temperature", Mean)
	ColIsOperatingMean    = ColumnName("is_operating", Mean)
	ColTimestampMin       = ColumnName("timestamp", Min)
	ColTimestampMax       = ColumnName("timestamp", Max)
	ColTimestampCount     = ColumnName("timestamp", Count)
	ColRentalDurationMean = ColumnName("rental_duration_actual", Mean)
	ColRentalRateMean     = ColumnName("rental_rate_per_day", Mean)
	ColOverdueDaysSum     = ColumnName("overdue_days", Sum)
	ColRentalCount        = ColumnName("rental_start_date", Count)
	ColMaintenanceCostSum = ColumnName("cost", Sum)
	ColDowntimeHoursSum   = ColumnName("downtime_hours", Sum)
	ColMaintenanceScore   = ColumnName("maintenance_score", Mean)
	ColMaintenanceCount   = ColumnName("maintenance_date", Count)
	ColAnomalyScoreMean   = ColumnName("anomaly_score", Mean)
	ColAnomalyCount       = ColumnName("anomaly_id", Count)
	ColDemandMean         = ColumnName("demand_count", Mean)
	ColDemandMonthFirst   = ColumnName("month", First)
	ColUsageTimestampSpan = "timestamp_span_hours"
	ColNeedsMaintenance   = "needs_maintenance"
	ColIsAnomaly          = "is_anomaly"
)

// Пороги политики разметки обслуживания, не настраиваются
const (
	MaintenanceScoreCutoff = 8.0
	MaintenanceCostCutoff  = 10000.0
)

// NeedsMaintenance политика разметки: средний балл ниже 8 или суммарная стоимость выше 10000
func NeedsMaintenance(meanScore, totalCost float64) bool {
	return meanScore < MaintenanceScoreCutoff || totalCost > MaintenanceCostCutoff
}

var usageSpec = Spec[models.UsageEvent]{
	Table:    models.TableUsage,
	KeyField: "equipment_id",
	Key:      func(e models.UsageEvent) string { return e.EquipmentID },
	Fields: []Field[models.UsageEvent]{
		{Name: "runtime_hours_total", Reducers: []Reducer{Max}, Value: func(e models.UsageEvent) float64 { return e.RuntimeHoursTotal }},
		{Name: "idle_hours", Reducers: []Reducer{Sum}, Value: func(e models.UsageEvent) float64 { return e.IdleHours }},
		{Name: "fuel_consumption_rate", Reducers: []Reducer{Mean}, Value: func(e models.UsageEvent) float64 { return e.FuelConsumptionRate }},
		{Name: "engine_temperature", Reducers: []Reducer{Mean}, Value: func(e models.UsageEvent) float64 { return e.EngineTemperature }},
		{Name: "is_operating", Reducers: []Reducer{Mean}, Value: func(e models.UsageEvent) float64 { return boolToFloat(e.IsOperating) }},
		{Name: "timestamp", Reducers: []Reducer{Min, Max, Count}, Value: func(e models.UsageEvent) float64 { return float64(e.Timestamp.Unix()) }},
	},
	Precision: 2,
	Derive: func(s Summary) {
		s[ColUsageTimestampSpan] = Round((s[ColTimestampMax]-s[ColTimestampMin])/3600, 2)
	},
}

var rentalSpec = Spec[models.RentalRecord]{
	Table:    models.TableRentals,
	KeyField: "equipment_id",
	Key:      func(r models.RentalRecord) string { return r.EquipmentID },
	Fields: []Field[models.RentalRecord]{
		{Name: "rental_duration_actual", Reducers: []Reducer{Mean}, Value: func(r models.RentalRecord) float64 { return r.DurationActual }},
		{Name: "rental_rate_per_day", Reducers: []Reducer{Mean}, Value: func(r models.RentalRecord) float64 { return r.RatePerDay }},
		{Name: "overdue_days", Reducers: []Reducer{Sum}, Value: func(r models.RentalRecord) float64 { return r.OverdueDays }},
		{Name: "rental_start_date", Reducers: []Reducer{Count}, Value: func(r models.RentalRecord) float64 { return float64(r.StartDate.Unix()) }},
	},
	Precision: 2,
}

var maintenanceSpec = Spec[models.MaintenanceRecord]{
	Table:    models.TableMaintenance,
	KeyField: "equipment_id",
	Key:      func(m models.MaintenanceRecord) string { return m.EquipmentID },
	Fields: []Field[models.MaintenanceRecord]{
		{Name: "cost", Reducers: []Reducer{Sum}, Value: func(m models.MaintenanceRecord) float64 { return m.Cost }},
		{Name: "downtime_hours", Reducers: []Reducer{Sum}, Value: func(m models.MaintenanceRecord) float64 { return m.DowntimeHours }},
		{Name: "maintenance_score", Reducers: []Reducer{Mean}, Value: func(m models.MaintenanceRecord) float64 { return m.Score }},
		{Name: "maintenance_date", Reducers: []Reducer{Count}, Value: func(m models.MaintenanceRecord) float64 { return float64(m.Date.Unix()) }},
	},
	Precision: 2,
	Derive: func(s Summary) {
		s[ColNeedsMaintenance] = boolToFloat(NeedsMaintenance(s[ColMaintenanceScore], s[ColMaintenanceCostSum]))
	},
}

var anomalySpec = Spec[models.AnomalyLogEntry]{
	Table:    models.TableAnomalies,
	KeyField: "equipment_id",
	Key:      func(a models.AnomalyLogEntry) string { return a.EquipmentID },
	Fields: []Field[models.AnomalyLogEntry]{
		{Name: "anomaly_score", Reducers: []Reducer{Mean}, Value: func(a models.AnomalyLogEntry) float64 { return a.Score }},
		{Name: "anomaly_id", Reducers: []Reducer{Count}, Value: func(models.AnomalyLogEntry) float64 { return 1 }},
	},
	Precision: 3,
	Derive: func(s Summary) {
		s[ColIsAnomaly] = boolToFloat(s[ColAnomalyCount] > 0)
	},
}

// Usage сворачивает телеметрию по equipment_id
func Usage(events []models.UsageEvent) (*Table, error) {
	return Aggregate(events, usageSpec)
}

// Rentals сворачивает аренды по equipment_id
func Rentals(records []models.RentalRecord) (*Table, error) {
	return Aggregate(records, rentalSpec)
}

// Maintenance сворачивает обслуживание и выставляет needs_maintenance
func Maintenance(records []models.MaintenanceRecord) (*Table, error) {
	return Aggregate(records, maintenanceSpec)
}

// Anomalies сворачивает журнал аномалий и выставляет is_anomaly
func Anomalies(entries []models.AnomalyLogEntry) (*Table, error) {
	return Aggregate(entries, anomalySpec)
}
