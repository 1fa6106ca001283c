// Package models содержит структуры данных входных таблиц, строки признаков
// и результатов оценки риска
package models

import "time"

// Equipment запись справочника техники
type Equipment struct {
	ID              string `json:"equipment_id"`
	Category        string `json:"equipment_type"`
	ManufactureYear int    `json:"year_manufactured"`
}

// UsageEvent показание телеметрии единицы техники
type UsageEvent struct {
	EquipmentID         string    `json:"equipment_id"`
	Timestamp           time.Time `json:"timestamp"`
	RuntimeHoursTotal   float64   `json:"runtime_hours_total"`
	IdleHours           float64   `json:"idle_hours"`
	FuelConsumptionRate float64   `json:"fuel_consumption_rate"`
	EngineTemperature   float64   `json:"engine_temperature"`
	IsOperating         bool      `json:"is_operating"`
}

// RentalRecord запись об аренде
type RentalRecord struct {
	EquipmentID    string    `json:"equipment_id"`
	StartDate      time.Time `json:"rental_start_date"`
	EndDate        time.Time `json:"rental_end_date_actual"`
	DurationActual float64   `json:"rental_duration_actual"`
	RatePerDay     float64   `json:"rental_rate_per_day"`
	OverdueDays    float64   `json:"overdue_days"`
}

// MaintenanceRecord запись об обслуживании. Score по шкале 0-10, больше - лучше
type MaintenanceRecord struct {
	EquipmentID   string    `json:"equipment_id"`
	Date          time.Time `json:"maintenance_date"`
	Cost          float64   `json:"cost"`
	DowntimeHours float64   `json:"downtime_hours"`
	Score         float64   `json:"maintenance_score"`
}

// AnomalyLogEntry историческая запись журнала аномалий
type AnomalyLogEntry struct {
	EquipmentID string  `json:"equipment_id"`
	AnomalyID   string  `json:"anomaly_id"`
	Score       float64 `json:"anomaly_score"`
}

// DemandRecord история спроса по категории и городу
type DemandRecord struct {
	Category    string    `json:"equipment_type"`
	City        string    `json:"city"`
	Date        time.Time `json:"date"`
	Month       int       `json:"month"`
	DemandCount float64   `json:"demand_count"`
}

// SourceTables набор входных таблиц одного прогона
type SourceTables struct {
	Equipment   []Equipment         `json:"equipment"`
	Usage       []UsageEvent        `json:"usage"`
	Rentals     []RentalRecord      `json:"rentals"`
	Maintenance []MaintenanceRecord `json:"maintenance"`
	Anomalies   []AnomalyLogEntry   `json:"anomalies"`
	Demand      []DemandRecord      `json:"demand"`
}

// Имена таблиц для отчетов об ошибках
const (
	TableEquipment   = "equipment"
	TableUsage       = "equipment_usage"
	TableRentals     = "rentals"
	TableMaintenance = "maintenance_records"
	TableAnomalies   = "anomalies"
	TableDemand      = "demand_history"
)
