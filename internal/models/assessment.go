package models

import "time"

// RiskTier уровень риска по аномальному скору
type RiskTier string

const (
	RiskHigh   RiskTier = "High"
	RiskMedium RiskTier = "Medium"
	RiskLow    RiskTier = "Low"
	RiskNormal RiskTier = "Normal"
)

// UtilizationMetrics показатели загрузки, на которые опираются предупреждения
type UtilizationMetrics struct {
	UtilizationRate     float64 `json:"utilization_rate"`
	IdleRate            float64 `json:"idle_rate"`
	CapacityUtilization float64 `json:"capacity_utilization"`
	WorkIntensity       float64 `json:"work_intensity"`
}

// RiskAssessment интерпретируемый результат оценки одной строки
type RiskAssessment struct {
	Score          float64            `json:"anomaly_score"`
	IsAnomaly      bool               `json:"is_anomaly"`
	Confidence     float64            `json:"confidence"`
	Tier           RiskTier           `json:"risk_tier"`
	Recommendation string             `json:"recommendation"`
	Warnings       []string           `json:"warnings"`
	Utilization    UtilizationMetrics `json:"utilization_metrics"`
}

// InferenceRequest частичная запись о технике для онлайн-оценки.
// Необязательные поля заменяются значениями по умолчанию
type InferenceRequest struct {
	EquipmentID         string   `json:"equipment_id,omitempty"`
	Category            string   `json:"equipment_type"`
	Location            string   `json:"location,omitempty"`
	ManufactureYear     int      `json:"year_manufactured,omitempty"`
	AgeMonths           *float64 `json:"age_months,omitempty"`
	UsageHours          float64  `json:"usage_hours"`
	FuelConsumptionRate float64  `json:"fuel_consumption_rate"`
	DowntimeHours       float64  `json:"downtime_hours"`
	RentalDuration      *float64 `json:"rental_duration,omitempty"`
	MaintenanceScore    *float64 `json:"maintenance_score,omitempty"`
	MaintenanceCost     float64  `json:"maintenance_cost,omitempty"`
	Month               int      `json:"month,omitempty"`
	Demand              *float64 `json:"demand,omitempty"`
}

// InferenceResponse итоговый набор предсказаний по одной единице техники
type InferenceResponse struct {
	RequestID               string         `json:"request_id"`
	EquipmentID             string         `json:"equipment_id,omitempty"`
	PredictedDemand         int            `json:"predicted_demand"`
	AnomalyScore            float64        `json:"anomaly_score"`
	IsAnomaly               bool           `json:"is_anomaly"`
	RiskTier                RiskTier       `json:"risk_tier"`
	Recommendation          string         `json:"recommendation"`
	Warnings                []string       `json:"warnings"`
	MaintenanceProbability  float64        `json:"maintenance_probability"`
	NeedsMaintenance        bool           `json:"needs_maintenance"`
	PredictedRentalDuration int            `json:"predicted_rental_duration"`
	Assessment              RiskAssessment `json:"utilization_analysis"`
	Features                FeatureRow     `json:"features"`
	Timestamp               time.Time      `json:"timestamp"`
}

// InferenceBatch пакет запросов на инференс
type InferenceBatch struct {
	Requests []InferenceRequest `json:"requests"`
}

// InferenceOutcome результат одного запроса из пакета: ответ либо ошибка
type InferenceOutcome struct {
	Index    int                `json:"index"`
	Response *InferenceResponse `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}
