package models

import "time"

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Model     string    `json:"model"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	TrainedAt         time.Time `json:"trained_at,omitempty"`
	RunID             string    `json:"run_id,omitempty"`
	FeatureVersion    string    `json:"feature_version,omitempty"`
	TrainingRows      int       `json:"training_rows"`
	InferenceRequests int64     `json:"inference_requests"`
	AnomaliesCount    int64     `json:"anomalies_count"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1                float64   `json:"f1"`
}
