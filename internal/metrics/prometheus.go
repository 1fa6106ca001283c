// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipment_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equipment_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"endpoint", "method"},
	)

	// BatchRuns количество пакетных прогонов по итоговому состоянию
	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipment_batch_runs_total",
			Help: "Total number of batch runs by terminal state",
		},
		[]string{"state"},
	)

	// IntegratedRows строк признаков в последнем прогоне
	IntegratedRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "equipment_integrated_rows",
			Help: "Feature rows produced by the last batch integration",
		},
	)

	// CoercionFallbacks замены нечисловых значений нулем
	CoercionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipment_coercion_fallbacks_total",
			Help: "Numeric values replaced by zero during feature coercion",
		},
		[]string{"column"},
	)

	// FitDuration время обучения модели аномалий
	FitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "equipment_fit_duration_seconds",
			Help:    "Anomaly model fit duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// InferenceLatency время онлайн-оценки одной записи
	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "equipment_inference_latency_seconds",
			Help:    "Single record inference latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)

	// InferenceRequests количество запросов инференса по исходу
	InferenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipment_inference_requests_total",
			Help: "Inference requests by outcome",
		},
		[]string{"outcome"},
	)

	// AnomaliesDetected количество обнаруженных аномалий
	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipment_anomalies_detected_total",
			Help: "Total number of anomalies detected at inference",
		},
	)

	// RiskTiers распределение уровней риска
	RiskTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipment_risk_tier_total",
			Help: "Risk assessments by tier",
		},
		[]string{"tier"},
	)

	// EvaluationScore качество модели на исторической разметке
	EvaluationScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "equipment_evaluation_score",
			Help: "Last batch evaluation against historical anomaly labels",
		},
		[]string{"metric"},
	)

	// CacheHits попадания в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipment_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses промахи кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipment_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)
)

// UpdateEvaluationMetrics обновляет метрики качества после пакетного прогона
func UpdateEvaluationMetrics(precision, recall, f1 float64) {
	EvaluationScore.WithLabelValues("precision").Set(precision)
	EvaluationScore.WithLabelValues("recall").Set(recall)
	EvaluationScore.WithLabelValues("f1").Set(f1)
}

// ObserveAssessment учитывает результат онлайн-оценки
func ObserveAssessment(tier string, isAnomaly bool) {
	RiskTiers.WithLabelValues(tier).Inc()
	if isAnomaly {
		AnomaliesDetected.Inc()
	}
}
