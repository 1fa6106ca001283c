// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"equipment-insight/internal/cache"
	"equipment-insight/internal/metrics"
	"equipment-insight/internal/models"
	"equipment-insight/internal/pipeline"
	"equipment-insight/internal/synthetic"
)

// MaxBatchSize предел запросов в одном пакете инференса
const MaxBatchSize = 1000

// Cache хранилище признаков и оценок
type Cache interface {
	CacheFeatureRows(ctx context.Context, rows []models.FeatureRow) error
	GetFeatures(ctx context.Context, equipmentID string) (models.FeatureRow, error)
	CacheAssessment(ctx context.Context, resp *models.InferenceResponse) error
	GetAssessment(ctx context.Context, id string) (*models.InferenceResponse, error)
	LatestAssessments(ctx context.Context, count int64) ([]models.InferenceResponse, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}

// SourceFactory строит источник таблиц для запроса обучения
type SourceFactory func(req TrainRequest) synthetic.Source

// TrainRequest параметры запроса POST /train
type TrainRequest struct {
	Equipment int   `json:"equipment,omitempty"`
	Seed      int64 `json:"seed,omitempty"`
}

// snapshot результат последнего успешного обучения
type snapshot struct {
	artifacts *pipeline.TrainedArtifacts
	report    pipeline.BatchReport
	rows      map[string]models.FeatureRow
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	orchestrator *pipeline.Orchestrator
	sources      SourceFactory
	cache        Cache
	logger       *zap.Logger
	startTime    time.Time

	current  atomic.Pointer[snapshot]
	training sync.Mutex

	inferenceCount atomic.Int64
	anomalyCount   atomic.Int64
}

// NewHandler создает новый обработчик. cache может быть nil
func NewHandler(o *pipeline.Orchestrator, sources SourceFactory, c Cache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		orchestrator: o,
		sources:      sources,
		cache:        c,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Register регистрирует маршруты API
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/train", h.TrainHandler).Methods(http.MethodPost)
	router.HandleFunc("/predict", h.PredictHandler).Methods(http.MethodPost)
	router.HandleFunc("/predict/batch", h.BatchPredictHandler).Methods(http.MethodPost)
	router.HandleFunc("/features/{id}", h.FeaturesHandler).Methods(http.MethodGet)
	router.HandleFunc("/assessments/latest", h.LatestAssessmentsHandler).Methods(http.MethodGet)
	router.HandleFunc("/assessments/{id}", h.AssessmentHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
}

// Train выполняет пакетный прогон и публикует новые артефакты.
// Параллельные прогоны не допускаются
func (h *Handler) Train(ctx context.Context, req TrainRequest) (*pipeline.BatchResult, error) {
	if !h.training.TryLock() {
		return nil, errTrainingInProgress
	}
	defer h.training.Unlock()

	result, err := h.orchestrator.RunFromSource(ctx, h.sources(req))
	if err != nil {
		return result, err
	}

	rows := make(map[string]models.FeatureRow, len(result.Rows))
	for _, r := range result.Rows {
		rows[r.EquipmentID] = r
	}
	h.current.Store(&snapshot{artifacts: result.Artifacts, report: result.Report, rows: rows})

	if h.cache != nil {
		if err := h.cache.CacheFeatureRows(ctx, result.Rows); err != nil {
			h.logger.Warn("failed to cache feature rows", zap.Error(err))
		}
	}
	return result, nil
}

var errTrainingInProgress = errors.New("training already in progress")

// Artifacts текущие обученные артефакты или nil
func (h *Handler) Artifacts() *pipeline.TrainedArtifacts {
	if s := h.current.Load(); s != nil {
		return s.artifacts
	}
	return nil
}

// TrainHandler обрабатывает POST /train - пакетный прогон
func (h *Handler) TrainHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/train", r.Method))
	defer timer.ObserveDuration()

	var req TrainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			metrics.RequestsTotal.WithLabelValues("/train", r.Method, "400").Inc()
			return
		}
	}
	if req.Equipment < 0 {
		h.respondError(w, "equipment must be positive", http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/train", r.Method, "400").Inc()
		return
	}

	result, err := h.Train(r.Context(), req)
	switch {
	case errors.Is(err, errTrainingInProgress):
		h.respondError(w, err.Error(), http.StatusConflict)
		metrics.RequestsTotal.WithLabelValues("/train", r.Method, "409").Inc()
		return
	case errors.Is(err, models.ErrResourceExhausted):
		h.respondError(w, err.Error(), http.StatusInsufficientStorage)
		metrics.RequestsTotal.WithLabelValues("/train", r.Method, "507").Inc()
		return
	case err != nil:
		status := http.StatusInternalServerError
		var malformed *models.MalformedInputError
		if errors.As(err, &malformed) {
			status = http.StatusUnprocessableEntity
		}
		h.respondError(w, err.Error(), status)
		metrics.RequestsTotal.WithLabelValues("/train", r.Method, strconv.Itoa(status)).Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues("/train", r.Method, "200").Inc()
	h.respondJSON(w, result.Report, http.StatusOK)
}

// PredictHandler обрабатывает POST /predict - онлайн-оценка одной записи
func (h *Handler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/predict", r.Method))
	defer timer.ObserveDuration()

	var req models.InferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/predict", r.Method, "400").Inc()
		return
	}

	resp, err := h.orchestrator.Infer(r.Context(), h.Artifacts(), req)
	if err != nil {
		status := inferenceStatus(err)
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		h.respondError(w, err.Error(), status)
		metrics.RequestsTotal.WithLabelValues("/predict", r.Method, strconv.Itoa(status)).Inc()
		return
	}
	metrics.InferenceRequests.WithLabelValues("ok").Inc()
	h.record(r.Context(), resp)

	metrics.RequestsTotal.WithLabelValues("/predict", r.Method, "200").Inc()
	h.respondJSON(w, resp, http.StatusOK)
}

// BatchPredictHandler обрабатывает POST /predict/batch - пакетная оценка,
// ошибки отдельных записей возвращаются по месту
func (h *Handler) BatchPredictHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/predict/batch", r.Method))
	defer timer.ObserveDuration()

	var batch models.InferenceBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/predict/batch", r.Method, "400").Inc()
		return
	}
	if len(batch.Requests) > MaxBatchSize {
		h.respondError(w, "batch too large", http.StatusRequestEntityTooLarge)
		metrics.RequestsTotal.WithLabelValues("/predict/batch", r.Method, "413").Inc()
		return
	}

	art := h.Artifacts()
	if art == nil {
		h.respondError(w, models.ErrNotTrained.Error(), http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues("/predict/batch", r.Method, "503").Inc()
		return
	}

	outcomes := h.orchestrator.InferBatch(r.Context(), art, batch.Requests)
	anomalies, failed := 0, 0
	for _, o := range outcomes {
		if o.Response == nil {
			failed++
			continue
		}
		if o.Response.IsAnomaly {
			anomalies++
		}
		h.record(r.Context(), o.Response)
	}

	response := map[string]interface{}{
		"processed":       len(outcomes),
		"failed":          failed,
		"anomalies_found": anomalies,
		"results":         outcomes,
	}

	metrics.RequestsTotal.WithLabelValues("/predict/batch", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// FeaturesHandler обрабатывает GET /features/{id} - строка признаков из последнего прогона
func (h *Handler) FeaturesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/features", r.Method))
	defer timer.ObserveDuration()

	id := mux.Vars(r)["id"]

	if h.cache != nil {
		row, err := h.cache.GetFeatures(r.Context(), id)
		if err == nil {
			metrics.CacheHits.Inc()
			metrics.RequestsTotal.WithLabelValues("/features", r.Method, "200").Inc()
			h.respondJSON(w, row, http.StatusOK)
			return
		}
		metrics.CacheMisses.Inc()
	}

	if s := h.current.Load(); s != nil {
		if row, ok := s.rows[id]; ok {
			metrics.RequestsTotal.WithLabelValues("/features", r.Method, "200").Inc()
			h.respondJSON(w, row, http.StatusOK)
			return
		}
	}

	h.respondError(w, "equipment not found: "+id, http.StatusNotFound)
	metrics.RequestsTotal.WithLabelValues("/features", r.Method, "404").Inc()
}

// AssessmentHandler обрабатывает GET /assessments/{id} - последняя оценка из кэша
func (h *Handler) AssessmentHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/assessments", r.Method))
	defer timer.ObserveDuration()

	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues("/assessments", r.Method, "503").Inc()
		return
	}

	id := mux.Vars(r)["id"]
	resp, err := h.cache.GetAssessment(r.Context(), id)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.CacheMisses.Inc()
		h.respondError(w, "assessment not found: "+id, http.StatusNotFound)
		metrics.RequestsTotal.WithLabelValues("/assessments", r.Method, "404").Inc()
		return
	case err != nil:
		h.respondError(w, "Failed to get assessment: "+err.Error(), http.StatusInternalServerError)
		metrics.RequestsTotal.WithLabelValues("/assessments", r.Method, "500").Inc()
		return
	}

	metrics.CacheHits.Inc()
	metrics.RequestsTotal.WithLabelValues("/assessments", r.Method, "200").Inc()
	h.respondJSON(w, resp, http.StatusOK)
}

// LatestAssessmentsHandler возвращает последние оценки из кэша
func (h *Handler) LatestAssessmentsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/assessments/latest", r.Method))
	defer timer.ObserveDuration()

	count := int64(50)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= cache.LatestAssessmentsLimit {
			count = c
		}
	}

	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues("/assessments/latest", r.Method, "503").Inc()
		return
	}

	latest, err := h.cache.LatestAssessments(r.Context(), count)
	if err != nil {
		h.respondError(w, "Failed to get assessments: "+err.Error(), http.StatusInternalServerError)
		metrics.RequestsTotal.WithLabelValues("/assessments/latest", r.Method, "500").Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues("/assessments/latest", r.Method, "200").Inc()
	h.respondJSON(w, latest, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.cache != nil && h.cache.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}
	modelStatus := "not_trained"
	if h.Artifacts() != nil {
		modelStatus = "trained"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Model:     modelStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	response := models.StatsResponse{
		InferenceRequests: h.inferenceCount.Load(),
		AnomaliesCount:    h.anomalyCount.Load(),
	}

	// Счетчики в Redis переживают перезапуск сервиса
	if h.cache != nil {
		if total, err := h.cache.GetCounter(r.Context(), cache.InferenceCounterKey); err == nil && total > 0 {
			response.InferenceRequests = total
		}
		if anomalies, err := h.cache.GetCounter(r.Context(), cache.AnomaliesCounterKey); err == nil && anomalies > 0 {
			response.AnomaliesCount = anomalies
		}
	}

	if s := h.current.Load(); s != nil {
		response.RunID = s.artifacts.RunID
		response.FeatureVersion = s.artifacts.FeatureVersion
		response.TrainedAt = s.artifacts.TrainedAt
		response.TrainingRows = s.artifacts.TrainingRows
		response.Precision = s.report.Evaluation.Precision
		response.Recall = s.report.Evaluation.Recall
		response.F1 = s.report.Evaluation.F1
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

func (h *Handler) record(ctx context.Context, resp *models.InferenceResponse) {
	h.inferenceCount.Add(1)
	if resp.IsAnomaly {
		h.anomalyCount.Add(1)
		h.logger.Info("anomaly detected",
			zap.String("equipment_id", resp.EquipmentID),
			zap.Float64("score", resp.AnomalyScore),
			zap.String("tier", string(resp.RiskTier)),
		)
	}
	if h.cache == nil {
		return
	}
	if err := h.cache.CacheAssessment(ctx, resp); err != nil {
		h.logger.Warn("failed to cache assessment", zap.Error(err))
	}
}

func inferenceStatus(err error) int {
	var malformed *models.MalformedInputError
	switch {
	case errors.Is(err, models.ErrNotTrained):
		return http.StatusServiceUnavailable
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
