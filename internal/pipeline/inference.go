package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"equipment-insight/internal/insight"
	"equipment-insight/internal/metrics"
	"equipment-insight/internal/models"
	"equipment-insight/internal/services"
)

// MaintenanceDecisionThreshold вероятность, начиная с которой нужна диагностика
const MaintenanceDecisionThreshold = 0.5

// Infer оценивает одну запись обученными артефактами. Артефакты только читаются
func (o *Orchestrator) Infer(ctx context.Context, art *TrainedArtifacts, req models.InferenceRequest) (*models.InferenceResponse, error) {
	if art == nil || art.Model == nil || art.Scaler == nil {
		return nil, models.ErrNotTrained
	}
	start := time.Now()

	row, err := o.integrator.DeriveRequest(req, art.Demand, art.Seasonal)
	if err != nil {
		return nil, err
	}

	score, err := art.Model.Score(art.Scaler.Transform(row))
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	assessment := insight.Translate(score, row)

	sf := services.Extract(row, art.Categories, art.Locations)
	demand, err := art.Services.Forecaster.Forecast(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	maintenance, err := art.Services.Maintenance.PredictMaintenance(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("predict maintenance: %w", err)
	}
	duration, err := art.Services.Duration.PredictDuration(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("predict duration: %w", err)
	}

	resp := &models.InferenceResponse{
		RequestID:               uuid.NewString(),
		EquipmentID:             req.EquipmentID,
		PredictedDemand:         max(0, truncate(demand)),
		AnomalyScore:            score,
		IsAnomaly:               assessment.IsAnomaly,
		RiskTier:                assessment.Tier,
		Recommendation:          assessment.Recommendation,
		Warnings:                assessment.Warnings,
		MaintenanceProbability:  maintenance,
		NeedsMaintenance:        maintenance > MaintenanceDecisionThreshold,
		PredictedRentalDuration: max(1, truncate(duration)),
		Assessment:              assessment,
		Features:                row,
		Timestamp:               time.Now(),
	}

	metrics.InferenceLatency.Observe(time.Since(start).Seconds())
	metrics.ObserveAssessment(string(assessment.Tier), assessment.IsAnomaly)
	return resp, nil
}

// InferBatch оценивает каждую запись независимо. Ошибка или паника одной
// записи не влияет на остальные
func (o *Orchestrator) InferBatch(ctx context.Context, art *TrainedArtifacts, reqs []models.InferenceRequest) []models.InferenceOutcome {
	out := make([]models.InferenceOutcome, len(reqs))
	for i, req := range reqs {
		out[i] = o.inferIsolated(ctx, art, i, req)
	}
	return out
}

func (o *Orchestrator) inferIsolated(ctx context.Context, art *TrainedArtifacts, i int, req models.InferenceRequest) (outcome models.InferenceOutcome) {
	outcome.Index = i
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("inference panic", zap.Int("index", i), zap.Any("panic", r))
			metrics.InferenceRequests.WithLabelValues("panic").Inc()
			outcome.Response = nil
			outcome.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	resp, err := o.Infer(ctx, art, req)
	if err != nil {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		outcome.Error = err.Error()
		return outcome
	}
	metrics.InferenceRequests.WithLabelValues("ok").Inc()
	outcome.Response = resp
	return outcome
}

// truncate отбрасывает дробную часть. Значения вне диапазона int ограничиваются
func truncate(v float64) int {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v >= math.MaxInt:
		return math.MaxInt
	case v <= math.MinInt:
		return math.MinInt
	}
	return int(v)
}
