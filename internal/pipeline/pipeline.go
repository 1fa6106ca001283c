// Package pipeline связывает агрегацию, интеграцию признаков, модель аномалий
// и интерпретацию риска в пакетный и онлайн пути.
//
// Пакетный путь возвращает неизменяемый TrainedArtifacts, онлайн путь получает его
// явно. Оба пути используют одни и те же функции интегратора и модели
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"equipment-insight/internal/aggregate"
	"equipment-insight/internal/anomaly"
	"equipment-insight/internal/features"
	"equipment-insight/internal/metrics"
	"equipment-insight/internal/models"
	"equipment-insight/internal/preprocess"
	"equipment-insight/internal/services"
	"equipment-insight/internal/synthetic"
)

// State конечное состояние пакетного прогона
type State string

const (
	StateTrained State = "trained"
	StateFailed  State = "failed"
)

// Этапы пакетного прогона
const (
	StageLoad       = "load"
	StageAggregate  = "aggregate"
	StageIntegrate  = "integrate"
	StagePreprocess = "preprocess"
	StageFit        = "fit"
	StageEvaluate   = "evaluate"
	StageServices   = "services"
)

// TrainedArtifacts результат обучения. Не изменяется после создания
type TrainedArtifacts struct {
	RunID         string
	TrainedAt     time.Time
	TrainingRows  int
	FeatureSubset []string
	// FeatureVersion версия набора признаков модели
	FeatureVersion string
	Scaler         *preprocess.Scaler
	Model          *anomaly.Scorer
	Categories     preprocess.CategoryEncoder
	Locations      preprocess.CategoryEncoder
	Demand         *aggregate.DemandIndex
	Seasonal       features.SeasonalTable
	Services       services.Bundle
	Evaluation     Evaluation
}

// BatchReport отчет пакетного прогона
type BatchReport struct {
	RunID          string              `json:"run_id"`
	State          State               `json:"state"`
	FeatureVersion string              `json:"feature_version,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration"`
	Summary        DataSummary         `json:"summary"`
	Evaluation     Evaluation          `json:"evaluation"`
	Analysis       UtilizationAnalysis `json:"analysis"`
	Error          string              `json:"error,omitempty"`
}

// BatchResult итог пакетного прогона
type BatchResult struct {
	Artifacts *TrainedArtifacts
	Report    BatchReport
	Rows      []models.FeatureRow
}

// ServiceFitter обучает внешние модели на строках признаков
type ServiceFitter func(rows []models.FeatureRow) services.Bundle

// Orchestrator выполняет пакетный и онлайн пути
type Orchestrator struct {
	integrator *features.Integrator
	anomalyCfg anomaly.Config
	subset     []string
	fitter     ServiceFitter
	logger     *zap.Logger
}

// Option настройка оркестратора
type Option func(*Orchestrator)

// WithIntegrator заменяет интегратор признаков
func WithIntegrator(in *features.Integrator) Option {
	return func(o *Orchestrator) { o.integrator = in }
}

// WithServiceFitter заменяет обучение внешних моделей
func WithServiceFitter(f ServiceFitter) Option {
	return func(o *Orchestrator) { o.fitter = f }
}

// WithFeatureSubset заменяет набор признаков модели
func WithFeatureSubset(subset []string) Option {
	return func(o *Orchestrator) { o.subset = append([]string(nil), subset...) }
}

// NewOrchestrator создает оркестратор
func NewOrchestrator(cfg anomaly.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		anomalyCfg: cfg,
		subset:     anomaly.FeatureSubset,
		fitter:     services.FitBaseline,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.integrator == nil {
		o.integrator = features.NewIntegrator(logger, features.WithFallbackHook(func(column string) {
			metrics.CoercionFallbacks.WithLabelValues(column).Inc()
		}))
	}
	return o
}

// Integrator возвращает интегратор, общий для обоих путей
func (o *Orchestrator) Integrator() *features.Integrator {
	return o.integrator
}

// RunFromSource загружает таблицы из источника и выполняет пакетный прогон
func (o *Orchestrator) RunFromSource(ctx context.Context, src synthetic.Source) (*BatchResult, error) {
	tables, err := src.Load(ctx)
	if err != nil {
		err = &models.StageError{Stage: StageLoad, Err: err}
		metrics.BatchRuns.WithLabelValues(string(StateFailed)).Inc()
		return &BatchResult{Report: BatchReport{State: StateFailed, Error: err.Error()}}, err
	}
	return o.RunBatch(ctx, tables)
}

// RunBatch агрегирует источники, строит признаки, обучает модель и оценивает
// ее по исторической разметке
func (o *Orchestrator) RunBatch(ctx context.Context, tables *models.SourceTables) (*BatchResult, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := o.logger.With(zap.String("run_id", runID))

	result := &BatchResult{Report: BatchReport{RunID: runID, StartedAt: started}}
	fail := func(err error) (*BatchResult, error) {
		result.Report.State = StateFailed
		result.Report.Error = err.Error()
		result.Report.Duration = time.Since(started)
		metrics.BatchRuns.WithLabelValues(string(StateFailed)).Inc()
		log.Error("batch run failed", zap.Error(err))
		return result, err
	}

	if tables == nil {
		return fail(&models.StageError{Stage: StageLoad, Err: fmt.Errorf("no source tables")})
	}

	// агрегация
	usage, err := aggregate.Usage(tables.Usage)
	if err != nil {
		return fail(&models.StageError{Stage: StageAggregate, Table: models.TableUsage, Err: err})
	}
	rentals, err := aggregate.Rentals(tables.Rentals)
	if err != nil {
		return fail(&models.StageError{Stage: StageAggregate, Table: models.TableRentals, Err: err})
	}
	maintenance, err := aggregate.Maintenance(tables.Maintenance)
	if err != nil {
		return fail(&models.StageError{Stage: StageAggregate, Table: models.TableMaintenance, Err: err})
	}
	anomalies, err := aggregate.Anomalies(tables.Anomalies)
	if err != nil {
		return fail(&models.StageError{Stage: StageAggregate, Table: models.TableAnomalies, Err: err})
	}
	demand, err := aggregate.Demand(tables.Demand)
	if err != nil {
		return fail(&models.StageError{Stage: StageAggregate, Table: models.TableDemand, Err: err})
	}
	log.Info("sources aggregated",
		zap.Int("usage", usage.Len()),
		zap.Int("rentals", rentals.Len()),
		zap.Int("maintenance", maintenance.Len()),
		zap.Int("anomalies", anomalies.Len()),
		zap.Int("demand", demand.Len()),
	)

	// интеграция
	rows, err := o.integrator.Integrate(tables.Equipment, usage, rentals, maintenance, anomalies, demand)
	if err != nil {
		return fail(&models.StageError{Stage: StageIntegrate, Table: models.TableEquipment, Err: err})
	}
	if len(rows) == 0 {
		return fail(&models.StageError{Stage: StageIntegrate, Table: models.TableEquipment, Err: fmt.Errorf("equipment master is empty")})
	}
	result.Rows = rows
	metrics.IntegratedRows.Set(float64(len(rows)))
	log.Info("features integrated", zap.Int("rows", len(rows)))

	// предобработка
	scaler, err := preprocess.FitScaler(rows, preprocess.ScaledColumns)
	if err != nil {
		return fail(&models.StageError{Stage: StagePreprocess, Err: err})
	}
	scaled := scaler.TransformAll(rows)
	categories := make([]string, len(rows))
	locations := make([]string, len(rows))
	for i, r := range rows {
		categories[i] = r.Category
		locations[i] = r.Location
	}

	// обучение
	fitStart := time.Now()
	model, err := anomaly.Fit(ctx, scaled, o.subset, o.anomalyCfg, log)
	if err != nil {
		return fail(&models.StageError{Stage: StageFit, Err: err})
	}
	metrics.FitDuration.Observe(time.Since(fitStart).Seconds())

	// оценка
	scores, err := model.ScoreAll(scaled)
	if err != nil {
		return fail(&models.StageError{Stage: StageEvaluate, Err: err})
	}
	predicted := make([]bool, len(scores))
	labels := make([]int, len(rows))
	for i, s := range scores {
		predicted[i] = anomaly.IsAnomaly(s)
		labels[i] = rows[i].IsAnomaly
	}
	evaluation := Evaluate(labels, predicted)
	metrics.UpdateEvaluationMetrics(evaluation.Precision, evaluation.Recall, evaluation.F1)

	bundle := o.fitter(rows)
	if bundle.Forecaster == nil || bundle.Maintenance == nil || bundle.Duration == nil {
		return fail(&models.StageError{Stage: StageServices, Err: fmt.Errorf("incomplete service bundle")})
	}

	result.Artifacts = &TrainedArtifacts{
		RunID:          runID,
		TrainedAt:      time.Now(),
		TrainingRows:   len(rows),
		FeatureSubset:  model.Subset(),
		FeatureVersion: model.Version(),
		Scaler:         scaler,
		Model:          model,
		Categories:     preprocess.FitEncoder(categories),
		Locations:      preprocess.FitEncoder(locations),
		Demand:         demand,
		Seasonal:       features.BuildSeasonalTable(rows),
		Services:       bundle,
		Evaluation:     evaluation,
	}
	result.Report.State = StateTrained
	result.Report.FeatureVersion = model.Version()
	result.Report.Summary = Summarize(rows)
	result.Report.Evaluation = evaluation
	result.Report.Analysis = AnalyzeDetected(rows, predicted)
	result.Report.Duration = time.Since(started)
	metrics.BatchRuns.WithLabelValues(string(StateTrained)).Inc()

	log.Info("batch run trained",
		zap.String("feature_version", model.Version()),
		zap.Float64("precision", evaluation.Precision),
		zap.Float64("recall", evaluation.Recall),
		zap.Float64("f1", evaluation.F1),
		zap.Int("detected", evaluation.TotalAnomalies),
		zap.Duration("elapsed", result.Report.Duration),
	)
	return result, nil
}
