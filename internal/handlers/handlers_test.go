package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipment-insight/internal/anomaly"
	"equipment-insight/internal/cache"
	"equipment-insight/internal/models"
	"equipment-insight/internal/pipeline"
	"equipment-insight/internal/synthetic"
)

func testSources(req TrainRequest) synthetic.Source {
	cfg := synthetic.DefaultConfig()
	cfg.Equipment = 150
	if req.Equipment > 0 {
		cfg.Equipment = req.Equipment
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	return synthetic.NewGenerator(cfg)
}

func newTestServer(t *testing.T, c Cache) (*Handler, *mux.Router) {
	t.Helper()
	cfg := anomaly.DefaultConfig()
	cfg.Estimators = 30
	o := pipeline.NewOrchestrator(cfg, zap.NewNop())
	h := NewHandler(o, testSources, c, zap.NewNop())
	router := mux.NewRouter()
	h.Register(router)
	return h, router
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPredictBeforeTraining(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := do(t, router, http.MethodPost, "/predict", models.InferenceRequest{Category: "Excavator"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodPost, "/predict/batch", models.InferenceBatch{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "not_trained", health.Model)
	assert.Equal(t, "disconnected", health.Redis)
}

func TestTrainAndPredict(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := do(t, router, http.MethodPost, "/train", TrainRequest{Equipment: 120})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report pipeline.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, pipeline.StateTrained, report.State)
	assert.Equal(t, 120, report.Summary.Rows)

	rec = do(t, router, http.MethodPost, "/predict", models.InferenceRequest{
		EquipmentID: "NEW-1",
		Category:    "Excavator",
		UsageHours:  40,
		Month:       4,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.InferenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NEW-1", resp.EquipmentID)
	assert.NotEmpty(t, resp.RiskTier)
	assert.Equal(t, 4, resp.Features.Month)

	rec = do(t, router, http.MethodPost, "/predict", models.InferenceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/features/CAT00003", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var row models.FeatureRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "CAT00003", row.EquipmentID)

	rec = do(t, router, http.MethodGet, "/features/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 120, stats.TrainingRows)
	assert.Equal(t, int64(1), stats.InferenceRequests)
	assert.Equal(t, report.RunID, stats.RunID)
	assert.Equal(t, report.FeatureVersion, stats.FeatureVersion)
	assert.NotEmpty(t, stats.FeatureVersion)
}

func TestBatchPredictReportsPerItemErrors(t *testing.T) {
	h, router := newTestServer(t, nil)
	_, err := h.Train(context.Background(), TrainRequest{})
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/predict/batch", models.InferenceBatch{Requests: []models.InferenceRequest{
		{Category: "Compressor", UsageHours: 10},
		{},
		{Category: "Bulldozer", DowntimeHours: 300},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Processed int                       `json:"processed"`
		Failed    int                       `json:"failed"`
		Results   []models.InferenceOutcome `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Processed)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Results, 3)
	assert.NotNil(t, body.Results[0].Response)
	assert.NotEmpty(t, body.Results[1].Error)
	assert.NotNil(t, body.Results[2].Response)
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, router := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/train", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/train", TrainRequest{Equipment: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainConflict(t *testing.T) {
	h, router := newTestServer(t, nil)
	h.training.Lock()
	defer h.training.Unlock()

	rec := do(t, router, http.MethodPost, "/train", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssessmentsFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), mr.Addr(), "", 0, 0)
	require.NoError(t, err)
	defer rc.Close()

	h, router := newTestServer(t, rc)
	_, err = h.Train(context.Background(), TrainRequest{Equipment: 100})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/features/CAT00001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/predict", models.InferenceRequest{EquipmentID: "CAT00001", Category: "Excavator"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.InferenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = do(t, router, http.MethodGet, "/assessments/CAT00001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cached models.InferenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	assert.Equal(t, resp.RequestID, cached.RequestID)

	rec = do(t, router, http.MethodGet, "/assessments/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/assessments/latest?count=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest []models.InferenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Len(t, latest, 1)

	rec = do(t, router, http.MethodGet, "/health", nil)
	var health models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "connected", health.Redis)
	assert.Equal(t, "trained", health.Model)
}

func TestAssessmentsWithoutCache(t *testing.T) {
	_, router := newTestServer(t, nil)
	rec := do(t, router, http.MethodGet, "/assessments/CAT00001", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
