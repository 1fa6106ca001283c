package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-insight/internal/models"
	"equipment-insight/internal/preprocess"
)

func baselineRows() []models.FeatureRow {
	return []models.FeatureRow{
		{Category: "Excavator", Location: "Chicago", Month: 3, Demand: 10, RentalDuration: 20, NeedsMaintenance: 1},
		{Category: "Excavator", Location: "Chicago", Month: 3, Demand: 14, RentalDuration: 10, NeedsMaintenance: 0},
		{Category: "Excavator", Location: "Phoenix", Month: 4, Demand: 6, RentalDuration: 30, NeedsMaintenance: 1},
		{Category: "Compressor", Location: "Houston", Month: 8, Demand: 2, RentalDuration: 7, NeedsMaintenance: 0},
	}
}

func TestBaselineLookups(t *testing.T) {
	b := FitBaseline(baselineRows())
	ctx := context.Background()

	demand, err := b.Forecaster.Forecast(ctx, ServiceFeatures{Category: "Excavator", Month: 3})
	require.NoError(t, err)
	assert.Equal(t, 12.0, demand)

	demand, _ = b.Forecaster.Forecast(ctx, ServiceFeatures{Category: "Excavator", Month: 12})
	assert.Equal(t, 10.0, demand, "falls back to category mean")

	demand, _ = b.Forecaster.Forecast(ctx, ServiceFeatures{Category: "Widget", Month: 1})
	assert.Equal(t, 8.0, demand, "falls back to global mean")

	p, _ := b.Maintenance.PredictMaintenance(ctx, ServiceFeatures{Category: "Excavator"})
	assert.InDelta(t, 2.0/3, p, 1e-12)
	p, _ = b.Maintenance.PredictMaintenance(ctx, ServiceFeatures{Category: "Compressor"})
	assert.Equal(t, 0.0, p)

	d, _ := b.Duration.PredictDuration(ctx, ServiceFeatures{Category: "Excavator", Location: "Chicago"})
	assert.Equal(t, 15.0, d)
	d, _ = b.Duration.PredictDuration(ctx, ServiceFeatures{Category: "Excavator", Location: "Unknown"})
	assert.Equal(t, 20.0, d)
}

func TestBaselineOnEmptyRows(t *testing.T) {
	b := FitBaseline(nil)
	v, err := b.Forecaster.Forecast(context.Background(), ServiceFeatures{Category: "Excavator"})
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestExtract(t *testing.T) {
	rows := baselineRows()
	categories := preprocess.FitEncoder([]string{"Excavator", "Compressor"})
	locations := preprocess.FitEncoder([]string{"Chicago", "Phoenix", "Houston"})

	f := Extract(rows[2], categories, locations)
	assert.Equal(t, 1, f.CategoryEncoded)
	assert.Equal(t, 2, f.LocationEncoded)
	assert.Equal(t, "Phoenix", f.Location)
	assert.Equal(t, 4, f.Month)
}
