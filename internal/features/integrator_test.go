package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"equipment-insight/internal/aggregate"
	"equipment-insight/internal/models"
)

var refDate = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return refDate }

func newTestIntegrator(opts ...Option) *Integrator {
	return NewIntegrator(zap.NewNop(), append([]Option{WithClock(fixedClock)}, opts...)...)
}

func ptr(v float64) *float64 { return &v }

type testSources struct {
	master      []models.Equipment
	usage       *aggregate.Table
	rentals     *aggregate.Table
	maintenance *aggregate.Table
	anomalies   *aggregate.Table
	demand      *aggregate.DemandIndex
}

func buildSources(t testing.TB) testSources {
	t.Helper()
	ts := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	usage, err := aggregate.Usage([]models.UsageEvent{
		{EquipmentID: "EX1", Timestamp: ts, RuntimeHoursTotal: 150, FuelConsumptionRate: 10},
		{EquipmentID: "EX1", Timestamp: ts.Add(24 * time.Hour), RuntimeHoursTotal: 200, FuelConsumptionRate: 12},
		{EquipmentID: "CO1", Timestamp: ts, RuntimeHoursTotal: 40, FuelConsumptionRate: 5},
	})
	require.NoError(t, err)
	rentals, err := aggregate.Rentals([]models.RentalRecord{
		{EquipmentID: "EX1", DurationActual: 20},
		{EquipmentID: "EX1", DurationActual: 10},
	})
	require.NoError(t, err)
	maintenance, err := aggregate.Maintenance([]models.MaintenanceRecord{
		{EquipmentID: "EX1", Cost: 15000, DowntimeHours: 30, Score: 9},
		{EquipmentID: "CO1", Cost: 500, DowntimeHours: 5, Score: 9},
	})
	require.NoError(t, err)
	anomalies, err := aggregate.Anomalies([]models.AnomalyLogEntry{{EquipmentID: "CO1", AnomalyID: "a", Score: 0.9}})
	require.NoError(t, err)
	demand, err := aggregate.Demand([]models.DemandRecord{
		{Category: "Excavator", City: "Chicago", Month: 3, DemandCount: 12},
		{Category: "Compressor", City: "Houston", Month: 8, DemandCount: 4},
	})
	require.NoError(t, err)

	return testSources{
		master: []models.Equipment{
			{ID: "EX1", Category: "Excavator", ManufactureYear: 2020},
			{ID: "CO1", Category: "Compressor", ManufactureYear: 2022},
			{ID: "WG1", Category: "Widget", ManufactureYear: 2023},
		},
		usage: usage, rentals: rentals, maintenance: maintenance, anomalies: anomalies, demand: demand,
	}
}

func (s testSources) integrate(t *testing.T, in *Integrator) []models.FeatureRow {
	t.Helper()
	rows, err := in.Integrate(s.master, s.usage, s.rentals, s.maintenance, s.anomalies, s.demand)
	require.NoError(t, err)
	return rows
}

func TestIntegrateDerivedFeatures(t *testing.T) {
	rows := buildSources(t).integrate(t, newTestIntegrator())
	require.Len(t, rows, 3)

	ex := rows[0]
	assert.Equal(t, "EX1", ex.EquipmentID)
	assert.Equal(t, 48.0, ex.AgeMonths)
	assert.Equal(t, 200.0, ex.UsageHours)
	assert.Equal(t, 15.0, ex.RentalDuration)
	assert.Equal(t, 11.0*200, ex.FuelConsumption)
	assert.Equal(t, 30.0, ex.DowntimeHours)
	assert.Equal(t, 1, ex.NeedsMaintenance)
	assert.Equal(t, 0, ex.IsAnomaly)
	assert.Equal(t, "Chicago", ex.Location)
	assert.Equal(t, 12.0, ex.Demand)
	assert.Equal(t, 3, ex.Month)
	assert.Equal(t, refDate.YearDay(), ex.DayOfYear)

	assert.InDelta(t, 100-30.0/201*10, ex.EfficiencyScore, 1e-9)
	assert.Equal(t, 360.0, ex.AvailableHours)
	assert.Equal(t, 170.0, ex.ProductiveHours)
	assert.Equal(t, 160.0, ex.IdleHours)
	assert.InDelta(t, 200.0/361, ex.UtilizationRate, 1e-9)
	assert.InDelta(t, 160.0/361, ex.IdleRate, 1e-9)
	assert.Equal(t, 180.0, ex.EquipmentCapacity)
	assert.InDelta(t, 170.0/16/180, ex.CapacityUtilization, 1e-9)
	assert.InDelta(t, 170.0/201, ex.WorkIntensity, 1e-9)
	assert.InDelta(t, 200.0/16, ex.OperatingHoursPerDay, 1e-9)
	assert.InDelta(t, 200.0/2201, ex.FuelEfficiency, 1e-9)
	assert.InDelta(t, 48.0/201, ex.AgeUsageRatio, 1e-9)
	assert.Equal(t, 12.0, ex.SeasonalDemand)
	assert.True(t, refDate.AddDate(0, 0, 15).Equal(ex.ReturnDate))

	co := rows[1]
	assert.Equal(t, 0, co.NeedsMaintenance, "score 9 with cost 500")
	assert.Equal(t, 1, co.IsAnomaly)
	assert.Equal(t, DefaultRentalDuration, co.RentalDuration)
}

func TestEquipmentWithoutHistory(t *testing.T) {
	rows := buildSources(t).integrate(t, newTestIntegrator())
	wg := rows[2]

	assert.Equal(t, "WG1", wg.EquipmentID)
	assert.Equal(t, 0.0, wg.UsageHours)
	assert.Equal(t, DefaultRentalDuration, wg.RentalDuration)
	assert.Equal(t, 336.0, wg.AvailableHours)
	assert.Equal(t, 0.0, wg.UtilizationRate)
	assert.InDelta(t, 336.0/337, wg.IdleRate, 1e-9)
	assert.InDelta(t, 0.997, wg.IdleRate, 1e-3)
	assert.Equal(t, DefaultCapacity, wg.EquipmentCapacity, "unknown category")
	assert.Equal(t, DefaultLocation, wg.Location)
	assert.Equal(t, DefaultDemand, wg.Demand)
	assert.Equal(t, DefaultMonth, wg.Month)
	assert.Equal(t, 100.0, wg.EfficiencyScore)
}

func TestIntegrateWithEmptyUsageTable(t *testing.T) {
	s := buildSources(t)
	empty, err := aggregate.Usage(nil)
	require.NoError(t, err)
	s.usage = empty

	rows := s.integrate(t, newTestIntegrator())
	require.Len(t, rows, len(s.master))
	for _, r := range rows {
		assert.Equal(t, 0.0, r.UsageHours)
		assert.Equal(t, 0.0, r.UtilizationRate)
	}
}

func TestIntegrateIsIdempotent(t *testing.T) {
	s := buildSources(t)
	in := newTestIntegrator()
	assert.Equal(t, s.integrate(t, in), s.integrate(t, in))
}

func TestIntegrateRejectsMissingID(t *testing.T) {
	s := buildSources(t)
	s.master = append(s.master, models.Equipment{Category: "Excavator"})

	_, err := newTestIntegrator().Integrate(s.master, s.usage, s.rentals, s.maintenance, s.anomalies, s.demand)
	var malformed *models.MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, models.TableEquipment, malformed.Table)
	assert.Equal(t, 3, malformed.Row)
}

func TestRatiosStayInUnitInterval(t *testing.T) {
	in := newTestIntegrator()
	extremes := []Joined{
		{Category: "Excavator", RuntimeHours: 1e9, RentalDuration: 1, DowntimeHours: 0},
		{Category: "Excavator", RuntimeHours: 5, RentalDuration: 0, DowntimeHours: 1e6},
		{Category: "Generator", RuntimeHours: 0, RentalDuration: 0},
		{Category: "Skid Steer", RuntimeHours: 24 * 30, RentalDuration: 30, DowntimeHours: 0},
	}
	for _, j := range extremes {
		r := in.Derive(j, refDate)
		for _, v := range []float64{r.UtilizationRate, r.IdleRate, r.CapacityUtilization, r.WorkIntensity} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.GreaterOrEqual(t, r.EfficiencyScore, 0.0)
		assert.LessOrEqual(t, r.EfficiencyScore, 100.0)
		assert.GreaterOrEqual(t, r.ProductiveHours, 0.0)
		assert.GreaterOrEqual(t, r.IdleHours, 0.0)
	}
}

func TestBatchAndRequestPathsAgree(t *testing.T) {
	s := buildSources(t)
	in := newTestIntegrator()
	rows := s.integrate(t, in)
	seasonal := BuildSeasonalTable(rows)

	req := models.InferenceRequest{
		EquipmentID:         "EX1",
		Category:            "Excavator",
		ManufactureYear:     2020,
		UsageHours:          200,
		FuelConsumptionRate: 11,
		DowntimeHours:       30,
		RentalDuration:      ptr(15),
		MaintenanceScore:    ptr(9),
		MaintenanceCost:     15000,
	}
	online, err := in.DeriveRequest(req, s.demand, seasonal)
	require.NoError(t, err)
	assert.Equal(t, rows[0], online)
}

func TestRequestOverridesAndDefaults(t *testing.T) {
	in := newTestIntegrator()
	s := buildSources(t)

	row, err := in.DeriveRequest(models.InferenceRequest{
		Category:   "Compressor",
		Location:   "Phoenix",
		Demand:     ptr(9),
		Month:      11,
		AgeMonths:  ptr(30),
		UsageHours: 0,
	}, s.demand, nil)
	require.NoError(t, err)
	assert.Equal(t, "Phoenix", row.Location)
	assert.Equal(t, 9.0, row.Demand)
	assert.Equal(t, 11, row.Month)
	assert.Equal(t, 30.0, row.AgeMonths)
	assert.Equal(t, 9.0, row.SeasonalDemand, "no seasonal group falls back to demand")
	assert.Equal(t, DefaultRentalDuration, row.RentalDuration)
	assert.Equal(t, 0, row.NeedsMaintenance)

	row, err = in.DeriveRequest(models.InferenceRequest{Category: "Compressor", Month: 13}, s.demand, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, row.Month, "invalid month uses demand index")
	assert.Equal(t, "Houston", row.Location)

	_, err = in.DeriveRequest(models.InferenceRequest{}, s.demand, nil)
	var malformed *models.MalformedInputError
	assert.True(t, errors.As(err, &malformed))
}

func TestCoercionFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var columns []string
	in := NewIntegrator(zap.New(core), WithClock(fixedClock), WithFallbackHook(func(c string) {
		columns = append(columns, c)
	}))

	age := math.NaN()
	row := in.Derive(Joined{
		Category:       "Excavator",
		RuntimeHours:   math.Inf(1),
		FuelRate:       math.NaN(),
		DowntimeHours:  math.Inf(-1),
		RentalDuration: 14,
		Demand:         math.NaN(),
		AgeMonths:      &age,
	}, refDate)
	out := in.Finalize([]models.FeatureRow{row}, nil)[0]

	for _, col := range NumericColumns {
		v, _ := Value(out, col)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), col)
	}
	assert.ElementsMatch(t, []string{ColUsageHours, ColFuelConsumptionRate, ColDowntimeHours, ColDemand, ColAgeMonths}, columns)
	assert.Equal(t, len(columns), logs.FilterMessage("numeric coercion fallback").Len())
	assert.True(t, math.IsNaN(age), "caller value is not mutated")

	// производные метрики согласованы с обнуленными входами
	assert.Equal(t, 0.0, out.UsageHours)
	assert.Equal(t, 336.0, out.AvailableHours)
	assert.Equal(t, max(0, out.AvailableHours-out.UsageHours), out.IdleHours)
	assert.Equal(t, 336.0, out.IdleHours)
	assert.Equal(t, 0.0, out.UtilizationRate)
	assert.InDelta(t, 336.0/337, out.IdleRate, 1e-12)
	assert.Equal(t, 0.0, out.FuelConsumption)
	assert.Equal(t, 100.0, out.EfficiencyScore)
	assert.Equal(t, 0.0, out.AgeMonths)
}

func TestNaNReadingDoesNotPoisonAggregate(t *testing.T) {
	ts := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	usage, err := aggregate.Usage([]models.UsageEvent{
		{EquipmentID: "EX1", Timestamp: ts, RuntimeHoursTotal: 120, FuelConsumptionRate: 10},
		{EquipmentID: "EX1", Timestamp: ts.Add(time.Hour), RuntimeHoursTotal: 120, FuelConsumptionRate: math.NaN()},
	})
	require.NoError(t, err)

	rows, err := newTestIntegrator().Integrate(
		[]models.Equipment{{ID: "EX1", Category: "Excavator", ManufactureYear: 2020}},
		usage, nil, nil, nil, nil,
	)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200.0, rows[0].FuelConsumption)
	assert.InDelta(t, 120.0/1201, rows[0].FuelEfficiency, 1e-12)
}

func TestCapacityTable(t *testing.T) {
	c := DefaultCapacityTable()
	assert.Equal(t, 180.0, c.Capacity("Excavator"))
	assert.Equal(t, DefaultCapacity, c.Capacity("Widget"))

	in := newTestIntegrator(WithCapacityTable(CapacityTable{"Widget": 10}))
	assert.Equal(t, 10.0, in.Capacity().Capacity("Widget"))
}

func TestSeasonalTable(t *testing.T) {
	rows := []models.FeatureRow{
		{Category: "Excavator", Month: 3, Demand: 10},
		{Category: "Excavator", Month: 3, Demand: 20},
		{Category: "Excavator", Month: 4, Demand: 7},
	}
	table := BuildSeasonalTable(rows)
	assert.Len(t, table, 2)
	assert.Equal(t, 15.0, table.Lookup("Excavator", 3, 0))
	assert.Equal(t, 2.0, table.Lookup("Excavator", 5, 2))
}

func TestVectorContract(t *testing.T) {
	row := models.FeatureRow{UtilizationRate: 0.5, IdleRate: 0.25}
	v, err := Vector(row, []string{ColUtilizationRate, ColIdleRate})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, v)

	_, err = Vector(row, []string{ColUtilizationRate, "rpm"})
	var violation *models.FeatureContractViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "rpm", violation.Column)
	assert.False(t, HasColumn("rpm"))
}

func BenchmarkIntegrate(b *testing.B) {
	s := buildSources(b)
	in := newTestIntegrator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in.Integrate(s.master, s.usage, s.rentals, s.maintenance, s.anomalies, s.demand)
	}
}
