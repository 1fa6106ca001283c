// Package features соединяет сводки источников со справочником техники и
// вычисляет производные метрики строки признаков.
//
// Пакетный и онлайн пути используют одни и те же функции Derive и Finalize,
// поэтому признаки при обучении и инференсе совпадают
package features

import (
	"time"

	"go.uber.org/zap"

	"equipment-insight/internal/aggregate"
	"equipment-insight/internal/models"
)

// Значения по умолчанию при отсутствии данных
const (
	DefaultRentalDuration = 14.0
	DefaultLocation       = "Unknown"
	DefaultDemand         = 5.0
	DefaultMonth          = 6
	MinEfficiencyScore    = 0.0
	MaxEfficiencyScore    = 100.0
	HoursPerDay           = 24.0
)

// Joined запись после левых соединений, до вычисления производных метрик.
// Отсутствующие значения уже заменены нулями или значениями по умолчанию
type Joined struct {
	EquipmentID      string
	Category         string
	ManufactureYear  int
	AgeMonths        *float64
	RuntimeHours     float64
	FuelRate         float64
	DowntimeHours    float64
	RentalDuration   float64
	NeedsMaintenance int
	IsAnomaly        int
	Location         string
	Demand           float64
	Month            int
}

// Integrator строит строки признаков
type Integrator struct {
	capacity   CapacityTable
	now        func() time.Time
	logger     *zap.Logger
	onFallback func(column string)
}

// Option настройка интегратора
type Option func(*Integrator)

// WithClock задает источник опорной даты
func WithClock(now func() time.Time) Option {
	return func(in *Integrator) { in.now = now }
}

// WithCapacityTable заменяет справочник мощностей
func WithCapacityTable(t CapacityTable) Option {
	return func(in *Integrator) { in.capacity = t }
}

// WithFallbackHook вызывается на каждую замену нечислового значения нулем
func WithFallbackHook(fn func(column string)) Option {
	return func(in *Integrator) { in.onFallback = fn }
}

// NewIntegrator создает интегратор признаков
func NewIntegrator(logger *zap.Logger, opts ...Option) *Integrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Integrator{
		capacity: DefaultCapacityTable(),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Capacity возвращает справочник мощностей интегратора
func (in *Integrator) Capacity() CapacityTable {
	return in.capacity
}

// Integrate соединяет все сводки со справочником техники. Техника без истории
// остается в выходе с нулевыми значениями
func (in *Integrator) Integrate(
	master []models.Equipment,
	usage, rentals, maintenance, anomalies *aggregate.Table,
	demand *aggregate.DemandIndex,
) ([]models.FeatureRow, error) {
	ref := in.now()
	rows := make([]models.FeatureRow, 0, len(master))
	for i, eq := range master {
		if eq.ID == "" {
			return nil, &models.MalformedInputError{Table: models.TableEquipment, Row: i, Field: "equipment_id"}
		}
		j := Join(eq, usage, rentals, maintenance, anomalies, demand)
		rows = append(rows, in.Derive(j, ref))
	}
	return in.Finalize(rows, BuildSeasonalTable(rows)), nil
}

// Join выполняет левое соединение одной единицы техники со сводками
func Join(eq models.Equipment, usage, rentals, maintenance, anomalies *aggregate.Table, demand *aggregate.DemandIndex) Joined {
	j := Joined{
		EquipmentID:     eq.ID,
		Category:        eq.Category,
		ManufactureYear: eq.ManufactureYear,
		RentalDuration:  DefaultRentalDuration,
	}

	if s, ok := usage.Get(eq.ID); ok {
		j.RuntimeHours = s[aggregate.ColRuntimeHoursMax]
		j.FuelRate = s[aggregate.ColFuelRateMean]
	}
	if s, ok := rentals.Get(eq.ID); ok {
		j.RentalDuration = s[aggregate.ColRentalDurationMean]
	}
	if s, ok := maintenance.Get(eq.ID); ok {
		j.DowntimeHours = s[aggregate.ColDowntimeHoursSum]
		j.NeedsMaintenance = int(s[aggregate.ColNeedsMaintenance])
	}
	if s, ok := anomalies.Get(eq.ID); ok {
		j.IsAnomaly = int(s[aggregate.ColIsAnomaly])
	}

	j.Location, j.Demand, j.Month = lookupDemand(demand, eq.Category)
	return j
}

// JoinRequest строит запись соединения из запроса на инференс.
// Местоположение, спрос и месяц берутся из запроса, иначе из индекса спроса
func JoinRequest(req models.InferenceRequest, demand *aggregate.DemandIndex) (Joined, error) {
	if req.Category == "" {
		return Joined{}, &models.MalformedInputError{Table: "inference_request", Field: "equipment_type"}
	}
	j := Joined{
		EquipmentID:     req.EquipmentID,
		Category:        req.Category,
		ManufactureYear: req.ManufactureYear,
		AgeMonths:       req.AgeMonths,
		RuntimeHours:    req.UsageHours,
		FuelRate:        req.FuelConsumptionRate,
		DowntimeHours:   req.DowntimeHours,
		RentalDuration:  DefaultRentalDuration,
	}
	if req.RentalDuration != nil {
		j.RentalDuration = *req.RentalDuration
	}
	if req.MaintenanceScore != nil || req.MaintenanceCost > 0 {
		score := MaintenanceScoreUnknown
		if req.MaintenanceScore != nil {
			score = *req.MaintenanceScore
		}
		if aggregate.NeedsMaintenance(score, req.MaintenanceCost) {
			j.NeedsMaintenance = 1
		}
	}

	j.Location, j.Demand, j.Month = lookupDemand(demand, req.Category)
	if req.Location != "" {
		j.Location = req.Location
	}
	if req.Demand != nil {
		j.Demand = *req.Demand
	}
	if req.Month >= 1 && req.Month <= 12 {
		j.Month = req.Month
	}
	return j, nil
}

// MaintenanceScoreUnknown балл, не влияющий на разметку, если запрос его не содержит
const MaintenanceScoreUnknown = 10.0

func lookupDemand(demand *aggregate.DemandIndex, category string) (string, float64, int) {
	if e, ok := demand.Lookup(category); ok {
		return e.Location, e.Demand, e.Month
	}
	return DefaultLocation, DefaultDemand, DefaultMonth
}

// Derive вычисляет производные метрики в фиксированном порядке.
// Нечисловые входы заменяются нулем до расчета. Все знаменатели смещены на +1
func (in *Integrator) Derive(j Joined, ref time.Time) models.FeatureRow {
	j = in.sanitize(j)
	row := models.FeatureRow{
		EquipmentID:      j.EquipmentID,
		Category:         j.Category,
		Location:         j.Location,
		Date:             ref,
		Demand:           j.Demand,
		NeedsMaintenance: j.NeedsMaintenance,
		Month:            j.Month,
		DayOfYear:        ref.YearDay(),
		IsAnomaly:        j.IsAnomaly,
	}

	// возраст
	switch {
	case j.AgeMonths != nil:
		row.AgeMonths = *j.AgeMonths
	case j.ManufactureYear > 0:
		row.AgeMonths = float64((ref.Year() - j.ManufactureYear) * 12)
	}

	row.UsageHours = j.RuntimeHours
	row.FuelConsumption = j.FuelRate * row.UsageHours
	row.DowntimeHours = j.DowntimeHours
	row.EfficiencyScore = clip(100-(row.DowntimeHours/(row.UsageHours+1)*10), MinEfficiencyScore, MaxEfficiencyScore)

	row.RentalDuration = j.RentalDuration
	row.AvailableHours = row.RentalDuration * HoursPerDay
	row.ProductiveHours = max(0, row.UsageHours-row.DowntimeHours)
	row.IdleHours = max(0, row.AvailableHours-row.UsageHours)

	row.UtilizationRate = clip(row.UsageHours/(row.AvailableHours+1), 0, 1)
	row.IdleRate = clip(row.IdleHours/(row.AvailableHours+1), 0, 1)

	row.EquipmentCapacity = in.capacity.Capacity(j.Category)
	actualCapacity := row.ProductiveHours / (row.RentalDuration + 1)
	row.CapacityUtilization = clip(actualCapacity/row.EquipmentCapacity, 0, 1)
	row.WorkIntensity = clip(row.ProductiveHours/(row.UsageHours+1), 0, 1)
	row.OperatingHoursPerDay = row.UsageHours / (row.RentalDuration + 1)

	row.FuelEfficiency = row.UsageHours / (row.FuelConsumption + 1)
	row.AgeUsageRatio = row.AgeMonths / (row.UsageHours + 1)

	row.ReturnDate = ref.Add(time.Duration(row.RentalDuration * HoursPerDay * float64(time.Hour)))
	return row
}

// Finalize выставляет сезонный спрос и приводит числовые колонки.
// Возвращает новый срез, входные строки не изменяются
func (in *Integrator) Finalize(rows []models.FeatureRow, seasonal SeasonalTable) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	for i, row := range rows {
		row.SeasonalDemand = seasonal.Lookup(row.Category, row.Month, row.Demand)
		out[i] = in.coerce(row)
	}
	return out
}

// DeriveRequest онлайн путь: запрос -> соединение -> те же Derive и Finalize
func (in *Integrator) DeriveRequest(req models.InferenceRequest, demand *aggregate.DemandIndex, seasonal SeasonalTable) (models.FeatureRow, error) {
	j, err := JoinRequest(req, demand)
	if err != nil {
		return models.FeatureRow{}, err
	}
	rows := in.Finalize([]models.FeatureRow{in.Derive(j, in.now())}, seasonal)
	return rows[0], nil
}

// sanitize заменяет нулем нечисловые входы соединения
func (in *Integrator) sanitize(j Joined) Joined {
	inputs := []struct {
		column string
		value  *float64
	}{
		{ColUsageHours, &j.RuntimeHours},
		{ColFuelConsumptionRate, &j.FuelRate},
		{ColDowntimeHours, &j.DowntimeHours},
		{ColRentalDuration, &j.RentalDuration},
		{ColDemand, &j.Demand},
	}
	for _, f := range inputs {
		if !finite(*f.value) {
			in.fallback(f.column, j.EquipmentID, *f.value)
			*f.value = 0
		}
	}
	if j.AgeMonths != nil && !finite(*j.AgeMonths) {
		in.fallback(ColAgeMonths, j.EquipmentID, *j.AgeMonths)
		zero := 0.0
		j.AgeMonths = &zero
	}
	return j
}

// coerce заменяет нечисловые значения нулем с предупреждением
func (in *Integrator) coerce(row models.FeatureRow) models.FeatureRow {
	for _, col := range NumericColumns {
		v, _ := Value(row, col)
		if finite(v) {
			continue
		}
		SetValue(&row, col, 0)
		in.fallback(col, row.EquipmentID, v)
	}
	return row
}

func (in *Integrator) fallback(column, equipmentID string, v float64) {
	in.logger.Warn("numeric coercion fallback",
		zap.String("column", column),
		zap.String("equipment_id", equipmentID),
		zap.Float64("value", v),
	)
	if in.onFallback != nil {
		in.onFallback(column)
	}
}
