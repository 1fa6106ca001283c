// Package synthetic генерирует входные таблицы той же схемы, что и загрузчик.
// Используется, когда реальные таблицы недоступны
package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"equipment-insight/internal/models"
)

// Source источник входных таблиц
type Source interface {
	Load(ctx context.Context) (*models.SourceTables, error)
}

// Categories категории синтетической техники
var Categories = []string{
	"Excavator", "Wheel Loader", "Backhoe Loader", "Off-Highway Truck",
	"Motor Grader", "Compressor", "Bulldozer", "Skid Steer", "Compactor",
}

// Cities города истории спроса
var Cities = []string{"Los Angeles", "New York", "Chicago", "Houston", "Phoenix"}

// Config параметры генерации
type Config struct {
	Equipment int
	Seed      int64
	BaseDate  time.Time
	// NoHistoryShare доля техники без телеметрии, аренд и обслуживания
	NoHistoryShare float64
	// AnomalyShare доля техники с записями в журнале аномалий
	AnomalyShare float64
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		Equipment:      500,
		Seed:           42,
		BaseDate:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		NoHistoryShare: 0.05,
		AnomalyShare:   0.05,
	}
}

// Generator детерминированный генератор таблиц
type Generator struct {
	cfg Config
}

// NewGenerator создает генератор
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Load реализует Source
func (g *Generator) Load(ctx context.Context) (*models.SourceTables, error) {
	if g.cfg.Equipment <= 0 {
		return nil, fmt.Errorf("synthetic: equipment count must be positive, got %d", g.cfg.Equipment)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Generate(), nil
}

// Generate строит все шесть таблиц
func (g *Generator) Generate() *models.SourceTables {
	r := rand.New(rand.NewSource(g.cfg.Seed))
	base := g.cfg.BaseDate
	t := &models.SourceTables{}

	for i := 0; i < g.cfg.Equipment; i++ {
		eq := models.Equipment{
			ID:              fmt.Sprintf("CAT%05d", i),
			Category:        Categories[r.Intn(len(Categories))],
			ManufactureYear: base.Year() - 1 - r.Intn(7),
		}
		t.Equipment = append(t.Equipment, eq)

		if r.Float64() < g.cfg.NoHistoryShare {
			continue
		}
		anomalous := r.Float64() < g.cfg.AnomalyShare

		g.usage(r, t, eq.ID, anomalous)
		g.rentals(r, t, eq.ID)
		g.maintenance(r, t, eq.ID, anomalous)
		if anomalous {
			entries := 1 + r.Intn(3)
			for k := 0; k < entries; k++ {
				t.Anomalies = append(t.Anomalies, models.AnomalyLogEntry{
					EquipmentID: eq.ID,
					AnomalyID:   fmt.Sprintf("AN-%05d-%d", i, k),
					Score:       0.6 + 0.4*r.Float64(),
				})
			}
		}
	}

	for _, category := range Categories {
		for _, city := range Cities {
			for m := 1; m <= 12; m++ {
				date := time.Date(base.Year(), time.Month(m), 1+r.Intn(28), 0, 0, 0, 0, time.UTC)
				t.Demand = append(t.Demand, models.DemandRecord{
					Category:    category,
					City:        city,
					Date:        date,
					Month:       m,
					DemandCount: float64(3 + r.Intn(22)),
				})
			}
		}
	}
	return t
}

func (g *Generator) usage(r *rand.Rand, t *models.SourceTables, id string, anomalous bool) {
	events := 3 + r.Intn(10)
	runtime := 100 + r.Float64()*200
	ts := g.cfg.BaseDate.Add(time.Duration(r.Intn(24*180)) * time.Hour)
	rate := 5 + r.Float64()*15
	for k := 0; k < events; k++ {
		step := 10 + r.Float64()*40
		if anomalous {
			step = r.Float64() * 2
		}
		runtime += step
		ts = ts.Add(time.Duration(12+r.Intn(36)) * time.Hour)
		t.Usage = append(t.Usage, models.UsageEvent{
			EquipmentID:         id,
			Timestamp:           ts,
			RuntimeHoursTotal:   runtime,
			IdleHours:           r.Float64() * 8,
			FuelConsumptionRate: rate + r.NormFloat64(),
			EngineTemperature:   80 + r.Float64()*25,
			IsOperating:         r.Float64() < 0.8,
		})
	}
}

func (g *Generator) rentals(r *rand.Rand, t *models.SourceTables, id string) {
	n := r.Intn(4)
	for k := 0; k < n; k++ {
		start := g.cfg.BaseDate.AddDate(0, 0, r.Intn(365))
		duration := float64(7 + r.Intn(83))
		t.Rentals = append(t.Rentals, models.RentalRecord{
			EquipmentID:    id,
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, int(duration)),
			DurationActual: duration,
			RatePerDay:     200 + r.Float64()*800,
			OverdueDays:    float64(r.Intn(3)),
		})
	}
}

func (g *Generator) maintenance(r *rand.Rand, t *models.SourceTables, id string, anomalous bool) {
	n := r.Intn(4)
	for k := 0; k < n; k++ {
		score := 6 + r.Float64()*4
		downtime := 5 + r.Float64()*45
		if anomalous {
			score = 3 + r.Float64()*4
			downtime *= 4
		}
		t.Maintenance = append(t.Maintenance, models.MaintenanceRecord{
			EquipmentID:   id,
			Date:          g.cfg.BaseDate.AddDate(0, 0, r.Intn(365)),
			Cost:          500 + r.Float64()*6000,
			DowntimeHours: downtime,
			Score:         score,
		})
	}
}

// Static отдает заранее подготовленные таблицы
type Static struct {
	Tables *models.SourceTables
}

// Load реализует Source
func (s Static) Load(ctx context.Context) (*models.SourceTables, error) {
	if s.Tables == nil {
		return nil, fmt.Errorf("static source: no tables")
	}
	return s.Tables, ctx.Err()
}
