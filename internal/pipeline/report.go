package pipeline

import (
	"sort"

	"equipment-insight/internal/models"
)

// Пороги анализа обнаруженных аномалий
const (
	AnalysisLowUtilization = 0.2
	AnalysisHighIdle       = 0.6
	AnalysisLowIntensity   = 0.5
)

// Evaluation сравнение предсказаний модели с исторической разметкой is_anomaly
type Evaluation struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TotalAnomalies int     `json:"total_anomalies"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
}

// UtilizationAnalysis разбор обнаруженных аномалий по паттернам загрузки
type UtilizationAnalysis struct {
	Detected         int            `json:"detected"`
	LowUtilization   int            `json:"low_utilization"`
	HighIdle         int            `json:"high_idle"`
	LowWorkIntensity int            `json:"low_work_intensity"`
	ByCategory       map[string]int `json:"by_category"`
}

// CategoryUtilization средняя загрузка категории
type CategoryUtilization struct {
	Category        string  `json:"equipment_type"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// DataSummary сводка по обучающим строкам
type DataSummary struct {
	Rows                   int                 `json:"rows"`
	Categories             map[string]int      `json:"categories"`
	Locations              map[string]int      `json:"locations"`
	AnomalyRate            float64             `json:"anomaly_rate"`
	MaintenanceRate        float64             `json:"maintenance_rate"`
	AvgAgeMonths           float64             `json:"avg_age_months"`
	AvgUsageHours          float64             `json:"avg_usage_hours"`
	AvgUtilization         float64             `json:"avg_utilization_rate"`
	AvgIdleRate            float64             `json:"avg_idle_rate"`
	AvgCapacityUtilization float64             `json:"avg_capacity_utilization"`
	AvgWorkIntensity       float64             `json:"avg_work_intensity"`
	HighIdleRows           int                 `json:"high_idle_rows"`
	HighestUtilization     CategoryUtilization `json:"highest_utilization"`
	LowestUtilization      CategoryUtilization `json:"lowest_utilization"`
}

// Evaluate считает precision/recall/F1. Деление на ноль дает 0
func Evaluate(labels []int, predicted []bool) Evaluation {
	var ev Evaluation
	for i, p := range predicted {
		actual := labels[i] == 1
		switch {
		case p && actual:
			ev.TruePositives++
		case p && !actual:
			ev.FalsePositives++
		case !p && actual:
			ev.FalseNegatives++
		}
		if p {
			ev.TotalAnomalies++
		}
	}
	ev.Precision = ratio(ev.TruePositives, ev.TruePositives+ev.FalsePositives)
	ev.Recall = ratio(ev.TruePositives, ev.TruePositives+ev.FalseNegatives)
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// AnalyzeDetected разбирает строки, помеченные моделью как аномальные
func AnalyzeDetected(rows []models.FeatureRow, predicted []bool) UtilizationAnalysis {
	a := UtilizationAnalysis{ByCategory: make(map[string]int)}
	for i, r := range rows {
		if !predicted[i] {
			continue
		}
		a.Detected++
		if r.UtilizationRate < AnalysisLowUtilization {
			a.LowUtilization++
		}
		if r.IdleRate > AnalysisHighIdle {
			a.HighIdle++
		}
		if r.WorkIntensity < AnalysisLowIntensity {
			a.LowWorkIntensity++
		}
		a.ByCategory[r.Category]++
	}
	return a
}

// Summarize сводка по строкам признаков
func Summarize(rows []models.FeatureRow) DataSummary {
	s := DataSummary{
		Rows:       len(rows),
		Categories: make(map[string]int),
		Locations:  make(map[string]int),
	}
	if len(rows) == 0 {
		return s
	}

	type acc struct {
		sum float64
		n   int
	}
	byCategory := make(map[string]*acc)
	var anomalies, maintenance int
	for _, r := range rows {
		s.Categories[r.Category]++
		s.Locations[r.Location]++
		anomalies += r.IsAnomaly
		maintenance += r.NeedsMaintenance
		s.AvgAgeMonths += r.AgeMonths
		s.AvgUsageHours += r.UsageHours
		s.AvgUtilization += r.UtilizationRate
		s.AvgIdleRate += r.IdleRate
		s.AvgCapacityUtilization += r.CapacityUtilization
		s.AvgWorkIntensity += r.WorkIntensity
		if r.IdleRate > AnalysisHighIdle {
			s.HighIdleRows++
		}
		a, ok := byCategory[r.Category]
		if !ok {
			a = &acc{}
			byCategory[r.Category] = a
		}
		a.sum += r.UtilizationRate
		a.n++
	}

	n := float64(len(rows))
	s.AnomalyRate = float64(anomalies) / n
	s.MaintenanceRate = float64(maintenance) / n
	s.AvgAgeMonths /= n
	s.AvgUsageHours /= n
	s.AvgUtilization /= n
	s.AvgIdleRate /= n
	s.AvgCapacityUtilization /= n
	s.AvgWorkIntensity /= n

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for i, c := range categories {
		cu := CategoryUtilization{Category: c, UtilizationRate: byCategory[c].sum / float64(byCategory[c].n)}
		if i == 0 || cu.UtilizationRate > s.HighestUtilization.UtilizationRate {
			s.HighestUtilization = cu
		}
		if i == 0 || cu.UtilizationRate < s.LowestUtilization.UtilizationRate {
			s.LowestUtilization = cu
		}
	}
	return s
}
