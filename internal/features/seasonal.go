package features

import (
	"strconv"

	"equipment-insight/internal/models"
)

// SeasonalTable средний спрос по паре категория x месяц
type SeasonalTable map[string]float64

func seasonalKey(category string, month int) string {
	return category + "|" + strconv.Itoa(month)
}

// BuildSeasonalTable считает групповое среднее спроса
func BuildSeasonalTable(rows []models.FeatureRow) SeasonalTable {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		if !finite(r.Demand) {
			continue
		}
		k := seasonalKey(r.Category, r.Month)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.sum += r.Demand
		a.n++
	}

	table := make(SeasonalTable, len(groups))
	for k, a := range groups {
		table[k] = a.sum / float64(a.n)
	}
	return table
}

// Lookup возвращает групповое среднее, а если группа не определена - исходный спрос
func (t SeasonalTable) Lookup(category string, month int, demand float64) float64 {
	if v, ok := t[seasonalKey(category, month)]; ok && finite(v) {
		return v
	}
	return demand
}
