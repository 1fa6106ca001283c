package aggregate

import (
	"sort"
	"strings"

	"equipment-insight/internal/models"
)

const demandKeySep = "\x1f"

// DemandEntry средний спрос по паре категория x город
type DemandEntry struct {
	Category string  `json:"equipment_type"`
	Location string  `json:"location"`
	Demand   float64 `json:"demand"`
	Month    int     `json:"month"`
}

// DemandIndex упорядоченный индекс спроса. Записи отсортированы по
// (категория, город), поэтому "первое совпадение" детерминировано
type DemandIndex struct {
	entries []DemandEntry
	first   map[string]int
}

var demandSpec = Spec[models.DemandRecord]{
	Table:    models.TableDemand,
	KeyField: "equipment_type/city",
	Key: func(d models.DemandRecord) string {
		return d.Category + demandKeySep + d.City
	},
	// строки без категории или города не попадают ни в одну группу
	Skip: func(d models.DemandRecord) bool {
		return d.Category == "" || d.City == ""
	},
	Fields: []Field[models.DemandRecord]{
		{Name: "demand_count", Reducers: []Reducer{Mean}, Value: func(d models.DemandRecord) float64 { return d.DemandCount }},
		{Name: "month", Reducers: []Reducer{First}, Value: func(d models.DemandRecord) float64 { return float64(d.Month) }},
	},
	Precision: 1,
}

// Demand сворачивает историю спроса в индекс по категории и городу
func Demand(records []models.DemandRecord) (*DemandIndex, error) {
	table, err := Aggregate(records, demandSpec)
	if err != nil {
		return nil, err
	}

	entries := make([]DemandEntry, 0, table.Len())
	for _, key := range table.Keys() {
		s, _ := table.Get(key)
		category, location, _ := strings.Cut(key, demandKeySep)
		entries = append(entries, DemandEntry{
			Category: category,
			Location: location,
			Demand:   s[ColDemandMean],
			Month:    int(s[ColDemandMonthFirst]),
		})
	}
	return NewDemandIndex(entries), nil
}

// NewDemandIndex строит индекс из готовых записей
func NewDemandIndex(entries []DemandEntry) *DemandIndex {
	sorted := make([]DemandEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Location < sorted[j].Location
	})

	idx := &DemandIndex{entries: sorted, first: make(map[string]int)}
	for i, e := range sorted {
		if _, ok := idx.first[e.Category]; !ok {
			idx.first[e.Category] = i
		}
	}
	return idx
}

// Lookup возвращает первую запись с совпадающей категорией.
// Город при сопоставлении не учитывается
func (d *DemandIndex) Lookup(category string) (DemandEntry, bool) {
	if d == nil {
		return DemandEntry{}, false
	}
	i, ok := d.first[category]
	if !ok {
		return DemandEntry{}, false
	}
	return d.entries[i], true
}

// Len количество записей
func (d *DemandIndex) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
