// Package aggregate сворачивает таблицы событий в одну сводную строку на ключ.
// Колонки результата именуются по правилу {field}_{reducer}
package aggregate

import (
	"math"
	"sort"

	"equipment-insight/internal/models"
)

// Reducer функция свертки колонки
type Reducer string

const (
	Sum   Reducer = "sum"
	Mean  Reducer = "mean"
	Max   Reducer = "max"
	Min   Reducer = "min"
	Count Reducer = "count"
	First Reducer = "first"
)

// ColumnName имя колонки после свертки
func ColumnName(field string, r Reducer) string {
	return field + "_" + string(r)
}

// Field описывает одно поле события и набор сверток над ним
type Field[T any] struct {
	Name     string
	Reducers []Reducer
	Value    func(T) float64
}

// Spec фиксированная спецификация свертки таблицы
type Spec[T any] struct {
	Table    string
	KeyField string
	Key      func(T) string
	// Skip отбрасывает строку до проверки ключа
	Skip      func(T) bool
	Fields    []Field[T]
	Precision int
	// Derive дополняет сводку производными колонками после округления
	Derive func(Summary)
}

// Summary сводная строка одного ключа
type Summary map[string]float64

// Value возвращает значение колонки и признак его наличия
func (s Summary) Value(column string) (float64, bool) {
	v, ok := s[column]
	return v, ok
}

// Table результат свертки с детерминированным порядком ключей
type Table struct {
	rows map[string]Summary
	keys []string
}

// NewTable создает пустую таблицу
func NewTable() *Table {
	return &Table{rows: make(map[string]Summary)}
}

// Get возвращает сводку по ключу
func (t *Table) Get(key string) (Summary, bool) {
	if t == nil {
		return nil, false
	}
	s, ok := t.rows[key]
	return s, ok
}

// Keys возвращает ключи в порядке возрастания
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len количество ключей
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// accumulator копит статистику одной колонки
type accumulator struct {
	sum   float64
	count int
	max   float64
	min   float64
	first float64
}

// add пропускает NaN и бесконечности, как это делают свертки pandas
func (a *accumulator) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if a.count == 0 {
		a.max, a.min, a.first = v, v, v
	} else {
		a.max = math.Max(a.max, v)
		a.min = math.Min(a.min, v)
	}
	a.sum += v
	a.count++
}

func (a *accumulator) result(r Reducer) float64 {
	switch r {
	case Sum:
		return a.sum
	case Mean:
		if a.count == 0 {
			return 0
		}
		return a.sum / float64(a.count)
	case Max:
		return a.max
	case Min:
		return a.min
	case Count:
		return float64(a.count)
	case First:
		return a.first
	}
	return 0
}

// Aggregate сворачивает события по ключу. Пустая таблица дает пустой результат,
// повторяющиеся ключи сворачиваются, а не перезаписываются.
// Ключ, для которого не накопилось ни одного конечного значения, дает 0
func Aggregate[T any](events []T, spec Spec[T]) (*Table, error) {
	groups := make(map[string][]accumulator)
	for i, ev := range events {
		if spec.Skip != nil && spec.Skip(ev) {
			continue
		}
		key := spec.Key(ev)
		if key == "" {
			return nil, &models.MalformedInputError{Table: spec.Table, Row: i, Field: spec.KeyField}
		}
		accs, ok := groups[key]
		if !ok {
			accs = make([]accumulator, len(spec.Fields))
			groups[key] = accs
		}
		for j, f := range spec.Fields {
			accs[j].add(f.Value(ev))
		}
	}

	table := NewTable()
	for key, accs := range groups {
		s := make(Summary, len(spec.Fields)*2)
		for j, f := range spec.Fields {
			for _, r := range f.Reducers {
				s[ColumnName(f.Name, r)] = Round(accs[j].result(r), spec.Precision)
			}
		}
		if spec.Derive != nil {
			spec.Derive(s)
		}
		table.rows[key] = s
		table.keys = append(table.keys, key)
	}
	sort.Strings(table.keys)
	return table, nil
}

// Round округляет до заданного числа знаков, половины к четному
func Round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.RoundToEven(v*p) / p
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
