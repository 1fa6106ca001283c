package preprocess

import "sort"

// MaxFittedClasses предел числа классов для FittedEncoder
const MaxFittedClasses = 1024

// CategoryEncoder кодирует категориальную колонку целым числом.
// Вариант выбирается один раз в FitEncoder
type CategoryEncoder interface {
	Encode(value string) int
	Classes() []string
	Kind() string
}

// FittedEncoder сортированные классы, код равен индексу класса.
// Неизвестное значение получает код len(classes)
type FittedEncoder struct {
	classes []string
	index   map[string]int
}

// FallbackOrdinalEncoder коды в порядке первого появления.
// Пустое и неизвестное значение получают -1
type FallbackOrdinalEncoder struct {
	order []string
	index map[string]int
}

// FitEncoder выбирает вариант кодировщика по обучающим значениям:
// FittedEncoder, если все значения заполнены и классов не больше MaxFittedClasses,
// иначе FallbackOrdinalEncoder
func FitEncoder(values []string) CategoryEncoder {
	seen := make(map[string]struct{})
	fittable := true
	for _, v := range values {
		if v == "" {
			fittable = false
			break
		}
		seen[v] = struct{}{}
	}
	if fittable && len(seen) <= MaxFittedClasses {
		return newFittedEncoder(seen)
	}
	return newFallbackOrdinalEncoder(values)
}

func newFittedEncoder(seen map[string]struct{}) *FittedEncoder {
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return &FittedEncoder{classes: classes, index: idx}
}

func newFallbackOrdinalEncoder(values []string) *FallbackOrdinalEncoder {
	enc := &FallbackOrdinalEncoder{index: make(map[string]int)}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := enc.index[v]; !ok {
			enc.index[v] = len(enc.order)
			enc.order = append(enc.order, v)
		}
	}
	return enc
}

func (e *FittedEncoder) Encode(value string) int {
	if i, ok := e.index[value]; ok {
		return i
	}
	return len(e.classes)
}

func (e *FittedEncoder) Classes() []string { return append([]string(nil), e.classes...) }

func (e *FittedEncoder) Kind() string { return "fitted" }

func (e *FallbackOrdinalEncoder) Encode(value string) int {
	if i, ok := e.index[value]; ok {
		return i
	}
	return -1
}

func (e *FallbackOrdinalEncoder) Classes() []string { return append([]string(nil), e.order...) }

func (e *FallbackOrdinalEncoder) Kind() string { return "fallback_ordinal" }
