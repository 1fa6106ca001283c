package features

// DefaultCapacity номинальная мощность для неизвестных категорий
const DefaultCapacity = 150.0

// CapacityTable справочник номинальной мощности по категориям
type CapacityTable map[string]float64

// DefaultCapacityTable канонический справочник мощностей
func DefaultCapacityTable() CapacityTable {
	return CapacityTable{
		"Excavator":         180,
		"Wheel Loader":      170,
		"Backhoe Loader":    160,
		"Off-Highway Truck": 200,
		"Motor Grader":      150,
		"Compressor":        120,
		"Bulldozer":         160,
		"Skid Steer":        140,
		"Compactor":         130,
		"Generator":         100,
	}
}

// Capacity возвращает мощность категории. Промах справочника не ошибка
func (c CapacityTable) Capacity(category string) float64 {
	if v, ok := c[category]; ok && v > 0 {
		return v
	}
	return DefaultCapacity
}
