// Package preprocess содержит стандартизацию числовых признаков и кодирование
// категорий. Параметры подбираются один раз при обучении и далее только читаются
package preprocess

import "math"

// RunningStats накапливает среднее и сумму квадратов отклонений (Welford),
// для постоянной колонки отклонение ровно 0
type RunningStats struct {
	count int
	mean  float64
	m2    float64
}

// Add добавляет значение
func (rs *RunningStats) Add(value float64) {
	rs.count++
	delta := value - rs.mean
	rs.mean += delta / float64(rs.count)
	rs.m2 += delta * (value - rs.mean)
}

// Mean возвращает среднее значение
func (rs *RunningStats) Mean() float64 {
	return rs.mean
}

// StdDev возвращает стандартное отклонение генеральной совокупности
func (rs *RunningStats) StdDev() float64 {
	if rs.count == 0 || rs.m2 <= 0 {
		return 0
	}
	return math.Sqrt(rs.m2 / float64(rs.count))
}
