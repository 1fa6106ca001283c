package preprocess

import (
	"math"
	"testing"
)

func TestRunningStats_Mean(t *testing.T) {
	var rs RunningStats
	for _, v := range []float64{10, 20, 30, 40, 50} {
		rs.Add(v)
	}

	if math.Abs(rs.Mean()-30.0) > 0.001 {
		t.Errorf("Expected mean 30, got %.2f", rs.Mean())
	}
}

func TestRunningStats_StdDev(t *testing.T) {
	var same RunningStats
	for i := 0; i < 1000; i++ {
		same.Add(336.0 / 337.0)
	}
	if same.StdDev() != 0 {
		t.Errorf("Expected stddev 0 for identical values, got %g", same.StdDev())
	}

	var rs RunningStats
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		rs.Add(v)
	}
	if math.Abs(rs.StdDev()-2.0) > 1e-9 {
		t.Errorf("Expected stddev 2, got %.4f", rs.StdDev())
	}
}

func TestRunningStats_Empty(t *testing.T) {
	var empty RunningStats
	if empty.Mean() != 0 || empty.StdDev() != 0 {
		t.Errorf("Expected zero stats for empty accumulator")
	}
}

func BenchmarkRunningStats_Add(b *testing.B) {
	var rs RunningStats
	for i := 0; i < b.N; i++ {
		rs.Add(float64(i % 100))
	}
}
