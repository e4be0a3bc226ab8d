package strategy

import (
	"math"
	"testing"
)

// TestQualityPerfectLinearSeries tests r_squared on a perfectly linear window
func TestQualityPerfectLinearSeries(t *testing.T) {
	snap := &IndicatorSnapshot{
		Price:  30.0,
		Closes: linearCloses(30.0, 0.45, 20),
	}

	q := EstimateTrendQuality(snap)
	if math.Abs(q.RSquared-1.0) > 1e-9 {
		t.Errorf("Perfectly linear closes should yield r_squared 1.0, got %f", q.RSquared)
	}
	if math.Abs(q.SlopeNormalized-0.015) > 1e-9 {
		t.Errorf("Expected normalized slope 0.015, got %f", q.SlopeNormalized)
	}
}

// TestQualityConstantSeries tests that a flat window yields zero without dividing by zero
func TestQualityConstantSeries(t *testing.T) {
	snap := &IndicatorSnapshot{
		Price:  30.0,
		Closes: flatCloses(30.0, 20),
	}

	q := EstimateTrendQuality(snap)
	if q.RSquared != 0 {
		t.Errorf("Constant closes should yield r_squared 0, got %f", q.RSquared)
	}
	if q.SlopeNormalized != 0 {
		t.Errorf("Constant closes should yield zero slope, got %f", q.SlopeNormalized)
	}
}

// TestQualityNoisySeries tests that a sawtooth window scores poorly
func TestQualityNoisySeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 30.0
		if i%2 == 0 {
			closes[i] = 30.5
		}
	}
	snap := &IndicatorSnapshot{Price: 30.0, Closes: closes}

	q := EstimateTrendQuality(snap)
	if q.RSquared < 0 || q.RSquared > 0.5 {
		t.Errorf("Sawtooth closes should score near zero, got %f", q.RSquared)
	}
}

// TestDetectTrendDirectionBands tests the strength bucketing
func TestDetectTrendDirectionBands(t *testing.T) {
	cases := []struct {
		name string
		snap *IndicatorSnapshot
		want TrendDirection
	}{
		{
			name: "strong up",
			snap: &IndicatorSnapshot{Price: 30.0, EMAFast: 29.7, EMASlow: 29.1, Closes: linearCloses(30.0, 1.5, 20)},
			want: TrendStrongUp,
		},
		{
			name: "up",
			snap: &IndicatorSnapshot{Price: 30.0, EMAFast: 29.95, EMASlow: 29.5, Closes: linearCloses(30.0, 0.45, 20)},
			want: TrendUp,
		},
		{
			name: "neutral",
			snap: &IndicatorSnapshot{Price: 30.0, EMAFast: 30.0, EMASlow: 30.0, Closes: flatCloses(30.0, 20)},
			want: TrendNeutral,
		},
		{
			name: "down",
			snap: &IndicatorSnapshot{Price: 30.0, EMAFast: 30.05, EMASlow: 30.5, Closes: linearCloses(30.0, -0.45, 20)},
			want: TrendDown,
		},
		{
			name: "strong down",
			snap: &IndicatorSnapshot{Price: 30.0, EMAFast: 30.3, EMASlow: 30.93, Closes: linearCloses(30.0, -1.5, 20)},
			want: TrendStrongDown,
		},
	}

	for _, tc := range cases {
		q := EstimateTrendQuality(tc.snap)
		if got := DetectTrendDirection(tc.snap, q); got != tc.want {
			t.Errorf("%s: expected %s, got %s (strength=%f)", tc.name, tc.want, got, TrendStrength(tc.snap, q))
		}
	}
}
