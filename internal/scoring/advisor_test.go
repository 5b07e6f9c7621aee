package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptrFloat(f float64) *float64 {
	return &f
}

func TestActivity(t *testing.T) {
	tests := []struct {
		name         string
		notified     int
		responded    int
		stored       *float64
		wantScore    float64
		wantFallback bool
	}{
		{"full response rate", 10, 10, nil, 5.0, false},
		{"half response rate", 10, 5, nil, 3.0, false},
		{"zero responses", 10, 0, nil, 1.0, false},
		{"no notifications uses stored", 0, 0, ptrFloat(75), 4.0, false},
		{"no history at all falls back", 0, 0, nil, 3.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Activity(tt.notified, tt.responded, tt.stored, 3.0)
			assert.InDelta(t, tt.wantScore, got.Score, 0.001)
			assert.Equal(t, tt.wantFallback, got.UsedFallback)
		})
	}
}

func TestPerformance(t *testing.T) {
	t.Run("perfect history", func(t *testing.T) {
		got := Performance(PerformanceStats{
			AwardRate:        1.0,
			FulfillmentRate:  1.0,
			AvgResponseHours: 0,
			HasHistory:       true,
		}, nil, 3.0)
		assert.InDelta(t, 5.0, got.Score, 0.001)
		assert.False(t, got.UsedFallback)
	})

	t.Run("worst-case response speed zeroes the speed term", func(t *testing.T) {
		got := Performance(PerformanceStats{
			AwardRate:        1.0,
			FulfillmentRate:  1.0,
			AvgResponseHours: 48, // clamped to the 24h worst case
			HasHistory:       true,
		}, nil, 3.0)
		// blend = 0.5 + 0.3 + 0 = 0.8 -> 1 + 4*0.8 = 4.2
		assert.InDelta(t, 4.2, got.Score, 0.001)
	})

	t.Run("no history uses stored pct", func(t *testing.T) {
		got := Performance(PerformanceStats{}, ptrFloat(50), 3.0)
		assert.InDelta(t, 3.0, got.Score, 0.001)
		assert.False(t, got.UsedFallback)
	})

	t.Run("nothing at all falls back", func(t *testing.T) {
		got := Performance(PerformanceStats{}, nil, 3.0)
		assert.InDelta(t, 3.0, got.Score, 0.001)
		assert.True(t, got.UsedFallback)
	})

	t.Run("rates outside [0,1] are clamped", func(t *testing.T) {
		got := Performance(PerformanceStats{
			AwardRate:       2.0,
			FulfillmentRate: -1.0,
			HasHistory:      true,
		}, nil, 3.0)
		// blend = 0.5*1 + 0 + 0.2*1 = 0.7 -> 3.8
		assert.InDelta(t, 3.8, got.Score, 0.001)
	})
}

func TestTrust(t *testing.T) {
	assert.InDelta(t, 4.2, Trust(4.2).Score, 0.001)
	assert.InDelta(t, 1.0, Trust(0.2).Score, 0.001)
	assert.InDelta(t, 5.0, Trust(9.9).Score, 0.001)
}

func TestComposite_AlwaysInRange(t *testing.T) {
	w := AdvisorWeights{Proximity: 0.40, Activity: 0.25, Performance: 0.20, Trust: 0.15}

	tests := []struct {
		name              string
		p, a, perf, trust float64
		want              float64
	}{
		{"all max", 5, 5, 5, 5, 5.0},
		{"all min", 1, 1, 1, 1, 1.0},
		{"mixed", 5, 3, 3, 3, 3.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Composite(w, tt.p, tt.a, tt.perf, tt.trust)
			assert.InDelta(t, tt.want, got, 0.001)
			assert.GreaterOrEqual(t, got, 1.0)
			assert.LessOrEqual(t, got, 5.0)
		})
	}
}

func TestComposite_ClampsOutOfRangeInputs(t *testing.T) {
	w := AdvisorWeights{Proximity: 1.0}
	assert.InDelta(t, 5.0, Composite(w, 7.0, 0, 0, 0), 0.001)
	assert.InDelta(t, 1.0, Composite(w, -2.0, 0, 0, 0), 0.001)
}
