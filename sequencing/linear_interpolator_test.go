package sequencing

import (
	"context"
	"math"
	"testing"
	"time"
)

func areNear(f1, f2, margin float64) bool {
	return math.Abs(f1-f2) < margin
}

func TestNewLinearInterpolator(t *testing.T) {

	assertNearValue := func(t testing.TB, value, expected float64) {
		t.Helper()
		if !areNear(value, expected, 0.05) {
			t.Errorf("got %f but expected %f", value, expected)
		}
	}

	t.Run("reaches final value", func(t *testing.T) {
		interpolator := NewLinearInterpolator(context.Background(), 0.0, 1.0, 300*time.Millisecond, 60*time.Millisecond)
		expected := []float64{0.2, 0.4, 0.6, 0.8, 1.0}
		var last float64
		i := 0
		for value := range interpolator.C {
			if i < len(expected)-1 {
				assertNearValue(t, value, expected[i])
			}
			last = value
			i++
		}
		if last != 1.0 {
			t.Errorf("got final %f, expected 1.0", last)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		interpolator := NewLinearInterpolator(ctx, 1.0, 0.0, time.Hour, 10*time.Millisecond)
		<-interpolator.C
		cancel()
		for range interpolator.C {
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		interpolator := NewLinearInterpolator(context.Background(), 0.0, 1.0, time.Hour, 10*time.Millisecond)
		interpolator.Stop()
		interpolator.Stop()
		for range interpolator.C {
		}
	})
}
