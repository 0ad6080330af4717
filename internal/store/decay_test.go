package store

import "testing"

func TestExponentialDecayIdentity(t *testing.T) {
	decay := ExponentialDecay(DefaultDecayScale)
	for _, v := range []float64{0, 0.25, 1, 17.5} {
		for _, tick := range []float64{0, 1, 200, 12345} {
			if got := decay(0, tick, v, tick); got != v {
				t.Errorf("decay(0, %v, %v, %v) = %v, want %v", tick, v, tick, got, v)
			}
		}
	}
}

func TestExponentialDecayMonotonic(t *testing.T) {
	decay := ExponentialDecay(DefaultDecayScale)
	prev := decay(0, 10, 5, 10)
	for end := 11.0; end < 2000; end += 37 {
		got := decay(0, end, 5, 10)
		if got > prev {
			t.Fatalf("decay grew from %v to %v at tEnd=%v", prev, got, end)
		}
		if got < 0 {
			t.Fatalf("decay went negative at tEnd=%v", end)
		}
		prev = got
	}
}

func TestExponentialDecayDeterministic(t *testing.T) {
	a := ExponentialDecay(DefaultDecayScale)
	b := ExponentialDecay(DefaultDecayScale)
	if a(0, 500, 3, 100) != b(0, 500, 3, 100) {
		t.Error("two decay policies with the same scale disagree")
	}
}
