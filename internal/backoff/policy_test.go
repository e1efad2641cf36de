package backoff

import (
	"testing"
	"time"
)

func TestCompute_None(t *testing.T) {
	p := Policy{Strategy: None, Base: 100 * time.Millisecond}
	if got := Compute(p, 3); got != 0 {
		t.Errorf("None strategy: got %v, want 0", got)
	}
}

func TestCompute_Linear(t *testing.T) {
	p := Policy{Strategy: Linear, Base: 50 * time.Millisecond}
	if got := Compute(p, 3); got != 150*time.Millisecond {
		t.Errorf("Linear strategy attempt 3: got %v, want 150ms", got)
	}
}

func TestCompute_Exponential(t *testing.T) {
	p := Policy{Strategy: Exponential, Base: 100 * time.Millisecond}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, c := range cases {
		if got := Compute(p, c.attempt); got != c.want {
			t.Errorf("Exponential attempt %d: got %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestCompute_ExponentialCapped(t *testing.T) {
	p := Policy{Strategy: Exponential, Base: 100 * time.Millisecond, Max: 500 * time.Millisecond}
	if got := Compute(p, 4); got != 500*time.Millisecond {
		t.Errorf("Exponential attempt 4 capped: got %v, want 500ms", got)
	}
}

func TestComputeWithRand_ExponentialJitterSymmetric(t *testing.T) {
	p := Policy{Strategy: ExponentialJitter, Base: 100 * time.Millisecond, Jitter: 0.2}
	d := float64(100 * time.Millisecond) // attempt 1 base delay

	// randomValue 0.0 maps to the minimum of the jitter range: d - jitter*d.
	low := ComputeWithRand(p, 1, 0.0)
	wantLow := time.Duration(d - 0.2*d)
	if low != wantLow {
		t.Errorf("low jitter bound: got %v, want %v", low, wantLow)
	}

	// randomValue 1.0 maps to the maximum of the jitter range: d + jitter*d.
	high := ComputeWithRand(p, 1, 1.0)
	wantHigh := time.Duration(d + 0.2*d)
	if high != wantHigh {
		t.Errorf("high jitter bound: got %v, want %v", high, wantHigh)
	}

	// randomValue 0.5 maps to the unjittered midpoint.
	mid := ComputeWithRand(p, 1, 0.5)
	if mid != time.Duration(d) {
		t.Errorf("mid jitter: got %v, want %v", mid, time.Duration(d))
	}
}

func TestComputeWithRand_JitterNeverNegative(t *testing.T) {
	p := Policy{Strategy: ExponentialJitter, Base: 10 * time.Millisecond, Jitter: 5.0}
	if got := ComputeWithRand(p, 1, 0.0); got < 0 {
		t.Errorf("delay went negative: %v", got)
	}
}

func TestCompute_AttemptBelowOneClampedToOne(t *testing.T) {
	p := Policy{Strategy: Exponential, Base: 100 * time.Millisecond}
	if got := Compute(p, 0); got != 100*time.Millisecond {
		t.Errorf("attempt 0 should behave as attempt 1: got %v", got)
	}
}
