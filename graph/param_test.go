package graph

import (
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParamLinearRamp(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)

	tests := []struct {
		at   float64
		want float64
	}{
		{0.5, 0},
		{1, 0},
		{1.25, 0.25},
		{1.5, 0.5},
		{2, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.at); !approx(got, tt.want) {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestParamCancelScheduledValues(t *testing.T) {
	p := NewParam(0.5)
	p.SetValueAtTime(0.5, 0)
	p.LinearRampToValueAtTime(0, 1)
	p.CancelScheduledValues(0.5)
	if got := p.ValueAt(2); !approx(got, 0.5) {
		t.Errorf("after cancel ValueAt(2) = %v, want 0.5", got)
	}
}

func TestRampToStartsFromHeardValue(t *testing.T) {
	p := NewParam(0)
	p.RampTo(1, 0, time.Second)
	// Halfway through, a new ramp takes over from 0.5.
	p.RampTo(0, 0.5, 500*time.Millisecond)

	if got := p.ValueAt(0.5); !approx(got, 0.5) {
		t.Errorf("ValueAt(0.5) = %v, want 0.5", got)
	}
	if got := p.ValueAt(0.75); !approx(got, 0.25) {
		t.Errorf("ValueAt(0.75) = %v, want 0.25", got)
	}
	if got := p.ValueAt(2); !approx(got, 0) {
		t.Errorf("ValueAt(2) = %v, want 0 (last ramp wins)", got)
	}
	if got := p.Target(); got != 0 {
		t.Errorf("Target = %v, want 0", got)
	}
}

func TestRampToZeroDurationJumps(t *testing.T) {
	p := NewParam(0.3)
	p.RampTo(0.8, 1, 0)
	if got := p.ValueAt(1); !approx(got, 0.8) {
		t.Errorf("ValueAt(1) = %v, want 0.8", got)
	}
}
