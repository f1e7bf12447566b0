package backoff

import (
	"testing"
	"time"
)

func TestCalculatorCalculate(t *testing.T) {
	calc := NewCalculator(Constant{Interval: 200 * time.Millisecond}, NoJitter{})
	if got := calc.Calculate(0); got != 200*time.Millisecond {
		t.Fatalf("Calculate(0) = %v, want 200ms", got)
	}
	if got := calc.Calculate(7); got != 200*time.Millisecond {
		t.Fatalf("Calculate(7) = %v, want 200ms", got)
	}
}

func TestCalculatorDefaultsToNoJitter(t *testing.T) {
	calc := NewCalculator(Constant{Interval: 50 * time.Millisecond}, nil)
	if got := calc.Calculate(0); got != 50*time.Millisecond {
		t.Fatalf("Calculate(0) = %v, want 50ms with nil jitter defaulted to NoJitter", got)
	}
}

func TestCalculatorSetStrategyAndJitter(t *testing.T) {
	calc := NewCalculator(Constant{Interval: 10 * time.Millisecond}, NoJitter{})
	calc.SetStrategy(Exponential{Base: 100 * time.Millisecond, Multiplier: 2.0, Max: time.Second})
	if got := calc.Calculate(1); got != 200*time.Millisecond {
		t.Fatalf("after SetStrategy, Calculate(1) = %v, want 200ms", got)
	}

	calc.SetJitter(FullJitter{})
	got := calc.Calculate(1)
	if got < 0 || got > 200*time.Millisecond {
		t.Fatalf("after SetJitter(FullJitter), Calculate(1) = %v, out of [0, 200ms]", got)
	}
}
