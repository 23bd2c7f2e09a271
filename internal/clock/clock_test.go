package clock

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	if (RealClock{}).Now().IsZero() {
		t.Fatalf("expected non-zero time")
	}
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)
	if !clk.Now().Equal(start) {
		t.Fatalf("expected start time")
	}
	clk.Advance(1500 * time.Millisecond)
	if want := start.Add(1500 * time.Millisecond); !clk.Now().Equal(want) {
		t.Fatalf("expected %v got %v", want, clk.Now())
	}
	clk.Set(start)
	if !clk.Now().Equal(start) {
		t.Fatalf("set: %v", clk.Now())
	}
}
