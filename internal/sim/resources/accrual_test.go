package resources

import (
	"testing"
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func baseState() model.ResourceState {
	return model.ResourceState{
		Stored:     model.Resources{Metal: 500, Crystal: 500, Deuterium: 0},
		PerHour:    model.Resources{Metal: 100, Crystal: 50, Deuterium: 10},
		LastUpdate: t0,
	}
}

func TestCurrent_FractionalHours(t *testing.T) {
	got := Current(baseState(), t0.Add(90*time.Minute))
	want := model.Resources{Metal: 650, Crystal: 575, Deuterium: 15}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestCurrent_MonotonicAndCapped(t *testing.T) {
	s := baseState()
	prev := Current(s, t0)
	for h := 1; h <= 500; h += 7 {
		cur := Current(s, t0.Add(time.Duration(h)*time.Hour))
		if !cur.Covers(prev) {
			t.Fatalf("decreased at %dh: %+v < %+v", h, cur, prev)
		}
		if cur.Metal > 10000 || cur.Crystal > 10000 || cur.Deuterium > 10000 {
			t.Fatalf("exceeded level-0 capacity at %dh: %+v", h, cur)
		}
		prev = cur
	}
	if prev.Metal != 10000 {
		t.Fatalf("expected metal to cap at 10000, got %v", prev.Metal)
	}
}

func TestCurrent_ClockSkewDoesNotDecrease(t *testing.T) {
	s := baseState()
	got := Current(s, t0.Add(-2*time.Hour))
	if got != s.Stored {
		t.Fatalf("now before last update should not change amounts: %+v", got)
	}
	acc := Accrue(s, t0.Add(-time.Hour))
	if !acc.LastUpdate.Equal(t0) {
		t.Fatalf("timestamp moved backwards: %v", acc.LastUpdate)
	}
}

func TestDeduct_AccruesThenSubtracts(t *testing.T) {
	now := t0.Add(time.Hour)
	got := Deduct(baseState(), model.Resources{Metal: 80, Crystal: 20}, now)
	want := model.Resources{Metal: 520, Crystal: 530, Deuterium: 10}
	if got.Stored != want {
		t.Fatalf("got %+v want %+v", got.Stored, want)
	}
	if !got.LastUpdate.Equal(now) {
		t.Fatalf("last update not advanced: %v", got.LastUpdate)
	}

	// Over-spend is the caller's contract; the state simply goes negative.
	neg := Deduct(baseState(), model.Resources{Metal: 1000}, t0)
	if neg.Stored.Metal != -500 {
		t.Fatalf("expected -500, got %v", neg.Stored.Metal)
	}
}

func TestAdd_ClampsToCapacity(t *testing.T) {
	s := baseState()
	s.MetalStorageLevel = 1
	got := Add(s, model.Resources{Metal: 50000, Crystal: 100}, t0)
	if got.Stored.Metal != 20000 {
		t.Fatalf("metal should cap at 20000, got %v", got.Stored.Metal)
	}
	if got.Stored.Crystal != 600 {
		t.Fatalf("crystal: got %v", got.Stored.Crystal)
	}
}

func TestSet(t *testing.T) {
	now := t0.Add(time.Hour)
	got := Set(baseState(), model.Resources{Metal: 100000, Crystal: 5, Deuterium: 5}, now)
	if got.Stored != (model.Resources{Metal: 10000, Crystal: 5, Deuterium: 5}) || !got.LastUpdate.Equal(now) {
		t.Fatalf("got %+v", got)
	}
}

func TestTimeToFull(t *testing.T) {
	s := baseState()
	s.PerHour.Crystal = 0
	s.Stored.Deuterium = 10000
	got := TimeToFull(s, t0)
	if got.Metal == nil || *got.Metal != 342000 {
		t.Fatalf("metal: %v", got.Metal)
	}
	if got.Crystal != nil {
		t.Fatalf("zero rate should be nil")
	}
	if got.Deuterium != nil {
		t.Fatalf("full storage should be nil")
	}
}
