// Package resources reconstructs planet resources from a stored snapshot
// and elapsed wall-clock time.
package resources

import (
	"math"
	"time"

	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/model"
)

// hoursElapsed is the fractional hours between last and now. A now before
// last counts as zero elapsed time.
func hoursElapsed(last, now time.Time) float64 {
	if last.IsZero() || !now.After(last) {
		return 0
	}
	return now.Sub(last).Hours()
}

// Current returns stored + rate*hours, clamped to [0, capacity].
func Current(s model.ResourceState, now time.Time) model.Resources {
	h := hoursElapsed(s.LastUpdate, now)
	return s.Stored.Add(s.PerHour.Scale(h)).Clamp(formulas.Capacities(s))
}

// Accrue moves the snapshot forward to now. The timestamp never moves
// backwards.
func Accrue(s model.ResourceState, now time.Time) model.ResourceState {
	s.Stored = Current(s, now)
	if now.After(s.LastUpdate) {
		s.LastUpdate = now
	}
	return s
}

// Deduct accrues to now and subtracts cost. Sufficiency is the caller's
// check; the result can go negative if it was skipped.
func Deduct(s model.ResourceState, cost model.Resources, now time.Time) model.ResourceState {
	s = Accrue(s, now)
	s.Stored = s.Stored.Sub(cost)
	return s
}

// Add accrues to now and adds amount, discarding anything above capacity.
func Add(s model.ResourceState, amount model.Resources, now time.Time) model.ResourceState {
	s = Accrue(s, now)
	s.Stored = s.Stored.Add(amount).Clamp(formulas.Capacities(s))
	return s
}

// Set replaces the stored amounts as of now, clamped to capacity.
func Set(s model.ResourceState, amount model.Resources, now time.Time) model.ResourceState {
	s.Stored = amount.Clamp(formulas.Capacities(s))
	s.LastUpdate = now
	return s
}

// FullIn is the seconds until each resource reaches capacity; nil when it
// is already full or not growing.
type FullIn struct {
	Metal     *int64 `json:"metal"`
	Crystal   *int64 `json:"crystal"`
	Deuterium *int64 `json:"deuterium"`
}

func TimeToFull(s model.ResourceState, now time.Time) FullIn {
	cur := Current(s, now)
	caps := formulas.Capacities(s)
	return FullIn{
		Metal:     secondsToFull(cur.Metal, caps.Metal, s.PerHour.Metal),
		Crystal:   secondsToFull(cur.Crystal, caps.Crystal, s.PerHour.Crystal),
		Deuterium: secondsToFull(cur.Deuterium, caps.Deuterium, s.PerHour.Deuterium),
	}
}

func secondsToFull(current, capacity, perHour float64) *int64 {
	if current >= capacity || perHour <= 0 {
		return nil
	}
	sec := int64(math.Ceil((capacity - current) / perHour * 3600))
	return &sec
}
