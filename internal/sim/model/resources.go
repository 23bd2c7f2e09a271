package model

import "math"

// Resources holds one amount per spendable resource. Amounts are reals in
// memory; callers floor them for display and spend checks.
type Resources struct {
	Metal     float64 `json:"metal"`
	Crystal   float64 `json:"crystal"`
	Deuterium float64 `json:"deuterium"`
}

func (r Resources) Add(o Resources) Resources {
	return Resources{Metal: r.Metal + o.Metal, Crystal: r.Crystal + o.Crystal, Deuterium: r.Deuterium + o.Deuterium}
}

func (r Resources) Sub(o Resources) Resources {
	return Resources{Metal: r.Metal - o.Metal, Crystal: r.Crystal - o.Crystal, Deuterium: r.Deuterium - o.Deuterium}
}

func (r Resources) Scale(f float64) Resources {
	return Resources{Metal: r.Metal * f, Crystal: r.Crystal * f, Deuterium: r.Deuterium * f}
}

func (r Resources) Floor() Resources {
	return Resources{Metal: math.Floor(r.Metal), Crystal: math.Floor(r.Crystal), Deuterium: math.Floor(r.Deuterium)}
}

// Clamp bounds every component to [0, max component].
func (r Resources) Clamp(max Resources) Resources {
	return Resources{
		Metal:     clamp(r.Metal, max.Metal),
		Crystal:   clamp(r.Crystal, max.Crystal),
		Deuterium: clamp(r.Deuterium, max.Deuterium),
	}
}

// Covers reports whether r is at least cost in every component.
func (r Resources) Covers(cost Resources) bool {
	return r.Metal >= cost.Metal && r.Crystal >= cost.Crystal && r.Deuterium >= cost.Deuterium
}

func (r Resources) IsZero() bool {
	return r.Metal == 0 && r.Crystal == 0 && r.Deuterium == 0
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
