package formulas

import (
	"errors"
	"testing"

	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/tuning"
)

func testRules() *Rules {
	return NewRules(catalogs.Default(), tuning.Defaults())
}

func TestProduction(t *testing.T) {
	if got := Production(30, 5, EnergyFactor(100, 200)); got != 120 {
		t.Fatalf("metal L5 @0.5: got %v want 120", got)
	}
	if got := Production(30, 0, 1); got != 0 {
		t.Fatalf("level 0 should produce 0, got %v", got)
	}
	if got := Production(30, -2, 1); got != 0 {
		t.Fatalf("negative level should produce 0, got %v", got)
	}
	if got := Production(30, 1, 1); got != 33 {
		t.Fatalf("metal L1: got %v want 33", got)
	}
}

func TestEnergyFactor(t *testing.T) {
	cases := []struct {
		prod, cons, want float64
	}{
		{100, 200, 0.5},
		{300, 200, 1},
		{0, 0, 1},
		{50, 0, 1},
		{0, 10, 0},
	}
	for _, c := range cases {
		if got := EnergyFactor(c.prod, c.cons); got != c.want {
			t.Fatalf("EnergyFactor(%v,%v)=%v want %v", c.prod, c.cons, got, c.want)
		}
	}
}

func TestDeuteriumProduction_Temperature(t *testing.T) {
	if got := DeuteriumProduction(10, 1, 1, 20, true); got != 14 {
		t.Fatalf("T=20: got %v want 14", got)
	}
	if got := DeuteriumProduction(10, 1, 1, 400, true); got != 0 {
		t.Fatalf("clamped hot planet: got %v want 0", got)
	}
	if got := DeuteriumProduction(10, 1, 1, 400, false); got != -3 {
		t.Fatalf("unclamped hot planet: got %v want -3", got)
	}
}

func TestStorageCapacity(t *testing.T) {
	want := map[int]float64{0: 10000, 1: 20000, 2: 40000, 3: 75000}
	for lvl, w := range want {
		if got := StorageCapacity(lvl); got != w {
			t.Fatalf("StorageCapacity(%d)=%v want %v", lvl, got, w)
		}
	}
}

func TestBuildingCost(t *testing.T) {
	r := testRules()
	cases := []struct {
		b     model.BuildingType
		level int
		want  model.Resources
	}{
		{model.MetalMine, 1, model.Resources{Metal: 80, Crystal: 20}},
		{model.MetalMine, 2, model.Resources{Metal: 120, Crystal: 30}},
		{model.MetalMine, 3, model.Resources{Metal: 180, Crystal: 45}},
		{model.ResearchLab, 1, model.Resources{Metal: 200, Crystal: 400, Deuterium: 200}},
		{model.ResearchLab, 3, model.Resources{Metal: 800, Crystal: 1600, Deuterium: 800}},
		{model.MetalStorage, 1, model.Resources{Metal: 20000}},
		{model.CrystalStorage, 2, model.Resources{Metal: 40000, Crystal: 20000}},
	}
	for _, c := range cases {
		got, err := r.BuildingCost(c.b, c.level)
		if err != nil {
			t.Fatalf("%s L%d: %v", c.b, c.level, err)
		}
		if got != c.want {
			t.Fatalf("%s L%d: got %+v want %+v", c.b, c.level, got, c.want)
		}
	}
}

func TestCosts_RejectLevelBelowOne(t *testing.T) {
	r := testRules()
	if _, err := r.BuildingCost(model.MetalStorage, 0); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("building L0: got %v", err)
	}
	if _, err := r.ResearchCost(model.EnergyTech, 0); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("research L0: got %v", err)
	}
	if _, err := r.ShipBatchCost(model.SmallCargo, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("ships x0: got %v", err)
	}
	if _, err := r.BuildingCost("WARP_GATE", 1); err == nil {
		t.Fatalf("unknown building should fail")
	}
}

func TestCosts_Monotonic(t *testing.T) {
	r := testRules()
	for _, b := range model.AllBuildingTypes() {
		prev, _ := r.BuildingCost(b, 1)
		for lvl := 2; lvl <= 30; lvl++ {
			cur, err := r.BuildingCost(b, lvl)
			if err != nil {
				t.Fatalf("%s L%d: %v", b, lvl, err)
			}
			if !cur.Covers(prev) {
				t.Fatalf("%s: cost(L%d)=%+v < cost(L%d)=%+v", b, lvl, cur, lvl-1, prev)
			}
			prev = cur
		}
	}
	for _, tech := range model.AllTechTypes() {
		prev, _ := r.ResearchCost(tech, 1)
		for lvl := 2; lvl <= 30; lvl++ {
			cur, _ := r.ResearchCost(tech, lvl)
			if !cur.Covers(prev) {
				t.Fatalf("%s: research cost decreased at L%d", tech, lvl)
			}
			prev = cur
		}
	}
}

func TestResearchAndShipCost(t *testing.T) {
	r := testRules()
	got, err := r.ResearchCost(model.EnergyTech, 2)
	if err != nil || got != (model.Resources{Crystal: 1600, Deuterium: 800}) {
		t.Fatalf("energy L2: %+v %v", got, err)
	}
	batch, err := r.ShipBatchCost(model.SmallCargo, 10)
	if err != nil || batch != (model.Resources{Metal: 20000, Crystal: 20000}) {
		t.Fatalf("10 small cargo: %+v %v", batch, err)
	}
}

func TestDurations(t *testing.T) {
	cost := model.Resources{Metal: 80, Crystal: 20}
	if got := BuildingSeconds(cost, 0, 0, 1); got != 144 {
		t.Fatalf("building: got %d want 144", got)
	}
	if got := BuildingSeconds(cost, 1, 0, 1); got != 72 {
		t.Fatalf("robot 1: got %d want 72", got)
	}
	if got := BuildingSeconds(cost, 0, 0, 2); got != 72 {
		t.Fatalf("speed 2: got %d want 72", got)
	}
	if got := BuildingSeconds(cost, 0, 10, 1); got != MinDurationSeconds {
		t.Fatalf("nanite 10 should hit the floor, got %d", got)
	}
	if got := BuildingSeconds(model.Resources{}, 0, 0, 1); got != MinDurationSeconds {
		t.Fatalf("zero cost should hit the floor, got %d", got)
	}
	if got := ResearchSeconds(model.Resources{Crystal: 800, Deuterium: 400}, 1, 1); got != 2160 {
		t.Fatalf("research: got %d want 2160", got)
	}

	r := testRules()
	unit, err := r.ShipUnitSeconds(model.SmallCargo, model.BuildingLevels{model.Shipyard: 2})
	if err != nil || unit != 1920 {
		t.Fatalf("small cargo unit: %d %v", unit, err)
	}
}

func TestEconomy(t *testing.T) {
	r := testRules()

	e := r.Economy(model.BuildingLevels{model.MetalMine: 1, model.SolarPlant: 1}, 20)
	if e.EnergyProduction != 22 || e.EnergyConsumption != 11 || e.EnergyFactor != 1 {
		t.Fatalf("energy: %+v", e)
	}
	if e.PerHour.Metal != 33 {
		t.Fatalf("metal: %v", e.PerHour.Metal)
	}

	e = r.Economy(model.BuildingLevels{
		model.MetalMine: 1, model.CrystalMine: 1, model.DeuteriumSynthesizer: 1, model.SolarPlant: 1,
	}, 20)
	if e.EnergyConsumption != 44 || e.EnergyFactor != 0.5 {
		t.Fatalf("energy: %+v", e)
	}
	want := model.Resources{Metal: 16, Crystal: 11, Deuterium: 7}
	if e.PerHour != want {
		t.Fatalf("rates: got %+v want %+v", e.PerHour, want)
	}

	if e := r.Economy(model.BuildingLevels{}, 20); e.EnergyFactor != 1 || !e.PerHour.IsZero() {
		t.Fatalf("empty planet: %+v", e)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{
		-5:    "0s",
		0:     "0s",
		59:    "59s",
		3600:  "1h",
		93784: "1d 2h 3m 4s",
		86460: "1d 1m",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%d)=%q want %q", in, got, want)
		}
	}
}
