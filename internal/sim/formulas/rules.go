package formulas

import (
	"fmt"

	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/tuning"
)

// Rules binds the formulas to a catalog set and the tuning knobs.
type Rules struct {
	cat                    *catalogs.Catalogs
	gameSpeed              float64
	clampNegativeDeuterium bool
}

func NewRules(cat *catalogs.Catalogs, tune tuning.Tuning) *Rules {
	speed := tune.GameSpeed
	if speed <= 0 {
		speed = 1
	}
	return &Rules{cat: cat, gameSpeed: speed, clampNegativeDeuterium: tune.ClampNegativeDeuterium}
}

func (r *Rules) Catalogs() *catalogs.Catalogs { return r.cat }
func (r *Rules) GameSpeed() float64           { return r.gameSpeed }

func (r *Rules) BuildingCost(t model.BuildingType, targetLevel int) (model.Resources, error) {
	def, ok := r.cat.Buildings.ByType[t]
	if !ok {
		return model.Resources{}, fmt.Errorf("formulas: unknown building %q", t)
	}
	return BuildingCost(def.BaseCost, def.Class, targetLevel)
}

func (r *Rules) ResearchCost(t model.TechType, targetLevel int) (model.Resources, error) {
	def, ok := r.cat.Research.ByType[t]
	if !ok {
		return model.Resources{}, fmt.Errorf("formulas: unknown tech %q", t)
	}
	return ResearchCost(def.BaseCost, targetLevel)
}

func (r *Rules) ShipUnitCost(t model.ShipType) (model.Resources, error) {
	def, ok := r.cat.Ships.ByType[t]
	if !ok {
		return model.Resources{}, fmt.Errorf("formulas: unknown ship %q", t)
	}
	return def.Cost, nil
}

func (r *Rules) ShipBatchCost(t model.ShipType, quantity int) (model.Resources, error) {
	unit, err := r.ShipUnitCost(t)
	if err != nil {
		return model.Resources{}, err
	}
	return ShipBatchCost(unit, quantity)
}

func (r *Rules) BuildingSeconds(cost model.Resources, levels model.BuildingLevels) int64 {
	return BuildingSeconds(cost, levels.Get(model.RobotFactory), levels.Get(model.NaniteFactory), r.gameSpeed)
}

func (r *Rules) ResearchSeconds(cost model.Resources, labLevel int) int64 {
	return ResearchSeconds(cost, labLevel, r.gameSpeed)
}

func (r *Rules) ShipUnitSeconds(t model.ShipType, levels model.BuildingLevels) (int64, error) {
	unit, err := r.ShipUnitCost(t)
	if err != nil {
		return 0, err
	}
	return ShipUnitSeconds(unit, levels.Get(model.Shipyard), levels.Get(model.NaniteFactory), r.gameSpeed), nil
}

// Economy is the production and energy balance of a building set.
type Economy struct {
	PerHour           model.Resources `json:"per_hour"`
	EnergyProduction  int64           `json:"energy_production"`
	EnergyConsumption int64           `json:"energy_consumption"`
	EnergyFactor      float64         `json:"energy_factor"`
}

// Economy recomputes hourly rates from building levels and temperature.
func (r *Rules) Economy(levels model.BuildingLevels, temperature int) Economy {
	var prod, cons float64
	for _, t := range model.AllBuildingTypes() {
		def := r.cat.Buildings.ByType[t]
		lvl := levels.Get(t)
		prod += EnergyAt(def.EnergyOutput, lvl)
		cons += EnergyAt(def.EnergyConsumption, lvl)
	}
	factor := EnergyFactor(prod, cons)

	var out model.Resources
	for _, t := range model.AllBuildingTypes() {
		def := r.cat.Buildings.ByType[t]
		lvl := levels.Get(t)
		switch def.Produces {
		case "metal":
			out.Metal += Production(def.Production, lvl, factor)
		case "crystal":
			out.Crystal += Production(def.Production, lvl, factor)
		case "deuterium":
			out.Deuterium += DeuteriumProduction(def.Production, lvl, factor, temperature, r.clampNegativeDeuterium)
		}
	}
	return Economy{
		PerHour:           out,
		EnergyProduction:  int64(prod),
		EnergyConsumption: int64(cons),
		EnergyFactor:      factor,
	}
}
