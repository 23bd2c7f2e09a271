// Package formulas holds the pure economy math: production, energy,
// storage, costs and durations. Nothing here performs I/O or keeps state.
package formulas

import (
	"errors"
	"math"

	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/model"
)

const (
	ProductionGrowth = 1.1

	DeuteriumTempBase  = 1.36
	DeuteriumTempSlope = 0.004

	StorageBase     = 5000
	StorageFactor   = 2.5
	StorageExpScale = 20
	StorageDivisor  = 33

	MineCostGrowth     = 1.5
	FacilityCostGrowth = 2
	ResearchCostGrowth = 2

	BuildingTimeDivisor = 2500
	ResearchTimeDivisor = 1000
	SecondsPerHour      = 3600
	MinDurationSeconds  = 1
)

var (
	ErrInvalidLevel    = errors.New("formulas: target level must be >= 1")
	ErrInvalidQuantity = errors.New("formulas: quantity must be >= 1")
)

func growth(level int) float64 { return math.Pow(ProductionGrowth, float64(level)) }

// Production is the hourly output of a mine: floor(base * L * 1.1^L * factor).
// Level <= 0 produces nothing.
func Production(base float64, level int, energyFactor float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Floor(base * float64(level) * growth(level) * energyFactor)
}

// TemperatureFactor is the deuterium multiplier 1.36 - 0.004*T. It goes
// negative above 340 degrees.
func TemperatureFactor(temperature int) float64 {
	return DeuteriumTempBase - DeuteriumTempSlope*float64(temperature)
}

// DeuteriumProduction applies the temperature factor on top of Production.
// With clampNegative the factor is floored at 0.
func DeuteriumProduction(base float64, level int, energyFactor float64, temperature int, clampNegative bool) float64 {
	if level <= 0 {
		return 0
	}
	tf := TemperatureFactor(temperature)
	if clampNegative && tf < 0 {
		tf = 0
	}
	return math.Floor(base * float64(level) * growth(level) * energyFactor * tf)
}

// EnergyAt is the per-building energy draw or output: floor(base * L * 1.1^L).
func EnergyAt(base float64, level int) float64 {
	if level <= 0 {
		return 0
	}
	return math.Floor(base * float64(level) * growth(level))
}

// EnergyFactor is min(1, production/consumption), and 1 with no consumption.
func EnergyFactor(production, consumption float64) float64 {
	if consumption <= 0 {
		return 1
	}
	return math.Min(1, production/consumption)
}

// StorageCapacity is 5000 * floor(2.5 * e^(20L/33)). Level 0 yields 10000.
func StorageCapacity(level int) float64 {
	return StorageBase * math.Floor(StorageFactor*math.Exp(StorageExpScale*float64(level)/StorageDivisor))
}

// Capacities returns the storage bound for each resource of a state.
func Capacities(s model.ResourceState) model.Resources {
	return model.Resources{
		Metal:     StorageCapacity(s.MetalStorageLevel),
		Crystal:   StorageCapacity(s.CrystalStorageLevel),
		Deuterium: StorageCapacity(s.DeuteriumStorageLevel),
	}
}

// BuildingCost scales base by the class curve for targetLevel.
func BuildingCost(base model.Resources, class catalogs.CostClass, targetLevel int) (model.Resources, error) {
	if targetLevel < 1 {
		return model.Resources{}, ErrInvalidLevel
	}
	var mult float64
	switch class {
	case catalogs.ClassMine:
		mult = math.Pow(MineCostGrowth, float64(targetLevel-1))
	case catalogs.ClassFacility:
		mult = math.Pow(FacilityCostGrowth, float64(targetLevel-1))
	case catalogs.ClassStorage:
		mult = math.Pow(FacilityCostGrowth, float64(targetLevel))
	default:
		return model.Resources{}, errors.New("formulas: unknown cost class " + string(class))
	}
	return base.Scale(mult).Floor(), nil
}

func ResearchCost(base model.Resources, targetLevel int) (model.Resources, error) {
	if targetLevel < 1 {
		return model.Resources{}, ErrInvalidLevel
	}
	return base.Scale(math.Pow(ResearchCostGrowth, float64(targetLevel-1))).Floor(), nil
}

func ShipBatchCost(unit model.Resources, quantity int) (model.Resources, error) {
	if quantity < 1 {
		return model.Resources{}, ErrInvalidQuantity
	}
	return unit.Scale(float64(quantity)).Floor(), nil
}

func duration(total, divisor, gameSpeed float64) int64 {
	seconds := math.Floor(total / divisor * SecondsPerHour / gameSpeed)
	if seconds < MinDurationSeconds || math.IsNaN(seconds) {
		return MinDurationSeconds
	}
	return int64(seconds)
}

// BuildingSeconds: (m+c) / (2500 * (1+robot) * 2^nanite) hours, at least 1s.
func BuildingSeconds(cost model.Resources, robotLevel, naniteLevel int, gameSpeed float64) int64 {
	div := BuildingTimeDivisor * float64(1+robotLevel) * math.Pow(2, float64(naniteLevel))
	return duration(cost.Metal+cost.Crystal, div, gameSpeed)
}

// ResearchSeconds: (m+c+d) / (1000 * (1+lab)) hours, at least 1s.
func ResearchSeconds(cost model.Resources, labLevel int, gameSpeed float64) int64 {
	div := ResearchTimeDivisor * float64(1+labLevel)
	return duration(cost.Metal+cost.Crystal+cost.Deuterium, div, gameSpeed)
}

// ShipUnitSeconds uses the building shape with the shipyard in place of the
// robot factory.
func ShipUnitSeconds(unitCost model.Resources, shipyardLevel, naniteLevel int, gameSpeed float64) int64 {
	return BuildingSeconds(unitCost, shipyardLevel, naniteLevel, gameSpeed)
}
