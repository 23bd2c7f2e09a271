package model

type BuildingType string

const (
	MetalMine            BuildingType = "METAL_MINE"
	CrystalMine          BuildingType = "CRYSTAL_MINE"
	DeuteriumSynthesizer BuildingType = "DEUTERIUM_SYNTHESIZER"
	SolarPlant           BuildingType = "SOLAR_PLANT"
	MetalStorage         BuildingType = "METAL_STORAGE"
	CrystalStorage       BuildingType = "CRYSTAL_STORAGE"
	DeuteriumTank        BuildingType = "DEUTERIUM_TANK"
	ResearchLab          BuildingType = "RESEARCH_LAB"
	Shipyard             BuildingType = "SHIPYARD"
	RobotFactory         BuildingType = "ROBOT_FACTORY"
	NaniteFactory        BuildingType = "NANITE_FACTORY"
)

func AllBuildingTypes() []BuildingType {
	return []BuildingType{
		MetalMine, CrystalMine, DeuteriumSynthesizer, SolarPlant,
		MetalStorage, CrystalStorage, DeuteriumTank,
		ResearchLab, Shipyard, RobotFactory, NaniteFactory,
	}
}

func (t BuildingType) Valid() bool {
	for _, b := range AllBuildingTypes() {
		if b == t {
			return true
		}
	}
	return false
}

type TechType string

const (
	EnergyTech      TechType = "ENERGY"
	ComputerTech    TechType = "COMPUTER"
	WeaponsTech     TechType = "WEAPONS"
	ShieldingTech   TechType = "SHIELDING"
	ArmorTech       TechType = "ARMOR"
	CombustionDrive TechType = "COMBUSTION_DRIVE"
	ImpulseDrive    TechType = "IMPULSE_DRIVE"
	HyperspaceDrive TechType = "HYPERSPACE_DRIVE"
	EspionageTech   TechType = "ESPIONAGE"
)

func AllTechTypes() []TechType {
	return []TechType{
		EnergyTech, ComputerTech, WeaponsTech, ShieldingTech, ArmorTech,
		CombustionDrive, ImpulseDrive, HyperspaceDrive, EspionageTech,
	}
}

func (t TechType) Valid() bool {
	for _, x := range AllTechTypes() {
		if x == t {
			return true
		}
	}
	return false
}

type ShipType string

const (
	SmallCargo   ShipType = "SMALL_CARGO"
	LargeCargo   ShipType = "LARGE_CARGO"
	LightFighter ShipType = "LIGHT_FIGHTER"
	HeavyFighter ShipType = "HEAVY_FIGHTER"
	Cruiser      ShipType = "CRUISER"
)

func AllShipTypes() []ShipType {
	return []ShipType{SmallCargo, LargeCargo, LightFighter, HeavyFighter, Cruiser}
}

func (t ShipType) Valid() bool {
	for _, x := range AllShipTypes() {
		if x == t {
			return true
		}
	}
	return false
}

// BuildingLevels, ResearchLevels and ShipCounts are total: a missing key
// reads as 0.
type BuildingLevels map[BuildingType]int

func (m BuildingLevels) Get(t BuildingType) int { return m[t] }

func (m BuildingLevels) Clone() BuildingLevels {
	out := make(BuildingLevels, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type ResearchLevels map[TechType]int

func (m ResearchLevels) Get(t TechType) int { return m[t] }

func (m ResearchLevels) Clone() ResearchLevels {
	out := make(ResearchLevels, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type ShipCounts map[ShipType]int

func (m ShipCounts) Get(t ShipType) int { return m[t] }
