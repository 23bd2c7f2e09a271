package model

import "time"

type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Planet struct {
	ID       string `json:"id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	CoordX   int    `json:"coord_x"`
	CoordY   int    `json:"coord_y"`

	Temperature int `json:"temperature"`
	FieldsUsed  int `json:"fields_used"`
	FieldsMax   int `json:"fields_max"`

	// Stored is valid only as of LastResourceUpdate.
	Stored             Resources `json:"stored"`
	PerHour            Resources `json:"per_hour"`
	EnergyProduction   int64     `json:"energy_production"`
	EnergyConsumption  int64     `json:"energy_consumption"`
	LastResourceUpdate time.Time `json:"last_resource_update"`

	Buildings BuildingLevels `json:"buildings"`
	Ships     ShipCounts     `json:"ships"`
}

// ResourceState is the accrual input: a stored snapshot, hourly rates and
// the storage levels that bound it.
type ResourceState struct {
	Stored     Resources
	PerHour    Resources
	LastUpdate time.Time

	MetalStorageLevel     int
	CrystalStorageLevel   int
	DeuteriumStorageLevel int
}

func (p *Planet) ResourceState() ResourceState {
	return ResourceState{
		Stored:                p.Stored,
		PerHour:               p.PerHour,
		LastUpdate:            p.LastResourceUpdate,
		MetalStorageLevel:     p.Buildings.Get(MetalStorage),
		CrystalStorageLevel:   p.Buildings.Get(CrystalStorage),
		DeuteriumStorageLevel: p.Buildings.Get(DeuteriumTank),
	}
}

// ApplyResourceState writes an accrued or mutated snapshot back.
func (p *Planet) ApplyResourceState(s ResourceState) {
	p.Stored = s.Stored
	p.LastResourceUpdate = s.LastUpdate
}
