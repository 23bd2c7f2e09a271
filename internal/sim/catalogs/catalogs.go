package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goodhanky/emago/internal/sim/model"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

type Catalogs struct {
	Buildings BuildingCatalog
	Research  ResearchCatalog
	Ships     ShipCatalog
}

// CostClass selects the cost growth curve of a building.
type CostClass string

const (
	ClassMine     CostClass = "MINE"     // base * 1.5^(L-1)
	ClassFacility CostClass = "FACILITY" // base * 2^(L-1)
	ClassStorage  CostClass = "STORAGE"  // base * 2^L
)

type Prerequisites struct {
	Buildings map[model.BuildingType]int `json:"buildings,omitempty"`
	Research  map[model.TechType]int     `json:"research,omitempty"`
}

type BuildingCatalog struct {
	ByType map[model.BuildingType]BuildingDef
	Digest string
}

type BuildingDef struct {
	Type     model.BuildingType `json:"type"`
	Class    CostClass          `json:"class"`
	BaseCost model.Resources    `json:"base_cost"`

	Produces          string  `json:"produces,omitempty"` // "metal","crystal","deuterium","energy"
	Production        float64 `json:"production,omitempty"`
	EnergyConsumption float64 `json:"energy_consumption,omitempty"`
	EnergyOutput      float64 `json:"energy_output,omitempty"`
	Stores            string  `json:"stores,omitempty"`

	Requires Prerequisites `json:"requires"`
}

type ResearchCatalog struct {
	ByType map[model.TechType]ResearchDef
	Digest string
}

type ResearchDef struct {
	Type     model.TechType  `json:"type"`
	BaseCost model.Resources `json:"base_cost"`
	LabLevel int             `json:"lab_level"`
	Requires Prerequisites   `json:"requires"`
}

type ShipCatalog struct {
	ByType map[model.ShipType]ShipDef
	Digest string
}

type ShipDef struct {
	Type          model.ShipType  `json:"type"`
	Cost          model.Resources `json:"cost"`
	ShipyardLevel int             `json:"shipyard_level"`
	Requires      Prerequisites   `json:"requires"`
	Stats         ShipStats       `json:"stats"`
}

type ShipStats struct {
	Hull   int `json:"hull"`
	Shield int `json:"shield"`
	Weapon int `json:"weapon"`
	Cargo  int `json:"cargo"`
	Speed  int `json:"speed"`
	Fuel   int `json:"fuel"`
}

var (
	defaultOnce sync.Once
	defaultCats *Catalogs
)

// Default returns the built-in tables. They are parsed once and must not be
// mutated by callers.
func Default() *Catalogs {
	defaultOnce.Do(func() {
		c, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("catalogs: embedded defaults: %v", err))
		}
		defaultCats = c
	})
	return defaultCats
}

// Load reads buildings.json, research.json and ships.json from configDir.
// A file missing from configDir (or an empty configDir) falls back to the
// embedded default.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	raw, err := readCatalog(configDir, "buildings.json")
	if err != nil {
		return nil, err
	}
	if err := loadBuildings(raw, &c.Buildings); err != nil {
		return nil, err
	}
	if raw, err = readCatalog(configDir, "research.json"); err != nil {
		return nil, err
	}
	if err := loadResearch(raw, &c.Research); err != nil {
		return nil, err
	}
	if raw, err = readCatalog(configDir, "ships.json"); err != nil {
		return nil, err
	}
	if err := loadShips(raw, &c.Ships); err != nil {
		return nil, err
	}
	if err := c.validateRefs(); err != nil {
		return nil, err
	}
	return &c, nil
}

func readCatalog(configDir, name string) ([]byte, error) {
	if configDir != "" {
		b, err := os.ReadFile(filepath.Join(configDir, name))
		if err == nil {
			return b, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return defaultsFS.ReadFile("defaults/" + name)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBuildings(raw []byte, out *BuildingCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []BuildingDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("buildings.json: %w", err)
	}
	out.ByType = map[model.BuildingType]BuildingDef{}
	for _, d := range defs {
		if !d.Type.Valid() {
			return fmt.Errorf("buildings.json: unknown type %q", d.Type)
		}
		switch d.Class {
		case ClassMine, ClassFacility, ClassStorage:
		default:
			return fmt.Errorf("buildings.json: %s: bad class %q", d.Type, d.Class)
		}
		out.ByType[d.Type] = d
	}
	for _, t := range model.AllBuildingTypes() {
		if _, ok := out.ByType[t]; !ok {
			return fmt.Errorf("buildings.json: missing %s", t)
		}
	}
	return nil
}

func loadResearch(raw []byte, out *ResearchCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []ResearchDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("research.json: %w", err)
	}
	out.ByType = map[model.TechType]ResearchDef{}
	for _, d := range defs {
		if !d.Type.Valid() {
			return fmt.Errorf("research.json: unknown type %q", d.Type)
		}
		out.ByType[d.Type] = d
	}
	for _, t := range model.AllTechTypes() {
		if _, ok := out.ByType[t]; !ok {
			return fmt.Errorf("research.json: missing %s", t)
		}
	}
	return nil
}

func loadShips(raw []byte, out *ShipCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []ShipDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("ships.json: %w", err)
	}
	out.ByType = map[model.ShipType]ShipDef{}
	for _, d := range defs {
		if !d.Type.Valid() {
			return fmt.Errorf("ships.json: unknown type %q", d.Type)
		}
		out.ByType[d.Type] = d
	}
	for _, t := range model.AllShipTypes() {
		if _, ok := out.ByType[t]; !ok {
			return fmt.Errorf("ships.json: missing %s", t)
		}
	}
	return nil
}

// validateRefs rejects prerequisites that name unknown types.
// Digest combines the three catalog digests into one identifier.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Buildings.Digest + ":" + c.Research.Digest + ":" + c.Ships.Digest))
}

func (c *Catalogs) validateRefs() error {
	check := func(owner string, p Prerequisites) error {
		for b, lvl := range p.Buildings {
			if !b.Valid() || lvl < 0 {
				return fmt.Errorf("%s: bad building prerequisite %s=%d", owner, b, lvl)
			}
		}
		for t, lvl := range p.Research {
			if !t.Valid() || lvl < 0 {
				return fmt.Errorf("%s: bad research prerequisite %s=%d", owner, t, lvl)
			}
		}
		return nil
	}
	for t, d := range c.Buildings.ByType {
		if err := check(string(t), d.Requires); err != nil {
			return err
		}
	}
	for t, d := range c.Research.ByType {
		if err := check(string(t), d.Requires); err != nil {
			return err
		}
	}
	for t, d := range c.Ships.ByType {
		if err := check(string(t), d.Requires); err != nil {
			return err
		}
	}
	return nil
}
