// Package validation decides whether an order may start. Every check is a
// pure function of its inputs; a rejection is a Decision value, not an
// error.
package validation

import (
	"sort"

	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/model"
)

const (
	MinShipQuantity = 1
	MaxShipQuantity = 999
)

// Context is everything a decision reads. Resources must already be
// accrued to the decision instant.
type Context struct {
	Kind     model.OrderKind
	Target   string
	Quantity int // ships only

	Buildings model.BuildingLevels
	Research  model.ResearchLevels
	Resources model.Resources

	HasActiveQueue bool
}

type MissingPrerequisite struct {
	Type          string `json:"type"` // "building","research","lab","shipyard"
	Name          string `json:"name"`
	RequiredLevel int    `json:"required_level"`
	CurrentLevel  int    `json:"current_level"`
}

type Details struct {
	Required             *model.Resources      `json:"required,omitempty"`
	Available            *model.Resources      `json:"available,omitempty"`
	MissingPrerequisites []MissingPrerequisite `json:"missing_prerequisites,omitempty"`
}

// Quote is the locked-in cost and duration of an accepted order.
type Quote struct {
	Kind            model.OrderKind `json:"kind"`
	Target          string          `json:"target"`
	TargetLevel     int             `json:"target_level,omitempty"`
	Quantity        int             `json:"quantity,omitempty"`
	Cost            model.Resources `json:"cost"`
	DurationSeconds int64           `json:"duration_seconds"`
	UnitSeconds     int64           `json:"unit_seconds,omitempty"`
}

type Decision struct {
	Accepted bool    `json:"accepted"`
	Code     string  `json:"code,omitempty"`
	Details  Details `json:"details,omitempty"`
	Quote    Quote   `json:"quote,omitempty"`
}

func reject(code string) Decision { return Decision{Code: code} }

// ValidateAndQuote dispatches on ctx.Kind.
func ValidateAndQuote(r *formulas.Rules, ctx Context) Decision {
	switch ctx.Kind {
	case model.KindBuilding:
		return Building(r, ctx)
	case model.KindResearch:
		return Research(r, ctx)
	case model.KindShip:
		return Ships(r, ctx)
	}
	return reject(protocol.ErrProtoBadRequest)
}

func Building(r *formulas.Rules, ctx Context) Decision {
	bt := model.BuildingType(ctx.Target)
	def, ok := r.Catalogs().Buildings.ByType[bt]
	if !ok {
		return reject(protocol.ReasonInvalidBuilding)
	}
	if ctx.HasActiveQueue {
		return reject(protocol.ReasonQueueActive)
	}
	if missing := missingPrereqs(def.Requires, ctx); len(missing) > 0 {
		return Decision{Code: protocol.ReasonPrerequisitesNotMet, Details: Details{MissingPrerequisites: missing}}
	}

	target := ctx.Buildings.Get(bt) + 1
	cost, err := r.BuildingCost(bt, target)
	if err != nil {
		return reject(protocol.ReasonInvalidBuilding)
	}
	if d, ok := checkAffordable(cost, ctx.Resources); !ok {
		return d
	}
	return Decision{
		Accepted: true,
		Quote: Quote{
			Kind:            model.KindBuilding,
			Target:          ctx.Target,
			TargetLevel:     target,
			Cost:            cost,
			DurationSeconds: r.BuildingSeconds(cost, ctx.Buildings),
		},
	}
}

func Research(r *formulas.Rules, ctx Context) Decision {
	tt := model.TechType(ctx.Target)
	def, ok := r.Catalogs().Research.ByType[tt]
	if !ok {
		return reject(protocol.ReasonInvalidTech)
	}
	if ctx.HasActiveQueue {
		return reject(protocol.ReasonQueueActive)
	}

	lab := ctx.Buildings.Get(model.ResearchLab)
	var missing []MissingPrerequisite
	if lab < def.LabLevel {
		missing = append(missing, MissingPrerequisite{
			Type: "lab", Name: string(model.ResearchLab), RequiredLevel: def.LabLevel, CurrentLevel: lab,
		})
	}
	missing = append(missing, missingPrereqs(def.Requires, ctx)...)
	if len(missing) > 0 {
		code := protocol.ReasonPrerequisitesNotMet
		if missing[0].Type == "lab" {
			code = protocol.ReasonLabLevelInsufficient
		}
		return Decision{Code: code, Details: Details{MissingPrerequisites: missing}}
	}

	target := ctx.Research.Get(tt) + 1
	cost, err := r.ResearchCost(tt, target)
	if err != nil {
		return reject(protocol.ReasonInvalidTech)
	}
	if d, ok := checkAffordable(cost, ctx.Resources); !ok {
		return d
	}
	return Decision{
		Accepted: true,
		Quote: Quote{
			Kind:            model.KindResearch,
			Target:          ctx.Target,
			TargetLevel:     target,
			Cost:            cost,
			DurationSeconds: r.ResearchSeconds(cost, lab),
		},
	}
}

func Ships(r *formulas.Rules, ctx Context) Decision {
	if ctx.Quantity < MinShipQuantity || ctx.Quantity > MaxShipQuantity {
		return reject(protocol.ReasonInvalidQuantity)
	}
	st := model.ShipType(ctx.Target)
	def, ok := r.Catalogs().Ships.ByType[st]
	if !ok {
		return reject(protocol.ReasonInvalidShip)
	}
	if ctx.HasActiveQueue {
		return reject(protocol.ReasonQueueActive)
	}

	yard := ctx.Buildings.Get(model.Shipyard)
	var missing []MissingPrerequisite
	if yard < def.ShipyardLevel {
		missing = append(missing, MissingPrerequisite{
			Type: "shipyard", Name: string(model.Shipyard), RequiredLevel: def.ShipyardLevel, CurrentLevel: yard,
		})
	}
	missing = append(missing, missingPrereqs(def.Requires, ctx)...)
	if len(missing) > 0 {
		code := protocol.ReasonPrerequisitesNotMet
		if missing[0].Type == "shipyard" {
			code = protocol.ReasonShipyardLevelInsufficient
		}
		return Decision{Code: code, Details: Details{MissingPrerequisites: missing}}
	}

	cost, err := r.ShipBatchCost(st, ctx.Quantity)
	if err != nil {
		return reject(protocol.ReasonInvalidQuantity)
	}
	if d, ok := checkAffordable(cost, ctx.Resources); !ok {
		return d
	}
	unit, err := r.ShipUnitSeconds(st, ctx.Buildings)
	if err != nil {
		return reject(protocol.ReasonInvalidShip)
	}
	return Decision{
		Accepted: true,
		Quote: Quote{
			Kind:            model.KindShip,
			Target:          ctx.Target,
			Quantity:        ctx.Quantity,
			Cost:            cost,
			DurationSeconds: unit * int64(ctx.Quantity),
			UnitSeconds:     unit,
		},
	}
}

// missingPrereqs lists every unmet building/research requirement in a
// stable order.
func missingPrereqs(p catalogs.Prerequisites, ctx Context) []MissingPrerequisite {
	var out []MissingPrerequisite
	for b, req := range p.Buildings {
		if cur := ctx.Buildings.Get(b); cur < req {
			out = append(out, MissingPrerequisite{Type: "building", Name: string(b), RequiredLevel: req, CurrentLevel: cur})
		}
	}
	for t, req := range p.Research {
		if cur := ctx.Research.Get(t); cur < req {
			out = append(out, MissingPrerequisite{Type: "research", Name: string(t), RequiredLevel: req, CurrentLevel: cur})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func checkAffordable(cost, available model.Resources) (Decision, bool) {
	avail := available.Floor()
	if avail.Covers(cost) {
		return Decision{}, true
	}
	return Decision{
		Code:    protocol.ReasonInsufficientResources,
		Details: Details{Required: &cost, Available: &avail},
	}, false
}
