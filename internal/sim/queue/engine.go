// Package queue owns every state transition of the economy: registering a
// player, starting and cancelling orders, and the completion sweep. Each
// transition runs in one store transaction.
package queue

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/goodhanky/emago/internal/clock"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/resources"
	"github.com/goodhanky/emago/internal/sim/tuning"
	"github.com/goodhanky/emago/internal/sim/validation"
)

type Config struct {
	Clock  clock.Clock
	Logger *log.Logger
}

type Engine struct {
	store Store
	rules *formulas.Rules
	tune  tuning.Tuning
	clk   clock.Clock
	log   *log.Logger

	events EventLogger
}

func New(store Store, rules *formulas.Rules, tune tuning.Tuning, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Engine{store: store, rules: rules, tune: tune, clk: cfg.Clock, log: cfg.Logger}
}

func (e *Engine) SetEventLogger(l EventLogger) { e.events = l }

func (e *Engine) Rules() *formulas.Rules { return e.rules }

// now is the engine's single time source. Timestamps are kept at
// millisecond precision so they survive a store round trip unchanged.
func (e *Engine) now() time.Time {
	return e.clk.Now().UTC().Truncate(time.Millisecond)
}

func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	if err := e.events.WriteEvent(ev); err != nil {
		e.log.Printf("event %s: %v", ev.Type, err)
	}
}

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// RegisterPlayer creates a player with one starting planet. Every building
// and tech starts at level 0.
func (e *Engine) RegisterPlayer(ctx context.Context, username string) (model.Player, model.Planet, error) {
	if !usernameRE.MatchString(username) {
		return model.Player{}, model.Planet{}, ErrInvalidUsername
	}
	now := e.now()
	st := e.tune.Start

	player := model.Player{ID: uuid.NewString(), Username: username, CreatedAt: now}

	levels := model.BuildingLevels{}
	for _, t := range model.AllBuildingTypes() {
		levels[t] = 0
	}
	temp := st.TemperatureMin
	if span := st.TemperatureMax - st.TemperatureMin; span > 0 {
		temp += rand.IntN(span + 1)
	}
	econ := e.rules.Economy(levels, temp)
	planet := model.Planet{
		ID:                 uuid.NewString(),
		PlayerID:           player.ID,
		Name:               st.Name,
		CoordX:             1 + rand.IntN(st.CoordMax),
		CoordY:             1 + rand.IntN(st.CoordMax),
		Temperature:        temp,
		FieldsMax:          st.FieldsMax,
		Stored:             amounts(st.Resources),
		PerHour:            econ.PerHour,
		EnergyProduction:   econ.EnergyProduction,
		EnergyConsumption:  econ.EnergyConsumption,
		LastResourceUpdate: now,
		Buildings:          levels,
		Ships:              model.ShipCounts{},
	}

	err := e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreatePlayer(player); err != nil {
			return err
		}
		if err := tx.CreatePlanet(planet); err != nil {
			return err
		}
		for _, t := range model.AllTechTypes() {
			if err := tx.SetResearchLevel(player.ID, t, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Player{}, model.Planet{}, err
	}
	e.log.Printf("registered player=%s planet=%s at %d:%d", player.Username, planet.ID, planet.CoordX, planet.CoordY)
	return player, planet, nil
}

// Player returns the player and the ids of its planets.
func (e *Engine) Player(ctx context.Context, playerID string) (model.Player, []string, error) {
	var p model.Player
	var planets []string
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		if p, err = tx.GetPlayer(playerID); err != nil {
			return err
		}
		planets, err = tx.ListPlanetIDs(playerID)
		return err
	})
	return p, planets, err
}

// GiveResources overwrites the planet's stored amounts with the configured
// admin grant, clamped to capacity.
func (e *Engine) GiveResources(ctx context.Context, planetID string) (model.Resources, error) {
	now := e.now()
	grant := amounts(e.tune.AdminGrant)
	var p model.Planet
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.GetPlanet(planetID)
		if err != nil {
			return err
		}
		p.ApplyResourceState(resources.Set(p.ResourceState(), grant, now))
		return tx.UpdatePlanet(p)
	})
	if err != nil {
		return model.Resources{}, err
	}
	stored := p.Stored
	e.emit(Event{Type: EventResourcesSet, At: now, PlayerID: p.PlayerID, PlanetID: p.ID, Amounts: &stored})
	return stored, nil
}

type ActiveOrder struct {
	Entry            model.QueueEntry `json:"entry"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	Remaining        string           `json:"remaining"`
}

// PlanetView is a read-only picture of a planet at one instant.
type PlanetView struct {
	At       time.Time            `json:"at"`
	Planet   model.Planet         `json:"planet"`
	Current  model.Resources      `json:"current"`
	Capacity model.Resources      `json:"capacity"`
	FullIn   resources.FullIn     `json:"full_in"`
	Economy  formulas.Economy     `json:"economy"`
	Research model.ResearchLevels `json:"research"`
	Active   []ActiveOrder        `json:"active"`
}

func (e *Engine) PlanetView(ctx context.Context, planetID string) (PlanetView, error) {
	now := e.now()
	var v PlanetView
	err := e.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPlanet(planetID)
		if err != nil {
			return err
		}
		research, err := tx.GetResearchLevels(p.PlayerID)
		if err != nil {
			return err
		}
		state := p.ResourceState()
		v = PlanetView{
			At:       now,
			Planet:   p,
			Current:  resources.Current(state, now),
			Capacity: formulas.Capacities(state),
			FullIn:   resources.TimeToFull(state, now),
			Economy:  e.rules.Economy(p.Buildings, p.Temperature),
			Research: research,
		}
		for _, k := range []model.OrderKind{model.KindBuilding, model.KindResearch, model.KindShip} {
			q, ok, err := tx.ActiveQueue(k, scopeOf(k, p))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			left := int64(q.EndTime.Sub(now) / time.Second)
			if left < 0 {
				left = 0
			}
			v.Active = append(v.Active, ActiveOrder{Entry: q, RemainingSeconds: left, Remaining: formulas.FormatDuration(left)})
		}
		return nil
	})
	return v, err
}

// Quote runs the validator against the planet's current state without
// changing anything.
func (e *Engine) Quote(ctx context.Context, planetID string, kind model.OrderKind, target string, quantity int) (validation.Decision, error) {
	now := e.now()
	var d validation.Decision
	err := e.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPlanet(planetID)
		if err != nil {
			return err
		}
		d, _, err = e.decide(tx, p, kind, target, quantity, now)
		return err
	})
	return d, err
}

// decide accrues the planet to now and validates the order against it.
func (e *Engine) decide(tx Tx, p model.Planet, kind model.OrderKind, target string, quantity int, now time.Time) (validation.Decision, model.ResourceState, error) {
	research, err := tx.GetResearchLevels(p.PlayerID)
	if err != nil {
		return validation.Decision{}, model.ResourceState{}, err
	}
	active := false
	if kind.Valid() {
		_, active, err = tx.ActiveQueue(kind, scopeOf(kind, p))
		if err != nil {
			return validation.Decision{}, model.ResourceState{}, err
		}
	}
	state := resources.Accrue(p.ResourceState(), now)
	d := validation.ValidateAndQuote(e.rules, validation.Context{
		Kind:           kind,
		Target:         target,
		Quantity:       quantity,
		Buildings:      p.Buildings,
		Research:       research,
		Resources:      state.Stored,
		HasActiveQueue: active,
	})
	return d, state, nil
}

func scopeOf(kind model.OrderKind, p model.Planet) string {
	if kind == model.KindResearch {
		return p.PlayerID
	}
	return p.ID
}

func amounts(a tuning.Amounts) model.Resources {
	return model.Resources{Metal: a.Metal, Crystal: a.Crystal, Deuterium: a.Deuterium}
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
