package queue

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/resources"
	"github.com/goodhanky/emago/internal/sim/validation"
)

var ErrNoActiveQueue = errors.New("no active order of this kind")

// StartResult carries either the created entry or the rejection.
type StartResult struct {
	Decision validation.Decision `json:"decision"`
	Entry    *model.QueueEntry   `json:"entry,omitempty"`
}

func (r StartResult) Accepted() bool { return r.Entry != nil }

func (e *Engine) StartBuilding(ctx context.Context, planetID string, t model.BuildingType) (StartResult, error) {
	return e.Start(ctx, planetID, model.KindBuilding, string(t), 0)
}

func (e *Engine) StartResearch(ctx context.Context, planetID string, t model.TechType) (StartResult, error) {
	return e.Start(ctx, planetID, model.KindResearch, string(t), 0)
}

func (e *Engine) StartShips(ctx context.Context, planetID string, t model.ShipType, quantity int) (StartResult, error) {
	return e.Start(ctx, planetID, model.KindShip, string(t), quantity)
}

// Start validates and, when accepted, deducts the locked-in cost and
// creates the queue entry in the same transaction. A rejection is a
// result, not an error; errors are reserved for missing planets and store
// failures.
func (e *Engine) Start(ctx context.Context, planetID string, kind model.OrderKind, target string, quantity int) (StartResult, error) {
	now := e.now()
	var res StartResult
	err := e.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPlanet(planetID)
		if err != nil {
			return err
		}
		d, state, err := e.decide(tx, p, kind, target, quantity, now)
		if err != nil {
			return err
		}
		res.Decision = d
		if !d.Accepted {
			return nil
		}

		p.ApplyResourceState(resources.Deduct(state, d.Quote.Cost, now))
		if err := tx.UpdatePlanet(p); err != nil {
			return err
		}
		entry := newEntry(p, d.Quote, now)
		if err := tx.InsertQueue(entry); err != nil {
			return err
		}
		res.Entry = &entry
		return nil
	})
	if errors.Is(err, ErrQueueActive) {
		// Lost a race with a concurrent start in the same scope.
		return StartResult{Decision: validation.Decision{Code: protocol.ReasonQueueActive}}, nil
	}
	if err != nil {
		return StartResult{}, err
	}
	if res.Entry != nil {
		entry := *res.Entry
		e.emit(Event{Type: EventOrderStarted, At: now, PlayerID: entry.PlayerID, PlanetID: entry.PlanetID, Entry: &entry})
	}
	return res, nil
}

func newEntry(p model.Planet, q validation.Quote, now time.Time) model.QueueEntry {
	entry := model.QueueEntry{
		ID:          uuid.NewString(),
		Kind:        q.Kind,
		PlanetID:    p.ID,
		PlayerID:    p.PlayerID,
		Target:      q.Target,
		TargetLevel: q.TargetLevel,
		Quantity:    q.Quantity,
		Cost:        q.Cost,
		StartTime:   now,
		EndTime:     now.Add(time.Duration(q.DurationSeconds) * time.Second),
		Status:      model.StatusInProgress,
	}
	if q.Kind == model.KindShip {
		entry.CurrentShipEndTime = now.Add(time.Duration(q.UnitSeconds) * time.Second)
	}
	return entry
}

type CancelResult struct {
	Entry  model.QueueEntry `json:"entry"`
	Refund model.Resources  `json:"refund"`
}

// Cancel stops an IN_PROGRESS entry and credits the refund to its planet,
// clamped to storage. Buildings and research refund the full locked-in
// cost; ship batches refund the units not yet delivered.
func (e *Engine) Cancel(ctx context.Context, kind model.OrderKind, entryID string) (CancelResult, error) {
	now := e.now()
	var res CancelResult
	err := e.store.InTx(ctx, func(tx Tx) error {
		q, err := tx.GetQueue(entryID)
		if err != nil {
			return err
		}
		if q.Kind != kind {
			return ErrNotFound
		}
		res, err = e.cancelInTx(tx, q, now)
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}
	e.emitCancel(res, now)
	return res, nil
}

// CancelActive cancels whatever order of kind is running in the planet's
// scope.
func (e *Engine) CancelActive(ctx context.Context, planetID string, kind model.OrderKind) (CancelResult, error) {
	now := e.now()
	var res CancelResult
	err := e.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPlanet(planetID)
		if err != nil {
			return err
		}
		q, ok, err := tx.ActiveQueue(kind, scopeOf(kind, p))
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveQueue
		}
		res, err = e.cancelInTx(tx, q, now)
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}
	e.emitCancel(res, now)
	return res, nil
}

func (e *Engine) cancelInTx(tx Tx, q model.QueueEntry, now time.Time) (CancelResult, error) {
	if q.Status != model.StatusInProgress {
		return CancelResult{}, ErrNotInProgress
	}
	p, err := tx.GetPlanet(q.PlanetID)
	if err != nil {
		return CancelResult{}, err
	}

	refund := q.Cost
	switch q.Kind {
	case model.KindBuilding:
		q.Status = model.StatusCancelled
		err = tx.UpdateQueue(q)
	case model.KindResearch:
		err = tx.DeleteQueue(q.ID)
	case model.KindShip:
		refund = unitCost(q).Scale(float64(q.Quantity - q.CompletedCount))
		err = tx.DeleteQueue(q.ID)
	}
	if err != nil {
		return CancelResult{}, err
	}

	p.ApplyResourceState(resources.Add(p.ResourceState(), refund, now))
	if err := tx.UpdatePlanet(p); err != nil {
		return CancelResult{}, err
	}
	q.Status = model.StatusCancelled
	return CancelResult{Entry: q, Refund: refund}, nil
}

func (e *Engine) emitCancel(res CancelResult, now time.Time) {
	entry, refund := res.Entry, res.Refund
	e.emit(Event{Type: EventOrderCancelled, At: now, PlayerID: entry.PlayerID, PlanetID: entry.PlanetID, Entry: &entry, Refund: &refund})
}

// unitCost recovers the per-ship cost locked into a batch entry.
func unitCost(q model.QueueEntry) model.Resources {
	if q.Quantity <= 0 {
		return model.Resources{}
	}
	n := float64(q.Quantity)
	return model.Resources{
		Metal:     math.Round(q.Cost.Metal / n),
		Crystal:   math.Round(q.Cost.Crystal / n),
		Deuterium: math.Round(q.Cost.Deuterium / n),
	}
}
