package queue

import (
	"context"
	"sort"
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/resources"
)

// RunSweep applies every due queue entry as of now. Each entry is finalized
// in its own transaction that re-checks it is still IN_PROGRESS, so
// overlapping sweeps apply a completion once. A failing entry is logged
// and skipped.
func (e *Engine) RunSweep(ctx context.Context, now time.Time) ([]Completion, error) {
	now = now.UTC().Truncate(time.Millisecond)

	var due []model.QueueEntry
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		due, err = tx.DueQueues(now)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt().Equal(due[j].DueAt()) {
			return due[i].DueAt().Before(due[j].DueAt())
		}
		return due[i].ID < due[j].ID
	})

	var out []Completion
	for _, q := range due {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		var c Completion
		var after model.QueueEntry
		var applied bool
		err := e.store.InTx(ctx, func(tx Tx) error {
			var err error
			c, after, applied, err = e.complete(tx, q.ID, now)
			return err
		})
		if err != nil {
			e.log.Printf("sweep: %s %s: %v", q.Kind, q.ID, err)
			continue
		}
		if !applied {
			continue
		}
		out = append(out, c)
		typ := EventOrderCompleted
		if !c.BatchComplete {
			typ = EventOrderProgress
		}
		e.emit(Event{Type: typ, At: now, PlayerID: c.PlayerID, PlanetID: c.PlanetID, Entry: &after, Units: c.Units})
	}
	if len(out) > 0 {
		e.log.Printf("sweep: applied %d of %d due entries", len(out), len(due))
	}
	return out, nil
}

// complete applies one due entry and returns the entry as it stands after
// the step.
func (e *Engine) complete(tx Tx, id string, now time.Time) (Completion, model.QueueEntry, bool, error) {
	q, err := tx.GetQueue(id)
	if isNotFound(err) {
		return Completion{}, q, false, nil
	}
	if err != nil {
		return Completion{}, q, false, err
	}
	if q.Status != model.StatusInProgress || q.DueAt().After(now) {
		return Completion{}, q, false, nil
	}
	c := Completion{EntryID: q.ID, Kind: q.Kind, PlanetID: q.PlanetID, PlayerID: q.PlayerID, Target: q.Target}

	var applied bool
	switch q.Kind {
	case model.KindBuilding:
		c, applied, err = e.completeBuilding(tx, &q, c, now)
	case model.KindResearch:
		if err := tx.SetResearchLevel(q.PlayerID, model.TechType(q.Target), q.TargetLevel); err != nil {
			return c, q, false, err
		}
		if err := tx.DeleteQueue(q.ID); err != nil {
			return c, q, false, err
		}
		q.Status = model.StatusCompleted
		c.Level, c.BatchComplete = q.TargetLevel, true
		applied = true
	case model.KindShip:
		c, applied, err = e.completeShips(tx, &q, c, now)
	}
	return c, q, applied, err
}

// completeBuilding settles resources at the old rates up to the completion
// instant, then switches the planet to the new level set.
func (e *Engine) completeBuilding(tx Tx, q *model.QueueEntry, c Completion, now time.Time) (Completion, bool, error) {
	p, err := tx.GetPlanet(q.PlanetID)
	if err != nil {
		return c, false, err
	}
	settleAt := q.EndTime
	if settleAt.After(now) {
		settleAt = now
	}
	p.ApplyResourceState(resources.Accrue(p.ResourceState(), settleAt))

	bt := model.BuildingType(q.Target)
	if err := tx.SetBuildingLevel(p.ID, bt, q.TargetLevel); err != nil {
		return c, false, err
	}
	p.Buildings = p.Buildings.Clone()
	p.Buildings[bt] = q.TargetLevel

	econ := e.rules.Economy(p.Buildings, p.Temperature)
	p.PerHour = econ.PerHour
	p.EnergyProduction = econ.EnergyProduction
	p.EnergyConsumption = econ.EnergyConsumption
	p.FieldsUsed++
	if err := tx.UpdatePlanet(p); err != nil {
		return c, false, err
	}

	q.Status = model.StatusCompleted
	if err := tx.UpdateQueue(*q); err != nil {
		return c, false, err
	}
	c.Level, c.BatchComplete = q.TargetLevel, true
	return c, true, nil
}

// completeShips delivers every unit whose end time has passed, catching up
// on units missed between sweeps.
func (e *Engine) completeShips(tx Tx, q *model.QueueEntry, c Completion, now time.Time) (Completion, bool, error) {
	if q.Quantity <= 0 {
		return c, false, nil
	}
	unit := q.EndTime.Sub(q.StartTime) / time.Duration(q.Quantity)
	remaining := q.Quantity - q.CompletedCount

	n := 0
	next := q.CurrentShipEndTime
	for !next.After(now) && n < remaining {
		n++
		next = next.Add(unit)
	}
	if n == 0 {
		return c, false, nil
	}

	if err := tx.AddShips(q.PlanetID, model.ShipType(q.Target), n); err != nil {
		return c, false, err
	}
	q.CompletedCount += n
	c.Units, c.Delivered = n, q.CompletedCount

	if q.CompletedCount >= q.Quantity {
		if err := tx.DeleteQueue(q.ID); err != nil {
			return c, false, err
		}
		q.Status = model.StatusCompleted
		c.BatchComplete = true
		return c, true, nil
	}
	q.CurrentShipEndTime = next
	if err := tx.UpdateQueue(*q); err != nil {
		return c, false, err
	}
	return c, true, nil
}
