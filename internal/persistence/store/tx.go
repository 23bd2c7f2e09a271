package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
)

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ queue.Tx = (*sqlTx)(nil)

func (t *sqlTx) exec(q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, q, args...)
}

// mustAffect turns an UPDATE/DELETE that matched nothing into ErrNotFound.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrNotFound
	}
	return err
}

func (t *sqlTx) CreatePlayer(p model.Player) error {
	_, err := t.exec(`INSERT INTO players(id, username, created_at) VALUES(?,?,?);`, p.ID, p.Username, toMS(p.CreatedAt))
	if isUniqueViolation(err) {
		return queue.ErrUsernameTaken
	}
	return err
}

func (t *sqlTx) GetPlayer(id string) (model.Player, error) {
	var p model.Player
	var created int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT id, username, created_at FROM players WHERE id = ?;`, id).
		Scan(&p.ID, &p.Username, &created)
	if err != nil {
		return p, notFound(err)
	}
	p.CreatedAt = fromMS(created)
	return p, nil
}

func (t *sqlTx) CreatePlanet(p model.Planet) error {
	_, err := t.exec(`INSERT INTO planets(
			id, player_id, name, coord_x, coord_y, temperature, fields_used, fields_max,
			metal, crystal, deuterium, metal_per_hour, crystal_per_hour, deuterium_per_hour,
			energy_production, energy_consumption, last_resource_update)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		p.ID, p.PlayerID, p.Name, p.CoordX, p.CoordY, p.Temperature, p.FieldsUsed, p.FieldsMax,
		p.Stored.Metal, p.Stored.Crystal, p.Stored.Deuterium,
		p.PerHour.Metal, p.PerHour.Crystal, p.PerHour.Deuterium,
		p.EnergyProduction, p.EnergyConsumption, toMS(p.LastResourceUpdate))
	if err != nil {
		return err
	}
	for bt, lvl := range p.Buildings {
		if err := t.SetBuildingLevel(p.ID, bt, lvl); err != nil {
			return err
		}
	}
	for st, n := range p.Ships {
		if _, err := t.exec(`INSERT INTO ships(planet_id, type, count) VALUES(?,?,?);`, p.ID, string(st), n); err != nil {
			return err
		}
	}
	return nil
}

const planetCols = `id, player_id, name, coord_x, coord_y, temperature, fields_used, fields_max,
	metal, crystal, deuterium, metal_per_hour, crystal_per_hour, deuterium_per_hour,
	energy_production, energy_consumption, last_resource_update`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlanet(s scanner) (model.Planet, error) {
	var p model.Planet
	var last int64
	err := s.Scan(&p.ID, &p.PlayerID, &p.Name, &p.CoordX, &p.CoordY, &p.Temperature, &p.FieldsUsed, &p.FieldsMax,
		&p.Stored.Metal, &p.Stored.Crystal, &p.Stored.Deuterium,
		&p.PerHour.Metal, &p.PerHour.Crystal, &p.PerHour.Deuterium,
		&p.EnergyProduction, &p.EnergyConsumption, &last)
	p.LastResourceUpdate = fromMS(last)
	return p, err
}

func (t *sqlTx) GetPlanet(id string) (model.Planet, error) {
	p, err := scanPlanet(t.tx.QueryRowContext(t.ctx, `SELECT `+planetCols+` FROM planets WHERE id = ?;`, id))
	if err != nil {
		return model.Planet{}, notFound(err)
	}
	if p.Buildings, err = t.buildingLevels(id); err != nil {
		return model.Planet{}, err
	}
	if p.Ships, err = t.shipCounts(id); err != nil {
		return model.Planet{}, err
	}
	return p, nil
}

func (t *sqlTx) buildingLevels(planetID string) (model.BuildingLevels, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT type, level FROM buildings WHERE planet_id = ?;`, planetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.BuildingLevels{}
	for rows.Next() {
		var typ string
		var lvl int
		if err := rows.Scan(&typ, &lvl); err != nil {
			return nil, err
		}
		out[model.BuildingType(typ)] = lvl
	}
	return out, rows.Err()
}

func (t *sqlTx) shipCounts(planetID string) (model.ShipCounts, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT type, count FROM ships WHERE planet_id = ?;`, planetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.ShipCounts{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[model.ShipType(typ)] = n
	}
	return out, rows.Err()
}

func (t *sqlTx) ListPlanetIDs(playerID string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT id FROM planets WHERE player_id = ? ORDER BY id;`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *sqlTx) UpdatePlanet(p model.Planet) error {
	return mustAffect(t.exec(`UPDATE planets SET
			name = ?, fields_used = ?, fields_max = ?,
			metal = ?, crystal = ?, deuterium = ?,
			metal_per_hour = ?, crystal_per_hour = ?, deuterium_per_hour = ?,
			energy_production = ?, energy_consumption = ?, last_resource_update = ?
		WHERE id = ?;`,
		p.Name, p.FieldsUsed, p.FieldsMax,
		p.Stored.Metal, p.Stored.Crystal, p.Stored.Deuterium,
		p.PerHour.Metal, p.PerHour.Crystal, p.PerHour.Deuterium,
		p.EnergyProduction, p.EnergyConsumption, toMS(p.LastResourceUpdate),
		p.ID))
}

func (t *sqlTx) SetBuildingLevel(planetID string, bt model.BuildingType, level int) error {
	_, err := t.exec(`INSERT INTO buildings(planet_id, type, level) VALUES(?,?,?)
		ON CONFLICT(planet_id, type) DO UPDATE SET level = excluded.level;`, planetID, string(bt), level)
	return err
}

func (t *sqlTx) AddShips(planetID string, st model.ShipType, n int) error {
	_, err := t.exec(`INSERT INTO ships(planet_id, type, count) VALUES(?,?,?)
		ON CONFLICT(planet_id, type) DO UPDATE SET count = count + excluded.count;`, planetID, string(st), n)
	return err
}

func (t *sqlTx) GetResearchLevels(playerID string) (model.ResearchLevels, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT type, level FROM research WHERE player_id = ?;`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.ResearchLevels{}
	for rows.Next() {
		var typ string
		var lvl int
		if err := rows.Scan(&typ, &lvl); err != nil {
			return nil, err
		}
		out[model.TechType(typ)] = lvl
	}
	return out, rows.Err()
}

func (t *sqlTx) SetResearchLevel(playerID string, tt model.TechType, level int) error {
	_, err := t.exec(`INSERT INTO research(player_id, type, level) VALUES(?,?,?)
		ON CONFLICT(player_id, type) DO UPDATE SET level = excluded.level;`, playerID, string(tt), level)
	return err
}

const queueCols = `id, kind, planet_id, player_id, target, target_level, quantity, completed_count,
	current_ship_end_time, metal_cost, crystal_cost, deuterium_cost, start_time, end_time, status`

func scanQueue(s scanner) (model.QueueEntry, error) {
	var e model.QueueEntry
	var kind, status string
	var shipEnd, start, end int64
	err := s.Scan(&e.ID, &kind, &e.PlanetID, &e.PlayerID, &e.Target, &e.TargetLevel, &e.Quantity, &e.CompletedCount,
		&shipEnd, &e.Cost.Metal, &e.Cost.Crystal, &e.Cost.Deuterium, &start, &end, &status)
	e.Kind = model.OrderKind(kind)
	e.Status = model.QueueStatus(status)
	e.CurrentShipEndTime = fromMS(shipEnd)
	e.StartTime = fromMS(start)
	e.EndTime = fromMS(end)
	return e, err
}

func (t *sqlTx) InsertQueue(e model.QueueEntry) error {
	_, err := t.exec(`INSERT INTO queues(`+queueCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		e.ID, string(e.Kind), e.PlanetID, e.PlayerID, e.Target, e.TargetLevel, e.Quantity, e.CompletedCount,
		toMS(e.CurrentShipEndTime), e.Cost.Metal, e.Cost.Crystal, e.Cost.Deuterium,
		toMS(e.StartTime), toMS(e.EndTime), string(e.Status))
	if isUniqueViolation(err) {
		return queue.ErrQueueActive
	}
	return err
}

func (t *sqlTx) GetQueue(id string) (model.QueueEntry, error) {
	e, err := scanQueue(t.tx.QueryRowContext(t.ctx, `SELECT `+queueCols+` FROM queues WHERE id = ?;`, id))
	if err != nil {
		return model.QueueEntry{}, notFound(err)
	}
	return e, nil
}

func (t *sqlTx) UpdateQueue(e model.QueueEntry) error {
	return mustAffect(t.exec(`UPDATE queues SET completed_count = ?, current_ship_end_time = ?, status = ? WHERE id = ?;`,
		e.CompletedCount, toMS(e.CurrentShipEndTime), string(e.Status), e.ID))
}

func (t *sqlTx) DeleteQueue(id string) error {
	return mustAffect(t.exec(`DELETE FROM queues WHERE id = ?;`, id))
}

func (t *sqlTx) ActiveQueue(kind model.OrderKind, scope string) (model.QueueEntry, bool, error) {
	col := "planet_id"
	if kind == model.KindResearch {
		col = "player_id"
	}
	e, err := scanQueue(t.tx.QueryRowContext(t.ctx,
		`SELECT `+queueCols+` FROM queues WHERE kind = ? AND `+col+` = ? AND status = 'IN_PROGRESS' LIMIT 1;`,
		string(kind), scope))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueueEntry{}, false, nil
	}
	if err != nil {
		return model.QueueEntry{}, false, err
	}
	return e, true, nil
}

func (t *sqlTx) DueQueues(now time.Time) ([]model.QueueEntry, error) {
	ms := toMS(now)
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+queueCols+` FROM queues
		WHERE status = 'IN_PROGRESS'
		  AND ((kind = 'ship' AND current_ship_end_time <= ?) OR (kind <> 'ship' AND end_time <= ?))
		ORDER BY id;`, ms, ms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.QueueEntry
	for rows.Next() {
		e, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
