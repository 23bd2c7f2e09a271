package store

import (
	"context"
	"time"

	"github.com/goodhanky/emago/internal/persistence/snapshot"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
)

// Export reads the whole economy in one transaction.
func (s *SQLiteStore) Export(ctx context.Context) (snapshot.State, error) {
	st := snapshot.State{Research: map[string]model.ResearchLevels{}}
	err := s.InTx(ctx, func(qtx queue.Tx) error {
		t := qtx.(*sqlTx)

		rows, err := t.tx.QueryContext(ctx, `SELECT id, username, created_at FROM players ORDER BY id;`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var p model.Player
			var created int64
			if err := rows.Scan(&p.ID, &p.Username, &created); err != nil {
				rows.Close()
				return err
			}
			p.CreatedAt = fromMS(created)
			st.Players = append(st.Players, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = t.tx.QueryContext(ctx, `SELECT `+planetCols+` FROM planets ORDER BY id;`)
		if err != nil {
			return err
		}
		for rows.Next() {
			p, err := scanPlanet(rows)
			if err != nil {
				rows.Close()
				return err
			}
			st.Planets = append(st.Planets, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for i := range st.Planets {
			id := st.Planets[i].ID
			if st.Planets[i].Buildings, err = t.buildingLevels(id); err != nil {
				return err
			}
			if st.Planets[i].Ships, err = t.shipCounts(id); err != nil {
				return err
			}
		}
		for _, p := range st.Players {
			if st.Research[p.ID], err = t.GetResearchLevels(p.ID); err != nil {
				return err
			}
		}

		rows, err = t.tx.QueryContext(ctx, `SELECT `+queueCols+` FROM queues ORDER BY id;`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanQueue(rows)
			if err != nil {
				return err
			}
			st.Queues = append(st.Queues, e)
		}
		return rows.Err()
	})
	return st, err
}

// Import replaces the whole economy with st in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, st snapshot.State) error {
	return s.InTx(ctx, func(qtx queue.Tx) error {
		t := qtx.(*sqlTx)
		for _, table := range []string{"queues", "ships", "buildings", "research", "planets", "players"} {
			if _, err := t.exec(`DELETE FROM ` + table + `;`); err != nil {
				return err
			}
		}
		for _, p := range st.Players {
			if err := t.CreatePlayer(p); err != nil {
				return err
			}
			for tt, lvl := range st.Research[p.ID] {
				if err := t.SetResearchLevel(p.ID, tt, lvl); err != nil {
					return err
				}
			}
		}
		for _, p := range st.Planets {
			if err := t.CreatePlanet(p); err != nil {
				return err
			}
		}
		for _, e := range st.Queues {
			if err := t.InsertQueue(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSnapshot exports the economy to path.
func (s *SQLiteStore) WriteSnapshot(ctx context.Context, path, catalogDigest string) (snapshot.Header, error) {
	st, err := s.Export(ctx)
	if err != nil {
		return snapshot.Header{}, err
	}
	h := snapshot.Header{CreatedAt: time.Now().UTC(), CatalogDigest: catalogDigest}
	if err := snapshot.Write(path, snapshot.SnapshotV1{Header: h, State: st}); err != nil {
		return snapshot.Header{}, err
	}
	return snapshot.ReadHeader(path)
}

// LoadSnapshot reads path and replaces the economy with it.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, path string) (snapshot.Header, error) {
	snap, err := snapshot.Read(path)
	if err != nil {
		return snapshot.Header{}, err
	}
	return snap.Header, s.Import(ctx, snap.State)
}
