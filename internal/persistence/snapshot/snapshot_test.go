package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/goodhanky/emago/internal/sim/model"
)

func sampleState() State {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return State{
		Players: []model.Player{{ID: "p1", Username: "alice", CreatedAt: t0}},
		Planets: []model.Planet{{
			ID: "pl1", PlayerID: "p1", Name: "Homeworld", CoordX: 3, CoordY: 7,
			Stored:             model.Resources{Metal: 512.5, Crystal: 500},
			LastResourceUpdate: t0,
			Buildings:          model.BuildingLevels{model.MetalMine: 2},
			Ships:              model.ShipCounts{model.SmallCargo: 4},
		}},
		Research: map[string]model.ResearchLevels{"p1": {model.EnergyTech: 1}},
		Queues: []model.QueueEntry{{
			ID: "q1", Kind: model.KindBuilding, PlanetID: "pl1", PlayerID: "p1",
			Target: string(model.MetalMine), TargetLevel: 3, StartTime: t0, EndTime: t0.Add(time.Hour),
			Status: model.StatusInProgress,
		}},
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "export.zst")
	if err := Write(path, SnapshotV1{Header: Header{CatalogDigest: "abc"}, State: sampleState()}); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != Version || h.Players != 1 || h.Planets != 1 || h.Queues != 1 || h.CatalogDigest != "abc" || len(h.Checksum) != 64 {
		t.Fatalf("header: %+v", h)
	}

	snap, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p := snap.State.Planets[0]
	if p.Stored.Metal != 512.5 || p.Buildings[model.MetalMine] != 2 || p.Ships[model.SmallCargo] != 4 {
		t.Fatalf("planet: %+v", p)
	}
	if snap.State.Research["p1"][model.EnergyTech] != 1 {
		t.Fatalf("research: %+v", snap.State.Research)
	}
	if !snap.State.Queues[0].EndTime.Equal(sampleState().Queues[0].EndTime) {
		t.Fatalf("queue: %+v", snap.State.Queues[0])
	}
}

func TestRead_RejectsTamperedBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.zst")
	if err := Write(path, SnapshotV1{State: sampleState()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}

	// Re-encode the same header with a different body.
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, _ := zstd.NewWriter(f)
	hb := `{"version":1,"checksum":"` + h.Checksum + `"}` + "\n"
	_, _ = enc.Write([]byte(hb + "not gob"))
	_ = enc.Close()
	_ = f.Close()

	if _, err := Read(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}
