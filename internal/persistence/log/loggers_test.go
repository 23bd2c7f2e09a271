package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "orders")
	now := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(map[string]int{"n": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "orders")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "orders-2026-01-01-10.jsonl.zst" {
		t.Fatalf("files: %v", files)
	}
	var got []int
	for _, f := range files {
		err := ReadJSONL(f, func(line []byte) error {
			var v map[string]int
			if err := json.Unmarshal(line, &v); err != nil {
				return err
			}
			got = append(got, v["n"])
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("lines: %v", got)
	}
}

func TestOrderLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewOrderLogger(dir)
	ev := queue.Event{
		Type:     queue.EventOrderStarted,
		PlayerID: "u1",
		PlanetID: "pl1",
		Entry:    &model.QueueEntry{ID: "q1", Kind: model.KindBuilding, Target: string(model.MetalMine)},
	}
	if err := l.WriteEvent(ev); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = l.Close()

	files, _ := Files(filepath.Join(dir, "orders"), "orders")
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
	var back queue.Event
	_ = ReadJSONL(files[0], func(line []byte) error { return json.Unmarshal(line, &back) })
	if back.Type != queue.EventOrderStarted || back.Entry == nil || back.Entry.ID != "q1" {
		t.Fatalf("event: %+v", back)
	}
}
