package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	persistlog "github.com/goodhanky/emago/internal/persistence/log"
	"github.com/goodhanky/emago/internal/persistence/store"
	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
	"github.com/goodhanky/emago/internal/sim/tuning"
	"github.com/goodhanky/emago/internal/transport/httpapi"
)

func init() { color.NoColor = true }

func testServer(t *testing.T) (*queue.Engine, model.Planet) {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "emago.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	tune := tuning.Defaults()
	tune.RateLimits.RequestsPerSecond = 0
	eng := queue.New(db, formulas.NewRules(catalogs.Default(), tune), tune, queue.Config{})
	_, planet, err := eng.RegisterPlayer(context.Background(), "ctl_user")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	mux := http.NewServeMux()
	httpapi.New(eng, httpapi.Options{EnableAdmin: true}, nil).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	prev := baseURL
	baseURL = srv.URL
	t.Cleanup(func() { baseURL = prev })
	return eng, planet
}

func TestPlanetAndQuote(t *testing.T) {
	_, planet := testServer(t)

	var v queue.PlanetView
	if err := call("GET", "/v1/planets/"+planet.ID, nil, &v, nil); err != nil {
		t.Fatalf("planet: %v", err)
	}
	var buf bytes.Buffer
	renderPlanet(&buf, v)
	if !strings.Contains(buf.String(), "metal") || !strings.Contains(buf.String(), "no active orders") {
		t.Fatalf("planet output:\n%s", buf.String())
	}

	var res orderResult
	req := protocol.QuoteRequest{Kind: "building", Target: string(model.MetalMine)}
	if err := call("POST", "/v1/planets/"+planet.ID+"/quote", req, &res, nil); err != nil {
		t.Fatalf("quote: %v", err)
	}
	buf.Reset()
	renderDecision(&buf, res)
	if !strings.Contains(buf.String(), "accepted") || !strings.Contains(buf.String(), "metal 80") {
		t.Fatalf("quote output:\n%s", buf.String())
	}

	req = protocol.QuoteRequest{Kind: "building", Target: string(model.Shipyard)}
	if err := call("POST", "/v1/planets/"+planet.ID+"/quote", req, &res, nil); err != nil {
		t.Fatalf("quote: %v", err)
	}
	buf.Reset()
	renderDecision(&buf, res)
	if !strings.Contains(buf.String(), protocol.ReasonPrerequisitesNotMet) {
		t.Fatalf("rejection output:\n%s", buf.String())
	}
}

func TestCallReturnsAPIError(t *testing.T) {
	testServer(t)
	err := call("GET", "/v1/planets/nope", nil, &queue.PlanetView{}, nil)
	var ae *apiError
	if !errors.As(err, &ae) || ae.Body.Code != protocol.ErrNotFound || ae.Status != 404 {
		t.Fatalf("expected not found api error, got %v", err)
	}
}

func TestSweepAndGrant(t *testing.T) {
	_, planet := testServer(t)

	var res sweepBody
	if err := call("POST", "/v1/sweep", nil, &res, nil); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var buf bytes.Buffer
	renderSweep(&buf, res)
	if !strings.Contains(buf.String(), "nothing due") {
		t.Fatalf("sweep output: %s", buf.String())
	}

	var grant struct {
		Stored model.Resources `json:"stored"`
	}
	if err := call("POST", "/admin/v1/planets/"+planet.ID+"/grant", nil, &grant, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if grant.Stored.Metal != 10000 {
		t.Fatalf("grant should clamp to capacity, got %+v", grant.Stored)
	}
}

func TestReadTrail(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewOrderLogger(dir)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, pid := range []string{"p1", "p2", "p1"} {
		ev := queue.Event{Type: queue.EventOrderStarted, At: at.Add(time.Duration(i) * time.Second), PlayerID: pid, PlanetID: "planet-" + pid,
			Entry: &model.QueueEntry{Kind: model.KindBuilding, Target: string(model.MetalMine)}}
		if err := l.WriteEvent(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	evs, err := readTrail(filepath.Join(dir, "orders"), func(ev queue.Event) bool { return ev.PlayerID == "p1" })
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 2 || !evs[1].At.Equal(at.Add(2*time.Second)) {
		t.Fatalf("events: %+v", evs)
	}
	var buf bytes.Buffer
	renderEvents(&buf, evs)
	if !strings.Contains(buf.String(), "ORDER_STARTED") || !strings.Contains(buf.String(), "building METAL_MINE") {
		t.Fatalf("events output:\n%s", buf.String())
	}
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, store.Counts{Players: 1200, ActiveQueues: map[string]int64{"ship": 3}, SchemaVersion: "1"},
		map[string]string{"buildings": "abcdef0123456789"})
	out := buf.String()
	if !strings.Contains(out, "1,200") || !strings.Contains(out, "abcdef012345") {
		t.Fatalf("stats output:\n%s", out)
	}
}
