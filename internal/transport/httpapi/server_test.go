package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodhanky/emago/internal/clock"
	"github.com/goodhanky/emago/internal/persistence/store"
	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/queue"
	"github.com/goodhanky/emago/internal/sim/tuning"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type env struct {
	ts  *httptest.Server
	clk *clock.Fake
	api *Server
}

func newEnv(t *testing.T, mutate func(*Options)) *env {
	t.Helper()
	dir := t.TempDir()
	s, err := store.OpenSQLite(filepath.Join(dir, "emago.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clk := clock.NewFake(t0)
	tune := tuning.Defaults()
	eng := queue.New(s, formulas.NewRules(catalogs.Default(), tune), tune, queue.Config{Clock: clk})
	opts := Options{
		SweepSecret: "s3cret",
		EnableAdmin: true,
		Snapshots:   s,
		SnapshotDir: filepath.Join(dir, "snapshots"),
		Clock:       clk,
	}
	if mutate != nil {
		mutate(&opts)
	}
	api := New(eng, opts, log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	api.Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &env{ts: ts, clk: clk, api: api}
}

func (e *env) do(t *testing.T, method, path, body string, hdr map[string]string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *env) register(t *testing.T, name string) (playerID, planetID string) {
	t.Helper()
	status, body := e.do(t, "POST", "/v1/players", `{"username":"`+name+`"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("register: %d %v", status, body)
	}
	return body["player"].(map[string]any)["id"].(string), body["planet"].(map[string]any)["id"].(string)
}

func TestRegisterAndView(t *testing.T) {
	e := newEnv(t, nil)
	playerID, planetID := e.register(t, "alice")

	if status, body := e.do(t, "POST", "/v1/players", `{"username":"alice"}`, nil); status != http.StatusConflict || body["code"] != protocol.ErrConflict {
		t.Fatalf("duplicate: %d %v", status, body)
	}
	if status, body := e.do(t, "POST", "/v1/players", `{"name":"bob"}`, nil); status != http.StatusBadRequest || body["code"] != protocol.ErrProtoBadRequest {
		t.Fatalf("schema: %d %v", status, body)
	}
	if status, _ := e.do(t, "POST", "/v1/players", `{"username":"b!"}`, nil); status != http.StatusBadRequest {
		t.Fatalf("invalid username: %d", status)
	}

	status, body := e.do(t, "GET", "/v1/players/"+playerID, "", nil)
	if status != http.StatusOK || len(body["planets"].([]any)) != 1 {
		t.Fatalf("player: %d %v", status, body)
	}
	status, body = e.do(t, "GET", "/v1/planets/"+planetID, "", nil)
	if status != http.StatusOK || body["current"].(map[string]any)["metal"].(float64) != 500 {
		t.Fatalf("planet: %d %v", status, body)
	}
	if status, body := e.do(t, "GET", "/v1/planets/nope", "", nil); status != http.StatusNotFound || body["code"] != protocol.ErrNotFound {
		t.Fatalf("missing planet: %d %v", status, body)
	}
}

func TestOrdersLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	_, planetID := e.register(t, "alice")
	base := "/v1/planets/" + planetID

	status, body := e.do(t, "POST", base+"/quote", `{"kind":"building","target":"METAL_MINE"}`, nil)
	if status != http.StatusOK || body["accepted"] != true {
		t.Fatalf("quote: %d %v", status, body)
	}

	status, body = e.do(t, "POST", base+"/buildings", `{"building":"METAL_MINE"}`, nil)
	if status != http.StatusCreated || body["entry"] == nil {
		t.Fatalf("start: %d %v", status, body)
	}
	status, body = e.do(t, "POST", base+"/buildings", `{"building":"CRYSTAL_MINE"}`, nil)
	if status != http.StatusConflict || body["code"] != protocol.ReasonQueueActive {
		t.Fatalf("second start: %d %v", status, body)
	}

	status, body = e.do(t, "POST", base+"/ships", `{"ship":"SMALL_CARGO","quantity":5}`, nil)
	if status != http.StatusBadRequest || body["code"] != protocol.ReasonShipyardLevelInsufficient {
		t.Fatalf("ships: %d %v", status, body)
	}
	missing := body["details"].(map[string]any)["missing_prerequisites"].([]any)
	if len(missing) != 2 {
		t.Fatalf("missing: %v", missing)
	}
	if status, body := e.do(t, "POST", base+"/ships", `{"ship":"SMALL_CARGO","quantity":1000}`, nil); body["code"] != protocol.ReasonInvalidQuantity || status != http.StatusBadRequest {
		t.Fatalf("quantity: %d %v", status, body)
	}

	status, body = e.do(t, "POST", base+"/buildings/cancel", "", nil)
	if status != http.StatusOK || body["refund"].(map[string]any)["metal"].(float64) != 80 {
		t.Fatalf("cancel: %d %v", status, body)
	}
	status, body = e.do(t, "POST", base+"/buildings/cancel", "", nil)
	if status != http.StatusNotFound || body["code"] != protocol.ReasonNoActiveQueue {
		t.Fatalf("cancel again: %d %v", status, body)
	}
	if status, _ := e.do(t, "POST", base+"/fleets/cancel", "", nil); status != http.StatusNotFound {
		t.Fatalf("unknown kind: %d", status)
	}

	status, body = e.do(t, "POST", base+"/buildings", `{"building":"METAL_MINE"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("restart: %d %v", status, body)
	}
	entryID := body["entry"].(map[string]any)["id"].(string)
	status, body = e.do(t, "DELETE", "/v1/queue/building/"+entryID, "", nil)
	if status != http.StatusOK || body["entry"].(map[string]any)["status"] != "CANCELLED" {
		t.Fatalf("cancel by id: %d %v", status, body)
	}
	if status, body := e.do(t, "DELETE", "/v1/queue/building/"+entryID, "", nil); status != http.StatusConflict {
		t.Fatalf("cancel cancelled: %d %v", status, body)
	}
}

func TestSweepRequiresSecret(t *testing.T) {
	e := newEnv(t, nil)
	_, planetID := e.register(t, "alice")
	if status, _ := e.do(t, "POST", "/v1/planets/"+planetID+"/buildings", `{"building":"METAL_MINE"}`, nil); status != http.StatusCreated {
		t.Fatalf("start: %d", status)
	}

	if status, _ := e.do(t, "POST", "/v1/sweep", "", nil); status != http.StatusForbidden {
		t.Fatalf("no token: %d", status)
	}
	if status, _ := e.do(t, "POST", "/v1/sweep", "", map[string]string{"Authorization": "Bearer nope"}); status != http.StatusForbidden {
		t.Fatalf("bad token: %d", status)
	}

	e.clk.Advance(144 * time.Second)
	status, body := e.do(t, "POST", "/v1/sweep", "", map[string]string{"Authorization": "Bearer s3cret"})
	if status != http.StatusOK || body["processed"].(float64) != 1 {
		t.Fatalf("sweep: %d %v", status, body)
	}
	st := e.api.Stats()
	if st.Sweeps != 1 || st.Completions != 1 || st.Accepted != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestSweepWithoutSecretIsLoopbackOnly(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.SweepSecret = "" })
	status, body := e.do(t, "POST", "/v1/sweep", "", nil)
	if status != http.StatusOK || body["processed"].(float64) != 0 {
		t.Fatalf("sweep: %d %v", status, body)
	}
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t, nil)
	_, planetID := e.register(t, "alice")

	status, body := e.do(t, "POST", "/admin/v1/planets/"+planetID+"/grant", "", nil)
	if status != http.StatusOK || body["stored"].(map[string]any)["deuterium"].(float64) != 10000 {
		t.Fatalf("grant: %d %v", status, body)
	}
	status, body = e.do(t, "POST", "/admin/v1/snapshot", "", nil)
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("snapshot: %d %v", status, body)
	}

	off := newEnv(t, func(o *Options) { o.EnableAdmin = false })
	if status, _ := off.do(t, "POST", "/admin/v1/snapshot", "", nil); status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		t.Fatalf("admin disabled: %d", status)
	}
}

func TestCatalog(t *testing.T) {
	e := newEnv(t, nil)
	status, body := e.do(t, "GET", "/v1/catalog", "", nil)
	if status != http.StatusOK {
		t.Fatalf("catalog: %d", status)
	}
	ships := body["ships"].(map[string]any)
	if len(ships) != 5 || body["game_speed"].(float64) != 1 {
		t.Fatalf("catalog: %v", body)
	}
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, func(o *Options) {
		o.RequestsPerSecond = 0.001
		o.Burst = 1
	})
	if status, _ := e.do(t, "GET", "/v1/catalog", "", nil); status != http.StatusOK {
		t.Fatalf("first: %d", status)
	}
	status, body := e.do(t, "GET", "/v1/catalog", "", nil)
	if status != http.StatusTooManyRequests || body["code"] != protocol.ErrRateLimit {
		t.Fatalf("second: %d %v", status, body)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v", in, got)
		}
	}
}
