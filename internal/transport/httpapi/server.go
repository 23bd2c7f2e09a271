// Package httpapi exposes the engine over JSON/HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goodhanky/emago/internal/clock"
	"github.com/goodhanky/emago/internal/persistence/snapshot"
	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
	"github.com/goodhanky/emago/internal/sim/validation"
)

const maxBodyBytes = 64 * 1024

// Snapshotter is the store surface behind POST /admin/v1/snapshot.
type Snapshotter interface {
	WriteSnapshot(ctx context.Context, path, catalogDigest string) (snapshot.Header, error)
}

type Options struct {
	// SweepSecret, when set, must be presented as a bearer token on
	// POST /v1/sweep. When empty the sweep is accepted from loopback only.
	SweepSecret string

	// EnableAdmin mounts the loopback-only /admin/v1 routes.
	EnableAdmin bool
	Snapshots   Snapshotter
	SnapshotDir string

	RequestsPerSecond float64
	Burst             int

	// Events serves the per-player event stream.
	Events http.Handler

	Clock clock.Clock
}

type Server struct {
	eng  *queue.Engine
	opts Options
	log  *log.Logger

	limiters *clientLimiters

	mu    sync.Mutex
	stats Stats
}

// Stats are cumulative counters for the metrics endpoint.
type Stats struct {
	Requests    uint64
	Accepted    uint64
	Rejected    map[string]uint64
	Sweeps      uint64
	Completions uint64
}

func New(eng *queue.Engine, opts Options, logger *log.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		eng:      eng,
		opts:     opts,
		log:      logger,
		limiters: newClientLimiters(opts.RequestsPerSecond, opts.Burst),
		stats:    Stats{Rejected: map[string]uint64{}},
	}
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Rejected = make(map[string]uint64, len(s.stats.Rejected))
	for k, v := range s.stats.Rejected {
		out.Rejected[k] = v
	}
	return out
}

func (s *Server) count(fn func(st *Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Routes registers every API route on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("POST /v1/players", s.limited(s.handleRegister))
	mux.Handle("GET /v1/players/{id}", s.limited(s.handlePlayer))
	if s.opts.Events != nil {
		mux.Handle("GET /v1/players/{id}/events", s.opts.Events)
	}

	mux.Handle("GET /v1/planets/{id}", s.limited(s.handlePlanet))
	mux.Handle("POST /v1/planets/{id}/quote", s.limited(s.handleQuote))
	mux.Handle("POST /v1/planets/{id}/buildings", s.limited(s.handleStartBuilding))
	mux.Handle("POST /v1/planets/{id}/research", s.limited(s.handleStartResearch))
	mux.Handle("POST /v1/planets/{id}/ships", s.limited(s.handleStartShips))
	mux.Handle("POST /v1/planets/{id}/{kind}/cancel", s.limited(s.handleCancelActive))
	mux.Handle("DELETE /v1/queue/{kind}/{entry}", s.limited(s.handleCancelEntry))

	mux.Handle("GET /v1/catalog", s.limited(s.handleCatalog))
	mux.HandleFunc("POST /v1/sweep", s.handleSweep)

	if s.opts.EnableAdmin {
		mux.HandleFunc("POST /admin/v1/planets/{id}/grant", s.loopbackOnly(s.handleGrant))
		mux.HandleFunc("POST /admin/v1/snapshot", s.loopbackOnly(s.handleSnapshot))
	}
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	counted := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.Requests++ })
		h(rw, r)
	})
	return s.limiters.wrap(counted, func(rw http.ResponseWriter) {
		writeError(rw, protocol.ErrRateLimit, "too many requests")
	})
}

func (s *Server) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			writeError(rw, protocol.ErrNoPermission, "forbidden")
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if !s.decode(rw, r, protocol.SchemaRegister, &req) {
		return
	}
	player, planet, err := s.eng.RegisterPlayer(r.Context(), req.Username)
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, map[string]any{"player": player, "planet": planet})
}

func (s *Server) handlePlayer(rw http.ResponseWriter, r *http.Request) {
	player, planets, err := s.eng.Player(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	if planets == nil {
		planets = []string{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"player": player, "planets": planets})
}

func (s *Server) handlePlanet(rw http.ResponseWriter, r *http.Request) {
	v, err := s.eng.PlanetView(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) handleQuote(rw http.ResponseWriter, r *http.Request) {
	var req protocol.QuoteRequest
	if !s.decode(rw, r, protocol.SchemaQuote, &req) {
		return
	}
	d, err := s.eng.Quote(r.Context(), r.PathValue("id"), model.OrderKind(req.Kind), req.Target, req.Quantity)
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, decisionBody(d, nil))
}

func (s *Server) handleStartBuilding(rw http.ResponseWriter, r *http.Request) {
	var req protocol.StartBuildingRequest
	if !s.decode(rw, r, protocol.SchemaStartBuilding, &req) {
		return
	}
	res, err := s.eng.StartBuilding(r.Context(), r.PathValue("id"), model.BuildingType(req.Building))
	s.writeStart(rw, res, err)
}

func (s *Server) handleStartResearch(rw http.ResponseWriter, r *http.Request) {
	var req protocol.StartResearchRequest
	if !s.decode(rw, r, protocol.SchemaStartResearch, &req) {
		return
	}
	res, err := s.eng.StartResearch(r.Context(), r.PathValue("id"), model.TechType(req.Tech))
	s.writeStart(rw, res, err)
}

func (s *Server) handleStartShips(rw http.ResponseWriter, r *http.Request) {
	var req protocol.StartShipsRequest
	if !s.decode(rw, r, protocol.SchemaStartShips, &req) {
		return
	}
	res, err := s.eng.StartShips(r.Context(), r.PathValue("id"), model.ShipType(req.Ship), req.Quantity)
	s.writeStart(rw, res, err)
}

func (s *Server) writeStart(rw http.ResponseWriter, res queue.StartResult, err error) {
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	if !res.Accepted() {
		s.count(func(st *Stats) { st.Rejected[res.Decision.Code]++ })
		writeJSON(rw, protocol.HTTPStatus(res.Decision.Code), decisionBody(res.Decision, nil))
		return
	}
	s.count(func(st *Stats) { st.Accepted++ })
	writeJSON(rw, http.StatusCreated, decisionBody(res.Decision, res.Entry))
}

type orderBody struct {
	Accepted bool                `json:"accepted"`
	Code     string              `json:"code,omitempty"`
	Details  *validation.Details `json:"details,omitempty"`
	Quote    *validation.Quote   `json:"quote,omitempty"`
	Entry    *model.QueueEntry   `json:"entry,omitempty"`
}

func decisionBody(d validation.Decision, entry *model.QueueEntry) orderBody {
	b := orderBody{Accepted: d.Accepted, Code: d.Code, Entry: entry}
	if d.Accepted {
		q := d.Quote
		b.Quote = &q
	} else if d.Details.Required != nil || len(d.Details.MissingPrerequisites) > 0 {
		det := d.Details
		b.Details = &det
	}
	return b
}

func (s *Server) handleCancelActive(rw http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.PathValue("kind"))
	if !ok {
		writeError(rw, protocol.ErrNotFound, "unknown queue kind")
		return
	}
	res, err := s.eng.CancelActive(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) handleCancelEntry(rw http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.PathValue("kind"))
	if !ok {
		writeError(rw, protocol.ErrNotFound, "unknown queue kind")
		return
	}
	res, err := s.eng.Cancel(r.Context(), kind, r.PathValue("entry"))
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) handleCatalog(rw http.ResponseWriter, r *http.Request) {
	cats := s.eng.Rules().Catalogs()
	writeJSON(rw, http.StatusOK, map[string]any{
		"digests": protocol.CatalogDigests{
			Buildings: cats.Buildings.Digest,
			Research:  cats.Research.Digest,
			Ships:     cats.Ships.Digest,
		},
		"game_speed": s.eng.Rules().GameSpeed(),
		"buildings":  cats.Buildings.ByType,
		"research":   cats.Research.ByType,
		"ships":      cats.Ships.ByType,
	})
}

func (s *Server) handleSweep(rw http.ResponseWriter, r *http.Request) {
	if !s.sweepAuthorized(r) {
		writeError(rw, protocol.ErrNoPermission, "unauthorized")
		return
	}
	done, err := s.eng.RunSweep(r.Context(), s.opts.Clock.Now())
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	if done == nil {
		done = []queue.Completion{}
	}
	s.count(func(st *Stats) {
		st.Sweeps++
		st.Completions += uint64(len(done))
	})
	writeJSON(rw, http.StatusOK, map[string]any{"processed": len(done), "completions": done})
}

func (s *Server) sweepAuthorized(r *http.Request) bool {
	if s.opts.SweepSecret == "" {
		return isLoopbackRemote(r.RemoteAddr)
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.SweepSecret)) == 1
}

func (s *Server) handleGrant(rw http.ResponseWriter, r *http.Request) {
	amounts, err := s.eng.GiveResources(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "stored": amounts})
}

func (s *Server) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if s.opts.Snapshots == nil || s.opts.SnapshotDir == "" {
		writeError(rw, protocol.ErrNotFound, "snapshots disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	name := "export-" + time.Now().UTC().Format("20060102-150405") + ".snap.zst"
	path := filepath.Join(s.opts.SnapshotDir, name)
	h, err := s.opts.Snapshots.WriteSnapshot(ctx, path, s.eng.Rules().Catalogs().Digest())
	if err != nil {
		s.writeEngineError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "path": path, "header": h})
}

// decode reads a bounded body, checks it against the schema and unmarshals
// it into v. It writes the error response itself.
func (s *Server) decode(rw http.ResponseWriter, r *http.Request, schema string, v any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	if err != nil {
		writeError(rw, protocol.ErrProtoBadRequest, "body too large or unreadable")
		return false
	}
	if err := protocol.ValidateJSON(schema, raw); err != nil {
		writeError(rw, protocol.ErrProtoBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		writeError(rw, protocol.ErrProtoBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) writeEngineError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(rw, protocol.ErrNotFound, err.Error())
	case errors.Is(err, queue.ErrNoActiveQueue):
		writeError(rw, protocol.ReasonNoActiveQueue, err.Error())
	case errors.Is(err, queue.ErrNotInProgress), errors.Is(err, queue.ErrUsernameTaken):
		writeError(rw, protocol.ErrConflict, err.Error())
	case errors.Is(err, queue.ErrInvalidUsername):
		writeError(rw, protocol.ErrProtoBadRequest, err.Error())
	default:
		s.log.Printf("internal error: %v", err)
		writeError(rw, protocol.ErrInternal, "internal error")
	}
}

func parseKind(v string) (model.OrderKind, bool) {
	switch v {
	case "building", "buildings":
		return model.KindBuilding, true
	case "research":
		return model.KindResearch, true
	case "ship", "ships":
		return model.KindShip, true
	}
	return "", false
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, code, msg string) {
	writeJSON(rw, protocol.HTTPStatus(code), protocol.ErrorResponse{Code: code, Message: msg})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
