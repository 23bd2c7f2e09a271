package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	persistlog "github.com/goodhanky/emago/internal/persistence/log"
	"github.com/goodhanky/emago/internal/persistence/store"
	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/queue"
	"github.com/goodhanky/emago/internal/sim/tuning"
	"github.com/goodhanky/emago/internal/transport/httpapi"
	"github.com/goodhanky/emago/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (tuning.yaml and catalog overrides)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		dbPath     = flag.String("db", "", "sqlite path (default: <data>/emago.sqlite)")
		snapPath   = flag.String("snapshot", "", "snapshot to import on start (replaces all rows)")
		sweepEvery = flag.Duration("sweep_every", 0, "run the completion sweep in-process at this interval (0 = external trigger only)")
		backlog    = flag.Int("event_backlog", 256, "per-player event backlog for stream catch-up")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tPath := *tuningPath
	if tPath == "" {
		tPath = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning file %s not found; using defaults", tPath)
		tune = tuning.Defaults()
	}
	if v := os.Getenv("EMAGO_SWEEP_SECRET"); v != "" {
		tune.Sweep.Secret = v
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("mkdir data: %v", err)
	}
	path := *dbPath
	if path == "" {
		path = filepath.Join(*dataDir, "emago.sqlite")
	}
	db, err := store.OpenSQLite(path)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := db.UpsertCatalogs(ctx, cats); err != nil {
		logger.Fatalf("record catalogs: %v", err)
	}
	if *snapPath != "" {
		h, err := db.LoadSnapshot(ctx, *snapPath)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		if h.CatalogDigest != "" && h.CatalogDigest != cats.Digest() {
			logger.Printf("snapshot %s was written under different catalogs (%s)", *snapPath, h.CatalogDigest)
		}
		logger.Printf("loaded snapshot %s: players=%d planets=%d queues=%d", *snapPath, h.Players, h.Planets, h.Queues)
	}

	eng := queue.New(db, formulas.NewRules(cats, tune), tune, queue.Config{
		Logger: log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds),
	})

	orders := persistlog.NewOrderLogger(*dataDir)
	defer orders.Close()
	hub := ws.NewHub(*backlog)
	eng.SetEventLogger(multiEventLogger{orders, hub})

	events := ws.NewServer(hub, cats, func(ctx context.Context, id string) (bool, error) {
		_, _, err := eng.Player(ctx, id)
		if errors.Is(err, queue.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}, logger)

	enableAdmin := envBool("EMAGO_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	api := httpapi.New(eng, httpapi.Options{
		SweepSecret:       tune.Sweep.Secret,
		EnableAdmin:       enableAdmin,
		Snapshots:         db,
		SnapshotDir:       filepath.Join(*dataDir, "snapshots"),
		RequestsPerSecond: tune.RateLimits.RequestsPerSecond,
		Burst:             tune.RateLimits.Burst,
		Events:            events.Handler(),
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		c, err := db.Counts(r.Context())
		if err != nil {
			http.Error(w, "counts unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(w, c, api.Stats(), hub.Subscribers())
	})
	api.Routes(mux)
	if enableAdmin {
		logger.Printf("admin endpoints enabled on loopback (/admin/v1/*)")
	} else {
		logger.Printf("admin endpoints disabled (EMAGO_ENABLE_ADMIN_HTTP=false)")
	}
	if tune.Sweep.Secret == "" {
		logger.Printf("sweep secret not set; POST /v1/sweep accepted from loopback only")
	}

	if *sweepEvery > 0 {
		go sweepLoop(ctx, eng, *sweepEvery, logger)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (catalogs %s, game speed %.2f)", *addr, cats.Digest()[:12], tune.GameSpeed)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// sweepLoop drives completions without an external scheduler.
func sweepLoop(ctx context.Context, eng *queue.Engine, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			done, err := eng.RunSweep(ctx, now)
			if err != nil {
				logger.Printf("sweep: %v", err)
				continue
			}
			if len(done) > 0 {
				logger.Printf("sweep: %d completions", len(done))
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiEventLogger []queue.EventLogger

func (m multiEventLogger) WriteEvent(ev queue.Event) error {
	for _, l := range m {
		if l != nil {
			_ = l.WriteEvent(ev)
		}
	}
	return nil
}
