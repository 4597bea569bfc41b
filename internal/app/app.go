package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"civicdesk/internal/config"
	"civicdesk/internal/db"
	"civicdesk/internal/engine"
	"civicdesk/internal/ledger"
	"civicdesk/internal/metrics"
	"civicdesk/internal/migrate"
	"civicdesk/internal/outbox"
)

// App owns the long-lived resources of one civicdesk process.
type App struct {
	Config   *config.Config
	Conn     *db.Conn
	Engine   engine.Engine
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Outbox   *outbox.Dispatcher
	Log      logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options tweak Open for callers that do not run the full service.
type Options struct {
	Workspace string
	// SkipMigrate leaves the schema untouched; used by read-only commands.
	SkipMigrate bool
}

// Open connects to the store, applies migrations and wires the engine.
func Open(ctx context.Context, cfg *config.Config, opts Options, log logrus.FieldLogger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, err := db.Open(db.Config{
		Workspace:    opts.Workspace,
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !opts.SkipMigrate {
		if err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eng := engine.New(conn, cfg)
	eng.Metrics = m
	eng.Log = log
	if cfg.Ledger.URL != "" {
		eng.Ledger = ledger.NewHTTPRelay(cfg.Ledger.URL, time.Duration(cfg.Ledger.TimeoutSeconds)*time.Second)
	} else {
		log.Debug("ledger.url not set; FIRs are kept in an in-process relay")
	}

	return &App{
		Config:   cfg,
		Conn:     conn,
		Engine:   eng,
		Registry: reg,
		Metrics:  m,
		Outbox:   outbox.New(cfg, eng.Repo, log.WithField("component", "outbox"), m),
		Log:      log,
	}, nil
}

// StartOutbox runs the dispatcher in the background until Close.
func (a *App) StartOutbox(ctx context.Context) {
	if a.Outbox == nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Log.WithField("sinks", len(a.Outbox.Sinks)).Info("outbox started")
		a.Outbox.Run(ctx)
	}()
}

// Close stops the outbox and releases the connection pool.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.Outbox != nil {
		if err := a.Outbox.Close(); err != nil {
			a.Log.WithError(err).Warn("outbox close")
		}
	}
	return a.Conn.Close()
}
