// Package registryapp wires the job registry's packages into a runnable
// App, in the shape of internal/app.App: logger, then config, then the
// durable store, then the domain services, then the HTTP surface.
package registryapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/claim"
	"github.com/yungbote/neurobridge-backend/internal/registry/engine"
	"github.com/yungbote/neurobridge-backend/internal/registry/eventbus"
	"github.com/yungbote/neurobridge-backend/internal/registry/httpapi"
	"github.com/yungbote/neurobridge-backend/internal/registry/lifecycle"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/query"
	"github.com/yungbote/neurobridge-backend/internal/registry/statemachine"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// App bundles the registry's wired dependencies and its HTTP router.
type App struct {
	Log          *logger.Logger
	DB           *gorm.DB
	Bus          eventbus.Bus
	Router       *gin.Engine
	Cfg          Config
	otelShutdown func(context.Context) error
}

// New constructs a fully wired App: logger, config, tracing, Postgres, event
// bus, pause controller, state machine, metrics, store, domain services, HTTP
// router — in that order, same as internal/app.App.New.
func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := initOTel(context.Background(), log)

	db, err := openPostgres(cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	bus, err := eventbus.New(cfg.RedisAddr, cfg.RequestTimeout, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	var pauseCtl pause.Controller
	if cfg.PauseFlagBacking == "store" {
		pauseCtl, err = pause.NewStoreBacked(db)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init pause controller: %w", err)
		}
	} else {
		pauseCtl = pause.NewMemory()
	}

	graph, err := statemachine.Default()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load state machine: %w", err)
	}

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)

	st := store.New(db, log, cfg.RequestTimeout)
	eng := engine.New(st, graph, pauseCtl, bus, log, m)
	claimProto := claim.New(st, pauseCtl, log, m)
	life := lifecycle.New(st, eng, bus, log)
	queryAPI := query.New(st)

	handlers := httpapi.NewHandlers(eng, claimProto, life, queryAPI, pauseCtl, bus, m, log)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handlers:     handlers,
		AllowOrigins: cfg.CORSAllowOrigins,
	})

	return &App{Log: log, DB: db, Bus: bus, Router: router, Cfg: cfg, otelShutdown: otelShutdown}, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests for up to Cfg.ShutdownTimeout before returning.
func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("registry app not initialized")
	}

	srv := &http.Server{Addr: addr, Handler: a.Router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.Log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the app's Redis and logger resources.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
