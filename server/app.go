package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinwatch/config"
	"coinwatch/internal/api"
	"coinwatch/internal/health"
	"coinwatch/internal/ingest"
	"coinwatch/internal/interval"
	"coinwatch/internal/logs"
	"coinwatch/internal/metrics"
	"coinwatch/internal/middleware"
	"coinwatch/internal/reporting"
	"coinwatch/internal/seed"
	"coinwatch/internal/store"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	stores     *Stores
	selections *interval.Registry
	mqtt       *ingest.Subscriber

	ctx    context.Context
	cancel context.CancelFunc
}

// Options tweak Initialize for the serve command.
type Options struct {
	// SeedDemo loads the sample fleet and a month of events at startup.
	SeedDemo bool
}

func (a *App) Initialize(cfg *config.Config, o Options) error {
	a.cfg = cfg

	// 1) logging
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// 2) stores
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.stores, err = OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	if o.SeedDemo {
		res, err := seed.Run(ctx, a.stores.Devices, a.stores.Writer, seed.Options{Loc: loc, Seed: uint64(time.Now().UnixNano()), Events: true})
		if err != nil {
			return err
		}
		logs.Logger.WithField("devices", res.Devices).WithField("events", res.Events).Info("demo data loaded")
	}

	// 3) router + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	health.RegisterRoutes(a.Router, a.stores.Checks)
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// 4) reports API
	adapter := store.NewAdapter(a.stores.Events,
		store.WithLocation(loc),
		store.WithMaxResults(cfg.Reports.MaxResults),
	)
	svc := reporting.NewService(adapter, a.stores.Roster, reporting.Options{
		DefaultField:    cfg.Reports.DefaultField,
		TimestampLayout: cfg.Reports.TimestampLayout,
	})
	a.selections = interval.NewRegistry(cfg.Selections.IdleTTL)
	api.NewHTTP(svc, a.stores.Roster, a.selections).RegisterRoutes(a.Router)

	// 5) ingestion
	if cfg.MQTT.Broker != "" {
		h := ingest.NewHandler(a.stores.Roster, a.stores.Writer, a.stores.Devices)
		sub, err := ingest.Connect(ingest.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		}, h)
		if err != nil {
			return err
		}
		a.mqtt = sub
		a.stores.Checks["mqtt"] = sub
	}

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

// Handler is the router wrapped with CORS and compression.
func (a *App) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", middleware.HeaderRequestID}),
		handlers.ExposedHeaders([]string{"Content-Disposition", middleware.HeaderRequestID}),
	)
	return handlers.CompressHandler(cors(a.Router))
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	go a.sweepSelections(a.ctx)

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-a.ctx.Done():
	case runErr = <-errc:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	a.Close()
	return runErr
}

// Close stops ingestion and releases the stores.
func (a *App) Close() {
	if a.mqtt != nil {
		a.mqtt.Close()
		a.mqtt = nil
	}
	if a.stores != nil {
		a.stores.Close()
		a.stores = nil
	}
}

func (a *App) sweepSelections(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.selections.Sweep()
		}
	}
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
