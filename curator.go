// Package curator serves CRUD REST resources backed by a pluggable
// repository, with role based access control.
//
// A minimal embedding:
//
//	cfg, _ := curator.LoadConfig("config.toml")
//	app, _ := curator.New(ctx, cfg)
//	defer app.Close()
//	_ = app.Run(ctx)
package curator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loykin/curator/internal/auth"
	"github.com/loykin/curator/internal/config"
	"github.com/loykin/curator/internal/history"
	hfactory "github.com/loykin/curator/internal/history/factory"
	"github.com/loykin/curator/internal/logger"
	"github.com/loykin/curator/internal/metrics"
	"github.com/loykin/curator/internal/policy"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/server"
	"github.com/loykin/curator/internal/service"
	"github.com/loykin/curator/internal/store"
	sfactory "github.com/loykin/curator/internal/store/factory"
)

// Re-export core types for external consumers.

type Config = config.Config

type Kind = resource.Kind

type Field = resource.Field

type Record = resource.Record

type HistorySink = history.Sink

type HistoryEvent = history.Event

type SeedUser = auth.SeedUser

// LoadConfig reads a TOML config file; see internal/config.
func LoadConfig(path string) (*Config, error) { return config.LoadConfig(path) }

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config { return config.Default() }

// App is a fully wired server: store, services, auth and HTTP router.
type App struct {
	cfg        *Config
	logger     *slog.Logger
	logCloser  io.Closer
	store      store.Store
	authSvc    *auth.AuthService
	history    *history.Dispatcher
	kinds      []*resource.Kind
	services   map[string]*service.Service
	router     *server.Router
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	extraSinks []history.Sink
}

type Option func(*App)

// WithLogger replaces the logger built from the [log] section.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithPrometheus registers metrics with r and serves them from g instead of
// the default registry.
func WithPrometheus(r prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(a *App) {
		a.registerer = r
		a.gatherer = g
	}
}

// WithHistorySink adds a sink next to the ones configured in [history].
func WithHistorySink(s HistorySink) Option {
	return func(a *App) { a.extraSinks = append(a.extraSinks, s) }
}

// New wires every component described by cfg. The caller must Close the
// returned App.
func New(ctx context.Context, cfg *Config, opts ...Option) (app *App, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &App{cfg: cfg, services: map[string]*service.Service{}}
	for _, o := range opts {
		o(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.logger == nil {
		l, closer, lerr := logger.New(cfg.Log)
		if lerr != nil {
			return nil, fmt.Errorf("logger: %w", lerr)
		}
		a.logger, a.logCloser = l, closer
	}

	a.kinds, err = cfg.Kinds()
	if err != nil {
		return nil, err
	}

	a.store, err = sfactory.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := a.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err := a.store.EnsureSchema(ctx, a.kinds); err != nil {
		return nil, fmt.Errorf("store schema: %w", err)
	}

	if err := a.setupAuth(ctx); err != nil {
		return nil, err
	}
	if err := a.setupHistory(ctx); err != nil {
		return nil, err
	}
	metricsHandler, err := a.setupMetrics()
	if err != nil {
		return nil, err
	}

	svcs := make([]*service.Service, 0, len(a.kinds))
	for _, k := range a.kinds {
		svc := service.New(k, a.store, service.WithLogger(a.logger), service.WithHistory(a.history))
		a.services[k.Route] = svc
		svcs = append(svcs, svc)
	}

	routerOpts := []server.Option{
		server.WithLogger(a.logger),
		server.WithPolicy(policy.WithOverrides(cfg.Policy)),
		server.WithHealth(a.store),
		server.WithAuth(auth.NewMiddleware(a.authSvc, cfg.Auth.Enabled, cfg.Auth.AnonymousRoles, a.logger), a.authSvc),
	}
	if metricsHandler != nil {
		routerOpts = append(routerOpts, server.WithMetrics(cfg.Metrics.Path, metricsHandler))
	}
	a.router = server.NewRouter(cfg.Server.BasePath, svcs, routerOpts...)

	a.logger.Info("curator initialized",
		"store", cfg.Store.Type, "kinds", len(a.kinds), "auth", cfg.Auth.Enabled, "history_sinks", a.history.Len())
	return a, nil
}

func (a *App) setupAuth(ctx context.Context) error {
	if !a.cfg.Auth.Enabled {
		return nil
	}
	users, err := sfactory.NewUserStore(a.cfg.Auth.Store)
	if err != nil {
		return fmt.Errorf("auth store: %w", err)
	}
	a.authSvc, err = auth.NewAuthService(users, a.cfg.Auth.Service())
	if err != nil {
		_ = users.Close()
		return fmt.Errorf("auth: %w", err)
	}
	n, err := a.authSvc.SeedUsers(ctx, a.cfg.Auth.Users)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if n > 0 {
		a.logger.Info("seeded users", "count", n)
	}
	return nil
}

func (a *App) setupHistory(ctx context.Context) error {
	var dsns []string
	if a.cfg.History.Enabled {
		dsns = a.cfg.History.Sinks
	}
	d, err := hfactory.NewDispatcher(ctx, a.logger, dsns, a.extraSinks...)
	if err != nil {
		return err
	}
	d.SetTimeout(a.cfg.History.Timeout)
	a.history = d
	return nil
}

func (a *App) setupMetrics() (http.Handler, error) {
	if !a.cfg.Metrics.Enabled {
		return nil, nil
	}
	reg, gat := a.registerer, a.gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if gat == nil {
		return promhttp.Handler(), nil
	}
	return metrics.HandlerFor(gat), nil
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler { return a.router.Handler() }

// Kinds lists the served resource kinds.
func (a *App) Kinds() []*Kind { return append([]*Kind(nil), a.kinds...) }

// Service returns the lifecycle service for route.
func (a *App) Service(route string) (*service.Service, bool) {
	s, ok := a.services[route]
	return s, ok
}

// AuthService is nil when authentication is disabled.
func (a *App) AuthService() *auth.AuthService { return a.authSvc }

func (a *App) Logger() *slog.Logger { return a.logger }

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv, err := server.NewServer(a.cfg.Server, a.Handler())
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx, srv, a.cfg.Server.ShutdownTimeout, a.logger)
}

// Close releases the store, the user store and history sinks.
func (a *App) Close() error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.authSvc != nil {
		errs = append(errs, a.authSvc.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
