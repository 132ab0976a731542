// Package cli wires configuration, runtime, store and bridge together for the bridge command.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/manifesto-ai/bridge"
	"github.com/manifesto-ai/bridge/internal/config"
	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/adapters/file"
	httpAdapter "github.com/manifesto-ai/bridge/pkg/adapters/http"
	"github.com/manifesto-ai/bridge/pkg/adapters/memory"
	"github.com/manifesto-ai/bridge/pkg/adapters/redis"
	"github.com/manifesto-ai/bridge/pkg/adapters/sqlite"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/observability"
	"github.com/manifesto-ai/bridge/pkg/persistence/middleware"
	"github.com/manifesto-ai/bridge/pkg/ports"
	"github.com/manifesto-ai/bridge/pkg/registry"
	"github.com/manifesto-ai/bridge/pkg/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	ConfigPath string
	Definition string
	Store      string
	LogLevel   string
}

// LoadConfig reads the config file and applies non-empty overrides.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Definition != "" {
		cfg.Definition = opts.Definition
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if cfg.Definition == "" {
		return config.Config{}, errors.New("no runtime definition: pass --definition or set 'definition' in the config file")
	}
	return cfg, cfg.Validate()
}

// ParseLevel converts a level name such as "debug" into a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// App is a fully wired bridge with its runtime, store and metrics.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Definition runtime.Definition
	Runtime    *runtime.Runtime
	Store      ports.Store
	Bridge     *bridge.Bridge
	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	APIs       *registry.Registry // answers APICall on the memory store

	closers []func() error
}

// NewApp builds everything cfg describes. A store that already holds values is
// captured into the runtime so that a restarted process resumes from it; an empty
// store is seeded from the runtime's initial values instead.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		APIs:     registry.NewRegistry(),
	}

	def, err := runtime.LoadDefinitionFile(cfg.Definition)
	if err != nil {
		return nil, err
	}
	app.Definition = def
	app.Runtime = runtime.New(def, runtime.WithLogger(logger))

	if err := app.openStore(); err != nil {
		return nil, err
	}
	if err := app.secureStore(); err != nil {
		app.Close()
		return nil, err
	}

	app.Registry.MustRegister(collectors.NewGoCollector())
	metrics, err := observability.NewMetrics(app.Registry)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Metrics = metrics

	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
	b, err := bridge.New(app.Runtime, app.Store, app.Store,
		bridge.WithConfig(cfg.Sync),
		bridge.WithLogger(logger),
		bridge.WithHooks(hooks),
		bridge.WithErrorHandler(func(e *domain.Error) {
			logger.Warn("Bridge error", "code", e.Code, "path", e.Path, "err", e)
		}),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Bridge = b
	app.closers = append([]func() error{func() error { b.Dispose(); return nil }}, app.closers...)

	if len(app.Store.CaptureData()) == 0 && len(app.Store.CaptureState()) == 0 {
		err = b.Sync()
	} else {
		_, err = b.Capture()
	}
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) openStore() error {
	cfg := a.Config
	switch cfg.Store {
	case "memory":
		a.Store = memory.New(memory.WithAPIHandler(a.APIs.Call))
	case "file":
		store, err := file.New(cfg.File.Path, file.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		a.Store = store
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path, sqlite.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	case "redis":
		codec := redis.JSON
		if cfg.Redis.Codec == "cbor" {
			codec = redis.CBOR
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithCodec(codec),
			redis.WithLogger(a.Logger),
		)
		a.Store = store
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}
	return nil
}

// secureStore wraps the store with the configured masking and encryption.
// Masking is outermost so that masks are encrypted too.
func (a *App) secureStore() error {
	sec := a.Config.Security
	var mws []middleware.Middleware
	if len(sec.Mask) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.Mask))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
			Paths:        sec.Encrypt,
			Logger:       a.Logger,
		}))
	}
	if len(mws) > 0 {
		a.Logger.Debug("Store middleware enabled", "mask", sec.Mask, "encrypt", active != nil)
		a.Store = middleware.Chain(a.Store, mws...)
	}
	return nil
}

// Handler returns the HTTP API, with /metrics mounted when enabled.
// The returned close function stops the event relay.
func (a *App) Handler() (http.Handler, func()) {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(a.Logger)}
	if a.Config.HTTP.Metrics {
		opts = append(opts, httpAdapter.WithRoutes(func(r chi.Router) {
			r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
		}))
	}
	srv := httpAdapter.New(a.Bridge, opts...)
	return srv.Handler(), srv.Close
}

// Derived reads every derived value the definition declares.
func (a *App) Derived() map[string]any {
	out := make(map[string]any, len(a.Definition.Derived))
	for path := range a.Definition.Derived {
		if v, err := a.Bridge.Get(path); err == nil {
			out[path] = v
		}
	}
	return out
}

// Close disposes the bridge and releases the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
