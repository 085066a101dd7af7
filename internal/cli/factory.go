// Package cli wires configuration into a ready-to-run engine and hosts the
// terminal entry points shared by the coachflow commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/coachflow"
	"github.com/aretw0/coachflow/internal/config"
	"github.com/aretw0/coachflow/internal/logging"
	amqpAdapter "github.com/aretw0/coachflow/pkg/adapters/amqp"
	"github.com/aretw0/coachflow/pkg/adapters/file"
	loamAdapter "github.com/aretw0/coachflow/pkg/adapters/loam"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/adapters/postgres"
	redisAdapter "github.com/aretw0/coachflow/pkg/adapters/redis"
	"github.com/aretw0/coachflow/pkg/adapters/sqlite"
	"github.com/aretw0/coachflow/pkg/observability"
	"github.com/aretw0/coachflow/pkg/persistence/middleware"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Runtime is everything a command needs: the engine plus the resources to
// release when it is done.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Engine   *coachflow.Engine
	Registry *prometheus.Registry

	closers []io.Closer
}

// BuildOption adjusts how Build wires the engine.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger  *slog.Logger
	metrics bool
	extra   []coachflow.Option
}

// WithLogger overrides the logger derived from the log config.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithMetrics registers prometheus metrics (plus Go and process collectors)
// in Runtime.Registry.
func WithMetrics() BuildOption {
	return func(o *buildOptions) {
		o.metrics = true
	}
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...coachflow.Option) BuildOption {
	return func(o *buildOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// Build validates cfg and constructs the loader, store, locker, event sink
// and engine it describes. On error every resource opened so far is closed.
func Build(ctx context.Context, cfg config.Config, opts ...BuildOption) (rt *Runtime, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	}

	rt = &Runtime{Config: cfg, Logger: o.logger}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	loader, err := buildLoader(cfg.Sequences)
	if err != nil {
		return rt, err
	}

	engineOpts := []coachflow.Option{
		coachflow.WithLoader(loader),
		coachflow.WithLogger(o.logger),
		coachflow.WithLifecycleHooks(observability.LogHooks(o.logger)),
		coachflow.WithEntry(cfg.Sequences.EntrySequence, cfg.Sequences.EntryMessage),
		coachflow.WithMaxInputSize(cfg.Engine.MaxInputSize),
		coachflow.WithBubbleSeparator(cfg.Engine.BubbleSeparator),
		coachflow.WithMaxSteps(cfg.Engine.MaxSteps),
	}
	if cfg.Engine.ResponseKey != "" {
		engineOpts = append(engineOpts, coachflow.WithResponseKey(cfg.Engine.ResponseKey))
	}
	if cfg.Engine.ActiveDaysKey != "" {
		engineOpts = append(engineOpts, coachflow.WithActiveDaysKey(cfg.Engine.ActiveDaysKey))
	}
	if cfg.Engine.AnchorKey != "" {
		engineOpts = append(engineOpts, coachflow.WithAnchorKey(cfg.Engine.AnchorKey))
	}
	if cfg.Engine.ContentFile != "" {
		content, err := file.LoadContent(cfg.Engine.ContentFile)
		if err != nil {
			return rt, fmt.Errorf("load content: %w", err)
		}
		engineOpts = append(engineOpts, coachflow.WithContentResolver(content))
	}
	if cfg.Engine.FormattersFile != "" {
		formatters, err := file.LoadFormatters(cfg.Engine.FormattersFile)
		if err != nil {
			return rt, fmt.Errorf("load formatters: %w", err)
		}
		engineOpts = append(engineOpts, coachflow.WithFormatters(formatters))
	}

	store, err := rt.buildStore(ctx, cfg.Store)
	if err != nil {
		return rt, err
	}
	secured, err := encryptStore(store, cfg.Store)
	if err != nil {
		return rt, err
	}
	engineOpts = append(engineOpts, coachflow.WithStore(secured))

	if cfg.Store.Lock {
		rs, ok := store.(*redisAdapter.Store)
		if !ok {
			return rt, errors.New("store.lock requires the redis driver")
		}
		lockPrefix := "coachflow:lock:"
		if cfg.Store.Prefix != "" {
			lockPrefix = cfg.Store.Prefix + "lock:"
		}
		locker := redisAdapter.NewLocker(rs.Client(), lockPrefix)
		engineOpts = append(engineOpts, coachflow.WithLocker(locker, cfg.Store.LockTTL))
	}

	sink, err := rt.buildSink(cfg.Events)
	if err != nil {
		return rt, err
	}
	if sink != nil {
		if len(cfg.Events.Redact) > 0 {
			redact, err := middleware.NewPIIMiddleware(cfg.Events.Redact)
			if err != nil {
				return rt, err
			}
			sink = redact(sink)
		}
		engineOpts = append(engineOpts, coachflow.WithEventSink(sink))
	}

	if o.metrics {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := observability.NewMetrics(rt.Registry)
		if err != nil {
			return rt, fmt.Errorf("register metrics: %w", err)
		}
		engineOpts = append(engineOpts, coachflow.WithMetrics(metrics))
	}

	engineOpts = append(engineOpts, o.extra...)
	rt.Engine, err = coachflow.New(cfg.Sequences.Dir, engineOpts...)
	if err != nil {
		return rt, err
	}
	return rt, nil
}

// encryptStore wraps store with value encryption when a key is configured.
func encryptStore(store ports.ManagedStore, cfg config.StoreConfig) (ports.ManagedStore, error) {
	if cfg.EncryptionKey == "" {
		return store, nil
	}
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryptionKey: %w", err)
	}
	encCfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store.fallbackKeys[%d]: %w", i, err)
		}
		encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(encCfg)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, mw), nil
}

// Close releases stores and connections in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i].Close())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func buildLoader(cfg config.SequencesConfig) (ports.SequenceLoader, error) {
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid sequences dir: %w", err)
	}
	switch cfg.Loader {
	case "loam":
		return loamAdapter.Open(abs)
	default:
		return file.NewLoader(abs), nil
	}
}

func (rt *Runtime) buildStore(ctx context.Context, cfg config.StoreConfig) (ports.ManagedStore, error) {
	switch cfg.Driver {
	case "file":
		return file.NewStore(cfg.Path), nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		return store, nil
	case "redis":
		var opts []redisAdapter.Option
		if cfg.Prefix != "" {
			opts = append(opts, redisAdapter.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redisAdapter.WithTTL(cfg.TTL))
		}
		store := redisAdapter.New(cfg.Addr, cfg.Password, cfg.DB, opts...)
		rt.closers = append(rt.closers, store)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		return store, nil
	default:
		return memory.NewStore(), nil
	}
}

func (rt *Runtime) buildSink(cfg config.EventsConfig) (ports.EventSink, error) {
	switch cfg.Driver {
	case "log":
		return observability.NewLogSink(rt.Logger), nil
	case "amqp":
		conn, err := amqpAdapter.Dial(cfg.URL, rt.Logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, conn)
		exchange := cfg.Exchange
		if exchange == "" {
			exchange = amqpAdapter.DefaultExchange
		}
		if err := conn.DeclareExchange(exchange); err != nil {
			return nil, err
		}
		return amqpAdapter.NewSink(conn,
			amqpAdapter.WithExchange(exchange),
			amqpAdapter.WithLogger(rt.Logger),
		), nil
	default:
		return nil, nil
	}
}
