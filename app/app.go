package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/bidtree/config"
	"github.com/benz9527/bidtree/observability"
	"github.com/benz9527/bidtree/store"
	"github.com/benz9527/bidtree/xlog"
)

const (
	Name = "bidtree"

	// ContextKeyCommand carries the running CLI command for the logs.
	ContextKeyCommand = xlog.ContextKey("command")

	logWriterName = "logWriter"
)

type banner struct{}

func (banner) JSON() string {
	return `{"app":"` + Name + `"}`
}

func (banner) PlainText() string {
	return Name + ", the auction bids in ordered trees"
}

type loggerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Writer    zapcore.WriteSyncer `name:"logWriter" optional:"true"`
}

// NewLogger logs to the stderr, or to the file if it is configured, so the
// stdout is left to the menu.
func NewLogger(p loggerParams) (xlog.XLogger, error) {
	cfg := p.Config.Log
	enc, _ := xlog.ParseLogEncoder(cfg.Encoder)
	opts := []xlog.XLoggerOption{
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.Level)),
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerContextFieldExtract(string(ContextKeyCommand), xlog.ContextKeyMapToOmitempty),
	}
	switch {
	case p.Writer != nil:
		opts = append(opts, xlog.WithXLoggerWriter(p.Writer))
	case cfg.File != "":
		opts = append(opts, xlog.WithXLoggerFileWriter(&xlog.FileCoreConfig{
			FilePath:                filepath.Dir(cfg.File),
			Filename:                filepath.Base(cfg.File),
			FileBufferSize:          cfg.FileBufferSize,
			FileBufferFlushInterval: cfg.FileFlushMillis,
		}))
	default:
		opts = append(opts, xlog.WithXLoggerWriter(zapcore.Lock(os.Stderr)))
	}
	logger, err := xlog.TryNewXLogger(opts...)
	if err != nil {
		return nil, err
	}
	logger.Banner(banner{})
	p.Lifecycle.Append(fx.StopHook(func() error {
		return logger.Close()
	}))
	return logger, nil
}

// NewMeterProvider serves the prometheus registry if it is the exporter.
func NewMeterProvider(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger) (*observability.MeterProvider, error) {
	kind, err := observability.ParseExporterKind(cfg.Metrics.Exporter)
	if err != nil {
		return nil, err
	}
	mp, err := observability.NewMeterProvider(observability.ExporterConfig{
		Kind:     kind,
		Interval: time.Duration(cfg.Metrics.IntervalMs) * time.Millisecond,
		Writer:   os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	if err = observability.StartAppStats(mp, Name); err != nil {
		return nil, multierr.Append(err, mp.Shutdown(context.Background()))
	}

	var srv *observability.MetricsServer
	lc.Append(fx.Hook{
		OnStart: func(context.Context) (err error) {
			if mp.Registry == nil {
				return nil
			}
			if srv, err = observability.NewMetricsServer(cfg.Metrics.Addr, mp.Registry, logger); err != nil {
				return err
			}
			srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var merr error
			if srv != nil {
				merr = srv.Shutdown(ctx)
			}
			return multierr.Append(merr, mp.Shutdown(ctx))
		},
	})
	return mp, nil
}

func NewPool(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger) (*ants.Pool, error) {
	pool, err := ants.NewPool(cfg.Data.Workers, ants.WithLogger(xlog.NewAntsXLogger(logger)))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		return pool.ReleaseTimeout(time.Second)
	}))
	return pool, nil
}

// NewBackend opens the store when the app starts and closes it when the app
// stops, every operation is measured.
func NewBackend(lc fx.Lifecycle, cfg *config.Config, logger xlog.XLogger, mp *observability.MeterProvider) (store.Backend, error) {
	backend, err := OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	observed, err := store.NewObservedStore(backend, mp, logger)
	if err != nil {
		return nil, multierr.Append(err, backend.Close())
	}
	logger.Info("bid store opened", zap.String("backend", backend.Name()))
	lc.Append(fx.StopHook(func() error {
		return observed.Close()
	}))
	return observed, nil
}

// watchConfig follows the log level of the config file without a restart.
func watchConfig(lc fx.Lifecycle, path string, logger xlog.XLogger) {
	var w *config.Watcher
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) (err error) {
			w, err = config.Watch(context.Background(), path, func(cfg *config.Config) {
				lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Log.Level))
				if err != nil {
					return
				}
				logger.IncreaseLogLevel(lvl)
				logger.Info("log level reloaded", zap.String("level", logger.Level()))
			}, func(err error) {
				logger.ErrorStack(err, "config reload failed", zap.String("path", path))
			})
			return err
		},
		OnStop: func(context.Context) error {
			if w == nil {
				return nil
			}
			return w.Close()
		},
	})
}

type Deps struct {
	fx.In

	Config  *config.Config
	Logger  xlog.XLogger
	Backend store.Backend
	Pool    *ants.Pool
	Meter   *observability.MeterProvider
}

type Option func(*options)

type options struct {
	configPath string
	fxOpts     []fx.Option
}

// WithConfigWatch reloads the log level on the config file changes.
func WithConfigWatch(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

func WithLogWriter(ws zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.fxOpts = append(o.fxOpts, fx.Provide(fx.Annotated{
			Name:   logWriterName,
			Target: func() zapcore.WriteSyncer { return ws },
		}))
	}
}

func Module(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			NewLogger,
			NewMeterProvider,
			NewPool,
			NewBackend,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
	)
}

// Run starts the app, hands the dependencies to fn and stops the app after
// fn returns, whatever fn returns.
func Run(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, deps Deps) error, opts ...Option) (err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var deps Deps
	fxOpts := append([]fx.Option{
		Module(cfg),
		fx.Invoke(func(d Deps) {
			deps = d
		}),
	}, o.fxOpts...)
	if o.configPath != "" {
		fxOpts = append(fxOpts, fx.Invoke(func(lc fx.Lifecycle, logger xlog.XLogger) {
			watchConfig(lc, o.configPath, logger)
		}))
	}
	app := fx.New(fxOpts...)
	if err = app.Err(); err != nil {
		return err
	}
	if err = app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		err = multierr.Append(err, app.Stop(stopCtx))
	}()
	return fn(ctx, deps)
}

// WithCommand names the command in the logs of the operations run with ctx.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyCommand, name)
}
