// Package app wires all vibecoding subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New builds the cleanup pipeline and
// HTTP server from config, Run serves until the context ends, and Shutdown
// tears everything down in order. A config file watcher, when enabled, swaps
// in a freshly built pipeline whenever the vocabulary or rewrite settings
// change.
//
// For testing, inject a provider registry, metrics or a listener via
// functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vibecoding/internal/config"
	"github.com/MrWong99/vibecoding/internal/feedback"
	"github.com/MrWong99/vibecoding/internal/health"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/server"
	"github.com/MrWong99/vibecoding/internal/transcript"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	registry  *config.Registry
	metrics   *observe.Metrics
	telemetry *observe.Telemetry
	level     *slog.LevelVar
	version   string

	live atomic.Pointer[runtime]

	server   *server.Server
	httpSrv  *http.Server
	listener net.Listener

	watchPath     string
	watchInterval time.Duration
	watcher       *config.Watcher

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

var _ transcript.Cleaner = (*App)(nil)

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry sets the provider registry used to build rewrite backends.
// Default: an empty registry, so any enabled rewrite provider fails.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the metrics recorder. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry mounts the telemetry's Prometheus handler on /metrics when
// metrics are enabled in config.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithLogLevel lets config reloads adjust the given level.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigWatch polls path for changes every interval and applies them.
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.watchPath = path
		a.watchInterval = interval
	}
}

// WithListener serves on ln instead of listening on server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithVersion sets the version reported to MCP clients and in logs.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. It builds the rewrite providers through the
// registry, assembles the cleanup pipeline, and prepares (but does not start)
// the HTTP server.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Cleanup pipeline ─────────────────────────────────────────────
	rt, err := buildRuntime(cfg, a.registry, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.live.Store(rt)

	// ── 2. HTTP server ──────────────────────────────────────────────────
	a.initServer()

	// ── 3. Config watcher ───────────────────────────────────────────────
	if err := a.initWatcher(); err != nil {
		return nil, fmt.Errorf("app: watch config: %w", err)
	}

	observe.Logger(ctx).Info("app ready",
		"version", a.version,
		"terms", len(rt.pipeline.Terms()),
		"rewrite", rt.pipeline.RewriteEnabled(),
		"mcp", cfg.MCP.Enabled,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initServer() {
	s := a.cfg.Server
	checks := health.New(
		health.Checker{Name: "pipeline", Check: a.checkPipeline},
		health.Checker{Name: "rewrite", Check: health.Availability(a.rewriteAvailable), Optional: true},
	)

	opts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithMaxBodyBytes(s.MaxBodyBytes),
		server.WithBatchConcurrency(s.BatchConcurrency),
		server.WithAllowedOrigins(s.AllowedOrigins...),
		server.WithHealth(checks),
		server.WithVersion(a.version),
	}
	if a.telemetry != nil && a.cfg.Telemetry.MetricsEnabled() {
		opts = append(opts, server.WithMetricsHandler(a.telemetry.MetricsHandler()))
	}
	if a.cfg.MCP.Enabled {
		opts = append(opts, server.WithMCP(a.cfg.MCP.Path))
	}
	if s.FeedbackFile != "" {
		opts = append(opts, server.WithFeedback(feedback.NewFileStore(s.FeedbackFile)))
	}
	a.server = server.New(a, opts...)

	a.httpSrv = &http.Server{
		Addr:              s.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) initWatcher() error {
	if a.watchPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.watchPath, a.ApplyConfig, config.WithInterval(a.watchInterval))
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ErrNoConfigFile is returned by [App.ReloadConfig] when the App was created
// without [WithConfigWatch].
var ErrNoConfigFile = errors.New("app: no config file to reload")

// ReloadConfig re-reads the watched config file immediately instead of
// waiting for the next poll. It returns [config.ErrUnchanged] when the file
// content did not change.
func (a *App) ReloadConfig() error {
	if a.watcher == nil {
		return ErrNoConfigFile
	}
	return a.watcher.Reload()
}

// ApplyConfig applies the hot-reloadable differences between old and new.
// It is the config watcher's callback. A pipeline that fails to build keeps
// the previous one in service.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.PipelineChanged() {
		rt, err := buildRuntime(new, a.registry, a.metrics)
		if err != nil {
			slog.Error("config reload: keeping previous pipeline", "err", err)
		} else {
			a.live.Store(rt)
			slog.Info("pipeline reloaded",
				"terms_added", d.AddedTerms,
				"terms_removed", d.RemovedTerms,
				"rewrite_changed", d.RewriteChanged,
				"rewrite", rt.pipeline.RewriteEnabled(),
			)
		}
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "settings", d.RestartRequired)
	}
}

// ParseLevel maps a config log level to its slog equivalent. Unknown values
// map to info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Server returns the API server, e.g. to serve its MCP tools over stdio.
func (a *App) Server() *server.Server { return a.server }

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, Run drains in-flight requests for up to the configured
// shutdown timeout and returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr); err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	tls := a.cfg.Server.TLS
	slog.Info("app running", "addr", ln.Addr().String(), "tls", tls != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls != nil {
			err = a.httpSrv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and tears down all subsystems in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
