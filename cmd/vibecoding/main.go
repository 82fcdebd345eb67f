// Command vibecoding runs the transcript cleanup server.
//
// Without flags it serves the HTTP, WebSocket and MCP endpoints described by
// the configuration file. Two one-shot modes exist for scripting:
//
//	vibecoding -stdin [-trace] < raw.txt   format each input line with the rules engine
//	vibecoding -mcp-stdio                  serve the MCP tools over stdin/stdout
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/vibecoding/internal/app"
	"github.com/MrWong99/vibecoding/internal/config"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/server"
	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	stdinMode := flag.Bool("stdin", false, "format stdin line by line with the rules engine and exit")
	traceMode := flag.Bool("trace", false, "with -stdin, print the text after every formatting stage")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve the MCP tools over stdin/stdout instead of HTTP")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("vibecoding", version)
		return 0
	}

	// The rules engine needs no configuration at all.
	if *stdinMode {
		if err := formatLines(os.Stdin, os.Stdout, *traceMode); err != nil {
			fmt.Fprintf(os.Stderr, "vibecoding: %v\n", err)
			return 1
		}
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vibecoding: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vibecoding: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// MCP over stdio owns stdout, so logs always go to stderr.
	level := new(slog.LevelVar)
	level.Set(app.ParseLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	slog.Info("vibecoding starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		DisableMetrics: !cfg.Telemetry.MetricsEnabled(),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts := []app.Option{
		app.WithRegistry(reg),
		app.WithMetrics(metrics),
		app.WithTelemetry(tel),
		app.WithLogLevel(level),
		app.WithVersion(version),
	}
	if *configPath != "" {
		opts = append(opts, app.WithConfigWatch(*configPath, config.DefaultWatchInterval))
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *mcpStdio {
		return serveMCPStdio(ctx, application)
	}

	// SIGHUP re-reads the config file without waiting for the next poll.
	if *configPath != "" {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go reloadOnHangup(ctx, hup, application)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)
	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func reloadOnHangup(ctx context.Context, hup <-chan os.Signal, application *app.App) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			switch err := application.ReloadConfig(); {
			case err == nil:
			case errors.Is(err, config.ErrUnchanged):
				slog.Info("config unchanged, nothing to reload")
			default:
				slog.Error("config reload failed", "err", err)
			}
		}
	}
}

// serveMCPStdio exposes the cleanup tools over the process's stdin/stdout
// until the client disconnects or ctx is cancelled.
func serveMCPStdio(ctx context.Context, application *app.App) int {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	srv := server.NewMCPServer(application, version)
	slog.Info("serving MCP over stdio")
	if err := srv.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp stdio error", "err", err)
		return 1
	}
	return 0
}

// ── Stdin formatting ──────────────────────────────────────────────────────────

// maxLineBytes bounds a single input line in -stdin mode.
const maxLineBytes = 1 << 20

// formatLines writes tidy.Format of every line of r to w. In trace mode each
// line is followed by the text after every stage that ran.
func formatLines(r io.Reader, w io.Writer, trace bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	bw := bufio.NewWriter(w)

	for sc.Scan() {
		line := sc.Text()
		if !trace {
			fmt.Fprintln(bw, tidy.Format(line))
			continue
		}
		fmt.Fprintf(bw, "%q\n", line)
		for _, step := range tidy.Trace(line) {
			fmt.Fprintf(bw, "  %-20s %q\n", step.Stage, step.Text)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return bw.Flush()
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       vibecoding: startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Listen addr     : %-19s ║\n", truncate(cfg.Server.ListenAddr))
	if cfg.Rewrite.Enabled {
		for i, p := range cfg.Rewrite.Providers {
			fmt.Printf("║  Rewrite #%-6d : %-19s ║\n", i+1, truncate(p.Name+" / "+p.Model))
		}
	} else {
		fmt.Printf("║  Rewrite         : %-19s ║\n", "(rules only)")
	}
	fmt.Printf("║  Vocabulary      : %-19d ║\n", len(cfg.Vocabulary.Terms))
	if cfg.MCP.Enabled {
		fmt.Printf("║  MCP             : %-19s ║\n", truncate(cfg.MCP.Path))
	} else {
		fmt.Printf("║  MCP             : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func truncate(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
