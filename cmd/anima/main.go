// Command anima is the main entry point for the Anima conversation server:
// a real-time, full-duplex media server that brokers between browser
// clients (speech in / speech + animation out) and configurable ASR, LLM,
// TTS, and VAD providers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/config"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/observe"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "anima: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "anima: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("anima starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────
	mp, shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "anima",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	reg.Seal()

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg, reg)

	// ── Session manager + server ──────────────────────────────────────────
	manager, err := server.NewManager(cfg, providers, metrics, logger)
	if err != nil {
		slog.Error("failed to initialise session manager", "err", err)
		return 1
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := server.NewServer(addr, manager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("serve error", "err", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process-wide text logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.Level(),
	}))
}

// printStartupSummary logs the selected providers and the registered
// alternatives so operators can see the swap surface.
func printStartupSummary(cfg *config.Config, reg *config.Registry) {
	slog.Info("providers selected",
		"agent", cfg.Services.Agent,
		"asr", orNone(cfg.Services.ASR),
		"tts", cfg.Services.TTS,
		"vad", orNone(cfg.Services.VAD),
	)
	for _, kind := range []config.Kind{config.KindLLM, config.KindASR, config.KindTTS, config.KindVAD} {
		slog.Debug("registered providers", "kind", kind, "names", reg.List(kind))
	}
}

// orNone substitutes a placeholder for an empty provider selection.
func orNone(name string) string {
	if name == "" {
		return "(none)"
	}
	return name
}
