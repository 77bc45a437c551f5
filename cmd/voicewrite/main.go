// Voicewrite is a text-to-speech daemon that plays synthesized speech on the
// local speakers. Clients POST text over HTTP (or gRPC/NATS) and either get
// an answer as soon as the audio is queued or once it has been played.
//
// Usage:
//
//	voicewrite [flags]
//	voicewrite --config /path/to/voicewrite.yaml
//
// @title        voicewrite API
// @version      1.0
// @description  Text-to-speech daemon that plays synthesized speech on the local speakers.
// @BasePath     /
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

	"golang.org/x/sync/errgroup"

	_ "github.com/nadzzz/voicewrite/docs"
	"github.com/nadzzz/voicewrite/internal/config"
	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/health"
	"github.com/nadzzz/voicewrite/internal/metrics"
	"github.com/nadzzz/voicewrite/internal/playback"
	"github.com/nadzzz/voicewrite/internal/player"
	"github.com/nadzzz/voicewrite/internal/transport"
	grpctransport "github.com/nadzzz/voicewrite/internal/transport/grpc"
	httptransport "github.com/nadzzz/voicewrite/internal/transport/http"
	natstransport "github.com/nadzzz/voicewrite/internal/transport/nats"
	"github.com/nadzzz/voicewrite/internal/tts"
	"github.com/nadzzz/voicewrite/internal/tts/edge"
	"github.com/nadzzz/voicewrite/internal/tts/piper"
	"github.com/nadzzz/voicewrite/internal/voice"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/voicewrite.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicewrite %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("voicewrite starting", "version", version)

	if err := run(cfg); err != nil {
		slog.Error("voicewrite failed", "error", err)
		os.Exit(1)
	}
	slog.Info("voicewrite stopped")
}

func run(cfg *config.Config) error {
	// Create root context with signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	catalog, err := voice.New(cfg.TTS.Voices, cfg.TTS.DefaultVoice)
	if err != nil {
		return fmt.Errorf("voice catalog: %w", err)
	}

	synthesizer, err := newSynthesizer(cfg.TTS)
	if err != nil {
		return err
	}
	if synthesizer != nil {
		defer synthesizer.Close()
	}

	p, err := player.New(cfg.Player.Commands, cfg.Player.Timeout, m)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}

	// The worker outlives the signal context so it can drain on shutdown.
	queue := playback.NewQueue(m)
	worker := playback.NewWorker(queue, p)
	worker.Start(context.Background())

	dispatcher := dispatch.New(synthesizer, catalog, queue, p, cfg.TTS.MaxChars, m)

	transports := []transport.Transport{
		httptransport.New(cfg.Server.HTTPPort, cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.NATS.Enabled {
		transports = append(transports, natstransport.New(cfg.Transports.NATS))
	}

	healthServer := health.New(cfg.Server.HealthPort, m.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, dispatcher); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("voicewrite ready",
		"tts_available", dispatcher.Available(),
		"voices", dispatcher.Voices(),
		"default_voice", catalog.DefaultKey(),
		"transports", len(transports),
		"http_port", cfg.Server.HTTPPort,
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal or a transport failure.
	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutdown signal received, draining...")

	// Transports finish in-flight requests before Wait returns.
	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := worker.Shutdown(drainCtx); err != nil {
		slog.Warn("playback queue not fully drained", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// newSynthesizer returns the configured backend, or nil when TTS is disabled.
func newSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	if !cfg.Enabled {
		slog.Warn("tts disabled, speak requests will be rejected")
		return nil, nil
	}

	switch cfg.Backend {
	case "edge":
		slog.Info("using Edge synthesizer", "endpoint", cfg.Edge.Endpoint, "format", cfg.Edge.OutputFormat)
		return edge.New(cfg.Edge, cfg.TempDir), nil
	case "piper":
		slog.Info("using Piper synthesizer", "endpoint", cfg.Piper.Endpoint)
		return piper.New(cfg.Piper, cfg.TempDir), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}
