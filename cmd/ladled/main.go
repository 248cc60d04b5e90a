package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ladle/internal/audio"
	"ladle/internal/config"
	"ladle/internal/daemon"
	"ladle/internal/fetch"
	"ladle/internal/llm"
	"ladle/internal/logging"
	"ladle/internal/notifications"
	"ladle/internal/pipeline"
	"ladle/internal/preflight"
	"ladle/internal/recipes"
	"ladle/internal/structurer"
	"ladle/internal/tts"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, check := range preflight.RunAll(cfg) {
		switch {
		case check.Passed:
			logger.Info("preflight check passed",
				slog.String("check", check.Name),
				slog.String("detail", check.Detail))
		case check.Optional:
			logger.Warn("optional dependency unavailable",
				slog.String("check", check.Name),
				slog.String("detail", check.Detail))
		default:
			return fmt.Errorf("preflight: %s: %s", check.Name, check.Detail)
		}
	}

	store, err := recipes.Open(cfg)
	if err != nil {
		return fmt.Errorf("open recipe store: %w", err)
	}

	clips, err := audio.NewStore(cfg.Paths.StaticDir)
	if err != nil {
		store.Close()
		return fmt.Errorf("open audio store: %w", err)
	}

	generator, err := llm.New(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("create llm provider: %w", err)
	}

	synth := tts.New(cfg.TTS, clips, tts.WithLogger(logging.NewComponentLogger(logger, "tts")))
	fetcher := fetch.New(cfg.Fetch, fetch.WithLogger(logging.NewComponentLogger(logger, "fetch")))
	structured := structurer.New(generator,
		structurer.WithNarrator(synth),
		structurer.WithLogger(logging.NewComponentLogger(logger, "structurer")),
	)
	notifier := notifications.NewService(cfg)
	pipe := pipeline.New(store, fetcher, structured, clips,
		pipeline.WithLogger(logging.NewComponentLogger(logger, "pipeline")),
		pipeline.WithNotifier(notifier),
	)

	d, err := daemon.New(cfg, store, pipe, synth, notifier, logging.NewComponentLogger(logger, "daemon"))
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon start: %w", err)
	}
	logger.Info("ladled running", slog.String("bind", d.Addr()), slog.String("provider", cfg.LLM.Provider))

	<-ctx.Done()
	logger.Info("ladled shutting down")
	return nil
}
