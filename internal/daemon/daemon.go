package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ladle/internal/api"
	"ladle/internal/config"
	"ladle/internal/notifications"
	"ladle/internal/pipeline"
	"ladle/internal/recipes"
	"ladle/internal/tts"
)

// Daemon owns the shared services and the API server lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *recipes.Store
	pipeline *pipeline.Pipeline
	synth    *tts.Synthesizer
	notifier notifications.Service

	lock    *flock.Flock
	api     *apiServer
	running atomic.Bool
}

// New wires a daemon from already-constructed services. The store,
// pipeline, and synthesizer are built by the caller so tests can swap
// their collaborators.
func New(cfg *config.Config, store *recipes.Store, pipe *pipeline.Pipeline, synth *tts.Synthesizer, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon: config is required")
	}
	if store == nil {
		return nil, errors.New("daemon: store is required")
	}
	if pipe == nil {
		return nil, errors.New("daemon: pipeline is required")
	}
	if synth == nil {
		return nil, errors.New("daemon: synthesizer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: pipe,
		synth:    synth,
		notifier: notifier,
		lock:     flock.New(cfg.LockPath()),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the instance lock and brings up the API server. It
// returns once the listener is accepting connections.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("acquire lock file: %w", err)
	}
	if !locked {
		d.running.Store(false)
		return errors.New("another ladle daemon instance is already running")
	}

	if err := d.api.start(ctx); err != nil {
		d.releaseLock()
		d.running.Store(false)
		return err
	}

	d.logger.Info("daemon started", "bind", d.api.addr())
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{"bind": d.api.addr()})
	return nil
}

// Stop shuts down the API server and releases the instance lock. It is
// safe to call more than once.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.api.stop()
	d.releaseLock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.publish(ctx, notifications.EventDaemonStopped, nil)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr reports the address the API server is listening on, or the
// configured bind when the server has not started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Health reports the daemon's view of its dependencies.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	health := api.HealthResponse{
		Status:      "healthy",
		Database:    "connected",
		LLMProvider: d.cfg.LLM.Provider,
	}
	if err := d.store.Ping(ctx); err != nil {
		health.Status = "degraded"
		health.Database = "error: " + err.Error()
	}
	return health
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock file failed", "path", d.lock.Path(), "error", err)
	}
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification failed", "event", string(event), "error", err)
	}
}
