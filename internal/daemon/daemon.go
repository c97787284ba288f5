// Package daemon supervises the shout loop and enforces single-instance
// execution through a filesystem lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shoutd/internal/config"
	"shoutd/internal/journal"
	"shoutd/internal/logging"
	"shoutd/internal/worker"
)

// Daemon runs the worker loop in the background and owns its lifecycle.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	worker  *worker.Worker
	journal *journal.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies. The journal may
// be nil when attempt history is disabled.
func New(cfg *config.Config, w *worker.Worker, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || w == nil || logger == nil {
		return nil, errors.New("daemon requires config, worker, and logger")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		worker:   w,
		journal:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the worker loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shoutd instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.worker.Run(runCtx)
	}()

	d.logger.Info("shoutd started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the worker loop, waits for the in-flight attempt to wind
// down, and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shoutd stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Running reports whether the worker loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
