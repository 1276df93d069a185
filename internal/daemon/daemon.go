package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"ferry/internal/config"
	"ferry/internal/extract"
	"ferry/internal/limiter"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/recovery"
	"ferry/internal/remote"
	"ferry/internal/upload"
)

// ErrNotRunning is returned by operations that need a started daemon.
var ErrNotRunning = errors.New("daemon is not running")

// Daemon coordinates the upload pipeline and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	remote remote.Store

	limiter     *limiter.Limiter
	registry    *progress.Registry
	runner      *upload.Runner
	coordinator *recovery.Coordinator
	extractor   *extract.Extractor
	notifier    notifications.Service
	notifyWG    sync.WaitGroup

	// work is read-held by every Enqueue between its running check and its
	// submission; Stop write-locks it to drain them.
	work sync.RWMutex

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, dst remote.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || dst == nil {
		return nil, errors.New("daemon requires config, store, and remote store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lim := limiter.New(cfg.Upload.Concurrency, logger)
	registry := progress.New(progress.Options{
		Tick:  cfg.ProgressTick(),
		Grace: cfg.CompletionGrace(),
	}, logger)
	runner := upload.New(store, dst, lim, registry, upload.Options{
		Prefix:          cfg.Remote.Prefix,
		PersistInterval: cfg.PersistInterval(),
	}, logger)

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		remote:      dst,
		limiter:     lim,
		registry:    registry,
		runner:      runner,
		coordinator: recovery.New(store, runner, registry, logger),
		extractor:   extract.New(logger),
		notifier:    notifications.NewService(cfg),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}
	d.coordinator.OnFinish(d.notifyRestore)
	return d, nil
}

// Start acquires the daemon lock, drops records left completed by an earlier
// crash, and starts the progress loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ferry instance is already running")
	}

	purged, err := d.store.PurgeCompleted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("purge completed items: %w", err)
	}
	if purged > 0 {
		d.logger.Info("purged confirmed uploads left in queue", logging.Int64("count", purged))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go func(ctx context.Context, done chan struct{}) {
		defer close(done)
		d.registry.Run(ctx)
	}(d.ctx, d.done)

	d.running.Store(true)
	d.logger.Info("ferry daemon started",
		logging.String("lock", d.lockPath),
		logging.String("remote", d.remote.Name()),
		logging.Int("concurrency", d.limiter.Capacity()),
	)
	return nil
}

// Stop cancels in-flight uploads, waits for them to unwind, and releases the
// daemon lock. Interrupted items stay queued.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	d.work.Lock()
	d.work.Unlock()
	if err := d.coordinator.Wait(context.Background()); err != nil {
		d.logger.Warn("restore pass did not finish", logging.Error(err))
	}
	d.limiter.Wait()
	d.notifyWG.Wait()
	<-d.done
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ferry daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.extractor.Close()
	d.registry.Close()
	if closer, ok := d.remote.(remote.Closer); ok {
		if err := closer.Close(); err != nil {
			d.logger.Warn("failed to close remote store", logging.Error(err))
		}
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Wait blocks until every submitted upload has finished.
func (d *Daemon) Wait() {
	d.limiter.Wait()
}

func (d *Daemon) lifetime() (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil, ErrNotRunning
	}
	return d.ctx, nil
}

// beginWork returns the lifetime context with work read-held. Callers must
// call the returned func once their submission is done.
func (d *Daemon) beginWork() (context.Context, func(), error) {
	life, err := d.lifetime()
	if err != nil {
		return nil, nil, err
	}
	d.work.RLock()
	if life.Err() != nil {
		d.work.RUnlock()
		return nil, nil, ErrNotRunning
	}
	return life, d.work.RUnlock, nil
}
