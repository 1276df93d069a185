package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ferry/internal/logging"
	"ferry/internal/queue"
)

// Registry tracks active uploads for the UI.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]*Entry
	order    []string
	pending  map[string]float64
	timers   map[string]*time.Timer
	watchers map[int]*watcher
	nextID   int
	dropped  int
	closed   bool

	quit      chan struct{}
	closeOnce sync.Once
}

// New builds an empty registry. Call Run to start the flush loop.
func New(opts Options, logger *slog.Logger) *Registry {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	if opts.WatchBuffer <= 0 {
		opts.WatchBuffer = defaultWatchBuffer
	}
	return &Registry{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "progress"),
		entries:  make(map[string]*Entry),
		pending:  make(map[string]float64),
		timers:   make(map[string]*time.Timer),
		watchers: make(map[int]*watcher),
		quit:     make(chan struct{}),
	}
}

// Run flushes buffered updates every tick until ctx ends or Close is called.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Flush()
			return
		case <-r.quit:
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}

// AddItem registers entry, replacing any entry with the same ItemID.
func (r *Registry) AddItem(entry Entry) {
	entry.Percent = queue.ClampPercent(entry.Percent)
	if entry.Kind == "" {
		entry.Kind = KindFile
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, exists := r.entries[entry.ItemID]; exists {
		r.stopTimerLocked(entry.ItemID)
		delete(r.pending, entry.ItemID)
	} else {
		r.order = append(r.order, entry.ItemID)
	}
	stored := entry
	r.entries[entry.ItemID] = &stored
	r.publishLocked(Update{ItemID: entry.ItemID, Percent: stored.Percent, Completed: stored.Completed})
}

// UpdateProgress buffers a progress report. Reports for unknown or completed
// entries are ignored; values are clamped to [0,100] and the highest report
// since the last flush wins.
func (r *Registry) UpdateProgress(itemID string, percent float64) {
	percent = queue.ClampPercent(percent)

	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[itemID]
	if !ok || entry.Completed {
		return
	}
	if prev, buffered := r.pending[itemID]; !buffered || percent > prev {
		r.pending[itemID] = percent
	}
}

// Flush applies buffered reports, producing at most one transition per item.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watchers {
		w.drain()
	}
	for itemID, percent := range r.pending {
		delete(r.pending, itemID)
		entry, ok := r.entries[itemID]
		if !ok || entry.Completed || percent <= entry.Percent {
			continue
		}
		entry.Percent = percent
		r.publishTickLocked(Update{ItemID: itemID, Percent: percent})
	}
}

// CompleteItem marks an entry done at 100% and schedules its removal after
// the grace period.
func (r *Registry) CompleteItem(itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[itemID]
	if !ok {
		return
	}
	delete(r.pending, itemID)
	entry.Percent = 100
	entry.Completed = true
	r.publishLocked(Update{ItemID: itemID, Percent: 100, Completed: true})

	r.stopTimerLocked(itemID)
	r.timers[itemID] = time.AfterFunc(r.opts.Grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.entries[itemID] != entry {
			return
		}
		delete(r.timers, itemID)
		r.removeLocked(itemID)
	})
}

// RemoveItem drops an entry immediately. It only hides the entry; any
// transfer behind it keeps running.
func (r *Registry) RemoveItem(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[itemID]; !ok {
		return false
	}
	r.stopTimerLocked(itemID)
	r.removeLocked(itemID)
	return true
}

func (r *Registry) removeLocked(itemID string) {
	delete(r.entries, itemID)
	delete(r.pending, itemID)
	for i, id := range r.order {
		if id == itemID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.publishLocked(Update{ItemID: itemID, Removed: true})
}

func (r *Registry) stopTimerLocked(itemID string) {
	if timer, ok := r.timers[itemID]; ok {
		timer.Stop()
		delete(r.timers, itemID)
	}
}

// Get returns a copy of the entry for itemID.
func (r *Registry) Get(itemID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[itemID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries returns copies of all entries in insertion order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Summary returns the live count, the size-weighted mean percent, and whether
// anything is still in flight. Entries without a known size weigh 1.
func (r *Registry) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		summary     Summary
		weighted    float64
		totalWeight float64
	)
	for _, entry := range r.entries {
		summary.Count++
		if !entry.Completed {
			summary.InFlight = true
		}
		weight := float64(1)
		if entry.SizeBytes > 0 {
			weight = float64(entry.SizeBytes)
		}
		weighted += weight * entry.Percent
		totalWeight += weight
	}
	if totalWeight > 0 {
		summary.OverallPercent = weighted / totalWeight
	}
	return summary
}

// BatchCounts reports the entries belonging to batchID.
func (r *Registry) BatchCounts(batchID string) BatchCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts BatchCount
	for _, entry := range r.entries {
		if entry.BatchID != batchID {
			continue
		}
		counts.Total++
		if entry.Completed {
			counts.Completed++
		}
	}
	return counts
}

// Watch subscribes to entry changes. A slow watcher misses percent ticks
// rather than stall the registry; additions, completions and removals are held
// for it and delivered in order once it has room. The returned cancel func
// unsubscribes and closes the channel.
func (r *Registry) Watch(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = r.opts.WatchBuffer
	}
	ch := make(chan Update, buffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextID
	r.nextID++
	r.watchers[id] = &watcher{ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if w, ok := r.watchers[id]; ok {
				delete(r.watchers, id)
				close(w.ch)
			}
		})
	}
}

// publishLocked delivers a state change every watcher must see.
func (r *Registry) publishLocked(update Update) {
	for _, w := range r.watchers {
		if w.offer(update) {
			continue
		}
		if len(w.backlog) >= maxWatchBacklog {
			r.dropped++
			continue
		}
		w.backlog = append(w.backlog, update)
	}
}

// publishTickLocked delivers a percent change that a lagging watcher may miss.
func (r *Registry) publishTickLocked(update Update) {
	for _, w := range r.watchers {
		if !w.offer(update) {
			r.dropped++
		}
	}
}

type watcher struct {
	ch chan Update
	// backlog holds updates that found ch full, oldest first.
	backlog []Update
}

// offer sends update unless ch is full or older held updates are still waiting.
func (w *watcher) offer(update Update) bool {
	w.drain()
	if len(w.backlog) > 0 {
		return false
	}
	select {
	case w.ch <- update:
		return true
	default:
		return false
	}
}

func (w *watcher) drain() {
	for len(w.backlog) > 0 {
		select {
		case w.ch <- w.backlog[0]:
			w.backlog[0] = Update{}
			w.backlog = w.backlog[1:]
		default:
			return
		}
	}
}

// Dropped returns how many watcher updates were discarded.
func (r *Registry) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops the flush loop and pending removals and closes all watchers.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closed = true
		for id, timer := range r.timers {
			timer.Stop()
			delete(r.timers, id)
		}
		for id, w := range r.watchers {
			close(w.ch)
			delete(r.watchers, id)
		}
		if r.dropped > 0 {
			r.logger.Debug("watcher updates dropped", logging.Int("count", r.dropped))
		}
	})
}
