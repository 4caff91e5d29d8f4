package cache

import (
	"fmt"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

// Cache keys written by the daemon.
const (
	KeyLatest = "latest"
	KeyStatic = "static"
)

// DefaultSnapshotInterval is the minimum gap between latest-sample writes.
const DefaultSnapshotInterval = 5 * time.Second

// Snapshot is the persisted form of the newest sample. History is not
// persisted.
type Snapshot struct {
	Sample collectors.Sample `json:"sample"`
	Taken  time.Time         `json:"taken"`
}

// Snapshotter writes samples to the store, at most once per interval. It
// implements sampler.Publisher, so it can sit beside the transport hub in
// the daemon's publish chain. Publish only records the sample; a background
// writer does the file I/O, so a slow disk never stalls the sampler. When
// writes fall behind, the newest sample wins.
type Snapshotter struct {
	store    *Store
	interval time.Duration

	// now and write are overridable for tests.
	now   func() time.Time
	write func(Snapshot) error

	mu      sync.Mutex
	last    time.Time
	pending *Snapshot
	failed  bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewSnapshotter returns a Snapshotter writing to store and starts its
// writer. An interval of zero means DefaultSnapshotInterval; a negative
// interval writes every sample. Call Close to stop it.
func NewSnapshotter(store *Store, interval time.Duration) *Snapshotter {
	if interval == 0 {
		interval = DefaultSnapshotInterval
	}
	w := &Snapshotter{
		store:    store,
		interval: interval,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.write = func(snap Snapshot) error { return store.Set(KeyLatest, snap) }
	go w.run()
	return w
}

// Publish queues s for writing unless the previous accepted sample is
// younger than the interval. It never waits for the disk.
func (w *Snapshotter) Publish(s collectors.Sample) {
	w.mu.Lock()
	now := w.now()
	if !w.last.IsZero() && now.Sub(w.last) < w.interval {
		w.mu.Unlock()
		return
	}
	w.last = now
	w.pending = &Snapshot{Sample: s, Taken: now}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close writes any queued snapshot and stops the writer. It is safe to call
// more than once.
func (w *Snapshotter) Close() {
	w.closeOnce.Do(func() { close(w.done) })
	<-w.stopped
}

func (w *Snapshotter) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

// flush writes the queued snapshot, if any. Failures are logged once per run
// of consecutive errors.
func (w *Snapshotter) flush() {
	w.mu.Lock()
	snap := w.pending
	w.pending = nil
	w.mu.Unlock()
	if snap == nil {
		return
	}

	err := w.write(*snap)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil && !w.failed {
		w.store.logger.Warn("snapshot write failed", "error", err)
	}
	w.failed = err != nil
}

// WriteStatic persists the static capabilities.
func WriteStatic(store *Store, caps collectors.StaticCapabilities) error {
	return SetTyped(store, KeyStatic, &caps)
}

// Status is what the status command prints.
type Status struct {
	Latest *Snapshot                      `json:"latest"`
	Static *collectors.StaticCapabilities `json:"static,omitempty"`
	// Fresh reports whether Latest is within the requested TTL.
	Fresh bool `json:"fresh"`
}

// ReadStatus loads the latest snapshot and static capabilities. A missing
// latest snapshot is an error: no daemon has written to this directory.
func ReadStatus(store *Store, ttl time.Duration) (*Status, error) {
	latest, fresh, err := GetTyped[Snapshot](store, KeyLatest, ttl)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("cache: no snapshot in %s (is the daemon running?)", store.Dir())
	}
	static, _, err := GetTyped[collectors.StaticCapabilities](store, KeyStatic, 0)
	if err != nil {
		return nil, err
	}
	return &Status{Latest: latest, Static: static, Fresh: fresh}, nil
}
