// Package sampler drives the fixed-interval sampling loop. On each tick it
// fans out to the sensor reader, joins the readings into one Sample and hands
// it to a Publisher. Reader failures skip the tick; they never stop the loop.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

const (
	// DefaultInterval is the nominal sampling cadence.
	DefaultInterval = 500 * time.Millisecond

	// DefaultStopTimeout is the maximum time Stop waits for in-flight ticks.
	DefaultStopTimeout = 5 * time.Second
)

// Skip reasons reported to the Observer.
const (
	SkipOverlap     = "overlap"
	SkipTimeout     = "timeout"
	SkipReaderError = "reader_error"
	SkipPanic       = "panic"
)

var (
	// ErrAlreadyStarted is returned by Start on a running sampler.
	ErrAlreadyStarted = errors.New("sampler: already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("sampler: stopped")

	// ErrReaderPanic wraps a recovered panic from a sensor read.
	ErrReaderPanic = errors.New("sampler: reader panicked")
)

// OverlapPolicy decides what happens when a tick fires while the previous
// aggregation is still running.
type OverlapPolicy string

const (
	// OverlapSkip drops the new tick.
	OverlapSkip OverlapPolicy = "skip"
	// OverlapAllow starts another aggregation alongside the slow one.
	OverlapAllow OverlapPolicy = "allow"
)

// ParseOverlap converts a config string into an OverlapPolicy. Empty means skip.
func ParseOverlap(s string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OverlapSkip, nil
	case OverlapSkip, OverlapAllow:
		return p, nil
	default:
		return "", fmt.Errorf("sampler: unknown overlap policy %q (want skip or allow)", s)
	}
}

// Publisher receives every completed sample. Publish must not block.
type Publisher interface {
	Publish(collectors.Sample)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(collectors.Sample)

// Publish calls f(s).
func (f PublisherFunc) Publish(s collectors.Sample) { f(s) }

// Observer is notified of loop events. Implementations must be safe for
// concurrent use.
type Observer interface {
	TickStarted()
	TickSkipped(reason string)
	SampleProduced(s collectors.Sample, latency time.Duration)
}

type noopObserver struct{}

func (noopObserver) TickStarted() {}

func (noopObserver) TickSkipped(string) {}

func (noopObserver) SampleProduced(collectors.Sample, time.Duration) {}

// Config configures a Sampler.
type Config struct {
	// Interval between ticks. Zero means DefaultInterval.
	Interval time.Duration

	// Overlap policy. Empty means OverlapSkip.
	Overlap OverlapPolicy

	// TickTimeout bounds the asynchronous reads of one tick. Zero means Interval.
	TickTimeout time.Duration

	// Logger for skipped ticks. Nil is safe.
	Logger *slog.Logger

	// Observer for metrics. Nil is safe.
	Observer Observer
}

// errTracker deduplicates repeated identical tick errors.
type errTracker struct {
	lastMsg    string
	lastTime   time.Time
	suppressed int64
}

// Sampler owns the sampling timer.
type Sampler struct {
	reader   collectors.SensorReader
	pub      Publisher
	interval time.Duration
	timeout  time.Duration
	overlap  OverlapPolicy
	logger   *slog.Logger
	observer Observer

	inFlight atomic.Int32
	wg       sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once

	// mu guards the lifecycle fields and serializes Publish against Stop, so
	// nothing is published once Stop has returned.
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool

	errMu sync.Mutex
	errs  errTracker
}

// New creates a Sampler that reads from r and publishes to pub.
func New(r collectors.SensorReader, pub Publisher, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = cfg.Interval
	}
	if cfg.Overlap == "" {
		cfg.Overlap = OverlapSkip
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Sampler{
		reader:   r,
		pub:      pub,
		interval: cfg.Interval,
		timeout:  cfg.TickTimeout,
		overlap:  cfg.Overlap,
		logger:   logger,
		observer: observer,
		stopped:  make(chan struct{}),
	}
}

// Interval returns the configured tick interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start launches the sampling loop. The first tick fires immediately.
// Cancelling ctx or calling Stop ends the loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStopped
	}
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	go func() {
		s.wg.Wait()
		close(s.stopped)
	}()

	s.logger.Info("sampler started",
		"interval", s.interval,
		"tick_timeout", s.timeout,
		"overlap", string(s.overlap),
	)
	return nil
}

// Stop cancels the loop and in-flight reads, then waits for them to finish
// with a timeout. It is safe to call more than once, and before Start.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	started := s.cancel != nil
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-s.stopped:
	case <-time.After(DefaultStopTimeout):
		s.logger.Warn("sampler stop timed out", "timeout", DefaultStopTimeout)
	}
}

// Done is closed once the loop and every in-flight tick have returned.
func (s *Sampler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire starts one tick without blocking the timer.
func (s *Sampler) fire(ctx context.Context) {
	s.observer.TickStarted()

	if s.overlap == OverlapSkip {
		if !s.inFlight.CompareAndSwap(0, 1) {
			s.observer.TickSkipped(SkipOverlap)
			s.logger.Debug("tick skipped, previous sample still in flight")
			return
		}
	} else {
		s.inFlight.Add(1)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		s.tick(ctx)
	}()
}

func (s *Sampler) tick(ctx context.Context) {
	start := time.Now()
	sample, err := s.SampleOnce(ctx)
	latency := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.observer.TickSkipped(skipReason(err))
		s.logTickError(err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pub.Publish(sample)
	s.observer.SampleProduced(sample, latency)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrReaderPanic):
		return SkipPanic
	case errors.Is(err, context.DeadlineExceeded):
		return SkipTimeout
	default:
		return SkipReaderError
	}
}

type cpuResult struct {
	v   float64
	err error
}

// SampleOnce performs one aggregation: CPU and temperature concurrently, RAM
// and storage inline. The asynchronous reads are bounded by the tick timeout.
// A temperature read that misses the deadline counts as 0.
func (s *Sampler) SampleOnce(ctx context.Context) (sample collectors.Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrReaderPanic, r)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cpuCh := make(chan cpuResult, 1)
	tempCh := make(chan float64, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				cpuCh <- cpuResult{err: fmt.Errorf("%w: cpu: %v", ErrReaderPanic, r)}
			}
		}()
		v, err := s.reader.CPUUsage(tctx)
		cpuCh <- cpuResult{v: v, err: err}
	}()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				tempCh <- 0
			}
		}()
		tempCh <- s.reader.CPUTemperature(tctx)
	}()

	ram, err := s.reader.RAMUsage()
	if err != nil {
		return collectors.Sample{}, err
	}
	storage, err := s.reader.StorageUsage()
	if err != nil {
		return collectors.Sample{}, err
	}

	var cpu cpuResult
	select {
	case cpu = <-cpuCh:
	case <-tctx.Done():
		return collectors.Sample{}, fmt.Errorf("sampler: cpu read: %w", tctx.Err())
	}
	if cpu.err != nil {
		return collectors.Sample{}, cpu.err
	}

	var temp float64
	select {
	case temp = <-tempCh:
	case <-tctx.Done():
		if ctx.Err() != nil {
			return collectors.Sample{}, ctx.Err()
		}
	}

	return collectors.NewSample(cpu.v, ram, storage.Usage, temp), nil
}

// logTickError deduplicates repeated identical errors. A message that recurs
// within an hour is suppressed, with a summary every 100 suppressions.
func (s *Sampler) logTickError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	msg := err.Error()
	now := time.Now()
	t := &s.errs
	if msg == t.lastMsg && now.Sub(t.lastTime) < time.Hour {
		t.suppressed++
		if t.suppressed%100 == 0 {
			s.logger.Warn("tick skipped (repeated)", "error", err, "count", t.suppressed)
		}
		return
	}
	if t.suppressed > 0 {
		s.logger.Warn("previous tick error repeated", "count", t.suppressed)
	}
	s.logger.Warn("tick skipped", "error", err)
	t.lastMsg = msg
	t.lastTime = now
	t.suppressed = 0
}
