package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/stat-pulse/cache"
	"gitlab.com/tinyland/lab/stat-pulse/collectors"
	"gitlab.com/tinyland/lab/stat-pulse/collectors/retry"
	"gitlab.com/tinyland/lab/stat-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/stat-pulse/config"
	"gitlab.com/tinyland/lab/stat-pulse/observability"
	"gitlab.com/tinyland/lab/stat-pulse/sampler"
	"gitlab.com/tinyland/lab/stat-pulse/transport"
)

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the headless producer (websocket, /health, /metrics, cache snapshot)",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// producerOptions configures a producer.
type producerOptions struct {
	cfg    *config.Config
	logger *slog.Logger

	// reader overrides the host sensor reader.
	reader collectors.SensorReader
	// registry enables Prometheus metrics when set.
	registry *prometheus.Registry
	// store enables the latest-sample snapshot when set.
	store *cache.Store
	// optionalListen downgrades a listen failure to a warning.
	optionalListen bool
}

// producer is the sampling side of stat-pulse: a sensor reader, the sampling
// loop, the in-process hub and, when configured, the websocket server.
type producer struct {
	cfg     *config.Config
	logger  *slog.Logger
	reader  collectors.SensorReader
	hub     *transport.Hub
	sampler *sampler.Sampler
	metrics *observability.Metrics
	store   *cache.Store
	snap    *cache.Snapshotter
	server  *transport.Server

	optionalListen bool
	registry       *prometheus.Registry

	staticMu sync.Mutex
	static   *collectors.StaticCapabilities

	httpSrv  *http.Server
	listener net.Listener
	pidFile  string
}

// newProducer wires the reader, sampler and hub from cfg. Nothing runs until
// start.
func newProducer(opts producerOptions) (*producer, error) {
	cfg := opts.cfg
	if cfg == nil {
		return nil, errors.New("daemon: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	logger := opts.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := cfg.Durations()

	reader := opts.reader
	if reader == nil {
		reader = sysmetrics.New(sysmetrics.Config{
			Root:      cfg.Sampler.Root,
			CPUWindow: d.CPUWindow,
			TempBreaker: retry.Config{
				MaxFailures:       cfg.Temperature.MaxFailures,
				ResetTimeout:      d.ResetTimeout,
				MaxResetTimeout:   d.MaxResetTimeout,
				BackoffMultiplier: cfg.Temperature.BackoffMultiplier,
				Logger:            logger,
			},
			Logger: logger,
		})
	}

	p := &producer{
		cfg:            cfg,
		logger:         logger,
		reader:         reader,
		hub:            transport.NewHub(logger),
		store:          opts.store,
		registry:       opts.registry,
		optionalListen: opts.optionalListen,
	}

	var observer sampler.Observer
	if opts.registry != nil {
		p.metrics = observability.NewMetrics(opts.registry)
		p.hub.SetDropHook(p.metrics.MessageDropped)
		observer = p.metrics
		observability.RegisterSubscribers(opts.registry, []string{
			transport.ChannelStatistics,
			transport.ChannelChangeView,
			transport.ChannelFrameAction,
		}, p.hub.Subscribers)
		if b, ok := reader.(interface{ TemperatureBreaker() retry.Stats }); ok {
			observability.RegisterBreaker(opts.registry, b.TemperatureBreaker)
		}
	}

	pub := sampler.Publisher(p.hub)
	if p.store != nil {
		p.snap = cache.NewSnapshotter(p.store, d.SnapshotInterval)
		pub = sampler.PublisherFunc(func(s collectors.Sample) {
			p.hub.Publish(s)
			p.snap.Publish(s)
		})
		p.pidFile = filepath.Join(p.store.Dir(), "stat-pulse.pid")
	}

	overlap, _ := sampler.ParseOverlap(cfg.Sampler.Overlap)
	p.sampler = sampler.New(reader, pub, sampler.Config{
		Interval:    d.Interval,
		Overlap:     overlap,
		TickTimeout: d.TickTimeout,
		Logger:      logger,
		Observer:    observer,
	})

	p.hub.Handle(transport.ChannelStaticData, p.handleStatic)
	return p, nil
}

// staticCapabilities queries the reader once and serves every later call from
// the first successful result. Failures are not remembered.
func (p *producer) staticCapabilities(ctx context.Context) (collectors.StaticCapabilities, error) {
	p.staticMu.Lock()
	defer p.staticMu.Unlock()

	if p.static != nil {
		return *p.static, nil
	}
	caps, err := p.reader.StaticCapabilities(ctx)
	if err != nil {
		return collectors.StaticCapabilities{}, err
	}
	p.static = &caps
	return caps, nil
}

// handleStatic answers get-static-data.
func (p *producer) handleStatic(ctx context.Context, _ json.RawMessage) (any, error) {
	caps, err := p.staticCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	return caps, nil
}

// start begins serving (when daemon.listen is set) and sampling.
func (p *producer) start(ctx context.Context) error {
	if p.pidFile != "" {
		if running, pid := p.isRunning(); running {
			return fmt.Errorf("daemon: already running (PID %d)", pid)
		}
		if err := p.writePIDFile(); err != nil {
			return err
		}
	}

	if err := p.listen(); err != nil {
		if !p.optionalListen {
			p.removePIDFile()
			return err
		}
		p.logger.Warn("not serving websocket", "error", err)
	}

	if p.store != nil {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		caps, err := p.staticCapabilities(sctx)
		cancel()
		if err == nil {
			err = cache.WriteStatic(p.store, caps)
		}
		if err != nil {
			p.logger.Warn("static snapshot not written", "error", err)
		}
	}

	if err := p.sampler.Start(ctx); err != nil {
		p.stop()
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}

// listen binds daemon.listen and serves /ws, /health and, with a registry
// and daemon.metrics, /metrics.
func (p *producer) listen() error {
	if p.cfg.Daemon.Listen == "" {
		return nil
	}
	ln, err := net.Listen("tcp", p.cfg.Daemon.Listen)
	if err != nil {
		return fmt.Errorf("daemon: listen %s: %w", p.cfg.Daemon.Listen, err)
	}

	p.server = transport.NewServer(p.hub, transport.ServerConfig{
		Token:  p.cfg.Daemon.Token,
		Logger: p.logger,
	})
	mux := http.NewServeMux()
	p.server.Register(mux)
	if p.registry != nil {
		observability.RegisterPeers(p.registry, p.server.Peers)
		if p.cfg.Daemon.Metrics {
			mux.Handle("/metrics", observability.Handler(p.registry))
		}
	}

	p.listener = ln
	p.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := p.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("http server stopped", "error", err)
		}
	}()
	p.logger.Info("serving", "addr", ln.Addr().String())
	return nil
}

// addr returns the bound listen address, or "" when not serving.
func (p *producer) addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// stop halts sampling, disconnects clients and closes every subscription.
func (p *producer) stop() {
	p.sampler.Stop()

	if p.httpSrv != nil {
		p.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := p.httpSrv.Shutdown(ctx); err != nil {
			p.logger.Warn("http shutdown", "error", err)
		}
		cancel()
	}
	p.hub.Close()
	if p.snap != nil {
		p.snap.Close()
	}
	p.removePIDFile()
}

// writePIDFile writes the current process PID to the PID file.
func (p *producer) writePIDFile() error {
	pid := os.Getpid()
	if err := os.WriteFile(p.pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("daemon: write PID file: %w", err)
	}
	p.logger.Info("wrote PID file", "path", p.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file on shutdown.
func (p *producer) removePIDFile() {
	if p.pidFile == "" {
		return
	}
	if err := os.Remove(p.pidFile); err != nil && !os.IsNotExist(err) {
		p.logger.Error("failed to remove PID file", "path", p.pidFile, "error", err)
	}
}

// isRunning checks if another daemon instance owns the cache directory. A
// PID file naming a dead process is stale and is removed.
func (p *producer) isRunning() (bool, int) {
	data, err := os.ReadFile(p.pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid == os.Getpid() {
		os.Remove(p.pidFile)
		return false, 0
	}

	// Signal 0 probes for existence without delivering anything.
	process, err := os.FindProcess(pid)
	if err == nil {
		err = process.Signal(syscall.Signal(0))
	}
	if err != nil {
		p.logger.Warn("stale PID file, removing", "path", p.pidFile, "pid", pid)
		os.Remove(p.pidFile)
		return false, 0
	}
	return true, pid
}

// newRegistry returns a Prometheus registry carrying the Go runtime and
// process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, flags.verbose, os.Stderr)
	defer closeLog()

	store, err := cache.NewStore(cfg.Daemon.CacheDir, logger)
	if err != nil {
		return err
	}

	p, err := newProducer(producerOptions{
		cfg:      cfg,
		logger:   logger,
		reader:   sensorReader(),
		registry: newRegistry(),
		store:    store,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.start(ctx); err != nil {
		return err
	}
	logger.Info("daemon started", "version", version, "addr", p.addr(), "interval", p.sampler.Interval())
	fmt.Fprintf(cmd.ErrOrStderr(), "stat-pulse daemon %s listening on %s\n", version, p.addr())

	<-ctx.Done()
	logger.Info("daemon shutting down")
	p.stop()
	return nil
}
