// spdm-responderd is a device-attestation SPDM responder daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/spdm-io/spdm-responder/internal/config"
	spdmmetrics "github.com/spdm-io/spdm-responder/internal/metrics"
	"github.com/spdm-io/spdm-responder/internal/notify"
	"github.com/spdm-io/spdm-responder/internal/provision"
	"github.com/spdm-io/spdm-responder/internal/server"
	"github.com/spdm-io/spdm-responder/internal/spdm"
	"github.com/spdm-io/spdm-responder/internal/transport"
	appversion "github.com/spdm-io/spdm-responder/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// maxRequestSize is the size of the per-connection output buffer Dispatch
// writes each response into; matches msgbuf.Large, the biggest transcript
// buffer the responder core allocates. Incoming frames are bounded by
// transport.MaxFrameSize, not by this value.
const maxRequestSize = 69632

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("spdm-responderd starting",
		slog.String("version", appversion.Version),
		slog.String("transport_addr", cfg.Transport.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("admin_addr", cfg.Admin.Addr),
	)

	manifest, err := provision.Load(cfg.Responder.ManifestPath)
	if err != nil {
		logger.Error("failed to load provisioning manifest",
			slog.String("path", cfg.Responder.ManifestPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	sctx, err := newResponderContext(cfg, manifest)
	if err != nil {
		logger.Error("failed to initialize responder context",
			slog.String("error", err.Error()),
		)
		return 1
	}
	guard := &contextGuard{ctx: sctx}

	reg := prometheus.NewRegistry()
	collector := spdmmetrics.NewCollector(reg)

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.New(cfg.Notify.URL, logger, notify.DefaultDampeningConfig())
	}

	if err := runServers(cfg, guard, collector, notifier, reg, logger, *configPath, logLevel, manifest); err != nil {
		logger.Error("spdm-responderd exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("spdm-responderd stopped")
	return 0
}

// newResponderContext builds a fresh spdm.Context and applies the
// provisioning manifest's slots and measurements to it.
func newResponderContext(cfg *config.Config, manifest *provision.Manifest) (*spdm.Context, error) {
	ctx, err := spdm.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new responder context: %w", err)
	}

	ctx.Negotiated.LocalFlags = localCapabilityFlags(cfg.Responder)
	ctx.Negotiated.CTExponent = cfg.Responder.CTExponent

	identity := func(b []byte) []byte { return b } // placeholder hash until a HashProvider is wired
	if err := manifest.Apply(ctx, identity); err != nil {
		return nil, fmt.Errorf("apply provisioning manifest: %w", err)
	}

	return ctx, nil
}

// localCapabilityFlags maps the configuration's per-capability toggles onto
// the responder's advertised CapabilityFlags bitmask.
func localCapabilityFlags(rc config.ResponderConfig) spdm.CapabilityFlags {
	var flags spdm.CapabilityFlags
	flags |= spdm.CapCertCap
	if rc.HeartbeatCapable {
		flags |= spdm.CapHBeatCap
	}
	if rc.KeyExchangeCapable {
		flags |= spdm.CapKeyExCap
	}
	if rc.PSKCapable {
		flags |= spdm.CapPSKCap
	}
	if rc.ChunkCapable {
		flags |= spdm.CapChunkCap
	}
	return flags
}

// contextGuard synchronizes reads of the responder Context between the
// connection-dispatch goroutine and the read-only admin API with an
// internal mutex.
type contextGuard struct {
	mu  sync.Mutex
	ctx *spdm.Context
}

// Current implements server.ContextProvider.
func (g *contextGuard) Current() *spdm.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctx
}

func (g *contextGuard) withLock(fn func(ctx *spdm.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.ctx)
}

// runServers sets up and runs the transport listener, admin API, and
// metrics HTTP servers using an errgroup with signal-aware context for
// graceful shutdown.
func runServers(
	cfg *config.Config,
	guard *contextGuard,
	collector *spdmmetrics.Collector,
	notifier *notify.Notifier,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	manifest *provision.Manifest,
) error {
	ln, err := transport.Listen(cfg.Transport.Network, cfg.Transport.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s/%s: %w", cfg.Transport.Network, cfg.Transport.Addr, err)
	}
	defer ln.Close()

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	adminSrv := newAdminServer(cfg.Admin, guard, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return acceptLoop(gCtx, ln, guard, collector, notifier, logger)
	})

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, logger)

	g.Go(func() error {
		return watchSIGHUP(gCtx, configPath, logLevel, logger)
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, ln, logger, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// acceptLoop accepts framed connections and serves each on its own
// goroutine until ctx is cancelled.
func acceptLoop(
	ctx context.Context,
	ln *transport.Listener,
	guard *contextGuard,
	collector *spdmmetrics.Collector,
	notifier *notify.Notifier,
	logger *slog.Logger,
) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		go serveConn(ctx, conn, guard, collector, notifier, logger)
	}
}

// serveConn reads framed SPDM requests off conn and dispatches them
// against the shared responder Context until the peer disconnects or ctx
// is cancelled.
func serveConn(
	ctx context.Context,
	conn *transport.Conn,
	guard *contextGuard,
	collector *spdmmetrics.Collector,
	notifier *notify.Notifier,
	logger *slog.Logger,
) {
	defer conn.Close()

	out := make([]byte, maxRequestSize)

	for {
		req, err := conn.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug("connection closed", slog.String("error", err.Error()))
			}
			return
		}

		var (
			n      int
			status spdm.Status
		)
		start := time.Now()
		prevState := ""
		guard.withLock(func(sctx *spdm.Context) {
			prevState = sctx.ConnectionState.String()
			n, status = spdm.Dispatch(sctx, req, out)
		})
		conn.Release(req)

		code := "unknown"
		if len(req) > 0 {
			code = fmt.Sprintf("0x%02x", req[0])
		}
		collector.ObserveDispatchDuration(code, time.Since(start).Seconds())
		collector.RecordRequest(code, status.String())

		guard.withLock(func(sctx *spdm.Context) {
			collector.SetConnectionState(sctx.ConnectionState.String())
			established := 0
			for _, s := range sctx.Sessions() {
				if s.State == spdm.SessionStateEstablished {
					established++
				}
			}
			collector.Sessions.Set(float64(established))

			if notifier != nil && sctx.ConnectionState.String() != prevState {
				_ = notifier.Notify(ctx, notify.Event{
					Kind:   "state_change",
					Detail: sctx.ConnectionState.String(),
					Time:   time.Now(),
				})
			}
		})

		if status != spdm.StatusSuccess {
			logger.Warn("dispatch rejected request",
				slog.String("status", status.String()),
			)
			return
		}

		if n > 0 {
			if err := conn.Send(ctx, out[:n]); err != nil {
				logger.Debug("failed to send response", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// startHTTPServers registers the admin API and metrics HTTP server
// goroutines.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	adminSrv *http.Server,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin API listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

// startDaemonGoroutines registers the systemd watchdog goroutine.
func startDaemonGoroutines(ctx context.Context, g *errgroup.Group, logger *slog.Logger) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level only; provisioning is immutable after startup
// -------------------------------------------------------------------------

func watchSIGHUP(ctx context.Context, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) error {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	defer signal.Stop(sigHUP)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading log level")
			reloadLogLevel(configPath, logLevel, logger)
		}
	}
}

func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(
	ctx context.Context,
	ln *transport.Listener,
	logger *slog.Logger,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	if err := ln.Close(); err != nil {
		logger.Warn("failed to close transport listener", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newAdminServer(cfg config.AdminConfig, guard *contextGuard, logger *slog.Logger) *http.Server {
	handler := server.New(guard, logger)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
