package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"breakwater/internal/config"
	"breakwater/internal/observability/logging"
	"breakwater/internal/observability/slo"
	"breakwater/internal/probe"
	"breakwater/pkg/resilience"
)

func main() {
	logger := initLogger()
	version := getVersion()

	// Load prober configuration (fail-open strategy)
	configMetrics := config.NewMetrics("prober")
	cfg := config.LoadProberFromEnv(logger, configMetrics)
	logger.Info("prober configuration loaded",
		slog.String("cron_schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("sweep_timeout", cfg.SweepTimeout),
		slog.Int("max_concurrent_probes", cfg.MaxConcurrentProbes),
		slog.Int("ops_port", cfg.OpsPort),
		slog.Int("max_breakers", cfg.MaxBreakers))

	targets := loadTargets(logger, cfg)

	resMetrics := resilience.NewPrometheusMetrics()
	manager, err := resilience.NewManager(resilience.ManagerConfig{
		MaxBreakers: cfg.MaxBreakers,
		Metrics:     resMetrics,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create resilience manager", slog.Any("error", err))
		os.Exit(1)
	}

	probeMetrics := probe.NewMetrics()
	probeMetrics.MustRegister()

	prober := probe.New(newProbeClient(), manager, probe.Options{
		MaxConcurrent: cfg.MaxConcurrentProbes,
		RatePerSecond: cfg.ProbeRateLimit,
		RateBurst:     cfg.ProbeRateBurst,
	}, logger, probeMetrics)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startOpsServer(ctx, logger, manager, resMetrics, cfg, version)

	runScheduler(logger, prober, manager, targets, cfg, probeMetrics, version)
}

// initLogger initializes the structured logger and installs it as the
// process default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// loadTargets reads the probe profiles file. A missing PROFILES_PATH is
// allowed: the daemon then only serves the ops surface. A path that
// fails to load is a hard error, because silently probing nothing while
// appearing configured would mask outages.
func loadTargets(logger *slog.Logger, cfg config.ProberConfig) []config.ProbeTarget {
	if cfg.ProfilesPath == "" {
		logger.Warn("PROFILES_PATH not set, starting with no probe targets")
		return nil
	}

	targets, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		logger.Error("failed to load probe profiles",
			slog.String("path", cfg.ProfilesPath),
			slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("probe profiles loaded",
		slog.String("path", cfg.ProfilesPath),
		slog.Int("targets", len(targets)))
	return targets
}

// newProbeClient creates the HTTP client used for outbound probes. The
// client timeout is a last-resort guard; per-attempt deadlines come
// from each target's resilience profile.
func newProbeClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}

// runScheduler starts the cron scheduler, primes target state with an
// immediate sweep, and blocks until a shutdown signal arrives.
func runScheduler(
	logger *slog.Logger,
	prober *probe.Prober,
	manager *resilience.Manager,
	targets []config.ProbeTarget,
	cfg config.ProberConfig,
	metrics *probe.Metrics,
	version string,
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone),
			slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runSweepJob(logger, prober, manager, targets, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}

	// Prime breaker and availability state before the first scheduled
	// sweep.
	if len(targets) > 0 {
		go runSweepJob(logger, prober, manager, targets, cfg, metrics)
	}

	c.Start()
	logger.Info("prober started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("targets", len(targets)),
		slog.String("version", version))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down prober...")

	// Stop scheduling and wait for a running sweep to drain, but not
	// longer than one sweep budget.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.SweepTimeout):
		logger.Warn("running sweep did not finish before shutdown deadline")
	}
	logger.Info("prober stopped")
}

// runSweepJob executes a single sweep with timeout, metrics and SLO
// bookkeeping.
func runSweepJob(
	logger *slog.Logger,
	prober *probe.Prober,
	manager *resilience.Manager,
	targets []config.ProbeTarget,
	cfg config.ProberConfig,
	metrics *probe.Metrics,
) {
	jobLogger := logging.WithFields(logger, map[string]any{"job": "sweep"})

	startTime := time.Now()
	metrics.RecordSweepRun("started")
	jobLogger.Info("sweep started", slog.Int("targets", len(targets)))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	stats, err := prober.Sweep(ctx, targets)
	duration := time.Since(startTime)
	metrics.RecordSweepDuration(duration.Seconds())
	slo.UpdateSweepDuration(duration.Seconds())

	if err != nil {
		jobLogger.Error("sweep failed", slog.Any("error", err))
		metrics.RecordSweepRun("failure")
		return
	}

	metrics.RecordSweepRun("success")
	metrics.RecordSweepSuccess()

	slo.UpdateAvailability(stats.Succeeded, stats.Targets)
	updateBreakerSLO(manager)

	jobLogger.Info("sweep completed",
		slog.Int("targets", stats.Targets),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("rejected", stats.Rejected),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
}

// updateBreakerSLO refreshes the open-breaker ratio gauge from the
// registry snapshot.
func updateBreakerSLO(manager *resilience.Manager) {
	statuses := manager.BreakerStatuses()
	open := 0
	for _, st := range statuses {
		if st.State == resilience.StateOpen {
			open++
		}
	}
	slo.UpdateBreakerOpenRatio(open, len(statuses))
}
