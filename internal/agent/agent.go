package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"autoguard/internal/actions"
	"autoguard/internal/agent/version"
	"autoguard/internal/alerting"
	"autoguard/internal/api"
	"autoguard/internal/automation"
	"autoguard/internal/blobstore"
	"autoguard/internal/collector"
	"autoguard/internal/config"
	"autoguard/internal/errdefs"
	"autoguard/internal/libvirt"
	"autoguard/internal/model"
	"autoguard/internal/stream"
	"autoguard/internal/system"
	"autoguard/internal/telemetry"
)

const storeOpenTimeout = 10 * time.Second

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	conn      *libvirt.Conn
	store     blobstore.Store
	scheduler *collector.Scheduler
	actions   *actions.Service
	api       *api.Server
	grpc      *grpc.Server
	health    *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	openCtx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()
	store, err := blobstore.Open(openCtx, blobstore.Options{
		Backend:    blobstore.Backend(cfg.StoreBackend),
		RedisURL:   cfg.RedisURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	health := NewHealthStatus()
	health.SetStoreConnected(true)

	bus := stream.NewBus(logger)
	metrics := telemetry.NewMetrics(bus.Subscribers)
	alerts := &observedAlerts{
		store:   alerting.NewStore(store, cfg.AlertCapacity),
		metrics: metrics,
		health:  health,
	}

	conn := libvirt.NewConn(cfg.LibvirtURI, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
	runtime := libvirt.NewRuntime(conn, logger)
	evaluator := alerting.NewEvaluator(alerting.Thresholds{
		CPUWarning:     cfg.CPUWarning,
		CPUCritical:    cfg.CPUCritical,
		MemoryWarning:  cfg.MemoryWarning,
		MemoryCritical: cfg.MemoryCritical,
	})
	readings := collector.NewReadings()
	scheduler := collector.NewScheduler(
		logger,
		runtime,
		evaluator,
		alerts,
		bus,
		readings,
		cfg.MonitorInterval,
		metrics,
		health,
	)

	ops := actions.NewService(
		actions.Config{
			AutoHealPlaybook: cfg.AutoHealPlaybook,
			DeployPlaybook:   cfg.DeployPlaybook,
			AutoHealTimeout:  cfg.AutoHealTimeout,
			DeployTimeout:    cfg.DeployTimeout,
		},
		logger,
		runtime,
		alerts,
		automation.NewRunner(cfg.AnsibleBinary, cfg.AnsibleInventory, logger),
		bus,
		actions.NewDeploymentLog(store),
	)

	ws := stream.NewWebSocketHandler(bus, stream.WebSocketOptions{
		OriginPatterns: cfg.AllowedOrigins,
		WriteTimeout:   cfg.WSWriteTimeout,
		PingInterval:   cfg.WSPingInterval,
		Buffer:         cfg.SubscriberBuffer,
	}, logger)

	var grpcOpts []grpc.ServerOption
	if tlsCfg != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	grpcServer := grpc.NewServer(grpcOpts...)
	stream.NewEventService(bus, cfg.SubscriberBuffer, logger).Register(grpcServer)

	server := api.NewServer(api.Deps{
		Logger:      logger,
		Units:       runtime,
		Alerts:      alerts,
		Ops:         ops,
		Readings:    readings,
		Subscribers: bus.Subscribers,
		Host:        system.NewReader(cfg.HostDiskPath),
		Health:      health,
		WebSocket:   ws,
		Metrics:     metrics,
		Version:     func() any { return version.Get(cfg, nil) },
	})

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		conn:      conn,
		store:     store,
		scheduler: scheduler,
		actions:   ops,
		api:       server,
		grpc:      grpcServer,
		health:    health,
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting autoguard",
		"node_id", a.cfg.NodeID,
		"libvirt_uri", a.cfg.LibvirtURI,
		"store", a.cfg.StoreBackend,
		"version", a.cfg.AgentVersion,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("autoguard stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

// observedAlerts records store reachability and alert counters around the
// alert store.
type observedAlerts struct {
	store   *alerting.Store
	metrics *telemetry.Metrics
	health  *HealthStatus
}

func (o *observedAlerts) Insert(ctx context.Context, draft model.AlertDraft) (model.Alert, error) {
	alert, err := o.store.Insert(ctx, draft)
	if o.observe(err) {
		return model.Alert{}, err
	}
	o.metrics.ObserveAlert(alert)
	o.health.MarkAlert(alert.CreatedAt)
	return alert, nil
}

func (o *observedAlerts) List(ctx context.Context) ([]model.Alert, error) {
	alerts, err := o.store.List(ctx)
	o.observe(err)
	return alerts, err
}

func (o *observedAlerts) Get(ctx context.Context, id int64) (model.Alert, error) {
	alert, err := o.store.Get(ctx, id)
	o.observe(err)
	return alert, err
}

func (o *observedAlerts) Resolve(ctx context.Context, id int64) (model.Alert, error) {
	alert, err := o.store.Resolve(ctx, id)
	o.observe(err)
	return alert, err
}

func (o *observedAlerts) MarkAutoHealed(ctx context.Context, id int64) (model.Alert, error) {
	alert, err := o.store.MarkAutoHealed(ctx, id)
	o.observe(err)
	return alert, err
}

// observe reports whether err is non-nil. Not-found answers still prove the
// store is reachable.
func (o *observedAlerts) observe(err error) bool {
	switch {
	case err == nil:
		o.health.SetStoreConnected(true)
	case errors.Is(err, errdefs.ErrStoreUnavailable):
		o.health.SetStoreConnected(false)
	}
	return err != nil
}
