package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	grpcDrainTimeout   = 3 * time.Second
	healthCheckTimeout = 5 * time.Second
)

func (a *Agent) run(ctx context.Context) error {
	if err := a.conn.Connect(ctx); err != nil {
		return fmt.Errorf("initial libvirt connect: %w", err)
	}
	a.health.SetLibvirtConnected(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		tlsCfg, err := a.cfg.TLSConfig()
		if err != nil {
			return err
		}
		return a.api.Run(gctx, a.cfg.ListenAddr, tlsCfg, a.cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return a.runGRPC(gctx)
	})
	g.Go(func() error {
		return a.runHealthJob(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runGRPC(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPCListenAddr, err)
	}
	a.logger.Info("grpc event stream listening", "addr", a.cfg.GRPCListenAddr)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		drained := make(chan struct{})
		go func() {
			a.grpc.GracefulStop()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(grpcDrainTimeout):
			// Subscribe streams only end with their clients.
			a.grpc.Stop()
		}
	}()

	if err := a.grpc.Serve(ln); err != nil {
		return fmt.Errorf("serve grpc: %w", err)
	}
	<-stopped
	return nil
}

// runHealthJob probes libvirt and the blob store on a cron schedule and
// reconnects libvirt when the probe fails.
func (a *Agent) runHealthJob(ctx context.Context) error {
	c := cron.New()
	schedule := "@every " + a.cfg.HealthInterval.String()
	if _, err := c.AddFunc(schedule, func() { a.checkHealth(ctx) }); err != nil {
		return fmt.Errorf("schedule health job %q: %w", schedule, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (a *Agent) checkHealth(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := a.store.Ping(checkCtx); err != nil {
		a.logger.Warn("blob store health check failed", "error", err)
		a.health.SetStoreConnected(false)
	} else {
		a.health.SetStoreConnected(true)
	}

	if err := a.conn.Healthy(checkCtx); err != nil {
		a.logger.Warn("libvirt health check failed, reconnecting", "error", err)
		a.health.SetLibvirtConnected(false)
		if recErr := a.conn.Reconnect(ctx); recErr != nil {
			a.logger.Error("libvirt reconnect failed", "error", recErr)
			return
		}
		a.logger.Info("libvirt connection recovered")
	}
	a.health.SetLibvirtConnected(true)
	a.logger.Debug("agent health", "snapshot", a.health.Snapshot())
}

func (a *Agent) shutdown() {
	a.actions.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("blob store close failed", "error", err)
	}
	a.health.SetStoreConnected(false)
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("libvirt close failed", "error", err)
	}
	a.health.SetLibvirtConnected(false)
}
