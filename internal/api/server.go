package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoguard/internal/collector"
	"autoguard/internal/model"
	"autoguard/internal/system"
	"autoguard/internal/telemetry"
)

type UnitLister interface {
	ListUnits(ctx context.Context, filter model.UnitFilter) ([]model.Unit, error)
}

type AlertLister interface {
	List(ctx context.Context) ([]model.Alert, error)
}

type Operations interface {
	ServerAction(ctx context.Context, id, action string) error
	CreateAlert(ctx context.Context, draft model.AlertDraft) (model.Alert, error)
	ResolveAlert(ctx context.Context, id int64) (model.Alert, error)
	AutoHeal(ctx context.Context, id int64) error
	Deploy(ctx context.Context, req model.DeploymentRequest) (model.Deployment, error)
	Deployments(ctx context.Context) ([]model.Deployment, error)
}

type HostReader interface {
	Read(ctx context.Context) (system.HostSummary, error)
}

type HealthReporter interface {
	Snapshot() map[string]any
}

// Deps wires the handlers. Host, Health, WebSocket, Metrics and Version are
// optional.
type Deps struct {
	Logger      *slog.Logger
	Units       UnitLister
	Alerts      AlertLister
	Ops         Operations
	Readings    *collector.Readings
	Subscribers func() int
	Host        HostReader
	Health      HealthReporter
	WebSocket   http.Handler
	Metrics     *telemetry.Metrics
	Version     func() any
}

type Server struct {
	*gin.Engine
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), requestLogger(deps.Logger))
	if deps.Metrics != nil {
		e.Use(instrument(deps.Metrics))
	}
	if deps.Readings == nil {
		deps.Readings = collector.NewReadings()
	}
	if deps.Subscribers == nil {
		deps.Subscribers = func() int { return 0 }
	}
	s := &Server{Engine: e, deps: deps, logger: deps.Logger, now: time.Now}
	s.initRoute()
	return s
}

func (s *Server) initRoute() {
	s.GET("/health", s.health())
	s.GET("/api/health", s.health())

	api := s.Group("/api")
	api.GET("/servers", s.listServers())
	api.POST("/servers/:id/action", s.serverAction())
	api.GET("/alerts", s.listAlerts())
	api.POST("/alerts", s.createAlert())
	api.POST("/alerts/:id/resolve", s.resolveAlert())
	api.POST("/alerts/:id/auto-heal", s.autoHeal())
	api.GET("/metrics", s.metrics())
	api.GET("/deployments", s.listDeployments())
	api.POST("/deployments", s.createDeployment())
	if s.deps.Version != nil {
		api.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, s.deps.Version()) })
	}

	if s.deps.Metrics != nil {
		s.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	if s.deps.WebSocket != nil {
		s.GET("/ws", gin.WrapH(s.deps.WebSocket))
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, tlsCfg *tls.Config, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http api %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http api shutdown failed", "error", err)
	}
	return <-errCh
}
