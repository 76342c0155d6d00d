package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autoguard/internal/collector"
	"autoguard/internal/errdefs"
	"autoguard/internal/model"
	"autoguard/internal/system"
)

type actionRequest struct {
	Action string `json:"action" binding:"required"`
}

type alertRequest struct {
	Severity model.Severity `json:"severity"`
	Type     string         `json:"type"`
	Message  string         `json:"message" binding:"required"`
	Source   string         `json:"source"`
}

type metricsResponse struct {
	model.MetricsSummary
	Host *system.HostSummary `json:"host,omitempty"`
}

func (s *Server) health() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":            "healthy",
			"timestamp":         s.now().UTC(),
			"connected_clients": s.deps.Subscribers(),
		}
		if s.deps.Health != nil {
			body["checks"] = s.deps.Health.Snapshot()
		}
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) listServers() gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := s.deps.Units.ListUnits(c.Request.Context(), model.UnitFilter{})
		if err != nil {
			writeError(c, fmt.Errorf("%w: %v", errdefs.ErrCollectorUnavailable, err))
			return
		}
		servers := make([]model.Server, 0, len(units))
		for _, u := range units {
			srv := model.Server{Unit: u}
			if r, ok := s.deps.Readings.Get(u.ID); ok && u.Running {
				cpu, mem := r.CPUPercent, r.MemoryPercent
				srv.CPUUsage = &cpu
				srv.MemoryUsage = &mem
				srv.MemoryLimit = r.MemoryLimitBytes
				srv.NetworkRx = r.NetRxDelta
				srv.NetworkTx = r.NetTxDelta
			}
			servers = append(servers, srv)
		}
		c.JSON(http.StatusOK, gin.H{"servers": servers})
	}
}

func (s *Server) serverAction() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, fmt.Errorf("%w: %v", errdefs.ErrInvalidAction, err))
			return
		}
		if err := s.deps.Ops.ServerAction(c.Request.Context(), c.Param("id"), req.Action); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "action": req.Action})
	}
}

func (s *Server) listAlerts() gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := s.deps.Alerts.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts})
	}
}

func (s *Server) createAlert() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req alertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		alert, err := s.deps.Ops.CreateAlert(c.Request.Context(), model.AlertDraft{
			Severity: req.Severity,
			Type:     req.Type,
			Message:  req.Message,
			Source:   req.Source,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "alert": alert})
	}
}

func (s *Server) resolveAlert() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := alertID(c)
		if !ok {
			return
		}
		alert, err := s.deps.Ops.ResolveAlert(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "alert": alert})
	}
}

func (s *Server) autoHeal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := alertID(c)
		if !ok {
			return
		}
		if err := s.deps.Ops.AutoHeal(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Auto-healing started"})
	}
}

func (s *Server) metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		units, err := s.deps.Units.ListUnits(ctx, model.UnitFilter{})
		if err != nil {
			writeError(c, fmt.Errorf("%w: %v", errdefs.ErrCollectorUnavailable, err))
			return
		}

		resp := metricsResponse{
			MetricsSummary: collector.Summarize(units, s.deps.Readings.All(), s.now().UTC()),
		}
		if s.deps.Host != nil {
			host, hostErr := s.deps.Host.Read(ctx)
			if hostErr != nil {
				s.logger.Warn("host summary unavailable", "error", hostErr)
			} else {
				resp.Host = &host
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) listDeployments() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.deps.Ops.Deployments(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deployments": list})
	}
}

func (s *Server) createDeployment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.DeploymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := s.deps.Ops.Deploy(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Deployment started", "deployment": d})
	}
}

// alertID parses the :id path segment. A malformed id cannot name an alert,
// so it is answered like an unknown one.
func alertID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %q", errdefs.ErrAlertNotFound, c.Param("id")))
		return 0, false
	}
	return id, true
}
