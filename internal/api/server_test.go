package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoguard/internal/errdefs"
	"autoguard/internal/model"
	"autoguard/internal/system"
	"autoguard/internal/telemetry"
)

type fakeUnits struct {
	units []model.Unit
	err   error
}

func (f fakeUnits) ListUnits(context.Context, model.UnitFilter) ([]model.Unit, error) {
	return f.units, f.err
}

type fakeAlerts struct {
	alerts []model.Alert
	err    error
}

func (f fakeAlerts) List(context.Context) ([]model.Alert, error) {
	return f.alerts, f.err
}

type fakeOps struct {
	actionErr  error
	lastAction string
	alerts     map[int64]model.Alert
	deployErr  error
	healed     []int64
}

func (f *fakeOps) ServerAction(_ context.Context, id, action string) error {
	if f.actionErr != nil {
		return f.actionErr
	}
	if action != "start" && action != "stop" && action != "restart" {
		return fmt.Errorf("%w %q", errdefs.ErrInvalidAction, action)
	}
	f.lastAction = action + ":" + id
	return nil
}

func (f *fakeOps) CreateAlert(_ context.Context, d model.AlertDraft) (model.Alert, error) {
	return model.Alert{ID: 1, Severity: d.Severity, Type: d.Type, Message: d.Message, Source: d.Source}, nil
}

func (f *fakeOps) ResolveAlert(_ context.Context, id int64) (model.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return model.Alert{}, fmt.Errorf("%w: %d", errdefs.ErrAlertNotFound, id)
	}
	a.Resolved = true
	return a, nil
}

func (f *fakeOps) AutoHeal(_ context.Context, id int64) error {
	if _, ok := f.alerts[id]; !ok {
		return fmt.Errorf("%w: %d", errdefs.ErrAlertNotFound, id)
	}
	f.healed = append(f.healed, id)
	return nil
}

func (f *fakeOps) Deploy(_ context.Context, req model.DeploymentRequest) (model.Deployment, error) {
	if f.deployErr != nil {
		return model.Deployment{}, f.deployErr
	}
	return model.Deployment{ID: "d-1", Name: req.Name, Status: model.DeploymentRunning}, nil
}

func (f *fakeOps) Deployments(context.Context) ([]model.Deployment, error) {
	return []model.Deployment{{ID: "d-1", Status: model.DeploymentSuccess}}, nil
}

type fakeHost struct{}

func (fakeHost) Read(context.Context) (system.HostSummary, error) {
	return system.HostSummary{Hostname: "hv-1", CPUUsage: 12.5}, nil
}

type staticHealth map[string]any

func (h staticHealth) Snapshot() map[string]any { return h }

func newTestServer(t *testing.T, mutate func(d *Deps)) (*Server, *fakeOps) {
	t.Helper()
	ops := &fakeOps{alerts: map[int64]model.Alert{7: {ID: 7, Type: model.AlertTypeCPUHigh, Source: "web"}}}
	deps := Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Units: fakeUnits{units: []model.Unit{
			{ID: "web", Name: "web", State: "running", Running: true},
			{ID: "db", Name: "db", State: "shutoff"},
		}},
		Alerts:      fakeAlerts{alerts: []model.Alert{{ID: 7, Message: "High CPU usage on web: 91.0%"}}},
		Ops:         ops,
		Subscribers: func() int { return 2 },
		Health:      staticHealth{"libvirt_connected": true},
		Host:        fakeHost{},
	}
	if mutate != nil {
		mutate(&deps)
	}
	s := NewServer(deps)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s, ops
}

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/health", "/api/health"} {
		code, body := do(t, s, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, 2.0, body["connected_clients"])
		assert.Equal(t, "2026-06-01T00:00:00Z", body["timestamp"])
		assert.Equal(t, map[string]any{"libvirt_connected": true}, body["checks"])
	}
}

func TestListServers(t *testing.T) {
	s, _ := newTestServer(t, nil)
	code, body := do(t, s, http.MethodGet, "/api/servers", nil)
	require.Equal(t, http.StatusOK, code)

	servers := body["servers"].([]any)
	require.Len(t, servers, 2)
	first := servers[0].(map[string]any)
	assert.Equal(t, "web", first["id"])
	assert.Equal(t, "running", first["status"])
	assert.NotContains(t, first, "cpu_usage")
}

func TestListServersCollectorDown(t *testing.T) {
	s, _ := newTestServer(t, func(d *Deps) { d.Units = fakeUnits{err: fmt.Errorf("dial unix: no such file")} })
	code, body := do(t, s, http.MethodGet, "/api/servers", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "runtime collector unavailable")
}

func TestServerAction(t *testing.T) {
	s, ops := newTestServer(t, nil)

	code, body := do(t, s, http.MethodPost, "/api/servers/web/action", map[string]string{"action": "stop"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "stop", body["action"])
	assert.Equal(t, "stop:web", ops.lastAction)

	code, _ = do(t, s, http.MethodPost, "/api/servers/web/action", map[string]string{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/servers/web/action", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	ops.actionErr = fmt.Errorf("%w: ghost", errdefs.ErrUnitNotFound)
	code, body = do(t, s, http.MethodPost, "/api/servers/ghost/action", map[string]string{"action": "start"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "server not found")
}

func TestAlerts(t *testing.T) {
	s, ops := newTestServer(t, nil)

	code, body := do(t, s, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["alerts"], 1)

	code, body = do(t, s, http.MethodPost, "/api/alerts", map[string]string{"message": "manual check", "severity": "critical"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "critical", body["alert"].(map[string]any)["severity"])

	code, _ = do(t, s, http.MethodPost, "/api/alerts", map[string]string{"severity": "warning"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, s, http.MethodPost, "/api/alerts/7/resolve", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["alert"].(map[string]any)["resolved"])

	code, _ = do(t, s, http.MethodPost, "/api/alerts/8/resolve", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPost, "/api/alerts/abc/resolve", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, s, http.MethodPost, "/api/alerts/7/auto-heal", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Auto-healing started", body["message"])
	assert.Equal(t, []int64{7}, ops.healed)

	code, _ = do(t, s, http.MethodPost, "/api/alerts/99/auto-heal", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAlertsStoreUnavailable(t *testing.T) {
	s, _ := newTestServer(t, func(d *Deps) {
		d.Alerts = fakeAlerts{err: fmt.Errorf("%w: read alerts: timeout", errdefs.ErrStoreUnavailable)}
	})
	code, body := do(t, s, http.MethodGet, "/api/alerts", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "alert store unavailable")
}

func TestMetricsSummary(t *testing.T) {
	s, _ := newTestServer(t, nil)
	code, body := do(t, s, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["total_servers"])
	assert.Equal(t, 1.0, body["online_servers"])
	assert.Equal(t, "healthy", body["system_health"])
	assert.Equal(t, "hv-1", body["host"].(map[string]any)["hostname"])
}

func TestDeployments(t *testing.T) {
	s, ops := newTestServer(t, nil)

	code, body := do(t, s, http.MethodPost, "/api/deployments", map[string]string{"name": "api", "environment": "prod"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Deployment started", body["message"])
	assert.Equal(t, "running", body["deployment"].(map[string]any)["status"])

	code, body = do(t, s, http.MethodGet, "/api/deployments", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["deployments"], 1)

	ops.deployErr = fmt.Errorf("%w: write deployments", errdefs.ErrStoreUnavailable)
	code, _ = do(t, s, http.MethodPost, "/api/deployments", map[string]string{"name": "api"})
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestPrometheusAndVersionRoutes(t *testing.T) {
	metrics := telemetry.NewMetrics(nil)
	s, _ := newTestServer(t, func(d *Deps) {
		d.Metrics = metrics
		d.Version = func() any { return map[string]string{"version": "0.3.0"} }
	})

	code, body := do(t, s, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.3.0", body["version"])

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_requests_total{endpoint="/api/version",method="GET"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
