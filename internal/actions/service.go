package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"autoguard/internal/automation"
	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

const (
	DefaultAutoHealTimeout = 120 * time.Second
	DefaultDeployTimeout   = 300 * time.Second
)

const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

type UnitController interface {
	StartUnit(ctx context.Context, id string) error
	StopUnit(ctx context.Context, id string) error
	RestartUnit(ctx context.Context, id string) error
}

type AlertStore interface {
	Insert(ctx context.Context, draft model.AlertDraft) (model.Alert, error)
	Get(ctx context.Context, id int64) (model.Alert, error)
	Resolve(ctx context.Context, id int64) (model.Alert, error)
	MarkAutoHealed(ctx context.Context, id int64) (model.Alert, error)
}

type Automation interface {
	Run(ctx context.Context, playbook string, vars map[string]any, timeout time.Duration) (automation.Result, error)
}

type Publisher interface {
	Publish(event model.EventName, payload any)
}

type Config struct {
	AutoHealPlaybook string
	DeployPlaybook   string
	AutoHealTimeout  time.Duration
	DeployTimeout    time.Duration
}

// Service owns the on-demand operations. Auto-heal and deploy return as soon
// as the run is scheduled; their outcome is only visible on the bus.
type Service struct {
	cfg         Config
	logger      *slog.Logger
	units       UnitController
	alerts      AlertStore
	runner      Automation
	bus         Publisher
	deployments *DeploymentLog
	now         func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(
	cfg Config,
	logger *slog.Logger,
	units UnitController,
	alerts AlertStore,
	runner Automation,
	bus Publisher,
	deployments *DeploymentLog,
) *Service {
	if cfg.AutoHealTimeout <= 0 {
		cfg.AutoHealTimeout = DefaultAutoHealTimeout
	}
	if cfg.DeployTimeout <= 0 {
		cfg.DeployTimeout = DefaultDeployTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:         cfg,
		logger:      logger,
		units:       units,
		alerts:      alerts,
		runner:      runner,
		bus:         bus,
		deployments: deployments,
		now:         time.Now,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

func (s *Service) ServerAction(ctx context.Context, id, action string) error {
	action = strings.ToLower(strings.TrimSpace(action))
	var err error
	switch action {
	case ActionStart:
		err = s.units.StartUnit(ctx, id)
	case ActionStop:
		err = s.units.StopUnit(ctx, id)
	case ActionRestart:
		err = s.units.RestartUnit(ctx, id)
	default:
		return fmt.Errorf("%w %q", errdefs.ErrInvalidAction, action)
	}
	if err != nil {
		return err
	}

	s.logger.Info("server action applied", "server", id, "action", action)
	s.bus.Publish(model.EventServerAction, model.ServerAction{
		ServerID:  id,
		Action:    action,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func (s *Service) CreateAlert(ctx context.Context, draft model.AlertDraft) (model.Alert, error) {
	if draft.Severity == "" {
		draft.Severity = model.SeverityWarning
	}
	if draft.Type == "" {
		draft.Type = "manual"
	}
	alert, err := s.alerts.Insert(ctx, draft)
	if err != nil {
		return model.Alert{}, err
	}
	s.bus.Publish(model.EventNewAlert, alert)
	return alert, nil
}

func (s *Service) ResolveAlert(ctx context.Context, id int64) (model.Alert, error) {
	alert, err := s.alerts.Resolve(ctx, id)
	if err != nil {
		return model.Alert{}, err
	}
	s.bus.Publish(model.EventAlertResolved, model.AlertResolved{
		AlertID:    alert.ID,
		AutoHealed: alert.AutoHealed,
		Timestamp:  s.now().UTC(),
	})
	return alert, nil
}

// AutoHeal validates the alert and schedules the auto-heal playbook.
func (s *Service) AutoHeal(ctx context.Context, id int64) error {
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		return err
	}
	vars := map[string]any{
		"alert_id":   alert.ID,
		"alert_type": orUnknown(alert.Type),
		"server":     orUnknown(alert.Source),
	}
	s.spawn(func(ctx context.Context) {
		s.runAutoHeal(ctx, alert.ID, vars)
	})
	return nil
}

func (s *Service) runAutoHeal(ctx context.Context, id int64, vars map[string]any) {
	res, err := s.runner.Run(ctx, s.cfg.AutoHealPlaybook, vars, s.cfg.AutoHealTimeout)
	switch {
	case errors.Is(err, errdefs.ErrAutomationTimedOut):
		s.autoHealFailed(id, "Auto-healing timed out", "")
		return
	case err != nil:
		s.autoHealFailed(id, "Auto-healing failed", err.Error())
		return
	case res.ExitCode != 0:
		s.autoHealFailed(id, "Auto-healing failed", res.Stderr)
		return
	}

	alert, err := s.alerts.MarkAutoHealed(ctx, id)
	if err != nil {
		s.logger.Error("mark alert auto-healed failed", "alert_id", id, "error", err)
		s.autoHealFailed(id, "Auto-healing finished but the alert could not be updated", err.Error())
		return
	}
	s.bus.Publish(model.EventAlertResolved, model.AlertResolved{
		AlertID:    alert.ID,
		AutoHealed: true,
		Timestamp:  s.now().UTC(),
	})
	s.bus.Publish(model.EventAutoHealComplete, model.AutoHealResult{
		AlertID: id,
		Status:  model.StatusSuccess,
		Message: "Auto-healing completed successfully",
	})
}

func (s *Service) autoHealFailed(id int64, msg, detail string) {
	s.logger.Warn("auto-heal failed", "alert_id", id, "reason", msg)
	s.bus.Publish(model.EventAutoHealComplete, model.AutoHealResult{
		AlertID: id,
		Status:  model.StatusFailed,
		Message: msg,
		Error:   detail,
	})
}

// Deploy records a running deployment and schedules the deploy playbook.
// deployment_complete is published whatever the outcome.
func (s *Service) Deploy(ctx context.Context, req model.DeploymentRequest) (model.Deployment, error) {
	d, err := s.deployments.Start(ctx, req)
	if err != nil {
		return model.Deployment{}, err
	}
	vars := req.ExtraVars()
	s.spawn(func(ctx context.Context) {
		s.runDeploy(ctx, d, vars)
	})
	return d, nil
}

func (s *Service) runDeploy(ctx context.Context, d model.Deployment, vars map[string]any) {
	res, err := s.runner.Run(ctx, s.cfg.DeployPlaybook, vars, s.cfg.DeployTimeout)

	result := model.DeploymentResult{
		DeploymentID: d.ID,
		Status:       model.StatusSuccess,
		Output:       res.Stdout,
		Error:        res.Stderr,
	}
	switch {
	case errors.Is(err, errdefs.ErrAutomationTimedOut):
		result.Status = model.StatusFailed
		result.Error = "Deployment timed out"
	case err != nil:
		result.Status = model.StatusFailed
		result.Error = err.Error()
	case res.ExitCode != 0:
		result.Status = model.StatusFailed
	}

	status := model.DeploymentSuccess
	if result.Status == model.StatusFailed {
		status = model.DeploymentFailed
	}
	if _, finErr := s.deployments.Finish(ctx, d.ID, status); finErr != nil {
		s.logger.Error("record deployment result failed", "deployment_id", d.ID, "error", finErr)
	}

	result.Timestamp = s.now().UTC()
	s.logger.Info("deployment finished", "deployment_id", d.ID, "status", result.Status)
	s.bus.Publish(model.EventDeploymentComplete, result)
}

func (s *Service) Deployments(ctx context.Context) ([]model.Deployment, error) {
	return s.deployments.List(ctx)
}

// Wait blocks until every scheduled automation run has reported.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight automation runs and waits for them to report.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.baseCtx)
	}()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
