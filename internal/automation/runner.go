package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"autoguard/internal/errdefs"
)

const DefaultBinary = "ansible-playbook"

// waitDelay bounds how long Run waits for output pipes after the process is
// killed on timeout.
const waitDelay = 2 * time.Second

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner invokes `<binary> -i <inventory> <playbook> --extra-vars <json>`.
type Runner struct {
	binary    string
	inventory string
	logger    *slog.Logger
}

func NewRunner(binary, inventory string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{binary: binary, inventory: inventory, logger: logger}
}

// Run executes one playbook. A non-zero exit is reported through
// Result.ExitCode with a nil error; exceeding timeout returns
// errdefs.ErrAutomationTimedOut.
func (r *Runner) Run(ctx context.Context, playbook string, vars map[string]any, timeout time.Duration) (Result, error) {
	extra, err := json.Marshal(vars)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("encode extra vars: %w", err)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.binary, "-i", r.inventory, playbook, "--extra-vars", string(extra))
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("automation run started", "playbook", playbook, "timeout", timeout)
	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		r.logger.Warn("automation run timed out", "playbook", playbook, "timeout", timeout)
		return res, fmt.Errorf("%w: %s after %s", errdefs.ErrAutomationTimedOut, playbook, timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.logger.Warn("automation run failed", "playbook", playbook, "exit_code", res.ExitCode, "duration", res.Duration)
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("run %s: %w", r.binary, runErr)
	}

	r.logger.Info("automation run finished", "playbook", playbook, "duration", res.Duration)
	return res, nil
}
