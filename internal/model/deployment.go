package model

import "time"

type DeploymentStatus string

const (
	DeploymentRunning DeploymentStatus = "running"
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentFailed  DeploymentStatus = "failed"
)

type DeploymentRequest struct {
	Name        string         `json:"name"`
	Environment string         `json:"environment"`
	Branch      string         `json:"branch"`
	Commit      string         `json:"commit"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// ExtraVars flattens the request into the variables handed to the playbook.
func (r DeploymentRequest) ExtraVars() map[string]any {
	out := make(map[string]any, len(r.Variables)+4)
	for k, v := range r.Variables {
		out[k] = v
	}
	if r.Name != "" {
		out["name"] = r.Name
	}
	if r.Environment != "" {
		out["environment"] = r.Environment
	}
	if r.Branch != "" {
		out["branch"] = r.Branch
	}
	if r.Commit != "" {
		out["commit"] = r.Commit
	}
	return out
}

type Deployment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Environment string           `json:"environment"`
	Branch      string           `json:"branch"`
	Commit      string           `json:"commit"`
	Status      DeploymentStatus `json:"status"`
	StartedAt   time.Time        `json:"timestamp"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Duration    string           `json:"duration,omitempty"`
}
