package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoguard/internal/blobstore"
	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

const (
	DeploymentsKey        = "deployments"
	DeploymentLogCapacity = 50
)

// DeploymentLog is the persisted deployment history, newest first.
type DeploymentLog struct {
	mu       sync.Mutex
	blobs    blobstore.KV
	capacity int
	now      func() time.Time
}

func NewDeploymentLog(blobs blobstore.KV) *DeploymentLog {
	return &DeploymentLog{blobs: blobs, capacity: DeploymentLogCapacity, now: time.Now}
}

func (l *DeploymentLog) Start(ctx context.Context, req model.DeploymentRequest) (model.Deployment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.load(ctx)
	if err != nil {
		return model.Deployment{}, err
	}
	d := model.Deployment{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Environment: req.Environment,
		Branch:      req.Branch,
		Commit:      req.Commit,
		Status:      model.DeploymentRunning,
		StartedAt:   l.now().UTC(),
	}
	list = append([]model.Deployment{d}, list...)
	if len(list) > l.capacity {
		list = list[:l.capacity]
	}
	if err := l.save(ctx, list); err != nil {
		return model.Deployment{}, err
	}
	return d, nil
}

func (l *DeploymentLog) Finish(ctx context.Context, id string, status model.DeploymentStatus) (model.Deployment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.load(ctx)
	if err != nil {
		return model.Deployment{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		now := l.now().UTC()
		list[i].Status = status
		list[i].FinishedAt = &now
		list[i].Duration = formatDuration(now.Sub(list[i].StartedAt))
		if err := l.save(ctx, list); err != nil {
			return model.Deployment{}, err
		}
		return list[i], nil
	}
	return model.Deployment{}, fmt.Errorf("deployment %s not found", id)
}

func (l *DeploymentLog) List(ctx context.Context) ([]model.Deployment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *DeploymentLog) load(ctx context.Context) ([]model.Deployment, error) {
	raw, err := l.blobs.Get(ctx, DeploymentsKey)
	if errors.Is(err, errdefs.ErrBlobNotFound) {
		return []model.Deployment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errdefs.ErrStoreUnavailable, DeploymentsKey, err)
	}
	list := []model.Deployment{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errdefs.ErrStoreUnavailable, DeploymentsKey, err)
	}
	return list, nil
}

func (l *DeploymentLog) save(ctx context.Context, list []model.Deployment) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", DeploymentsKey, err)
	}
	if err := l.blobs.Set(ctx, DeploymentsKey, raw); err != nil {
		return fmt.Errorf("%w: write %s: %v", errdefs.ErrStoreUnavailable, DeploymentsKey, err)
	}
	return nil
}

// formatDuration renders "3m 45s" style durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %02ds", m, sec)
}
