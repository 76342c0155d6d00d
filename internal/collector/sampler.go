package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

// Runtime is the read side of the runtime collaborator.
type Runtime interface {
	ListUnits(ctx context.Context, filter model.UnitFilter) ([]model.Unit, error)
	Snapshot(ctx context.Context, unit model.Unit) (model.Snapshot, error)
}

// Sampler pulls one snapshot per unit from the runtime.
type Sampler struct {
	runtime Runtime
	now     func() time.Time
}

func NewSampler(runtime Runtime) *Sampler {
	return &Sampler{runtime: runtime, now: time.Now}
}

// Sample returns errdefs.ErrNotRunning for units that are not running and
// wraps every other runtime failure in errdefs.ErrCollectorUnavailable.
func (s *Sampler) Sample(ctx context.Context, unit model.Unit) (model.Snapshot, error) {
	if !unit.Running {
		return model.Snapshot{}, errdefs.ErrNotRunning
	}
	snap, err := s.runtime.Snapshot(ctx, unit)
	if err != nil {
		if errors.Is(err, errdefs.ErrNotRunning) {
			return model.Snapshot{}, err
		}
		return model.Snapshot{}, fmt.Errorf("%w: sample %s: %v", errdefs.ErrCollectorUnavailable, unit.ID, err)
	}
	if snap.UnitID == "" {
		snap.UnitID = unit.ID
	}
	if snap.UnitName == "" {
		snap.UnitName = unit.Name
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = s.now().UTC()
	}
	return snap, nil
}
