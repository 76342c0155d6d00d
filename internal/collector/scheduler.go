package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

const DefaultInterval = 30 * time.Second

type Evaluator interface {
	Evaluate(r model.UtilizationReading) []model.AlertDraft
}

type AlertInserter interface {
	Insert(ctx context.Context, draft model.AlertDraft) (model.Alert, error)
}

type Publisher interface {
	Publish(event model.EventName, payload any)
}

// ReadingObserver receives every cycle's readings, e.g. to export gauges.
type ReadingObserver interface {
	ObserveReadings(readings []model.UtilizationReading)
}

// Scheduler runs the monitor cycle: sample, compute, evaluate, store, publish.
// The previous-snapshot map is owned by whichever goroutine drives the cycle.
type Scheduler struct {
	logger    *slog.Logger
	runtime   Runtime
	sampler   *Sampler
	evaluator Evaluator
	alerts    AlertInserter
	bus       Publisher
	readings  *Readings
	observers []ReadingObserver
	interval  time.Duration
	now       func() time.Time

	prev map[string]model.Snapshot

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(
	logger *slog.Logger,
	runtime Runtime,
	evaluator Evaluator,
	alerts AlertInserter,
	bus Publisher,
	readings *Readings,
	interval time.Duration,
	observers ...ReadingObserver,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if readings == nil {
		readings = NewReadings()
	}
	return &Scheduler{
		logger:    logger,
		runtime:   runtime,
		sampler:   NewSampler(runtime),
		evaluator: evaluator,
		alerts:    alerts,
		bus:       bus,
		readings:  readings,
		observers: observers,
		interval:  interval,
		now:       time.Now,
		prev:      map[string]model.Snapshot{},
	}
}

func (s *Scheduler) Readings() *Readings {
	return s.readings
}

// Run blocks until ctx is done. A cycle in progress is finished before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("initial monitor cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("monitor cycle failed", "error", err)
			}
		}
	}
}

// Start runs the loop on its own goroutine until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
}

// Stop cancels a loop started with Start and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce executes a single cycle. Per-unit failures are logged and skipped;
// only a failed unit listing aborts the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cycleCtx := context.WithoutCancel(ctx)

	units, err := s.runtime.ListUnits(cycleCtx, model.UnitFilter{})
	if err != nil {
		return fmt.Errorf("%w: list units: %v", errdefs.ErrCollectorUnavailable, err)
	}

	seen := make(map[string]struct{}, len(units))
	readings := make([]model.UtilizationReading, 0, len(units))
	for _, u := range units {
		if !u.Running {
			continue
		}
		seen[u.ID] = struct{}{}

		cur, sampleErr := s.sampler.Sample(cycleCtx, u)
		if sampleErr != nil {
			if errors.Is(sampleErr, errdefs.ErrNotRunning) {
				delete(seen, u.ID)
				continue
			}
			s.logger.Warn("sample unit failed, skipping", "unit", u.ID, "error", sampleErr)
			continue
		}

		prev, ok := s.prev[u.ID]
		s.prev[u.ID] = cur
		if !ok {
			continue
		}
		reading := Compute(prev, cur)
		readings = append(readings, reading)
		s.raise(cycleCtx, reading)
	}

	for id := range s.prev {
		if _, ok := seen[id]; !ok {
			delete(s.prev, id)
		}
	}

	summary := Summarize(units, readings, s.now().UTC())
	s.readings.replace(readings, summary)
	for _, o := range s.observers {
		o.ObserveReadings(readings)
	}
	s.bus.Publish(model.EventMetricsUpdate, summary)

	s.logger.Debug("monitor cycle complete",
		"units", len(units),
		"online", summary.OnlineServers,
		"readings", len(readings),
	)
	return nil
}

func (s *Scheduler) raise(ctx context.Context, reading model.UtilizationReading) {
	for _, draft := range s.evaluator.Evaluate(reading) {
		alert, err := s.alerts.Insert(ctx, draft)
		if err != nil {
			s.logger.Error("store alert failed", "unit", reading.UnitID, "type", draft.Type, "error", err)
			continue
		}
		s.bus.Publish(model.EventNewAlert, alert)
	}
}
