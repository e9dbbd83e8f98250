package stage

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/metrics"
)

var (
	// ErrUnknownStage is returned for names missing from the registry.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrBusy is returned by TryRun while another run holds the runner.
	ErrBusy = errors.New("a stage run is already in progress")
)

// Runner executes registered stages one at a time and remembers the last
// result of each.
type Runner struct {
	registry *Registry
	clock    clock.Clock
	log      *slog.Logger
	newID    func() string

	runMu sync.Mutex

	mu   sync.RWMutex
	last map[string]*Result
}

// NewRunner creates a Runner over reg.
func NewRunner(reg *Registry, clk clock.Clock, log *slog.Logger) *Runner {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		registry: reg,
		clock:    clk,
		log:      log,
		newID:    func() string { return uuid.New().String() },
		last:     make(map[string]*Result),
	}
}

// Registry returns the registry the runner draws stages from.
func (r *Runner) Registry() *Registry { return r.registry }

// Run executes the named stage, waiting for any run in progress to finish.
// The stage's error is returned unchanged; the Result is always non-nil for
// a registered stage.
func (r *Runner) Run(ctx context.Context, name string) (*Result, error) {
	s, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.execute(ctx, s)
}

// TryRun is Run without waiting: it fails with ErrBusy if a run is active.
func (r *Runner) TryRun(ctx context.Context, name string) (*Result, error) {
	s, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if !r.runMu.TryLock() {
		return nil, ErrBusy
	}
	defer r.runMu.Unlock()
	return r.execute(ctx, s)
}

// Sequence runs names in order and stops at the first failure.
func (r *Runner) Sequence(ctx context.Context, names ...string) ([]*Result, error) {
	results := make([]*Result, 0, len(names))
	for _, name := range names {
		res, err := r.Run(ctx, name)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Last returns a copy of the most recent result per stage.
func (r *Runner) Last() map[string]*Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Result, len(r.last))
	for k, v := range r.last {
		out[k] = v
	}
	return out
}

func (r *Runner) execute(ctx context.Context, s Stage) (*Result, error) {
	name := s.Name()
	runID := r.newID()
	start := r.clock.Now()
	log := r.log.With(logging.Stage(name), logging.RunID(runID))
	log.Info("stage started")

	res, err := s.Run(ctx, runID)
	if res == nil {
		res = &Result{}
	}
	res.RunID = runID
	res.Stage = name
	res.StartedAt = start
	elapsed := r.clock.Now().Sub(start)
	res.DurationMs = elapsed.Milliseconds()

	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		log.Error("stage failed", logging.Duration(res.DurationMs), logging.Err(err))
	case res.Status == StatusSkipped:
		log.Warn("stage skipped", logging.Duration(res.DurationMs))
	default:
		res.Status = StatusSucceeded
		log.Info("stage finished", logging.Duration(res.DurationMs), slog.Any("counters", res.Counters))
	}

	metrics.StageRuns.WithLabelValues(name, string(res.Status)).Inc()
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if res.Status != StatusFailed {
		metrics.LastSuccess.WithLabelValues(name).Set(float64(r.clock.Now().Unix()))
	}

	r.mu.Lock()
	r.last[name] = res
	r.mu.Unlock()
	return res, err
}
