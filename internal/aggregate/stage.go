package aggregate

import (
	"context"

	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

// StageName is the registry key of the aggregation stage.
const StageName = "aggregate"

// Stage adapts an Aggregator to stage.Stage.
type Stage struct {
	a *Aggregator
}

// NewStage wraps a.
func NewStage(a *Aggregator) *Stage { return &Stage{a: a} }

func (s *Stage) Name() string { return StageName }

func (s *Stage) Run(ctx context.Context, runID string) (*stage.Result, error) {
	a := *s.a
	a.log = a.log.With(logging.Stage(StageName), logging.RunID(runID))
	rep, err := a.Run(ctx)
	res := &stage.Result{}
	if rep == nil {
		return res, err
	}
	rep.RunID = runID
	res.Detail = rep
	res.Counters = map[string]int64{
		"input":     int64(rep.Input),
		"unmatched": int64(rep.Unmatched),
		"cohorts":   int64(len(rep.Cohorts)),
		"statuses":  int64(len(rep.Statuses)),
	}
	if err == nil {
		res.Outputs = []string{a.cfg.CohortReport, a.cfg.StatusView}
	}
	return res, err
}
