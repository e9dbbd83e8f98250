package clean

import (
	"context"

	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

// StageName is the registry key of the cleaning stage.
const StageName = "clean"

// Stage adapts a Cleaner to stage.Stage.
type Stage struct {
	c *Cleaner
}

// NewStage wraps c.
func NewStage(c *Cleaner) *Stage { return &Stage{c: c} }

func (s *Stage) Name() string { return StageName }

func (s *Stage) Run(ctx context.Context, runID string) (*stage.Result, error) {
	c := *s.c
	c.log = c.log.With(logging.Stage(StageName), logging.RunID(runID))
	rep, err := c.Run(ctx)
	res := &stage.Result{}
	if rep == nil {
		return res, err
	}
	rep.RunID = runID
	res.Detail = rep
	if rep.Skipped {
		res.Status = stage.StatusSkipped
		return res, err
	}
	res.Counters = map[string]int64{
		"files":              int64(len(rep.Files)),
		"input":              int64(rep.Input),
		"clean":              int64(rep.Clean),
		"quarantined":        int64(rep.Quarantined),
		"duplicates_dropped": int64(rep.DuplicatesDropped),
	}
	if err == nil {
		res.Outputs = []string{c.cfg.Silver}
		if rep.Quarantined > 0 {
			res.Outputs = append(res.Outputs, c.cfg.Quarantine)
		}
	}
	return res, err
}
