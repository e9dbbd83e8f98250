package ingest

import (
	"context"

	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

// StageName is the registry key of the ingestion stage.
const StageName = "ingest"

// Stage adapts an Ingestor to stage.Stage.
type Stage struct {
	in *Ingestor
}

// NewStage wraps in.
func NewStage(in *Ingestor) *Stage { return &Stage{in: in} }

func (s *Stage) Name() string { return StageName }

func (s *Stage) Run(ctx context.Context, runID string) (*stage.Result, error) {
	in := *s.in
	in.log = in.log.With(logging.Stage(StageName), logging.RunID(runID))
	rep, err := in.Run(ctx)
	res := &stage.Result{}
	if rep != nil {
		rep.RunID = runID
		res.Detail = rep
		res.Counters = map[string]int64{
			"source_rows": int64(rep.Rows),
			"batches":     int64(len(rep.Batches)),
		}
		for _, b := range rep.Batches {
			res.Outputs = append(res.Outputs, b.Path)
		}
	}
	return res, err
}
