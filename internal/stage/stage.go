package stage

import (
	"context"
	"time"
)

// Status is the outcome of a stage run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result holds the outcome of one stage run.
type Result struct {
	RunID      string           `json:"run_id"`
	Stage      string           `json:"stage"`
	Status     Status           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
	Counters   map[string]int64 `json:"counters,omitempty"`
	Outputs    []string         `json:"outputs,omitempty"`
	Error      string           `json:"error,omitempty"`
	// Detail carries the stage's own typed report for callers that want
	// more than the counters.
	Detail interface{} `json:"-"`
}

// Stage is one independently runnable pipeline step.
type Stage interface {
	// Name returns the key the stage is registered under.
	Name() string
	// Run executes the stage once. The returned Result may be partially
	// filled when err is non-nil.
	Run(ctx context.Context, runID string) (*Result, error)
}
