// Package pipeline wires the configured stages together.
package pipeline

import (
	"log/slog"

	"github.com/Cuervinho/Data-engineering-challenge/internal/aggregate"
	"github.com/Cuervinho/Data-engineering-challenge/internal/clean"
	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/config"
	"github.com/Cuervinho/Data-engineering-challenge/internal/ingest"
	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

// Order is the bronze to gold order used by `run`.
var Order = []string{ingest.StageName, clean.StageName, aggregate.StageName}

// Stages builds the ingest, clean and aggregate stages from cfg.
func Stages(cfg *config.PipelineConfig, clk clock.Clock, sl clock.Sleeper, log *slog.Logger) ([]stage.Stage, error) {
	set, err := rules.CompileAll(cfg.Clean.Rules)
	if err != nil {
		return nil, err
	}
	storage := columnar.Options{Compression: cfg.Storage.Compression}
	p := cfg.Paths

	in := ingest.New(ingest.Config{
		Source:     p.Source,
		BronzeRoot: p.Bronze,
		BatchSize:  cfg.Ingest.BatchSize,
		Sleep:      cfg.Ingest.Sleep(),
		Storage:    storage,
	}, clk, sl, log)
	cl := clean.New(clean.Config{
		BronzeRoot: p.Bronze,
		Silver:     p.Silver,
		Quarantine: p.Quarantine,
		Rules:      set,
		Storage:    storage,
	}, log)
	ag := aggregate.New(aggregate.Config{
		Silver:       p.Silver,
		Regions:      p.Regions,
		CohortReport: p.CohortReport,
		StatusView:   p.StatusView,
		Storage:      storage,
	}, log)

	return []stage.Stage{ingest.NewStage(in), clean.NewStage(cl), aggregate.NewStage(ag)}, nil
}

// NewRegistry registers the stages built from cfg.
func NewRegistry(cfg *config.PipelineConfig, clk clock.Clock, sl clock.Sleeper, log *slog.Logger) (*stage.Registry, error) {
	stages, err := Stages(cfg, clk, sl, log)
	if err != nil {
		return nil, err
	}
	reg := stage.NewRegistry()
	for _, s := range stages {
		reg.Register(s)
	}
	return reg, nil
}

// Rebuild swaps the stages in reg for ones built from cfg. On error reg is
// left untouched.
func Rebuild(reg *stage.Registry, cfg *config.PipelineConfig, clk clock.Clock, sl clock.Sleeper, log *slog.Logger) error {
	stages, err := Stages(cfg, clk, sl, log)
	if err != nil {
		return err
	}
	for _, s := range stages {
		reg.Replace(s)
	}
	return nil
}
