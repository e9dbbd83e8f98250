// Package ingest lands the credit events source table in the bronze layer as
// a sequence of micro-batch parquet files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/layout"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/metrics"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/source"
)

var (
	// ErrSourceNotFound means the source table does not exist. Nothing is
	// written when it is returned.
	ErrSourceNotFound = errors.New("source table not found")
	// ErrBatchExists means a batch file name collided with an existing file.
	ErrBatchExists = columnar.ErrExists
)

// Config drives one ingestion run.
type Config struct {
	Source     string
	BronzeRoot string
	BatchSize  int
	Sleep      time.Duration
	Storage    columnar.Options
}

// Batch describes one written micro-batch.
type Batch struct {
	Seq        int       `json:"seq"`
	Path       string    `json:"path"`
	Rows       int       `json:"rows"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Report summarises an ingestion run.
type Report struct {
	RunID   string  `json:"run_id,omitempty"`
	Source  string  `json:"source"`
	Rows    int     `json:"rows"`
	Batches []Batch `json:"batches"`
}

// Ingestor slices the source table into micro-batches.
type Ingestor struct {
	cfg     Config
	clock   clock.Clock
	sleeper clock.Sleeper
	log     *slog.Logger
}

// New creates an Ingestor. clk stamps batches and names partitions; sl
// paces them.
func New(cfg Config, clk clock.Clock, sl clock.Sleeper, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{cfg: cfg, clock: clk, sleeper: sl, log: log}
}

// Run reads the source once and writes ceil(rows/batch size) files, pausing
// between them. Concatenating the files in write order yields the source
// rows in their original order. The returned Report covers every batch
// written, also when err is non-nil.
func (in *Ingestor) Run(ctx context.Context) (*Report, error) {
	if in.cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", in.cfg.BatchSize)
	}

	events, err := source.ReadEvents(in.cfg.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, in.cfg.Source)
		}
		return nil, fmt.Errorf("read source: %w", err)
	}

	total := len(events)
	rep := &Report{Source: in.cfg.Source, Rows: total}
	in.log.Info("ingestion started", logging.Path(in.cfg.Source), logging.Rows(total), slog.Int("batch_size", in.cfg.BatchSize))

	for start, seq := 0, 1; start < total; seq++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		end := start + in.cfg.BatchSize
		if end > total {
			end = total
		}

		b, err := in.writeBatch(seq, events[start:end])
		if err != nil {
			return rep, err
		}
		rep.Batches = append(rep.Batches, b)
		in.log.Info("batch written",
			slog.Int("batch", seq),
			logging.Path(b.Path),
			logging.Rows(b.Rows),
			slog.String("progress", fmt.Sprintf("%d/%d", end, total)),
		)

		start = end
		if start < total {
			if err := in.sleeper.Sleep(ctx, in.cfg.Sleep); err != nil {
				return rep, err
			}
		}
	}

	in.log.Info("ingestion finished", logging.Rows(total), slog.Int("batches", len(rep.Batches)))
	return rep, nil
}

func (in *Ingestor) writeBatch(seq int, events []record.Event) (Batch, error) {
	now := in.clock.Now().UTC()
	rows := make([]record.Ingested, len(events))
	for i := range events {
		rows[i] = record.Ingested{
			Event:              events[i],
			IngestionTimestamp: now,
			SourceFile:         in.cfg.Source,
		}
	}

	path := layout.BatchPath(in.cfg.BronzeRoot, now)
	if err := columnar.CreateEvents(path, rows, in.cfg.Storage); err != nil {
		return Batch{}, fmt.Errorf("write batch %d: %w", seq, err)
	}
	metrics.BatchesWritten.Inc()
	metrics.RowsIngested.Add(float64(len(rows)))
	return Batch{Seq: seq, Path: path, Rows: len(rows), IngestedAt: now}, nil
}
