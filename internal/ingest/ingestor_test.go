package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/layout"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/source"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2024, time.June, 30, 23, 59, 30, 250000000, time.UTC)

// writeSource writes a credit events CSV with n rows. Every 7th row has a
// null customer id so nulls travel through the batches too.
func writeSource(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(strings.Join(record.EventColumns, ","))
	sb.WriteString("\n")
	for i := 0; i < n; i++ {
		customer := fmt.Sprintf("C%d", i%50)
		if i%7 == 0 {
			customer = ""
		}
		fmt.Fprintf(&sb, "L%d,%s,E%d,%d.5,%d,%d,current,R%d,2024-0%d-15 10:00:00\n",
			i, customer, i, 1000+i, 500+i, i%30, i%4, 1+i%9)
	}
	path := filepath.Join(t.TempDir(), "credit_events.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func newIngestor(src, root string, batch int, clk *clock.Fake) *Ingestor {
	return New(Config{
		Source:     src,
		BronzeRoot: root,
		BatchSize:  batch,
		Sleep:      15 * time.Second,
	}, clk, clk, quiet)
}

func TestRun_SplitsIntoBatches(t *testing.T) {
	src := writeSource(t, 2500)
	root := t.TempDir()
	clk := clock.NewFake(t0)

	rep, err := newIngestor(src, root, 1000, clk).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Batches, 3)
	assert.Equal(t, 2500, rep.Rows)

	wantRows := []int{1000, 1000, 500}
	for i, b := range rep.Batches {
		assert.Equal(t, i+1, b.Seq)
		assert.Equal(t, wantRows[i], b.Rows)
		rows, err := columnar.ReadEvents(context.Background(), b.Path)
		require.NoError(t, err)
		assert.Len(t, rows, wantRows[i])
		for _, r := range rows {
			assert.Equal(t, src, r.SourceFile)
		}
	}

	// Two pauses, none after the last batch.
	assert.Equal(t, []time.Duration{15 * time.Second, 15 * time.Second}, clk.Slept())
}

func TestRun_ConcatenationReproducesSource(t *testing.T) {
	for _, tc := range []struct{ rows, batch int }{
		{rows: 10, batch: 3},
		{rows: 9, batch: 3},
		{rows: 1, batch: 1000},
		{rows: 100, batch: 1},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.rows, tc.batch), func(t *testing.T) {
			src := writeSource(t, tc.rows)
			root := t.TempDir()
			clk := clock.NewFake(t0)

			rep, err := newIngestor(src, root, tc.batch, clk).Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, rep.Batches, (tc.rows+tc.batch-1)/tc.batch)

			want, err := source.ReadEvents(src)
			require.NoError(t, err)

			files, err := layout.DiscoverBatches(root)
			require.NoError(t, err)
			require.Len(t, files, len(rep.Batches))

			var got []record.Event
			var prev time.Time
			for i, f := range files {
				assert.Equal(t, rep.Batches[i].Path, f, "listing order must match write order")
				rows, err := columnar.ReadEvents(context.Background(), f)
				require.NoError(t, err)
				for _, r := range rows {
					assert.False(t, r.IngestionTimestamp.Before(prev), "ingestion timestamps must not go backwards")
					prev = r.IngestionTimestamp
					got = append(got, r.Event)
				}
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRun_PartitionsByUTCDate(t *testing.T) {
	// 23:59:30 plus one 15s pause stays on June 30; the third batch, 30s
	// later, lands in July.
	src := writeSource(t, 3)
	root := t.TempDir()
	clk := clock.NewFake(t0)

	rep, err := newIngestor(src, root, 1, clk).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Batches, 3)

	assert.Equal(t, filepath.Join(root, "year=2024", "month=06", "day=30", "batch_235930_250000.parquet"), rep.Batches[0].Path)
	assert.Equal(t, filepath.Join(root, "year=2024", "month=06", "day=30", "batch_235945_250000.parquet"), rep.Batches[1].Path)
	assert.Equal(t, filepath.Join(root, "year=2024", "month=07", "day=01", "batch_000000_250000.parquet"), rep.Batches[2].Path)
	assert.True(t, rep.Batches[2].IngestedAt.Equal(t0.Add(30*time.Second)))
}

func TestRun_SourceMissing(t *testing.T) {
	root := t.TempDir()
	clk := clock.NewFake(t0)
	_, err := newIngestor(filepath.Join(t.TempDir(), "missing.csv"), root, 10, clk).Run(context.Background())
	require.ErrorIs(t, err, ErrSourceNotFound)

	files, err := layout.DiscoverBatches(root)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRun_EmptySource(t *testing.T) {
	src := writeSource(t, 0)
	clk := clock.NewFake(t0)
	rep, err := newIngestor(src, t.TempDir(), 10, clk).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Batches)
	assert.Empty(t, clk.Slept())
}

func TestRun_InvalidBatchSize(t *testing.T) {
	src := writeSource(t, 5)
	_, err := newIngestor(src, t.TempDir(), 0, clock.NewFake(t0)).Run(context.Background())
	assert.Error(t, err)
}

func TestRun_NameCollisionIsAnError(t *testing.T) {
	src := writeSource(t, 4)
	root := t.TempDir()
	clk := clock.NewFake(t0)
	in := New(Config{Source: src, BronzeRoot: root, BatchSize: 2}, clk, clk, quiet)

	// Zero sleep on a frozen clock gives both batches the same name.
	rep, err := in.Run(context.Background())
	require.ErrorIs(t, err, ErrBatchExists)
	require.Len(t, rep.Batches, 1)
}

func TestRun_CancelledBetweenBatches(t *testing.T) {
	src := writeSource(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(t0)
	in := New(Config{Source: src, BronzeRoot: t.TempDir(), BatchSize: 2, Sleep: time.Second},
		clk, cancelOnSleep{cancel: cancel}, quiet)

	rep, err := in.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rep.Batches, 1)
}

// cancelOnSleep cancels the run instead of sleeping.
type cancelOnSleep struct{ cancel context.CancelFunc }

func (c cancelOnSleep) Sleep(ctx context.Context, d time.Duration) error {
	c.cancel()
	return ctx.Err()
}

func TestStage(t *testing.T) {
	src := writeSource(t, 5)
	clk := clock.NewFake(t0)
	s := NewStage(newIngestor(src, t.TempDir(), 2, clk))
	assert.Equal(t, StageName, s.Name())

	res, err := s.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Counters["source_rows"])
	assert.Equal(t, int64(3), res.Counters["batches"])
	assert.Len(t, res.Outputs, 3)
	assert.IsType(t, &Report{}, res.Detail)

	res, err = NewStage(newIngestor(filepath.Join(t.TempDir(), "x.csv"), t.TempDir(), 2, clk)).Run(context.Background(), "run-2")
	require.ErrorIs(t, err, ErrSourceNotFound)
	assert.Equal(t, &stage.Result{}, res)
}

func TestRun_WriteOrderSurvivesDSTFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 01:50 EDT, then 15 minutes later 01:05 EST.
	clk := clock.NewFake(time.Date(2024, 11, 3, 5, 50, 0, 0, time.UTC).In(ny))
	src := writeSource(t, 2)
	root := t.TempDir()

	in := New(Config{Source: src, BronzeRoot: root, BatchSize: 1, Sleep: 15 * time.Minute}, clk, clk, quiet)
	rep, err := in.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Batches, 2)

	files, err := layout.DiscoverBatches(root)
	require.NoError(t, err)
	assert.Equal(t, []string{rep.Batches[0].Path, rep.Batches[1].Path}, files)
}
