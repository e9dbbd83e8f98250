// Package clean turns the bronze micro-batches into the silver dataset: it
// validates every record, quarantines the failures and drops event id
// duplicates from the rest.
package clean

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/layout"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/metrics"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
)

// Config drives one cleaning run.
type Config struct {
	BronzeRoot string
	Silver     string
	Quarantine string
	Rules      rules.Set
	Storage    columnar.Options
}

// Report summarises a cleaning run. Input always equals
// Clean + Quarantined + DuplicatesDropped.
type Report struct {
	RunID             string         `json:"run_id,omitempty"`
	Files             []string       `json:"files"`
	Input             int            `json:"input"`
	Clean             int            `json:"clean"`
	Quarantined       int            `json:"quarantined"`
	DuplicatesDropped int            `json:"duplicates_dropped"`
	RuleFailures      map[string]int `json:"rule_failures,omitempty"`
	Skipped           bool           `json:"skipped,omitempty"`
}

// Cleaner validates and deduplicates bronze records.
type Cleaner struct {
	cfg Config
	log *slog.Logger
}

// New creates a Cleaner.
func New(cfg Config, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	return &Cleaner{cfg: cfg, log: log}
}

// Run reads every bronze file in path order and rewrites the silver and
// quarantine outputs from scratch. With no bronze files it writes nothing
// and reports Skipped.
func (c *Cleaner) Run(ctx context.Context) (*Report, error) {
	files, err := layout.DiscoverBatches(c.cfg.BronzeRoot)
	if err != nil {
		return nil, fmt.Errorf("discover bronze files: %w", err)
	}
	rep := &Report{Files: files}
	if len(files) == 0 {
		c.log.Warn("no bronze files found, nothing to clean", logging.Path(c.cfg.BronzeRoot))
		rep.Skipped = true
		return rep, nil
	}

	var all []record.Ingested
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rows, err := columnar.ReadEvents(ctx, f)
		if err != nil {
			return rep, err
		}
		c.log.Debug("bronze file loaded", logging.Path(f), logging.Rows(len(rows)))
		all = append(all, rows...)
	}
	rep.Input = len(all)

	valid, invalid, failures, err := Partition(c.cfg.Rules, all)
	if err != nil {
		return rep, err
	}
	clean := Dedupe(valid)

	rep.Clean = len(clean)
	rep.Quarantined = len(invalid)
	rep.DuplicatesDropped = len(valid) - len(clean)
	rep.RuleFailures = failures

	if err := columnar.WriteEvents(c.cfg.Silver, clean, c.cfg.Storage); err != nil {
		return rep, fmt.Errorf("write clean dataset: %w", err)
	}
	if len(invalid) > 0 {
		if err := columnar.WriteEvents(c.cfg.Quarantine, invalid, c.cfg.Storage); err != nil {
			return rep, fmt.Errorf("write quarantine: %w", err)
		}
	} else if err := os.Remove(c.cfg.Quarantine); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return rep, fmt.Errorf("remove stale quarantine: %w", err)
	}

	metrics.RecordsClean.Add(float64(rep.Clean))
	metrics.RecordsQuarantined.Add(float64(rep.Quarantined))
	metrics.DuplicatesDropped.Add(float64(rep.DuplicatesDropped))
	for id, n := range failures {
		metrics.RuleFailures.WithLabelValues(id).Add(float64(n))
	}

	c.log.Info("cleaning finished",
		slog.Int("files", len(files)),
		slog.Int("input", rep.Input),
		slog.Int("clean", rep.Clean),
		slog.Int("quarantined", rep.Quarantined),
		slog.Int("duplicates_dropped", rep.DuplicatesDropped),
	)
	for _, id := range sortedKeys(failures) {
		c.log.Info("rule failures", slog.String("rule", id), slog.Int("count", failures[id]))
	}
	return rep, nil
}

// Partition splits rows into those satisfying every rule and those failing
// at least one, keeping input order in both. failures counts rows per failed
// rule id; a row failing two rules counts once for each.
func Partition(set rules.Set, rows []record.Ingested) (valid, invalid []record.Ingested, failures map[string]int, err error) {
	failures = make(map[string]int)
	for i := range rows {
		failed, err := set.Check(&rows[i])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
		if len(failed) == 0 {
			valid = append(valid, rows[i])
			continue
		}
		invalid = append(invalid, rows[i])
		for _, id := range failed {
			failures[id]++
		}
	}
	return valid, invalid, failures, nil
}

// dedupKey groups rows by event id. All null ids share one key.
type dedupKey struct {
	id   string
	null bool
}

func keyOf(r *record.Ingested) dedupKey {
	if r.EventID == nil {
		return dedupKey{null: true}
	}
	return dedupKey{id: *r.EventID}
}

// Dedupe keeps the last row of each event id group. Survivors keep their
// relative order.
func Dedupe(rows []record.Ingested) []record.Ingested {
	last := make(map[dedupKey]int, len(rows))
	for i := range rows {
		last[keyOf(&rows[i])] = i
	}
	out := make([]record.Ingested, 0, len(last))
	for i := range rows {
		if last[keyOf(&rows[i])] == i {
			out = append(out, rows[i])
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
