package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
)

// Validate checks the config for:
//   - Required paths and a positive batch size
//   - Duplicate or unparsable validity rules, and rules reading unknown columns
//   - Unknown compression, log level or log format
func Validate(cfg *PipelineConfig) error {
	var errs []string

	p := cfg.Paths
	for name, v := range map[string]string{
		"paths.source":        p.Source,
		"paths.regions":       p.Regions,
		"paths.bronze":        p.Bronze,
		"paths.silver":        p.Silver,
		"paths.quarantine":    p.Quarantine,
		"paths.cohort_report": p.CohortReport,
		"paths.status_view":   p.StatusView,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Sprintf("%s is required", name))
		}
	}
	if p.Silver != "" && p.Silver == p.Quarantine {
		errs = append(errs, "paths.silver and paths.quarantine must differ")
	}
	if p.CohortReport != "" && p.CohortReport == p.StatusView {
		errs = append(errs, "paths.cohort_report and paths.status_view must differ")
	}

	if cfg.Ingest.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("ingest.batch_size must be positive, got %d", cfg.Ingest.BatchSize))
	}

	validateRules(cfg.Clean.Rules, &errs)

	if !columnar.ValidCompression(cfg.Storage.Compression) {
		errs = append(errs, fmt.Sprintf("storage.compression: unsupported codec %q", cfg.Storage.Compression))
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: must be text or json, got %q", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		// Map iteration above is unordered.
		sort.Strings(errs)
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateRules(defs []rules.Def, errs *[]string) {
	known := make(map[string]bool)
	for _, c := range record.EventColumns {
		known[c] = true
	}
	known[record.ColIngestionTimestamp] = true
	known[record.ColSourceFile] = true

	ids := make(map[string]int)
	for i, d := range defs {
		loc := fmt.Sprintf("clean.rules[%d]", i)
		if d.ID == "" {
			*errs = append(*errs, fmt.Sprintf("%s: id is required", loc))
		} else if prev, ok := ids[d.ID]; ok {
			*errs = append(*errs, fmt.Sprintf("duplicate rule id %q (first seen at clean.rules[%d], again at %s)", d.ID, prev, loc))
		} else {
			ids[d.ID] = i
		}
		if d.Expression == "" {
			*errs = append(*errs, fmt.Sprintf("%s: expression is required", loc))
			continue
		}
		rl, err := rules.Compile(d.ID, d.Expression)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s: %s", loc, err))
			continue
		}
		for _, f := range rl.Fields() {
			if !known[f] {
				*errs = append(*errs, fmt.Sprintf("%s: unknown column %q", loc, f))
			}
		}
	}
}
