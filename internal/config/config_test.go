package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.Ingest.Sleep())
	assert.Equal(t, "source_data/credit_events.csv", cfg.Paths.Source)
	assert.Equal(t, "data/bronze", cfg.Paths.Bronze)
	assert.Equal(t, rules.Defaults, cfg.Clean.Rules)
	assert.Equal(t, "snappy", cfg.Storage.Compression)
	require.NoError(t, Validate(cfg))
}

func TestNewLoader_EmptyPathUsesDefaults(t *testing.T) {
	l, err := NewLoader("")
	require.NoError(t, err)
	assert.Equal(t, Default(), l.Config())

	_, err = l.Watch()
	assert.ErrorIs(t, err, ErrNoConfigFile)
}

func TestNewLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "2"
paths:
  source: in/events.csv
ingest:
  batch_size: 250
  sleep_ms: -1
clean:
  rules:
    - id: has_event
      expression: event_id IS NOT NULL
storage:
  compression: zstd
logging:
  format: json
`)
	l, err := NewLoader(path)
	require.NoError(t, err)
	cfg := l.Config()
	assert.Equal(t, "2", cfg.Version)
	assert.Equal(t, "in/events.csv", cfg.Paths.Source)
	assert.Equal(t, "data/bronze", cfg.Paths.Bronze)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.Ingest.Sleep())
	assert.Equal(t, []rules.Def{{ID: "has_event", Expression: "event_id IS NOT NULL"}}, cfg.Clean.Rules)
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestNewLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewLoader_BadYAML(t *testing.T) {
	_, err := NewLoader(writeConfig(t, "ingest: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr string
	}{
		{"negative batch", func(c *PipelineConfig) { c.Ingest.BatchSize = -3 }, "ingest.batch_size must be positive"},
		{"same silver and quarantine", func(c *PipelineConfig) { c.Paths.Quarantine = c.Paths.Silver }, "must differ"},
		{"blank path", func(c *PipelineConfig) { c.Paths.Regions = " " }, "paths.regions is required"},
		{"duplicate rule", func(c *PipelineConfig) {
			c.Clean.Rules = []rules.Def{{ID: "a", Expression: "loan_id IS NOT NULL"}, {ID: "a", Expression: "customer_id IS NOT NULL"}}
		}, `duplicate rule id "a"`},
		{"bad expression", func(c *PipelineConfig) {
			c.Clean.Rules = []rules.Def{{ID: "a", Expression: "loan_id IS"}}
		}, "clean.rules[0]"},
		{"unknown column", func(c *PipelineConfig) {
			c.Clean.Rules = []rules.Def{{ID: "a", Expression: "amount > 0"}}
		}, `unknown column "amount"`},
		{"missing rule id", func(c *PipelineConfig) {
			c.Clean.Rules = []rules.Def{{Expression: "loan_id IS NOT NULL"}}
		}, "id is required"},
		{"compression", func(c *PipelineConfig) { c.Storage.Compression = "lzma" }, "storage.compression"},
		{"log level", func(c *PipelineConfig) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *PipelineConfig) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReload_KeepsOldConfigOnError(t *testing.T) {
	path := writeConfig(t, "ingest:\n  batch_size: 10\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	var seen []int
	l.OnChange(func(c *PipelineConfig) { seen = append(seen, c.Ingest.BatchSize) })

	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  batch_size: 20\n"), 0o644))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Ingest.BatchSize)

	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  batch_size: -1\n"), 0o644))
	_, err = l.Reload()
	require.Error(t, err)
	assert.Equal(t, 20, l.Config().Ingest.BatchSize)
	assert.Equal(t, []int{20}, seen)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "ingest:\n  batch_size: 10\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	changed := make(chan int, 16)
	l.OnChange(func(c *PipelineConfig) {
		select {
		case changed <- c.Ingest.BatchSize:
		default:
		}
	})

	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  batch_size: 42\n"), 0o644))
	// A write can surface as several events, the first of which may see a
	// truncated file; wait for the final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-changed:
			if n == 42 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
