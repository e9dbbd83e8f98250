package config

import (
	"time"

	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
)

// PipelineConfig is the top-level YAML structure.
type PipelineConfig struct {
	Version string      `yaml:"version"`
	Paths   Paths       `yaml:"paths"`
	Ingest  IngestConf  `yaml:"ingest"`
	Clean   CleanConf   `yaml:"clean"`
	Storage StorageConf `yaml:"storage"`
	Logging LoggingConf `yaml:"logging"`
	Metrics MetricsConf `yaml:"metrics"`
	Server  ServerConf  `yaml:"server"`
}

// Paths is the shared on-disk contract between the stages.
type Paths struct {
	Source       string `yaml:"source"`
	Regions      string `yaml:"regions"`
	Bronze       string `yaml:"bronze"`
	Silver       string `yaml:"silver"`
	Quarantine   string `yaml:"quarantine"`
	CohortReport string `yaml:"cohort_report"`
	StatusView   string `yaml:"status_view"`
}

// IngestConf controls micro-batching.
type IngestConf struct {
	BatchSize int `yaml:"batch_size"`
	// SleepMs is the pause between batches; a negative value disables it.
	SleepMs int `yaml:"sleep_ms"`
}

// Sleep returns the inter-batch delay.
func (c IngestConf) Sleep() time.Duration {
	if c.SleepMs < 0 {
		return 0
	}
	return time.Duration(c.SleepMs) * time.Millisecond
}

// CleanConf holds the validity rules.
type CleanConf struct {
	Rules []rules.Def `yaml:"rules"`
}

// StorageConf controls parquet encoding.
type StorageConf struct {
	Compression string `yaml:"compression"`
}

// LoggingConf selects the slog handler.
type LoggingConf struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConf configures metric export for one-shot runs.
type MetricsConf struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// ServerConf configures `pipeline serve`.
type ServerConf struct {
	Addr string `yaml:"addr"`
}
