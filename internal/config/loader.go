package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Cuervinho/Data-engineering-challenge/internal/rules"
)

// ErrNoConfigFile is returned by Watch when the loader runs on defaults.
var ErrNoConfigFile = errors.New("no config file to watch")

// Loader reads a YAML config file and watches it for changes. A Loader with
// an empty path serves the built-in defaults.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *PipelineConfig
	onChange []func(*PipelineConfig)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the file backing the loader, or "" for defaults.
func (l *Loader) Path() string { return l.path }

// Config returns the current configuration.
func (l *Loader) Config() *PipelineConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload.
func (l *Loader) OnChange(fn func(*PipelineConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the config when the file changes. The directory is
// watched rather than the file so editors that replace the file on save are
// picked up. Invalid configs are logged and ignored. Call the returned stop
// function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, ErrNoConfigFile
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	target := filepath.Clean(l.path)
	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload skipped", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload re-reads and validates the config file. On success the new config
// becomes current and the OnChange callbacks run; on failure the old config
// stays in place.
func (l *Loader) Reload() (*PipelineConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*PipelineConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*PipelineConfig, error) {
	var cfg PipelineConfig
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration. The paths and batching
// constants match the layout the pipeline has always used.
func Default() *PipelineConfig {
	var cfg PipelineConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *PipelineConfig) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	p := &cfg.Paths
	setDefault(&p.Source, "source_data/credit_events.csv")
	setDefault(&p.Regions, "source_data/region_reference.csv")
	setDefault(&p.Bronze, "data/bronze")
	setDefault(&p.Silver, "data/silver/clean_events.parquet")
	setDefault(&p.Quarantine, "data/quarantine/invalid_events.parquet")
	setDefault(&p.CohortReport, "data/gold/cohort_report.parquet")
	setDefault(&p.StatusView, "data/gold/status_view.parquet")

	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 1000
	}
	if cfg.Ingest.SleepMs == 0 {
		cfg.Ingest.SleepMs = 15000
	}
	if len(cfg.Clean.Rules) == 0 {
		cfg.Clean.Rules = append([]rules.Def(nil), rules.Defaults...)
	}
	setDefault(&cfg.Storage.Compression, "snappy")
	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "text")
	setDefault(&cfg.Metrics.Job, "credit_pipeline")
	setDefault(&cfg.Server.Addr, ":8080")
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}
