// Package logging configures slog for the pipeline binaries and provides
// attribute helpers so every stage logs the same field names.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Common field names.
const (
	FieldStage    = "stage"
	FieldRunID    = "run_id"
	FieldPath     = "path"
	FieldRows     = "rows"
	FieldDuration = "duration_ms"
	FieldError    = "err"
)

// New builds a logger writing to w. level is debug, info, warn or error;
// format is text or json. Unknown values fall back to info and text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func Stage(name string) slog.Attr { return slog.String(FieldStage, name) }

func RunID(id string) slog.Attr { return slog.String(FieldRunID, id) }

func Path(p string) slog.Attr { return slog.String(FieldPath, p) }

func Rows(n int) slog.Attr { return slog.Int(FieldRows, n) }

func Duration(ms int64) slog.Attr { return slog.Int64(FieldDuration, ms) }

func Err(err error) slog.Attr { return slog.String(FieldError, err.Error()) }
