// Package logging wires up the process-wide structured logger both
// cmd/audiocored and cmd/scan install at startup, grounded on
// arung-agamani-denpa-radio's main.go setup (the only pack example
// that configures slog explicitly rather than relying on its default
// handler).
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/kallax-audio/audiocore/internal/config"
)

// Init installs the process's default slog.Logger per the LOG_FORMAT
// ("json" | "text", default "text") and LOG_LEVEL ("debug" | "info" |
// "warn" | "error", default "info") environment variables, matching
// the Env-driven config style internal/config already uses.
func Init() {
	level := parseLevel(config.Env("LOG_LEVEL", "info"))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(config.Env("LOG_FORMAT", "text"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
