// Package logging installs the process-wide slog logger. Stdout belongs to
// Zabbix, so every log line goes to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level     slog.Level
	Format    string            // "json" (default) | "text"
	Tags      map[string]string // static tags (service=...,version=...,metric=...)
	AddSource bool              // include file:line
	Writer    io.Writer         // default: os.Stderr
}

// Init builds and installs a default slog.Logger with static tags.
func Init(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource})
	}

	attrs := make([]any, 0, len(opts.Tags)*2)
	for k, v := range opts.Tags {
		attrs = append(attrs, k, v)
	}

	logger := slog.New(h).With(attrs...)
	slog.SetDefault(logger)
	return logger
}

// InitFromEnv convenience:
//
//	LOG_LEVEL:  debug|info|warn|error   (default: error)
//	LOG_FORMAT: json|text               (default: json)
//	LOG_TAGS:   "k=v,k2=v2"             (applied to every log)
//	LOG_SOURCE: true|1                  (include file:line)
//
// debug forces the DEBUG level regardless of LOG_LEVEL. A nil w means
// os.Stderr.
func InitFromEnv(w io.Writer, debug bool, extraTags map[string]string) *slog.Logger {
	lvl := ParseLevel(os.Getenv("LOG_LEVEL"))
	if debug {
		lvl = slog.LevelDebug
	}
	format := os.Getenv("LOG_FORMAT")
	addSource := strings.EqualFold(os.Getenv("LOG_SOURCE"), "1") || strings.EqualFold(os.Getenv("LOG_SOURCE"), "true")

	tags := parseTags(os.Getenv("LOG_TAGS"))
	for k, v := range extraTags {
		tags[k] = v
	}

	return Init(Options{
		Level:     lvl,
		Format:    format,
		Tags:      tags,
		AddSource: addSource,
		Writer:    w,
	})
}

// ParseLevel maps a level name to slog.Level, defaulting to ERROR so that a
// healthy poll stays silent.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func parseTags(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
