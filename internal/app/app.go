// Package app is the composition root of the monitoring agent.
//
// One invocation loads configuration, serves the requested metric from the
// file cache when a fresh entry exists, otherwise resolves it through the
// collector and caches the encoded result, prints exactly one value to
// stdout and exits. Logs go to stderr so Zabbix only ever sees the value.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/cache"
	"github.com/afreidah/1c-zabbix-monitor/internal/checker"
	"github.com/afreidah/1c-zabbix-monitor/internal/collector"
	"github.com/afreidah/1c-zabbix-monitor/internal/config"
	"github.com/afreidah/1c-zabbix-monitor/internal/logging"
	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
	"github.com/afreidah/1c-zabbix-monitor/internal/rac"
	"github.com/afreidah/1c-zabbix-monitor/internal/techlog"
	"github.com/afreidah/1c-zabbix-monitor/internal/version"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitUnknownMetric = 1
	ExitUsage         = 2
)

const serviceName = "1c-monitor"

// logOutput receives all log records. Tests replace it.
var logOutput io.Writer = os.Stderr

// newSources builds the collector dependencies for cfg. Tests replace it.
var newSources = DefaultSources

// Run executes one invocation with args (without the program name) and
// writes the metric value to stdout. It returns the process exit code.
func Run(ctx context.Context, args []string, stdout io.Writer) int {
	// config.Load logs before the flags are parsed into cfg
	logging.InitFromEnv(logOutput, debugRequested(args), map[string]string{
		"service": serviceName,
		"version": version.Version,
	})

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		slog.Error("configuration error", "err", err)
		return ExitUsage
	}

	if cfg.Version {
		fmt.Fprintf(stdout, "%s %s\n", serviceName, version.String())
		return ExitOK
	}

	// Re-initialize logging with the debug flag and the metric as static context
	logging.InitFromEnv(logOutput, cfg.Debug, map[string]string{
		"service": serviceName,
		"version": version.Version,
		"metric":  cfg.Metric,
		"run":     uuid.NewString(),
	})
	loga := slog.Default().With("component", "app")

	if cfg.Telemetry.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Telemetry.Textfile); err != nil {
				loga.Error("failed to write telemetry textfile", "path", cfg.Telemetry.Textfile, "err", err)
			}
		}()
	}

	if !collector.Known(cfg.Metric) {
		loga.Error("unknown metric", "known", collector.Names())
		fmt.Fprintln(stdout, "0")
		return ExitUnknownMetric
	}

	var fc *cache.FileCache
	key := cache.Key(cfg.Metric, cfg.Format)
	if !cfg.NoCache {
		fc = cache.New(time.Duration(cfg.Cache.TTL) * time.Second)
		if cached, ok := fc.Get(key); ok {
			loga.Debug("serving cached value", "key", key)
			fmt.Fprintln(stdout, string(cached))
			return ExitOK
		}
	}

	// degradation is logged and counted by the collector
	value, _ := newSources(cfg).Collect(ctx, cfg.Metric, cfg.Format)

	out, err := encode(value)
	if err != nil {
		loga.Error("cannot encode metric value", "err", err)
		fmt.Fprintln(stdout, "0")
		return ExitOK
	}

	if fc != nil {
		// failures are logged by the cache
		_ = fc.Set(key, json.RawMessage(out))
	}

	fmt.Fprintln(stdout, string(out))
	return ExitOK
}

// debugRequested reports whether args enable --debug.
func debugRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if name != "--debug" {
			continue
		}
		if !hasValue {
			return true
		}
		on, err := strconv.ParseBool(value)
		return err == nil && on
	}
	return false
}

// encode renders value as compact JSON. Scalars come out as bare numbers,
// which is also the plain format.
func encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DefaultSources wires the real administration client, technology log
// readers, systemd checker and process table.
func DefaultSources(cfg *config.Config) *collector.Sources {
	exe := rac.NewExecutableLocator(cfg.RAS.Path, cfg.RAS.PreferredVersion).Find()

	var creds *rac.Credentials
	if cfg.RAS.User != "" || cfg.RAS.Password != "" {
		creds = &rac.Credentials{User: cfg.RAS.User, Password: cfg.RAS.Password}
	}

	endpoint := rac.Endpoint{Host: cfg.RAS.Host, Port: uint16(cfg.RAS.Port)}
	slog.Debug("administration client", "executable", exe, "endpoint", endpoint.String())

	return &collector.Sources{
		Config:    cfg,
		Admin:     rac.New(exe, endpoint, creds),
		Locator:   techlog.NewLocator(),
		Scanner:   techlog.NewScanner(),
		Units:     checker.New(nil),
		Processes: collector.SystemProcesses{},
	}
}
