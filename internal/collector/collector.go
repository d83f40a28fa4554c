// -----------------------------------------------------------------------
// Metric Collection
// -----------------------------------------------------------------------
//
// Package collector maps metric names to the functions that resolve them.
// Every resolver degrades to the metric's zero value when a dependency is
// unavailable and reports why through the returned error; the value is
// still meant to be printed, because "down" is what Zabbix is measuring.
//
// -----------------------------------------------------------------------

package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/config"
	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
	"github.com/afreidah/1c-zabbix-monitor/internal/rac"
	"github.com/afreidah/1c-zabbix-monitor/internal/techlog"
)

// ErrUnknownMetric is returned by Collect for names outside the registry.
var ErrUnknownMetric = errors.New("unknown metric")

var (
	errSystemd   = errors.New("systemd query failed")
	errProcesses = errors.New("process enumeration failed")
)

// -----------------------------------------------------------------------
// Dependencies
// -----------------------------------------------------------------------

// Admin is the part of the administration client the resolvers use.
type Admin interface {
	TotalSessions(ctx context.Context) (int, error)
	AllWorkerProcesses(ctx context.Context) ([]rac.WorkerProcess, error)
	Reachable(ctx context.Context) bool
}

// UnitChecker reports whether a systemd unit is active.
type UnitChecker interface {
	Value(ctx context.Context, unit string) (int, error)
}

// Sources bundles everything a resolver may consult.
type Sources struct {
	Config    *config.Config
	Admin     Admin
	Locator   *techlog.Locator
	Scanner   *techlog.Scanner
	Units     UnitChecker
	Processes ProcessLister
}

// -----------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------

type resolver func(ctx context.Context, s *Sources, format string) (any, error)

var registry = map[string]resolver{
	"sessions":     sessions,
	"rphost":       rphost,
	"ras_health":   rasHealth,
	"log_errors":   logErrors,
	"locks":        locks,
	"calls":        calls,
	"slow_sql":     slowSQL,
	"sql_queries":  slowSQL,
	"server_unit":  serverUnit,
	"rphost_procs": rphostProcs,
}

// Names returns the registered metric names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Known reports whether metric is registered.
func Known(metric string) bool {
	_, ok := registry[metric]
	return ok
}

// Collect resolves metric in format. A non-nil error other than
// ErrUnknownMetric accompanies a degraded but printable value.
func (s *Sources) Collect(ctx context.Context, metric, format string) (any, error) {
	resolve, ok := registry[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	start := time.Now()
	value, err := resolve(ctx, s, format)
	metrics.CollectDuration.WithLabelValues(metric).Set(time.Since(start).Seconds())

	if err != nil {
		r := reason(err)
		metrics.CollectorDegraded.WithLabelValues(metric, r).Inc()
		slog.Debug("metric degraded", "metric", metric, "reason", r, "err", err)
	}
	return value, err
}

// reason labels a degradation cause.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, techlog.ErrDirNotFound),
		errors.Is(err, techlog.ErrDescriptorNotFound),
		errors.Is(err, techlog.ErrLocationNotFound):
		return techlog.Reason(err)
	case errors.Is(err, errSystemd):
		return "dbus_error"
	case errors.Is(err, errProcesses):
		return "process_enum"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return rac.Reason(err)
	}
}
