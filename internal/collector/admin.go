package collector

import (
	"context"
	"errors"

	"github.com/afreidah/1c-zabbix-monitor/internal/config"
	"github.com/afreidah/1c-zabbix-monitor/internal/rac"
)

// errUnreachable marks a failed health probe.
var errUnreachable = errors.New("administration server unreachable")

// Discovery is a Zabbix low-level discovery payload.
type Discovery[T any] struct {
	Data []T `json:"data"`
}

func sessions(ctx context.Context, s *Sources, _ string) (any, error) {
	n, err := s.Admin.TotalSessions(ctx)
	return n, err
}

// rphost lists worker processes as discovery data, or counts them.
func rphost(ctx context.Context, s *Sources, format string) (any, error) {
	procs, err := s.Admin.AllWorkerProcesses(ctx)
	if format == config.FormatLLD {
		if procs == nil {
			procs = []rac.WorkerProcess{}
		}
		return Discovery[rac.WorkerProcess]{Data: procs}, err
	}
	return len(procs), err
}

func rasHealth(ctx context.Context, s *Sources, _ string) (any, error) {
	if s.Admin.Reachable(ctx) {
		return 1, nil
	}
	return 0, errUnreachable
}
