package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/afreidah/1c-zabbix-monitor/internal/config"
	"github.com/shirou/gopsutil/v3/process"
)

// workerProcessNames are the executable names of 1C worker processes.
var workerProcessNames = []string{"rphost", "rphost.exe"}

// ProcessInfo describes one local OS process.
type ProcessInfo struct {
	PID  int32
	Name string
	RSS  uint64
}

// ProcessLister enumerates local processes whose name is in names.
type ProcessLister interface {
	Processes(ctx context.Context, names []string) ([]ProcessInfo, error)
}

// SystemProcesses lists processes of the local machine.
type SystemProcesses struct{}

// Processes returns matching processes. Processes that exit during the
// walk or deny access are skipped.
func (SystemProcesses) Processes(ctx context.Context, names []string) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var out []ProcessInfo
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !matchesName(name, names) {
			continue
		}
		info := ProcessInfo{PID: p.Pid, Name: name}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.RSS = mem.RSS
		}
		out = append(out, info)
	}
	return out, nil
}

func matchesName(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// ProcessSummary is the json rendering of rphost_procs.
type ProcessSummary struct {
	Count    int    `json:"count"`
	RSSBytes uint64 `json:"rss_bytes"`
}

// ProcessEntry is one discovered worker process.
type ProcessEntry struct {
	PID int32 `json:"{#RPHOST_PID}"`
}

func rphostProcs(ctx context.Context, s *Sources, format string) (any, error) {
	procs, err := s.Processes.Processes(ctx, workerProcessNames)
	if err != nil {
		err = fmt.Errorf("%w: %w", errProcesses, err)
	}

	switch format {
	case config.FormatLLD:
		entries := make([]ProcessEntry, 0, len(procs))
		for _, p := range procs {
			entries = append(entries, ProcessEntry{PID: p.PID})
		}
		return Discovery[ProcessEntry]{Data: entries}, err
	case config.FormatJSON:
		summary := ProcessSummary{Count: len(procs)}
		for _, p := range procs {
			summary.RSSBytes += p.RSS
		}
		return summary, err
	default:
		return len(procs), err
	}
}

func serverUnit(ctx context.Context, s *Sources, _ string) (any, error) {
	unit := s.Config.Server.Unit
	v, err := s.Units.Value(ctx, unit)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errSystemd, unit, err)
	}
	return v, nil
}
