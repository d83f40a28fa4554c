package collector

import (
	"context"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/techlog"
)

const (
	eventWindow     = 300 * time.Second
	errorWindow     = 2 * time.Hour
	maxErrorFiles   = 10
	keptErrors      = 5
	missingLogsText = "log path not found (check logcfg.xml location or logs.zabbix_excps.path)"
)

// Log sections and the descriptor keyword locating each of them.
var logKeywords = map[string]string{
	"calls":        "calls",
	"locks":        "locks",
	"sql":          "Query1c",
	"zabbix_excps": "excps",
}

var (
	callsQuery = techlog.EventQuery{
		Targets:   []string{"CALL"},
		Patterns:  []string{"rphost_*/*.log"},
		MaxAge:    eventWindow,
		TailLines: 200,
	}
	locksQuery = techlog.EventQuery{
		Targets:   []string{"TLOCK", "TTIMEOUT", "TDEADLOCK"},
		Patterns:  []string{"rphost_*/*.log"},
		MaxAge:    eventWindow,
		TailLines: 100,
	}
	sqlQuery = techlog.EventQuery{
		Targets:   []string{"SDBL", "DBMSSQL"},
		Patterns:  []string{"*.log", "rphost_*/*.log"},
		MaxAge:    eventWindow,
		TailLines: 200,
	}
	errorsQuery = techlog.ErrorQuery{
		MaxAge:   errorWindow,
		MaxFiles: maxErrorFiles,
		Keep:     keptErrors,
	}
)

// LogErrors is the error-log summary.
type LogErrors struct {
	Error            string                `json:"error,omitempty"`
	Count            int                   `json:"count"`
	ErrorsLast2Hours int                   `json:"errors_last_2_hours"`
	LastError        *techlog.ErrorRecord  `json:"last_error"`
	RecentErrors     []techlog.ErrorRecord `json:"recent_errors,omitempty"`
}

// logDir finds the directory of one log section: the descriptor location
// first, then logs.<section>.path.
func (s *Sources) logDir(section string) (string, error) {
	lc := s.Config.Log(section)
	keyword := lc.Keyword
	if keyword == "" {
		keyword = logKeywords[section]
	}
	return s.Locator.Dir(keyword, lc.Path)
}

func (s *Sources) countEvents(section string, q techlog.EventQuery) (any, error) {
	dir, err := s.logDir(section)
	if err != nil {
		return 0, err
	}
	return s.Scanner.CountEvents(dir, q), nil
}

func calls(_ context.Context, s *Sources, _ string) (any, error) {
	return s.countEvents("calls", callsQuery)
}

func locks(_ context.Context, s *Sources, _ string) (any, error) {
	return s.countEvents("locks", locksQuery)
}

func slowSQL(_ context.Context, s *Sources, _ string) (any, error) {
	return s.countEvents("sql", sqlQuery)
}

func logErrors(_ context.Context, s *Sources, _ string) (any, error) {
	dir, err := s.logDir("zabbix_excps")
	if err != nil {
		return LogErrors{Error: missingLogsText}, err
	}

	scan := s.Scanner.ScanErrors(dir, errorsQuery)
	result := LogErrors{
		Count:            scan.Count,
		ErrorsLast2Hours: scan.Count,
	}
	if len(scan.Records) > 0 {
		last := scan.Records[0]
		result.LastError = &last
		result.RecentErrors = scan.Records
	}
	return result, nil
}
