// -----------------------------------------------------------------------
// Technology Log Event Scanner
// -----------------------------------------------------------------------
//
// The scanner answers "how many events of these kinds were logged
// recently" without parsing the technology log format. It looks only at
// files modified within a window, reads a bounded tail of each, and
// classifies a line by its event token.
//
// Line Format (written by the platform, not by us):
//
//	<time>-<duration>,<EventName>,<depth>,key=value,...
//
// The event token is the part of the second comma-separated field after
// its last hyphen.
//
// Files that cannot be read are skipped; they never affect the count of
// other files.
//
// -----------------------------------------------------------------------

package techlog

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
)

const tailChunkSize = 64 << 10

// EventQuery describes one event count.
type EventQuery struct {
	// Targets are event names, compared case-insensitively.
	Targets []string

	// Patterns are globs relative to the log directory.
	Patterns []string

	// MaxAge excludes files modified longer ago.
	MaxAge time.Duration

	// TailLines bounds how many trailing lines of each file are read.
	// Zero or negative reads the whole file.
	TailLines int
}

// Scanner reads technology log files.
type Scanner struct {
	now     func() time.Time
	log     *slog.Logger
	skipLog rate.Sometimes
}

// NewScanner creates a Scanner using the wall clock.
func NewScanner() *Scanner {
	return &Scanner{
		now:     time.Now,
		log:     logger(),
		skipLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// CountEvents counts lines whose event token is one of q.Targets in the
// tails of recently modified files under dir.
func (s *Scanner) CountEvents(dir string, q EventQuery) int {
	targets := make(map[string]struct{}, len(q.Targets))
	for _, t := range q.Targets {
		targets[strings.ToUpper(t)] = struct{}{}
	}

	count := 0
	for _, path := range s.RecentFiles(dir, q.Patterns, q.MaxAge) {
		lines, err := tailLines(path, q.TailLines)
		if err != nil {
			s.skipped(path, err)
			continue
		}
		metrics.TechlogFilesScanned.WithLabelValues("events").Inc()
		count += CountMatching(lines, targets)
	}
	return count
}

// RecentFiles expands patterns under dir and keeps regular files modified
// within maxAge. Each file appears once, in glob order.
func (s *Scanner) RecentFiles(dir string, patterns []string, maxAge time.Duration) []string {
	now := s.now()
	seen := make(map[string]struct{})
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			s.log.Debug("invalid log file pattern", "pattern", pattern, "err", err)
			continue
		}
		for _, path := range matches {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}

			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if now.Sub(info.ModTime()) > maxAge {
				continue
			}
			files = append(files, path)
		}
	}
	return files
}

// CountMatching counts lines whose event token is in targets. Targets must
// be upper case.
func CountMatching(lines []string, targets map[string]struct{}) int {
	n := 0
	for _, line := range lines {
		name, ok := EventName(line)
		if !ok {
			continue
		}
		if _, hit := targets[name]; hit {
			n++
		}
	}
	return n
}

// EventName extracts the upper-cased event token of a log line.
func EventName(line string) (string, bool) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 2 {
		return "", false
	}
	field := fields[1]
	if i := strings.LastIndexByte(field, '-'); i >= 0 {
		field = field[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(field)), true
}

func (s *Scanner) skipped(path string, err error) {
	s.skipLog.Do(func() {
		s.log.Debug("skipping unreadable log file", "path", path, "err", err)
	})
}

// tailLines returns at most n trailing lines of the file, reading it
// backwards in chunks. A trailing newline does not start an extra line.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var buf []byte
	offset := info.Size()
	for offset > 0 {
		size := min(int64(tailChunkSize), offset)
		offset -= size

		part := make([]byte, size)
		if _, err := f.ReadAt(part, offset); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(part, buf...)

		if n > 0 && bytes.Count(bytes.TrimSuffix(buf, []byte("\n")), []byte("\n")) >= n {
			break
		}
	}

	buf = bytes.TrimSuffix(buf, []byte("\n"))
	if len(buf) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(buf), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

func logger() *slog.Logger {
	return slog.Default().With("component", "techlog")
}
