package techlog

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
)

var errorLinePattern = regexp.MustCompile(`(?i)(EXCP|ERROR|FATAL|EXCPCNTX)`)

const utf8BOM = "\uFEFF"

// ErrorQuery describes an error-log scan.
type ErrorQuery struct {
	// MaxAge excludes files modified longer ago.
	MaxAge time.Duration

	// MaxFiles bounds how many of the newest files are read in full.
	MaxFiles int

	// Keep bounds how many records are retained.
	Keep int
}

// ErrorRecord is one matched error line.
type ErrorRecord struct {
	File      string    `json:"file"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"-"`
}

// ErrorScan is the result of ScanErrors. Records are newest first.
type ErrorScan struct {
	Count   int
	Records []ErrorRecord
}

// ScanErrors walks dir recursively, reads the newest .log files modified
// within q.MaxAge and collects lines mentioning an error-level token.
//
// Records are ordered by file modification time, newest first; lines of
// the same file keep their order in the file.
func (s *Scanner) ScanErrors(dir string, q ErrorQuery) ErrorScan {
	files := s.recentLogFiles(dir, q.MaxAge)
	if q.MaxFiles > 0 && len(files) > q.MaxFiles {
		files = files[:q.MaxFiles]
	}

	var result ErrorScan
	for _, f := range files {
		matches, err := matchErrorLines(f.path)
		if err != nil {
			s.skipped(f.path, err)
			continue
		}
		metrics.TechlogFilesScanned.WithLabelValues("errors").Inc()

		result.Count += len(matches)
		name := filepath.Base(f.path)
		for _, m := range matches {
			if q.Keep > 0 && len(result.Records) >= q.Keep {
				break
			}
			result.Records = append(result.Records, ErrorRecord{
				File:      name,
				Message:   m,
				Timestamp: f.modTime,
			})
		}
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].Timestamp.After(result.Records[j].Timestamp)
	})
	return result
}

type logFile struct {
	path    string
	modTime time.Time
}

// recentLogFiles returns .log files under dir modified within maxAge,
// newest first.
func (s *Scanner) recentLogFiles(dir string, maxAge time.Duration) []logFile {
	now := s.now()
	var files []logFile

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".log") {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		if now.Sub(info.ModTime()) > maxAge {
			return nil
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
		return nil
	})

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return files
}

// matchErrorLines returns the cleaned text of every matching line. The
// leading byte-order mark and invalid UTF-8 sequences are dropped.
func matchErrorLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []string
	r := bufio.NewReader(f)
	first := true
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if first {
				line = strings.TrimPrefix(line, utf8BOM)
			}
			first = false
			if errorLinePattern.MatchString(line) {
				matches = append(matches, strings.TrimSpace(strings.ToValidUTF8(line, "")))
			}
		}
		if errors.Is(err, io.EOF) {
			return matches, nil
		}
		if err != nil {
			return matches, err
		}
	}
}
