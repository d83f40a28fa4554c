// -----------------------------------------------------------------------
// Result File Cache
// -----------------------------------------------------------------------
//
// Package cache keeps the result of a metric resolution on disk so that
// repeated checks from the monitoring server within a short window do not
// re-run the administration client or re-read the technology log.
//
// Each agent invocation is a separate OS process, so the cache lives in a
// shared temp directory with one JSON file per key. Expiry is driven by
// the file modification time.
//
// Concurrency:
// There are no locks. Writers serialize into a temporary file in the same
// directory and rename it over the target, so a concurrent reader sees
// either the previous complete value or the new complete value. A reader
// that still finds something it cannot decode treats it as a miss.
//
// -----------------------------------------------------------------------

package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
)

// DirName is the subdirectory of the OS temp root holding cache files.
const DirName = "1c_zabbix_monitor_cache"

var unsafeKeyChars = regexp.MustCompile(`[^\w-]`)

// -----------------------------------------------------------------------
// File Cache Type
// -----------------------------------------------------------------------

// FileCache is a TTL-bounded key/value store backed by files.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	log *slog.Logger
}

// -----------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------

// New creates a cache in the shared temp directory.
func New(ttl time.Duration) *FileCache {
	return NewInDir(filepath.Join(os.TempDir(), DirName), ttl)
}

// NewInDir creates a cache rooted at dir. A directory that cannot be
// created is logged; the cache then misses on every Get and fails every
// Set without affecting the caller.
func NewInDir(dir string, ttl time.Duration) *FileCache {
	c := &FileCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
		log: slog.Default().With("component", "cache"),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.log.Error("cannot create cache directory", "dir", dir, "err", err)
	}
	return c
}

// beforeRename runs after the temp file is closed and before it replaces
// the target. Tests use it to stop a writer at that point.
var beforeRename = func(tmpName string) {}

// Key builds the cache key for a metric rendered in a given output format.
func Key(metric, format string) string {
	return metric + "_" + format
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Path returns the file backing key.
func (c *FileCache) Path(key string) string {
	return filepath.Join(c.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// -----------------------------------------------------------------------
// Query Methods
// -----------------------------------------------------------------------

// Get returns the cached JSON document for key. Missing, expired and
// undecodable entries are all reported as a miss.
func (c *FileCache) Get(key string) (json.RawMessage, bool) {
	value, ok := c.lookup(key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return value, ok
}

func (c *FileCache) lookup(key string) (json.RawMessage, bool) {
	path := c.Path(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		c.log.Debug("discarding undecodable cache entry", "key", key, "path", path)
		return nil, false
	}
	return json.RawMessage(data), true
}

// -----------------------------------------------------------------------
// Update Methods
// -----------------------------------------------------------------------

// Set stores value under key. Failures are logged and returned; callers
// are free to ignore them.
func (c *FileCache) Set(key string, value any) error {
	if err := c.store(key, value); err != nil {
		c.log.Error("cache write failed", "key", key, "err", err)
		return err
	}
	return nil
}

func (c *FileCache) store(key string, value any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	target := c.Path(key)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	beforeRename(tmpName)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, target, err)
	}
	return nil
}
