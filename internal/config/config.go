// -----------------------------------------------------------------------
// Configuration Management
// -----------------------------------------------------------------------
//
// Package config assembles the configuration of a single agent invocation
// from several sources with clear precedence. Configuration is validated
// before returning so that a bad command line fails fast with a hint
// instead of producing a misleading metric value.
//
// Precedence (highest to lowest): command-line flags, MONITOR_* environment
// variables, config file (with ${VAR:default} interpolation), .env file in
// the working directory, default values.
//
// -----------------------------------------------------------------------

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables mapped onto config
// keys. A double underscore separates nesting levels:
// MONITOR_RAS__PASSWORD sets ras.password.
const EnvPrefix = "MONITOR_"

// Output formats accepted by --format.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatLLD   = "lld"
)

var formats = []string{FormatPlain, FormatJSON, FormatLLD}

// -----------------------------------------------------------------------
// Type Definitions
// -----------------------------------------------------------------------

// Config holds all configuration values of one invocation.
type Config struct {
	Metric     string `koanf:"metric"`
	Format     string `koanf:"format"`
	ConfigFile string `koanf:"config"`
	NoCache    bool   `koanf:"no-cache"`
	Debug      bool   `koanf:"debug"`
	Version    bool   `koanf:"version"`

	RAS       RASConfig            `koanf:"ras"`
	Logs      map[string]LogConfig `koanf:"logs"`
	Cache     CacheConfig          `koanf:"cache"`
	Server    ServerConfig         `koanf:"server"`
	Telemetry TelemetryConfig      `koanf:"telemetry"`
}

// RASConfig describes the administration server and client executable.
type RASConfig struct {
	Host             string `koanf:"host"`
	Port             int    `koanf:"port"`
	User             string `koanf:"user"`
	Password         string `koanf:"password"`
	Path             string `koanf:"path"`
	PreferredVersion string `koanf:"preferred_version"`
}

// LogConfig is the fallback location of one technology log section.
type LogConfig struct {
	Path    string `koanf:"path"`
	Keyword string `koanf:"keyword"`
}

// CacheConfig controls the result file cache.
type CacheConfig struct {
	TTL int `koanf:"ttl"`
}

// ServerConfig names the systemd unit of the application server.
type ServerConfig struct {
	Unit string `koanf:"unit"`
}

// TelemetryConfig controls self-telemetry export.
type TelemetryConfig struct {
	Textfile string `koanf:"textfile"`
}

// Log returns the settings of a log section, zero if absent.
func (c *Config) Log(name string) LogConfig {
	return c.Logs[name]
}

// defaults are loaded first, as flattened keys.
func defaults() map[string]any {
	return map[string]any{
		"format":      FormatPlain,
		"ras.host":    "localhost",
		"ras.port":    1545,
		"ras.user":    "admin",
		"cache.ttl":   60,
		"server.unit": "srv1cv8",
	}
}

// -----------------------------------------------------------------------
// Configuration Loading
// -----------------------------------------------------------------------

// Load parses args and reads every configuration source, returning a
// validated Config.
func Load(args []string) (*Config, error) {
	k := koanf.New(".")

	f := pflag.NewFlagSet("1c-monitor", pflag.ContinueOnError)
	f.String("metric", "", "metric to collect (sessions, rphost, ras_health, log_errors, locks, calls, slow_sql, sql_queries, server_unit, rphost_procs)")
	f.String("format", FormatPlain, "output format (plain, json, lld)")
	f.String("config", "", "path to YAML or JSON config file (optional)")
	f.Bool("no-cache", false, "bypass the result cache")
	f.Bool("debug", false, "enable debug logging to stderr")
	f.Bool("version", false, "print version and exit")

	if err := f.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing command-line flags: %w", err)
	}

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// .env feeds both ${VAR} interpolation and MONITOR_* variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	configPath, _ := f.GetString("config")
	if err := loadFile(k, configPath); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command-line flags: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}

	if cfg.Version {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("configuration loaded",
		"metric", cfg.Metric,
		"format", cfg.Format,
		"ras", fmt.Sprintf("%s:%d", cfg.RAS.Host, cfg.RAS.Port),
		"cache_ttl_sec", cfg.Cache.TTL,
		"no_cache", cfg.NoCache,
	)

	return cfg, nil
}

// loadFile merges the first usable config file into k. An explicit path
// must exist and parse; discovered candidates that fail are skipped.
func loadFile(k *koanf.Koanf, explicit string) error {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return fmt.Errorf("config file not found: %s (error: %w)", explicit, err)
		}
		if err := mergeFile(k, explicit); err != nil {
			return fmt.Errorf("error parsing config file (%s): %w", explicit, err)
		}
		slog.Debug("loaded configuration file", "path", explicit)
		return nil
	}

	for _, p := range Candidates() {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := mergeFile(k, p); err != nil {
			slog.Error("error reading configuration file", "path", p, "err", err)
			continue
		}
		slog.Debug("loaded configuration file", "path", p)
		return nil
	}

	slog.Debug("no config file found, using defaults and environment")
	return nil
}

// Candidates lists the config files tried when --config is not given.
func Candidates() []string {
	var paths []string
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, "config.yaml"), filepath.Join(wd, "config.json"))
	}
	if runtime.GOOS == "windows" {
		progData := os.Getenv("PROGRAMDATA")
		if progData == "" {
			progData = "C:/ProgramData"
		}
		paths = append(paths, filepath.Join(progData, "1c-monitor", "config.yaml"))
	}
	return paths
}

// parserFor selects the parser by file extension.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return json.Parser()
	}
}

// mergeFile parses path, interpolates environment references in its
// string values and merges the result into k.
func mergeFile(k *koanf.Koanf, path string) error {
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), parserFor(path)); err != nil {
		return err
	}
	raw, _ := interpolateValue(fk.Raw()).(map[string]any)
	return k.Load(confmap.Provider(raw, ""), nil)
}

// -----------------------------------------------------------------------
// Environment Interpolation
// -----------------------------------------------------------------------

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate replaces ${VAR} and ${VAR:default} with the environment
// value, falling back to default (or the empty string). Surrounding quotes
// are stripped from the substituted value.
func Interpolate(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		inner := ref[2 : len(ref)-1]
		name, def, _ := strings.Cut(inner, ":")
		val, ok := os.LookupEnv(strings.TrimSpace(name))
		if !ok {
			val = strings.TrimSpace(def)
		}
		return strings.Trim(val, `"'`)
	})
}

func interpolateValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, val := range t {
			out[key] = interpolateValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = interpolateValue(val)
		}
		return out
	case string:
		return Interpolate(t)
	default:
		return v
	}
}

// -----------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------

// Validate checks that all configuration values are within acceptable
// ranges. Returns a descriptive error with a usage hint.
func (c *Config) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf(
			"metric is required\n" +
				"use: --metric sessions")
	}

	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf(
			"invalid format %q: must be one of %s\n"+
				"use: --format plain",
			c.Format, strings.Join(formats, ", "))
	}

	if c.RAS.Port < 1 || c.RAS.Port > 65535 {
		return fmt.Errorf(
			"invalid ras.port: must be between 1-65535, got %d\n"+
				"use: ras.port in config file or MONITOR_RAS__PORT=1545",
			c.RAS.Port)
	}

	if strings.TrimSpace(c.RAS.Host) == "" {
		return fmt.Errorf(
			"ras.host cannot be empty\n" +
				"use: ras.host in config file or MONITOR_RAS__HOST=localhost")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf(
			"cache.ttl cannot be negative, got %d\n"+
				"use: cache.ttl: 60 or --no-cache",
			c.Cache.TTL)
	}

	if c.Cache.TTL > 3600 {
		slog.Warn("unusually long cache ttl", "ttl_sec", c.Cache.TTL)
	}

	return nil
}
