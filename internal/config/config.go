// Package config loads sgpkit settings from an optional YAML file and
// SGPKIT_* environment variables. Environment values win over the file;
// malformed environment values are logged and ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/csanfilippo/sgpkit/internal/auth"
	"github.com/csanfilippo/sgpkit/internal/observability"
	"github.com/csanfilippo/sgpkit/internal/propagation"
	"github.com/csanfilippo/sgpkit/internal/tle"
)

// Config is the complete service configuration.
type Config struct {
	HTTP        HTTPConfig                  `yaml:"http"`
	Log         LogConfig                   `yaml:"log"`
	Auth        auth.Config                 `yaml:"auth"`
	Propagation PropagationConfig           `yaml:"propagation"`
	TLE         TLEConfig                   `yaml:"tle"`
	Stream      StreamConfig                `yaml:"stream"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// PropagationConfig configures SGP4.
type PropagationConfig struct {
	Gravity string `yaml:"gravity"` // wgs72 | wgs84
	Workers int    `yaml:"workers"` // SGP4 init goroutines per catalog rebuild; 0 = NumCPU
}

// TLEConfig configures catalog fetching, caching and archiving.
type TLEConfig struct {
	EnableFetch     bool          `yaml:"enable_fetch"`
	SourceURL       string        `yaml:"source_url"`
	ExtraSourceURLs []string      `yaml:"extra_source_urls"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	ArchivePath     string        `yaml:"archive_path"` // empty disables the archive
}

// StreamConfig configures SSE tracking.
type StreamConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxTotal           int           `yaml:"max_total"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "json"},
		Propagation: PropagationConfig{
			Gravity: "wgs72",
		},
		TLE: TLEConfig{
			EnableFetch: true,
			SourceURL:   tle.DefaultSourceURL,
			CacheDir:    "/tmp/sgpkit/tle",
			MaxFiles:    5,
			// CelesTrak refreshes element sets a few times a day.
			RefreshInterval: 6 * time.Hour,
			ArchivePath:     "/tmp/sgpkit/archive.db",
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: 10,
			MaxTotal:           1000,
			KeepaliveInterval:  30 * time.Second,
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Load returns Default overlaid with the YAML file at path (if non-empty)
// and then with SGPKIT_* environment variables.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, logger)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c Config) Validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth token is required when auth is enabled (SGPKIT_AUTH_TOKEN)")
	}
	if _, err := propagation.ParseGravity(c.Propagation.Gravity); err != nil {
		return err
	}
	if c.Propagation.Workers < 0 {
		return fmt.Errorf("propagation workers must not be negative, got %d", c.Propagation.Workers)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("unknown log format %q (want json or text)", c.Log.Format)
	}
	if c.TLE.EnableFetch && c.TLE.SourceURL == "" {
		return errors.New("tle source url is required when fetching is enabled")
	}
	if c.TLE.RefreshInterval < time.Minute {
		return fmt.Errorf("tle refresh interval %s is below one minute", c.TLE.RefreshInterval)
	}
	return nil
}

// Gravity returns the parsed gravity model.
func (c Config) Gravity() propagation.Gravity {
	g, _ := propagation.ParseGravity(c.Propagation.Gravity)
	return g
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func applyEnv(cfg *Config, logger *slog.Logger) {
	envString("SGPKIT_HTTP_ADDR", &cfg.HTTP.Addr)
	envBool(logger, "SGPKIT_TRUST_PROXY", &cfg.HTTP.TrustProxy)

	envString("SGPKIT_LOG_LEVEL", &cfg.Log.Level)
	envString("SGPKIT_LOG_FORMAT", &cfg.Log.Format)

	envBool(logger, "SGPKIT_AUTH_ENABLED", &cfg.Auth.Enabled)
	envString("SGPKIT_AUTH_TOKEN", &cfg.Auth.Token)

	envString("SGPKIT_GRAVITY", &cfg.Propagation.Gravity)
	envInt(logger, "SGPKIT_PROP_WORKERS", 1, &cfg.Propagation.Workers)

	envBool(logger, "SGPKIT_ENABLE_TLE_FETCH", &cfg.TLE.EnableFetch)
	envString("SGPKIT_TLE_SOURCE_URL", &cfg.TLE.SourceURL)
	if v, ok := os.LookupEnv("SGPKIT_TLE_EXTRA_URLS"); ok {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.TLE.ExtraSourceURLs = urls
	}
	envString("SGPKIT_TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	envInt(logger, "SGPKIT_TLE_MAX_FILES", 1, &cfg.TLE.MaxFiles)
	envSeconds(logger, "SGPKIT_TLE_REFRESH_INTERVAL", &cfg.TLE.RefreshInterval)
	envString("SGPKIT_TLE_ARCHIVE_PATH", &cfg.TLE.ArchivePath)

	envInt(logger, "SGPKIT_STREAM_MAX_CONCURRENT", 1, &cfg.Stream.MaxConcurrentPerIP)
	envInt(logger, "SGPKIT_STREAM_MAX_TOTAL", 1, &cfg.Stream.MaxTotal)
	envSeconds(logger, "SGPKIT_STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveInterval)

	envBool(logger, "SGPKIT_TRACING_ENABLED", &cfg.Tracing.Enabled)
	envString("SGPKIT_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	envString("SGPKIT_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	envString("SGPKIT_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	if v := os.Getenv("SGPKIT_TRACING_SAMPLE_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			logger.Warn("invalid SGPKIT_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", cfg.Tracing.SampleRatio)
		} else {
			cfg.Tracing.SampleRatio = ratio
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

func envInt(logger *slog.Logger, key string, minValue int, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minValue {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

func envSeconds(logger *slog.Logger, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default_seconds", dst.Seconds())
		return
	}
	*dst = time.Duration(n) * time.Second
}
