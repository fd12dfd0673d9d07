package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SECANTMIN_HTTP_ADDR.
const EnvPrefix = "SECANTMIN"

const (
	KeyHTTPAddr        = "http_addr"
	KeyShutdownTimeout = "shutdown_timeout"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyMaxIterations   = "max_iterations"
	KeyCacheSize       = "cache_size"
	KeyAllowedOrigins  = "allowed_origins"
	KeyRenderGraphs    = "render_graphs"
	KeyRenderWorkers   = "render_workers"
)

const (
	defaultHTTPAddr        = "127.0.0.1:8000"
	defaultShutdownTimeout = 5 * time.Second
	defaultLogLevel        = slog.LevelInfo
	defaultLogFormat       = LogFormatText
	defaultMaxIterations   = 100
	defaultCacheSize       = 256
	defaultAllowedOrigin   = "http://localhost:5173"
	defaultRenderWorkers   = 4
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config controls the server, the CLI and the solver defaults they pass in.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
	LogFormat       LogFormat
	MaxIterations   int
	CacheSize       int
	AllowedOrigins  []string
	RenderGraphs    bool
	RenderWorkers   int
}

func Default() Config {
	return Config{
		HTTPAddr:        defaultHTTPAddr,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		MaxIterations:   defaultMaxIterations,
		CacheSize:       defaultCacheSize,
		AllowedOrigins:  []string{defaultAllowedOrigin},
		RenderGraphs:    true,
		RenderWorkers:   defaultRenderWorkers,
	}
}

// New returns a viper instance with defaults registered and environment
// lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyHTTPAddr, d.HTTPAddr)
	v.SetDefault(KeyShutdownTimeout, d.ShutdownTimeout.String())
	v.SetDefault(KeyLogLevel, strings.ToLower(d.LogLevel.String()))
	v.SetDefault(KeyLogFormat, string(d.LogFormat))
	v.SetDefault(KeyMaxIterations, d.MaxIterations)
	v.SetDefault(KeyCacheSize, d.CacheSize)
	v.SetDefault(KeyAllowedOrigins, d.AllowedOrigins)
	v.SetDefault(KeyRenderGraphs, d.RenderGraphs)
	v.SetDefault(KeyRenderWorkers, d.RenderWorkers)
	return v
}

// BindFlags declares the flags on fs and binds them into v. A flag wins over
// the environment only when it was set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	d := Default()
	fs.String(KeyHTTPAddr, d.HTTPAddr, "address the HTTP server listens on")
	fs.Duration(KeyShutdownTimeout, d.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	fs.String(KeyLogLevel, strings.ToLower(d.LogLevel.String()), "log level: debug, info, warn or error")
	fs.String(KeyLogFormat, string(d.LogFormat), "log format: text or json")
	fs.Int(KeyMaxIterations, d.MaxIterations, "iteration limit when a request sets none")
	fs.Int(KeyCacheSize, d.CacheSize, "compiled expression cache entries (0 disables)")
	fs.StringSlice(KeyAllowedOrigins, d.AllowedOrigins, "CORS origins allowed to call the API")
	fs.Bool(KeyRenderGraphs, d.RenderGraphs, "render iteration and final graphs")
	fs.Int(KeyRenderWorkers, d.RenderWorkers, "concurrent graph renderers")
	return v.BindPFlags(fs)
}

// Load reads configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	cfg.HTTPAddr = strings.TrimSpace(v.GetString(KeyHTTPAddr))

	timeout := v.GetString(KeyShutdownTimeout)
	parsed, err := time.ParseDuration(timeout)
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", KeyShutdownTimeout, err)
	}
	cfg.ShutdownTimeout = parsed

	if cfg.LogLevel, err = parseLogLevel(v.GetString(KeyLogLevel)); err != nil {
		return Config{}, err
	}
	if cfg.LogFormat, err = parseLogFormat(v.GetString(KeyLogFormat)); err != nil {
		return Config{}, err
	}

	cfg.MaxIterations = v.GetInt(KeyMaxIterations)
	cfg.CacheSize = v.GetInt(KeyCacheSize)
	cfg.AllowedOrigins = splitList(v.GetStringSlice(KeyAllowedOrigins))
	cfg.RenderGraphs = v.GetBool(KeyRenderGraphs)
	cfg.RenderWorkers = v.GetInt(KeyRenderWorkers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("validate config: http_addr must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("validate config: shutdown_timeout must be > 0, got %s", c.ShutdownTimeout)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("validate config: max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("validate config: cache_size must be >= 0, got %d", c.CacheSize)
	}
	if c.RenderWorkers <= 0 {
		return fmt.Errorf("validate config: render_workers must be > 0, got %d", c.RenderWorkers)
	}

	switch c.LogLevel {
	case slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError:
	default:
		return fmt.Errorf("validate config: unsupported log_level %q", c.LogLevel.String())
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf(
			"validate config: unsupported log_format %q (allowed: %q, %q)",
			c.LogFormat,
			LogFormatText,
			LogFormatJSON,
		)
	}
	return nil
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf(
			"parse %s: unsupported value %q (allowed: %q, %q, %q, %q)",
			KeyLogLevel,
			input,
			"debug", "info", "warn", "error",
		)
	}
}

func parseLogFormat(input string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf(
			"parse %s: unsupported value %q (allowed: %q, %q)",
			KeyLogFormat,
			input,
			LogFormatText,
			LogFormatJSON,
		)
	}
}

// splitList accepts both comma and whitespace separated values, since
// environment variables arrive as a single string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
