// Package config loads the daemon configuration. Sources are layered, each
// overriding the previous: built-in defaults, an optional YAML file,
// DOCKMON_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"dockmon/internal/aggregator"
	"dockmon/internal/gateway"
	"dockmon/internal/grouping"
	"dockmon/internal/logging"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOCKMON_REFRESH_INTERVAL=10s.
const EnvPrefix = "DOCKMON"

// Keys, also used as flag names.
const (
	KeyDockerHost      = "docker-host"
	KeyListen          = "listen"
	KeyRefreshInterval = "refresh-interval"
	KeyStatsTimeout    = "stats-timeout"
	KeyMaxConcurrency  = "max-concurrency"
	KeyShutdownGrace   = "shutdown-grace"
	KeyLogLines        = "log-lines"
	KeyGroupLabel      = "group-label"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyTrace           = "trace"
)

var keys = []string{
	KeyDockerHost, KeyListen, KeyRefreshInterval, KeyStatsTimeout, KeyMaxConcurrency,
	KeyShutdownGrace, KeyLogLines, KeyGroupLabel, KeyLogLevel, KeyLogFormat, KeyTrace,
}

type Config struct {
	// DockerHost is the engine endpoint. Empty means DOCKER_HOST, then the
	// platform default socket.
	DockerHost      string
	Listen          string
	RefreshInterval time.Duration
	StatsTimeout    time.Duration
	MaxConcurrency  int
	ShutdownGrace   time.Duration
	LogLines        int
	GroupLabel      string
	LogLevel        string
	LogFormat       string
	Trace           bool
}

// Aggregator returns the refresh loop settings.
func (c Config) Aggregator() aggregator.Config {
	return aggregator.Config{
		Interval:       c.RefreshInterval,
		StatsTimeout:   c.StatsTimeout,
		MaxConcurrency: c.MaxConcurrency,
		ShutdownGrace:  c.ShutdownGrace,
		GroupLabel:     c.GroupLabel,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDockerHost, "")
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyRefreshInterval, aggregator.DefaultInterval)
	v.SetDefault(KeyStatsTimeout, aggregator.DefaultStatsTimeout)
	v.SetDefault(KeyMaxConcurrency, aggregator.DefaultMaxConcurrency)
	v.SetDefault(KeyShutdownGrace, aggregator.DefaultShutdownGrace)
	v.SetDefault(KeyLogLines, gateway.DefaultLogLines)
	v.SetDefault(KeyGroupLabel, grouping.DefaultLabel)
	v.SetDefault(KeyLogLevel, logging.LevelInfo)
	v.SetDefault(KeyLogFormat, logging.FormatText)
	v.SetDefault(KeyTrace, false)
}

// RegisterFlags adds one flag per key. Flag defaults mirror the built-in
// defaults; only flags the user sets override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyDockerHost, "", "Container engine endpoint (default: $DOCKER_HOST or the local socket)")
	fs.String(KeyListen, ":8080", "HTTP listen address")
	fs.Duration(KeyRefreshInterval, aggregator.DefaultInterval, "Time between refresh cycles")
	fs.Duration(KeyStatsTimeout, aggregator.DefaultStatsTimeout, "Timeout for each engine call in a cycle")
	fs.Int(KeyMaxConcurrency, aggregator.DefaultMaxConcurrency, "Maximum engine calls in flight per cycle")
	fs.Duration(KeyShutdownGrace, aggregator.DefaultShutdownGrace, "Time allowed for in-flight work on shutdown")
	fs.Int(KeyLogLines, gateway.DefaultLogLines, "Default number of log lines returned")
	fs.String(KeyGroupLabel, grouping.DefaultLabel, "Container label whose value names the instance")
	fs.String(KeyLogLevel, logging.LevelInfo, "Log level: debug, info, warn, error")
	fs.String(KeyLogFormat, logging.FormatText, "Log format: text, json")
	fs.Bool(KeyTrace, false, "Record cycle traces and log them at debug level")
}

// Load resolves the configuration. path may be empty. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for _, key := range keys {
			f := fs.Lookup(key)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	cfg := Config{
		DockerHost:      strings.TrimSpace(v.GetString(KeyDockerHost)),
		Listen:          strings.TrimSpace(v.GetString(KeyListen)),
		RefreshInterval: v.GetDuration(KeyRefreshInterval),
		StatsTimeout:    v.GetDuration(KeyStatsTimeout),
		MaxConcurrency:  v.GetInt(KeyMaxConcurrency),
		ShutdownGrace:   v.GetDuration(KeyShutdownGrace),
		LogLines:        v.GetInt(KeyLogLines),
		GroupLabel:      strings.TrimSpace(v.GetString(KeyGroupLabel)),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		Trace:           v.GetBool(KeyTrace),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("%s %q: %w", KeyListen, c.Listen, err))
	}
	if c.RefreshInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("%s must be at least 100ms, got %s", KeyRefreshInterval, c.RefreshInterval))
	}
	if c.StatsTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyStatsTimeout, c.StatsTimeout))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyMaxConcurrency, c.MaxConcurrency))
	}
	if c.ShutdownGrace <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyShutdownGrace, c.ShutdownGrace))
	}
	if c.LogLines < 1 || c.LogLines > gateway.MaxLogLines {
		errs = append(errs, fmt.Errorf("%s must be between 1 and %d, got %d", KeyLogLines, gateway.MaxLogLines, c.LogLines))
	}
	if c.GroupLabel == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyGroupLabel))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("%s %q is not one of debug, info, warn, error", KeyLogLevel, c.LogLevel))
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("%s %q is not one of text, json", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}
