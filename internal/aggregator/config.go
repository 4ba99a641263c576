package aggregator

import (
	"time"

	"dockmon/internal/grouping"
)

const (
	// DefaultInterval is 5s: matches the default refresh of the dashboard.
	DefaultInterval = 5 * time.Second
	// DefaultStatsTimeout bounds every list, inspect and stats call.
	DefaultStatsTimeout = 3 * time.Second
	// DefaultMaxConcurrency caps per-container calls in flight in one cycle.
	DefaultMaxConcurrency = 8
	// DefaultShutdownGrace is how long an in-flight cycle may keep running
	// after shutdown starts.
	DefaultShutdownGrace = 5 * time.Second
)

// Config controls the refresh loop. Zero values take the defaults above.
type Config struct {
	Interval       time.Duration
	StatsTimeout   time.Duration
	MaxConcurrency int
	ShutdownGrace  time.Duration
	GroupLabel     string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.StatsTimeout <= 0 {
		c.StatsTimeout = DefaultStatsTimeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.GroupLabel == "" {
		c.GroupLabel = grouping.DefaultLabel
	}
	return c
}
