package engine

import (
	"context"

	"dockmon/internal/stats"
)

// Client is the set of container engine primitives the monitor needs.
// Implementations classify failures with the sentinel errors in this
// package so callers can use errors.Is.
type Client interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, all bool) ([]ContainerDescriptor, error)
	InspectContainer(ctx context.Context, id string) (ContainerDetails, error)
	// ReadStats returns a single point-in-time reading without waiting for
	// the engine to collect a second sample.
	ReadStats(ctx context.Context, id string) (stats.RawStatsReading, error)
	// ReadLiveStats returns the engine's own previous and current samples.
	// prev is nil when the engine has not collected a previous sample yet.
	ReadLiveStats(ctx context.Context, id string) (prev *stats.RawStatsReading, cur stats.RawStatsReading, err error)
	// TailLogs returns the last lines of combined stdout/stderr output,
	// most recent last.
	TailLogs(ctx context.Context, id string, lines int) ([]string, error)
	// Restart asks the engine to restart the container. It does not wait
	// for the container to become healthy.
	Restart(ctx context.Context, id string) error
	Close() error
}
