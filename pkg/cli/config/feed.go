package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Feed holds configuration of the live threat feed
type Feed struct {
	RefreshInterval  time.Duration
	SimulateInterval time.Duration
	Size             int
}

// Flags returns CLI flags for Feed configuration
func (f *Feed) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "threat-refresh",
			Usage:       "Interval to reload the live feed from the sources (0 disables)",
			Category:    "Feed",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("THREATLENS_THREAT_REFRESH"),
			Destination: &f.RefreshInterval,
		},
		&cli.DurationFlag{
			Name:        "feed-interval",
			Usage:       "Interval to push a simulated threat to the live feed (0 disables)",
			Category:    "Feed",
			Value:       8 * time.Second,
			Sources:     cli.EnvVars("THREATLENS_FEED_INTERVAL"),
			Destination: &f.SimulateInterval,
		},
		&cli.IntFlag{
			Name:        "feed-size",
			Usage:       "Number of threats kept in the live feed",
			Category:    "Feed",
			Value:       8,
			Sources:     cli.EnvVars("THREATLENS_FEED_SIZE"),
			Destination: &f.Size,
		},
	}
}

// Validate validates the feed configuration
func (f *Feed) Validate() error {
	if f.Size <= 0 {
		return goerr.New("feed size must be positive", goerr.V("size", f.Size))
	}
	if f.RefreshInterval < 0 || f.SimulateInterval < 0 {
		return goerr.New("feed intervals must not be negative",
			goerr.V("refresh", f.RefreshInterval),
			goerr.V("simulate", f.SimulateInterval))
	}
	return nil
}

// Options returns feed use case options. Extra options such as a notifier
// are appended by the caller.
func (f *Feed) Options(extra ...usecase.FeedOption) []usecase.FeedOption {
	return append([]usecase.FeedOption{
		usecase.WithRefreshInterval(f.RefreshInterval),
		usecase.WithSimulateInterval(f.SimulateInterval),
		usecase.WithFeedSize(f.Size),
	}, extra...)
}

// LogValue returns structured log value
func (f Feed) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("refresh", f.RefreshInterval),
		slog.Duration("simulate", f.SimulateInterval),
		slog.Int("size", f.Size),
	)
}
