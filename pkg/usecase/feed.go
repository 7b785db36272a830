package usecase

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/metrics"
	"github.com/secmon-lab/threatlens/pkg/utils/apperr"
	"github.com/secmon-lab/threatlens/pkg/utils/async"
)

const (
	defaultRefreshInterval  = 30 * time.Second
	defaultSimulateInterval = 8 * time.Second
	defaultFeedSize         = 8
	defaultNotifyMemory     = 4096
)

// FeedConfig holds configuration for Feed use case
type FeedConfig struct {
	refreshInterval  time.Duration
	simulateInterval time.Duration
	size             int
	notifier         interfaces.ThreatNotifier
	notifyMemory     int
}

// FeedOption is a functional option for configuring Feed
type FeedOption func(*FeedConfig)

// WithRefreshInterval sets how often the feed is reloaded from the aggregator.
// Zero disables periodic refresh.
func WithRefreshInterval(d time.Duration) FeedOption {
	return func(c *FeedConfig) {
		c.refreshInterval = d
	}
}

// WithSimulateInterval sets how often a random threat is pushed to the feed.
// Zero disables simulation.
func WithSimulateInterval(d time.Duration) FeedOption {
	return func(c *FeedConfig) {
		c.simulateInterval = d
	}
}

// WithFeedSize sets the number of threats returned by List
func WithFeedSize(size int) FeedOption {
	return func(c *FeedConfig) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithNotifier sets the notifier for critical threats
func WithNotifier(n interfaces.ThreatNotifier) FeedOption {
	return func(c *FeedConfig) {
		c.notifier = n
	}
}

// WithNotifyMemory sets how many notified threat IDs are remembered
func WithNotifyMemory(size int) FeedOption {
	return func(c *FeedConfig) {
		if size > 0 {
			c.notifyMemory = size
		}
	}
}

// Feed maintains the rolling live threat feed shown on the threat map
type Feed struct {
	intel    *ThreatIntel
	repo     interfaces.FeedRepository
	config   FeedConfig
	notified *lru.Cache[string, struct{}]
	pending  async.Group
}

var _ interfaces.Feed = (*Feed)(nil)

// NewFeed creates a new Feed
func NewFeed(intel *ThreatIntel, repo interfaces.FeedRepository, opts ...FeedOption) (*Feed, error) {
	config := FeedConfig{
		refreshInterval:  defaultRefreshInterval,
		simulateInterval: defaultSimulateInterval,
		size:             defaultFeedSize,
		notifyMemory:     defaultNotifyMemory,
	}
	for _, opt := range opts {
		opt(&config)
	}

	notified, err := lru.New[string, struct{}](config.notifyMemory)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create notification cache",
			goerr.V("size", config.notifyMemory))
	}

	return &Feed{
		intel:    intel,
		repo:     repo,
		config:   config,
		notified: notified,
	}, nil
}

// Refresh replaces the feed with the current aggregated threats. Critical
// threats are notified only when they came from live sources.
func (f *Feed) Refresh(ctx context.Context) error {
	threats, live := f.intel.getThreats(ctx)
	if len(threats) > f.config.size {
		threats = threats[:f.config.size]
	}

	if err := f.repo.ReplaceThreats(ctx, threats); err != nil {
		return goerr.Wrap(err, "failed to refresh feed")
	}
	metrics.FeedSize.Set(float64(len(threats)))

	if live {
		f.notifyCritical(ctx, threats...)
	}
	return nil
}

// Simulate pushes one randomly generated threat to the head of the feed.
// Simulated threats are never notified.
func (f *Feed) Simulate(ctx context.Context) (*model.Threat, error) {
	threat := f.intel.GenerateRandomThreat()
	if err := f.repo.PushThreats(ctx, threat); err != nil {
		return nil, goerr.Wrap(err, "failed to push simulated threat", goerr.V("id", threat.ID))
	}
	return threat, nil
}

// List returns the feed, newest first
func (f *Feed) List(ctx context.Context) ([]*model.Threat, error) {
	threats, err := f.repo.ListThreats(ctx, f.config.size)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list feed")
	}
	return threats, nil
}

// Run refreshes the feed once, then refreshes and simulates on fixed
// intervals until ctx is cancelled. Both run in this goroutine, so a slow
// refresh delays the next tick instead of overlapping it.
func (f *Feed) Run(ctx context.Context) error {
	logger := ctxlog.From(ctx)
	logger.Info("Starting live feed",
		"refreshInterval", f.config.refreshInterval,
		"simulateInterval", f.config.simulateInterval,
		"size", f.config.size,
	)

	if err := f.Refresh(ctx); err != nil {
		apperr.Handle(ctx, err)
	}

	refresh := tickerChan(f.config.refreshInterval)
	simulate := tickerChan(f.config.simulateInterval)
	defer refresh.stop()
	defer simulate.stop()

	for {
		select {
		case <-ctx.Done():
			f.pending.Wait()
			logger.Info("Live feed stopped")
			return nil

		case <-refresh.c:
			if err := f.Refresh(ctx); err != nil {
				apperr.Handle(ctx, err)
			}

		case <-simulate.c:
			if _, err := f.Simulate(ctx); err != nil {
				apperr.Handle(ctx, err)
			}
		}
	}
}

// notifyCritical sends each critical threat not seen before to the notifier
func (f *Feed) notifyCritical(ctx context.Context, threats ...*model.Threat) {
	if f.config.notifier == nil {
		return
	}

	for _, t := range threats {
		if t.Severity != types.SeverityCritical {
			continue
		}
		if found, _ := f.notified.ContainsOrAdd(t.ID, struct{}{}); found {
			continue
		}

		threat := *t
		f.pending.Go(ctx, "notify_threat", func(ctx context.Context) error {
			if err := f.config.notifier.NotifyThreat(ctx, &threat); err != nil {
				metrics.Notifications.WithLabelValues(metrics.ResultError).Inc()
				return err
			}
			metrics.Notifications.WithLabelValues(metrics.ResultOK).Inc()
			return nil
		})
	}
}

type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

// tickerChan returns a ticker whose channel never fires when d <= 0
func tickerChan(d time.Duration) *ticker {
	if d <= 0 {
		return &ticker{}
	}
	t := time.NewTicker(d)
	return &ticker{t: t, c: t.C}
}

func (t *ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
