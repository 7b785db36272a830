package otx

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/metrics"
	"github.com/secmon-lab/threatlens/pkg/service/upstream"
	"github.com/secmon-lab/threatlens/pkg/utils/reltime"
)

const (
	// SourceName is the label attached to records from OTX
	SourceName = "AlienVault OTX"

	// DefaultBaseURL is the OTX v1 API
	DefaultBaseURL = "https://otx.alienvault.com/api/v1"

	// APIKeyHeader carries the OTX API key
	APIKeyHeader = "X-OTX-API-KEY"

	maxIndicatorsPerPulse = 3
	maxIncidents          = 6
	maxTitleLength        = 60

	defaultThreatPulseLimit   = 5
	defaultIncidentPulseLimit = 8
)

// Config holds configuration for the OTX adapter
type Config struct {
	apiKey             string
	baseURL            string
	proxyBaseURL       string
	threatPulseLimit   int
	incidentPulseLimit int
	now                func() time.Time
}

// Option is a functional option for configuring the adapter
type Option func(*Config)

// WithAPIKey sets the OTX API key for direct calls
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the OTX API base URL
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithProxy routes requests through the /proxy endpoint under proxyBaseURL
func WithProxy(proxyBaseURL string) Option {
	return func(c *Config) {
		c.proxyBaseURL = strings.TrimRight(proxyBaseURL, "/")
	}
}

// WithPulseLimits sets how many pulses are requested for threats and incidents
func WithPulseLimits(threats, incidents int) Option {
	return func(c *Config) {
		c.threatPulseLimit = threats
		c.incidentPulseLimit = incidents
	}
}

// WithClock replaces the clock used for relative timestamps and incident IDs
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

// Client fetches pulses from AlienVault OTX and converts them into threats
// and incidents
type Client struct {
	client *upstream.Client
	geo    interfaces.Geolocator
	cfg    Config
}

var _ interfaces.ThreatSource = (*Client)(nil)

// New creates a new OTX adapter. geo may be nil, in which case no threats
// can be produced.
func New(client *upstream.Client, geo interfaces.Geolocator, opts ...Option) *Client {
	cfg := Config{
		baseURL:            DefaultBaseURL,
		threatPulseLimit:   defaultThreatPulseLimit,
		incidentPulseLimit: defaultIncidentPulseLimit,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		client: client,
		geo:    geo,
		cfg:    cfg,
	}
}

// Name implements interfaces.ThreatSource
func (c *Client) Name() string {
	return "otx"
}

// Enabled returns true if either proxy mode or an API key is configured
func (c *Client) Enabled() bool {
	return c.cfg.proxyBaseURL != "" || c.cfg.apiKey != ""
}

// FetchThreats implements interfaces.ThreatSource
func (c *Client) FetchThreats(ctx context.Context) []*model.Threat {
	pulses := c.FetchRecentPulses(ctx, c.cfg.threatPulseLimit)
	return c.ToThreats(ctx, pulses)
}

// FetchIncidents implements interfaces.ThreatSource
func (c *Client) FetchIncidents(ctx context.Context) []*model.Incident {
	pulses := c.FetchRecentPulses(ctx, c.cfg.incidentPulseLimit)
	return c.ToIncidents(pulses)
}

// FetchRecentPulses returns subscribed pulses. Failures are logged and yield
// an empty list.
func (c *Client) FetchRecentPulses(ctx context.Context, limit int) []model.Pulse {
	logger := ctxlog.From(ctx)

	if !c.Enabled() {
		logger.Warn("OTX API key not configured, skipping OTX")
		metrics.SourceFetches.WithLabelValues(c.Name(), "pulses", metrics.ResultDisabled).Inc()
		return nil
	}

	var list model.PulseList
	if err := c.client.GetJSON(ctx, c.pulsesURL(limit), c.headers(), &list); err != nil {
		logger.Warn("Failed to fetch OTX pulses", slog.Any("error", err))
		metrics.SourceFetches.WithLabelValues(c.Name(), "pulses", metrics.ResultError).Inc()
		return nil
	}

	result := metrics.ResultOK
	if len(list.Results) == 0 {
		result = metrics.ResultEmpty
	}
	metrics.SourceFetches.WithLabelValues(c.Name(), "pulses", result).Inc()

	logger.Debug("Fetched OTX pulses", slog.Int("count", len(list.Results)))
	return list.Results
}

// ToThreats converts the first IP indicators of each pulse into threats.
// Indicators whose location cannot be resolved are dropped.
func (c *Client) ToThreats(ctx context.Context, pulses []model.Pulse) []*model.Threat {
	logger := ctxlog.From(ctx)
	now := c.cfg.now()

	var threats []*model.Threat
	for i := range pulses {
		pulse := &pulses[i]

		indicators := pulse.IPIndicators()
		if len(indicators) > maxIndicatorsPerPulse {
			indicators = indicators[:maxIndicatorsPerPulse]
		}

		for _, ind := range indicators {
			if c.geo == nil || !c.geo.Enabled() {
				continue
			}

			loc, err := c.geo.Resolve(ctx, ind.Indicator)
			if err != nil {
				logger.Debug("Geolocation failed, dropping indicator",
					slog.String("pulse", pulse.ID),
					slog.String("ip", ind.Indicator),
					slog.Any("error", err),
				)
				continue
			}

			city := loc.City
			if city == "" {
				city = "Unknown"
			}

			threats = append(threats, &model.Threat{
				ID:          pulse.ID + "-" + ind.Indicator,
				Country:     loc.CountryName,
				City:        city,
				ThreatType:  Categorize(pulse.Tags),
				Severity:    SeverityFromTags(pulse.Tags),
				Timestamp:   reltime.Format(pulse.Created, now),
				Lat:         float64(loc.Latitude),
				Lng:         float64(loc.Longitude),
				Source:      SourceName,
				IPAddress:   ind.Indicator,
				Description: pulse.Name,
			})
		}
	}

	return threats
}

// ToIncidents converts up to the first six pulses into incidents
func (c *Client) ToIncidents(pulses []model.Pulse) []*model.Incident {
	now := c.cfg.now()
	base := now.UnixMilli()

	n := min(len(pulses), maxIncidents)
	incidents := make([]*model.Incident, 0, n)
	for i := 0; i < n; i++ {
		pulse := &pulses[i]
		incidents = append(incidents, &model.Incident{
			ID:         base + int64(i),
			Title:      truncateTitle(pulse.Name),
			Severity:   SeverityFromTags(pulse.Tags),
			Status:     StatusFromTags(pulse.Tags),
			Time:       reltime.Format(pulse.Created, now),
			Confidence: Confidence(pulse),
			Source:     SourceName,
			Details:    pulse.Description,
		})
	}
	return incidents
}

func (c *Client) pulsesURL(limit int) string {
	if c.cfg.proxyBaseURL != "" {
		return c.cfg.proxyBaseURL + "/proxy?" + url.Values{
			"endpoint": {types.ProxyEndpointOTXPulses.String()},
		}.Encode()
	}
	return PulsesURL(c.cfg.baseURL, limit)
}

func (c *Client) headers() map[string]string {
	if c.cfg.proxyBaseURL != "" {
		return nil
	}
	return map[string]string{APIKeyHeader: c.cfg.apiKey}
}

func truncateTitle(name string) string {
	runes := []rune(name)
	if len(runes) <= maxTitleLength {
		return name
	}
	return string(runes[:maxTitleLength]) + "..."
}

// PulsesURL returns the upstream URL of the subscribed pulses API
func PulsesURL(baseURL string, limit int) string {
	return strings.TrimRight(baseURL, "/") + "/pulses/subscribed?" + url.Values{
		"limit": {strconv.Itoa(limit)},
	}.Encode()
}
