package abuseipdb

import (
	"context"
	"fmt"
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
	// SourceName is the label attached to records from AbuseIPDB
	SourceName = "AbuseIPDB"

	// DefaultBaseURL is the AbuseIPDB v2 API
	DefaultBaseURL = "https://api.abuseipdb.com/api/v2"

	// APIKeyHeader carries the AbuseIPDB API key
	APIKeyHeader = "Key"

	// BlacklistConfidenceMinimum is the minimum score requested from /blacklist
	BlacklistConfidenceMinimum = 90

	maxThreats   = 5
	maxIncidents = 4

	defaultReportLimit = 5
	incidentIDOffset   = 1000
)

// Threat categories derived from reports
const (
	CategoryBotnet     = "Botnet Activity"
	CategoryMalicious  = "Malicious Activity"
	CategoryScanning   = "Mass Scanning"
	CategorySuspicious = "Suspicious Activity"
)

// Config holds configuration for the AbuseIPDB adapter
type Config struct {
	apiKey       string
	baseURL      string
	proxyBaseURL string
	reportLimit  int
	now          func() time.Time
}

// Option is a functional option for configuring the adapter
type Option func(*Config)

// WithAPIKey sets the AbuseIPDB API key for direct calls
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the AbuseIPDB API base URL
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithProxy routes blacklist requests through the /proxy endpoint under proxyBaseURL
func WithProxy(proxyBaseURL string) Option {
	return func(c *Config) {
		c.proxyBaseURL = strings.TrimRight(proxyBaseURL, "/")
	}
}

// WithReportLimit sets how many blacklist entries are requested
func WithReportLimit(limit int) Option {
	return func(c *Config) {
		c.reportLimit = limit
	}
}

// WithClock replaces the clock used for relative timestamps and incident IDs
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

// Client fetches AbuseIPDB blacklist reports and converts them into threats
// and incidents
type Client struct {
	client *upstream.Client
	geo    interfaces.Geolocator
	cfg    Config
}

var _ interfaces.ThreatSource = (*Client)(nil)

// New creates a new AbuseIPDB adapter. geo may be nil.
func New(client *upstream.Client, geo interfaces.Geolocator, opts ...Option) *Client {
	cfg := Config{
		baseURL:     DefaultBaseURL,
		reportLimit: defaultReportLimit,
		now:         time.Now,
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
	return "abuseipdb"
}

// Enabled returns true if either proxy mode or an API key is configured
func (c *Client) Enabled() bool {
	return c.cfg.proxyBaseURL != "" || c.cfg.apiKey != ""
}

// FetchThreats implements interfaces.ThreatSource
func (c *Client) FetchThreats(ctx context.Context) []*model.Threat {
	reports := c.FetchRecentReports(ctx, c.cfg.reportLimit)
	return c.ToThreats(ctx, reports)
}

// FetchIncidents implements interfaces.ThreatSource
func (c *Client) FetchIncidents(ctx context.Context) []*model.Incident {
	reports := c.FetchRecentReports(ctx, c.cfg.reportLimit)
	return c.ToIncidents(reports)
}

// CheckIP looks up a single address via /check. It returns nil when the
// adapter is disabled or the lookup fails. The check API is not proxied, so
// it requires an API key.
func (c *Client) CheckIP(ctx context.Context, ip string) *model.AbuseReport {
	logger := ctxlog.From(ctx)

	if c.cfg.apiKey == "" {
		logger.Debug("AbuseIPDB API key not configured, skipping IP check")
		return nil
	}

	u := c.cfg.baseURL + "/check?" + url.Values{
		"ipAddress":    {ip},
		"maxAgeInDays": {"90"},
		"verbose":      {""},
	}.Encode()

	var resp model.AbuseCheck
	if err := c.client.GetJSON(ctx, u, c.directHeaders(), &resp); err != nil {
		logger.Warn("Failed to check IP with AbuseIPDB",
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		return nil
	}
	return resp.Data
}

// FetchRecentReports returns blacklist reports. Failures are logged and yield
// an empty list.
func (c *Client) FetchRecentReports(ctx context.Context, limit int) []model.AbuseReport {
	logger := ctxlog.From(ctx)

	if !c.Enabled() {
		logger.Warn("AbuseIPDB API key not configured, skipping AbuseIPDB")
		metrics.SourceFetches.WithLabelValues(c.Name(), "reports", metrics.ResultDisabled).Inc()
		return nil
	}

	var list model.AbuseBlacklist
	if err := c.client.GetJSON(ctx, c.blacklistURL(limit), c.headers(), &list); err != nil {
		logger.Warn("Failed to fetch AbuseIPDB reports", slog.Any("error", err))
		metrics.SourceFetches.WithLabelValues(c.Name(), "reports", metrics.ResultError).Inc()
		return nil
	}

	result := metrics.ResultOK
	if len(list.Data) == 0 {
		result = metrics.ResultEmpty
	}
	metrics.SourceFetches.WithLabelValues(c.Name(), "reports", result).Inc()

	logger.Debug("Fetched AbuseIPDB reports", slog.Int("count", len(list.Data)))
	return list.Data
}

// ToThreats converts up to five reports into threats. Geolocation is best
// effort: without it the report's country code and zero coordinates are used.
func (c *Client) ToThreats(ctx context.Context, reports []model.AbuseReport) []*model.Threat {
	logger := ctxlog.From(ctx)
	now := c.cfg.now()

	n := min(len(reports), maxThreats)
	threats := make([]*model.Threat, 0, n)
	for i := 0; i < n; i++ {
		report := &reports[i]

		var loc *model.GeoLocation
		if c.geo != nil && c.geo.Enabled() {
			resolved, err := c.geo.Resolve(ctx, report.IPAddress)
			if err != nil {
				logger.Debug("Geolocation failed, using report country",
					slog.String("ip", report.IPAddress),
					slog.Any("error", err),
				)
			} else {
				loc = resolved
			}
		}

		threat := &model.Threat{
			ID:          "abuseipdb-" + report.IPAddress,
			Country:     firstNonEmpty(report.CountryCode, countryName(loc), "Unknown"),
			City:        "Unknown",
			ThreatType:  Categorize(report),
			Severity:    SeverityFromScore(report.AbuseConfidenceScore),
			Timestamp:   reltime.Format(report.LastReportedAt, now),
			Source:      SourceName,
			IPAddress:   report.IPAddress,
			Description: fmt.Sprintf("Abuse confidence: %d%% | Reports: %d", report.AbuseConfidenceScore, report.TotalReports),
		}
		if loc != nil {
			threat.City = firstNonEmpty(loc.City, "Unknown")
			threat.Lat = float64(loc.Latitude)
			threat.Lng = float64(loc.Longitude)
		}

		threats = append(threats, threat)
	}
	return threats
}

// ToIncidents converts up to four reports into incidents
func (c *Client) ToIncidents(reports []model.AbuseReport) []*model.Incident {
	now := c.cfg.now()
	base := now.UnixMilli() + incidentIDOffset

	n := min(len(reports), maxIncidents)
	incidents := make([]*model.Incident, 0, n)
	for i := 0; i < n; i++ {
		report := &reports[i]

		status := types.IncidentStatusMonitoring
		if report.AbuseConfidenceScore > 95 {
			status = types.IncidentStatusContained
		}

		incidents = append(incidents, &model.Incident{
			ID:         base + int64(i),
			Title:      fmt.Sprintf("Malicious IP Activity: %s (%s)", report.IPAddress, report.CountryCode),
			Severity:   SeverityFromScore(report.AbuseConfidenceScore),
			Status:     status,
			Time:       reltime.Format(report.LastReportedAt, now),
			Confidence: report.AbuseConfidenceScore,
			Source:     SourceName,
			Details:    fmt.Sprintf("ISP: %s | Reports: %d", report.ISP, report.TotalReports),
		})
	}
	return incidents
}

// Categorize derives a threat category from a report
func Categorize(report *model.AbuseReport) string {
	switch {
	case strings.Contains(report.UsageType, "Data Center"):
		return CategoryBotnet
	case report.AbuseConfidenceScore > 90:
		return CategoryMalicious
	case report.TotalReports > 100:
		return CategoryScanning
	default:
		return CategorySuspicious
	}
}

// SeverityFromScore maps an abuse confidence score to a severity
func SeverityFromScore(score int) types.Severity {
	switch {
	case score >= 90:
		return types.SeverityCritical
	case score >= 75:
		return types.SeverityHigh
	case score >= 50:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// BlacklistURL returns the upstream URL of the blacklist API
func BlacklistURL(baseURL string, limit int) string {
	return strings.TrimRight(baseURL, "/") + "/blacklist?" + url.Values{
		"confidenceMinimum": {strconv.Itoa(BlacklistConfidenceMinimum)},
		"limit":             {strconv.Itoa(limit)},
	}.Encode()
}

func (c *Client) blacklistURL(limit int) string {
	if c.cfg.proxyBaseURL != "" {
		return c.cfg.proxyBaseURL + "/proxy?" + url.Values{
			"endpoint": {types.ProxyEndpointAbuseIPDBBlacklist.String()},
		}.Encode()
	}
	return BlacklistURL(c.cfg.baseURL, limit)
}

func (c *Client) headers() map[string]string {
	if c.cfg.proxyBaseURL != "" {
		return nil
	}
	return c.directHeaders()
}

func (c *Client) directHeaders() map[string]string {
	return map[string]string{
		APIKeyHeader: c.cfg.apiKey,
		"Accept":     "application/json",
	}
}

func countryName(loc *model.GeoLocation) string {
	if loc == nil {
		return ""
	}
	return loc.CountryName
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
