package geo

import (
	"context"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/metrics"
	"github.com/secmon-lab/threatlens/pkg/service/upstream"
)

const (
	// DefaultBaseURL is the ipgeolocation.io API
	DefaultBaseURL = "https://api.ipgeolocation.io"

	defaultCacheSize = 1024
	defaultCacheTTL  = time.Hour
)

// Config holds configuration for the geolocation resolver
type Config struct {
	apiKey       string
	baseURL      string
	proxyBaseURL string
	cacheSize    int
	cacheTTL     time.Duration
}

// Option is a functional option for configuring the resolver
type Option func(*Config)

// WithAPIKey sets the ipgeolocation.io API key for direct lookups
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the ipgeolocation.io base URL
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithProxy routes lookups through the /geolocation proxy endpoint under
// proxyBaseURL (e.g. "http://localhost:8080/api"). No key is sent.
func WithProxy(proxyBaseURL string) Option {
	return func(c *Config) {
		c.proxyBaseURL = strings.TrimRight(proxyBaseURL, "/")
	}
}

// WithCache sets cache size and TTL. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Config) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// Resolver resolves IP addresses via ipgeolocation.io
type Resolver struct {
	client *upstream.Client
	cfg    Config
	cache  *expirable.LRU[string, model.GeoLocation]
}

var _ interfaces.Geolocator = (*Resolver)(nil)

// New creates a new geolocation resolver
func New(client *upstream.Client, opts ...Option) *Resolver {
	cfg := Config{
		baseURL:   DefaultBaseURL,
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Resolver{
		client: client,
		cfg:    cfg,
	}
	if cfg.cacheSize > 0 {
		r.cache = expirable.NewLRU[string, model.GeoLocation](cfg.cacheSize, nil, cfg.cacheTTL)
	}
	return r
}

// Enabled returns true if either proxy mode or an API key is configured
func (r *Resolver) Enabled() bool {
	return r.cfg.proxyBaseURL != "" || r.cfg.apiKey != ""
}

// Resolve returns the location of ip
func (r *Resolver) Resolve(ctx context.Context, ip string) (*model.GeoLocation, error) {
	if !r.Enabled() {
		return nil, goerr.Wrap(model.ErrGeoDisabled, "geolocation is not configured")
	}

	addr, err := ParseIP(ip)
	if err != nil {
		return nil, err
	}
	key := addr.String()

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			metrics.GeoLookups.WithLabelValues("hit").Inc()
			geo := cached
			return &geo, nil
		}
	}

	var geo model.GeoLocation
	if err := r.client.GetJSON(ctx, r.lookupURL(key), nil, &geo); err != nil {
		metrics.GeoLookups.WithLabelValues("error").Inc()
		return nil, goerr.Wrap(err, "failed to resolve geolocation", goerr.V("ip", key))
	}
	if err := geo.Validate(); err != nil {
		metrics.GeoLookups.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.GeoLookups.WithLabelValues("miss").Inc()
	if r.cache != nil {
		r.cache.Add(key, geo)
	}
	return &geo, nil
}

func (r *Resolver) lookupURL(ip string) string {
	if r.cfg.proxyBaseURL != "" {
		return r.cfg.proxyBaseURL + "/geolocation?" + url.Values{"ip": {ip}}.Encode()
	}
	return LookupURL(r.cfg.baseURL, r.cfg.apiKey, ip)
}

// LookupURL returns the ipgeolocation.io lookup URL for ip
func LookupURL(baseURL, apiKey, ip string) string {
	return strings.TrimRight(baseURL, "/") + "/ipgeo?" + url.Values{
		"apiKey": {apiKey},
		"ip":     {ip},
	}.Encode()
}

// ParseIP validates an IPv4 or IPv6 address
func ParseIP(ip string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return netip.Addr{}, goerr.Wrap(model.ErrInvalidIP, "failed to parse IP address",
			goerr.V("ip", ip),
			goerr.V("reason", err.Error()))
	}
	return addr, nil
}
