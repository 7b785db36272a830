package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	controller "github.com/secmon-lab/threatlens/pkg/controller/http"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/service/abuseipdb"
	"github.com/secmon-lab/threatlens/pkg/service/demo"
	"github.com/secmon-lab/threatlens/pkg/service/geo"
	"github.com/secmon-lab/threatlens/pkg/service/otx"
	"github.com/secmon-lab/threatlens/pkg/service/upstream"
	"github.com/secmon-lab/threatlens/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Intel holds configuration of the threat-intel sources and the aggregator
type Intel struct {
	DataMode         string
	OTXAPIKey        string
	AbuseIPDBAPIKey  string
	IPGeoAPIKey      string
	UseProxy         bool
	Production       bool
	ProxyBaseURL     string
	OTXBaseURL       string
	AbuseIPDBBaseURL string
	IPGeoBaseURL     string
	HTTPTimeout      time.Duration
	IncidentOrder    string
	DemoSeedFile     string
}

// Flags returns CLI flags for Intel configuration
func (i *Intel) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-mode",
			Usage:       "Data mode (demo, live)",
			Category:    "Threat Intel",
			Value:       string(types.DataModeDemo),
			Sources:     cli.EnvVars("THREATLENS_DATA_MODE"),
			Destination: &i.DataMode,
		},
		&cli.StringFlag{
			Name:        "otx-api-key",
			Usage:       "AlienVault OTX API key",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_OTX_API_KEY"),
			Destination: &i.OTXAPIKey,
		},
		&cli.StringFlag{
			Name:        "abuseipdb-api-key",
			Usage:       "AbuseIPDB API key",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_ABUSEIPDB_API_KEY"),
			Destination: &i.AbuseIPDBAPIKey,
		},
		&cli.StringFlag{
			Name:        "ipgeo-api-key",
			Usage:       "ipgeolocation.io API key",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_IPGEO_API_KEY"),
			Destination: &i.IPGeoAPIKey,
		},
		&cli.BoolFlag{
			Name:        "use-proxy",
			Usage:       "Query sources through the /api proxy endpoints instead of calling them directly",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_USE_PROXY"),
			Destination: &i.UseProxy,
		},
		&cli.BoolFlag{
			Name:        "production",
			Usage:       "Production deployment (implies --use-proxy)",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_PRODUCTION"),
			Destination: &i.Production,
		},
		&cli.StringFlag{
			Name:        "proxy-base-url",
			Usage:       "Base URL of the proxy endpoints used in proxy mode",
			Category:    "Threat Intel",
			Value:       "http://localhost:8080/api",
			Sources:     cli.EnvVars("THREATLENS_PROXY_BASE_URL"),
			Destination: &i.ProxyBaseURL,
		},
		&cli.StringFlag{
			Name:        "otx-base-url",
			Usage:       "AlienVault OTX API base URL",
			Category:    "Threat Intel",
			Value:       otx.DefaultBaseURL,
			Sources:     cli.EnvVars("THREATLENS_OTX_BASE_URL"),
			Destination: &i.OTXBaseURL,
		},
		&cli.StringFlag{
			Name:        "abuseipdb-base-url",
			Usage:       "AbuseIPDB API base URL",
			Category:    "Threat Intel",
			Value:       abuseipdb.DefaultBaseURL,
			Sources:     cli.EnvVars("THREATLENS_ABUSEIPDB_BASE_URL"),
			Destination: &i.AbuseIPDBBaseURL,
		},
		&cli.StringFlag{
			Name:        "ipgeo-base-url",
			Usage:       "ipgeolocation.io API base URL",
			Category:    "Threat Intel",
			Value:       geo.DefaultBaseURL,
			Sources:     cli.EnvVars("THREATLENS_IPGEO_BASE_URL"),
			Destination: &i.IPGeoBaseURL,
		},
		&cli.DurationFlag{
			Name:        "http-timeout",
			Usage:       "Timeout of upstream API requests (0 means no timeout)",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_HTTP_TIMEOUT"),
			Destination: &i.HTTPTimeout,
		},
		&cli.StringFlag{
			Name:        "incident-order",
			Usage:       "Order of merged incidents before truncation (source, severity)",
			Category:    "Threat Intel",
			Value:       string(types.IncidentOrderSource),
			Sources:     cli.EnvVars("THREATLENS_INCIDENT_ORDER"),
			Destination: &i.IncidentOrder,
		},
		&cli.StringFlag{
			Name:        "demo-seed-file",
			Usage:       "YAML file replacing the built-in demo threats and incidents (random threats use its locations)",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("THREATLENS_DEMO_SEED_FILE"),
			Destination: &i.DemoSeedFile,
		},
	}
}

// ProxyMode returns true if sources are queried through the proxy endpoints
func (i *Intel) ProxyMode() bool {
	return i.UseProxy || i.Production
}

// Validate validates the intel configuration
func (i *Intel) Validate() error {
	if _, err := types.ParseDataMode(i.DataMode); err != nil {
		return err
	}
	if _, err := types.ParseIncidentOrder(i.IncidentOrder); err != nil {
		return err
	}
	if i.ProxyMode() && i.ProxyBaseURL == "" {
		return goerr.New("proxy-base-url is required in proxy mode")
	}
	if i.HTTPTimeout < 0 {
		return goerr.New("http-timeout must not be negative", goerr.V("timeout", i.HTTPTimeout))
	}
	return nil
}

// NewClient creates the upstream HTTP client shared by sources and proxy
func (i *Intel) NewClient() *upstream.Client {
	return upstream.New(upstream.WithTimeout(i.HTTPTimeout))
}

// Configure creates the aggregator with its demo provider and live sources
func (i *Intel) Configure(ctx context.Context, client *upstream.Client) (*usecase.ThreatIntel, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	mode, _ := types.ParseDataMode(i.DataMode)
	order, _ := types.ParseIncidentOrder(i.IncidentOrder)

	provider, err := i.configureDemo()
	if err != nil {
		return nil, err
	}

	sources := i.configureSources(client)

	logger := ctxlog.From(ctx)
	for _, src := range sources {
		logger.Info("Threat source configured",
			"source", src.Name(),
			"enabled", src.Enabled(),
			"proxy", i.ProxyMode(),
		)
	}

	return usecase.NewThreatIntel(provider, sources,
		usecase.WithDataMode(mode),
		usecase.WithIncidentOrder(order),
	), nil
}

// ProxyConfig returns the server-side configuration of the proxy endpoints
func (i *Intel) ProxyConfig() controller.ProxyConfig {
	return controller.ProxyConfig{
		OTXAPIKey:        i.OTXAPIKey,
		AbuseIPDBAPIKey:  i.AbuseIPDBAPIKey,
		IPGeoAPIKey:      i.IPGeoAPIKey,
		OTXBaseURL:       i.OTXBaseURL,
		AbuseIPDBBaseURL: i.AbuseIPDBBaseURL,
		IPGeoBaseURL:     i.IPGeoBaseURL,
	}
}

func (i *Intel) configureDemo() (*demo.Provider, error) {
	if i.DemoSeedFile == "" {
		return demo.New(), nil
	}

	seed, err := demo.LoadSeedFile(i.DemoSeedFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load demo seed file")
	}
	return demo.New(demo.WithSeed(seed)), nil
}

// configureSources builds the live sources. In proxy mode no key is handed
// to them; the proxy endpoints hold the keys instead.
func (i *Intel) configureSources(client *upstream.Client) []interfaces.ThreatSource {
	var (
		geoOpts   []geo.Option
		otxOpts   []otx.Option
		abuseOpts []abuseipdb.Option
	)

	if i.ProxyMode() {
		geoOpts = append(geoOpts, geo.WithProxy(i.ProxyBaseURL))
		otxOpts = append(otxOpts, otx.WithProxy(i.ProxyBaseURL))
		abuseOpts = append(abuseOpts, abuseipdb.WithProxy(i.ProxyBaseURL))
	} else {
		if i.IPGeoAPIKey != "" {
			geoOpts = append(geoOpts, geo.WithAPIKey(i.IPGeoAPIKey))
		}
		if i.OTXAPIKey != "" {
			otxOpts = append(otxOpts, otx.WithAPIKey(i.OTXAPIKey))
		}
		if i.AbuseIPDBAPIKey != "" {
			abuseOpts = append(abuseOpts, abuseipdb.WithAPIKey(i.AbuseIPDBAPIKey))
		}
	}

	if i.IPGeoBaseURL != "" {
		geoOpts = append(geoOpts, geo.WithBaseURL(i.IPGeoBaseURL))
	}
	if i.OTXBaseURL != "" {
		otxOpts = append(otxOpts, otx.WithBaseURL(i.OTXBaseURL))
	}
	if i.AbuseIPDBBaseURL != "" {
		abuseOpts = append(abuseOpts, abuseipdb.WithBaseURL(i.AbuseIPDBBaseURL))
	}

	resolver := geo.New(client, geoOpts...)
	return []interfaces.ThreatSource{
		otx.New(client, resolver, otxOpts...),
		abuseipdb.New(client, resolver, abuseOpts...),
	}
}

// LogValue returns structured log value
func (i Intel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_mode", i.DataMode),
		slog.Bool("proxy_mode", i.ProxyMode()),
		slog.String("proxy_base_url", i.ProxyBaseURL),
		slog.Bool("has_otx_api_key", i.OTXAPIKey != ""),
		slog.Bool("has_abuseipdb_api_key", i.AbuseIPDBAPIKey != ""),
		slog.Bool("has_ipgeo_api_key", i.IPGeoAPIKey != ""),
		slog.Duration("http_timeout", i.HTTPTimeout),
		slog.String("incident_order", i.IncidentOrder),
		slog.String("demo_seed_file", i.DemoSeedFile),
	)
}
