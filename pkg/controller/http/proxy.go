package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/metrics"
	"github.com/secmon-lab/threatlens/pkg/service/abuseipdb"
	"github.com/secmon-lab/threatlens/pkg/service/geo"
	"github.com/secmon-lab/threatlens/pkg/service/otx"
	"github.com/secmon-lab/threatlens/pkg/service/upstream"
)

const (
	// ProxyUpstreamLimit is the record limit requested by /api/proxy
	ProxyUpstreamLimit = 10

	// Cache-Control values for proxied responses
	GeolocationCacheControl = "s-maxage=3600, stale-while-revalidate"
	ProxyCacheControl       = "s-maxage=30, stale-while-revalidate"

	geolocationEndpoint = "geolocation"
)

// ProxyConfig holds the server-side API keys and upstream base URLs used by
// the proxy endpoints. Keys never leave the server.
type ProxyConfig struct {
	OTXAPIKey        string
	AbuseIPDBAPIKey  string
	IPGeoAPIKey      string
	OTXBaseURL       string
	AbuseIPDBBaseURL string
	IPGeoBaseURL     string
}

// ProxyHandler forwards whitelisted requests to threat-intel APIs with
// server-held API keys
type ProxyHandler struct {
	client *upstream.Client
	config ProxyConfig
}

// NewProxyHandler creates a new proxy handler. Empty base URLs use the
// public API defaults.
func NewProxyHandler(client *upstream.Client, config ProxyConfig) *ProxyHandler {
	config.OTXBaseURL = baseURLOr(config.OTXBaseURL, otx.DefaultBaseURL)
	config.AbuseIPDBBaseURL = baseURLOr(config.AbuseIPDBBaseURL, abuseipdb.DefaultBaseURL)
	config.IPGeoBaseURL = baseURLOr(config.IPGeoBaseURL, geo.DefaultBaseURL)

	return &ProxyHandler{
		client: client,
		config: config,
	}
}

// HandleGeolocation handles GET /api/geolocation?ip=
func (h *ProxyHandler) HandleGeolocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.reject(w, geolocationEndpoint, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := r.URL.Query().Get("ip")
	if ip == "" {
		h.reject(w, geolocationEndpoint, "Missing ip parameter", http.StatusBadRequest)
		return
	}
	addr, err := geo.ParseIP(ip)
	if err != nil {
		h.reject(w, geolocationEndpoint, "Invalid ip parameter", http.StatusBadRequest)
		return
	}

	apiURL := geo.LookupURL(h.config.IPGeoBaseURL, h.config.IPGeoAPIKey, addr.String())

	body, err := h.fetch(r, apiURL, nil)
	if err != nil {
		ctxlog.From(r.Context()).Error("Geolocation error", "error", err, "ip", addr.String())
		h.reject(w, geolocationEndpoint, "Failed to geolocate IP", http.StatusInternalServerError)
		return
	}

	h.pass(w, geolocationEndpoint, GeolocationCacheControl, body)
}

// HandleProxy handles GET /api/proxy?endpoint=
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.reject(w, "unknown", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	endpoint := types.ProxyEndpoint(r.URL.Query().Get("endpoint"))
	if endpoint == "" {
		h.reject(w, "unknown", "Missing endpoint parameter", http.StatusBadRequest)
		return
	}

	if !endpoint.IsValid() {
		h.reject(w, "unknown", "Invalid endpoint", http.StatusBadRequest)
		return
	}

	var apiURL string
	var headers map[string]string
	switch endpoint {
	case types.ProxyEndpointOTXPulses:
		apiURL = otx.PulsesURL(h.config.OTXBaseURL, ProxyUpstreamLimit)
		headers = map[string]string{
			otx.APIKeyHeader: h.config.OTXAPIKey,
		}

	case types.ProxyEndpointAbuseIPDBBlacklist:
		apiURL = abuseipdb.BlacklistURL(h.config.AbuseIPDBBaseURL, ProxyUpstreamLimit)
		headers = map[string]string{
			abuseipdb.APIKeyHeader: h.config.AbuseIPDBAPIKey,
			"Accept":               "application/json",
		}
	}

	body, err := h.fetch(r, apiURL, headers)
	if err != nil {
		ctxlog.From(r.Context()).Error("Proxy error", "error", err, "endpoint", endpoint)
		h.reject(w, string(endpoint), "Failed to fetch data from API", http.StatusInternalServerError)
		return
	}

	h.pass(w, string(endpoint), ProxyCacheControl, body)
}

// fetch retrieves the upstream body and checks that it is JSON
func (h *ProxyHandler) fetch(r *http.Request, apiURL string, headers map[string]string) ([]byte, error) {
	body, err := h.client.GetRaw(r.Context(), apiURL, headers)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, goerr.New("upstream response is not JSON",
			goerr.T(upstream.ErrTagUpstreamDecode),
			goerr.V("size", len(body)))
	}
	return body, nil
}

// pass writes the upstream body verbatim
func (h *ProxyHandler) pass(w http.ResponseWriter, endpoint, cacheControl string, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)

	metrics.ProxyRequests.WithLabelValues(endpoint, strconv.Itoa(http.StatusOK)).Inc()
}

func (h *ProxyHandler) reject(w http.ResponseWriter, endpoint, message string, status int) {
	writeError(w, goerr.New(message), status)
	metrics.ProxyRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func baseURLOr(u, fallback string) string {
	if u == "" {
		return fallback
	}
	return strings.TrimRight(u, "/")
}
