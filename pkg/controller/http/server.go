package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/threatlens/frontend"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
)

// Server represents the HTTP server
type Server struct {
	*http.Server
	router chi.Router
}

// ServerOption is a functional option for configuring Server
type ServerOption func(*serverConfig)

type serverConfig struct {
	frontend http.FileSystem
}

// WithFrontend serves fsys as the dashboard instead of the embedded build
func WithFrontend(fsys http.FileSystem) ServerOption {
	return func(c *serverConfig) {
		c.frontend = fsys
	}
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	addr string,
	proxy *ProxyHandler,
	intelUC interfaces.ThreatIntel,
	feedUC interfaces.Feed,
	opts ...ServerOption,
) (*Server, error) {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	router := chi.NewRouter()

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	intelHandler := NewIntelHandler(intelUC, feedUC)

	router.Get("/health", handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		// Proxy endpoints answer every method themselves (405 on non-GET)
		r.HandleFunc("/geolocation", proxy.HandleGeolocation)
		r.HandleFunc("/proxy", proxy.HandleProxy)

		r.Group(func(r chi.Router) {
			r.Use(CORS)
			for path, handler := range map[string]http.HandlerFunc{
				"/threats":          intelHandler.HandleThreats,
				"/threats/summary":  intelHandler.HandleThreatSummary,
				"/threats/random":   intelHandler.HandleRandomThreat,
				"/incidents":        intelHandler.HandleIncidents,
				"/incidents/random": intelHandler.HandleRandomIncident,
				"/feed":             intelHandler.HandleFeed,
			} {
				r.Get(path, handler)
				// Preflight is answered by CORS
				r.Options(path, func(w http.ResponseWriter, r *http.Request) {})
			}
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, goerr.New("not found"), http.StatusNotFound)
		})
	})

	// Frontend routes (serve embedded or configured filesystem)
	fsys := cfg.frontend
	if fsys == nil {
		embedded, err := frontend.GetHTTPFS()
		if err != nil {
			ctxlog.From(ctx).Warn("Failed to get embedded frontend, using fallback",
				"error", err,
			)
		}
		fsys = embedded
	}

	if fsys == nil {
		router.Get("/*", handleFallbackHome)
	} else {
		spa, err := NewSPAHandler(fsys)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create SPA handler")
		}
		ctxlog.From(ctx).Info("Serving dashboard frontend")
		router.Handle("/*", spa)
	}

	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		router: router,
	}, nil
}

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "threatlens",
	}); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
	}
}

// handleFallbackHome handles the root path when the dashboard build is not embedded
func handleFallbackHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>ThreatLens</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #0f172a;
            color: #e2e8f0;
        }
        .container {
            text-align: center;
            padding: 2rem;
            border: 1px solid #334155;
            border-radius: 10px;
        }
        a {
            color: #38bdf8;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>ThreatLens</h1>
        <p>Dashboard build not embedded. The API is available:</p>
        <p><a href="/api/threats">/api/threats</a> &middot; <a href="/api/incidents">/api/incidents</a> &middot; <a href="/api/feed">/api/feed</a></p>
    </div>
</body>
</html>`)); err != nil {
		ctxlog.From(r.Context()).Error("Failed to write fallback home page", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var message string
	if goErr := goerr.Unwrap(err); goErr != nil {
		message = goErr.Error()
	} else {
		message = err.Error()
	}

	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	}); err != nil {
		// Can't get context here, so use background context
		ctxlog.From(context.Background()).Error("Failed to encode error response", "error", err)
	}
}
