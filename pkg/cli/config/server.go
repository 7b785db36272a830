package config

import (
	"log/slog"
	"net/http"

	controller "github.com/secmon-lab/threatlens/pkg/controller/http"
	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr        string
	FrontendDir string
}

// Flags returns CLI flags for Server configuration
func (s *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Category:    "Server",
			Value:       "localhost:8080",
			Sources:     cli.EnvVars("THREATLENS_ADDR"),
			Destination: &s.Addr,
		},
		&cli.StringFlag{
			Name:        "frontend-dir",
			Usage:       "Serve the dashboard from this directory instead of the embedded build",
			Category:    "Server",
			Sources:     cli.EnvVars("THREATLENS_FRONTEND_DIR"),
			Destination: &s.FrontendDir,
		},
	}
}

// Options returns server options derived from the configuration
func (s *Server) Options() []controller.ServerOption {
	var opts []controller.ServerOption
	if s.FrontendDir != "" {
		opts = append(opts, controller.WithFrontend(http.Dir(s.FrontendDir)))
	}
	return opts
}

// LogValue returns structured log value
func (s Server) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", s.Addr),
		slog.String("frontend_dir", s.FrontendDir),
	)
}
