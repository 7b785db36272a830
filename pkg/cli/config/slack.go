package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	slackSvc "github.com/secmon-lab/threatlens/pkg/service/slack"
	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds configuration of the critical threat notifier
type Slack struct {
	OAuthToken string
	Channel    string
	APIURL     string
}

// Flags returns CLI flags for Slack configuration
func (s *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack bot token used to post critical threats",
			Category:    "Slack",
			Sources:     cli.EnvVars("THREATLENS_SLACK_OAUTH_TOKEN"),
			Destination: &s.OAuthToken,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID receiving critical threats",
			Category:    "Slack",
			Sources:     cli.EnvVars("THREATLENS_SLACK_CHANNEL"),
			Destination: &s.Channel,
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Slack Web API base URL (default: https://slack.com/api/)",
			Category:    "Slack",
			Sources:     cli.EnvVars("THREATLENS_SLACK_API_URL"),
			Destination: &s.APIURL,
		},
	}
}

// Configure creates the notifier. It returns nil when Slack is not
// configured.
func (s *Slack) Configure(ctx context.Context) (interfaces.ThreatNotifier, error) {
	logger := ctxlog.From(ctx)

	if s.OAuthToken == "" && s.Channel == "" {
		logger.Info("Slack not configured - critical threats will not be notified")
		return nil, nil
	}
	if !s.IsConfigured() {
		return nil, goerr.New("both slack-oauth-token and slack-channel are required",
			goerr.V("has_oauth_token", s.OAuthToken != ""),
			goerr.V("has_channel", s.Channel != ""),
		)
	}

	var opts []slack.Option
	if s.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(s.APIURL))
	}
	svc := slackSvc.New(s.OAuthToken, opts...)

	// Reject a bad token at startup instead of on the first critical threat
	auth, err := svc.AuthTestContext(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to verify slack-oauth-token")
	}

	logger.Info("Configuring Slack notifier",
		"channel", s.Channel,
		"team", auth.Team,
		"bot_user", auth.User,
	)
	return slackSvc.NewNotifier(svc, s.Channel), nil
}

// IsConfigured checks if Slack is properly configured for notifications
func (s *Slack) IsConfigured() bool {
	return s.OAuthToken != "" && s.Channel != ""
}

// LogValue returns structured log value
func (s Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("has_oauth_token", s.OAuthToken != ""),
		slog.String("channel", s.Channel),
		slog.String("api_url", s.APIURL),
	)
}
