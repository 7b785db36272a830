package slack

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Notifier posts threat alerts to a Slack channel
type Notifier struct {
	service   *Service
	channelID string
}

var _ interfaces.ThreatNotifier = (*Notifier)(nil)

// NewNotifier creates a notifier posting to channelID
func NewNotifier(service *Service, channelID string) *Notifier {
	return &Notifier{
		service:   service,
		channelID: channelID,
	}
}

// NotifyThreat posts one alert message for threat
func (n *Notifier) NotifyThreat(ctx context.Context, threat *model.Threat) error {
	if threat == nil {
		return goerr.New("threat is nil")
	}

	channel, ts, err := n.service.PostMessage(ctx, n.channelID,
		slack.MsgOptionText(ThreatHeadline(threat), false),
		slack.MsgOptionBlocks(ThreatBlocks(threat)...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to notify threat",
			goerr.V("threatID", threat.ID),
			goerr.V("channelID", n.channelID))
	}

	ctxlog.From(ctx).Info("Threat notification posted",
		"threatID", threat.ID,
		"channel", channel,
		"ts", ts,
	)
	return nil
}
