package slack

import (
	"fmt"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/slack-go/slack"
)

// SeverityEmoji returns the emoji shown next to a severity
func SeverityEmoji(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return "🚨"
	case types.SeverityHigh:
		return "🔴"
	case types.SeverityMedium:
		return "⚠️"
	case types.SeverityLow:
		return "ℹ️"
	default:
		return "❓"
	}
}

// ThreatHeadline is the one-line summary used as message fallback text
func ThreatHeadline(t *model.Threat) string {
	return fmt.Sprintf("%s %s threat: %s in %s, %s", SeverityEmoji(t.Severity), t.Severity, t.ThreatType, t.City, t.Country)
}

// ThreatBlocks builds the message blocks for a threat alert
func ThreatBlocks(t *model.Threat) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("%s %s", SeverityEmoji(t.Severity), t.ThreatType), true, false),
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Severity:*\n%s", t.Severity), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Location:*\n%s, %s", t.City, t.Country), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Source:*\n%s", orUnknown(t.Source)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Seen:*\n%s", t.Timestamp), false, false),
	}
	if t.IPAddress != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*IP Address:*\n`%s`", t.IPAddress), false, false))
	}

	blocks := []slack.Block{
		header,
		slack.NewSectionBlock(nil, fields, nil),
	}

	if t.Description != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, t.Description, false, false),
		))
	}

	return blocks
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
