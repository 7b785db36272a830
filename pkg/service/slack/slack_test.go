package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	slackSvc "github.com/secmon-lab/threatlens/pkg/service/slack"
	"github.com/slack-go/slack"
)

func criticalThreat() *model.Threat {
	return &model.Threat{
		ID:          "t-1",
		Country:     "Unknown",
		City:        "Tor Network",
		ThreatType:  "Data Breach",
		Severity:    types.SeverityCritical,
		Timestamp:   "Just now",
		Source:      "AbuseIPDB",
		IPAddress:   "203.0.113.9",
		Description: "Abuse confidence: 100% | Reports: 42",
	}
}

type postedMessage struct {
	channel string
	text    string
	blocks  string
}

func newFakeSlack(t *testing.T, ok bool) (*httptest.Server, func() []postedMessage) {
	var mu sync.Mutex
	var posted []postedMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.True(t, strings.HasSuffix(r.URL.Path, "/chat.postMessage"))
		gt.NoError(t, r.ParseForm())

		mu.Lock()
		posted = append(posted, postedMessage{
			channel: r.FormValue("channel"),
			text:    r.FormValue("text"),
			blocks:  r.FormValue("blocks"),
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"ok": ok, "channel": r.FormValue("channel"), "ts": "1700000000.000100"}
		if !ok {
			resp["error"] = "channel_not_found"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []postedMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]postedMessage(nil), posted...)
	}
}

func TestSeverityEmoji(t *testing.T) {
	gt.Equal(t, slackSvc.SeverityEmoji(types.SeverityCritical), "🚨")
	gt.Equal(t, slackSvc.SeverityEmoji(types.SeverityLow), "ℹ️")
	gt.Equal(t, slackSvc.SeverityEmoji(types.Severity("bogus")), "❓")
}

func TestThreatBlocks(t *testing.T) {
	th := criticalThreat()
	blocks := slackSvc.ThreatBlocks(th)
	gt.A(t, blocks).Length(3)
	gt.Equal(t, blocks[0].BlockType(), slack.MBTHeader)
	gt.Equal(t, blocks[1].BlockType(), slack.MBTSection)
	gt.Equal(t, blocks[2].BlockType(), slack.MBTContext)

	section := blocks[1].(*slack.SectionBlock)
	gt.A(t, section.Fields).Length(5)
	gt.S(t, section.Fields[4].Text).Contains("203.0.113.9")

	th.IPAddress = ""
	th.Description = ""
	blocks = slackSvc.ThreatBlocks(th)
	gt.A(t, blocks).Length(2)
	gt.A(t, blocks[1].(*slack.SectionBlock).Fields).Length(4)
}

func TestThreatHeadline(t *testing.T) {
	gt.Equal(t, slackSvc.ThreatHeadline(criticalThreat()), "🚨 critical threat: Data Breach in Tor Network, Unknown")
}

func TestNotifierPostsMessage(t *testing.T) {
	srv, posted := newFakeSlack(t, true)
	svc := slackSvc.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
	notifier := slackSvc.NewNotifier(svc, "C0123")

	gt.NoError(t, notifier.NotifyThreat(context.Background(), criticalThreat()))

	msgs := posted()
	gt.A(t, msgs).Length(1)
	gt.Equal(t, msgs[0].channel, "C0123")
	gt.S(t, msgs[0].text).Contains("Data Breach")
	gt.S(t, msgs[0].blocks).Contains("Tor Network")
}

func TestNotifierReportsFailure(t *testing.T) {
	srv, _ := newFakeSlack(t, false)
	svc := slackSvc.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
	notifier := slackSvc.NewNotifier(svc, "C0123")

	gt.Error(t, notifier.NotifyThreat(context.Background(), criticalThreat()))
	gt.Error(t, notifier.NotifyThreat(context.Background(), nil))
}
