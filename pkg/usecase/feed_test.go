package usecase_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/repository"
	"github.com/secmon-lab/threatlens/pkg/usecase"
)

type recordingNotifier struct {
	mu      sync.Mutex
	threats []*model.Threat
	ch      chan struct{}
	fail    bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan struct{}, 64)}
}

func (n *recordingNotifier) NotifyThreat(ctx context.Context, threat *model.Threat) error {
	n.mu.Lock()
	n.threats = append(n.threats, threat)
	n.mu.Unlock()
	n.ch <- struct{}{}
	if n.fail {
		return goerr.New("notify failed")
	}
	return nil
}

func (n *recordingNotifier) wait(t *testing.T, count int) []*model.Threat {
	t.Helper()
	for range count {
		select {
		case <-n.ch:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
	}
	// Ensure no extra notification arrives
	select {
	case <-n.ch:
		t.Fatal("unexpected extra notification")
	case <-time.After(50 * time.Millisecond):
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*model.Threat(nil), n.threats...)
}

func liveIntel(src *fakeSource) *usecase.ThreatIntel {
	return usecase.NewThreatIntel(newDemo(), sources(src), usecase.WithDataMode(types.DataModeLive))
}

func TestFeedRefresh(t *testing.T) {
	ctx := context.Background()
	notifier := newRecordingNotifier()
	src := &fakeSource{name: "otx", enabled: true, threats: []*model.Threat{
		threat("c1", types.SeverityCritical),
		threat("h1", types.SeverityHigh),
		threat("c2", types.SeverityCritical),
	}}

	feed, err := usecase.NewFeed(liveIntel(src), repository.NewMemory(8), usecase.WithNotifier(notifier))
	gt.NoError(t, err)

	gt.NoError(t, feed.Refresh(ctx))

	threats, err := feed.List(ctx)
	gt.NoError(t, err)
	gt.A(t, threats).Length(3)
	gt.Equal(t, threats[0].ID, "c1")

	notified := notifier.wait(t, 2)
	ids := []string{notified[0].ID, notified[1].ID}
	gt.True(t, slices.Contains(ids, "c1"))
	gt.True(t, slices.Contains(ids, "c2"))

	// A second refresh with the same data does not notify again
	gt.NoError(t, feed.Refresh(ctx))
	notifier.wait(t, 0)
}

func TestFeedRefreshDoesNotNotifyDemoData(t *testing.T) {
	ctx := context.Background()

	t.Run("demo mode", func(t *testing.T) {
		notifier := newRecordingNotifier()
		intel := usecase.NewThreatIntel(newDemo(), nil)

		feed, err := usecase.NewFeed(intel, repository.NewMemory(8), usecase.WithNotifier(notifier))
		gt.NoError(t, err)
		gt.NoError(t, feed.Refresh(ctx))

		threats, err := feed.List(ctx)
		gt.NoError(t, err)
		gt.A(t, threats).Length(5)
		gt.Equal(t, threats[0].City, "Moscow")

		// The seed holds a critical threat, which must not be alerted
		notifier.wait(t, 0)
	})

	t.Run("live sources returned nothing", func(t *testing.T) {
		notifier := newRecordingNotifier()
		src := &fakeSource{name: "otx", enabled: true}

		feed, err := usecase.NewFeed(liveIntel(src), repository.NewMemory(8), usecase.WithNotifier(notifier))
		gt.NoError(t, err)
		gt.NoError(t, feed.Refresh(ctx))

		threats, err := feed.List(ctx)
		gt.NoError(t, err)
		gt.A(t, threats).Length(5)
		notifier.wait(t, 0)
	})

	t.Run("live source panicked", func(t *testing.T) {
		notifier := newRecordingNotifier()
		src := &fakeSource{name: "otx", enabled: true, panics: true}

		feed, err := usecase.NewFeed(liveIntel(src), repository.NewMemory(8), usecase.WithNotifier(notifier))
		gt.NoError(t, err)
		gt.NoError(t, feed.Refresh(ctx))
		notifier.wait(t, 0)
	})
}

func TestFeedRefreshTruncatesToSize(t *testing.T) {
	ctx := context.Background()
	intel := usecase.NewThreatIntel(newDemo(), nil)

	feed, err := usecase.NewFeed(intel, repository.NewMemory(8), usecase.WithFeedSize(3))
	gt.NoError(t, err)
	gt.NoError(t, feed.Refresh(ctx))

	threats, err := feed.List(ctx)
	gt.NoError(t, err)
	gt.A(t, threats).Length(3)
}

func TestFeedSimulate(t *testing.T) {
	ctx := context.Background()
	intel := usecase.NewThreatIntel(newDemo(), nil)

	feed, err := usecase.NewFeed(intel, repository.NewMemory(8))
	gt.NoError(t, err)
	gt.NoError(t, feed.Refresh(ctx))

	var last *model.Threat
	for range 10 {
		last, err = feed.Simulate(ctx)
		gt.NoError(t, err)
	}

	threats, err := feed.List(ctx)
	gt.NoError(t, err)
	gt.A(t, threats).Length(8)
	gt.Equal(t, threats[0].ID, last.ID)
	gt.Equal(t, threats[0].Timestamp, "Just now")
}

func TestFeedSimulateDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	notifier := newRecordingNotifier()
	intel := usecase.NewThreatIntel(newDemo(), nil)

	feed, err := usecase.NewFeed(intel, repository.NewMemory(8), usecase.WithNotifier(notifier))
	gt.NoError(t, err)

	critical := 0
	for range 40 {
		th, err := feed.Simulate(ctx)
		gt.NoError(t, err)
		if th.Severity == types.SeverityCritical {
			critical++
		}
	}

	gt.True(t, critical > 0)
	notifier.wait(t, 0)
}

func TestFeedNotifierFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	notifier := newRecordingNotifier()
	notifier.fail = true
	src := &fakeSource{name: "otx", enabled: true, threats: []*model.Threat{
		threat("c1", types.SeverityCritical),
	}}

	feed, err := usecase.NewFeed(liveIntel(src), repository.NewMemory(8), usecase.WithNotifier(notifier))
	gt.NoError(t, err)
	gt.NoError(t, feed.Refresh(ctx))
	notifier.wait(t, 1)

	threats, err := feed.List(ctx)
	gt.NoError(t, err)
	gt.A(t, threats).Length(1)
}

func TestFeedRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	intel := usecase.NewThreatIntel(newDemo(), nil)

	feed, err := usecase.NewFeed(intel, repository.NewMemory(8),
		usecase.WithRefreshInterval(0),
		usecase.WithSimulateInterval(10*time.Millisecond),
	)
	gt.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- feed.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		threats, err := feed.List(context.Background())
		gt.NoError(t, err)
		if len(threats) == 8 && threats[0].Timestamp == "Just now" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("feed did not fill up")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
