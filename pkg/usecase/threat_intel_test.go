package usecase_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/service/demo"
	"github.com/secmon-lab/threatlens/pkg/usecase"
)

type fakeSource struct {
	name      string
	enabled   bool
	threats   []*model.Threat
	incidents []*model.Incident
	panics    bool
	calls     int
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return f.enabled }

func (f *fakeSource) FetchThreats(ctx context.Context) []*model.Threat {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.threats
}

func (f *fakeSource) FetchIncidents(ctx context.Context) []*model.Incident {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.incidents
}

func newDemo() *demo.Provider {
	return demo.New(demo.WithRand(rand.New(rand.NewPCG(7, 7))))
}

func threat(id string, sev types.Severity) *model.Threat {
	return &model.Threat{ID: id, Country: "X", City: "Y", ThreatType: "Malware", Severity: sev, Source: "test"}
}

func incident(id int64, sev types.Severity) *model.Incident {
	return &model.Incident{ID: id, Title: fmt.Sprintf("incident %d", id), Severity: sev, Status: types.IncidentStatusMonitoring, Confidence: 80}
}

func incidents(start int64, n int, sev types.Severity) []*model.Incident {
	var result []*model.Incident
	for i := range n {
		result = append(result, incident(start+int64(i), sev))
	}
	return result
}

func sources(s ...*fakeSource) []interfaces.ThreatSource {
	result := make([]interfaces.ThreatSource, len(s))
	for i := range s {
		result[i] = s[i]
	}
	return result
}

func TestThreatIntelDemoMode(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{name: "otx", enabled: true, threats: []*model.Threat{threat("a", types.SeverityLow)}}
	uc := usecase.NewThreatIntel(newDemo(), sources(src))

	threats := uc.GetThreats(ctx)
	gt.A(t, threats).Length(5)
	gt.Equal(t, threats[0].City, "Moscow")

	gt.A(t, uc.GetIncidents(ctx)).Length(4)
	gt.Equal(t, src.calls, 0)
}

func TestThreatIntelLiveConcatenatesInOrder(t *testing.T) {
	ctx := context.Background()
	otx := &fakeSource{name: "otx", enabled: true, threats: []*model.Threat{threat("o1", types.SeverityHigh), threat("o2", types.SeverityLow)}}
	abuse := &fakeSource{name: "abuseipdb", enabled: true, threats: []*model.Threat{threat("a1", types.SeverityCritical)}}
	uc := usecase.NewThreatIntel(newDemo(), sources(otx, abuse), usecase.WithDataMode(types.DataModeLive))

	threats := uc.GetThreats(ctx)
	gt.A(t, threats).Length(3)
	gt.Equal(t, threats[0].ID, "o1")
	gt.Equal(t, threats[1].ID, "o2")
	gt.Equal(t, threats[2].ID, "a1")
}

func TestThreatIntelLiveSkipsDisabledSources(t *testing.T) {
	ctx := context.Background()
	otx := &fakeSource{name: "otx", enabled: false, threats: []*model.Threat{threat("o1", types.SeverityHigh)}}
	abuse := &fakeSource{name: "abuseipdb", enabled: true, threats: []*model.Threat{threat("a1", types.SeverityCritical)}}
	uc := usecase.NewThreatIntel(newDemo(), sources(otx, abuse), usecase.WithDataMode(types.DataModeLive))

	threats := uc.GetThreats(ctx)
	gt.A(t, threats).Length(1)
	gt.Equal(t, threats[0].ID, "a1")
	gt.Equal(t, otx.calls, 0)
}

func TestThreatIntelLiveFallsBackWhenEmpty(t *testing.T) {
	ctx := context.Background()

	t.Run("all sources disabled", func(t *testing.T) {
		uc := usecase.NewThreatIntel(newDemo(), sources(
			&fakeSource{name: "otx"},
			&fakeSource{name: "abuseipdb"},
		), usecase.WithDataMode(types.DataModeLive))

		threats := uc.GetThreats(ctx)
		gt.A(t, threats).Length(5)
		gt.Equal(t, threats[0].Source, demo.SourceName)
		gt.A(t, uc.GetIncidents(ctx)).Length(4)
	})

	t.Run("sources return nothing", func(t *testing.T) {
		uc := usecase.NewThreatIntel(newDemo(), sources(
			&fakeSource{name: "otx", enabled: true},
		), usecase.WithDataMode(types.DataModeLive))

		gt.A(t, uc.GetThreats(ctx)).Length(5)
		gt.A(t, uc.GetIncidents(ctx)).Length(4)
	})

	t.Run("no sources registered", func(t *testing.T) {
		uc := usecase.NewThreatIntel(newDemo(), nil, usecase.WithDataMode(types.DataModeLive))
		gt.A(t, uc.GetThreats(ctx)).Length(5)
	})
}

func TestThreatIntelLiveFallsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	good := &fakeSource{name: "otx", enabled: true,
		threats:   []*model.Threat{threat("o1", types.SeverityHigh)},
		incidents: []*model.Incident{incident(1, types.SeverityHigh)},
	}
	bad := &fakeSource{name: "abuseipdb", enabled: true, panics: true}
	uc := usecase.NewThreatIntel(newDemo(), sources(good, bad), usecase.WithDataMode(types.DataModeLive))

	threats := uc.GetThreats(ctx)
	gt.A(t, threats).Length(5)
	gt.Equal(t, threats[0].Source, demo.SourceName)

	incs := uc.GetIncidents(ctx)
	gt.A(t, incs).Length(4)
	gt.Equal(t, incs[0].Title, "AI-Detected DDoS Attack Vector")
}

func TestThreatIntelIncidentsTruncated(t *testing.T) {
	ctx := context.Background()
	otx := &fakeSource{name: "otx", enabled: true, incidents: incidents(1, 5, types.SeverityLow)}
	abuse := &fakeSource{name: "abuseipdb", enabled: true, incidents: incidents(1001, 4, types.SeverityCritical)}

	t.Run("source order keeps adapter order", func(t *testing.T) {
		uc := usecase.NewThreatIntel(newDemo(), sources(otx, abuse), usecase.WithDataMode(types.DataModeLive))

		result := uc.GetIncidents(ctx)
		gt.A(t, result).Length(usecase.MaxIncidents)
		for i := range 5 {
			gt.Equal(t, result[i].ID, int64(i+1))
		}
		gt.Equal(t, result[5].ID, int64(1001))
	})

	t.Run("severity order ranks before truncation", func(t *testing.T) {
		uc := usecase.NewThreatIntel(newDemo(), sources(otx, abuse),
			usecase.WithDataMode(types.DataModeLive),
			usecase.WithIncidentOrder(types.IncidentOrderSeverity),
		)

		result := uc.GetIncidents(ctx)
		gt.A(t, result).Length(usecase.MaxIncidents)
		for i := range 4 {
			gt.Equal(t, result[i].Severity, types.SeverityCritical)
			gt.Equal(t, result[i].ID, int64(1001+i))
		}
		gt.Equal(t, result[4].ID, int64(1))
		gt.Equal(t, result[5].ID, int64(2))
	})
}

func TestThreatIntelSummaryAndFilter(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewThreatIntel(newDemo(), nil)

	summary := uc.Summary(ctx)
	gt.Equal(t, summary.Total, 5)
	gt.Equal(t, summary.Count(types.SeverityHigh), 2)
	gt.Equal(t, summary.Count(types.SeverityMedium), 1)
	gt.Equal(t, summary.Count(types.SeverityLow), 1)
	gt.Equal(t, summary.Count(types.SeverityCritical), 1)

	high := uc.FilterThreats(ctx, model.ThreatFilter{Severity: types.SeverityHigh})
	gt.A(t, high).Length(2)

	found := uc.FilterThreats(ctx, model.ThreatFilter{Search: "tor net"})
	gt.A(t, found).Length(1)
	gt.Equal(t, found[0].City, "Tor Network")

	none := uc.FilterThreats(ctx, model.ThreatFilter{Search: "pyongyang", Severity: types.SeverityLow})
	gt.A(t, none).Length(0)
}

func TestThreatIntelRandomGenerators(t *testing.T) {
	uc := usecase.NewThreatIntel(newDemo(), nil)

	th := uc.GenerateRandomThreat()
	gt.NoError(t, th.Validate())
	gt.Equal(t, th.Timestamp, "Just now")

	inc := uc.GenerateRandomIncident()
	gt.NoError(t, inc.Validate())
	gt.True(t, inc.Confidence >= 70 && inc.Confidence <= 99)
}
