package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

func threatsWith(sevs ...types.Severity) []*model.Threat {
	var threats []*model.Threat
	for i, s := range sevs {
		threats = append(threats, &model.Threat{ID: string(rune('a' + i)), Severity: s})
	}
	return threats
}

func TestNewThreatSummary(t *testing.T) {
	t.Run("counts and percentages", func(t *testing.T) {
		summary := model.NewThreatSummary(threatsWith(
			types.SeverityHigh, types.SeverityMedium, types.SeverityHigh,
			types.SeverityLow, types.SeverityCritical,
		))

		gt.Equal(t, summary.Total, 5)
		gt.A(t, summary.Levels).Length(4)
		gt.Equal(t, summary.Levels[0].Severity, types.SeverityLow)
		gt.Equal(t, summary.Levels[3].Severity, types.SeverityCritical)
		gt.Equal(t, summary.Count(types.SeverityHigh), 2)
		gt.Equal(t, summary.Levels[2].Percentage, 40)
		gt.Equal(t, summary.Levels[0].Percentage, 20)
	})

	t.Run("empty list has zero percentages", func(t *testing.T) {
		summary := model.NewThreatSummary(nil)
		gt.Equal(t, summary.Total, 0)
		gt.A(t, summary.Levels).Length(4)
		for _, l := range summary.Levels {
			gt.Equal(t, l.Count, 0)
			gt.Equal(t, l.Percentage, 0)
		}
	})

	t.Run("nil entries are skipped", func(t *testing.T) {
		summary := model.NewThreatSummary([]*model.Threat{nil, {ID: "x", Severity: types.SeverityLow}})
		gt.Equal(t, summary.Total, 1)
		gt.Equal(t, summary.Levels[0].Percentage, 100)
	})
}

func TestThreatFilter(t *testing.T) {
	threats := []*model.Threat{
		{ID: "1", ThreatType: "DDoS Attack", Severity: types.SeverityHigh, Country: "Russia", Source: "Demo"},
		{ID: "2", ThreatType: "Port Scan", Severity: types.SeverityMedium, Country: "China", Source: "AbuseIPDB"},
		{ID: "3", ThreatType: "Malware", Severity: types.SeverityHigh, Country: "Iran", Description: "Emotet loader"},
	}

	t.Run("empty filter matches everything", func(t *testing.T) {
		gt.A(t, model.ThreatFilter{}.Apply(threats)).Length(3)
	})

	t.Run("severity only", func(t *testing.T) {
		got := model.ThreatFilter{Severity: types.SeverityHigh}.Apply(threats)
		gt.A(t, got).Length(2)
		gt.Equal(t, got[0].ID, "1")
		gt.Equal(t, got[1].ID, "3")
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		got := model.ThreatFilter{Search: "abuseipdb"}.Apply(threats)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].ID, "2")
	})

	t.Run("search matches description", func(t *testing.T) {
		got := model.ThreatFilter{Search: "EMOTET"}.Apply(threats)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].ID, "3")
	})

	t.Run("search and severity combine", func(t *testing.T) {
		got := model.ThreatFilter{Search: "russia", Severity: types.SeverityMedium}.Apply(threats)
		gt.A(t, got).Length(0)
	})
}
