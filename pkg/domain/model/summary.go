package model

import (
	"math"

	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// SeverityCount holds the number and share of threats at one severity level
type SeverityCount struct {
	Severity   types.Severity `json:"severity"`
	Count      int            `json:"count"`
	Percentage int            `json:"percentage"`
}

// ThreatSummary aggregates threats by severity for the threat level cards
type ThreatSummary struct {
	Total  int             `json:"total"`
	Levels []SeverityCount `json:"levels"`
}

// NewThreatSummary counts threats per severity. Levels are always reported in
// low..critical order, including levels with zero threats. Percentages are
// rounded to the nearest integer.
func NewThreatSummary(threats []*Threat) *ThreatSummary {
	counts := make(map[types.Severity]int, len(types.AllSeverities))
	total := 0
	for _, t := range threats {
		if t == nil {
			continue
		}
		counts[t.Severity]++
		total++
	}

	summary := &ThreatSummary{Total: total}
	for _, sev := range types.AllSeverities {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(counts[sev]) * 100 / float64(total)))
		}
		summary.Levels = append(summary.Levels, SeverityCount{
			Severity:   sev,
			Count:      counts[sev],
			Percentage: pct,
		})
	}
	return summary
}

// Count returns the number of threats at the given severity
func (s *ThreatSummary) Count(sev types.Severity) int {
	for _, l := range s.Levels {
		if l.Severity == sev {
			return l.Count
		}
	}
	return 0
}
