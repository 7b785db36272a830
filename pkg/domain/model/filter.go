package model

import (
	"strings"

	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// ThreatFilter narrows a threat list by free-text search and severity
type ThreatFilter struct {
	Search   string
	Severity types.Severity // Empty matches all severities
}

// Match returns true if the threat satisfies every filter condition. Search is
// case-insensitive over type, source, description, country, city and IP.
func (f ThreatFilter) Match(t *Threat) bool {
	if t == nil {
		return false
	}
	if f.Severity != "" && t.Severity != f.Severity {
		return false
	}

	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}

	for _, field := range []string{t.ThreatType, t.Source, t.Description, t.Country, t.City, t.IPAddress} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Apply returns the threats matching the filter, preserving order
func (f ThreatFilter) Apply(threats []*Threat) []*Threat {
	result := make([]*Threat, 0, len(threats))
	for _, t := range threats {
		if f.Match(t) {
			result = append(result, t)
		}
	}
	return result
}
