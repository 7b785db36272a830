package interfaces

import (
	"context"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// ThreatSource is one provider of threat and incident records. Implementations
// never return errors: any failure degrades to an empty (or smaller) result
// and is logged by the implementation.
type ThreatSource interface {
	// Name returns a short label used in logs and metrics
	Name() string

	// Enabled reports whether the source is configured to be queried
	Enabled() bool

	// FetchThreats fetches raw records and converts them into threats
	FetchThreats(ctx context.Context) []*model.Threat

	// FetchIncidents fetches raw records and converts them into incidents
	FetchIncidents(ctx context.Context) []*model.Incident
}

// DemoData supplies the static seed records and randomly generated records
// used in demo mode and as the fallback for live mode
type DemoData interface {
	Threats() []*model.Threat
	Incidents() []*model.Incident
	RandomThreat() *model.Threat
	RandomIncident() *model.Incident
}
