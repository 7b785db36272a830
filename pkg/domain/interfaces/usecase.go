package interfaces

import (
	"context"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// ThreatIntel is the aggregation use case consumed by the API handlers
type ThreatIntel interface {
	GetThreats(ctx context.Context) []*model.Threat
	GetIncidents(ctx context.Context) []*model.Incident
	FilterThreats(ctx context.Context, filter model.ThreatFilter) []*model.Threat
	Summary(ctx context.Context) *model.ThreatSummary
	GenerateRandomThreat() *model.Threat
	GenerateRandomIncident() *model.Incident
}

// Feed is the live threat feed use case
type Feed interface {
	List(ctx context.Context) ([]*model.Threat, error)
	Simulate(ctx context.Context) (*model.Threat, error)
}
