package usecase

import (
	"context"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/metrics"
)

// MaxIncidents is the number of incidents returned by GetIncidents
const MaxIncidents = 6

const (
	kindThreats   = "threats"
	kindIncidents = "incidents"

	fallbackEmpty = "empty"
	fallbackPanic = "panic"
)

// ThreatIntelConfig holds configuration for ThreatIntel use case
type ThreatIntelConfig struct {
	mode  types.DataMode
	order types.IncidentOrder
}

// ThreatIntelOption is a functional option for configuring ThreatIntel
type ThreatIntelOption func(*ThreatIntelConfig)

// WithDataMode selects demo or live data
func WithDataMode(mode types.DataMode) ThreatIntelOption {
	return func(c *ThreatIntelConfig) {
		c.mode = mode
	}
}

// WithIncidentOrder sets how concatenated incidents are ordered before truncation
func WithIncidentOrder(order types.IncidentOrder) ThreatIntelOption {
	return func(c *ThreatIntelConfig) {
		c.order = order
	}
}

// ThreatIntel aggregates threat and incident records from all configured
// sources. In live mode sources are queried in registration order and their
// results concatenated. Demo seed data is returned whenever live aggregation
// yields nothing or fails unexpectedly.
type ThreatIntel struct {
	sources []interfaces.ThreatSource
	demo    interfaces.DemoData
	config  ThreatIntelConfig
}

var _ interfaces.ThreatIntel = (*ThreatIntel)(nil)

// NewThreatIntel creates a new ThreatIntel. sources are queried in the given order.
func NewThreatIntel(demo interfaces.DemoData, sources []interfaces.ThreatSource, opts ...ThreatIntelOption) *ThreatIntel {
	config := ThreatIntelConfig{
		mode:  types.DataModeDemo,
		order: types.IncidentOrderSource,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &ThreatIntel{
		sources: sources,
		demo:    demo,
		config:  config,
	}
}

// Mode returns the configured data mode
func (u *ThreatIntel) Mode() types.DataMode {
	return u.config.mode
}

// GetThreats returns aggregated threats, falling back to the demo seed list
func (u *ThreatIntel) GetThreats(ctx context.Context) []*model.Threat {
	threats, _ := u.getThreats(ctx)
	return threats
}

// getThreats returns aggregated threats and whether they came from live
// sources. It is false for demo mode and for every fallback.
func (u *ThreatIntel) getThreats(ctx context.Context) ([]*model.Threat, bool) {
	logger := ctxlog.From(ctx)

	if !u.config.mode.IsLive() {
		logger.Debug("demo mode, returning seed threats")
		return u.demo.Threats(), false
	}

	threats, err := collect(ctx, u.sources, kindThreats, func(ctx context.Context, src interfaces.ThreatSource) []*model.Threat {
		return src.FetchThreats(ctx)
	})
	if err != nil {
		logger.Warn("threat aggregation failed, using demo data", "error", err)
		metrics.DemoFallbacks.WithLabelValues(kindThreats, fallbackPanic).Inc()
		return u.demo.Threats(), false
	}
	if len(threats) == 0 {
		logger.Warn("no threats from live sources, using demo data")
		metrics.DemoFallbacks.WithLabelValues(kindThreats, fallbackEmpty).Inc()
		return u.demo.Threats(), false
	}

	return threats, true
}

// GetIncidents returns at most MaxIncidents aggregated incidents, falling back
// to the demo seed list
func (u *ThreatIntel) GetIncidents(ctx context.Context) []*model.Incident {
	logger := ctxlog.From(ctx)

	if !u.config.mode.IsLive() {
		logger.Debug("demo mode, returning seed incidents")
		return truncate(u.demo.Incidents(), MaxIncidents)
	}

	incidents, err := collect(ctx, u.sources, kindIncidents, func(ctx context.Context, src interfaces.ThreatSource) []*model.Incident {
		return src.FetchIncidents(ctx)
	})
	if err != nil {
		logger.Warn("incident aggregation failed, using demo data", "error", err)
		metrics.DemoFallbacks.WithLabelValues(kindIncidents, fallbackPanic).Inc()
		return truncate(u.demo.Incidents(), MaxIncidents)
	}
	if len(incidents) == 0 {
		logger.Warn("no incidents from live sources, using demo data")
		metrics.DemoFallbacks.WithLabelValues(kindIncidents, fallbackEmpty).Inc()
		return truncate(u.demo.Incidents(), MaxIncidents)
	}

	if u.config.order == types.IncidentOrderSeverity {
		slices.SortStableFunc(incidents, func(a, b *model.Incident) int {
			return b.Severity.Rank() - a.Severity.Rank()
		})
	}

	return truncate(incidents, MaxIncidents)
}

// FilterThreats returns the aggregated threats matching filter
func (u *ThreatIntel) FilterThreats(ctx context.Context, filter model.ThreatFilter) []*model.Threat {
	return filter.Apply(u.GetThreats(ctx))
}

// Summary returns per-severity counts of the aggregated threats
func (u *ThreatIntel) Summary(ctx context.Context) *model.ThreatSummary {
	return model.NewThreatSummary(u.GetThreats(ctx))
}

// GenerateRandomThreat returns a randomly generated demo threat
func (u *ThreatIntel) GenerateRandomThreat() *model.Threat {
	return u.demo.RandomThreat()
}

// GenerateRandomIncident returns a randomly generated demo incident
func (u *ThreatIntel) GenerateRandomIncident() *model.Incident {
	return u.demo.RandomIncident()
}

// collect queries every enabled source in order. A panic in any source aborts
// the whole aggregation and is returned as an error.
func collect[T any](ctx context.Context, sources []interfaces.ThreatSource, kind string, fetch func(context.Context, interfaces.ThreatSource) []T) (result []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = goerr.New("panic while collecting records", goerr.V("kind", kind), goerr.V("recover", r))
		}
	}()

	logger := ctxlog.From(ctx)
	for _, src := range sources {
		if !src.Enabled() {
			logger.Debug("source disabled, skipping", "source", src.Name(), "kind", kind)
			metrics.SourceFetches.WithLabelValues(src.Name(), kind, metrics.ResultDisabled).Inc()
			continue
		}

		records := fetch(ctx, src)
		logger.Debug("source fetched", "source", src.Name(), "kind", kind, "count", len(records))
		metrics.SourceRecords.WithLabelValues(src.Name(), kind).Add(float64(len(records)))
		result = append(result, records...)
	}

	return result, nil
}

func truncate[T any](list []T, n int) []T {
	if len(list) > n {
		return list[:n]
	}
	return list
}
