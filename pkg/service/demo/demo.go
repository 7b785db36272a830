package demo

import (
	"context"
	_ "embed"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/utils/reltime"
	"gopkg.in/yaml.v3"
)

// SourceName is the label attached to demo records
const SourceName = "Demo"

//go:embed seed.yaml
var defaultSeed []byte

// Location is a fixed place random threats are attributed to
type Location struct {
	Country string
	City    string
	Lat     float64
	Lng     float64
}

// ThreatTypes used by RandomThreat
var ThreatTypes = []string{
	"DDoS Attack",
	"Malware",
	"Phishing",
	"Port Scan",
	"Data Breach",
	"Ransomware",
	"Botnet Activity",
}

// IncidentTitles used by RandomIncident
var IncidentTitles = []string{
	"AI-Detected DDoS Attack Vector",
	"ML Anomaly: Unusual Login Pattern",
	"Neural Net Alert: Port Scan Activity",
	"AI Signature: Advanced Malware Detected",
	"Zero-Day Exploit Detected",
	"Suspicious Outbound Traffic",
	"Credential Stuffing Attempt",
	"SQL Injection Blocked",
}

const (
	minConfidence   = 70
	confidenceRange = 30
)

// Seed is the static data set served in demo mode and as live-mode fallback
type Seed struct {
	Threats   []*model.Threat   `yaml:"threats"`
	Incidents []*model.Incident `yaml:"incidents"`
}

// Locations returns the distinct places of the seed threats in seed order
func (s *Seed) Locations() []Location {
	var locations []Location
	seen := make(map[Location]struct{}, len(s.Threats))
	for _, t := range s.Threats {
		loc := Location{Country: t.Country, City: t.City, Lat: t.Lat, Lng: t.Lng}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		locations = append(locations, loc)
	}
	return locations
}

// Validate validates every seed record. Both lists must be non-empty, since
// the seed is the last resort when no source produced anything.
func (s *Seed) Validate() error {
	if len(s.Threats) == 0 {
		return goerr.New("demo seed has no threats")
	}
	if len(s.Incidents) == 0 {
		return goerr.New("demo seed has no incidents")
	}
	for i, t := range s.Threats {
		if err := t.Validate(); err != nil {
			return goerr.Wrap(err, "invalid seed threat", goerr.V("index", i))
		}
	}
	for i, inc := range s.Incidents {
		if err := inc.Validate(); err != nil {
			return goerr.Wrap(err, "invalid seed incident", goerr.V("index", i))
		}
	}
	return nil
}

// ParseSeed decodes and validates a YAML seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse demo seed YAML")
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// LoadSeedFile reads a seed from a YAML file
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read demo seed file", goerr.V("path", path))
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid demo seed file", goerr.V("path", path))
	}
	return seed, nil
}

// DefaultSeed returns the built-in seed
func DefaultSeed() *Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic("embedded demo seed is invalid: " + err.Error())
	}
	return seed
}

// Option is a functional option for configuring Provider
type Option func(*Provider)

// WithSeed replaces the built-in seed
func WithSeed(seed *Seed) Option {
	return func(p *Provider) {
		p.seed = seed
	}
}

// WithRand sets the random source used by the generators
func WithRand(r *rand.Rand) Option {
	return func(p *Provider) {
		p.rng = r
	}
}

// WithClock replaces the clock used for generated incident IDs
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider supplies static fallback records and random records for the
// simulated live feed
type Provider struct {
	seed      *Seed
	locations []Location
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

var (
	_ interfaces.ThreatSource = (*Provider)(nil)
	_ interfaces.DemoData     = (*Provider)(nil)
)

// New creates a demo data provider
func New(opts ...Option) *Provider {
	p := &Provider{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.seed == nil {
		p.seed = DefaultSeed()
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p.locations = p.seed.Locations()
	return p
}

// Threats returns a copy of the seed threats
func (p *Provider) Threats() []*model.Threat {
	result := make([]*model.Threat, len(p.seed.Threats))
	for i, t := range p.seed.Threats {
		c := *t
		result[i] = &c
	}
	return result
}

// Incidents returns a copy of the seed incidents
func (p *Provider) Incidents() []*model.Incident {
	result := make([]*model.Incident, len(p.seed.Incidents))
	for i, inc := range p.seed.Incidents {
		c := *inc
		result[i] = &c
	}
	return result
}

// Locations returns the places random threats are attributed to. They are
// the distinct locations of the seed threats.
func (p *Provider) Locations() []Location {
	return append([]Location(nil), p.locations...)
}

// RandomThreat generates a threat at one of the seed threat locations
func (p *Provider) RandomThreat() *model.Threat {
	p.mu.Lock()
	loc := Location{Country: "Unknown", City: "Unknown"}
	if len(p.locations) > 0 {
		loc = p.locations[p.rng.IntN(len(p.locations))]
	}
	threatType := ThreatTypes[p.rng.IntN(len(ThreatTypes))]
	severity := types.AllSeverities[p.rng.IntN(len(types.AllSeverities))]
	p.mu.Unlock()

	return &model.Threat{
		ID:         uuid.NewString(),
		Country:    loc.Country,
		City:       loc.City,
		ThreatType: threatType,
		Severity:   severity,
		Timestamp:  reltime.JustNow,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		Source:     SourceName,
	}
}

// RandomIncident generates an incident with confidence in [70, 99]
func (p *Provider) RandomIncident() *model.Incident {
	p.mu.Lock()
	title := IncidentTitles[p.rng.IntN(len(IncidentTitles))]
	severity := types.AllSeverities[p.rng.IntN(len(types.AllSeverities))]
	status := types.AllIncidentStatuses[p.rng.IntN(len(types.AllIncidentStatuses))]
	confidence := minConfidence + p.rng.IntN(confidenceRange)
	p.mu.Unlock()

	return &model.Incident{
		ID:         p.now().UnixMilli(),
		Title:      title,
		Severity:   severity,
		Status:     status,
		Time:       reltime.JustNow,
		Confidence: confidence,
		Source:     SourceName,
	}
}

// Name implements interfaces.ThreatSource
func (p *Provider) Name() string {
	return "demo"
}

// Enabled implements interfaces.ThreatSource. Demo data is always available.
func (p *Provider) Enabled() bool {
	return true
}

// FetchThreats implements interfaces.ThreatSource
func (p *Provider) FetchThreats(ctx context.Context) []*model.Threat {
	return p.Threats()
}

// FetchIncidents implements interfaces.ThreatSource
func (p *Provider) FetchIncidents(ctx context.Context) []*model.Incident {
	return p.Incidents()
}
