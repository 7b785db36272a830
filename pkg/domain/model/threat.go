package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// Threat is a location-tagged threat observation shown on the threat map
type Threat struct {
	ID          string         `json:"id" yaml:"id"`
	Country     string         `json:"country" yaml:"country"`
	City        string         `json:"city" yaml:"city"`
	ThreatType  string         `json:"threatType" yaml:"threat_type"`
	Severity    types.Severity `json:"severity" yaml:"severity"`
	Timestamp   string         `json:"timestamp" yaml:"timestamp"` // Relative, human readable ("5 min ago")
	Lat         float64        `json:"lat" yaml:"lat"`
	Lng         float64        `json:"lng" yaml:"lng"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty" yaml:"ip_address,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate validates the threat record
func (t *Threat) Validate() error {
	if t.ID == "" {
		return goerr.New("threat ID is required")
	}
	if !t.Severity.IsValid() {
		return goerr.New("invalid threat severity",
			goerr.V("id", t.ID),
			goerr.V("severity", t.Severity))
	}
	if !ValidCoordinates(t.Lat, t.Lng) {
		return goerr.New("threat coordinates out of range",
			goerr.V("id", t.ID),
			goerr.V("lat", t.Lat),
			goerr.V("lng", t.Lng))
	}
	return nil
}

// ValidCoordinates reports whether lat/lng are inside [-90,90] and [-180,180]
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
