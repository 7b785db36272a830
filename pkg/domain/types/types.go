package types

import "github.com/m-mizutani/goerr/v2"

// DataMode selects between upstream fetches and static simulated data
type DataMode string

const (
	DataModeDemo DataMode = "demo"
	DataModeLive DataMode = "live"
)

// String returns the string representation
func (m DataMode) String() string {
	return string(m)
}

// IsLive returns true if real upstream sources should be queried
func (m DataMode) IsLive() bool {
	return m == DataModeLive
}

// ParseDataMode parses a data mode string. Empty string means demo.
func ParseDataMode(s string) (DataMode, error) {
	switch DataMode(s) {
	case DataModeLive:
		return DataModeLive, nil
	case DataModeDemo, "":
		return DataModeDemo, nil
	default:
		return "", goerr.New("invalid data mode", goerr.V("mode", s))
	}
}

// IncidentOrder decides how merged incidents are ordered before truncation
type IncidentOrder string

const (
	// IncidentOrderSource keeps the order in which sources returned incidents
	IncidentOrderSource IncidentOrder = "source"
	// IncidentOrderSeverity sorts by severity, most severe first (stable)
	IncidentOrderSeverity IncidentOrder = "severity"
)

// ParseIncidentOrder parses an incident order policy. Empty string means source.
func ParseIncidentOrder(s string) (IncidentOrder, error) {
	switch IncidentOrder(s) {
	case IncidentOrderSource, "":
		return IncidentOrderSource, nil
	case IncidentOrderSeverity:
		return IncidentOrderSeverity, nil
	default:
		return "", goerr.New("invalid incident order", goerr.V("order", s))
	}
}

// ProxyEndpoint identifies an upstream API reachable through the proxy handler
type ProxyEndpoint string

const (
	ProxyEndpointOTXPulses          ProxyEndpoint = "otx-pulses"
	ProxyEndpointAbuseIPDBBlacklist ProxyEndpoint = "abuseipdb-blacklist"
)

// String returns the string representation
func (e ProxyEndpoint) String() string {
	return string(e)
}

// IsValid checks if the endpoint is one the proxy forwards to
func (e ProxyEndpoint) IsValid() bool {
	switch e {
	case ProxyEndpointOTXPulses, ProxyEndpointAbuseIPDBBlacklist:
		return true
	default:
		return false
	}
}
