package types

import "github.com/m-mizutani/goerr/v2"

// IncidentStatus represents the handling status of a security incident
type IncidentStatus string

const (
	IncidentStatusMonitoring     IncidentStatus = "monitoring"
	IncidentStatusInvestigating  IncidentStatus = "investigating"
	IncidentStatusAutoMitigating IncidentStatus = "auto-mitigating"
	IncidentStatusContained      IncidentStatus = "contained"
	IncidentStatusResolved       IncidentStatus = "resolved"
)

// AllIncidentStatuses lists every known incident status
var AllIncidentStatuses = []IncidentStatus{
	IncidentStatusMonitoring,
	IncidentStatusInvestigating,
	IncidentStatusAutoMitigating,
	IncidentStatusContained,
	IncidentStatusResolved,
}

// String returns the string representation of the status
func (s IncidentStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusMonitoring, IncidentStatusInvestigating, IncidentStatusAutoMitigating,
		IncidentStatusContained, IncidentStatusResolved:
		return true
	default:
		return false
	}
}

// ParseIncidentStatus parses an incident status string
func ParseIncidentStatus(s string) (IncidentStatus, error) {
	status := IncidentStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid incident status", goerr.V("status", s))
	}
	return status, nil
}
