package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// Incident is a security incident entry shown in the incident panel
type Incident struct {
	ID         int64                `json:"id" yaml:"id"`
	Title      string               `json:"title" yaml:"title"`
	Severity   types.Severity       `json:"severity" yaml:"severity"`
	Status     types.IncidentStatus `json:"status" yaml:"status"`
	Time       string               `json:"time" yaml:"time"` // Relative, human readable
	Confidence int                  `json:"confidence" yaml:"confidence"`
	Source     string               `json:"source,omitempty" yaml:"source,omitempty"`
	Details    string               `json:"details,omitempty" yaml:"details,omitempty"`
}

// Validate validates the incident record
func (i *Incident) Validate() error {
	if i.Title == "" {
		return goerr.New("incident title is required", goerr.V("id", i.ID))
	}
	if !i.Severity.IsValid() {
		return goerr.New("invalid incident severity",
			goerr.V("id", i.ID),
			goerr.V("severity", i.Severity))
	}
	if !i.Status.IsValid() {
		return goerr.New("invalid incident status",
			goerr.V("id", i.ID),
			goerr.V("status", i.Status))
	}
	if i.Confidence < 0 || i.Confidence > 100 {
		return goerr.New("incident confidence must be between 0 and 100",
			goerr.V("id", i.ID),
			goerr.V("confidence", i.Confidence))
	}
	return nil
}
