package model_test

import (
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

func TestThreatValidate(t *testing.T) {
	valid := func() *model.Threat {
		return &model.Threat{
			ID:         "t-1",
			Country:    "Russia",
			City:       "Moscow",
			ThreatType: "DDoS Attack",
			Severity:   types.SeverityHigh,
			Timestamp:  "2 min ago",
			Lat:        55.7558,
			Lng:        37.6176,
		}
	}

	t.Run("valid threat", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})

	t.Run("error when ID is empty", func(t *testing.T) {
		th := valid()
		th.ID = ""
		gt.Error(t, th.Validate())
	})

	t.Run("error when severity is unknown", func(t *testing.T) {
		th := valid()
		th.Severity = "severe"
		gt.Error(t, th.Validate())
	})

	t.Run("error when latitude is out of range", func(t *testing.T) {
		th := valid()
		th.Lat = 91
		gt.Error(t, th.Validate())
	})

	t.Run("error when longitude is out of range", func(t *testing.T) {
		th := valid()
		th.Lng = -180.5
		gt.Error(t, th.Validate())
	})

	t.Run("boundary coordinates are accepted", func(t *testing.T) {
		th := valid()
		th.Lat = -90
		th.Lng = 180
		gt.NoError(t, th.Validate())
	})
}

func TestThreatJSON(t *testing.T) {
	th := model.Threat{
		ID:         "abuseipdb-1.2.3.4",
		Country:    "US",
		City:       "Unknown",
		ThreatType: "Botnet Activity",
		Severity:   types.SeverityCritical,
		Timestamp:  "Just now",
	}

	raw, err := json.Marshal(th)
	gt.NoError(t, err)

	var m map[string]any
	gt.NoError(t, json.Unmarshal(raw, &m))
	gt.Equal(t, m["threatType"], any("Botnet Activity"))
	gt.Equal(t, m["severity"], any("critical"))

	// optional fields are omitted when empty
	_, hasIP := m["ipAddress"]
	gt.False(t, hasIP)
	_, hasSource := m["source"]
	gt.False(t, hasSource)
}

func TestIncidentValidate(t *testing.T) {
	valid := func() *model.Incident {
		return &model.Incident{
			ID:         1,
			Title:      "AI-Detected DDoS Attack Vector",
			Severity:   types.SeverityHigh,
			Status:     types.IncidentStatusAutoMitigating,
			Time:       "2 min ago",
			Confidence: 98,
		}
	}

	gt.NoError(t, valid().Validate())

	t.Run("error when title is empty", func(t *testing.T) {
		inc := valid()
		inc.Title = ""
		gt.Error(t, inc.Validate())
	})

	t.Run("error when status is unknown", func(t *testing.T) {
		inc := valid()
		inc.Status = "open"
		gt.Error(t, inc.Validate())
	})

	t.Run("error when confidence is above 100", func(t *testing.T) {
		inc := valid()
		inc.Confidence = 101
		gt.Error(t, inc.Validate())
	})
}
