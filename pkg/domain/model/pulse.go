package model

// Pulse is an AlienVault OTX threat-intelligence report
type Pulse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Created     string      `json:"created"`
	Tags        []string    `json:"tags"`
	References  []string    `json:"references"`
	Indicators  []Indicator `json:"indicators"`
}

// Indicator is a single observable attached to a pulse
type Indicator struct {
	Type        string `json:"type"`
	Indicator   string `json:"indicator"`
	Description string `json:"description"`
}

// Indicator types carrying an IP address
const (
	IndicatorTypeIPv4 = "IPv4"
	IndicatorTypeIPv6 = "IPv6"
)

// IsIP returns true if the indicator is an IPv4 or IPv6 address
func (i Indicator) IsIP() bool {
	return i.Type == IndicatorTypeIPv4 || i.Type == IndicatorTypeIPv6
}

// IPIndicators returns IP indicators of the pulse in their original order
func (p *Pulse) IPIndicators() []Indicator {
	var result []Indicator
	for _, ind := range p.Indicators {
		if ind.IsIP() {
			result = append(result, ind)
		}
	}
	return result
}

// PulseList is the response body of OTX /pulses/subscribed
type PulseList struct {
	Results []Pulse `json:"results"`
}
