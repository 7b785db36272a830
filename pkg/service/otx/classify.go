package otx

import (
	"strings"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// Threat categories derived from pulse tags
const (
	CategoryDDoS       = "DDoS Attack"
	CategoryMalware    = "Malware"
	CategoryPhishing   = "Phishing"
	CategoryRansomware = "Ransomware"
	CategoryAPT        = "APT Campaign"
	CategoryPortScan   = "Port Scan"
	CategoryExploit    = "Exploit"
	CategoryBotnet     = "Botnet Activity"
	CategorySuspicious = "Suspicious Activity"
)

type keywordRule[T any] struct {
	keywords []string
	value    T
}

// Rules are evaluated in order and the first match wins. A ransomware pulse
// that is also tagged "malware" is therefore classified as Malware.
var categoryRules = []keywordRule[string]{
	{[]string{"ddos", "dos"}, CategoryDDoS},
	{[]string{"malware", "trojan"}, CategoryMalware},
	{[]string{"phishing"}, CategoryPhishing},
	{[]string{"ransomware"}, CategoryRansomware},
	{[]string{"apt", "targeted"}, CategoryAPT},
	{[]string{"scan"}, CategoryPortScan},
	{[]string{"exploit"}, CategoryExploit},
	{[]string{"botnet"}, CategoryBotnet},
}

var severityRules = []keywordRule[types.Severity]{
	{[]string{"critical", "apt", "ransomware"}, types.SeverityCritical},
	{[]string{"high", "malware", "exploit"}, types.SeverityHigh},
	{[]string{"medium", "phishing"}, types.SeverityMedium},
}

var statusRules = []keywordRule[types.IncidentStatus]{
	{[]string{"mitigated", "resolved"}, types.IncidentStatusResolved},
	{[]string{"contained"}, types.IncidentStatusContained},
	{[]string{"active", "ongoing"}, types.IncidentStatusAutoMitigating},
	{[]string{"investigating"}, types.IncidentStatusInvestigating},
}

// tagText joins tags into one lower-cased string. Keywords match as substrings
// anywhere in it, across tag boundaries.
func tagText(tags []string) string {
	return strings.ToLower(strings.Join(tags, " "))
}

func match[T any](rules []keywordRule[T], text string, fallback T) T {
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.value
			}
		}
	}
	return fallback
}

// Categorize derives a threat category from pulse tags
func Categorize(tags []string) string {
	return match(categoryRules, tagText(tags), CategorySuspicious)
}

// SeverityFromTags derives a severity from pulse tags
func SeverityFromTags(tags []string) types.Severity {
	return match(severityRules, tagText(tags), types.SeverityLow)
}

// StatusFromTags derives an incident status from pulse tags
func StatusFromTags(tags []string) types.IncidentStatus {
	return match(statusRules, tagText(tags), types.IncidentStatusMonitoring)
}

// Confidence scores how trustworthy a pulse is, from 70 up to 99
func Confidence(pulse *model.Pulse) int {
	confidence := 70

	if len(pulse.Indicators) > 10 {
		confidence += 10
	}
	if len(pulse.Indicators) > 50 {
		confidence += 10
	}
	if len(pulse.References) > 0 {
		confidence += 5
	}

	text := tagText(pulse.Tags)
	if strings.Contains(text, "verified") || strings.Contains(text, "confirmed") {
		confidence += 10
	}

	return min(99, confidence)
}
