package model

// AbuseReport is an AbuseIPDB record for one IP address. Blacklist entries
// carry only a subset of the fields returned by /check.
type AbuseReport struct {
	IPAddress            string `json:"ipAddress"`
	AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
	CountryCode          string `json:"countryCode"`
	UsageType            string `json:"usageType"`
	ISP                  string `json:"isp"`
	Domain               string `json:"domain"`
	TotalReports         int    `json:"totalReports"`
	LastReportedAt       string `json:"lastReportedAt"`
}

// AbuseBlacklist is the response body of AbuseIPDB /blacklist
type AbuseBlacklist struct {
	Data []AbuseReport `json:"data"`
}

// AbuseCheck is the response body of AbuseIPDB /check
type AbuseCheck struct {
	Data *AbuseReport `json:"data"`
}
