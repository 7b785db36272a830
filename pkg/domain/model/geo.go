package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// GeoLocation is the subset of the ipgeolocation.io response used for threats
type GeoLocation struct {
	IP          string     `json:"ip"`
	CountryName string     `json:"country_name"`
	CountryCode string     `json:"country_code2"`
	City        string     `json:"city"`
	Latitude    Coordinate `json:"latitude"`
	Longitude   Coordinate `json:"longitude"`
	TimeZone    struct {
		Name string `json:"name"`
	} `json:"time_zone"`
}

// Validate checks that coordinates are within range
func (g *GeoLocation) Validate() error {
	if !ValidCoordinates(float64(g.Latitude), float64(g.Longitude)) {
		return goerr.New("geolocation coordinates out of range",
			goerr.V("ip", g.IP),
			goerr.V("latitude", g.Latitude),
			goerr.V("longitude", g.Longitude))
	}
	return nil
}

// Coordinate is a latitude or longitude. ipgeolocation.io encodes them as
// strings while other providers use numbers, so both are accepted.
type Coordinate float64

// UnmarshalJSON implements json.Unmarshaler
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*c = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return goerr.Wrap(err, "failed to decode coordinate string")
		}
		raw = s
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid coordinate", goerr.V("value", raw))
	}
	*c = Coordinate(v)
	return nil
}
