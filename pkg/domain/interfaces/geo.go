package interfaces

import (
	"context"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// Geolocator resolves an IP address to a location
type Geolocator interface {
	// Enabled reports whether lookups can be performed at all
	Enabled() bool

	// Resolve returns the location of ip. It returns model.ErrGeoDisabled when
	// lookups are not configured.
	Resolve(ctx context.Context, ip string) (*model.GeoLocation, error)
}
