package station

import (
	"errors"

	"github.com/kelvins/geocoder"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// ErrGeocodingDisabled is returned when no geocoding API key is
// configured. Sites then stay on the default station.
var ErrGeocodingDisabled = errors.New("geocoding disabled: no API key configured")

// Resolver turns a street address into a coordinate through the Google
// geocoding API so a new site can be matched to its nearest station.
type Resolver struct {
	enabled bool
	country string
}

// NewResolver configures the shared geocoder client. An empty key
// disables resolution rather than failing site registration.
func NewResolver(apiKey string) *Resolver {
	if apiKey == "" {
		return &Resolver{}
	}
	geocoder.ApiKey = apiKey
	return &Resolver{enabled: true, country: "Australia"}
}

func (r *Resolver) Enabled() bool {
	return r.enabled
}

// Resolve geocodes a free-text address.
func (r *Resolver) Resolve(address string) (weather.Coordinate, error) {
	if !r.enabled {
		return weather.Coordinate{}, ErrGeocodingDisabled
	}

	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:  address,
		Country: r.country,
	})
	if err != nil {
		return weather.Coordinate{}, err
	}
	return weather.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}
