package station

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// Station is a BoM observation station a site draws its weather from.
// The flat lat/lon layout matches the station assignment files exported
// by the legacy dashboard.
type Station struct {
	Name       string  `json:"station_name"`
	BomID      string  `json:"bom_id"`
	DistanceKm float64 `json:"distance_km"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (s Station) Coordinate() weather.Coordinate {
	return weather.Coordinate{Latitude: s.Lat, Longitude: s.Lon}
}

// Directory maps site names to their assigned weather station. Sites
// without an assignment use the default station, so a lookup always
// succeeds.
type Directory struct {
	mu       sync.RWMutex
	byName   map[string]Station
	fallback Station
}

func NewDirectory(fallback Station) *Directory {
	return &Directory{byName: make(map[string]Station), fallback: fallback}
}

// LoadDirectory reads a site-to-station assignment file. A missing file is
// a fresh install, not an error; every site starts on the default
// station.
func LoadDirectory(path string, fallback Station) (*Directory, error) {
	d := NewDirectory(fallback)
	if path == "" {
		return d, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	if err := json.Unmarshal(raw, &d.byName); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}
	return d, nil
}

// ForSite returns the station assigned to a site, or the default station
// when the site has none.
func (d *Directory) ForSite(siteName string) Station {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s, ok := d.byName[siteName]; ok {
		return s
	}
	return d.fallback
}

// Assign records a station for a site, replacing any previous
// assignment.
func (d *Directory) Assign(siteName string, s Station) {
	d.mu.Lock()
	d.byName[siteName] = s
	d.mu.Unlock()
}

// Remove drops a site's assignment so it reverts to the default station.
func (d *Directory) Remove(siteName string) {
	d.mu.Lock()
	delete(d.byName, siteName)
	d.mu.Unlock()
}

// Default returns the fallback station.
func (d *Directory) Default() Station {
	return d.fallback
}

// Stations returns every distinct station in use, default included,
// ordered by name. The scheduler warms the cache for each of these.
func (d *Directory) Stations() []Station {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := map[string]Station{d.fallback.Coordinate().Bucket(): d.fallback}
	for _, s := range d.byName {
		seen[s.Coordinate().Bucket()] = s
	}

	out := make([]Station, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
