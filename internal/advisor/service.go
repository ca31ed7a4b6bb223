package advisor

import (
	"context"
	"sync"
	"time"

	"github.com/uvsolutions/irrigation-advisor/internal/station"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// WeatherSource is the slice of the weather cache the advisor reads.
type WeatherSource interface {
	Snapshot(ctx context.Context, siteID string, coord weather.Coordinate, now time.Time) (weather.Snapshot, bool)
}

// StationSource maps sites to their weather stations.
type StationSource interface {
	ForSite(siteName string) station.Station
}

// Observer is notified as recommendations are issued. Nil disables
// reporting.
type Observer interface {
	RecommendationIssued(tier Tier)
}

// SiteReport is the full advisory for one site: the recommendation plus
// the diagnostics shown alongside it. DaysUntilCritical is nil for
// sites with no visit history.
type SiteReport struct {
	SiteID            string           `json:"site_id"`
	SiteName          string           `json:"site_name"`
	Station           station.Station  `json:"station"`
	Weather           weather.Snapshot `json:"weather"`
	UsedFallback      bool             `json:"weather_fallback"`
	Recommendation    Recommendation   `json:"recommendation"`
	DaysUntilCritical *int             `json:"days_until_critical"`
}

// Service runs the advisory pipeline: resolve the site's station, read
// weather through the cache, run the engine. It holds no per-site state.
type Service struct {
	engine   *Engine
	weather  WeatherSource
	stations StationSource
	obs      Observer
}

func NewService(engine *Engine, weatherSrc WeatherSource, stations StationSource, obs Observer) *Service {
	return &Service{engine: engine, weather: weatherSrc, stations: stations, obs: obs}
}

// ForSite produces the advisory for one site.
func (s *Service) ForSite(ctx context.Context, site *Site, thresholds Thresholds, now time.Time) SiteReport {
	st := s.stations.ForSite(site.Name)
	snap, usedFallback := s.weather.Snapshot(ctx, site.ID, st.Coordinate(), now)

	rec := s.engine.Recommend(site, thresholds, snap, now)

	report := SiteReport{
		SiteID:         site.ID,
		SiteName:       site.Name,
		Station:        st,
		Weather:        snap,
		UsedFallback:   usedFallback,
		Recommendation: rec,
	}
	if days, ok := s.engine.DaysUntilCritical(site, thresholds, snap, now); ok {
		report.DaysUntilCritical = &days
	}

	if s.obs != nil {
		s.obs.RecommendationIssued(rec.Tier)
	}
	return report
}

// ForAll produces advisories for every site concurrently. Sites sharing
// a station collapse onto one outbound fetch through the cache. Report
// order matches input order.
func (s *Service) ForAll(ctx context.Context, sites []*Site, thresholds Thresholds, now time.Time) []SiteReport {
	reports := make([]SiteReport, len(sites))
	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(i int, site *Site) {
			defer wg.Done()
			reports[i] = s.ForSite(ctx, site, thresholds, now)
		}(i, site)
	}
	wg.Wait()
	return reports
}
