package advisor

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// Tier is the watering priority band for a site.
type Tier string

const (
	TierNoData  Tier = "no_data"
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierOptimal Tier = "optimal"
)

// Recommendation is the actionable output for one site. Moisture is nil
// when the site has no readings to predict from.
type Recommendation struct {
	Tier     Tier   `json:"tier"`
	Message  string `json:"message"`
	Moisture *int   `json:"moisture"`
	Water    int    `json:"water_litres"`
}

// litres renders water volumes with thousands separators, as crews are
// used to reading them on run sheets.
var litres = message.NewPrinter(language.English)

// Recommend classifies a site into a priority tier with a field-ready
// message. The cascade is strict less-than, top down: a moisture exactly
// on a boundary belongs to the band above it. Each call is stateless
// given (site, thresholds, snapshot, now).
func (e *Engine) Recommend(site *Site, thresholds Thresholds, snap weather.Snapshot, now time.Time) Recommendation {
	water := e.OptimalWater(site)

	if len(site.Visits) == 0 {
		return Recommendation{
			Tier:    TierNoData,
			Message: "No readings yet. Log a visit to get watering recommendations.",
			Water:   water,
		}
	}

	moisture := e.PredictMoisture(site, snap, now)

	var tier Tier
	var msg string
	switch {
	case moisture < thresholds.Critical:
		tier = TierHigh
		msg = litres.Sprintf("Critical watering needed (%dL). Soil at %d%%.", water, moisture)
	case moisture < thresholds.Medium:
		tier = TierMedium
		msg = litres.Sprintf("Watering recommended (%dL). Soil at %d%%.", water, moisture)
	case moisture < thresholds.Low:
		tier = TierLow
		msg = fmt.Sprintf("Monitor conditions. Soil at %d%%.", moisture)
	default:
		tier = TierOptimal
		msg = fmt.Sprintf("Soil optimal at %d%%. No watering needed.", moisture)
	}

	// The rain note rides along without changing the tier.
	switch rain := snap.Next24Hours; {
	case rain > 10:
		msg += fmt.Sprintf(" Heavy rain forecast (%.1fmm) - consider delaying.", rain)
	case rain > 5:
		msg += fmt.Sprintf(" Moderate rain (%.1fmm) - reduce 30%%.", rain)
	}

	return Recommendation{Tier: tier, Message: msg, Moisture: &moisture, Water: water}
}
