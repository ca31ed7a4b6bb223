package advisor

import (
	"math"
	"time"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// DaysUntilCritical estimates how many days remain before the site's
// predicted moisture reaches the critical threshold. The second return
// is false when the site has no visits: without a baseline reading the
// question has no answer.
//
// With two or more visits the drying rate is learned from recent
// consecutive reading pairs, and a wet week ahead halves it since rain
// slows drying. When no usable rate can be learned the static soil-type
// drop rate stands in.
func (e *Engine) DaysUntilCritical(site *Site, thresholds Thresholds, snap weather.Snapshot, now time.Time) (int, bool) {
	if len(site.Visits) == 0 {
		return 0, false
	}

	current := e.PredictMoisture(site, snap, now)
	if current <= thresholds.Critical {
		return 0, true
	}
	gap := float64(current - thresholds.Critical)

	if len(site.Visits) >= 2 {
		recent := site.RecentVisits(5)
		var sum float64
		var n int
		for i := 1; i < len(recent); i++ {
			days := DaysBetween(recent[i-1].Date, recent[i].Date)
			if days <= 0 {
				// Same-day revisits carry no rate information.
				continue
			}
			sum += (recent[i-1].Moisture - recent[i].Moisture) / float64(days)
			n++
		}
		if n > 0 {
			avg := sum / float64(n)
			if snap.Next7Days > 10 {
				avg *= 0.5
			}
			if avg > 0 {
				return horizonDays(gap, avg), true
			}
		}
	}

	return horizonDays(gap, e.tables.DropRateFor(site.SoilType)), true
}

// horizonDays converts a moisture gap and a per-day drop rate into whole
// days, rounded half-up and floored at zero.
func horizonDays(gap, ratePerDay float64) int {
	d := int(math.Round(gap / ratePerDay))
	if d < 0 {
		return 0
	}
	return d
}
