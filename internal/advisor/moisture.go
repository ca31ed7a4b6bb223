package advisor

import (
	"math"
	"time"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// Engine computes moisture predictions, critical horizons, water volumes
// and recommendations. It is stateless beyond its coefficient tables;
// every method is a pure function of its arguments, so a single Engine
// serves concurrent callers without coordination.
type Engine struct {
	tables Tables
}

func NewEngine(tables Tables) *Engine {
	if tables.Baseline == nil && tables.DailyDrop == nil && tables.MaturityAdjust == nil {
		tables = DefaultTables()
	}
	return &Engine{tables: tables}
}

// PredictMoisture estimates a site's current soil moisture percentage.
//
// Without visit history the estimate rests on the soil-type baseline
// shifted by the past week's rain and any imminent rain. With history it
// ages the latest reading by the soil's daily drop rate, then corrects
// for the reading trend, rain already received, rain about to arrive,
// and planting maturity. Rounded half-up and clamped to [0,100].
func (e *Engine) PredictMoisture(site *Site, snap weather.Snapshot, now time.Time) int {
	if len(site.Visits) == 0 {
		estimate := e.tables.BaselineFor(site.SoilType) + snap.Last7Days*2 - 10
		estimate += unvisitedForecastBump(snap.Next24Hours)
		return clampPercent(estimate)
	}

	last := site.LastVisit()
	elapsed := last.Date.DaysSince(now)
	estimate := last.Moisture - float64(elapsed)*e.tables.DropRateFor(site.SoilType)

	estimate += laggedRainAdjust(snap.Last7Days)
	estimate += forecastRainAdjust(snap.Next24Hours)
	estimate += moistureTrend(site.RecentVisits(5)) * 0.3
	estimate += e.tables.MaturityAdjustFor(site.Maturity)

	return clampPercent(estimate)
}

// unvisitedForecastBump nudges the baseline estimate of a never-visited
// site upward when rain is imminent.
func unvisitedForecastBump(next24h float64) float64 {
	switch {
	case next24h > 10:
		return 15
	case next24h > 5:
		return 8
	}
	return 0
}

// laggedRainAdjust credits rain the site has already received; soaked
// ground keeps reading wet for days after the event.
func laggedRainAdjust(last7d float64) float64 {
	switch {
	case last7d > 20:
		return 15
	case last7d > 10:
		return 8
	case last7d > 5:
		return 4
	}
	return 0
}

// forecastRainAdjust credits rain expected within 24 hours. Applied on
// top of the lagged term, not instead of it.
func forecastRainAdjust(next24h float64) float64 {
	switch {
	case next24h > 10:
		return 12
	case next24h > 5:
		return 6
	}
	return 0
}

// moistureTrend compares the newer half of the recent readings against
// the older half. Positive means the site has been gaining moisture.
func moistureTrend(recent []Visit) float64 {
	if len(recent) < 2 {
		return 0
	}
	mid := len(recent) / 2
	return meanMoisture(recent[mid:]) - meanMoisture(recent[:mid])
}

func meanMoisture(visits []Visit) float64 {
	var total float64
	for _, v := range visits {
		total += v.Moisture
	}
	return total / float64(len(visits))
}

// clampPercent rounds half-up to a whole percentage and pins the result
// to [0,100]. The range check runs before the round so absurd inputs
// (months since a visit, storm-scale rain totals) cannot overflow the
// conversion.
func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
