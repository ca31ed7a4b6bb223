package weather

import (
	"fmt"
	"math"
	"time"
)

// Purpose selects which slice of the forecast a fetch covers. The full
// purpose feeds moisture prediction and needs the trailing week; the
// forecast purpose is the lightweight series used by display callers.
type Purpose string

const (
	PurposeFull     Purpose = "full"
	PurposeForecast Purpose = "forecast"
)

// Coordinate is the geographic point a forecast is fetched for. Sites
// reference the coordinate of their nearest weather station, so several
// sites commonly share one coordinate.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Bucket returns the canonical cache key component for this coordinate.
// Four decimals is roughly 11 m, well below station spacing, so sites on
// the same station collapse onto one cache entry.
func (c Coordinate) Bucket() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Snapshot is the fixed-shape rainfall and temperature summary the
// recommendation pipeline consumes. Precipitation is millimetres rounded
// to one decimal; missing daily values count as zero. JSON keys match the
// legacy data file so saved documents stay readable.
type Snapshot struct {
	Last7Days   float64 `json:"last_7d"`  // trailing 7-day precipitation total
	Next24Hours float64 `json:"next_24h"` // today's forecast precipitation
	Next7Days   float64 `json:"next_7d"`  // next 7-day precipitation total
	Temp        float64 `json:"temp"`     // current temperature, °C
	TempMax     float64 `json:"temp_max"` // today's forecast max, °C
	TempMin     float64 `json:"temp_min"` // today's forecast min, °C
}

// DailyForecast is one day of the display strip returned by the
// lightweight fetch.
type DailyForecast struct {
	Date            time.Time `json:"date"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	TempMaxC        float64   `json:"temp_max_c"`
	TempMinC        float64   `json:"temp_min_c"`
}

// Report is what a single provider fetch yields. A full fetch fills both
// fields; a forecast-only fetch fills just Days.
type Report struct {
	Snapshot Snapshot
	Days     []DailyForecast
}

// Round1 rounds to one decimal, the precision the legacy dashboard kept
// for precipitation and temperature.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
