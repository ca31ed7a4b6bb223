package advisor

import (
	"encoding/json"
	"fmt"
	"time"
)

// Soil types with tuned coefficients. Unrecognized values are accepted and
// fall back to the default coefficients, so sites imported from older
// spreadsheets keep working.
type SoilType string

const (
	SoilClayLoam  SoilType = "Clay Loam"
	SoilSandyLoam SoilType = "Sandy Loam"
	SoilLoam      SoilType = "Loam"
	SoilClay      SoilType = "Clay"
	SoilSand      SoilType = "Sand"
)

// Maturity is the planting establishment stage.
type Maturity string

const (
	MaturityEstablishment Maturity = "Establishment"
	MaturityYoung         Maturity = "Young"
	MaturityMature        Maturity = "Mature"
)

// Date is a calendar day with no time component, serialized as 2006-01-02
// the way visit records have always been stored.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// DaysSince returns the whole days elapsed from the date to now,
// truncated, matching how field staff reason about "days since the last
// visit". Negative for future-dated visits.
func (d Date) DaysSince(now time.Time) int {
	return int(now.UTC().Sub(d.Time) / (24 * time.Hour))
}

// DaysBetween returns the whole days from a to b. Both are midnight-based
// so the division is exact.
func DaysBetween(a, b Date) int {
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

// MoistureReading is a single probe measurement taken during a visit.
type MoistureReading struct {
	Location string `json:"location"`
	Percent  int    `json:"percent" validate:"min=0,max=100"`
}

// Visit is one field observation. Moisture is the arithmetic mean of the
// visit's readings, fixed at creation time. Submitted visits carry at
// least one probe reading; records migrated from the legacy file may
// hold only the aggregate.
type Visit struct {
	Date       Date              `json:"date" validate:"required"`
	Readings   []MoistureReading `json:"readings,omitempty" validate:"min=1,dive"`
	Moisture   float64           `json:"moisture" validate:"min=0,max=100"`
	LaborHours float64           `json:"labor_hours,omitempty" validate:"min=0"`
	Notes      string            `json:"notes,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Equipment  string            `json:"equipment,omitempty"`
}

// AggregateReadings computes the mean moisture across probe readings.
func AggregateReadings(readings []MoistureReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var total float64
	for _, r := range readings {
		total += float64(r.Percent)
	}
	return total / float64(len(readings))
}

// Site is a managed vegetation site. Visits are kept in insertion order,
// which is chronological order; the advisor never reorders or mutates
// them.
type Site struct {
	ID       string   `json:"id"`
	Name     string   `json:"name" validate:"required"`
	Address  string   `json:"address,omitempty"`
	SoilType SoilType `json:"soil_type"`
	Maturity Maturity `json:"maturity"`

	Trees           int     `json:"trees" validate:"min=0"`
	TreesLitres     float64 `json:"trees_litres" validate:"min=0"`
	Tubestock       int     `json:"tubestock" validate:"min=0"`
	TubestockLitres float64 `json:"tubestock_litres" validate:"min=0"`
	TurfM2          float64 `json:"turf_m2" validate:"min=0"`
	TurfLitres      float64 `json:"turf_litres" validate:"min=0"`

	Visits []Visit `json:"visits"`
}

// RecentVisits returns the last n visits in chronological order.
func (s *Site) RecentVisits(n int) []Visit {
	if len(s.Visits) <= n {
		return s.Visits
	}
	return s.Visits[len(s.Visits)-n:]
}

// LastVisit returns the most recent visit, or nil when none exist.
func (s *Site) LastVisit() *Visit {
	if len(s.Visits) == 0 {
		return nil
	}
	return &s.Visits[len(s.Visits)-1]
}

// Thresholds are the moisture percentages separating priority tiers.
// They must be strictly ascending; the cross-field tags let the API
// boundary reject out-of-order updates before they reach the engine.
type Thresholds struct {
	Critical int `json:"critical" validate:"min=0,max=100,ltfield=Medium"`
	Medium   int `json:"medium" validate:"min=0,max=100,ltfield=Low"`
	Low      int `json:"low" validate:"min=0,max=100"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 25, Medium: 35, Low: 45}
}
