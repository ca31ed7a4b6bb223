package advisor

// Tables hold the soil-science coefficients behind the moisture model.
// They ship with tuned defaults but can be overridden wholesale from
// configuration, so agronomists can adjust them without a release.
type Tables struct {
	Baseline       map[SoilType]float64 `json:"baseline"`
	DailyDrop      map[SoilType]float64 `json:"daily_drop"`
	MaturityAdjust map[Maturity]float64 `json:"maturity_adjust"`
}

const (
	defaultBaseline = 35
	defaultDrop     = 2.5
)

// DefaultTables returns the coefficient set tuned for Melbourne parkland
// soils.
func DefaultTables() Tables {
	return Tables{
		Baseline: map[SoilType]float64{
			SoilClayLoam:  40,
			SoilSandyLoam: 25,
			SoilLoam:      35,
			SoilClay:      45,
			SoilSand:      15,
		},
		DailyDrop: map[SoilType]float64{
			SoilClayLoam:  2,
			SoilSandyLoam: 4,
			SoilLoam:      3,
			SoilClay:      1.5,
			SoilSand:      5,
		},
		MaturityAdjust: map[Maturity]float64{
			MaturityEstablishment: -3,
			MaturityYoung:         -1,
			MaturityMature:        2,
		},
	}
}

// BaselineFor returns the resting moisture percentage assumed for a soil
// type with no visit history.
func (t Tables) BaselineFor(s SoilType) float64 {
	if v, ok := t.Baseline[s]; ok {
		return v
	}
	return defaultBaseline
}

// DropRateFor returns the assumed moisture percentage lost per dry day.
func (t Tables) DropRateFor(s SoilType) float64 {
	if v, ok := t.DailyDrop[s]; ok {
		return v
	}
	return defaultDrop
}

// MaturityAdjustFor returns the moisture offset for a planting stage.
// Established plantings hold moisture better than fresh ones.
func (t Tables) MaturityAdjustFor(m Maturity) float64 {
	if v, ok := t.MaturityAdjust[m]; ok {
		return v
	}
	return 0
}
