package advisor

import "math"

// NominalWater is the volume implied by the planting schedule alone:
// every tree, tube and square metre of turf at its standard rate.
func NominalWater(site *Site) float64 {
	return float64(site.Trees)*site.TreesLitres +
		float64(site.Tubestock)*site.TubestockLitres +
		site.TurfM2*site.TurfLitres
}

// OptimalWater adjusts the nominal volume by how moisture has responded
// to past watering. Fewer than three visits is not enough signal, so the
// nominal volume stands. Otherwise the positive moisture gains between
// recent consecutive visits are averaged: gains under 5 points mean the
// site sheds most of what it gets, so the volume is cut 15%; gains over
// 15 points mean it can absorb more, so the volume grows 10%.
func (e *Engine) OptimalWater(site *Site) int {
	nominal := NominalWater(site)
	if len(site.Visits) < 3 {
		return roundLitres(nominal)
	}

	recent := site.RecentVisits(5)
	var sum float64
	var n int
	for i := 1; i < len(recent); i++ {
		gain := recent[i].Moisture - recent[i-1].Moisture
		if gain > 0 {
			sum += gain
			n++
		}
	}
	if n == 0 {
		return roundLitres(nominal)
	}

	switch avg := sum / float64(n); {
	case avg < 5:
		return roundLitres(nominal * 0.85)
	case avg > 15:
		return roundLitres(nominal * 1.10)
	}
	return roundLitres(nominal)
}

func roundLitres(v float64) int {
	return int(math.Round(v))
}
