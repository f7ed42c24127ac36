// Package agegrade wraps the age-grading collaborators the tabulator
// consumes as black boxes: the grade function itself and the rendering
// precision for a distance/surface.
package agegrade

import (
	"fmt"

	"raceadmin/internal/domain"
)

// Grade is a normalized performance: percent of the age/gender standard,
// the open-class equivalent time, and the factor that produced it.
type Grade struct {
	Percent           float64
	EquivalentTimeSec float64
	Factor            float64
}

// Grader computes an age-graded performance for one finish.
type Grader interface {
	Grade(age int, gender domain.Gender, distanceKM, timeSec float64) (Grade, error)
}

// PrecisionResolver returns the number of decimal places a finish time is
// rendered with for a distance and surface. Tie detection compares rendered
// values, so this indirectly controls what counts as a tie.
type PrecisionResolver interface {
	Precision(distanceKM float64, surface domain.Surface) int
}

// StandardPrecision renders track times to hundredths and everything else to
// whole seconds, matching common results-service output.
type StandardPrecision struct{}

func (StandardPrecision) Precision(_ float64, surface domain.Surface) int {
	if surface == domain.SurfaceTrack {
		return 2
	}
	return 0
}

// TableGrader is a factor-table implementation of Grader. The open standards
// and decline rates are a serviceable stand-in; the interface is the contract
// and a different table can be swapped in without touching the tabulator.
type TableGrader struct{}

func NewTableGrader() *TableGrader { return &TableGrader{} }

// Open-class standard pace in seconds per km, linearly interpolated between
// anchor distances.
var standardPace = map[domain.Gender][]struct {
	km   float64
	pace float64
}{
	domain.GenderMale: {
		{1.5, 137}, {5, 156}, {10, 160}, {21.0975, 166}, {42.195, 172},
	},
	domain.GenderFemale: {
		{1.5, 154}, {5, 173}, {10, 178}, {21.0975, 185}, {42.195, 192},
	},
}

// Per-year performance decline outside the 20-30 plateau.
const (
	plateauLow   = 20
	plateauHigh  = 30
	declineRate  = 0.007
	youthPenalty = 0.010
	minFactor    = 0.30
)

func (g *TableGrader) Grade(age int, gender domain.Gender, distanceKM, timeSec float64) (Grade, error) {
	if age <= 0 {
		return Grade{}, fmt.Errorf("age grade requires a positive age, got %d", age)
	}
	if distanceKM <= 0 || timeSec <= 0 {
		return Grade{}, fmt.Errorf("age grade requires positive distance and time")
	}
	paces, ok := standardPace[gender]
	if !ok {
		return Grade{}, fmt.Errorf("no standard table for gender %q", gender)
	}

	factor := ageFactor(age)
	standard := interpolatePace(paces, distanceKM) * distanceKM
	equivalent := timeSec * factor
	percent := standard / equivalent * 100

	return Grade{Percent: percent, EquivalentTimeSec: equivalent, Factor: factor}, nil
}

func ageFactor(age int) float64 {
	var f float64
	switch {
	case age < plateauLow:
		f = 1 - youthPenalty*float64(plateauLow-age)
	case age <= plateauHigh:
		f = 1
	default:
		f = 1 - declineRate*float64(age-plateauHigh)
	}
	if f < minFactor {
		f = minFactor
	}
	return f
}

func interpolatePace(paces []struct{ km, pace float64 }, distanceKM float64) float64 {
	if distanceKM <= paces[0].km {
		return paces[0].pace
	}
	for i := 1; i < len(paces); i++ {
		if distanceKM <= paces[i].km {
			lo, hi := paces[i-1], paces[i]
			frac := (distanceKM - lo.km) / (hi.km - lo.km)
			return lo.pace + frac*(hi.pace-lo.pace)
		}
	}
	return paces[len(paces)-1].pace
}
