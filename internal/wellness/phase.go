package wellness

import (
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// Phase is a menstrual cycle phase.
type Phase string

const (
	PhaseMenstrual  Phase = "menstrual"
	PhaseFollicular Phase = "follicular"
	PhaseOvulation  Phase = "ovulation"
	PhaseLuteal     Phase = "luteal"
)

// Phases lists the phases in cycle order.
var Phases = []Phase{PhaseMenstrual, PhaseFollicular, PhaseOvulation, PhaseLuteal}

func (p Phase) String() string { return string(p) }

// CycleDay is a date placed within a cycle.
type CycleDay struct {
	Date  time.Time `json:"date"`
	Day   int       `json:"cycle_day"`
	Phase Phase     `json:"phase"`
	// DaysUntilPeriod counts the days until the next predicted period starts (0 on day 1).
	DaysUntilPeriod int `json:"days_until_period"`
}

// date drops the clock and zone of t, keeping its calendar date.
func date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b (negative when b is earlier).
func daysBetween(a, b time.Time) int {
	return int(date(b).Sub(date(a)).Hours() / 24)
}

// PhaseOn returns the cycle day and phase for the calendar date of day.
func PhaseOn(params *models.CycleParams, day time.Time) CycleDay {
	length := params.CycleLength
	if length <= 0 {
		length = models.DefaultCycleLength
	}

	offset := daysBetween(params.LastPeriodStart, day) % length
	if offset < 0 {
		offset += length
	}

	cd := CycleDay{Date: date(day), Day: offset + 1}
	cd.Phase = phaseFor(params, cd.Day)
	if offset > 0 {
		cd.DaysUntilPeriod = length - offset
	}
	return cd
}

func phaseFor(params *models.CycleParams, day int) Phase {
	ovulation := params.OvulationDay()
	switch {
	case day <= params.PeriodLength:
		return PhaseMenstrual
	case day >= ovulation-1 && day <= ovulation+1:
		return PhaseOvulation
	case day < ovulation-1:
		return PhaseFollicular
	default:
		return PhaseLuteal
	}
}
