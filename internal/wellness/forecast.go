package wellness

import (
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/teambition/rrule-go"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the number of calendar days in the range.
func (r Range) Days() int { return daysBetween(r.Start, r.End) + 1 }

// Contains reports whether the calendar date of t lies in the range.
func (r Range) Contains(t time.Time) bool {
	d := date(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// FertileWindow is the span around an expected ovulation.
type FertileWindow struct {
	Range
	Ovulation time.Time `json:"ovulation"`
}

// Forecast holds projected periods and fertile windows.
type Forecast struct {
	From    time.Time       `json:"from"`
	Periods []Range         `json:"periods"`
	Fertile []FertileWindow `json:"fertile_windows"`
}

// fertileLead is the number of days before ovulation counted as fertile.
const fertileLead = 5

// cycleStarts returns up to n+1 cycle start dates beginning with the cycle that contains from.
func cycleStarts(params *models.CycleParams, from time.Time, n int) ([]time.Time, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: forecast count must be positive, got %d", shared.ErrInvalidInput, n)
	}

	current := PhaseOn(params, from)
	first := current.Date.AddDate(0, 0, -(current.Day - 1))

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: params.CycleLength,
		Dtstart:  first,
		Count:    n + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build cycle recurrence: %w", err)
	}
	return rule.All(), nil
}

// ForecastPeriods projects the next n periods that have not ended before from.
func ForecastPeriods(params *models.CycleParams, from time.Time, n int) ([]Range, error) {
	starts, err := cycleStarts(params, from, n)
	if err != nil {
		return nil, err
	}

	from = date(from)
	periods := make([]Range, 0, n)
	for _, start := range starts {
		r := Range{Start: start, End: start.AddDate(0, 0, params.PeriodLength-1)}
		if r.End.Before(from) {
			continue
		}
		if len(periods) == n {
			break
		}
		periods = append(periods, r)
	}
	return periods, nil
}

// FertileWindows projects the next n fertile windows that have not ended before from.
// A window runs from five days before the expected ovulation to the day after it.
func FertileWindows(params *models.CycleParams, from time.Time, n int) ([]FertileWindow, error) {
	starts, err := cycleStarts(params, from, n)
	if err != nil {
		return nil, err
	}

	from = date(from)
	windows := make([]FertileWindow, 0, n)
	for _, start := range starts {
		ovulation := start.AddDate(0, 0, params.OvulationDay()-1)
		w := FertileWindow{
			Range:     Range{Start: ovulation.AddDate(0, 0, -fertileLead), End: ovulation.AddDate(0, 0, 1)},
			Ovulation: ovulation,
		}
		if w.End.Before(from) {
			continue
		}
		if len(windows) == n {
			break
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// NewForecast projects n periods and fertile windows from the given date.
func NewForecast(params *models.CycleParams, from time.Time, n int) (*Forecast, error) {
	periods, err := ForecastPeriods(params, from, n)
	if err != nil {
		return nil, err
	}

	fertile, err := FertileWindows(params, from, n)
	if err != nil {
		return nil, err
	}
	return &Forecast{From: date(from), Periods: periods, Fertile: fertile}, nil
}
