package healthkit

import (
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// maxPeriodGap is the largest number of days between two bleeding days that still belong to one period.
const maxPeriodGap = 2

// Period is a run of bleeding days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days counts the days in the period, inclusive.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// PeriodStarts groups bleeding days (light, medium, heavy) into periods. Spotting and
// "none" records are ignored. days must be sorted, as returned by [Parse].
func PeriodStarts(days []FlowDay) []Period {
	var periods []Period
	for _, fd := range days {
		if !fd.Flow.Bleeding() {
			continue
		}

		if n := len(periods); n > 0 && fd.Day.Sub(periods[n-1].End) <= maxPeriodGap*24*time.Hour {
			periods[n-1].End = fd.Day
			continue
		}
		periods = append(periods, Period{Start: fd.Day, End: fd.Day})
	}
	return periods
}

// EstimateParams derives cycle parameters from observed periods.
//
// Cycle length averages the gaps between consecutive starts, skipping gaps outside the
// valid range (usually an unlogged month); period length averages period durations.
// Both fall back to defaults when there is nothing to average and are clamped to valid ranges.
func EstimateParams(userID string, periods []Period) (*models.CycleParams, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no periods found in health export", shared.ErrNotFound)
	}

	last := periods[len(periods)-1]
	params := models.NewCycleParams(userID, last.Start)

	var gaps []int
	for i := 1; i < len(periods); i++ {
		gap := int(periods[i].Start.Sub(periods[i-1].Start).Hours() / 24)
		if gap >= models.MinCycleLength && gap <= models.MaxCycleLength {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) > 0 {
		params.CycleLength = clampInt(roundMean(gaps), models.MinCycleLength, models.MaxCycleLength)
	}

	lengths := make([]int, len(periods))
	for i, p := range periods {
		lengths[i] = p.Days()
	}
	params.PeriodLength = clampInt(roundMean(lengths), models.MinPeriodLength, models.MaxPeriodLength)

	// keep the period clear of the ovulation window on short cycles
	if maxPeriod := params.OvulationDay() - 2; params.PeriodLength > maxPeriod {
		params.PeriodLength = max(maxPeriod, models.MinPeriodLength)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return params, nil
}

func roundMean(vals []int) int {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(vals))))
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
