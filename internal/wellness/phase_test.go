package wellness

import (
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

func testParams() *models.CycleParams {
	return models.NewCycleParams("u1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPhaseOn(t *testing.T) {
	params := testParams()

	tc := []struct {
		name      string
		date      time.Time
		wantDay   int
		wantPhase Phase
		wantUntil int
	}{
		{name: "First Day", date: day(2024, 1, 1), wantDay: 1, wantPhase: PhaseMenstrual, wantUntil: 0},
		{name: "Last Period Day", date: day(2024, 1, 5), wantDay: 5, wantPhase: PhaseMenstrual, wantUntil: 23},
		{name: "Follicular Start", date: day(2024, 1, 6), wantDay: 6, wantPhase: PhaseFollicular, wantUntil: 22},
		{name: "Follicular End", date: day(2024, 1, 12), wantDay: 12, wantPhase: PhaseFollicular, wantUntil: 16},
		{name: "Ovulation Window Start", date: day(2024, 1, 13), wantDay: 13, wantPhase: PhaseOvulation, wantUntil: 15},
		{name: "Ovulation Window End", date: day(2024, 1, 15), wantDay: 15, wantPhase: PhaseOvulation, wantUntil: 13},
		{name: "Luteal", date: day(2024, 1, 16), wantDay: 16, wantPhase: PhaseLuteal, wantUntil: 12},
		{name: "Last Cycle Day", date: day(2024, 1, 28), wantDay: 28, wantPhase: PhaseLuteal, wantUntil: 1},
		{name: "Next Cycle", date: day(2024, 1, 29), wantDay: 1, wantPhase: PhaseMenstrual, wantUntil: 0},
		{name: "Several Cycles Later", date: day(2024, 4, 1), wantDay: 8, wantPhase: PhaseFollicular, wantUntil: 21},
		{name: "Day Before Start", date: day(2023, 12, 31), wantDay: 28, wantPhase: PhaseLuteal, wantUntil: 1},
		{name: "Whole Cycle Before Start", date: day(2023, 12, 4), wantDay: 1, wantPhase: PhaseMenstrual, wantUntil: 0},
		{name: "Clock And Zone Ignored", date: time.Date(2024, 1, 6, 23, 30, 0, 0, time.FixedZone("AEST", 10*3600)), wantDay: 6, wantPhase: PhaseFollicular, wantUntil: 22},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := PhaseOn(params, tt.date)
			if got.Day != tt.wantDay || got.Phase != tt.wantPhase || got.DaysUntilPeriod != tt.wantUntil {
				t.Errorf("PhaseOn(%s) = day %d %s (%d until period), want day %d %s (%d)",
					tt.date.Format("2006-01-02"), got.Day, got.Phase, got.DaysUntilPeriod, tt.wantDay, tt.wantPhase, tt.wantUntil)
			}
		})
	}

	t.Run("Custom Lengths", func(t *testing.T) {
		p := testParams()
		p.CycleLength = 32
		p.PeriodLength = 4
		p.LutealLength = 12

		if got := PhaseOn(p, day(2024, 1, 5)); got.Phase != PhaseFollicular {
			t.Errorf("expected follicular on day 5, got %s", got.Phase)
		}
		if got := PhaseOn(p, day(2024, 1, 20)); got.Day != 20 || got.Phase != PhaseOvulation {
			t.Errorf("expected ovulation on day 20, got day %d %s", got.Day, got.Phase)
		}
		if got := PhaseOn(p, day(2024, 2, 1)); got.Day != 32 || got.Phase != PhaseLuteal {
			t.Errorf("expected luteal day 32, got day %d %s", got.Day, got.Phase)
		}
	})
}
