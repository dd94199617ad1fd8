package models

import (
	"fmt"
	"time"
)

const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5
	DefaultLutealLength = 14

	MinCycleLength  = 21
	MaxCycleLength  = 45
	MinPeriodLength = 2
	MaxPeriodLength = 10
	MinLutealLength = 10
	MaxLutealLength = 16
)

// CycleParams describes a user's menstrual cycle; there is one row per user.
type CycleParams struct {
	base
	UserID          string
	LastPeriodStart time.Time
	CycleLength     int
	PeriodLength    int
	LutealLength    int
}

// NewCycleParams returns params with default lengths anchored at lastStart (truncated to a date).
func NewCycleParams(userID string, lastStart time.Time) *CycleParams {
	y, m, d := lastStart.Date()
	return &CycleParams{
		base:            newBase(),
		UserID:          userID,
		LastPeriodStart: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		CycleLength:     DefaultCycleLength,
		PeriodLength:    DefaultPeriodLength,
		LutealLength:    DefaultLutealLength,
	}
}

// OvulationDay is the 1-based cycle day on which ovulation is expected.
func (c *CycleParams) OvulationDay() int {
	return c.CycleLength - c.LutealLength
}

func (c *CycleParams) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.LastPeriodStart.IsZero() {
		return fmt.Errorf("last period start is required")
	}
	if c.CycleLength < MinCycleLength || c.CycleLength > MaxCycleLength {
		return fmt.Errorf("cycle length must be between %d and %d days, got %d", MinCycleLength, MaxCycleLength, c.CycleLength)
	}
	if c.PeriodLength < MinPeriodLength || c.PeriodLength > MaxPeriodLength {
		return fmt.Errorf("period length must be between %d and %d days, got %d", MinPeriodLength, MaxPeriodLength, c.PeriodLength)
	}
	if c.LutealLength < MinLutealLength || c.LutealLength > MaxLutealLength {
		return fmt.Errorf("luteal length must be between %d and %d days, got %d", MinLutealLength, MaxLutealLength, c.LutealLength)
	}
	// the ovulation window (ovulation day ± 1) must start after the period ends
	if c.OvulationDay()-1 <= c.PeriodLength {
		return fmt.Errorf("period length %d overlaps the ovulation window for a %d day cycle", c.PeriodLength, c.CycleLength)
	}
	return nil
}
