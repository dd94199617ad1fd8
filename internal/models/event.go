package models

import (
	"fmt"
	"time"
)

// CalendarEvent is a provider event cached locally together with its energy impact.
type CalendarEvent struct {
	base
	UserID      string
	Provider    Provider
	CalendarID  string
	ExternalID  string
	Title       string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Category    string
	ImpactScore float64
	ImpactLevel string
}

// NewCalendarEvent creates an event row keyed by the provider's event id.
func NewCalendarEvent(userID string, provider Provider, calendarID, externalID string) *CalendarEvent {
	return &CalendarEvent{
		base:        newBase(),
		UserID:      userID,
		Provider:    provider,
		CalendarID:  calendarID,
		ExternalID:  externalID,
		Category:    "general",
		ImpactLevel: "low",
	}
}

// Duration is End-Start, never negative.
func (e *CalendarEvent) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

func (e *CalendarEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if e.ExternalID == "" {
		return fmt.Errorf("external id is required")
	}
	if e.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event %s ends before it starts", e.ExternalID)
	}
	return nil
}
