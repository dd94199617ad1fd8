package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/wellness"
)

// CreateEvent inserts event on the user's calendar and caches it with its impact.
func (e *CalendarEngine) CreateEvent(ctx context.Context, userID string, provider models.Provider, event services.Event) (*models.CalendarEvent, error) {
	if event.Title == "" {
		return nil, fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}
	if event.Start.IsZero() || event.End.Before(event.Start) {
		return nil, fmt.Errorf("%w: event needs a start before its end", shared.ErrInvalidInput)
	}

	user, err := e.stores.Users.Get(userID)
	if err != nil {
		return nil, err
	}
	cal, ts, err := e.Calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	calendarID := e.CalendarID(provider)
	var created *services.Event
	err = services.WithTokenRetry(ctx, ts, func(ctx context.Context) error {
		var err error
		created, err = cal.CreateEvent(ctx, calendarID, event)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	cycle, err := e.CycleFor(userID)
	if err != nil {
		return nil, err
	}
	loc := user.Location()
	ev := toCalendarEvent(userID, provider, calendarID, *created, loc)
	wellness.ScoreEvent(ev, phaseOn(cycle, ev.Start.In(loc)), e.LatestStress(userID), loc)

	if err := e.stores.Events.UpsertMany([]*models.CalendarEvent{ev}); err != nil {
		return nil, err
	}
	return ev, nil
}

// DeleteEvent removes the event upstream and from the cache. An event already gone
// upstream is still dropped from the cache.
func (e *CalendarEngine) DeleteEvent(ctx context.Context, userID string, provider models.Provider, externalID string) error {
	if externalID == "" {
		return fmt.Errorf("%w: event id", shared.ErrMissingArgument)
	}

	cal, ts, err := e.Calendar(ctx, userID, provider)
	if err != nil {
		return err
	}

	err = services.WithTokenRetry(ctx, ts, func(ctx context.Context) error {
		return cal.DeleteEvent(ctx, e.CalendarID(provider), externalID)
	})
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if err := e.stores.Events.Delete(userID, provider, externalID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}

// ImpactFor scores an ad-hoc event for the user without storing it.
func (e *CalendarEngine) ImpactFor(userID string, ev wellness.EventInput) (wellness.Score, error) {
	user, err := e.stores.Users.Get(userID)
	if err != nil {
		return wellness.Score{}, err
	}
	cycle, err := e.CycleFor(userID)
	if err != nil {
		return wellness.Score{}, err
	}
	loc := user.Location()
	if ev.AllDay {
		ev.Start = localDate(ev.Start, loc)
	}
	return wellness.Impact(ev, phaseOn(cycle, ev.Start.In(loc)), e.LatestStress(userID), loc), nil
}
