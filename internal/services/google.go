// Google Calendar v3 implementation of [CalendarService]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const googleDateLayout = "2006-01-02"

// GoogleCalendarService implements [CalendarService] with the generated Calendar v3 client.
type GoogleCalendarService struct {
	svc *calendar.Service
}

var _ CalendarService = (*GoogleCalendarService)(nil)

// NewGoogleCalendarService creates the service over an authorized client. Extra options (such as
// [option.WithEndpoint]) are applied after the client.
func NewGoogleCalendarService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleCalendarService, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	return &GoogleCalendarService{svc: svc}, nil
}

func (g *GoogleCalendarService) Name() models.Provider { return models.ProviderGoogle }

// ListEvents expands recurring events server side and pages through the results.
func (g *GoogleCalendarService) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	call := g.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	var events []Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, err := fromGoogleEvent(calendarID, item)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, googleError("list events", err)
	}
	return events, nil
}

func (g *GoogleCalendarService) CreateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	created, err := g.svc.Events.Insert(calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, googleError("create event", err)
	}

	ev, err := fromGoogleEvent(calendarID, created)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpdateEvent patches the event so fields unknown to [Event] (attendees, reminders) survive.
func (g *GoogleCalendarService) UpdateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("%w: event id", shared.ErrMissingArgument)
	}

	updated, err := g.svc.Events.Patch(calendarID, event.ID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, googleError("update event", err)
	}

	ev, err := fromGoogleEvent(calendarID, updated)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *GoogleCalendarService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return googleError("delete event", err)
	}
	return nil
}

// Watch opens a web_hook push channel on the calendar's events collection.
func (g *GoogleCalendarService) Watch(ctx context.Context, calendarID string, req WatchRequest) (*WatchResult, error) {
	if req.ChannelID == "" || req.Address == "" {
		return nil, fmt.Errorf("%w: channel id and address are required", shared.ErrMissingArgument)
	}

	channel := &calendar.Channel{
		Id:      req.ChannelID,
		Type:    "web_hook",
		Address: req.Address,
		Token:   req.Token,
	}
	if req.TTL > 0 {
		channel.Expiration = time.Now().Add(req.TTL).UnixMilli()
	}

	resp, err := g.svc.Events.Watch(calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, googleError("watch calendar", err)
	}

	result := &WatchResult{ChannelID: resp.Id, ResourceID: resp.ResourceId}
	if resp.Expiration > 0 {
		result.Expiration = time.UnixMilli(resp.Expiration).UTC()
	}
	return result, nil
}

func (g *GoogleCalendarService) StopWatch(ctx context.Context, channel *models.WatchChannel) error {
	err := g.svc.Channels.Stop(&calendar.Channel{Id: channel.ID(), ResourceId: channel.ResourceID}).Context(ctx).Do()
	if err != nil {
		return googleError("stop channel", err)
	}
	return nil
}

func fromGoogleEvent(calendarID string, item *calendar.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		CalendarID:  calendarID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
	}

	if item.Start == nil {
		return ev, nil
	}

	var err error
	if item.Start.Date != "" {
		ev.AllDay = true
		if ev.Start, err = time.Parse(googleDateLayout, item.Start.Date); err != nil {
			return ev, fmt.Errorf("event %s: bad start date: %w", item.Id, err)
		}
		ev.End = ev.Start.AddDate(0, 0, 1)
		if item.End != nil && item.End.Date != "" {
			if ev.End, err = time.Parse(googleDateLayout, item.End.Date); err != nil {
				return ev, fmt.Errorf("event %s: bad end date: %w", item.Id, err)
			}
		}
		return ev, nil
	}

	if ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
		return ev, fmt.Errorf("event %s: bad start time: %w", item.Id, err)
	}
	ev.End = ev.Start
	if item.End != nil && item.End.DateTime != "" {
		if ev.End, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
			return ev, fmt.Errorf("event %s: bad end time: %w", item.Id, err)
		}
	}
	return ev, nil
}

func toGoogleEvent(ev Event) *calendar.Event {
	item := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}

	if ev.AllDay {
		end := ev.End
		if !end.After(ev.Start) {
			end = ev.Start.AddDate(0, 0, 1)
		}
		item.Start = &calendar.EventDateTime{Date: ev.Start.Format(googleDateLayout)}
		item.End = &calendar.EventDateTime{Date: end.Format(googleDateLayout)}
		return item
	}

	item.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
	item.End = &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	return item
}

// googleError maps a googleapi error onto the shared sentinels.
func googleError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if kind := statusError(gerr.Code); kind != nil {
			return fmt.Errorf("%w: %w: %s: %s", shared.ErrAPIRequest, kind, op, gerr.Message)
		}
		return fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, op, gerr.Code, gerr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", shared.ErrTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
