// Microsoft Graph implementation of [CalendarService]
//
// Graph resource shapes based on https://learn.microsoft.com/graph/api/resources/event
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"

	// graphDateTimeLayout is Graph's dateTimeTimeZone format (no offset, 7 fractional digits).
	graphDateTimeLayout = "2006-01-02T15:04:05.9999999"

	// Graph caps event subscriptions at 4230 minutes.
	maxGraphSubscriptionTTL = 4230 * time.Minute
)

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// GraphEvent is the subset of the Graph event resource cadence reads and writes.
type GraphEvent struct {
	ID          string         `json:"id,omitempty"`
	Subject     string         `json:"subject"`
	BodyPreview string         `json:"bodyPreview,omitempty"`
	Body        *graphBody     `json:"body,omitempty"`
	Location    *graphLocation `json:"location,omitempty"`
	Start       graphDateTime  `json:"start"`
	End         graphDateTime  `json:"end"`
	IsAllDay    bool           `json:"isAllDay"`
	IsCancelled bool           `json:"isCancelled,omitempty"`
}

type graphEventPage struct {
	Value    []GraphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// GraphSubscription is a Graph change notification subscription.
type GraphSubscription struct {
	ID                 string `json:"id,omitempty"`
	ChangeType         string `json:"changeType,omitempty"`
	NotificationURL    string `json:"notificationUrl,omitempty"`
	Resource           string `json:"resource,omitempty"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState,omitempty"`
}

// OutlookCalendarService implements [CalendarService] against Microsoft Graph v1.0.
type OutlookCalendarService struct {
	api *APIService
}

var (
	_ CalendarService = (*OutlookCalendarService)(nil)
	_ WatchRenewer    = (*OutlookCalendarService)(nil)
)

// NewOutlookCalendarService creates the service over an authorized client. An empty baseURL uses Graph v1.0.
func NewOutlookCalendarService(client *http.Client, baseURL string) *OutlookCalendarService {
	if baseURL == "" {
		baseURL = graphBaseURL
	}

	api := NewAPIService(baseURL, client).WithHeader("Prefer", `outlook.timezone="UTC"`)
	return &OutlookCalendarService{api: api}
}

func (o *OutlookCalendarService) Name() models.Provider { return models.ProviderMicrosoft }

// calendarPath returns the collection root for calendarID; "primary" and "" map to the default calendar.
func calendarPath(calendarID string) string {
	if calendarID == "" || calendarID == "primary" {
		return "/me"
	}
	return "/me/calendars/" + url.PathEscape(calendarID)
}

// ListEvents reads the calendar view, which expands recurring series into occurrences.
func (o *OutlookCalendarService) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	q.Set("$top", "100")
	q.Set("$orderby", "start/dateTime")

	next := calendarPath(calendarID) + "/calendarView?" + q.Encode()

	var events []Event
	for next != "" {
		var page graphEventPage
		if _, err := o.api.Do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}

		for _, ge := range page.Value {
			ev, err := fromGraphEvent(calendarID, ge)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
		next = page.NextLink
	}
	return events, nil
}

func (o *OutlookCalendarService) CreateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	var created GraphEvent
	if _, err := o.api.Do(ctx, http.MethodPost, calendarPath(calendarID)+"/events", toGraphEvent(event), &created); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	ev, err := fromGraphEvent(calendarID, created)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (o *OutlookCalendarService) UpdateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("%w: event id", shared.ErrMissingArgument)
	}

	var updated GraphEvent
	if _, err := o.api.Do(ctx, http.MethodPatch, "/me/events/"+url.PathEscape(event.ID), toGraphEvent(event), &updated); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	ev, err := fromGraphEvent(calendarID, updated)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (o *OutlookCalendarService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := o.api.Delete(ctx, "/me/events/"+url.PathEscape(eventID)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Watch creates a Graph subscription. Graph assigns the subscription id, which is
// used as both channel and resource id.
func (o *OutlookCalendarService) Watch(ctx context.Context, calendarID string, req WatchRequest) (*WatchResult, error) {
	if req.Address == "" {
		return nil, fmt.Errorf("%w: notification address", shared.ErrMissingArgument)
	}

	sub := GraphSubscription{
		ChangeType:         "created,updated,deleted",
		NotificationURL:    req.Address,
		Resource:           calendarPath(calendarID)[1:] + "/events",
		ExpirationDateTime: graphExpiration(req.TTL).Format(time.RFC3339),
		ClientState:        req.Token,
	}

	var created GraphSubscription
	if _, err := o.api.Do(ctx, http.MethodPost, "/subscriptions", sub, &created); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	expiration, err := time.Parse(time.RFC3339, created.ExpirationDateTime)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: bad expiration: %w", created.ID, err)
	}

	return &WatchResult{ChannelID: created.ID, ResourceID: created.ID, Expiration: expiration.UTC()}, nil
}

// RenewWatch extends a subscription in place.
func (o *OutlookCalendarService) RenewWatch(ctx context.Context, channel *models.WatchChannel, ttl time.Duration) (time.Time, error) {
	patch := GraphSubscription{ExpirationDateTime: graphExpiration(ttl).Format(time.RFC3339)}

	var renewed GraphSubscription
	if _, err := o.api.Do(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(channel.ID()), patch, &renewed); err != nil {
		return time.Time{}, fmt.Errorf("renew subscription: %w", err)
	}

	expiration, err := time.Parse(time.RFC3339, renewed.ExpirationDateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("subscription %s: bad expiration: %w", channel.ID(), err)
	}
	return expiration.UTC(), nil
}

func (o *OutlookCalendarService) StopWatch(ctx context.Context, channel *models.WatchChannel) error {
	if err := o.api.Delete(ctx, "/subscriptions/"+url.PathEscape(channel.ID())); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func graphExpiration(ttl time.Duration) time.Time {
	if ttl <= 0 || ttl > maxGraphSubscriptionTTL {
		ttl = maxGraphSubscriptionTTL
	}
	return time.Now().Add(ttl).UTC().Truncate(time.Second)
}

func parseGraphDateTime(v graphDateTime) (time.Time, error) {
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		l, err := time.LoadLocation(v.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q: %w", v.TimeZone, err)
		}
		loc = l
	}
	return time.ParseInLocation(graphDateTimeLayout, v.DateTime, loc)
}

func fromGraphEvent(calendarID string, ge GraphEvent) (Event, error) {
	ev := Event{
		ID:          ge.ID,
		CalendarID:  calendarID,
		Title:       ge.Subject,
		Description: ge.BodyPreview,
		AllDay:      ge.IsAllDay,
		Status:      "confirmed",
	}
	if ge.Location != nil {
		ev.Location = ge.Location.DisplayName
	}
	if ge.IsCancelled {
		ev.Status = "cancelled"
	}

	var err error
	if ev.Start, err = parseGraphDateTime(ge.Start); err != nil {
		return ev, fmt.Errorf("event %s: bad start: %w", ge.ID, err)
	}
	if ev.End, err = parseGraphDateTime(ge.End); err != nil {
		return ev, fmt.Errorf("event %s: bad end: %w", ge.ID, err)
	}
	return ev, nil
}

func toGraphEvent(ev Event) GraphEvent {
	start, end := ev.Start.UTC(), ev.End.UTC()
	if ev.AllDay {
		start = time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 0, 0, 0, 0, time.UTC)
		end = time.Date(ev.End.Year(), ev.End.Month(), ev.End.Day(), 0, 0, 0, 0, time.UTC)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}

	ge := GraphEvent{
		Subject:  ev.Title,
		Start:    graphDateTime{DateTime: start.Format(graphDateTimeLayout), TimeZone: "UTC"},
		End:      graphDateTime{DateTime: end.Format(graphDateTimeLayout), TimeZone: "UTC"},
		IsAllDay: ev.AllDay,
	}
	if ev.Description != "" {
		ge.Body = &graphBody{ContentType: "text", Content: ev.Description}
	}
	if ev.Location != "" {
		ge.Location = &graphLocation{DisplayName: ev.Location}
	}
	return ge
}
