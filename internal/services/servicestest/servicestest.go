// Package servicestest provides in-memory doubles for the services package, for use in other packages' tests.
package servicestest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
)

// FakeCalendar is an in-memory [services.CalendarService].
type FakeCalendar struct {
	mu       sync.Mutex
	provider models.Provider
	events   map[string]services.Event
	watches  map[string]*services.WatchResult
	seq      int

	// ListErr, when set, is returned by ListEvents (once per entry, then cleared).
	ListErr []error
	// ListCalls counts ListEvents invocations.
	ListCalls int
	// Stopped records channel ids passed to StopWatch.
	Stopped []string
	// Renewed records channel ids extended with RenewWatch.
	Renewed []string
}

var (
	_ services.CalendarService = (*FakeCalendar)(nil)
	_ services.WatchRenewer    = (*FakeCalendar)(nil)
)

// NewFakeCalendar creates an empty calendar for provider.
func NewFakeCalendar(provider models.Provider, events ...services.Event) *FakeCalendar {
	f := &FakeCalendar{
		provider: provider,
		events:   map[string]services.Event{},
		watches:  map[string]*services.WatchResult{},
	}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *FakeCalendar) Name() models.Provider { return f.provider }

// Get returns the stored event with id.
func (f *FakeCalendar) Get(id string) (services.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	return e, ok
}

// Put stores or replaces an event.
func (f *FakeCalendar) Put(e services.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
}

// Remove deletes an event without going through DeleteEvent.
func (f *FakeCalendar) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
}

func (f *FakeCalendar) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]services.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if len(f.ListErr) > 0 {
		err := f.ListErr[0]
		f.ListErr = f.ListErr[1:]
		if err != nil {
			return nil, err
		}
	}

	var out []services.Event
	for _, e := range f.events {
		if e.End.After(from) && e.Start.Before(to) {
			e.CalendarID = calendarID
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (f *FakeCalendar) CreateEvent(ctx context.Context, calendarID string, event services.Event) (*services.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	event.ID = fmt.Sprintf("%s-%d", f.provider, f.seq)
	event.CalendarID = calendarID
	event.Status = "confirmed"
	f.events[event.ID] = event
	return &event, nil
}

func (f *FakeCalendar) UpdateEvent(ctx context.Context, calendarID string, event services.Event) (*services.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.events[event.ID]; !ok {
		return nil, fmt.Errorf("%w: event %s", shared.ErrNotFound, event.ID)
	}
	f.events[event.ID] = event
	return &event, nil
}

func (f *FakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.events[eventID]; !ok {
		return fmt.Errorf("%w: event %s", shared.ErrNotFound, eventID)
	}
	delete(f.events, eventID)
	return nil
}

func (f *FakeCalendar) Watch(ctx context.Context, calendarID string, req services.WatchRequest) (*services.WatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := req.ChannelID
	if id == "" {
		f.seq++
		id = fmt.Sprintf("sub-%d", f.seq)
	}
	result := &services.WatchResult{ChannelID: id, ResourceID: "res-" + id, Expiration: time.Now().Add(req.TTL).UTC()}
	f.watches[id] = result
	return result, nil
}

func (f *FakeCalendar) RenewWatch(ctx context.Context, channel *models.WatchChannel, ttl time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Renewed = append(f.Renewed, channel.ID())
	return time.Now().Add(ttl).UTC(), nil
}

func (f *FakeCalendar) StopWatch(ctx context.Context, channel *models.WatchChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Stopped = append(f.Stopped, channel.ID())
	delete(f.watches, channel.ID())
	return nil
}

// Watching reports whether channel id is active.
func (f *FakeCalendar) Watching(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.watches[id]
	return ok
}

// Factory returns a [services.CalendarFactory] that hands out the given fakes by provider.
func Factory(fakes ...*FakeCalendar) services.CalendarFactory {
	return func(ctx context.Context, provider models.Provider, client *http.Client) (services.CalendarService, error) {
		for _, f := range fakes {
			if f.provider == provider {
				return f, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedProvider, provider)
	}
}

// FakeLLM returns canned completions and records prompts.
type FakeLLM struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []string
}

func (f *FakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}
