package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
	"google.golang.org/api/option"
)

func newTestGoogleCalendar(t *testing.T, handler http.HandlerFunc) *GoogleCalendarService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewGoogleCalendarService(context.Background(), server.Client(), option.WithEndpoint(server.URL+"/"))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestGoogleCalendarService(t *testing.T) {
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	t.Run("ListEvents", func(t *testing.T) {
		t.Run("Pages And Converts", func(t *testing.T) {
			svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("singleEvents") != "true" || q.Get("orderBy") != "startTime" {
					t.Errorf("expected expanded ordered listing, got %s", r.URL.RawQuery)
				}
				if q.Get("timeMin") != from.Format(time.RFC3339) {
					t.Errorf("unexpected timeMin %s", q.Get("timeMin"))
				}

				if q.Get("pageToken") == "" {
					tu.WriteJSON(t, w, http.StatusOK, map[string]any{
						"items": []map[string]any{{
							"id":      "a",
							"summary": "Standup",
							"status":  "confirmed",
							"start":   map[string]string{"dateTime": "2024-04-01T09:00:00Z"},
							"end":     map[string]string{"dateTime": "2024-04-01T09:15:00Z"},
						}},
						"nextPageToken": "p2",
					})
					return
				}

				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"items": []map[string]any{{
						"id":      "b",
						"summary": "Offsite",
						"start":   map[string]string{"date": "2024-04-02"},
						"end":     map[string]string{"date": "2024-04-04"},
					}},
				})
			})

			events, err := svc.ListEvents(context.Background(), "primary", from, to)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(events) != 2 {
				t.Fatalf("expected 2 events across pages, got %d", len(events))
			}

			if events[0].Title != "Standup" || events[0].AllDay {
				t.Errorf("unexpected timed event %+v", events[0])
			}
			if events[0].End.Sub(events[0].Start) != 15*time.Minute {
				t.Errorf("expected 15 minute event, got %v", events[0].End.Sub(events[0].Start))
			}

			if !events[1].AllDay {
				t.Error("expected date-only event to be all day")
			}
			if events[1].End.Sub(events[1].Start) != 48*time.Hour {
				t.Errorf("expected exclusive end date to span 2 days, got %v", events[1].End.Sub(events[1].Start))
			}
		})

		t.Run("Unauthorized Maps To Token Expired", func(t *testing.T) {
			svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
				tu.WriteJSON(t, w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": 401, "message": "Invalid Credentials"},
				})
			})

			_, err := svc.ListEvents(context.Background(), "primary", from, to)
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})
	})

	t.Run("CreateEvent All Day", func(t *testing.T) {
		svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}

			var body map[string]map[string]string
			tu.DecodeJSON(t, r.Body, &body)
			if body["start"]["date"] != "2024-04-05" || body["end"]["date"] != "2024-04-06" {
				t.Errorf("expected date fields, got %v", body)
			}

			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"id":      "new-1",
				"summary": "Rest day",
				"start":   body["start"],
				"end":     body["end"],
			})
		})

		start := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
		created, err := svc.CreateEvent(context.Background(), "primary", Event{Title: "Rest day", Start: start, AllDay: true})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.ID != "new-1" || !created.AllDay {
			t.Errorf("unexpected created event %+v", created)
		}
	})

	t.Run("UpdateEvent Requires ID", func(t *testing.T) {
		svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		if _, err := svc.UpdateEvent(context.Background(), "primary", Event{Title: "x"}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("DeleteEvent Gone", func(t *testing.T) {
		svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || !strings.HasSuffix(r.URL.Path, "/events/a") {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			tu.WriteJSON(t, w, http.StatusGone, map[string]any{
				"error": map[string]any{"code": 410, "message": "Resource has been deleted"},
			})
		})

		if err := svc.DeleteEvent(context.Background(), "primary", "a"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Watch", func(t *testing.T) {
		expiration := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)

		svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/events/watch"):
				var body map[string]any
				tu.DecodeJSON(t, r.Body, &body)
				if body["type"] != "web_hook" || body["id"] != "chan-1" || body["token"] != "secret" {
					t.Errorf("unexpected channel request %v", body)
				}
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"id":         "chan-1",
					"resourceId": "res-1",
					"expiration": "1712534400000",
				})
			case strings.HasSuffix(r.URL.Path, "/channels/stop"):
				var body map[string]any
				tu.DecodeJSON(t, r.Body, &body)
				if body["id"] != "chan-1" || body["resourceId"] != "res-1" {
					t.Errorf("unexpected stop request %v", body)
				}
				w.WriteHeader(http.StatusNoContent)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		result, err := svc.Watch(context.Background(), "primary", WatchRequest{
			ChannelID: "chan-1",
			Address:   "https://example.com/webhooks/google",
			Token:     "secret",
			TTL:       7 * 24 * time.Hour,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ResourceID != "res-1" || !result.Expiration.Equal(expiration) {
			t.Errorf("unexpected watch result %+v", result)
		}

		channel := models.NewWatchChannel(result.ChannelID, "u1", models.ProviderGoogle, "primary")
		channel.ResourceID = result.ResourceID
		if err := svc.StopWatch(context.Background(), channel); err != nil {
			t.Errorf("expected no error stopping channel, got %v", err)
		}
	})

	t.Run("Watch Requires Address", func(t *testing.T) {
		svc := newTestGoogleCalendar(t, func(w http.ResponseWriter, r *http.Request) {})

		if _, err := svc.Watch(context.Background(), "primary", WatchRequest{ChannelID: "c"}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
