package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func TestOutlookCalendarService(t *testing.T) {
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	t.Run("ListEvents Follows NextLink", func(t *testing.T) {
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Prefer") != `outlook.timezone="UTC"` {
				t.Errorf("expected UTC preference header, got %q", r.Header.Get("Prefer"))
			}

			switch r.URL.Path {
			case "/me/calendarView":
				if r.URL.Query().Get("startDateTime") != "2024-04-01T00:00:00Z" {
					t.Errorf("unexpected startDateTime %s", r.URL.Query().Get("startDateTime"))
				}
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"value": []map[string]any{{
						"id":       "m1",
						"subject":  "Quarterly review",
						"start":    map[string]string{"dateTime": "2024-04-01T15:00:00.0000000", "timeZone": "UTC"},
						"end":      map[string]string{"dateTime": "2024-04-01T16:30:00.0000000", "timeZone": "UTC"},
						"location": map[string]string{"displayName": "Room 4"},
					}},
					"@odata.nextLink": server.URL + "/page2",
				})
			case "/page2":
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"value": []map[string]any{{
						"id":          "m2",
						"subject":     "Cancelled sync",
						"isCancelled": true,
						"isAllDay":    true,
						"start":       map[string]string{"dateTime": "2024-04-03T00:00:00.0000000", "timeZone": "UTC"},
						"end":         map[string]string{"dateTime": "2024-04-04T00:00:00.0000000", "timeZone": "UTC"},
					}},
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		svc := NewOutlookCalendarService(server.Client(), server.URL)
		events, err := svc.ListEvents(context.Background(), "primary", from, to)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}

		first := events[0]
		if first.Location != "Room 4" || first.Start.Hour() != 15 || first.End.Sub(first.Start) != 90*time.Minute {
			t.Errorf("unexpected first event %+v", first)
		}
		if !events[1].Cancelled() || !events[1].AllDay {
			t.Errorf("expected cancelled all-day event, got %+v", events[1])
		}
	})

	t.Run("Named Calendar Path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/calendars/work/events" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}

			var body GraphEvent
			tu.DecodeJSON(t, r.Body, &body)
			if body.Start.TimeZone != "UTC" || body.Subject != "Gym" {
				t.Errorf("unexpected body %+v", body)
			}
			body.ID = "created"
			tu.WriteJSON(t, w, http.StatusCreated, body)
		}))
		defer server.Close()

		start := time.Date(2024, 4, 2, 7, 0, 0, 0, time.UTC)
		created, err := NewOutlookCalendarService(server.Client(), server.URL).CreateEvent(
			context.Background(), "work", Event{Title: "Gym", Start: start, End: start.Add(time.Hour)},
		)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.ID != "created" || !created.Start.Equal(start) {
			t.Errorf("unexpected created event %+v", created)
		}
	})

	t.Run("DeleteEvent Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "ErrorItemNotFound"}})
		}))
		defer server.Close()

		err := NewOutlookCalendarService(server.Client(), server.URL).DeleteEvent(context.Background(), "primary", "gone")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Subscriptions", func(t *testing.T) {
		expiry := "2024-04-03T10:00:00Z"

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/subscriptions":
				var sub GraphSubscription
				tu.DecodeJSON(t, r.Body, &sub)
				if sub.Resource != "me/events" || sub.ClientState != "secret" || sub.ChangeType != "created,updated,deleted" {
					t.Errorf("unexpected subscription %+v", sub)
				}
				sub.ID = "sub-1"
				sub.ExpirationDateTime = expiry
				tu.WriteJSON(t, w, http.StatusCreated, sub)
			case r.Method == http.MethodPatch && r.URL.Path == "/subscriptions/sub-1":
				tu.WriteJSON(t, w, http.StatusOK, GraphSubscription{ID: "sub-1", ExpirationDateTime: "2024-04-05T10:00:00Z"})
			case r.Method == http.MethodDelete && r.URL.Path == "/subscriptions/sub-1":
				w.WriteHeader(http.StatusNoContent)
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		}))
		defer server.Close()

		svc := NewOutlookCalendarService(server.Client(), server.URL)

		result, err := svc.Watch(context.Background(), "primary", WatchRequest{
			Address: "https://example.com/webhooks/microsoft",
			Token:   "secret",
			TTL:     30 * 24 * time.Hour,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ChannelID != "sub-1" || result.ResourceID != "sub-1" {
			t.Errorf("expected subscription id as channel id, got %+v", result)
		}

		channel := models.NewWatchChannel(result.ChannelID, "u1", models.ProviderMicrosoft, "primary")

		renewed, err := svc.RenewWatch(context.Background(), channel, 48*time.Hour)
		if err != nil {
			t.Fatalf("expected no error renewing, got %v", err)
		}
		if renewed.Day() != 5 {
			t.Errorf("expected renewed expiration, got %v", renewed)
		}

		if err := svc.StopWatch(context.Background(), channel); err != nil {
			t.Errorf("expected no error deleting subscription, got %v", err)
		}
	})

	t.Run("Subscription TTL Is Capped", func(t *testing.T) {
		got := graphExpiration(30 * 24 * time.Hour)
		if time.Until(got) > maxGraphSubscriptionTTL {
			t.Errorf("expected expiration capped at %v, got %v", maxGraphSubscriptionTTL, time.Until(got))
		}
	})
}
