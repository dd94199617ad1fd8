// package services defines the [CalendarService] interface and the clients for Google, Microsoft Graph, Gmail and OpenAI.
package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
)

// CalendarService defines the operations every calendar provider (Google Calendar, Outlook) supports.
type CalendarService interface {
	// Name returns the provider the service talks to.
	Name() models.Provider

	// ListEvents returns the single (expanded) events of calendarID that overlap [from, to).
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)

	// CreateEvent inserts event and returns it as stored by the provider.
	CreateEvent(ctx context.Context, calendarID string, event Event) (*Event, error)

	// UpdateEvent replaces the mutable fields of event.ID.
	UpdateEvent(ctx context.Context, calendarID string, event Event) (*Event, error)

	// DeleteEvent removes eventID. Deleting an already removed event returns [shared.ErrNotFound].
	DeleteEvent(ctx context.Context, calendarID, eventID string) error

	// Watch subscribes to change notifications for calendarID.
	Watch(ctx context.Context, calendarID string, req WatchRequest) (*WatchResult, error)

	// StopWatch cancels a subscription created by Watch.
	StopWatch(ctx context.Context, channel *models.WatchChannel) error
}

// WatchRenewer is implemented by providers that can extend a subscription in place.
// Providers without it are renewed by stopping and re-creating the channel.
type WatchRenewer interface {
	RenewWatch(ctx context.Context, channel *models.WatchChannel, ttl time.Duration) (time.Time, error)
}

// OAuthService is implemented by providers that authenticate with OAuth2 authorization code flow.
type OAuthService interface {
	Name() models.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	OAuthConfig() *oauth2.Config
	Scopes() []string
}

// Event is the provider independent representation of a calendar event.
type Event struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendar_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Status      string    `json:"status,omitempty"`
}

// Cancelled reports whether the provider marked the event as cancelled.
func (e Event) Cancelled() bool {
	return e.Status == "cancelled"
}

// WatchRequest describes the push channel to create.
type WatchRequest struct {
	// ChannelID is the caller chosen identifier (Google). Microsoft assigns its own.
	ChannelID string
	// Address is the public HTTPS webhook URL.
	Address string
	// Token is echoed back by the provider on every notification.
	Token string
	TTL   time.Duration
}

// WatchResult holds the identifiers a provider assigned to a new channel.
type WatchResult struct {
	ChannelID  string
	ResourceID string
	Expiration time.Time
}

// CalendarFactory builds a [CalendarService] for provider over an authorized client.
type CalendarFactory func(ctx context.Context, provider models.Provider, client *http.Client) (CalendarService, error)

// NewCalendarService is the default [CalendarFactory].
func NewCalendarService(ctx context.Context, provider models.Provider, client *http.Client) (CalendarService, error) {
	switch provider {
	case models.ProviderGoogle:
		return NewGoogleCalendarService(ctx, client)
	case models.ProviderMicrosoft:
		return NewOutlookCalendarService(client, ""), nil
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedProvider, provider)
	}
}
