package models

import (
	"fmt"
	"time"
)

// WatchChannel is a push-notification registration with a calendar provider.
//
// For Google the ID is the channel id we chose and ResourceID is assigned by Google;
// for Microsoft Graph the ID is the subscription id.
type WatchChannel struct {
	base
	UserID      string
	Provider    Provider
	CalendarID  string
	ResourceID  string
	ClientState string
	Expiration  time.Time
}

// NewWatchChannel creates a channel row with the given provider-side id.
func NewWatchChannel(id, userID string, provider Provider, calendarID string) *WatchChannel {
	w := &WatchChannel{base: newBase(), UserID: userID, Provider: provider, CalendarID: calendarID}
	w.SetID(id)
	return w
}

// ExpiresWithin reports whether the channel lapses before now+d.
func (w *WatchChannel) ExpiresWithin(now time.Time, d time.Duration) bool {
	return w.Expiration.Before(now.Add(d))
}

func (w *WatchChannel) Validate() error {
	if w.ID() == "" {
		return fmt.Errorf("channel id is required")
	}
	if w.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := ParseProvider(string(w.Provider)); err != nil {
		return err
	}
	if w.CalendarID == "" {
		return fmt.Errorf("calendar id is required")
	}
	if w.Expiration.IsZero() {
		return fmt.Errorf("expiration is required")
	}
	return nil
}
