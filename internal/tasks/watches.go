package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
)

// RenewResult counts the channels handled by [CalendarEngine.RenewWatches].
type RenewResult struct {
	Renewed   int // extended in place
	Recreated int // stopped and opened again
	Failed    int
	Errors    []error
}

// WebhookAddress is the public URL providers post notifications for provider to.
func (e *CalendarEngine) WebhookAddress(provider models.Provider) (string, error) {
	if e.publicURL == "" {
		return "", fmt.Errorf("%w: server.public_url is required for push notifications", shared.ErrMissingConfig)
	}
	return strings.TrimRight(e.publicURL, "/") + "/webhooks/" + string(provider), nil
}

func (e *CalendarEngine) clientState() (string, error) {
	if e.token != "" {
		return e.token, nil
	}
	return shared.GenerateState()
}

// WatchCalendar opens a push channel on the user's calendar, replacing any existing one.
func (e *CalendarEngine) WatchCalendar(ctx context.Context, userID string, provider models.Provider) (*models.WatchChannel, error) {
	address, err := e.WebhookAddress(provider)
	if err != nil {
		return nil, err
	}

	cal, ts, err := e.Calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	calendarID := e.CalendarID(provider)
	if existing, err := e.stores.Watches.GetFor(userID, provider, calendarID); err == nil {
		e.stopChannel(ctx, cal, existing)
	}

	token, err := e.clientState()
	if err != nil {
		return nil, err
	}

	channel, err := e.openChannel(ctx, cal, ts, userID, calendarID, address, token)
	if err != nil {
		return nil, err
	}

	e.logger.Info("watch opened", "user", userID, "provider", provider, "channel", channel.ID(), "expires", channel.Expiration)
	return channel, nil
}

func (e *CalendarEngine) openChannel(ctx context.Context, cal services.CalendarService, ts *services.StoredTokenSource, userID, calendarID, address, token string) (*models.WatchChannel, error) {
	req := services.WatchRequest{
		ChannelID: shared.GenerateID(),
		Address:   address,
		Token:     token,
		TTL:       e.watchTTL,
	}

	var created *services.WatchResult
	err := services.WithTokenRetry(ctx, ts, func(ctx context.Context) error {
		var err error
		created, err = cal.Watch(ctx, calendarID, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", cal.Name(), err)
	}

	channel := models.NewWatchChannel(created.ChannelID, userID, cal.Name(), calendarID)
	channel.ResourceID = created.ResourceID
	channel.ClientState = token
	channel.Expiration = created.Expiration
	if channel.Expiration.IsZero() {
		channel.Expiration = e.now().Add(e.watchTTL).UTC()
	}

	if err := e.stores.Watches.Upsert(channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// stopChannel cancels a provider channel; failures are logged because the channel lapses on its own.
func (e *CalendarEngine) stopChannel(ctx context.Context, cal services.CalendarService, channel *models.WatchChannel) {
	if err := cal.StopWatch(ctx, channel); err != nil && !errors.Is(err, shared.ErrNotFound) {
		e.logger.Warn("failed to stop channel", "channel", channel.ID(), "provider", channel.Provider, "error", err)
	}
}

// Unwatch stops the user's push channel for provider and forgets it.
func (e *CalendarEngine) Unwatch(ctx context.Context, userID string, provider models.Provider) error {
	channel, err := e.stores.Watches.GetFor(userID, provider, e.CalendarID(provider))
	if err != nil {
		return err
	}

	cal, _, err := e.Calendar(ctx, userID, provider)
	if err != nil {
		return err
	}
	e.stopChannel(ctx, cal, channel)

	return e.stores.Watches.Delete(channel.ID())
}

// Watches lists the user's active channels.
func (e *CalendarEngine) Watches(userID string) ([]*models.WatchChannel, error) {
	return e.stores.Watches.ListForUser(userID)
}

// RenewWatches handles every channel expiring before now+within.
//
// Providers implementing [services.WatchRenewer] are extended in place; the rest are
// re-created under a new channel id and the old channel is stopped.
func (e *CalendarEngine) RenewWatches(ctx context.Context, progress chan<- ProgressUpdate, within time.Duration) (*RenewResult, error) {
	expiring, err := e.stores.Watches.ExpiringBefore(e.now().Add(within))
	if err != nil {
		return nil, err
	}

	result := &RenewResult{}
	for i, channel := range expiring {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		e.sendProgress(progress, renewWatchUpdate(i+1, len(expiring), channel))

		recreated, err := e.renew(ctx, channel)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("channel %s: %w", channel.ID(), err))
			e.logger.Warn("watch renewal failed", "channel", channel.ID(), "user", channel.UserID, "error", err)
		case recreated:
			result.Recreated++
		default:
			result.Renewed++
		}
	}

	if len(expiring) > 0 {
		e.logger.Info("watches renewed", "renewed", result.Renewed, "recreated", result.Recreated, "failed", result.Failed)
	}
	return result, nil
}

func (e *CalendarEngine) renew(ctx context.Context, channel *models.WatchChannel) (bool, error) {
	cal, ts, err := e.Calendar(ctx, channel.UserID, channel.Provider)
	if err != nil {
		return false, err
	}

	if renewer, ok := cal.(services.WatchRenewer); ok {
		var expiration time.Time
		err := services.WithTokenRetry(ctx, ts, func(ctx context.Context) error {
			var err error
			expiration, err = renewer.RenewWatch(ctx, channel, e.watchTTL)
			return err
		})
		if err != nil {
			return false, err
		}
		channel.Expiration = expiration
		return false, e.stores.Watches.Upsert(channel)
	}

	address, err := e.WebhookAddress(channel.Provider)
	if err != nil {
		return false, err
	}
	if _, err := e.openChannel(ctx, cal, ts, channel.UserID, channel.CalendarID, address, channel.ClientState); err != nil {
		return false, err
	}
	e.stopChannel(ctx, cal, channel)
	return true, nil
}
