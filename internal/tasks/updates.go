package tasks

import (
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveCalendar Phase = iota
	FetchEvents
	ScoreEvents
	StoreEvents
	PruneEvents
	SyncUsers
	RenewWatches
	Predict
)

func (p Phase) String() string {
	switch p {
	case ResolveCalendar:
		return "resolve_calendar"
	case FetchEvents:
		return "fetch_events"
	case ScoreEvents:
		return "score_events"
	case StoreEvents:
		return "store_events"
	case PruneEvents:
		return "prune_events"
	case SyncUsers:
		return "sync_users"
	case RenewWatches:
		return "renew_watches"
	case Predict:
		return "predict"
	default:
		return ""
	}
}

func resolveCalendarUpdate(provider models.Provider) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveCalendar,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Connecting to %s...", provider.DisplayName()),
	}
}

func fetchEventsUpdate(provider models.Provider, days int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchEvents,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching the next %d days from %s...", days, provider.DisplayName()),
	}
}

func scoreEventUpdate(step, total int, ev *models.CalendarEvent) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScoreEvents,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Scored %q (%s)", ev.Title, ev.ImpactLevel),
		Data:    ev,
	}
}

func storeEventsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreEvents,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving %d events...", count),
	}
}

func pruneEventsUpdate(removed int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneEvents,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d events no longer on the calendar", removed),
	}
}

func syncUserUpdate(step, total int, res SyncJobResult) ProgressUpdate {
	msg := fmt.Sprintf("Synced %s for %s (%d events)", res.Provider.DisplayName(), res.UserID, res.Stored)
	if res.Err != nil {
		msg = fmt.Sprintf("Failed to sync %s for %s: %v", res.Provider.DisplayName(), res.UserID, res.Err)
	}
	return ProgressUpdate{Phase: SyncUsers, Step: step, Total: total, Message: msg, Data: res}
}

func renewWatchUpdate(step, total int, channel *models.WatchChannel) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RenewWatches,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Renewing %s watch on %s", channel.Provider.DisplayName(), channel.CalendarID),
	}
}

func predictUpdate(day string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Predict,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Predicting wellness for %s...", day),
	}
}
