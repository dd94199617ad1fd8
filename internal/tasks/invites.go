package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/wellness"
)

// InviteFinder searches a mailbox for calendar invitations. Implemented by [services.GmailService].
type InviteFinder interface {
	FindInvites(ctx context.Context, query string, limit int64) ([]services.Invite, error)
}

// ScoredInvite pairs an invitation with the impact of each event it proposes.
type ScoredInvite struct {
	services.Invite
	Scores []wellness.Score
}

// Gmail builds a mailbox client over the user's Google token.
func (e *CalendarEngine) Gmail(ctx context.Context, userID string) (*services.GmailService, error) {
	ts, err := e.TokenSource(ctx, userID, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	return services.NewGmailService(ctx, ts.Client(nil))
}

// ScoreInvites finds invitations and scores every proposed event as if it were accepted.
// Cancellations are returned without scores.
func (e *CalendarEngine) ScoreInvites(ctx context.Context, userID string, finder InviteFinder, query string, limit int64) ([]ScoredInvite, error) {
	invites, err := finder.FindInvites(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search invites: %w", err)
	}

	out := make([]ScoredInvite, 0, len(invites))
	for _, inv := range invites {
		scored := ScoredInvite{Invite: inv}
		if inv.Method != "CANCEL" {
			for _, ev := range inv.Events {
				score, err := e.ImpactFor(userID, wellness.EventInput{Title: ev.Title, Start: ev.Start, AllDay: ev.AllDay})
				if err != nil {
					return nil, err
				}
				scored.Scores = append(scored.Scores, score)
			}
		}
		out = append(out, scored)
	}

	e.logger.Debug("invites scored", "user", userID, "count", len(out))
	return out, nil
}
