package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultListDays = 7

// eventRow is the JSON shape of a cached event.
type eventRow struct {
	ID       string    `json:"id"`
	Provider string    `json:"provider"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	Category string    `json:"category"`
	Score    float64   `json:"impact_score"`
	Level    string    `json:"impact_level"`
}

func newEventRow(e *models.CalendarEvent) eventRow {
	return eventRow{
		ID: e.ExternalID, Provider: string(e.Provider), Title: e.Title,
		Start: e.Start, End: e.End, AllDay: e.AllDay,
		Category: e.Category, Score: e.ImpactScore, Level: e.ImpactLevel,
	}
}

func (r *Runner) writeEvent(i int, e *models.CalendarEvent) {
	loc := r.user.Location()
	when := e.Start.In(loc).Format("Mon Jan 2 15:04") + "-" + e.End.In(loc).Format("15:04")
	if e.AllDay {
		when = e.Start.In(loc).Format("Mon Jan 2") + " (all day)"
	}
	r.writePlain("%d. %s\n", i, e.Title)
	r.writePlain("   When: %s\n", when)
	r.writePlain("   Impact: %s %.2f (%s)\n", e.ImpactLevel, e.ImpactScore, e.Category)
	r.writePlain("   ID: %s [%s]\n", e.ExternalID, e.Provider)
}

// CalendarList prints cached events with their impact for a date range.
func (r *Runner) CalendarList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	from, to, err := r.dayRange(cmd, defaultListDays)
	if err != nil {
		return err
	}

	events, err := r.engine.ScoreCached(r.user.ID(), from, to)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]eventRow, 0, len(events))
		for _, e := range events {
			rows = append(rows, newEventRow(e))
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if len(events) == 0 {
		return r.writePlain("No events between %s and %s. Run cadence calendar sync first?\n",
			shared.FormatDay(from), shared.FormatDay(to.AddDate(0, 0, -1)))
	}

	r.writePlain("Found %d events:\n\n", len(events))
	for i, e := range events {
		r.writeEvent(i+1, e)
		r.writePlain("\n")
	}
	return nil
}

// CalendarCreate creates an event on the provider calendar and caches it.
func (r *Runner) CalendarCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	provider, err := r.provider(cmd)
	if err != nil {
		return err
	}

	event := services.Event{
		Title:       cmd.StringArg("title"),
		Description: cmd.String("description"),
		Location:    cmd.String("location"),
		AllDay:      cmd.Bool("all-day"),
	}

	loc := r.user.Location()
	if event.AllDay {
		day, err := r.dayFlag(cmd, "day")
		if err != nil {
			return err
		}
		event.Start, event.End = day, day.AddDate(0, 0, 1)
	} else {
		start, err := time.ParseInLocation("2006-01-02 15:04", cmd.String("start"), loc)
		if err != nil {
			return fmt.Errorf("%w: --start must look like \"2024-02-05 14:00\"", shared.ErrInvalidArgument)
		}
		event.Start = start
		event.End = start.Add(cmd.Duration("duration"))
	}

	created, err := r.engine.CreateEvent(ctx, r.user.ID(), provider, event)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newEventRow(created), true)
	}
	r.writePlain("✓ Created on %s\n\n", provider.DisplayName())
	r.writeEvent(1, created)
	return nil
}

// CalendarDelete removes an event from the provider calendar and the cache.
func (r *Runner) CalendarDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	provider, err := r.provider(cmd)
	if err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: event id", shared.ErrMissingArgument)
	}

	if err := r.engine.DeleteEvent(ctx, r.user.ID(), provider, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s from %s\n", id, provider.DisplayName())
}

// CalendarSync pulls the sync window for one provider, or every connected user and provider with --all.
func (r *Runner) CalendarSync(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "step", update.Step)
		}
	}()

	if cmd.Bool("all") {
		res, err := r.engine.SyncAll(ctx, progress)
		close(progress)
		<-done
		if err != nil {
			return err
		}

		for _, job := range res.Failures() {
			r.writePlain("✗ %s/%s: %s\n", job.UserID, job.Provider, shared.UserMessage(job.Err))
		}
		return r.writePlain("✓ %d synced, %d failed\n", res.Succeeded, res.Failed)
	}

	provider, err := r.provider(cmd)
	if err != nil {
		close(progress)
		<-done
		return err
	}

	res, err := r.engine.SyncUser(ctx, progress, r.user.ID(), provider)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]eventRow, 0, len(res.Events))
		for _, e := range res.Events {
			rows = append(rows, newEventRow(e))
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlain("✓ Synced %d events from %s (%s to %s)\n", len(res.Events), provider.DisplayName(),
		shared.FormatDay(res.From), shared.FormatDay(res.To.AddDate(0, 0, -1)))
	if res.Removed > 0 || res.Cancelled > 0 {
		r.writePlain("  Removed: %d  Cancelled: %d\n", res.Removed, res.Cancelled)
	}
	return nil
}

// CalendarWatch opens a push channel so provider changes trigger a sync on the server.
func (r *Runner) CalendarWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	provider, err := r.provider(cmd)
	if err != nil {
		return err
	}

	channel, err := r.engine.WatchCalendar(ctx, r.user.ID(), provider)
	if err != nil {
		return err
	}

	r.writePlain("✓ Watching %s\n", provider.DisplayName())
	r.writePlain("  Channel: %s\n", channel.ID())
	r.writePlain("  Expires: %s\n", channel.Expiration.In(r.user.Location()).Format(time.RFC1123))
	return nil
}

// CalendarUnwatch stops the push channel for provider. --list prints active channels instead.
func (r *Runner) CalendarUnwatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	if cmd.Bool("list") {
		channels, err := r.engine.Watches(r.user.ID())
		if err != nil {
			return err
		}
		if len(channels) == 0 {
			return r.writePlain("No active channels\n")
		}
		for _, c := range channels {
			r.writePlain("%s  %s  expires %s\n", c.Provider, c.ID(), c.Expiration.Format(time.RFC3339))
		}
		return nil
	}

	provider, err := r.provider(cmd)
	if err != nil {
		return err
	}
	if err := r.engine.Unwatch(ctx, r.user.ID(), provider); err != nil {
		return err
	}
	return r.writePlain("✓ Stopped watching %s\n", provider.DisplayName())
}
