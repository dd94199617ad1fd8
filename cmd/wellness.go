package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/healthkit"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/desertthunder/cadence/internal/wellness"
	"github.com/urfave/cli/v3"
)

// WellnessPredict prints the wellness prediction for a day, recomputing it with --force.
func (r *Runner) WellnessPredict(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	day, err := r.dayFlag(cmd, "day")
	if err != nil {
		return err
	}

	pred, err := r.engine.PredictDay(ctx, r.user.ID(), day, cmd.Bool("force"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"day":            pred.Day,
			"wellness_index": pred.WellnessIndex,
			"energy":         pred.Energy,
			"mood":           pred.Mood,
			"summary":        pred.Summary,
			"source":         pred.Source,
		}, true)
	}

	r.writePlainHeader("Wellness for " + pred.Day)
	r.writePlain("Index:  %.0f/100\n", pred.WellnessIndex)
	r.writePlain("Energy: %s\n", pred.Energy)
	r.writePlain("Mood:   %s\n", pred.Mood)
	if pred.Summary != "" {
		r.writePlainln("%s", pred.Summary)
	}
	r.writePlain("(source: %s)\n", pred.Source)
	return nil
}

// WellnessImpact scores a hypothetical event against the user's cycle and recent stress.
func (r *Runner) WellnessImpact(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	start := r.now()
	if s := cmd.String("start"); s != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", s, r.user.Location())
		if err != nil {
			return fmt.Errorf("%w: --start must look like \"2024-02-05 14:00\"", shared.ErrInvalidArgument)
		}
		start = t
	}

	score, err := r.engine.ImpactFor(r.user.ID(), wellness.EventInput{Title: title, Start: start, AllDay: cmd.Bool("all-day")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(score, true)
	}
	r.writeScore(title, score)
	return nil
}

func (r *Runner) writeScore(title string, s wellness.Score) {
	r.writePlain("%s: %s impact %.2f\n", title, s.Level, s.Value)
	r.writePlain("   category %s (base %.1f) x phase %.2f x time %.2f x stress %.2f\n", s.Category, s.Base, s.Phase, s.TimeOfDay, s.Stress)
}

// GmailInvites searches Gmail for calendar invitations and scores the proposed events.
func (r *Runner) GmailInvites(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	var finder tasks.InviteFinder = r.inbox
	if finder == nil {
		gmail, err := r.engine.Gmail(ctx, r.user.ID())
		if err != nil {
			return err
		}
		finder = gmail
	}

	invites, err := r.engine.ScoreInvites(ctx, r.user.ID(), finder, cmd.String("query"), int64(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(invites, true)
	}
	if len(invites) == 0 {
		return r.writePlain("No invitations found\n")
	}

	loc := r.user.Location()
	for i, inv := range invites {
		r.writePlain("%d. %s\n", i+1, inv.Subject)
		r.writePlain("   From: %s [%s]\n", inv.From, inv.Method)
		for j, ev := range inv.Events {
			r.writePlain("   • %s at %s\n", ev.Title, ev.Start.In(loc).Format("Mon Jan 2 15:04"))
			if j < len(inv.Scores) {
				s := inv.Scores[j]
				r.writePlain("     %s impact %.2f (%s)\n", s.Level, s.Value, s.Category)
			}
		}
		r.writePlain("\n")
	}
	return nil
}

// HealthKitImport reads an Apple Health export.xml and fills flow history and cycle params.
func (r *Runner) HealthKitImport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to export.xml", shared.ErrMissingArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	stores := r.engine.Stores()
	importer := healthkit.NewImporter(stores.Symptoms, stores.Cycles, r.logger)
	res, err := importer.Import(ctx, r.user.ID(), f, r.user.Location())
	if err != nil {
		return err
	}

	r.writePlain("✓ Read %d days of flow data, %d logs updated\n", res.Days, res.Updated)
	r.writePlain("  Periods found: %d\n", len(res.Periods))
	if res.Params != nil {
		r.writePlain("  Estimated cycle: %d days, period %d days, last started %s\n",
			res.Params.CycleLength, res.Params.PeriodLength, shared.FormatDay(res.Params.LastPeriodStart))
	}
	return nil
}
