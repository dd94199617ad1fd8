package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/wellness"
	"github.com/urfave/cli/v3"
)

// CycleSet stores cycle parameters from the last period start and optional lengths.
func (r *Runner) CycleSet(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	start, err := r.dayFlag(cmd, "last-period")
	if err != nil {
		return err
	}

	params := models.NewCycleParams(r.user.ID(), start)
	if n := cmd.Int("cycle-length"); n != 0 {
		params.CycleLength = n
	}
	if n := cmd.Int("period-length"); n != 0 {
		params.PeriodLength = n
	}
	if n := cmd.Int("luteal-length"); n != 0 {
		params.LutealLength = n
	}

	if err := r.engine.Stores().Cycles.Upsert(params); err != nil {
		return err
	}

	r.writePlain("✓ Cycle saved\n\n")
	return r.writeCycle(params, cmd.Bool("json"))
}

// CycleShow prints the stored parameters and today's position in the cycle.
func (r *Runner) CycleShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	params, err := r.engine.Stores().Cycles.Get(r.user.ID())
	if err != nil {
		return fmt.Errorf("%w: no cycle recorded, run cadence cycle set", err)
	}
	return r.writeCycle(params, cmd.Bool("json"))
}

func (r *Runner) writeCycle(params *models.CycleParams, asJSON bool) error {
	today := wellness.PhaseOn(params, r.today())

	if asJSON {
		return r.writeJSON(map[string]any{
			"last_period_start": shared.FormatDay(params.LastPeriodStart),
			"cycle_length":      params.CycleLength,
			"period_length":     params.PeriodLength,
			"luteal_length":     params.LutealLength,
			"ovulation_day":     params.OvulationDay(),
			"today":             today,
		}, true)
	}

	r.writePlain("Last period:   %s\n", shared.FormatDay(params.LastPeriodStart))
	r.writePlain("Cycle length:  %d days\n", params.CycleLength)
	r.writePlain("Period length: %d days\n", params.PeriodLength)
	r.writePlain("Ovulation:     day %d\n", params.OvulationDay())
	r.writePlainln("Today is cycle day %d (%s), %d days until the next period", today.Day, today.Phase, today.DaysUntilPeriod)
	return nil
}

func (r *Runner) forecast(cmd *cli.Command) (*models.CycleParams, *wellness.Forecast, error) {
	params, err := r.engine.Stores().Cycles.Get(r.user.ID())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no cycle recorded, run cadence cycle set", err)
	}

	n := cmd.Int("cycles")
	if n < 1 || n > 24 {
		return nil, nil, fmt.Errorf("%w: --cycles must be 1-24", shared.ErrInvalidArgument)
	}

	f, err := wellness.NewForecast(params, r.today(), n)
	if err != nil {
		return nil, nil, err
	}
	return params, f, nil
}

// CycleForecast lists the projected periods and fertile windows.
func (r *Runner) CycleForecast(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	_, f, err := r.forecast(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(f, true)
	}

	r.writePlainHeader("Forecast from " + shared.FormatDay(f.From))
	for i, p := range f.Periods {
		r.writePlain("%d. Period   %s to %s (%d days)\n", i+1, shared.FormatDay(p.Start), shared.FormatDay(p.End), p.Days())
		if i < len(f.Fertile) {
			w := f.Fertile[i]
			r.writePlain("   Fertile  %s to %s, ovulation %s\n", shared.FormatDay(w.Start), shared.FormatDay(w.End), shared.FormatDay(w.Ovulation))
		}
	}
	return nil
}

// CycleICS writes the forecast as an iCalendar file for subscription in any calendar app.
func (r *Runner) CycleICS(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	_, f, err := r.forecast(cmd)
	if err != nil {
		return err
	}

	data := wellness.ExportICS(f, r.user.ID(), cmd.String("name"), r.now())

	path := cmd.String("output")
	if path == "" || path == "-" {
		return r.writePlain("%s", data)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return r.writePlain("✓ Forecast for %d cycles written to %s\n", len(f.Periods), path)
}

// SymptomsLog records (or replaces) the log for a day.
func (r *Runner) SymptomsLog(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	day, err := r.dayFlag(cmd, "day")
	if err != nil {
		return err
	}

	flow, err := models.ParseFlow(cmd.String("flow"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	entry := models.NewSymptomLog(r.user.ID(), shared.FormatDay(day))
	entry.Flow = flow
	entry.Mood = cmd.Int("mood")
	entry.Energy = cmd.Int("energy")
	entry.Stress = cmd.Int("stress")
	entry.SetSymptomString(cmd.String("symptoms"))
	entry.Notes = cmd.String("notes")

	if err := r.engine.Stores().Symptoms.Upsert(entry); err != nil {
		return err
	}
	return r.writePlain("✓ Logged %s (flow %s, %d symptoms)\n", entry.Day, entry.Flow, len(entry.Symptoms))
}

// SymptomsList prints logs for a range, the last 30 days by default.
func (r *Runner) SymptomsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	from, to := r.today().AddDate(0, 0, -30), r.today().AddDate(0, 0, 1)
	if cmd.String("from") != "" || cmd.String("to") != "" {
		var err error
		if from, to, err = r.dayRange(cmd, 30); err != nil {
			return err
		}
	}

	logs, err := r.engine.Stores().Symptoms.Range(r.user.ID(), shared.FormatDay(from), shared.FormatDay(to.AddDate(0, 0, -1)))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type symptomRow struct {
			Day      string   `json:"day"`
			Flow     string   `json:"flow"`
			Mood     int      `json:"mood"`
			Energy   int      `json:"energy"`
			Stress   int      `json:"stress"`
			Symptoms []string `json:"symptoms"`
			Notes    string   `json:"notes,omitempty"`
		}
		rows := make([]symptomRow, 0, len(logs))
		for _, l := range logs {
			rows = append(rows, symptomRow{l.Day, string(l.Flow), l.Mood, l.Energy, l.Stress, l.Symptoms, l.Notes})
		}
		return r.writeJSON(rows, true)
	}
	if len(logs) == 0 {
		return r.writePlain("No symptom logs\n")
	}

	for _, l := range logs {
		r.writePlain("%s  flow=%-8s mood=%d energy=%d stress=%d  %s\n", l.Day, l.Flow, l.Mood, l.Energy, l.Stress, l.SymptomString())
		if l.Notes != "" {
			r.writePlain("            %s\n", l.Notes)
		}
	}
	return nil
}
