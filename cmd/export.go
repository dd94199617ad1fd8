package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// EventsExport writes cached events and symptom logs for a range in the chosen format.
func (r *Runner) EventsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
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

	export := &formatter.Export{
		Name:     r.user.Name,
		From:     from,
		To:       to,
		Location: r.user.Location(),
		Events:   events,
	}
	if !cmd.Bool("no-symptoms") {
		last := to.AddDate(0, 0, -1)
		if export.Symptoms, err = r.engine.Stores().Symptoms.Range(r.user.ID(), shared.FormatDay(from), shared.FormatDay(last)); err != nil {
			return err
		}
	}

	r.logger.Info("exporting events", "format", format, "events", len(events), "symptoms", len(export.Symptoms))

	output := cmd.String("output")
	switch format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Events exported to %s\n", res.EventsFile)
		if res.SymptomsFile != "" {
			r.writePlain("✓ Symptoms exported to %s\n", res.SymptomsFile)
		}
		return nil
	case formatter.FormatMarkdown:
		path, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported to %s\n", path)
	case formatter.FormatText:
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported to %s\n", path)
	case formatter.FormatJSON:
		path, err := formatter.WriteJSONExport(export, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported to %s\n", path)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}
