// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/urfave/cli/v3"
)

func providerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   "Calendar provider (google or microsoft)",
		Value:   string(models.ProviderGoogle),
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "First day (YYYY-MM-DD), defaults to today"},
		&cli.StringFlag{Name: "to", Usage: "Last day (YYYY-MM-DD), inclusive"},
	}
}

func outputFlags(prettyDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: prettyDefault},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create config.toml if missing, initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "rollback", Usage: "Roll back the latest migration instead"},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles provider authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect calendar accounts",
		Commands: []*cli.Command{
			{
				Name:    "google",
				Aliases: []string{"gcal"},
				Usage:   "Authorize Google Calendar and Gmail (read-only) using OAuth2",
				Action:  r.authAction(models.ProviderGoogle),
			},
			{
				Name:    "microsoft",
				Aliases: []string{"outlook"},
				Usage:   "Authorize Outlook Calendar using OAuth2",
				Action:  r.authAction(models.ProviderMicrosoft),
			},
			{
				Name:   "status",
				Usage:  "Show connected providers",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AuthStatus,
			},
		},
	}
}

// calendarCommand handles provider calendar operations
func calendarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "calendar",
		Aliases: []string{"cal"},
		Usage:   "Calendar sync and event operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cached events with their impact",
				Flags:  flags(rangeFlags(), outputFlags(false)),
				Action: r.CalendarList,
			},
			{
				Name:  "create",
				Usage: "Create an event on the provider calendar",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: flags([]cli.Flag{
					providerFlag(),
					&cli.StringFlag{Name: "start", Usage: "Start time as \"YYYY-MM-DD HH:MM\" in your timezone"},
					&cli.DurationFlag{Name: "duration", Usage: "Event length", Value: time.Hour},
					&cli.BoolFlag{Name: "all-day", Usage: "Create an all-day event"},
					&cli.StringFlag{Name: "day", Usage: "Day of an all-day event (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "description", Usage: "Event description"},
					&cli.StringFlag{Name: "location", Usage: "Event location"},
				}, outputFlags(true)),
				Action: r.CalendarCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete an event by provider id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{providerFlag()},
				Action: r.CalendarDelete,
			},
			{
				Name:  "sync",
				Usage: "Pull the sync window from the provider and score every event",
				Flags: flags([]cli.Flag{
					providerFlag(),
					&cli.BoolFlag{Name: "all", Usage: "Sync every connected user and provider"},
				}, outputFlags(false)),
				Action: r.CalendarSync,
			},
			{
				Name:   "watch",
				Usage:  "Register a push notification channel (requires server.public_url)",
				Flags:  []cli.Flag{providerFlag()},
				Action: r.CalendarWatch,
			},
			{
				Name:  "unwatch",
				Usage: "Stop the push notification channel",
				Flags: []cli.Flag{
					providerFlag(),
					&cli.BoolFlag{Name: "list", Usage: "List active channels instead"},
				},
				Action: r.CalendarUnwatch,
			},
		},
	}
}

func cycleCountFlag() cli.Flag {
	return &cli.IntFlag{Name: "cycles", Aliases: []string{"n"}, Usage: "Number of cycles to project (1-24)", Value: 6}
}

// cycleCommand handles cycle parameters and forecasts
func cycleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cycle",
		Usage: "Menstrual cycle parameters and forecasts",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Record the last period start and cycle lengths",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "last-period", Usage: "First day of the last period (YYYY-MM-DD)", Required: true},
					&cli.IntFlag{Name: "cycle-length", Usage: "Average cycle length in days (default 28)"},
					&cli.IntFlag{Name: "period-length", Usage: "Average period length in days (default 5)"},
					&cli.IntFlag{Name: "luteal-length", Usage: "Luteal phase length in days (default 14)"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CycleSet,
			},
			{
				Name:   "show",
				Usage:  "Show cycle parameters and today's phase",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.CycleShow,
			},
			{
				Name:  "forecast",
				Usage: "List projected periods and fertile windows",
				Flags: []cli.Flag{
					cycleCountFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CycleForecast,
			},
			{
				Name:  "ics",
				Usage: "Write the forecast as an iCalendar file",
				Flags: []cli.Flag{
					cycleCountFlag(),
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path, - for stdout", Value: "cycle-forecast.ics"},
					&cli.StringFlag{Name: "name", Usage: "Calendar name", Value: "Cycle forecast"},
				},
				Action: r.CycleICS,
			},
		},
	}
}

// symptomsCommand handles daily symptom logs
func symptomsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "symptoms",
		Aliases: []string{"log"},
		Usage:   "Daily symptom logs",
		Commands: []*cli.Command{
			{
				Name:  "log",
				Usage: "Record flow, mood, energy, stress and symptoms for a day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "day", Usage: "Day (YYYY-MM-DD), defaults to today"},
					&cli.StringFlag{Name: "flow", Usage: "none, spotting, light, medium or heavy", Value: "none"},
					&cli.IntFlag{Name: "mood", Usage: "Mood 1-5"},
					&cli.IntFlag{Name: "energy", Usage: "Energy 1-5"},
					&cli.IntFlag{Name: "stress", Usage: "Stress 1-5"},
					&cli.StringFlag{Name: "symptoms", Aliases: []string{"s"}, Usage: "Comma separated symptoms, e.g. cramps,headache"},
					&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
				},
				Action: r.SymptomsLog,
			},
			{
				Name:   "list",
				Usage:  "List symptom logs (last 30 days by default)",
				Flags:  flags(rangeFlags(), []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}}),
				Action: r.SymptomsList,
			},
		},
	}
}

// wellnessCommand handles predictions and impact scoring
func wellnessCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "wellness",
		Usage: "Wellness predictions and event impact",
		Commands: []*cli.Command{
			{
				Name:  "predict",
				Usage: "Show the wellness prediction for a day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "day", Usage: "Day (YYYY-MM-DD), defaults to today"},
					&cli.BoolFlag{Name: "force", Usage: "Recompute instead of using the stored prediction"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.WellnessPredict,
			},
			{
				Name:  "impact",
				Usage: "Score a hypothetical event",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Usage: "Start time as \"YYYY-MM-DD HH:MM\", defaults to now"},
					&cli.BoolFlag{Name: "all-day", Usage: "Score as an all-day event"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.WellnessImpact,
			},
		},
	}
}

// gmailCommand handles mailbox invitations
func gmailCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "gmail",
		Usage: "Gmail invitation lookup",
		Commands: []*cli.Command{
			{
				Name:  "invites",
				Usage: "Find calendar invitations and score their events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Gmail search query", Value: services.DefaultInviteQuery},
					&cli.IntFlag{Name: "limit", Usage: "Maximum messages to read", Value: 20},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.GmailInvites,
			},
		},
	}
}

// healthkitCommand handles Apple Health imports
func healthkitCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "healthkit",
		Aliases: []string{"health"},
		Usage:   "Apple Health data import",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import menstrual flow from export.xml and estimate cycle params",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.HealthKitImport,
			},
		},
	}
}

// eventsCommand handles exports
func eventsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Event exports",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export cached events and symptom logs",
				Flags: flags(rangeFlags(), []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, txt or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (csv: base name, markdown: directory)"},
					&cli.BoolFlag{Name: "no-symptoms", Usage: "Leave symptom logs out"},
				}),
				Action: r.EventsExport,
			},
		},
	}
}

// serveCommand runs the server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API, webhook receiver and scheduled jobs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "Override server.port"},
			&cli.DurationFlag{Name: "job-timeout", Usage: "Deadline for each background job", Value: 5 * time.Minute},
			&cli.BoolFlag{Name: "no-jobs", Usage: "Disable the cron scheduler"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for the interactive dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive dashboard",
		Flags: []cli.Flag{
			providerFlag(),
			&cli.StringFlag{Name: "log-file", Usage: "Where logs go while the dashboard runs", Value: "./tmp/cadence-tui.log"},
		},
		Action: r.TUI,
	}
}
