package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/services/servicestest"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	tu "github.com/desertthunder/cadence/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 2, day, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	runner *Runner
	output *bytes.Buffer
	google *servicestest.FakeCalendar
	user   *models.User
	stores *tasks.Stores
}

type fakeInbox struct {
	invites []services.Invite
}

func (f *fakeInbox) FindInvites(ctx context.Context, query string, limit int64) ([]services.Invite, error) {
	return f.invites, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	f := &fixture{output: &bytes.Buffer{}, stores: tasks.NewStores(db)}
	if f.user, err = f.stores.Users.Ensure("cli@example.com", "CLI Person", "UTC"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	tok := models.NewProviderToken(f.user.ID(), models.ProviderGoogle, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}, nil)
	if err := f.stores.Tokens.Upsert(tok); err != nil {
		t.Fatalf("failed to store token: %v", err)
	}

	f.google = servicestest.NewFakeCalendar(models.ProviderGoogle,
		services.Event{ID: "standup", Title: "Team standup", Start: at(5, 10, 0), End: at(5, 10, 15)},
		services.Event{ID: "yoga", Title: "Yoga class", Start: at(6, 18, 0), End: at(6, 19, 0)},
	)

	engine := tasks.NewEngine(tasks.Options{
		Stores: f.stores,
		OAuth: map[models.Provider]*oauth2.Config{
			models.ProviderGoogle: {ClientID: "g", Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:0/token"}},
		},
		Factory: servicestest.Factory(f.google),
		Logger:  tu.NewTestLogger(),
		Now:     func() time.Time { return testNow },
	})

	f.runner = NewRunner(RunnerOpts{
		Engine: engine,
		User:   f.user,
		Inbox: &fakeInbox{invites: []services.Invite{{
			MessageID: "m1",
			Subject:   "Invitation: Job interview",
			From:      "recruiter@example.com",
			Method:    "REQUEST",
			Events:    []services.Event{{ID: "i1", Title: "Job interview", Start: at(8, 15, 0), End: at(8, 16, 0)}},
		}}},
		Logger: tu.NewTestLogger(),
		Output: f.output,
		Now:    func() time.Time { return testNow },
	})
	return f
}

// run executes args against the runner's command tree and returns what was written.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	f.output.Reset()
	app := &cli.Command{
		Name:     "cadence",
		Writer:   &bytes.Buffer{},
		Commands: f.runner.register(),
	}
	err := app.Run(context.Background(), append([]string{"cadence"}, args...))
	return f.output.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("%v: expected no error, got %v", args, err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.now == nil {
				t.Error("expected clock to be set")
			}
		})

		t.Run("Close without database", func(t *testing.T) {
			if err := NewRunner(RunnerOpts{}).Close(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		want := []string{"setup", "auth", "calendar", "cycle", "symptoms", "wellness", "gmail", "healthkit", "events", "serve", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil || cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %+v", i, want[i], cmd)
			}
		}
	})

	t.Run("load", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")

		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "test.db")
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		logger := shared.NewLogger(&bytes.Buffer{})
		runner := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})
		app := &cli.Command{
			Name: "cadence",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "config", Value: "config.toml"},
				&cli.BoolFlag{Name: "debug"},
			},
			Before: runner.load,
			Action: func(ctx context.Context, cmd *cli.Command) error { return nil },
		}

		if err := app.Run(context.Background(), []string{"cadence", "--config", path, "--debug"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.config.Database.Path != config.Database.Path {
			t.Errorf("expected database path from file, got %s", runner.config.Database.Path)
		}
		if runner.configPath != path {
			t.Errorf("expected config path %s, got %s", path, runner.configPath)
		}
		if logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", logger.GetLevel())
		}
	})
}

func TestCalendarCommands(t *testing.T) {
	f := newFixture(t)

	t.Run("Sync", func(t *testing.T) {
		out := f.mustRun(t, "calendar", "sync", "--provider", "google")
		if !strings.Contains(out, "Synced 2 events from Google Calendar") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("List", func(t *testing.T) {
		out := f.mustRun(t, "calendar", "list", "--from", "2024-02-05", "--to", "2024-02-06")
		if !strings.Contains(out, "Found 2 events") || !strings.Contains(out, "Team standup") {
			t.Errorf("unexpected output %q", out)
		}
		if !strings.Contains(out, "Impact: restorative") {
			t.Errorf("expected yoga to be restorative, got %q", out)
		}
	})

	t.Run("List JSON", func(t *testing.T) {
		out := f.mustRun(t, "calendar", "list", "--from", "2024-02-05", "--json")
		var rows []eventRow
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(rows) != 2 || rows[0].Category != "meeting" {
			t.Errorf("unexpected rows %+v", rows)
		}
	})

	t.Run("Bad Range", func(t *testing.T) {
		if _, err := f.run(t, "calendar", "list", "--from", "2024-02-06", "--to", "2024-02-05"); err == nil {
			t.Error("expected error for reversed range")
		}
		if _, err := f.run(t, "calendar", "list", "--from", "02/05/2024"); err == nil {
			t.Error("expected error for malformed day")
		}
	})

	t.Run("Create", func(t *testing.T) {
		out := f.mustRun(t, "calendar", "create", "--start", "2024-02-07 07:00", "--duration", "45m", "Gym session")
		if !strings.Contains(out, "Created on Google Calendar") || !strings.Contains(out, "workout") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("Create Rejects Bad Start", func(t *testing.T) {
		if _, err := f.run(t, "calendar", "create", "--start", "tomorrow", "Gym"); err == nil {
			t.Error("expected error for malformed start")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		f.mustRun(t, "calendar", "delete", "yoga")
		if _, ok := f.google.Get("yoga"); ok {
			t.Error("expected yoga removed upstream")
		}
	})

	t.Run("Unknown Provider", func(t *testing.T) {
		if _, err := f.run(t, "calendar", "sync", "--provider", "yahoo"); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("Auth Status", func(t *testing.T) {
		out := f.mustRun(t, "auth", "status")
		if !strings.Contains(out, "✓ Google Calendar: connected") || !strings.Contains(out, "✗ Outlook Calendar: not connected") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestCycleCommands(t *testing.T) {
	f := newFixture(t)

	t.Run("Show Without Cycle", func(t *testing.T) {
		if _, err := f.run(t, "cycle", "show"); err == nil {
			t.Error("expected error before cycle is set")
		}
	})

	t.Run("Set", func(t *testing.T) {
		out := f.mustRun(t, "cycle", "set", "--last-period", "2024-01-29", "--cycle-length", "30")
		if !strings.Contains(out, "Cycle length:  30 days") {
			t.Errorf("unexpected output %q", out)
		}
		if !strings.Contains(out, "Today is cycle day 8 (follicular)") {
			t.Errorf("expected day 8 follicular, got %q", out)
		}
	})

	t.Run("Set Invalid", func(t *testing.T) {
		if _, err := f.run(t, "cycle", "set", "--last-period", "2024-01-29", "--cycle-length", "60"); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Forecast", func(t *testing.T) {
		out := f.mustRun(t, "cycle", "forecast", "--cycles", "2")
		if strings.Count(out, "Period ") != 2 {
			t.Errorf("expected 2 periods, got %q", out)
		}
		if _, err := f.run(t, "cycle", "forecast", "--cycles", "0"); err == nil {
			t.Error("expected error for zero cycles")
		}
	})

	t.Run("ICS", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "forecast.ics")
		f.mustRun(t, "cycle", "ics", "--cycles", "2", "--output", path)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected file written: %v", err)
		}
		if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR") {
			t.Errorf("expected calendar data, got %q", data)
		}
	})

	t.Run("Symptoms", func(t *testing.T) {
		out := f.mustRun(t, "symptoms", "log", "--flow", "light", "--stress", "4", "--symptoms", "Cramps,bloating")
		if !strings.Contains(out, "Logged 2024-02-05 (flow light, 2 symptoms)") {
			t.Errorf("unexpected output %q", out)
		}

		if _, err := f.run(t, "symptoms", "log", "--flow", "gushing"); err == nil {
			t.Error("expected error for unknown flow")
		}

		out = f.mustRun(t, "symptoms", "list", "--json")
		var rows []map[string]any
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(rows) != 1 || rows[0]["flow"] != "light" {
			t.Errorf("unexpected rows %v", rows)
		}
	})
}

func TestWellnessCommands(t *testing.T) {
	f := newFixture(t)

	t.Run("Predict", func(t *testing.T) {
		out := f.mustRun(t, "wellness", "predict", "--json")
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if got["day"] != "2024-02-05" || got["source"] != string(models.SourceFallback) {
			t.Errorf("unexpected prediction %v", got)
		}
	})

	t.Run("Impact", func(t *testing.T) {
		out := f.mustRun(t, "wellness", "impact", "--start", "2024-02-05 10:00", "Job interview")
		if !strings.Contains(out, "category high_stakes") {
			t.Errorf("unexpected output %q", out)
		}
		if _, err := f.run(t, "wellness", "impact", "  "); err == nil {
			t.Error("expected error for blank title")
		}
	})

	t.Run("Gmail Invites", func(t *testing.T) {
		out := f.mustRun(t, "gmail", "invites")
		if !strings.Contains(out, "Invitation: Job interview") || !strings.Contains(out, "(high_stakes)") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("HealthKit Import", func(t *testing.T) {
		export := `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
  <Record type="HKCategoryTypeIdentifierMenstrualFlow" sourceName="Health" startDate="2024-01-01 08:00:00 +0000" endDate="2024-01-01 08:00:00 +0000" value="HKCategoryValueMenstrualFlowHeavy"/>
  <Record type="HKCategoryTypeIdentifierMenstrualFlow" sourceName="Health" startDate="2024-01-02 08:00:00 +0000" endDate="2024-01-02 08:00:00 +0000" value="HKCategoryValueMenstrualFlowMedium"/>
</HealthData>
`
		path := filepath.Join(t.TempDir(), "export.xml")
		if err := os.WriteFile(path, []byte(export), 0644); err != nil {
			t.Fatalf("failed to write export: %v", err)
		}

		out := f.mustRun(t, "healthkit", "import", path)
		if !strings.Contains(out, "Read 2 days of flow data") {
			t.Errorf("unexpected output %q", out)
		}
		if _, err := f.run(t, "healthkit", "import", filepath.Join(t.TempDir(), "missing.xml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestEventsExport(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "calendar", "sync")

	dir := t.TempDir()

	t.Run("Markdown", func(t *testing.T) {
		out := f.mustRun(t, "events", "export", "--from", "2024-02-05", "--format", "md", "--output", filepath.Join(dir, "week"))
		if !strings.Contains(out, filepath.Join(dir, "week", "README.md")) {
			t.Errorf("unexpected output %q", out)
		}
		tu.AssertDirExists(t, filepath.Join(dir, "week"))
		data, err := os.ReadFile(filepath.Join(dir, "week", "README.md"))
		if err != nil {
			t.Fatalf("expected README written: %v", err)
		}
		if !strings.Contains(string(data), "**Team standup**") {
			t.Errorf("expected standup in export, got %q", data)
		}
	})

	t.Run("CSV", func(t *testing.T) {
		base := filepath.Join(dir, "week")
		f.mustRun(t, "events", "export", "--from", "2024-02-05", "--output", base)
		tu.AssertFileExists(t, base+"_events.csv")
	})

	t.Run("Unknown Format", func(t *testing.T) {
		if _, err := f.run(t, "events", "export", "--format", "pdf"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
