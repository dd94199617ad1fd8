package formatter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	th "github.com/desertthunder/cadence/internal/testing"
)

func event(id, title string, start, end time.Time, category, level string, score float64) *models.CalendarEvent {
	ev := models.NewCalendarEvent("u1", models.ProviderGoogle, "primary", id)
	ev.Title = title
	ev.Start = start
	ev.End = end
	ev.Category = category
	ev.ImpactLevel = level
	ev.ImpactScore = score
	return ev
}

func testExport() *Export {
	conference := event("conf", "Conference", time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC), "general", "low", 0.8)
	conference.AllDay = true

	log := models.NewSymptomLog("u1", "2024-02-05")
	log.Flow = models.FlowLight
	log.Stress = 4
	log.SetSymptomString("cramps,bloating")
	log.Notes = "tired, but ok"

	return &Export{
		From: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC),
		Events: []*models.CalendarEvent{
			event("standup", "Team standup", time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC), time.Date(2024, 2, 5, 10, 15, 0, 0, time.UTC), "meeting", "moderate", 0.97),
			event("yoga", "Yoga class", time.Date(2024, 2, 6, 18, 0, 0, 0, time.UTC), time.Date(2024, 2, 6, 19, 0, 0, 0, time.UTC), "restorative", "restorative", -0.95),
			conference,
		},
		Symptoms: []*models.SymptomLog{log},
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "csv", want: FormatCSV},
		{in: "MD", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: "text", want: FormatText},
		{in: " json ", want: FormatJSON},
		{in: "xlsx", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	t.Run("Range And BaseName", func(t *testing.T) {
		export := testExport()
		if export.Range() != "2024-02-05 to 2024-02-11" {
			t.Errorf("unexpected range %q", export.Range())
		}
		if export.BaseName() != "cadence_2024-02-05_2024-02-11" {
			t.Errorf("unexpected base name %q", export.BaseName())
		}

		export.Name = "Work  Week"
		if export.BaseName() != "work-week_2024-02-05_2024-02-11" {
			t.Errorf("unexpected base name %q", export.BaseName())
		}
	})

	t.Run("Single Day Range", func(t *testing.T) {
		export := &Export{From: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC)}
		if export.Range() != "2024-02-05" {
			t.Errorf("unexpected range %q", export.Range())
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Date,Start,End,All Day,Title,Provider,Category,Impact,Level\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "2024-02-05,2024-02-05T10:00:00Z,2024-02-05T10:15:00Z,false,Team standup,google,meeting,0.97,moderate") {
			t.Errorf("CSV missing standup row, got: %s", output)
		}
		if !strings.Contains(output, "Yoga class,google,restorative,-0.95,restorative") {
			t.Errorf("CSV missing yoga row")
		}
		if strings.Count(output, "\n") != 4 {
			t.Errorf("expected 4 lines, got %d", strings.Count(output, "\n"))
		}
	})

	t.Run("ExportToCSV In Location", func(t *testing.T) {
		export := testExport()
		export.Location = time.FixedZone("UTC+2", 2*3600)
		export.Events[1].Start = time.Date(2024, 2, 6, 23, 0, 0, 0, time.UTC)

		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), "2024-02-07,2024-02-07T01:00:00+02:00") {
			t.Errorf("expected local date and time, got: %s", data)
		}
	})

	t.Run("SymptomsToCSV", func(t *testing.T) {
		data, err := SymptomsToCSV(testExport().Symptoms)
		if err != nil {
			t.Fatalf("SymptomsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Day,Flow,Mood,Energy,Stress,Symptoms,Notes") {
			t.Errorf("CSV missing headers")
		}
		if !strings.Contains(output, `2024-02-05,light,0,0,4,cramps;bloating,"tired, but ok"`) {
			t.Errorf("CSV missing log row, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		export := testExport()
		export.Name = "Work week"

		data, err := ExportToMarkdown(export)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Work week",
			"**Range**: 2024-02-05 to 2024-02-11",
			"**Events**: 3",
			"### 2024-02-05",
			"- 10:00-10:15 **Team standup** (meeting, moderate 0.97)",
			"### 2024-02-07",
			"- all day **Conference** (general, low 0.80)",
			"## Symptoms",
			"| 2024-02-05 | light | 0 | 0 | 4 | cramps, bloating |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown Empty", func(t *testing.T) {
		data, err := ExportToMarkdown(&Export{From: time.Now(), To: time.Now().AddDate(0, 0, 1)})
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "# Calendar") || !strings.Contains(output, "_No events._") {
			t.Errorf("unexpected output:\n%s", output)
		}
		if strings.Contains(output, "## Symptoms") {
			t.Error("symptom section should be omitted without logs")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Range: 2024-02-05 to 2024-02-11",
			"Events: 3",
			"1. 2024-02-05 10:00-10:15 Team standup [moderate 0.97]",
			"3. 2024-02-07 all day Conference [low 0.80]",
			"2024-02-05 flow=light mood=0 energy=0 stress=4 symptoms=cramps,bloating",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(testExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var doc struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Events []struct {
				Title       string  `json:"title"`
				ImpactScore float64 `json:"impact_score"`
			} `json:"events"`
			Symptoms []struct {
				Symptoms []string `json:"symptoms"`
			} `json:"symptoms"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.From != "2024-02-05" || doc.To != "2024-02-11" {
			t.Errorf("unexpected range %s - %s", doc.From, doc.To)
		}
		if len(doc.Events) != 3 || doc.Events[1].ImpactScore != -0.95 {
			t.Errorf("unexpected events %+v", doc.Events)
		}
		if len(doc.Symptoms) != 1 || len(doc.Symptoms[0].Symptoms) != 2 {
			t.Errorf("unexpected symptoms %+v", doc.Symptoms)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(testExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.EventsFile != "cadence_2024-02-05_2024-02-11_events.csv" {
				t.Errorf("unexpected events file %q", result.EventsFile)
			}
			if result.SymptomsFile != "cadence_2024-02-05_2024-02-11_symptoms.csv" {
				t.Errorf("unexpected symptoms file %q", result.SymptomsFile)
			}
			th.AssertFileExists(t, result.EventsFile)
			th.AssertFileExists(t, result.SymptomsFile)

			if !strings.Contains(th.MustReadFile(t, result.EventsFile), "Team standup") {
				t.Errorf("CSV missing event data")
			}
		})

		t.Run("Without Symptoms", func(t *testing.T) {
			export := testExport()
			export.Symptoms = nil
			base := filepath.Join(t.TempDir(), "week")

			result, err := WriteCSVExport(export, base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.EventsFile != base+"_events.csv" || result.SymptomsFile != "" {
				t.Errorf("unexpected result %+v", result)
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithCustomDirectory", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested", "export")

			path, err := WriteMarkdownExport(testExport(), dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertDirExists(t, dir)
			if path != filepath.Join(dir, "README.md") {
				t.Errorf("unexpected path %q", path)
			}
			if !strings.Contains(th.MustReadFile(t, path), "## Events") {
				t.Errorf("README missing events section")
			}
		})

		t.Run("WithDefaultDirectory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			path, err := WriteMarkdownExport(testExport(), "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertFileExists(t, filepath.Join("cadence_2024-02-05_2024-02-11", "README.md"))
			if path != filepath.Join("cadence_2024-02-05_2024-02-11", "README.md") {
				t.Errorf("unexpected path %q", path)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		got, err := WriteTextExport(testExport(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		if !strings.Contains(th.MustReadFile(t, path), "Yoga class") {
			t.Errorf("text export missing event")
		}
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteJSONExport(testExport(), "")
		if err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}
		if path != "cadence_2024-02-05_2024-02-11.json" {
			t.Errorf("unexpected path %q", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("Write Failure", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteTextExport(testExport(), filepath.Join(blocker, "out.txt")); err == nil {
			t.Error("expected error writing below a file")
		}
	})
}
