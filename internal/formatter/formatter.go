// package formatter exports cached calendar events and symptom logs to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts the format names and a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Export is one user's events and symptom logs for a date range. To is exclusive.
type Export struct {
	Name     string
	From     time.Time
	To       time.Time
	Location *time.Location
	Events   []*models.CalendarEvent
	Symptoms []*models.SymptomLog
}

func (e *Export) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// Range renders the covered days, e.g. "2024-02-05 to 2024-02-11".
func (e *Export) Range() string {
	last := e.To.AddDate(0, 0, -1)
	if !last.After(e.From) {
		return shared.FormatDay(e.From.In(e.loc()))
	}
	return shared.FormatDay(e.From.In(e.loc())) + " to " + shared.FormatDay(last.In(e.loc()))
}

// BaseName is the default file name stem, "{name}_{from}_{to}".
func (e *Export) BaseName() string {
	name := strings.ToLower(strings.Join(strings.Fields(e.Name), "-"))
	if name == "" {
		name = "cadence"
	}
	return fmt.Sprintf("%s_%s_%s", name, shared.FormatDay(e.From.In(e.loc())), shared.FormatDay(e.To.AddDate(0, 0, -1).In(e.loc())))
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (e *Export) timeSpan(ev *models.CalendarEvent) string {
	if ev.AllDay {
		return "all day"
	}
	return ev.Start.In(e.loc()).Format("15:04") + "-" + ev.End.In(e.loc()).Format("15:04")
}

// ExportToCSV writes events with columns: Date, Start, End, All Day, Title, Provider, Category, Impact, Level
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Date", "Start", "End", "All Day", "Title", "Provider", "Category", "Impact", "Level"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	loc := export.loc()
	for _, ev := range export.Events {
		record := []string{
			shared.FormatDay(ev.Start.In(loc)),
			ev.Start.In(loc).Format(time.RFC3339),
			ev.End.In(loc).Format(time.RFC3339),
			strconv.FormatBool(ev.AllDay),
			ev.Title,
			string(ev.Provider),
			ev.Category,
			formatScore(ev.ImpactScore),
			ev.ImpactLevel,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SymptomsToCSV writes symptom logs with columns: Day, Flow, Mood, Energy, Stress, Symptoms, Notes
func SymptomsToCSV(logs []*models.SymptomLog) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Day", "Flow", "Mood", "Energy", "Stress", "Symptoms", "Notes"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, l := range logs {
		record := []string{
			l.Day,
			string(l.Flow),
			strconv.Itoa(l.Mood),
			strconv.Itoa(l.Energy),
			strconv.Itoa(l.Stress),
			strings.Join(l.Symptoms, ";"),
			l.Notes,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// groupByDay buckets events by local start date, keeping their order.
func (e *Export) groupByDay() ([]string, map[string][]*models.CalendarEvent) {
	days := []string{}
	byDay := map[string][]*models.CalendarEvent{}
	for _, ev := range e.Events {
		day := shared.FormatDay(ev.Start.In(e.loc()))
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], ev)
	}
	return days, byDay
}

// ExportToMarkdown renders events grouped by day, followed by a symptom log table.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	name := export.Name
	if name == "" {
		name = "Calendar"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", name))
	buf.WriteString(fmt.Sprintf("**Range**: %s\n", export.Range()))
	buf.WriteString(fmt.Sprintf("**Events**: %d\n", len(export.Events)))
	buf.WriteString(fmt.Sprintf("**Symptom logs**: %d\n\n", len(export.Symptoms)))

	buf.WriteString("## Events\n\n")
	days, byDay := export.groupByDay()
	if len(days) == 0 {
		buf.WriteString("_No events._\n\n")
	}
	for _, day := range days {
		buf.WriteString(fmt.Sprintf("### %s\n\n", day))
		for _, ev := range byDay[day] {
			buf.WriteString(fmt.Sprintf("- %s **%s** (%s, %s %s)\n", export.timeSpan(ev), ev.Title, ev.Category, ev.ImpactLevel, formatScore(ev.ImpactScore)))
		}
		buf.WriteString("\n")
	}

	if len(export.Symptoms) > 0 {
		buf.WriteString("## Symptoms\n\n")
		buf.WriteString("| Day | Flow | Mood | Energy | Stress | Symptoms |\n")
		buf.WriteString("|---|---|---|---|---|---|\n")
		for _, l := range export.Symptoms {
			buf.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s |\n", l.Day, l.Flow, l.Mood, l.Energy, l.Stress, strings.Join(l.Symptoms, ", ")))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain listing of events and logs.
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Range: %s\n", export.Range()))
	buf.WriteString(fmt.Sprintf("Events: %d\n\n", len(export.Events)))

	for i, ev := range export.Events {
		buf.WriteString(fmt.Sprintf("%d. %s %s %s [%s %s]\n", i+1,
			shared.FormatDay(ev.Start.In(export.loc())), export.timeSpan(ev), ev.Title, ev.ImpactLevel, formatScore(ev.ImpactScore)))
	}

	if len(export.Symptoms) > 0 {
		buf.WriteString(fmt.Sprintf("\nSymptom logs: %d\n\n", len(export.Symptoms)))
		for _, l := range export.Symptoms {
			line := fmt.Sprintf("%s flow=%s mood=%d energy=%d stress=%d", l.Day, l.Flow, l.Mood, l.Energy, l.Stress)
			if len(l.Symptoms) > 0 {
				line += " symptoms=" + strings.Join(l.Symptoms, ",")
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes(), nil
}

type eventJSON struct {
	Date        string    `json:"date"`
	Title       string    `json:"title"`
	Provider    string    `json:"provider"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Category    string    `json:"category"`
	ImpactScore float64   `json:"impact_score"`
	ImpactLevel string    `json:"impact_level"`
}

type symptomJSON struct {
	Day      string   `json:"day"`
	Flow     string   `json:"flow"`
	Mood     int      `json:"mood"`
	Energy   int      `json:"energy"`
	Stress   int      `json:"stress"`
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes,omitempty"`
}

type exportJSON struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Events   []eventJSON   `json:"events"`
	Symptoms []symptomJSON `json:"symptoms"`
}

// ExportToJSON renders the export as a single pretty-printed document.
func ExportToJSON(export *Export) ([]byte, error) {
	loc := export.loc()
	doc := exportJSON{
		From:     shared.FormatDay(export.From.In(loc)),
		To:       shared.FormatDay(export.To.AddDate(0, 0, -1).In(loc)),
		Events:   make([]eventJSON, 0, len(export.Events)),
		Symptoms: make([]symptomJSON, 0, len(export.Symptoms)),
	}
	for _, ev := range export.Events {
		doc.Events = append(doc.Events, eventJSON{
			Date: shared.FormatDay(ev.Start.In(loc)), Title: ev.Title, Provider: string(ev.Provider),
			Start: ev.Start.In(loc), End: ev.End.In(loc), AllDay: ev.AllDay,
			Category: ev.Category, ImpactScore: ev.ImpactScore, ImpactLevel: ev.ImpactLevel,
		})
	}
	for _, l := range export.Symptoms {
		symptoms := l.Symptoms
		if symptoms == nil {
			symptoms = []string{}
		}
		doc.Symptoms = append(doc.Symptoms, symptomJSON{
			Day: l.Day, Flow: string(l.Flow), Mood: l.Mood, Energy: l.Energy, Stress: l.Stress,
			Symptoms: symptoms, Notes: l.Notes,
		})
	}
	return shared.MarshalJSON(doc, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	EventsFile   string
	SymptomsFile string
}

// WriteCSVExport writes {base}_events.csv and, when there are logs, {base}_symptoms.csv.
//
// Defaults to [Export.BaseName] as the base filename.
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.BaseName()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	result := &CSVExportResult{EventsFile: baseFilepath + "_events.csv"}
	if err := os.WriteFile(result.EventsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	if len(export.Symptoms) == 0 {
		return result, nil
	}

	symptomData, err := SymptomsToCSV(export.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("failed to generate symptom CSV: %w", err)
	}

	result.SymptomsFile = baseFilepath + "_symptoms.csv"
	if err := os.WriteFile(result.SymptomsFile, symptomData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write symptom CSV file: %w", err)
	}
	return result, nil
}

// WriteMarkdownExport writes {dir}/README.md, creating dir. Directory name defaults to [Export.BaseName].
func WriteMarkdownExport(export *Export, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.BaseName()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport writes the plain text export, defaulting to {base}.txt.
func WriteTextExport(export *Export, path string) (string, error) {
	return writeFile(path, export.BaseName()+".txt", export, ExportToText)
}

// WriteJSONExport writes the JSON export, defaulting to {base}.json.
func WriteJSONExport(export *Export, path string) (string, error) {
	return writeFile(path, export.BaseName()+".json", export, ExportToJSON)
}

func writeFile(path, fallback string, export *Export, render func(*Export) ([]byte, error)) (string, error) {
	if path == "" {
		path = fallback
	}

	data, err := render(export)
	if err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}
