package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/desertthunder/cadence/internal/wellness"
)

// UpcomingDays is how far ahead the event list reaches.
const UpcomingDays = 7

// Source is the slice of [tasks.CalendarEngine] the dashboard reads from.
type Source interface {
	CycleFor(userID string) (*models.CycleParams, error)
	PredictDay(ctx context.Context, userID string, day time.Time, force bool) (*models.Prediction, error)
	ScoreCached(userID string, from, to time.Time) ([]*models.CalendarEvent, error)
	SyncUser(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID string, provider models.Provider) (*tasks.SyncResult, error)
}

var _ Source = (*tasks.CalendarEngine)(nil)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	DashboardView
	SyncView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	source       Source
	user         *models.User
	provider     models.Provider
	now          func() time.Time
	view         ViewState
	width        int
	height       int
	data         dashboard
	events       list.Model
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	syncDone     chan Msg
	progress     tasks.ProgressUpdate
	syncResult   *tasks.SyncResult
	syncErr      error
	status       string
	help         help.Model
	keys         keyMap
}

// NewModel creates a dashboard for user, syncing provider when asked.
func NewModel(ctx context.Context, source Source, user *models.User, provider models.Provider) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	events := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	events.Title = "Upcoming events"
	events.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		source:   source,
		user:     user,
		provider: provider,
		now:      time.Now,
		view:     LoadingView,
		events:   events,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the dashboard.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.events.SetSize(msg.Width-4, max(msg.Height-14, 4))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDashboardLoaded:
		m.data = msg.data.(dashboard)
		items := make([]list.Item, len(m.data.events))
		for i, ev := range m.data.events {
			items[i] = newEventItem(ev, m.user.Location())
		}
		cmd := m.events.SetItems(items)
		m.view = DashboardView
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		out := msg.data.(syncOutcome)
		m.syncResult, m.syncErr = out.result, out.err
		m.progressChan, m.syncDone = nil, nil
		if out.err != nil {
			m.status = styles.err.Render("Sync failed: " + shared.UserMessage(out.err))
			m.view = DashboardView
			return m, nil
		}
		m.status = styles.ok.Render(fmt.Sprintf("✓ Synced %d events (%d removed)", len(out.result.Events), out.result.Removed))
		return m, m.load()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.view == SyncView:
		return m, nil
	case key.Matches(msg, m.keys.sync):
		m.view = SyncView
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.startSync())
	case key.Matches(msg, m.keys.refresh):
		m.status = ""
		return m, m.load()
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// load reads the cycle position, today's prediction and the upcoming events.
func (m *Model) load() tea.Cmd {
	source, user, ctx := m.source, m.user, m.ctx
	now := m.now().In(user.Location())

	return func() tea.Msg {
		var d dashboard
		today := shared.StartOfDay(now)

		cycle, err := source.CycleFor(user.ID())
		if err != nil {
			d.err = err
			return dashboardLoadedMsg(d)
		}
		if cycle != nil {
			day := wellness.PhaseOn(cycle, today)
			d.today = &day
		}

		if d.prediction, err = source.PredictDay(ctx, user.ID(), today, false); err != nil {
			d.err = err
		}
		events, err := source.ScoreCached(user.ID(), today, today.AddDate(0, 0, UpcomingDays))
		if err != nil {
			d.err = errors.Join(d.err, err)
		}
		d.events = events
		return dashboardLoadedMsg(d)
	}
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.syncDone = make(chan Msg, 1)
	progress, done := m.progressChan, m.syncDone
	source, ctx, userID, provider := m.source, m.ctx, m.user.ID(), m.provider

	go func() {
		result, err := source.SyncUser(ctx, progress, userID, provider)
		done <- syncCompleteMsg(result, err)
		close(progress)
	}()

	return m.waitForProgress()
}

// waitForProgress reads the next update; once the channel closes the sync outcome is delivered.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.syncDone
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	title := styles.title.Render("cadence")

	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s\n%s Loading dashboard...", title, m.spinner.View())
	case SyncView:
		return fmt.Sprintf("%s\n%s Syncing %s\n%s", title, m.spinner.View(), m.provider.DisplayName(), m.renderProgress())
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, styles.panel.Render(m.renderCycle()), " ", styles.panel.Render(m.renderPrediction())))
	b.WriteString("\n\n")
	b.WriteString(m.events.View())
	if m.data.err != nil {
		b.WriteString("\n" + styles.warn.Render("Some data could not be loaded: "+shared.UserMessage(m.data.err)))
	}
	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	b.WriteString("\n\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderProgress() string {
	p := m.progress
	if p.Total > 0 {
		return fmt.Sprintf("%s (%d/%d)", p.Message, p.Step, p.Total)
	}
	return p.Message
}

func (m *Model) renderCycle() string {
	if m.data.today == nil {
		return "No cycle data\n" + styles.help.Render("run `cadence cycle set`")
	}
	d := m.data.today
	lines := []string{
		fmt.Sprintf("Cycle day %d", d.Day),
		fmt.Sprintf("Phase: %s", d.Phase),
	}
	if d.DaysUntilPeriod > 0 {
		lines = append(lines, fmt.Sprintf("Next period in %d days", d.DaysUntilPeriod))
	} else {
		lines = append(lines, "Period starts today")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPrediction() string {
	p := m.data.prediction
	if p == nil {
		return "No prediction"
	}
	lines := []string{
		fmt.Sprintf("Wellness %.0f/100", p.WellnessIndex),
		fmt.Sprintf("Energy: %s • Mood: %s", p.Energy, p.Mood),
	}
	if p.Summary != "" {
		lines = append(lines, styles.help.Render(p.Summary))
	}
	return strings.Join(lines, "\n")
}
