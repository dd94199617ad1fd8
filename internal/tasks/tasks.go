// package tasks implements calendar synchronization, watch renewal and wellness predictions.
//
// The core abstraction is SyncEngine, which keeps the local event cache in step with the user's calendars.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/wellness"
	"golang.org/x/oauth2"
)

const (
	defaultWindowDays = 14
	defaultWorkers    = 4
	defaultRateLimit  = 5.0
	defaultWatchTTL   = 7 * 24 * time.Hour
)

// SyncResult summarizes one (user, provider) synchronization.
type SyncResult struct {
	UserID     string
	Provider   models.Provider
	CalendarID string
	From       time.Time
	To         time.Time
	Events     []*models.CalendarEvent // Stored events with their impact
	Cancelled  int                     // Events the provider reported as cancelled
	Removed    int64                   // Cached events no longer on the calendar
}

// SyncEngine defines the background operations behind the CLI, scheduler and webhooks.
type SyncEngine interface {
	// SyncUser refreshes the cached events of one connected calendar and scores their impact.
	SyncUser(ctx context.Context, progress chan<- ProgressUpdate, userID string, provider models.Provider) (*SyncResult, error)

	// SyncAll runs SyncUser for every stored token through a rate limited worker pool.
	SyncAll(ctx context.Context, progress chan<- ProgressUpdate) (*SyncAllResult, error)

	// RenewWatches extends or re-creates push channels that lapse within the threshold.
	RenewWatches(ctx context.Context, progress chan<- ProgressUpdate, within time.Duration) (*RenewResult, error)

	// PredictDay returns the wellness prediction for day, computing and storing it when missing or forced.
	PredictDay(ctx context.Context, userID string, day time.Time, force bool) (*models.Prediction, error)
}

// Stores groups the repositories the engine reads and writes.
type Stores struct {
	Users       *repositories.UserRepository
	Tokens      *repositories.TokenRepository
	Symptoms    *repositories.SymptomRepository
	Cycles      *repositories.CycleRepository
	Watches     *repositories.WatchRepository
	Events      *repositories.EventRepository
	Predictions *repositories.PredictionRepository
}

// NewStores creates every repository over db.
func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Users:       repositories.NewUserRepository(db),
		Tokens:      repositories.NewTokenRepository(db),
		Symptoms:    repositories.NewSymptomRepository(db),
		Cycles:      repositories.NewCycleRepository(db),
		Watches:     repositories.NewWatchRepository(db),
		Events:      repositories.NewEventRepository(db),
		Predictions: repositories.NewPredictionRepository(db),
	}
}

// Options configures a [CalendarEngine]. Zero values fall back to defaults.
type Options struct {
	Stores    *Stores
	OAuth     map[models.Provider]*oauth2.Config
	Factory   services.CalendarFactory
	Predictor *wellness.Predictor

	// CalendarIDs selects the calendar synced per provider; "primary" when unset.
	CalendarIDs map[models.Provider]string
	WindowDays  int
	Workers     int
	RateLimit   float64 // requests per second across workers

	PublicURL    string // base URL webhooks are registered under
	WebhookToken string
	WatchTTL     time.Duration
	HistoryDays  int // symptom logs fed to predictions

	Logger *log.Logger
	Now    func() time.Time
}

// CalendarEngine implements [SyncEngine] over the repositories and provider clients.
type CalendarEngine struct {
	stores      *Stores
	oauth       map[models.Provider]*oauth2.Config
	factory     services.CalendarFactory
	predictor   *wellness.Predictor
	calendarIDs map[models.Provider]string
	windowDays  int
	workers     int
	rateLimit   float64
	publicURL   string
	token       string
	watchTTL    time.Duration
	historyDays int
	logger      *log.Logger
	now         func() time.Time
}

var _ SyncEngine = (*CalendarEngine)(nil)

// NewEngine creates a CalendarEngine from opts.
func NewEngine(opts Options) *CalendarEngine {
	e := &CalendarEngine{
		stores:      opts.Stores,
		oauth:       opts.OAuth,
		factory:     opts.Factory,
		predictor:   opts.Predictor,
		calendarIDs: opts.CalendarIDs,
		windowDays:  opts.WindowDays,
		workers:     opts.Workers,
		rateLimit:   opts.RateLimit,
		publicURL:   opts.PublicURL,
		token:       opts.WebhookToken,
		watchTTL:    opts.WatchTTL,
		historyDays: opts.HistoryDays,
		logger:      opts.Logger,
		now:         opts.Now,
	}

	if e.factory == nil {
		e.factory = services.NewCalendarService
	}
	if e.predictor == nil {
		e.predictor = wellness.NewPredictor(nil, wellness.DefaultJitter, e.logger)
	}
	if e.windowDays <= 0 {
		e.windowDays = defaultWindowDays
	}
	if e.workers <= 0 {
		e.workers = defaultWorkers
	}
	if e.rateLimit <= 0 {
		e.rateLimit = defaultRateLimit
	}
	if e.watchTTL <= 0 {
		e.watchTTL = defaultWatchTTL
	}
	if e.historyDays <= 0 {
		e.historyDays = 7
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// NewEngineFromConfig wires an engine from the loaded configuration.
// Providers without a client id are left unconfigured and fail with [shared.ErrMissingCredentials].
func NewEngineFromConfig(cfg *shared.Config, stores *Stores, predictor *wellness.Predictor, logger *log.Logger) *CalendarEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	oauthConfigs := map[models.Provider]*oauth2.Config{}
	creds := map[models.Provider]map[string]string{
		models.ProviderGoogle:    cfg.Credentials.Google.Map(),
		models.ProviderMicrosoft: cfg.Credentials.Microsoft.Map(),
	}
	for provider, c := range creds {
		client, err := services.NewOAuthClient(provider, c)
		if err != nil {
			logger.Debug("provider not configured", "provider", provider, "error", err)
			continue
		}
		oauthConfigs[provider] = client.OAuthConfig()
	}

	return NewEngine(Options{
		Stores:    stores,
		OAuth:     oauthConfigs,
		Predictor: predictor,
		CalendarIDs: map[models.Provider]string{
			models.ProviderGoogle:    cfg.Credentials.Google.CalendarID,
			models.ProviderMicrosoft: cfg.Credentials.Microsoft.CalendarID,
		},
		WindowDays:   cfg.Sync.WindowDays,
		Workers:      cfg.Sync.Workers,
		RateLimit:    cfg.Sync.RateLimit,
		PublicURL:    cfg.Server.PublicURL,
		WebhookToken: cfg.Server.WebhookToken,
		WatchTTL:     time.Duration(cfg.Sync.WatchTTLHours) * time.Hour,
		HistoryDays:  cfg.Wellness.HistoryDays,
		Logger:       logger,
	})
}

// Stores exposes the engine's repositories to the HTTP and CLI layers.
func (e *CalendarEngine) Stores() *Stores { return e.stores }

// Predictor returns the predictor used by PredictDay.
func (e *CalendarEngine) Predictor() *wellness.Predictor { return e.predictor }

// CalendarID returns the calendar synced for provider.
func (e *CalendarEngine) CalendarID(provider models.Provider) string {
	if id := e.calendarIDs[provider]; id != "" {
		return id
	}
	return "primary"
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *CalendarEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// TokenSource loads the user's stored token for provider as a refreshing token source.
func (e *CalendarEngine) TokenSource(ctx context.Context, userID string, provider models.Provider) (*services.StoredTokenSource, error) {
	config, ok := e.oauth[provider]
	if !ok || config == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingCredentials, provider)
	}

	record, err := e.stores.Tokens.Get(userID, provider)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: connect %s first", shared.ErrNotAuthenticated, provider.DisplayName())
		}
		return nil, err
	}
	return services.NewStoredTokenSource(ctx, config, e.stores.Tokens, record), nil
}

// Calendar resolves an authorized client for the user's stored token.
// The returned token source is used with [services.WithTokenRetry].
func (e *CalendarEngine) Calendar(ctx context.Context, userID string, provider models.Provider) (services.CalendarService, *services.StoredTokenSource, error) {
	ts, err := e.TokenSource(ctx, userID, provider)
	if err != nil {
		return nil, nil, err
	}

	cal, err := e.factory(ctx, provider, ts.Client(nil))
	if err != nil {
		return nil, nil, err
	}
	return cal, ts, nil
}

// SyncUser fetches the sync window, scores every event and replaces the cached rows.
func (e *CalendarEngine) SyncUser(ctx context.Context, progress chan<- ProgressUpdate, userID string, provider models.Provider) (*SyncResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	user, err := e.stores.Users.Get(userID)
	if err != nil {
		return nil, err
	}
	loc := user.Location()

	e.sendProgress(progress, resolveCalendarUpdate(provider))
	cal, ts, err := e.Calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	calendarID := e.CalendarID(provider)
	from := shared.StartOfDay(e.now().In(loc))
	to := from.AddDate(0, 0, e.windowDays)

	e.sendProgress(progress, fetchEventsUpdate(provider, e.windowDays))
	var items []services.Event
	err = services.WithTokenRetry(ctx, ts, func(ctx context.Context) error {
		var err error
		items, err = cal.ListEvents(ctx, calendarID, from, to)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s events: %w", provider, err)
	}

	cycle, err := e.CycleFor(userID)
	if err != nil {
		return nil, err
	}
	stress := e.LatestStress(userID)

	result := &SyncResult{UserID: userID, Provider: provider, CalendarID: calendarID, From: from, To: to}
	keep := make([]string, 0, len(items))
	for i, item := range items {
		if item.Cancelled() {
			result.Cancelled++
			continue
		}

		ev := toCalendarEvent(userID, provider, calendarID, item, loc)
		wellness.ScoreEvent(ev, phaseOn(cycle, ev.Start.In(loc)), stress, loc)

		result.Events = append(result.Events, ev)
		keep = append(keep, ev.ExternalID)
		e.sendProgress(progress, scoreEventUpdate(i+1, len(items), ev))
	}

	e.sendProgress(progress, storeEventsUpdate(len(result.Events)))
	if err := e.stores.Events.UpsertMany(result.Events); err != nil {
		return nil, err
	}

	removed, err := e.stores.Events.DeleteMissing(userID, provider, calendarID, from, to, keep)
	if err != nil {
		return nil, err
	}
	result.Removed = removed
	e.sendProgress(progress, pruneEventsUpdate(removed))

	e.logger.Info("calendar synced",
		"user", userID, "provider", provider, "events", len(result.Events),
		"cancelled", result.Cancelled, "removed", removed)
	return result, nil
}

// CycleFor returns the user's cycle params or nil when none are recorded.
func (e *CalendarEngine) CycleFor(userID string) (*models.CycleParams, error) {
	cycle, err := e.stores.Cycles.Get(userID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return cycle, err
}

// LatestStress returns the stress of the newest symptom log, 0 when unknown.
func (e *CalendarEngine) LatestStress(userID string) int {
	logs, err := e.stores.Symptoms.Recent(userID, 1)
	if err != nil {
		e.logger.Warn("failed to load latest stress", "user", userID, "error", err)
		return 0
	}
	if len(logs) == 0 {
		return 0
	}
	return logs[0].Stress
}

// phaseOn is neutral when the cycle is unknown.
func phaseOn(cycle *models.CycleParams, day time.Time) wellness.Phase {
	if cycle == nil {
		return ""
	}
	return wellness.PhaseOn(cycle, day).Phase
}

// localDate puts the calendar date of t at midnight in loc. Providers report all-day
// events as UTC midnight, which falls on the previous day west of UTC.
func localDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func toCalendarEvent(userID string, provider models.Provider, calendarID string, item services.Event, loc *time.Location) *models.CalendarEvent {
	ev := models.NewCalendarEvent(userID, provider, calendarID, item.ID)
	ev.Title = item.Title
	ev.Location = item.Location
	ev.Start = item.Start
	ev.End = item.End
	ev.AllDay = item.AllDay
	if ev.AllDay {
		ev.Start = localDate(item.Start, loc)
		ev.End = localDate(item.End, loc)
		if !ev.End.After(ev.Start) {
			ev.End = ev.Start.AddDate(0, 0, 1)
		}
	}
	return ev
}

// ScoreCached recomputes the impact of cached events in [from, to) without contacting providers.
func (e *CalendarEngine) ScoreCached(userID string, from, to time.Time) ([]*models.CalendarEvent, error) {
	user, err := e.stores.Users.Get(userID)
	if err != nil {
		return nil, err
	}
	events, err := e.stores.Events.Range(userID, from, to)
	if err != nil {
		return nil, err
	}
	cycle, err := e.CycleFor(userID)
	if err != nil {
		return nil, err
	}

	loc, stress := user.Location(), e.LatestStress(userID)
	for _, ev := range events {
		wellness.ScoreEvent(ev, phaseOn(cycle, ev.Start.In(loc)), stress, loc)
	}
	return events, nil
}
