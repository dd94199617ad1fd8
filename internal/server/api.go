package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/desertthunder/cadence/internal/wellness"
)

const (
	defaultEventDays    = 7
	defaultSymptomDays  = 30
	defaultForecastSize = 6
)

// EventView is the JSON shape of a cached event.
type EventView struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	CalendarID  string    `json:"calendar_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Category    string    `json:"category"`
	ImpactScore float64   `json:"impact_score"`
	ImpactLevel string    `json:"impact_level"`
}

func eventView(e *models.CalendarEvent) EventView {
	return EventView{
		ID:          e.ExternalID,
		Provider:    string(e.Provider),
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		Location:    e.Location,
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		Category:    e.Category,
		ImpactScore: e.ImpactScore,
		ImpactLevel: e.ImpactLevel,
	}
}

// CycleView is the JSON shape of cycle params with today's position.
type CycleView struct {
	LastPeriodStart string             `json:"last_period_start"`
	CycleLength     int                `json:"cycle_length"`
	PeriodLength    int                `json:"period_length"`
	LutealLength    int                `json:"luteal_length"`
	OvulationDay    int                `json:"ovulation_day"`
	Today           *wellness.CycleDay `json:"today,omitempty"`
}

// SymptomView is the JSON shape of a symptom log.
type SymptomView struct {
	Day      string   `json:"day"`
	Flow     string   `json:"flow"`
	Mood     int      `json:"mood"`
	Energy   int      `json:"energy"`
	Stress   int      `json:"stress"`
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes,omitempty"`
}

func symptomView(l *models.SymptomLog) SymptomView {
	symptoms := l.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	return SymptomView{
		Day: l.Day, Flow: string(l.Flow), Mood: l.Mood, Energy: l.Energy, Stress: l.Stress,
		Symptoms: symptoms, Notes: l.Notes,
	}
}

// PredictionView is the JSON shape of a prediction.
type PredictionView struct {
	Day           string  `json:"day"`
	WellnessIndex float64 `json:"wellness_index"`
	Energy        string  `json:"energy"`
	Mood          string  `json:"mood"`
	Summary       string  `json:"summary"`
	Source        string  `json:"source"`
}

func predictionView(p *models.Prediction) PredictionView {
	return PredictionView{
		Day: p.Day, WellnessIndex: p.WellnessIndex, Energy: p.Energy, Mood: p.Mood,
		Summary: p.Summary, Source: string(p.Source),
	}
}

type createEventRequest struct {
	Provider    string    `json:"provider"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
}

type cycleRequest struct {
	LastPeriodStart string `json:"last_period_start"`
	CycleLength     int    `json:"cycle_length"`
	PeriodLength    int    `json:"period_length"`
	LutealLength    int    `json:"luteal_length"`
}

type symptomRequest struct {
	Day      string   `json:"day"`
	Flow     string   `json:"flow"`
	Mood     int      `json:"mood"`
	Energy   int      `json:"energy"`
	Stress   int      `json:"stress"`
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes"`
}

// APIHandler serves the /api routes. Every route requires the [UserHeader].
type APIHandler struct {
	engine *tasks.CalendarEngine
	logger *log.Logger
	mux    *http.ServeMux
	now    func() time.Time
}

var apiRoutes = []string{
	"GET /api/events",
	"POST /api/events",
	"DELETE /api/events/{id}",
	"GET /api/cycle",
	"PUT /api/cycle",
	"GET /api/cycle/forecast.ics",
	"GET /api/symptoms",
	"POST /api/symptoms",
	"GET /api/predictions/{day}",
	"POST /api/impact",
}

// NewAPIHandler creates the handler over engine.
func NewAPIHandler(engine *tasks.CalendarEngine, logger *log.Logger) *APIHandler {
	h := &APIHandler{engine: engine, logger: logger, mux: http.NewServeMux(), now: time.Now}

	handlers := []http.HandlerFunc{
		h.listEvents, h.createEvent, h.deleteEvent,
		h.getCycle, h.putCycle, h.forecastICS,
		h.listSymptoms, h.logSymptom,
		h.getPrediction, h.impact,
	}
	auth := RequireUser(engine.Stores().Users)
	for i, route := range apiRoutes {
		h.mux.Handle(route, auth(handlers[i]))
	}
	return h
}

func (h *APIHandler) Routes() []string { return apiRoutes }

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// dayRange reads ?from and ?to (YYYY-MM-DD, to inclusive) in loc, defaulting to today plus days.
func (h *APIHandler) dayRange(r *http.Request, loc *time.Location, days int) (time.Time, time.Time, error) {
	from := shared.StartOfDay(h.now().In(loc))
	if s := r.URL.Query().Get("from"); s != "" {
		d, err := shared.ParseDay(s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}

	to := from.AddDate(0, 0, days)
	if s := r.URL.Query().Get("to"); s != "" {
		d, err := shared.ParseDay(s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d.AddDate(0, 0, 1)
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must not be before from", shared.ErrInvalidInput)
	}
	return from, to, nil
}

func providerParam(s string) (models.Provider, error) {
	if s == "" {
		return models.ProviderGoogle, nil
	}
	p, err := models.ParseProvider(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUnsupportedProvider, err)
	}
	return p, nil
}

func (h *APIHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	from, to, err := h.dayRange(r, user.Location(), defaultEventDays)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.engine.ScoreCached(user.ID(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) createEvent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	provider, err := providerParam(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}

	ev, err := h.engine.CreateEvent(r.Context(), user.ID(), provider, services.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
		AllDay:      req.AllDay,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventView(ev))
}

func (h *APIHandler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	provider, err := providerParam(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.DeleteEvent(r.Context(), user.ID(), provider, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) cycleView(params *models.CycleParams, loc *time.Location) CycleView {
	today := wellness.PhaseOn(params, h.now().In(loc))
	return CycleView{
		LastPeriodStart: shared.FormatDay(params.LastPeriodStart),
		CycleLength:     params.CycleLength,
		PeriodLength:    params.PeriodLength,
		LutealLength:    params.LutealLength,
		OvulationDay:    params.OvulationDay(),
		Today:           &today,
	}
}

func (h *APIHandler) getCycle(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	params, err := h.engine.Stores().Cycles.Get(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cycleView(params, user.Location()))
}

func (h *APIHandler) putCycle(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req cycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start, err := shared.ParseDay(req.LastPeriodStart, time.UTC)
	if err != nil {
		writeError(w, err)
		return
	}

	params := models.NewCycleParams(user.ID(), start)
	if req.CycleLength != 0 {
		params.CycleLength = req.CycleLength
	}
	if req.PeriodLength != 0 {
		params.PeriodLength = req.PeriodLength
	}
	if req.LutealLength != 0 {
		params.LutealLength = req.LutealLength
	}

	if err := h.engine.Stores().Cycles.Upsert(params); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cycleView(params, user.Location()))
}

func (h *APIHandler) forecastICS(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	params, err := h.engine.Stores().Cycles.Get(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}

	n := defaultForecastSize
	if s := r.URL.Query().Get("cycles"); s != "" {
		if n, err = strconv.Atoi(s); err != nil || n < 1 || n > 24 {
			writeError(w, fmt.Errorf("%w: cycles must be 1-24", shared.ErrInvalidInput))
			return
		}
	}

	now := h.now()
	forecast, err := wellness.NewForecast(params, now.In(user.Location()), n)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cycle-forecast.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wellness.ExportICS(forecast, user.ID(), "Cycle forecast", now)))
}

func (h *APIHandler) listSymptoms(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	loc := user.Location()

	today := shared.StartOfDay(h.now().In(loc))
	from, to := today.AddDate(0, 0, -defaultSymptomDays), today.AddDate(0, 0, 1)
	if r.URL.Query().Has("from") || r.URL.Query().Has("to") {
		var err error
		if from, to, err = h.dayRange(r, loc, defaultSymptomDays); err != nil {
			writeError(w, err)
			return
		}
	}

	logs, err := h.engine.Stores().Symptoms.Range(user.ID(), shared.FormatDay(from), shared.FormatDay(to.AddDate(0, 0, -1)))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]SymptomView, 0, len(logs))
	for _, l := range logs {
		out = append(out, symptomView(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) logSymptom(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req symptomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Day == "" {
		req.Day = shared.FormatDay(h.now().In(user.Location()))
	}

	flow, err := models.ParseFlow(req.Flow)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	entry := models.NewSymptomLog(user.ID(), req.Day)
	entry.Flow = flow
	entry.Mood = req.Mood
	entry.Energy = req.Energy
	entry.Stress = req.Stress
	entry.SetSymptomString(strings.Join(req.Symptoms, ","))
	entry.Notes = req.Notes

	if err := h.engine.Stores().Symptoms.Upsert(entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, symptomView(entry))
}

func (h *APIHandler) getPrediction(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	day, err := shared.ParseDay(r.PathValue("day"), user.Location())
	if err != nil {
		writeError(w, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	pred, err := h.engine.PredictDay(r.Context(), user.ID(), day, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionView(pred))
}

func (h *APIHandler) impact(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req wellness.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, fmt.Errorf("%w: title", shared.ErrMissingArgument))
		return
	}
	if req.Start.IsZero() {
		req.Start = h.now()
	}

	score, err := h.engine.ImpactFor(user.ID(), req)
	if errors.Is(err, shared.ErrNotFound) {
		writeError(w, fmt.Errorf("%w: unknown user", shared.ErrNotAuthenticated))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}
