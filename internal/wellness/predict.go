package wellness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// LLM completes a prompt, returning the model's JSON answer.
//
// Implemented by [services.OpenAIService].
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PredictionInput is everything the predictor knows about a day.
type PredictionInput struct {
	UserID string
	Cycle  CycleDay
	// Logs are recent symptom logs, newest first.
	Logs   []*models.SymptomLog
	Events []*models.CalendarEvent
}

// DefaultJitter bounds the random component of fallback predictions.
const DefaultJitter = 3.0

const systemPrompt = `You are a wellness assistant for a menstrual cycle tracker.
Given the user's cycle phase, recent symptom logs and today's calendar, estimate their wellness.
Answer with a JSON object only: {"wellness_index": <0-100>, "energy": "low|moderate|high", "mood": "<one word>", "summary": "<one or two sentences>"}.`

type llmAnswer struct {
	WellnessIndex *float64 `json:"wellness_index"`
	Energy        string   `json:"energy"`
	Mood          string   `json:"mood"`
	Summary       string   `json:"summary"`
}

var phaseBaselines = map[Phase]float64{
	PhaseMenstrual:  55,
	PhaseFollicular: 75,
	PhaseOvulation:  80,
	PhaseLuteal:     62,
}

// Predictor produces daily wellness predictions.
type Predictor struct {
	llm    LLM
	jitter float64
	logger *log.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPredictor creates a predictor. A nil llm always uses the fallback formula.
// A negative jitter falls back to [DefaultJitter].
func NewPredictor(llm LLM, jitter float64, logger *log.Logger) *Predictor {
	if jitter < 0 {
		jitter = DefaultJitter
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	seed := uint64(time.Now().UnixNano())
	return &Predictor{
		llm:    llm,
		jitter: jitter,
		logger: logger,
		rnd:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// WithRand replaces the jitter source.
func (p *Predictor) WithRand(r *rand.Rand) *Predictor {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rnd = r
	return p
}

// Predict returns the prediction for in.Cycle.Date. LLM failures are logged and
// answered with [Predictor.Fallback]; only invalid input is an error.
func (p *Predictor) Predict(ctx context.Context, in PredictionInput) (*models.Prediction, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if in.Cycle.Date.IsZero() {
		return nil, fmt.Errorf("%w: prediction day", shared.ErrMissingArgument)
	}

	if p.llm == nil {
		return p.Fallback(in), nil
	}

	answer, err := p.llm.Complete(ctx, systemPrompt, BuildPrompt(in))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		p.logger.Warn("llm prediction failed, using fallback", "user", in.UserID, "error", err)
		return p.Fallback(in), nil
	}

	pred, err := parseAnswer(in, answer)
	if err != nil {
		p.logger.Warn("unusable llm answer, using fallback", "user", in.UserID, "error", err)
		return p.Fallback(in), nil
	}
	return pred, nil
}

func parseAnswer(in PredictionInput, answer string) (*models.Prediction, error) {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")

	var a llmAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(answer)), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if a.WellnessIndex == nil || math.IsNaN(*a.WellnessIndex) {
		return nil, fmt.Errorf("%w: wellness_index missing", shared.ErrInvalidInput)
	}

	pred := models.NewPrediction(in.UserID, shared.FormatDay(in.Cycle.Date))
	pred.WellnessIndex = clamp(math.Round(*a.WellnessIndex))
	pred.Energy = strings.ToLower(strings.TrimSpace(a.Energy))
	if pred.Energy == "" {
		pred.Energy = energyLabel(pred.WellnessIndex)
	}
	pred.Mood = strings.TrimSpace(a.Mood)
	pred.Summary = strings.TrimSpace(a.Summary)
	pred.Source = models.SourceAI
	return pred, nil
}

// FallbackScore evaluates the fallback formula without jitter or clamping.
func FallbackScore(in PredictionInput) float64 {
	score := phaseBaselines[in.Cycle.Phase]
	if score == 0 {
		score = 65
	}

	stress, energy := averages(in.Logs)
	score -= 6 * (stress - 3)
	score += 5 * (energy - 3)

	for _, ev := range in.Events {
		if ev.ImpactScore > 0 {
			score -= 3 * ev.ImpactScore
		} else {
			score += 2 * -ev.ImpactScore
		}
	}
	return score
}

// Fallback predicts with the fixed formula plus jitter in [-J, +J], clamped to 0-100.
func (p *Predictor) Fallback(in PredictionInput) *models.Prediction {
	p.mu.Lock()
	jitter := (p.rnd.Float64()*2 - 1) * p.jitter
	p.mu.Unlock()

	index := clamp(math.Round(FallbackScore(in) + jitter))

	pred := models.NewPrediction(in.UserID, shared.FormatDay(in.Cycle.Date))
	pred.WellnessIndex = index
	pred.Energy = energyLabel(index)
	pred.Mood = moodLabel(in.Logs)
	pred.Summary = fmt.Sprintf("Cycle day %d (%s phase) with %d scheduled events.", in.Cycle.Day, in.Cycle.Phase, len(in.Events))
	pred.Source = models.SourceFallback
	return pred
}

// averages returns mean logged stress and energy. Unlogged values (0) are skipped,
// and a scale with no entries averages to the neutral 3.
func averages(logs []*models.SymptomLog) (stress, energy float64) {
	var sSum, eSum, sN, eN float64
	for _, l := range logs {
		if l.Stress > 0 {
			sSum += float64(l.Stress)
			sN++
		}
		if l.Energy > 0 {
			eSum += float64(l.Energy)
			eN++
		}
	}

	stress, energy = 3, 3
	if sN > 0 {
		stress = sSum / sN
	}
	if eN > 0 {
		energy = eSum / eN
	}
	return stress, energy
}

func energyLabel(index float64) string {
	switch {
	case index >= 70:
		return "high"
	case index >= 45:
		return "moderate"
	default:
		return "low"
	}
}

func moodLabel(logs []*models.SymptomLog) string {
	for _, l := range logs {
		switch {
		case l.Mood == 0:
			continue
		case l.Mood >= 4:
			return "positive"
		case l.Mood <= 2:
			return "low"
		default:
			return "steady"
		}
	}
	return "unknown"
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// BuildPrompt describes the day for the LLM.
func BuildPrompt(in PredictionInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Date: %s\n", shared.FormatDay(in.Cycle.Date))
	fmt.Fprintf(&b, "Cycle day: %d (%s phase), next period in %d days\n", in.Cycle.Day, in.Cycle.Phase, in.Cycle.DaysUntilPeriod)

	b.WriteString("\nRecent symptom logs:\n")
	if len(in.Logs) == 0 {
		b.WriteString("- none\n")
	}
	for _, l := range in.Logs {
		fmt.Fprintf(&b, "- %s: flow=%s mood=%d energy=%d stress=%d", l.Day, l.Flow, l.Mood, l.Energy, l.Stress)
		if len(l.Symptoms) > 0 {
			fmt.Fprintf(&b, " symptoms=%s", l.SymptomString())
		}
		b.WriteString("\n")
	}

	b.WriteString("\nToday's events:\n")
	if len(in.Events) == 0 {
		b.WriteString("- none\n")
	}
	for _, ev := range in.Events {
		when := "all day"
		if !ev.AllDay {
			when = ev.Start.Format("15:04")
		}
		fmt.Fprintf(&b, "- %s %q category=%s impact=%.2f (%s)\n", when, ev.Title, ev.Category, ev.ImpactScore, ev.ImpactLevel)
	}
	return b.String()
}
