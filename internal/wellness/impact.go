package wellness

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/cadence/internal/models"
)

// Category groups events by how they tend to affect energy.
type Category string

const (
	CategoryHighStakes  Category = "high_stakes"
	CategoryTravel      Category = "travel"
	CategoryWorkout     Category = "workout"
	CategoryFocus       Category = "focus"
	CategorySocial      Category = "social"
	CategoryMeeting     Category = "meeting"
	CategoryRestorative Category = "restorative"
	CategoryGeneral     Category = "general"
)

// Level buckets an impact score.
type Level string

const (
	LevelRestorative Level = "restorative"
	LevelLow         Level = "low"
	LevelModerate    Level = "moderate"
	LevelHigh        Level = "high"
)

type categoryRule struct {
	category    Category
	coefficient float64
	keywords    []string
}

// categoryRules are checked in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{CategoryHighStakes, 1.8, []string{"presentation", "interview", "deadline", "exam", "review"}},
	{CategoryTravel, 1.6, []string{"flight", "travel", "trip", "commute"}},
	{CategoryWorkout, 1.5, []string{"gym", "run", "workout", "training", "hiit"}},
	{CategoryFocus, 1.3, []string{"focus", "deep work", "study"}},
	{CategorySocial, 1.2, []string{"party", "dinner", "drinks", "birthday", "social"}},
	{CategoryMeeting, 1.0, []string{"meeting", "sync", "standup", "1:1", "call"}},
	{CategoryRestorative, -0.8, []string{"yoga", "meditation", "massage", "nap", "walk", "therapy"}},
}

const generalCoefficient = 0.8

// normalizeTitle lowercases title and reduces it to single-space separated words,
// padded with spaces so keywords can be matched on word boundaries.
func normalizeTitle(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':'
	})
	return " " + strings.Join(words, " ") + " "
}

func hasKeyword(normalized, keyword string) bool {
	return strings.Contains(normalized, " "+keyword+" ") || strings.Contains(normalized, " "+keyword+"s ")
}

// Classify maps an event title to its category and base coefficient.
func Classify(title string) (Category, float64) {
	normalized := normalizeTitle(title)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if hasKeyword(normalized, kw) {
				return rule.category, rule.coefficient
			}
		}
	}
	return CategoryGeneral, generalCoefficient
}

// PhaseModifier scales impact by cycle phase.
func PhaseModifier(p Phase) float64 {
	switch p {
	case PhaseMenstrual:
		return 1.3
	case PhaseFollicular:
		return 0.9
	case PhaseOvulation:
		return 0.85
	case PhaseLuteal:
		return 1.15
	default:
		return 1.0
	}
}

// TimeOfDayModifier scales impact by the local start hour. All-day events are neutral.
func TimeOfDayModifier(start time.Time, loc *time.Location, allDay bool) float64 {
	if allDay {
		return 1.0
	}
	if loc == nil {
		loc = time.UTC
	}

	switch h := start.In(loc).Hour(); {
	case h < 8:
		return 1.2
	case h < 12:
		return 0.9
	case h < 17:
		return 1.0
	case h < 21:
		return 1.1
	default:
		return 1.3
	}
}

// StressModifier scales impact by the latest logged stress (1-5). 0 means unknown and is neutral.
func StressModifier(stress int) float64 {
	if stress < 1 || stress > 5 {
		return 1.0
	}
	return 1 + 0.1*float64(stress-3)
}

// LevelFor buckets a score.
func LevelFor(score float64) Level {
	switch {
	case score < 0:
		return LevelRestorative
	case score < 0.8:
		return LevelLow
	case score < 1.4:
		return LevelModerate
	default:
		return LevelHigh
	}
}

// Score is the breakdown of one event's impact.
type Score struct {
	Category  Category `json:"category"`
	Base      float64  `json:"base"`
	Phase     float64  `json:"phase_modifier"`
	TimeOfDay float64  `json:"time_modifier"`
	Stress    float64  `json:"stress_modifier"`
	Value     float64  `json:"score"`
	Level     Level    `json:"level"`
}

// EventInput is the part of an event that affects its score.
type EventInput struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	AllDay bool      `json:"all_day"`
}

// Impact scores an event for a user in phase with the given stress level.
// Start hours are read in loc.
func Impact(ev EventInput, phase Phase, stress int, loc *time.Location) Score {
	category, base := Classify(ev.Title)
	s := Score{
		Category:  category,
		Base:      base,
		Phase:     PhaseModifier(phase),
		TimeOfDay: TimeOfDayModifier(ev.Start, loc, ev.AllDay),
		Stress:    StressModifier(stress),
	}
	s.Value = round2(s.Base * s.Phase * s.TimeOfDay * s.Stress)
	s.Level = LevelFor(s.Value)
	return s
}

// ScoreEvent computes the impact of a cached event and stores it on the event.
func ScoreEvent(ev *models.CalendarEvent, phase Phase, stress int, loc *time.Location) Score {
	s := Impact(EventInput{Title: ev.Title, Start: ev.Start, AllDay: ev.AllDay}, phase, stress, loc)
	ev.Category = string(s.Category)
	ev.ImpactScore = s.Value
	ev.ImpactLevel = string(s.Level)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
