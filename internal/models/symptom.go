package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Flow is the menstrual flow level logged for a day.
type Flow string

const (
	FlowNone     Flow = "none"
	FlowSpotting Flow = "spotting"
	FlowLight    Flow = "light"
	FlowMedium   Flow = "medium"
	FlowHeavy    Flow = "heavy"
)

var flows = []Flow{FlowNone, FlowSpotting, FlowLight, FlowMedium, FlowHeavy}

// ParseFlow validates a flow name; the empty string means [FlowNone].
func ParseFlow(s string) (Flow, error) {
	f := Flow(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FlowNone, nil
	}
	if !slices.Contains(flows, f) {
		return "", fmt.Errorf("unknown flow %q", s)
	}
	return f, nil
}

// Bleeding reports whether the flow counts towards a period.
func (f Flow) Bleeding() bool {
	return f == FlowLight || f == FlowMedium || f == FlowHeavy
}

// SymptomLog is one user's self-reported state for a single day.
//
// Mood, Energy and Stress are 1-5 scales where 0 means "not logged".
type SymptomLog struct {
	base
	UserID   string
	Day      string
	Flow     Flow
	Mood     int
	Energy   int
	Stress   int
	Symptoms []string
	Notes    string
}

// NewSymptomLog creates an empty log for day (YYYY-MM-DD).
func NewSymptomLog(userID, day string) *SymptomLog {
	return &SymptomLog{base: newBase(), UserID: userID, Day: day, Flow: FlowNone}
}

// SymptomString serializes symptom tags as a comma separated list.
func (s *SymptomLog) SymptomString() string { return strings.Join(s.Symptoms, ",") }

// SetSymptomString parses a comma separated tag list, normalizing case and dropping blanks.
func (s *SymptomLog) SetSymptomString(raw string) {
	s.Symptoms = s.Symptoms[:0]
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !slices.Contains(s.Symptoms, tag) {
			s.Symptoms = append(s.Symptoms, tag)
		}
	}
}

func (s *SymptomLog) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := time.Parse("2006-01-02", s.Day); err != nil {
		return fmt.Errorf("invalid day %q", s.Day)
	}
	if _, err := ParseFlow(string(s.Flow)); err != nil {
		return err
	}
	for name, v := range map[string]int{"mood": s.Mood, "energy": s.Energy, "stress": s.Stress} {
		if v < 0 || v > 5 {
			return fmt.Errorf("%s must be between 1 and 5 (0 for unknown), got %d", name, v)
		}
	}
	return nil
}
