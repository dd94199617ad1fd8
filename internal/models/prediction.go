package models

import (
	"fmt"
	"time"
)

// PredictionSource records whether a prediction came from the LLM or the fallback formula.
type PredictionSource string

const (
	SourceAI       PredictionSource = "ai"
	SourceFallback PredictionSource = "fallback"
)

// Prediction is the wellness forecast for one user and day.
type Prediction struct {
	base
	UserID        string
	Day           string
	WellnessIndex float64
	Energy        string
	Mood          string
	Summary       string
	Source        PredictionSource
}

// NewPrediction creates an empty prediction for day.
func NewPrediction(userID, day string) *Prediction {
	return &Prediction{base: newBase(), UserID: userID, Day: day}
}

func (p *Prediction) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := time.Parse("2006-01-02", p.Day); err != nil {
		return fmt.Errorf("invalid day %q", p.Day)
	}
	if p.WellnessIndex < 0 || p.WellnessIndex > 100 {
		return fmt.Errorf("wellness index must be within 0-100, got %.1f", p.WellnessIndex)
	}
	if p.Source != SourceAI && p.Source != SourceFallback {
		return fmt.Errorf("unknown prediction source %q", p.Source)
	}
	return nil
}
