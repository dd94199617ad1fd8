package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/wellness"
)

// PredictDay returns the stored prediction for the user's local day, computing it when
// missing or when force is set.
func (e *CalendarEngine) PredictDay(ctx context.Context, userID string, day time.Time, force bool) (*models.Prediction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	user, err := e.stores.Users.Get(userID)
	if err != nil {
		return nil, err
	}
	loc := user.Location()
	start := shared.StartOfDay(day.In(loc))
	key := shared.FormatDay(start)

	if !force {
		cached, err := e.stores.Predictions.Get(userID, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	in, err := e.PredictionInput(user, start)
	if err != nil {
		return nil, err
	}

	pred, err := e.predictor.Predict(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := e.stores.Predictions.Upsert(pred); err != nil {
		return nil, err
	}

	e.logger.Debug("prediction stored", "user", userID, "day", key, "index", pred.WellnessIndex, "source", pred.Source)
	return pred, nil
}

// PredictionInput gathers the cycle day, recent logs and the day's cached events.
func (e *CalendarEngine) PredictionInput(user *models.User, start time.Time) (wellness.PredictionInput, error) {
	in := wellness.PredictionInput{UserID: user.ID()}

	cycle, err := e.CycleFor(user.ID())
	if err != nil {
		return in, err
	}
	if cycle != nil {
		in.Cycle = wellness.PhaseOn(cycle, start)
	} else {
		y, m, d := start.Date()
		in.Cycle = wellness.CycleDay{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
	}

	if in.Logs, err = e.stores.Symptoms.Recent(user.ID(), e.historyDays); err != nil {
		return in, err
	}
	if in.Events, err = e.stores.Events.Range(user.ID(), start, start.AddDate(0, 0, 1)); err != nil {
		return in, err
	}
	return in, nil
}

// PredictAll computes the prediction for day for every user. Failures are logged and counted.
func (e *CalendarEngine) PredictAll(ctx context.Context, progress chan<- ProgressUpdate, day time.Time) (int, error) {
	users, err := e.stores.Users.List(nil)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		e.sendProgress(progress, predictUpdate(shared.FormatDay(day.In(user.Location()))))
		if _, err := e.PredictDay(ctx, user.ID(), day, true); err != nil {
			failed++
			e.logger.Warn("prediction failed", "user", user.ID(), "error", err)
		}
	}
	return failed, nil
}
