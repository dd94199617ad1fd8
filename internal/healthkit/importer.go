package healthkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// SymptomStore is implemented by [repositories.SymptomRepository].
type SymptomStore interface {
	Get(userID, day string) (*models.SymptomLog, error)
	Upsert(log *models.SymptomLog) error
}

// CycleStore is implemented by [repositories.CycleRepository].
type CycleStore interface {
	Upsert(params *models.CycleParams) error
}

// ImportResult summarizes an import.
type ImportResult struct {
	Days    int
	Updated int
	Periods []Period
	Params  *models.CycleParams
}

// Importer writes parsed flow history into the symptom log and re-estimates cycle params.
type Importer struct {
	symptoms SymptomStore
	cycles   CycleStore
	logger   *log.Logger
}

func NewImporter(symptoms SymptomStore, cycles CycleStore, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Importer{symptoms: symptoms, cycles: cycles, logger: logger}
}

// Import parses r and upserts one symptom log per recorded day, keeping any mood,
// energy or stress already logged for that day. When at least one period is found the
// user's cycle params are replaced with the estimate.
func (i *Importer) Import(ctx context.Context, userID string, r io.Reader, loc *time.Location) (*ImportResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	days, err := Parse(r, loc)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Days: len(days)}
	for _, fd := range days {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		key := shared.FormatDay(fd.Day)
		entry, err := i.symptoms.Get(userID, key)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			entry = models.NewSymptomLog(userID, key)
		case err != nil:
			return result, fmt.Errorf("failed to load symptom log for %s: %w", key, err)
		}

		if entry.Flow == fd.Flow {
			continue
		}
		entry.Flow = fd.Flow
		if err := i.symptoms.Upsert(entry); err != nil {
			return result, fmt.Errorf("failed to save symptom log for %s: %w", key, err)
		}
		result.Updated++
	}

	result.Periods = PeriodStarts(days)
	if len(result.Periods) == 0 {
		i.logger.Warn("no periods found in health export", "user", userID, "days", len(days))
		return result, nil
	}

	params, err := EstimateParams(userID, result.Periods)
	if err != nil {
		return result, err
	}
	if err := i.cycles.Upsert(params); err != nil {
		return result, fmt.Errorf("failed to save cycle params: %w", err)
	}
	result.Params = params

	i.logger.Info("imported health export",
		"user", userID, "days", result.Days, "updated", result.Updated,
		"periods", len(result.Periods), "cycle_length", params.CycleLength)
	return result, nil
}
