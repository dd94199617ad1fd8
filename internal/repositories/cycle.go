package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// CycleRepository stores the single set of [models.CycleParams] each user owns.
type CycleRepository struct {
	db *sql.DB
}

func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// Upsert validates and writes params for its user.
func (r *CycleRepository) Upsert(params *models.CycleParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO cycle_params (user_id, last_period_start, cycle_length, period_length, luteal_length, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_period_start = excluded.last_period_start,
			cycle_length = excluded.cycle_length,
			period_length = excluded.period_length,
			luteal_length = excluded.luteal_length,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		params.UserID, shared.FormatDay(params.LastPeriodStart), params.CycleLength, params.PeriodLength,
		params.LutealLength, utc(params.CreatedAt()), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cycle params: %w", err)
	}

	params.SetID(params.UserID)
	params.SetUpdatedAt(now)
	return nil
}

// Get returns the cycle parameters for userID.
func (r *CycleRepository) Get(userID string) (*models.CycleParams, error) {
	query := `
		SELECT user_id, last_period_start, cycle_length, period_length, luteal_length, created_at, updated_at
		FROM cycle_params WHERE user_id = ?
	`

	var (
		id, lastStart        string
		cycle, period, lut   int
		createdAt, updatedAt time.Time
	)

	err := r.db.QueryRow(query, userID).Scan(&id, &lastStart, &cycle, &period, &lut, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("cycle params", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle params: %w", err)
	}

	start, err := shared.ParseDay(lastStart, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt last_period_start for %s: %w", userID, err)
	}

	params := models.NewCycleParams(id, start)
	params.CycleLength = cycle
	params.PeriodLength = period
	params.LutealLength = lut
	params.SetID(id)
	params.SetCreatedAt(createdAt)
	params.SetUpdatedAt(updatedAt)
	return params, nil
}

// Delete removes the cycle parameters for userID.
func (r *CycleRepository) Delete(userID string) error {
	result, err := r.db.Exec(`DELETE FROM cycle_params WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cycle params: %w", err)
	}
	return expectOne(result, "cycle params", userID)
}
