package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// PredictionRepository stores the daily wellness prediction for each user.
type PredictionRepository struct {
	db *sql.DB
}

func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `id, user_id, day, wellness_index, energy, mood, summary, source, created_at, updated_at`

// Upsert writes p, replacing any earlier prediction for the same day.
func (r *PredictionRepository) Upsert(p *models.Prediction) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if p.ID() == "" {
		p.SetID(shared.GenerateID())
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO predictions (` + predictionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			wellness_index = excluded.wellness_index,
			energy = excluded.energy,
			mood = excluded.mood,
			summary = excluded.summary,
			source = excluded.source,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		p.ID(), p.UserID, p.Day, p.WellnessIndex, p.Energy, p.Mood, p.Summary, string(p.Source),
		utc(p.CreatedAt()), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	p.SetUpdatedAt(now)
	return nil
}

// Get returns the prediction for userID on day.
func (r *PredictionRepository) Get(userID, day string) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE user_id = ? AND day = ?`

	var (
		id, uid, d, energy, mood, summary, source string
		index                                     float64
		createdAt, updatedAt                      time.Time
	)

	err := r.db.QueryRow(query, userID, day).Scan(&id, &uid, &d, &index, &energy, &mood, &summary, &source, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("prediction", userID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}

	p := models.NewPrediction(uid, d)
	p.WellnessIndex = index
	p.Energy = energy
	p.Mood = mood
	p.Summary = summary
	p.Source = models.PredictionSource(source)
	p.SetID(id)
	p.SetCreatedAt(createdAt)
	p.SetUpdatedAt(updatedAt)
	return p, nil
}
