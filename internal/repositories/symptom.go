package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// SymptomRepository stores one [models.SymptomLog] per user per day.
type SymptomRepository struct {
	db *sql.DB
}

func NewSymptomRepository(db *sql.DB) *SymptomRepository {
	return &SymptomRepository{db: db}
}

const symptomColumns = `id, user_id, day, flow, mood, energy, stress, symptoms, notes, created_at, updated_at`

// Upsert writes the log for its day, replacing an earlier entry for the same day.
func (r *SymptomRepository) Upsert(log *models.SymptomLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if log.ID() == "" {
		log.SetID(shared.GenerateID())
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO symptom_logs (id, user_id, day, flow, mood, energy, stress, symptoms, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			flow = excluded.flow,
			mood = excluded.mood,
			energy = excluded.energy,
			stress = excluded.stress,
			symptoms = excluded.symptoms,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		log.ID(), log.UserID, log.Day, string(log.Flow), log.Mood, log.Energy, log.Stress,
		log.SymptomString(), log.Notes, utc(log.CreatedAt()), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert symptom log: %w", err)
	}

	log.SetUpdatedAt(now)
	return nil
}

// Get returns the log for userID on day (YYYY-MM-DD).
func (r *SymptomRepository) Get(userID, day string) (*models.SymptomLog, error) {
	query := `SELECT ` + symptomColumns + ` FROM symptom_logs WHERE user_id = ? AND day = ?`

	log, err := scanSymptom(r.db.QueryRow(query, userID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("symptom log", userID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query symptom log: %w", err)
	}
	return log, nil
}

// Range returns logs with from <= day <= to in ascending order.
func (r *SymptomRepository) Range(userID, from, to string) ([]*models.SymptomLog, error) {
	query := `SELECT ` + symptomColumns + ` FROM symptom_logs WHERE user_id = ? AND day >= ? AND day <= ? ORDER BY day ASC`
	return r.query(query, userID, from, to)
}

// Recent returns up to limit logs, newest first.
func (r *SymptomRepository) Recent(userID string, limit int) ([]*models.SymptomLog, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `SELECT ` + symptomColumns + ` FROM symptom_logs WHERE user_id = ? ORDER BY day DESC LIMIT ?`
	return r.query(query, userID, limit)
}

// Delete removes the log for userID on day.
func (r *SymptomRepository) Delete(userID, day string) error {
	result, err := r.db.Exec(`DELETE FROM symptom_logs WHERE user_id = ? AND day = ?`, userID, day)
	if err != nil {
		return fmt.Errorf("failed to delete symptom log: %w", err)
	}
	return expectOne(result, "symptom log", userID, day)
}

func (r *SymptomRepository) query(query string, args ...any) ([]*models.SymptomLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symptom logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SymptomLog
	for rows.Next() {
		log, err := scanSymptom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symptom log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return logs, nil
}

func scanSymptom(row scanner) (*models.SymptomLog, error) {
	var (
		id, userID, day, flow, symptoms, notes string
		mood, energy, stress                   int
		createdAt, updatedAt                   time.Time
	)

	if err := row.Scan(&id, &userID, &day, &flow, &mood, &energy, &stress, &symptoms, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	log := models.NewSymptomLog(userID, day)
	log.Flow = models.Flow(flow)
	log.Mood = mood
	log.Energy = energy
	log.Stress = stress
	log.SetSymptomString(symptoms)
	log.Notes = notes
	log.SetID(id)
	log.SetCreatedAt(createdAt)
	log.SetUpdatedAt(updatedAt)
	return log, nil
}
