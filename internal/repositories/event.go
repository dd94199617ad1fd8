package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// EventRepository caches provider events with their computed impact so that
// reads and exports do not hit the provider.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, user_id, provider, calendar_id, external_id, title, location, start_at, end_at, all_day, category, impact_score, impact_level, created_at, updated_at`

// UpsertMany writes events in a single transaction keyed by (user, provider, external id).
func (r *EventRepository) UpsertMany(events []*models.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO calendar_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, external_id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			title = excluded.title,
			location = excluded.location,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			all_day = excluded.all_day,
			category = excluded.category,
			impact_score = excluded.impact_score,
			impact_level = excluded.impact_level,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		if e.ID() == "" {
			e.SetID(shared.GenerateID())
		}

		_, err := stmt.Exec(
			e.ID(), e.UserID, string(e.Provider), e.CalendarID, e.ExternalID, e.Title, e.Location,
			utc(e.Start), utc(e.End), e.AllDay, e.Category, e.ImpactScore, e.ImpactLevel,
			utc(e.CreatedAt()), now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", e.ExternalID, err)
		}
		e.SetUpdatedAt(now)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get returns a cached event by its provider external id.
func (r *EventRepository) Get(userID string, provider models.Provider, externalID string) (*models.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE user_id = ? AND provider = ? AND external_id = ?`

	e, err := scanEvent(r.db.QueryRow(query, userID, string(provider), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("event", provider, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	return e, nil
}

// Range returns events starting in [from, to) ordered by start time.
func (r *EventRepository) Range(userID string, from, to time.Time) ([]*models.CalendarEvent, error) {
	query := `
		SELECT ` + eventColumns + ` FROM calendar_events
		WHERE user_id = ? AND start_at >= ? AND start_at < ?
		ORDER BY start_at ASC, title ASC
	`

	rows, err := r.db.Query(query, userID, utc(from), utc(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// DeleteMissing removes cached events for provider and calendar that start in
// [from, to) but whose external id is not in keep. It returns the number removed.
func (r *EventRepository) DeleteMissing(userID string, provider models.Provider, calendarID string, from, to time.Time, keep []string) (int64, error) {
	query := `
		DELETE FROM calendar_events
		WHERE user_id = ? AND provider = ? AND calendar_id = ? AND start_at >= ? AND start_at < ?
	`
	args := []any{userID, string(provider), calendarID, utc(from), utc(to)}

	if len(keep) > 0 {
		query += ` AND external_id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a cached event by external id.
func (r *EventRepository) Delete(userID string, provider models.Provider, externalID string) error {
	result, err := r.db.Exec(
		`DELETE FROM calendar_events WHERE user_id = ? AND provider = ? AND external_id = ?`,
		userID, string(provider), externalID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return expectOne(result, "event", provider, externalID)
}

func scanEvent(row scanner) (*models.CalendarEvent, error) {
	var (
		id, userID, provider, calendarID, externalID string
		title, location, category, level             string
		start, end, createdAt, updatedAt             time.Time
		allDay                                       bool
		score                                        float64
	)

	err := row.Scan(
		&id, &userID, &provider, &calendarID, &externalID, &title, &location,
		&start, &end, &allDay, &category, &score, &level, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e := models.NewCalendarEvent(userID, models.Provider(provider), calendarID, externalID)
	e.Title = title
	e.Location = location
	e.Start = start
	e.End = end
	e.AllDay = allDay
	e.Category = category
	e.ImpactScore = score
	e.ImpactLevel = level
	e.SetID(id)
	e.SetCreatedAt(createdAt)
	e.SetUpdatedAt(updatedAt)
	return e, nil
}
