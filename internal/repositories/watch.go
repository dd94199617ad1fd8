package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// WatchRepository persists provider push channels. A user holds at most one channel per (provider, calendar).
type WatchRepository struct {
	db *sql.DB
}

func NewWatchRepository(db *sql.DB) *WatchRepository {
	return &WatchRepository{db: db}
}

const watchColumns = `id, user_id, provider, calendar_id, resource_id, client_state, expiration, created_at, updated_at`

// Upsert stores w. A renewal for the same (user, provider, calendar) replaces the old channel row, including its id.
func (r *WatchRepository) Upsert(w *models.WatchChannel) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO watch_channels (id, user_id, provider, calendar_id, resource_id, client_state, expiration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, calendar_id) DO UPDATE SET
			id = excluded.id,
			resource_id = excluded.resource_id,
			client_state = excluded.client_state,
			expiration = excluded.expiration,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		w.ID(), w.UserID, string(w.Provider), w.CalendarID, w.ResourceID, w.ClientState,
		utc(w.Expiration), utc(w.CreatedAt()), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert watch channel: %w", err)
	}

	w.SetUpdatedAt(now)
	return nil
}

// Get returns the channel with the given id, as echoed by providers in notifications.
func (r *WatchRepository) Get(id string) (*models.WatchChannel, error) {
	w, err := scanWatch(r.db.QueryRow(`SELECT `+watchColumns+` FROM watch_channels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("watch channel", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch channel: %w", err)
	}
	return w, nil
}

// GetFor returns the channel watching calendarID for userID on provider.
func (r *WatchRepository) GetFor(userID string, provider models.Provider, calendarID string) (*models.WatchChannel, error) {
	query := `SELECT ` + watchColumns + ` FROM watch_channels WHERE user_id = ? AND provider = ? AND calendar_id = ?`

	w, err := scanWatch(r.db.QueryRow(query, userID, string(provider), calendarID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("watch channel", userID, provider, calendarID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch channel: %w", err)
	}
	return w, nil
}

// FindByResource returns the channel for a provider resource/subscription identifier.
func (r *WatchRepository) FindByResource(provider models.Provider, resourceID string) (*models.WatchChannel, error) {
	query := `SELECT ` + watchColumns + ` FROM watch_channels WHERE provider = ? AND resource_id = ?`

	w, err := scanWatch(r.db.QueryRow(query, string(provider), resourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("watch channel", provider, resourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch channel: %w", err)
	}
	return w, nil
}

// ExpiringBefore lists channels whose expiration is earlier than t.
func (r *WatchRepository) ExpiringBefore(t time.Time) ([]*models.WatchChannel, error) {
	query := `SELECT ` + watchColumns + ` FROM watch_channels WHERE expiration < ? ORDER BY expiration ASC`
	return r.query(query, utc(t))
}

// ListForUser returns every channel owned by userID.
func (r *WatchRepository) ListForUser(userID string) ([]*models.WatchChannel, error) {
	query := `SELECT ` + watchColumns + ` FROM watch_channels WHERE user_id = ? ORDER BY provider, calendar_id`
	return r.query(query, userID)
}

// Delete removes the channel with the given id.
func (r *WatchRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM watch_channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete watch channel: %w", err)
	}
	return expectOne(result, "watch channel", id)
}

func (r *WatchRepository) query(query string, args ...any) ([]*models.WatchChannel, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.WatchChannel
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch channel: %w", err)
		}
		channels = append(channels, w)
	}
	return channels, rows.Err()
}

func scanWatch(row scanner) (*models.WatchChannel, error) {
	var (
		id, userID, provider, calendarID, resourceID, clientState string
		expiration, createdAt, updatedAt                          time.Time
	)

	if err := row.Scan(&id, &userID, &provider, &calendarID, &resourceID, &clientState, &expiration, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	w := models.NewWatchChannel(id, userID, models.Provider(provider), calendarID)
	w.ResourceID = resourceID
	w.ClientState = clientState
	w.Expiration = expiration
	w.SetCreatedAt(createdAt)
	w.SetUpdatedAt(updatedAt)
	return w, nil
}
