package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// LoadNotifications returns the stored inbox of a profile, newest first.
func (s *SQLiteStorage) LoadNotifications(ctx context.Context, profileID string) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM notifications WHERE profile_id = ? ORDER BY position`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Notification
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("%w: notification payload: %w", common.ErrDatabaseCorrupted, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveNotifications replaces the stored inbox of a profile.
func (s *SQLiteStorage) SaveNotifications(ctx context.Context, profileID string, notifications []model.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return err
	}

	return s.replaceRows(ctx, `DELETE FROM notifications WHERE profile_id = ?`, profileID,
		`INSERT INTO notifications (profile_id, position, id, payload) VALUES (?, ?, ?, ?)`,
		len(notifications), func(i int) ([]any, error) {
			payload, err := json.Marshal(notifications[i])
			if err != nil {
				return nil, err
			}
			return []any{profileID, i, notifications[i].ID, string(payload)}, nil
		})
}

// LoadPreferences returns the preferences of a profile.
func (s *SQLiteStorage) LoadPreferences(ctx context.Context, profileID string) (*model.NotificationPreferences, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM notification_preferences WHERE profile_id = ?`, profileID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preferences for %q: %w", profileID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs model.NotificationPreferences
	if err := json.Unmarshal([]byte(payload), &prefs); err != nil {
		return nil, fmt.Errorf("%w: preferences payload: %w", common.ErrDatabaseCorrupted, err)
	}
	return &prefs, nil
}

// SavePreferences stores the preferences of their profile.
func (s *SQLiteStorage) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if prefs == nil {
		return fmt.Errorf("%w: preferences", ErrNilParameter)
	}
	if err := validateString(prefs.ProfileID, "profileID"); err != nil {
		return err
	}

	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (profile_id, payload, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, prefs.ProfileID, string(payload), prefs.Version, prefs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// LoadQueue returns the offline queue of a profile, oldest first.
func (s *SQLiteStorage) LoadQueue(ctx context.Context, profileID string) ([]model.QueuedNotification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT queued_at, payload FROM notification_queue WHERE profile_id = ? ORDER BY position`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.QueuedNotification
	for rows.Next() {
		var (
			q       model.QueuedNotification
			payload string
		)
		if err := rows.Scan(&q.QueuedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan queued notification: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &q.Notification); err != nil {
			return nil, fmt.Errorf("%w: queued payload: %w", common.ErrDatabaseCorrupted, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveQueue replaces the offline queue of a profile.
func (s *SQLiteStorage) SaveQueue(ctx context.Context, profileID string, queue []model.QueuedNotification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return err
	}

	return s.replaceRows(ctx, `DELETE FROM notification_queue WHERE profile_id = ?`, profileID,
		`INSERT INTO notification_queue (profile_id, position, queued_at, payload) VALUES (?, ?, ?, ?)`,
		len(queue), func(i int) ([]any, error) {
			payload, err := json.Marshal(queue[i].Notification)
			if err != nil {
				return nil, err
			}
			return []any{profileID, i, queue[i].QueuedAt, string(payload)}, nil
		})
}

// LastSync returns when the profile last synced, or the zero time.
func (s *SQLiteStorage) LastSync(ctx context.Context, profileID string) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}
	var at time.Time
	err := s.db.QueryRowContext(ctx, `SELECT last_sync FROM sync_state WHERE profile_id = ?`, profileID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load sync state: %w", err)
	}
	return at, nil
}

// SetLastSync records a successful sync.
func (s *SQLiteStorage) SetLastSync(ctx context.Context, profileID string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(profileID, "profileID"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (profile_id, last_sync) VALUES (?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET last_sync = excluded.last_sync
	`, profileID, at)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// replaceRows deletes a profile's rows and inserts n new ones in one transaction.
func (s *SQLiteStorage) replaceRows(ctx context.Context, deleteQuery, profileID, insertQuery string, n int, row func(int) ([]any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteQuery, profileID); err != nil {
		return fmt.Errorf("failed to clear rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < n; i++ {
		args, err := row(i)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}
