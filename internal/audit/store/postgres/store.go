// Package postgres persists audit events in a single audit_events table.
// It expects a *sql.DB opened with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"consentgate/internal/audit"
)

type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit_events table if it does not exist. Intended for
// tests and demos; real deployments manage schema out of band.
func (s *Store) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id                 UUID PRIMARY KEY,
			timestamp          TIMESTAMPTZ NOT NULL,
			category           TEXT NOT NULL,
			action             TEXT NOT NULL,
			purpose            TEXT NOT NULL DEFAULT '',
			decision           TEXT NOT NULL DEFAULT '',
			reason             TEXT NOT NULL DEFAULT '',
			telemetry_event_id TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create audit_events table: %w", err)
	}
	return nil
}

// Append inserts one audit event. Idempotent via ON CONFLICT DO NOTHING so a
// retried emit never duplicates the trail.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, timestamp, category, action, purpose, decision, reason, telemetry_event_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action.Category()),
		string(event.Action),
		event.Purpose,
		event.Decision,
		event.Reason,
		event.TelemetryEventID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns all audit events in emission order.
func (s *Store) List(ctx context.Context) ([]audit.Event, error) {
	query := `
		SELECT id, timestamp, action, purpose, decision, reason, telemetry_event_id
		FROM audit_events
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Action,
			&event.Purpose,
			&event.Decision,
			&event.Reason,
			&event.TelemetryEventID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

var _ audit.Store = (*Store)(nil)
