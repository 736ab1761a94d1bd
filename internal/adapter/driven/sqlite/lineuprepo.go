package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LineupStore = (*LineupRepo)(nil)

// LineupRepo is the SQLite implementation of the LineupStore port interface.
type LineupRepo struct {
	db *DB
}

// NewLineupRepo creates a new LineupRepo backed by the given DB.
func NewLineupRepo(db *DB) *LineupRepo {
	return &LineupRepo{db: db}
}

// Upsert inserts or refreshes lineups in a single transaction.
func (r *LineupRepo) Upsert(ctx context.Context, lineups []model.Lineup) error {
	if len(lineups) == 0 {
		return nil
	}

	const query = `
		INSERT INTO lineups (id, name, location, transport, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			transport = excluded.transport,
			updated_at = CURRENT_TIMESTAMP
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lineup upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare lineup upsert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lineups {
		if _, err := stmt.ExecContext(ctx, l.ID, l.Name, l.Location, l.Transport); err != nil {
			return fmt.Errorf("upsert lineup %q: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lineup upsert: %w", err)
	}
	return nil
}

// Select adds lineupID to the account's selection.
func (r *LineupRepo) Select(ctx context.Context, accountID, lineupID string) error {
	var exists int
	err := r.db.Reader.QueryRowContext(ctx, `SELECT 1 FROM lineups WHERE id = ?`, lineupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lineup %q: %w", lineupID, driven.ErrLineupNotFound)
	}
	if err != nil {
		return fmt.Errorf("check lineup %q: %w", lineupID, err)
	}

	const query = `INSERT OR IGNORE INTO user_lineups (account_id, lineup_id) VALUES (?, ?)`
	result, err := r.db.Writer.ExecContext(ctx, query, accountID, lineupID)
	if err != nil {
		return fmt.Errorf("select lineup %q: %w", lineupID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lineup %q: %w", lineupID, driven.ErrLineupAlreadySelected)
	}
	return nil
}

// Deselect removes lineupID from the account's selection.
func (r *LineupRepo) Deselect(ctx context.Context, accountID, lineupID string) error {
	const query = `DELETE FROM user_lineups WHERE account_id = ? AND lineup_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, accountID, lineupID)
	if err != nil {
		return fmt.Errorf("deselect lineup %q: %w", lineupID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lineup %q: %w", lineupID, driven.ErrLineupNotSelected)
	}
	return nil
}

// ListSelected returns the account's selected lineups ordered by name.
func (r *LineupRepo) ListSelected(ctx context.Context, accountID string) ([]model.Lineup, error) {
	const query = `
		SELECT l.id, l.name, l.location, l.transport, l.updated_at
		FROM lineups l
		JOIN user_lineups ul ON ul.lineup_id = l.id
		WHERE ul.account_id = ?
		ORDER BY l.name, l.id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list selected lineups: %w", err)
	}
	defer rows.Close()

	lineups := []model.Lineup{}
	for rows.Next() {
		var l model.Lineup
		var updatedAt string
		if err := rows.Scan(&l.ID, &l.Name, &l.Location, &l.Transport, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan lineup: %w", err)
		}
		if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at for lineup %q: %w", l.ID, err)
		}
		lineups = append(lineups, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lineups: %w", err)
	}

	return lineups, nil
}
