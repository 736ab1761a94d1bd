package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
// It stores tokens exactly as handed in; sealing happens before they get here.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Get returns the linked account, or nil, nil if there is none.
func (r *AccountRepo) Get(ctx context.Context, accountID string) (*model.SDAccount, error) {
	const query = `
		SELECT account_id, username, sealed_token, token_expires_at, last_success_at, created_at, updated_at
		FROM sd_accounts WHERE account_id = ?
	`

	var (
		acct                            model.SDAccount
		expiresAt, createdAt, updatedAt string
		lastSuccess                     sql.NullString
	)
	err := r.db.Reader.QueryRowContext(ctx, query, accountID).Scan(
		&acct.AccountID, &acct.Username, &acct.SealedToken,
		&expiresAt, &lastSuccess, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sd account %q: %w", accountID, err)
	}

	if acct.TokenExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse token_expires_at: %w", err)
	}
	if lastSuccess.Valid {
		if acct.LastSuccess, err = parseTime(lastSuccess.String); err != nil {
			return nil, fmt.Errorf("parse last_success_at: %w", err)
		}
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &acct, nil
}

// Save inserts the account or replaces its username, sealed token and expiry.
// created_at and last_success_at survive a replace.
func (r *AccountRepo) Save(ctx context.Context, acct model.SDAccount) error {
	const query = `
		INSERT INTO sd_accounts (account_id, username, sealed_token, token_expires_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(account_id) DO UPDATE SET
			username = excluded.username,
			sealed_token = excluded.sealed_token,
			token_expires_at = excluded.token_expires_at,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		acct.AccountID, acct.Username, acct.SealedToken, formatTime(acct.TokenExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save sd account %q: %w", acct.AccountID, err)
	}
	return nil
}

// MarkSuccess records the time of the latest successful upstream call.
func (r *AccountRepo) MarkSuccess(ctx context.Context, accountID string, at time.Time) error {
	const query = `UPDATE sd_accounts SET last_success_at = ? WHERE account_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), accountID)
	if err != nil {
		return fmt.Errorf("mark sd account %q success: %w", accountID, err)
	}
	return requireAffected(result, accountID)
}

// Delete removes the linked account.
func (r *AccountRepo) Delete(ctx context.Context, accountID string) error {
	const query = `DELETE FROM sd_accounts WHERE account_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("delete sd account %q: %w", accountID, err)
	}
	return requireAffected(result, accountID)
}

func requireAffected(result sql.Result, accountID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sd account %q: %w", accountID, driven.ErrAccountNotFound)
	}
	return nil
}
