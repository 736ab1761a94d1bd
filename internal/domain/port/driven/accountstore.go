package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
)

// ErrAccountNotFound indicates no Schedules Direct account is linked.
var ErrAccountNotFound = errors.New("sd account not found")

// AccountStore defines the driven port for linked Schedules Direct accounts.
// Tokens cross this boundary sealed; the store never sees plaintext.
type AccountStore interface {
	// Get returns nil, nil if the account has no linked login.
	Get(ctx context.Context, accountID string) (*model.SDAccount, error)

	// Save inserts the account or replaces its username, sealed token and expiry.
	Save(ctx context.Context, account model.SDAccount) error

	// MarkSuccess records the time of the latest successful upstream call.
	// Returns ErrAccountNotFound if the account does not exist.
	MarkSuccess(ctx context.Context, accountID string, at time.Time) error

	// Delete returns ErrAccountNotFound if the account does not exist.
	Delete(ctx context.Context, accountID string) error
}
