package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
)

// Sentinel errors returned by LineupStore implementations.
var (
	// ErrLineupNotFound indicates the lineup has never been fetched from upstream.
	ErrLineupNotFound = errors.New("lineup not found")

	// ErrLineupAlreadySelected indicates the account already selected the lineup.
	ErrLineupAlreadySelected = errors.New("lineup already selected")

	// ErrLineupNotSelected indicates the account has not selected the lineup.
	ErrLineupNotSelected = errors.New("lineup not selected")
)

// LineupStore defines the driven port for lineup persistence and per-account
// lineup selection.
type LineupStore interface {
	Upsert(ctx context.Context, lineups []model.Lineup) error
	Select(ctx context.Context, accountID, lineupID string) error
	Deselect(ctx context.Context, accountID, lineupID string) error
	ListSelected(ctx context.Context, accountID string) ([]model.Lineup, error)
}
