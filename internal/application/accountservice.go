package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

var (
	// ErrAccountNotConnected indicates the account has no linked Schedules Direct login.
	ErrAccountNotConnected = errors.New("no schedules direct account connected")

	// ErrReauthRequired indicates the stored session can no longer be used
	// and the user must connect again.
	ErrReauthRequired = errors.New("schedules direct session expired, reconnect required")
)

// ConnectionStatus describes an account's link to Schedules Direct.
type ConnectionStatus struct {
	Connected      bool
	Username       string
	LastSuccess    *time.Time
	TokenExpiresAt *time.Time
}

// AccountService links local accounts to Schedules Direct and runs upstream
// lookups on their behalf. It depends only on port interfaces.
type AccountService struct {
	provider driven.GuideProvider
	sealer   driven.TokenSealer
	accounts driven.AccountStore
	lineups  driven.LineupStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountService with the required dependencies.
// A nil logger falls back to slog.Default().
func NewAccountService(
	provider driven.GuideProvider,
	sealer driven.TokenSealer,
	accounts driven.AccountStore,
	lineups driven.LineupStore,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		provider: provider,
		sealer:   sealer,
		accounts: accounts,
		lineups:  lineups,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connect authenticates cred upstream and stores the sealed session, replacing
// any earlier one for accountID.
func (s *AccountService) Connect(ctx context.Context, accountID string, cred model.UpstreamCredential) (ConnectionStatus, error) {
	session, err := s.provider.Authenticate(ctx, cred)
	if err != nil {
		return ConnectionStatus{}, fmt.Errorf("connect %s: %w", accountID, err)
	}

	sealed, err := s.sealer.Seal(session.Token)
	if err != nil {
		return ConnectionStatus{}, fmt.Errorf("seal session: %w", err)
	}

	err = s.accounts.Save(ctx, model.SDAccount{
		AccountID:      accountID,
		Username:       cred.Username,
		SealedToken:    sealed,
		TokenExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return ConnectionStatus{}, err
	}

	s.logger.Info("schedules direct account connected", "account", accountID, "username", cred.Username)

	expires := session.ExpiresAt
	return ConnectionStatus{Connected: true, Username: cred.Username, TokenExpiresAt: &expires}, nil
}

// Status reports whether accountID is linked. An unlinked account is not an error.
func (s *AccountService) Status(ctx context.Context, accountID string) (ConnectionStatus, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return ConnectionStatus{}, err
	}
	if acct == nil {
		return ConnectionStatus{}, nil
	}

	status := ConnectionStatus{Connected: true, Username: acct.Username}
	if !acct.LastSuccess.IsZero() {
		last := acct.LastSuccess
		status.LastSuccess = &last
	}
	if !acct.TokenExpiresAt.IsZero() {
		exp := acct.TokenExpiresAt
		status.TokenExpiresAt = &exp
	}
	return status, nil
}

// Disconnect forgets the linked login.
func (s *AccountService) Disconnect(ctx context.Context, accountID string) error {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		if errors.Is(err, driven.ErrAccountNotFound) {
			return ErrAccountNotConnected
		}
		return err
	}
	s.logger.Info("schedules direct account disconnected", "account", accountID)
	return nil
}

// Lineups fetches the lineups attached to the upstream account and refreshes
// the local lineup catalog with them.
func (s *AccountService) Lineups(ctx context.Context, accountID string) ([]model.Lineup, error) {
	token, err := s.token(ctx, accountID)
	if err != nil {
		return nil, err
	}

	records, err := s.provider.ListLineups(ctx, token)
	if err != nil {
		return nil, s.upstreamError(accountID, "fetch lineups", err)
	}

	lineups := make([]model.Lineup, 0, len(records))
	for _, r := range records {
		l, ok := model.LineupFromRecord(r)
		if !ok {
			s.logger.Warn("skipping lineup without identifier", "account", accountID)
			continue
		}
		lineups = append(lineups, l)
	}

	if err := s.lineups.Upsert(ctx, lineups); err != nil {
		return nil, err
	}

	s.markSuccess(ctx, accountID)
	return lineups, nil
}

// Stations returns the stations carried by lineupID.
func (s *AccountService) Stations(ctx context.Context, accountID, lineupID string) ([]model.Record, error) {
	token, err := s.token(ctx, accountID)
	if err != nil {
		return nil, err
	}

	stations, err := s.provider.ListStationsForLineup(ctx, token, lineupID)
	if err != nil {
		return nil, s.upstreamError(accountID, "fetch stations", err)
	}

	s.markSuccess(ctx, accountID)
	return stations, nil
}

// UpstreamStatus returns the upstream account status document.
func (s *AccountService) UpstreamStatus(ctx context.Context, accountID string) (model.Record, error) {
	token, err := s.token(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status, err := s.provider.GetAccountStatus(ctx, token)
	if err != nil {
		return nil, s.upstreamError(accountID, "fetch upstream status", err)
	}

	s.markSuccess(ctx, accountID)
	return status, nil
}

// SelectLineup adds lineupID to the account's selection. The lineup must have
// been fetched through Lineups first.
func (s *AccountService) SelectLineup(ctx context.Context, accountID, lineupID string) error {
	return s.lineups.Select(ctx, accountID, lineupID)
}

// DeselectLineup removes lineupID from the account's selection.
func (s *AccountService) DeselectLineup(ctx context.Context, accountID, lineupID string) error {
	return s.lineups.Deselect(ctx, accountID, lineupID)
}

// SelectedLineups lists the account's selected lineups.
func (s *AccountService) SelectedLineups(ctx context.Context, accountID string) ([]model.Lineup, error) {
	return s.lineups.ListSelected(ctx, accountID)
}

// token returns the plaintext upstream token for accountID.
func (s *AccountService) token(ctx context.Context, accountID string) (string, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAccountNotConnected
	}
	if acct.TokenExpired(s.now()) {
		return "", ErrReauthRequired
	}

	token, err := s.sealer.Unseal(acct.SealedToken)
	if err != nil {
		s.logger.Warn("stored session cannot be unsealed", "account", accountID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}
	return token, nil
}

// upstreamError wraps err, adding ErrReauthRequired when the provider
// refused the stored token.
func (s *AccountService) upstreamError(accountID, action string, err error) error {
	if errors.Is(err, driven.ErrTokenRejected) {
		s.logger.Warn("upstream rejected stored session", "account", accountID, "error", err)
		return fmt.Errorf("%s: %w: %w", action, ErrReauthRequired, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// markSuccess is best effort: a failed bookkeeping write must not fail a
// lookup that already succeeded.
func (s *AccountService) markSuccess(ctx context.Context, accountID string) {
	if err := s.accounts.MarkSuccess(ctx, accountID, s.now()); err != nil {
		s.logger.Error("failed to record upstream success", "account", accountID, "error", err)
	}
}
