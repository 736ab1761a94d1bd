package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
)

// ErrTokenRejected matches provider errors meaning the session token is no
// longer accepted. Callers must reauthenticate.
var ErrTokenRejected = errors.New("upstream token rejected")

// GuideProvider defines the driven port for the upstream program-guide API.
// Every method except Authenticate takes the plaintext upstream token.
//
// List results hold the JSON objects of the provider's array response in
// order. Array elements that are not objects carry no usable data and are
// skipped; a response that is not an array yields an empty list.
type GuideProvider interface {
	// Authenticate exchanges an upstream credential for a session token.
	Authenticate(ctx context.Context, cred model.UpstreamCredential) (model.UpstreamSession, error)

	ListLineups(ctx context.Context, token string) ([]model.Record, error)
	GetLineupDetail(ctx context.Context, token, lineupID string) (model.Record, error)
	ListStationsForLineup(ctx context.Context, token, lineupID string) ([]model.Record, error)

	// GetPrograms and GetSchedules return an empty result without contacting
	// the provider when given no identifiers.
	GetPrograms(ctx context.Context, token string, programIDs []string) ([]model.Record, error)
	GetSchedules(ctx context.Context, token string, stationIDs []string, startDate, endDate string) ([]model.Record, error)

	GetProgramImages(ctx context.Context, token, programID string) ([]model.Record, error)

	// BatchGetImages never fails; any upstream error yields an empty map.
	BatchGetImages(ctx context.Context, token string, programIDs []string) map[string][]model.Record

	GetAccountStatus(ctx context.Context, token string) (model.Record, error)
}
