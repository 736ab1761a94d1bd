package schedulesdirect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GuideProvider = (*Client)(nil)

// Client implements the driven.GuideProvider port. It holds no per-account
// state; the token is passed into every call.
type Client struct {
	exec   *Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates a Client that sends all traffic through exec. The Client
// takes ownership of exec: Close releases it.
func NewClient(exec *Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		exec:   exec,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the underlying executor's connections.
func (c *Client) Close() {
	c.exec.Close()
}

// ListLineups returns the lineups attached to the upstream account.
func (c *Client) ListLineups(ctx context.Context, token string) ([]model.Record, error) {
	var resp model.Record
	if err := c.exec.Do(ctx, Request{
		Name:   "lineups",
		Method: http.MethodGet,
		Path:   "/lineups",
		Header: tokenHeader(token),
	}, &resp); err != nil {
		return nil, fmt.Errorf("list lineups: %w", err)
	}
	return resp.Records("lineups"), nil
}

// GetLineupDetail returns the full lineup document, including its station and
// channel map.
func (c *Client) GetLineupDetail(ctx context.Context, token, lineupID string) (model.Record, error) {
	var resp model.Record
	if err := c.exec.Do(ctx, Request{
		Name:   "lineup_detail",
		Method: http.MethodGet,
		Path:   "/lineups/" + url.PathEscape(lineupID),
		Header: tokenHeader(token),
	}, &resp); err != nil {
		return nil, fmt.Errorf("get lineup %s: %w", lineupID, err)
	}
	if resp == nil {
		resp = model.Record{}
	}
	return resp, nil
}

// ListStationsForLineup returns the stations nested in the lineup detail.
func (c *Client) ListStationsForLineup(ctx context.Context, token, lineupID string) ([]model.Record, error) {
	detail, err := c.GetLineupDetail(ctx, token, lineupID)
	if err != nil {
		return nil, err
	}
	return detail.Records("stations"), nil
}

// GetPrograms returns program details for programIDs.
func (c *Client) GetPrograms(ctx context.Context, token string, programIDs []string) ([]model.Record, error) {
	if len(programIDs) == 0 {
		return []model.Record{}, nil
	}

	var resp any
	if err := c.exec.Do(ctx, Request{
		Name:   "programs",
		Method: http.MethodPost,
		Path:   "/programs",
		Header: tokenHeader(token),
		Body:   programIDs,
	}, &resp); err != nil {
		return nil, fmt.Errorf("get %d programs: %w", len(programIDs), err)
	}
	return model.RecordsFrom(resp), nil
}

// scheduleRequest is one per-station entry of a schedules query.
type scheduleRequest struct {
	StationID string   `json:"stationID"`
	Date      []string `json:"date"`
}

// GetSchedules returns schedules for stationIDs on startDate, or from
// startDate through endDate when endDate is non-empty.
func (c *Client) GetSchedules(ctx context.Context, token string, stationIDs []string, startDate, endDate string) ([]model.Record, error) {
	if len(stationIDs) == 0 {
		return []model.Record{}, nil
	}

	dates := []string{startDate}
	if endDate != "" {
		dates = []string{startDate, endDate}
	}

	body := make([]scheduleRequest, 0, len(stationIDs))
	for _, id := range stationIDs {
		body = append(body, scheduleRequest{StationID: id, Date: dates})
	}

	var resp any
	if err := c.exec.Do(ctx, Request{
		Name:   "schedules",
		Method: http.MethodPost,
		Path:   "/schedules",
		Header: tokenHeader(token),
		Body:   body,
	}, &resp); err != nil {
		return nil, fmt.Errorf("get schedules for %d stations: %w", len(stationIDs), err)
	}
	return model.RecordsFrom(resp), nil
}

// GetProgramImages returns the image metadata of a single program. Errors are
// returned to the caller, unlike BatchGetImages.
func (c *Client) GetProgramImages(ctx context.Context, token, programID string) ([]model.Record, error) {
	var resp model.Record
	if err := c.exec.Do(ctx, Request{
		Name:   "program_images",
		Method: http.MethodGet,
		Path:   "/metadata/programs/" + url.PathEscape(programID),
		Header: tokenHeader(token),
	}, &resp); err != nil {
		return nil, fmt.Errorf("get images for program %s: %w", programID, err)
	}
	return imagesOf(resp), nil
}

// BatchGetImages returns image metadata keyed by program ID. Any failure is
// logged and reported as an empty map, so a missing artwork batch never fails
// the caller.
func (c *Client) BatchGetImages(ctx context.Context, token string, programIDs []string) map[string][]model.Record {
	result := make(map[string][]model.Record)
	if len(programIDs) == 0 {
		return result
	}

	var resp any
	if err := c.exec.Do(ctx, Request{
		Name:   "batch_images",
		Method: http.MethodPost,
		Path:   "/metadata/programs",
		Header: tokenHeader(token),
		Body:   programIDs,
	}, &resp); err != nil {
		c.logger.Error("failed to batch get images", "programs", len(programIDs), "error", err)
		return map[string][]model.Record{}
	}

	items, ok := resp.([]any)
	if !ok {
		c.logger.Error("failed to batch get images", "programs", len(programIDs), "error", fmt.Sprintf("unexpected response type %T", resp))
		return map[string][]model.Record{}
	}

	for _, item := range model.RecordsFrom(items) {
		id := item.String("programID")
		if id == "" {
			continue
		}
		result[id] = imagesOf(item)
	}
	return result
}

// GetAccountStatus returns the upstream account status and quota document.
func (c *Client) GetAccountStatus(ctx context.Context, token string) (model.Record, error) {
	var resp model.Record
	if err := c.exec.Do(ctx, Request{
		Name:   "status",
		Method: http.MethodGet,
		Path:   "/status",
		Header: tokenHeader(token),
	}, &resp); err != nil {
		return nil, fmt.Errorf("get account status: %w", err)
	}
	if resp == nil {
		resp = model.Record{}
	}
	return resp, nil
}

// imagesOf extracts data.images from a program metadata object. The provider
// also returns data as a bare image array, which is accepted too.
func imagesOf(r model.Record) []model.Record {
	if data := r.Object("data"); data != nil {
		return data.Records("images")
	}
	return r.Records("data")
}

func tokenHeader(token string) http.Header {
	h := http.Header{}
	h.Set("token", token)
	return h
}
