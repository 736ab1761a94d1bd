// Package schedulesdirect implements the GuideProvider port against the
// Schedules Direct JSON API.
package schedulesdirect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/sdbrowser/internal/metrics"
)

const (
	// maxAttempts is the total number of tries per call, the first included.
	maxAttempts = 3

	requestTimeout    = 30 * time.Second
	defaultRetryAfter = 60 * time.Second
	defaultAppID      = "sd-browser"
)

// Sleeper suspends the calling goroutine for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Request describes one logical upstream call.
type Request struct {
	// Name labels the call in logs and metrics. Defaults to Path.
	Name   string
	Method string
	// Path is relative to the executor's base URL.
	Path   string
	Header http.Header
	// Body is JSON-encoded when non-nil.
	Body any
}

// Executor issues upstream HTTP calls with bounded retries. Every upstream
// request goes through Do, so the retry policy is the same for all operations.
// It is safe for concurrent use.
type Executor struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	sleep      Sleeper
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the default HTTP client. Intended for tests that
// point the executor at an httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.httpClient = c }
}

// WithSleeper replaces the function used for rate-limit and backoff waits.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithRateLimit paces outgoing attempts to perSecond. Zero or negative leaves
// the executor unpaced.
func WithRateLimit(perSecond float64) Option {
	return func(e *Executor) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor for baseURL. appID identifies the client in
// the User-Agent header; empty means "sd-browser". The executor owns its HTTP
// client and must be released with Close.
func NewExecutor(baseURL, appID string, opts ...Option) *Executor {
	if appID == "" {
		appID = defaultAppID
	}

	e := &Executor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  appID + "/1.0",
		httpClient: &http.Client{Timeout: requestTimeout},
		sleep:      sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the executor's pooled connections.
func (e *Executor) Close() {
	e.httpClient.CloseIdleConnections()
}

// Do performs req and decodes the JSON response into out (which may be nil).
//
// Up to three attempts are made. 429 waits for Retry-After seconds (60 when
// missing), 5xx and transport timeouts wait 2^attempt seconds. A timeout while
// reading a successful response body counts as a transport timeout. Other 4xx
// statuses fail at once with a *StatusError. When every attempt is used up
// the error is ErrMaxRetriesExceeded, except for a timeout on the last
// attempt, which is returned as is.
func (e *Executor) Do(ctx context.Context, req Request, out any) error {
	name := req.Name
	if name == "" {
		name = req.Path
	}

	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() { metrics.RecordUpstreamCall(name, outcome, time.Since(start)) }()

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s request body: %w", name, err)
		}
	}

	url := e.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		// The body is read inside the attempt because the client timeout
		// also covers reading it.
		var wait time.Duration
		var reason string
		resp, err := e.send(ctx, req, url, payload)
		switch {
		case err != nil:
			// Transport failure, classified below.
		case resp.StatusCode == http.StatusTooManyRequests:
			wait = retryAfter(resp.Header)
			reason = metrics.RetryRateLimited
		case resp.StatusCode >= http.StatusInternalServerError:
			wait = backoff(attempt)
			reason = metrics.RetryServerError
		case resp.StatusCode >= http.StatusBadRequest:
			outcome = metrics.OutcomeClientError
			return newStatusError(req.Method, url, resp)
		default:
			var data []byte
			data, err = readBody(resp)
			if err == nil {
				if err := decodeJSON(data, out); err != nil {
					return fmt.Errorf("decode %s response: %w", name, err)
				}
				outcome = metrics.OutcomeSuccess
				return nil
			}
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !isTimeout(err) || attempt == maxAttempts-1 {
				return fmt.Errorf("%s %s: %w", req.Method, url, err)
			}

			wait = backoff(attempt)
			reason = metrics.RetryTimeout
			e.logger.Warn("sd request timed out, retrying",
				"endpoint", name,
				"attempt", attempt,
				"wait", wait,
			)
		} else {
			discard(resp)
			if attempt == maxAttempts-1 {
				break
			}
			e.logger.Warn("sd request failed, retrying",
				"endpoint", name,
				"status", resp.StatusCode,
				"attempt", attempt,
				"wait", wait,
			)
		}

		metrics.RecordRetry(reason)
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}

	outcome = metrics.OutcomeExhausted
	return ErrMaxRetriesExceeded
}

// send performs a single attempt.
func (e *Executor) send(ctx context.Context, req Request, url string, payload []byte) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	// Setting Accept-Encoding explicitly turns off the transport's transparent
	// decompression; decodeBody handles gzip itself.
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	e.logger.Debug("sd api call", "method", req.Method, "path", req.Path)

	return e.httpClient.Do(httpReq)
}

// readBody reads and, when gzip-encoded, decompresses a response, then
// closes it.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// decodeJSON decodes data into out. An empty body leaves out untouched.
func decodeJSON(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// discard drains and closes a response that will not be decoded so the
// connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
}

// backoff returns 2^attempt seconds.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// retryAfter reads the Retry-After header as whole seconds.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return defaultRetryAfter
	}
	if seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// isTimeout reports whether err is a transport-level timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
