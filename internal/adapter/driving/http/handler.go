// Package httphandler is the REST driving adapter for linking Schedules
// Direct accounts and browsing their lineups.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/schedulesdirect"
	"github.com/ericfisherdev/sdbrowser/internal/application"
	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies; the only body is a login form.
const maxBodyBytes = 64 << 10

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	accounts *application.AccountService
	db       Pinger
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(accounts *application.AccountService, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		accounts: accounts,
		db:       db,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/accounts/{account}/sd/connect", h.Connect)
	mux.HandleFunc("GET /api/v1/accounts/{account}/sd/status", h.Status)
	mux.HandleFunc("DELETE /api/v1/accounts/{account}/sd", h.Disconnect)
	mux.HandleFunc("GET /api/v1/accounts/{account}/sd/lineups", h.AvailableLineups)
	mux.HandleFunc("GET /api/v1/accounts/{account}/sd/lineups/{lineup}/stations", h.Stations)
	mux.HandleFunc("GET /api/v1/accounts/{account}/sd/upstream-status", h.UpstreamStatus)
	mux.HandleFunc("GET /api/v1/accounts/{account}/lineups", h.SelectedLineups)
	mux.HandleFunc("POST /api/v1/accounts/{account}/lineups/{lineup}", h.SelectLineup)
	mux.HandleFunc("DELETE /api/v1/accounts/{account}/lineups/{lineup}", h.DeselectLineup)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Connect authenticates against Schedules Direct and links the account.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	var req ConnectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "sd_username and sd_password are required")
		return
	}

	status, err := h.accounts.Connect(r.Context(), account, model.UpstreamCredential{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var authErr *schedulesdirect.AuthError
		if errors.As(err, &authErr) {
			writeError(w, http.StatusBadRequest, "failed to connect: "+authErr.Message)
			return
		}
		// The provider also rejects bad credentials with a 4xx status.
		var statusErr *schedulesdirect.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			msg := statusErr.Message
			if msg == "" {
				msg = http.StatusText(statusErr.StatusCode)
			}
			writeError(w, http.StatusBadRequest, "failed to connect: "+msg)
			return
		}
		h.writeServiceError(w, "failed to connect sd account", account, err)
		return
	}

	writeJSON(w, http.StatusOK, toConnectionResponse(status))
}

// Status reports whether the account is linked.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	status, err := h.accounts.Status(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, "failed to get sd status", account, err)
		return
	}

	writeJSON(w, http.StatusOK, toConnectionResponse(status))
}

// Disconnect unlinks the account.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	if err := h.accounts.Disconnect(r.Context(), account); err != nil {
		h.writeServiceError(w, "failed to disconnect sd account", account, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AvailableLineups lists the lineups attached to the upstream account.
func (h *Handler) AvailableLineups(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	lineups, err := h.accounts.Lineups(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, "failed to fetch lineups", account, err)
		return
	}

	writeJSON(w, http.StatusOK, toLineupResponses(lineups))
}

// Stations lists the stations of one lineup.
func (h *Handler) Stations(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	stations, err := h.accounts.Stations(r.Context(), account, r.PathValue("lineup"))
	if err != nil {
		h.writeServiceError(w, "failed to fetch stations", account, err)
		return
	}

	writeJSON(w, http.StatusOK, stations)
}

// UpstreamStatus returns the Schedules Direct account status document.
func (h *Handler) UpstreamStatus(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	status, err := h.accounts.UpstreamStatus(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, "failed to fetch upstream status", account, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// SelectedLineups lists the account's selected lineups.
func (h *Handler) SelectedLineups(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	lineups, err := h.accounts.SelectedLineups(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, "failed to list selected lineups", account, err)
		return
	}

	writeJSON(w, http.StatusOK, toLineupResponses(lineups))
}

// SelectLineup adds a lineup to the account's selection.
func (h *Handler) SelectLineup(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	if err := h.accounts.SelectLineup(r.Context(), account, r.PathValue("lineup")); err != nil {
		h.writeServiceError(w, "failed to select lineup", account, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "lineup added"})
}

// DeselectLineup removes a lineup from the account's selection.
func (h *Handler) DeselectLineup(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	if err := h.accounts.DeselectLineup(r.Context(), account, r.PathValue("lineup")); err != nil {
		h.writeServiceError(w, "failed to deselect lineup", account, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps service and upstream errors onto HTTP responses.
// Unclassified errors are logged and reported as 500 without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg, account string, err error) {
	var statusErr *schedulesdirect.StatusError

	switch {
	case errors.Is(err, application.ErrAccountNotConnected):
		writeError(w, http.StatusBadRequest, "no schedules direct account connected")
	case errors.Is(err, application.ErrReauthRequired):
		writeError(w, http.StatusUnauthorized, "schedules direct session expired, reconnect required")
	case errors.Is(err, driven.ErrLineupNotFound):
		writeError(w, http.StatusNotFound, "lineup not found")
	case errors.Is(err, driven.ErrLineupAlreadySelected):
		writeError(w, http.StatusBadRequest, "lineup already added")
	case errors.Is(err, driven.ErrLineupNotSelected):
		writeError(w, http.StatusNotFound, "lineup not found in selection")
	case errors.As(err, &statusErr):
		h.logger.Warn(msg, "account", account, "upstream_status", statusErr.StatusCode, "upstream_code", statusErr.Code)
		writeError(w, http.StatusBadGateway, "schedules direct rejected the request")
	case errors.Is(err, schedulesdirect.ErrMaxRetriesExceeded), isTimeout(err):
		h.logger.Warn(msg, "account", account, "error", err)
		writeError(w, http.StatusServiceUnavailable, "schedules direct unavailable, try again later")
	default:
		h.logger.Error(msg, "account", account, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
