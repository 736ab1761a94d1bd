package httphandler

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ericfisherdev/sdbrowser/internal/application"
	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ConnectRequest is the body of the connect endpoint.
type ConnectRequest struct {
	Username string `json:"sd_username"`
	Password string `json:"sd_password"`
}

// ConnectionResponse is the JSON representation of an account's link state.
// Timestamps are RFC 3339 and omitted when unknown.
type ConnectionResponse struct {
	Connected      bool    `json:"connected"`
	Username       *string `json:"username"`
	LastSuccess    *string `json:"last_success"`
	TokenExpiresAt *string `json:"token_expires_at,omitempty"`
}

// LineupResponse is the JSON representation of a lineup.
type LineupResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Transport *string `json:"transport"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the JSON representation of the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toConnectionResponse(s application.ConnectionStatus) ConnectionResponse {
	resp := ConnectionResponse{Connected: s.Connected}
	if s.Username != "" {
		u := s.Username
		resp.Username = &u
	}
	resp.LastSuccess = formatOptionalTime(s.LastSuccess)
	resp.TokenExpiresAt = formatOptionalTime(s.TokenExpiresAt)
	return resp
}

func toLineupResponses(lineups []model.Lineup) []LineupResponse {
	resp := make([]LineupResponse, 0, len(lineups))
	for _, l := range lineups {
		lr := LineupResponse{ID: l.ID, Name: l.Name, Location: l.Location}
		if l.Transport != "" {
			t := l.Transport
			lr.Transport = &t
		}
		resp = append(resp, lr)
	}
	return resp
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
