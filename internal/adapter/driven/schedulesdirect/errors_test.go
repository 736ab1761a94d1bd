package schedulesdirect_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sd "github.com/ericfisherdev/sdbrowser/internal/adapter/driven/schedulesdirect"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

func TestStatusError_TokenRejected(t *testing.T) {
	tests := []struct {
		name string
		err  *sd.StatusError
		want bool
	}{
		{name: "invalid token code", err: &sd.StatusError{StatusCode: http.StatusForbidden, Code: 4001}, want: true},
		{name: "token expired code", err: &sd.StatusError{StatusCode: http.StatusForbidden, Code: 4006}, want: true},
		{name: "unauthorized status", err: &sd.StatusError{StatusCode: http.StatusUnauthorized}, want: true},
		{name: "bad credentials", err: &sd.StatusError{StatusCode: http.StatusBadRequest, Code: 4003}, want: false},
		{name: "invalid lineup", err: &sd.StatusError{StatusCode: http.StatusBadRequest, Code: 4004}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, driven.ErrTokenRejected))
		})
	}
}

func TestTokenRejectedSurvivesClientWrapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /20141201/lineups", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeBody(w, `{"code":4001,"message":"Token expired."}`)
	})

	client, up, rec := newTestClient(t, mux)

	_, err := client.ListLineups(context.Background(), "stale")

	require.ErrorIs(t, err, driven.ErrTokenRejected)
	assert.Len(t, up.calls(), 1)
	assert.Empty(t, rec.waits)
}
