package schedulesdirect

import (
	"context"
	"crypto/sha1" //nolint:gosec // Provider-mandated password digest, not a security control.
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
)

// tokenLifetime is one hour short of the provider's 24h token lifetime.
const tokenLifetime = 23 * time.Hour

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Authenticate exchanges cred for an upstream session. The password is sent as
// its SHA-1 hex digest, which is what the provider expects on the wire. The
// session expiry is computed locally as now + 23h.
func (c *Client) Authenticate(ctx context.Context, cred model.UpstreamCredential) (model.UpstreamSession, error) {
	body := tokenRequest{
		Username: cred.Username,
		Password: passwordDigest(cred.Password),
	}

	var resp tokenResponse
	err := c.exec.Do(ctx, Request{
		Name:   "token",
		Method: http.MethodPost,
		Path:   "/token",
		Body:   body,
	}, &resp)
	if err != nil {
		return model.UpstreamSession{}, fmt.Errorf("request token: %w", err)
	}

	if resp.Code == nil || *resp.Code != 0 {
		code := -1
		if resp.Code != nil {
			code = *resp.Code
		}
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return model.UpstreamSession{}, &AuthError{Code: code, Message: msg}
	}

	if resp.Token == "" {
		return model.UpstreamSession{}, fmt.Errorf("%w: %w", ErrAuthFailed, ErrNoToken)
	}

	return model.UpstreamSession{
		Token:     resp.Token,
		ExpiresAt: c.now().Add(tokenLifetime),
	}, nil
}

// passwordDigest returns the lowercase hex SHA-1 of password.
func passwordDigest(password string) string {
	sum := sha1.Sum([]byte(password)) //nolint:gosec // See import.
	return hex.EncodeToString(sum[:])
}
