// Authentication operations: sign-in, token refresh and sign-out. These own
// the lifecycle of the single session row.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tidewatch/tidesync/cache"
	"github.com/tidewatch/tidesync/domain"
)

// SignIn authenticates with the given credentials. Any leftover session is
// cleared first. The server delivers the session token only via the
// x-tidepool-session-token response header; the session row is persisted
// from that header before the body is parsed, then the body is parsed as
// the user and bound as the session owner. A 2xx response without the
// header fails with ErrMissingSessionHeader and leaves no session behind.
func (c *Client) SignIn(ctx context.Context, username, password string) (*domain.User, error) {
	// Clear out any stale session, just in case one was left over.
	if err := cache.EndSession(c.db); err != nil {
		return nil, err
	}

	headers := map[string]string{"Authorization": basicAuthHeader(username, password)}
	url := c.env.apiURL("/auth/login", "")

	_, respHeaders, body, err := c.do(ctx, "SignIn", http.MethodPost, url, headers, nil)
	if err != nil {
		return nil, err
	}

	sessionID := respHeaders.Get(headerSessionToken)
	if sessionID == "" {
		return nil, ErrMissingSessionHeader
	}
	// Persist the token before touching the body, so a later parse failure
	// still leaves an authenticated (if ownerless) session, matching the
	// header side-channel contract.
	if err := cache.BeginSession(c.db, sessionID, nil); err != nil {
		return nil, err
	}

	var w wireUser
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	user := w.toDomain()
	if err := cache.BindSessionUser(c.db, user); err != nil {
		return nil, err
	}

	log.Debug().Str("userid", user.UserID).Msg("signed in")
	return user, nil
}

// RefreshToken exchanges the current session token for a fresh one. With no
// session cached it fails immediately with ErrNoSession and makes no
// network call. The existing session row is updated in place; refresh never
// creates a session.
func (c *Client) RefreshToken(ctx context.Context) error {
	sessionID, err := cache.CurrentSessionID(c.db)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return ErrNoSession
	}

	headers, err := c.sessionHeaders()
	if err != nil {
		return err
	}
	url := c.env.apiURL("/auth/login", "")

	_, respHeaders, _, err := c.do(ctx, "RefreshToken", http.MethodGet, url, headers, nil)
	if err != nil {
		return err
	}

	newID := respHeaders.Get(headerSessionToken)
	if newID == "" {
		// Nothing to apply; the old token stays in effect.
		return nil
	}
	if err := cache.UpdateSessionID(c.db, newID); err != nil {
		if errors.Is(err, cache.ErrNoSession) {
			// The session vanished between the precondition check and the
			// response. Treated as an anomaly, not a failure.
			log.Warn().Msg("session disappeared during token refresh; update skipped")
			return nil
		}
		return err
	}
	log.Debug().Msg("session token refreshed")
	return nil
}

// SignOut clears the entire local cache immediately, then notifies the
// server best-effort. Local sign-out always succeeds regardless of the
// server's answer; the returned status code reports what the server said.
func (c *Client) SignOut(ctx context.Context) (int, error) {
	// Capture the headers before dropping the session, or the request would
	// go out without a token.
	headers, err := c.sessionHeaders()
	if err != nil {
		return 0, err
	}

	if err := cache.Clear(c.db); err != nil {
		return 0, err
	}

	url := c.env.apiURL("/auth/logout", "")
	status, _, _, err := c.do(ctx, "SignOut", http.MethodPost, url, headers, nil)
	if err != nil {
		return status, err
	}
	return status, nil
}
