package client

import (
	"encoding/base64"

	"github.com/tidewatch/tidesync/cache"
)

// headerSessionToken is the header carrying the session token, both on
// requests and on auth responses.
const headerSessionToken = "x-tidepool-session-token"

// basicAuthHeader builds the Authorization value for the login request.
func basicAuthHeader(username, password string) string {
	creds := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// sessionHeaders returns the headers every post-login request carries: the
// session token header when authenticated, otherwise an empty map.
func (c *Client) sessionHeaders() (map[string]string, error) {
	headers := map[string]string{}
	sessionID, err := cache.CurrentSessionID(c.db)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		headers[headerSessionToken] = sessionID
	}
	return headers, nil
}
