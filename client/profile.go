// Profile and viewable-user operations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidewatch/tidesync/cache"
	"github.com/tidewatch/tidesync/domain"
)

// FetchProfile retrieves the profile metadata for userID, upserts it and
// guarantees a User row exists for it (creating a bare one if needed).
func (c *Client) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}
	reqURL := c.env.apiURL("/metadata/"+userID+"/profile", "")

	_, _, body, err := c.do(ctx, "FetchProfile", http.MethodGet, reqURL, headers, nil)
	if err != nil {
		return nil, err
	}

	var w wireProfile
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	profile := w.toDomain(userID)
	if err := cache.UpsertProfile(c.db, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// FetchViewableUserIDs retrieves the ids the current user may view and
// fully replaces the cached set with them. The response is a JSON object
// whose keys (not values) are the ids; document order is preserved.
// Requires an authenticated session bound to a user.
func (c *Client) FetchViewableUserIDs(ctx context.Context) ([]string, error) {
	user, err := cache.CurrentUser(c.db)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSession
	}

	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}
	reqURL := c.env.apiURL("/access/groups/"+user.UserID, "")

	_, _, body, err := c.do(ctx, "FetchViewableUserIDs", http.MethodGet, reqURL, headers, nil)
	if err != nil {
		return nil, err
	}

	ids, err := objectKeys(body)
	if err != nil {
		return nil, err
	}
	if err := cache.ReplaceViewableUserIDs(c.db, user.UserID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
// A plain unmarshal into a map would shuffle them.
func objectKeys(body []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)

		// Skip the value, whatever shape it has.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
