// Note operations: post, update, delete and the range listing with its
// atomic cache swap and cascading profile backfill.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tidewatch/tidesync/cache"
	"github.com/tidewatch/tidesync/domain"
	"github.com/tidewatch/tidesync/internal/syncq"
)

// PostNote creates note on the server and caches it. The response body
// carries only the newly assigned id; the note is stamped with it, upserted
// and its hashtags recomputed in one transaction. A response without a
// parseable id aborts before any cache write.
func (c *Client) PostNote(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}
	payload, err := encodeNote(note)
	if err != nil {
		return nil, err
	}
	body, err := wrapMessage(payload)
	if err != nil {
		return nil, err
	}

	reqURL := c.env.apiURL("/message/send/"+note.GroupID, "")
	_, _, respBody, err := c.do(ctx, "PostNote", http.MethodPost, reqURL, headers, body)
	if err != nil {
		return nil, err
	}

	var assigned struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &assigned); err != nil {
		return nil, err
	}
	if assigned.ID == "" {
		return nil, ErrMissingNoteID
	}

	note.ID = assigned.ID
	if err := cache.UpsertNote(c.db, note, note.UserID); err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateNote edits a note's text and timestamp on the server with a partial
// payload. On success the caller-supplied note is reported as the canonical
// result; the cache is left alone, and in particular the cached hashtag set
// is deliberately not recomputed.
func (c *Client) UpdateNote(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	if note.ID == "" {
		return nil, ErrMissingNoteID
	}
	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{
		"messagetext": note.MessageText,
		"timestamp":   note.Timestamp.Format(messageDateLayout),
	})
	if err != nil {
		return nil, err
	}
	body, err := wrapMessage(payload)
	if err != nil {
		return nil, err
	}

	reqURL := c.env.apiURL("/message/edit/"+note.ID, "")
	if _, _, _, err := c.do(ctx, "UpdateNote", http.MethodPut, reqURL, headers, body); err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote removes a note on the server, then evicts exactly that row
// from the cache.
func (c *Client) DeleteNote(ctx context.Context, noteID string) error {
	if noteID == "" {
		return ErrMissingNoteID
	}
	headers, err := c.sessionHeaders()
	if err != nil {
		return err
	}
	reqURL := c.env.apiURL("/message/remove/"+noteID, "")
	if _, _, _, err := c.do(ctx, "DeleteNote", http.MethodDelete, reqURL, headers, nil); err != nil {
		return err
	}
	return cache.DeleteNote(c.db, noteID)
}

// ListNotes fetches the notes of userID's group with timestamp in
// (from, to] and swaps them into the cache atomically: the full response is
// parsed first, then one transaction drops the user's hashtags, evicts the
// stale range and reinserts every note with recomputed tags. A parse error
// anywhere leaves the cache exactly as it was.
//
// Authors or groups not yet cached are scheduled for background profile
// backfill after the swap commits; backfill failures are logged, never
// surfaced. AwaitBackfill provides a barrier for callers that need it.
func (c *Client) ListNotes(ctx context.Context, userID string, from, to time.Time) ([]domain.Note, error) {
	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("starttime", from.Format(messageDateLayout))
	query.Set("endtime", to.Format(messageDateLayout))
	reqURL := c.env.apiURL("/message/notes/"+userID, query.Encode())

	_, _, body, err := c.do(ctx, "ListNotes", http.MethodGet, reqURL, headers, nil)
	if err != nil {
		return nil, err
	}

	// Each array element is itself a JSON-encoded string holding one note,
	// so every fragment needs a second parse.
	var envelope struct {
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	notes := make([]domain.Note, 0, len(envelope.Messages))
	for _, fragment := range envelope.Messages {
		n, err := decodeNote(fragment)
		if err != nil {
			log.Error().Err(err).Str("method", "ListNotes").Msg("error parsing notes")
			return nil, err
		}
		notes = append(notes, n)
	}

	if err := cache.ReplaceNotesInRange(c.db, userID, from, to, notes, userID); err != nil {
		return nil, err
	}

	c.scheduleProfileBackfill(ctx, notes)
	return notes, nil
}

// scheduleProfileBackfill submits a background profile fetch for every
// author or group id referenced by notes but absent from the User table.
// Runs after the listing transaction has committed, detached from the
// caller's cancellation.
func (c *Client) scheduleProfileBackfill(ctx context.Context, notes []domain.Note) {
	pending := map[string]struct{}{}
	for _, n := range notes {
		for _, id := range []string{n.UserID, n.GroupID} {
			if id == "" {
				continue
			}
			if _, seen := pending[id]; seen {
				continue
			}
			exists, err := cache.UserExists(c.db, id)
			if err != nil {
				log.Warn().Err(err).Str("userid", id).Msg("backfill lookup failed")
				continue
			}
			if exists {
				continue
			}
			pending[id] = struct{}{}
		}
	}

	// Outlive the listing call: backfill is fire-and-forget.
	bg := context.WithoutCancel(ctx)
	for id := range pending {
		id := id
		job := syncq.JobFunc(func(jobCtx context.Context) error {
			_, err := c.FetchProfile(jobCtx, id)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
					return syncq.Permanent(err)
				}
			}
			return err
		})
		if err := c.exec.Submit(bg, id, job); err != nil {
			log.Warn().Err(err).Str("userid", id).Msg("could not schedule profile backfill")
		} else {
			log.Debug().Str("userid", id).Msg("scheduled profile backfill")
		}
	}
}
