package client

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/tidewatch/tidesync/cache"
	"github.com/tidewatch/tidesync/domain"
)

func TestSignIn_Success(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set(headerSessionToken, "tok-123")
		_, _ = w.Write([]byte(`{"userid":"u1","username":"alice","emails":["alice@example.com"]}`))
	})
	c, db := newTestClient(t, handler)

	user, err := c.SignIn(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.UserID != "u1" || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if gotMethod != http.MethodPost || gotPath != "/auth/login" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:pw1"))
	if gotAuth != wantAuth {
		t.Fatalf("auth header = %q, want %q", gotAuth, wantAuth)
	}

	id, err := cache.CurrentSessionID(db)
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	if id != "tok-123" {
		t.Fatalf("session id = %q, want tok-123", id)
	}
	cached, err := cache.CurrentUser(db)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if cached == nil || cached.UserID != "u1" || len(cached.Emails) != 1 {
		t.Fatalf("session not bound to user: %+v", cached)
	}
}

func TestSignIn_MissingSessionHeader(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userid":"u1","username":"alice"}`))
	})
	c, db := newTestClient(t, handler)

	_, err := c.SignIn(context.Background(), "alice", "pw1")
	if !errors.Is(err, ErrMissingSessionHeader) {
		t.Fatalf("expected ErrMissingSessionHeader, got %v", err)
	}
	id, _ := cache.CurrentSessionID(db)
	if id != "" {
		t.Fatalf("session created despite missing header: %q", id)
	}
}

func TestSignIn_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})
	c, db := newTestClient(t, handler)

	_, err := c.SignIn(context.Background(), "alice", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Method != "SignIn" {
		t.Fatalf("expected APIError 401 from SignIn, got %v", err)
	}
	id, _ := cache.CurrentSessionID(db)
	if id != "" {
		t.Fatal("session created on failed sign-in")
	}
}

func TestSignIn_ClearsStaleSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerSessionToken, "tok-fresh")
		_, _ = w.Write([]byte(`{"userid":"u2","username":"bob"}`))
	})
	c, db := newTestClient(t, handler)

	if err := cache.BeginSession(db, "tok-stale", &domain.User{UserID: "u1"}); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}
	if _, err := c.SignIn(context.Background(), "bob", "pw"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	id, _ := cache.CurrentSessionID(db)
	if id != "tok-fresh" {
		t.Fatalf("stale session survived: %q", id)
	}
}

func TestRefreshToken_NoSessionShortCircuits(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	c, _ := newTestClient(t, handler)

	err := c.RefreshToken(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("refresh made %d network calls with no session", calls.Load())
	}
}

func TestRefreshToken_UpdatesInPlace(t *testing.T) {
	var gotToken, gotAuth, gotMethod string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(headerSessionToken)
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set(headerSessionToken, "tok-2")
	})
	c, db := newTestClient(t, handler)

	if err := cache.BeginSession(db, "tok-1", &domain.User{UserID: "u1"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := c.RefreshToken(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Fatalf("refresh used %s, want GET", gotMethod)
	}
	if gotToken != "tok-1" {
		t.Fatalf("request token = %q, want tok-1", gotToken)
	}
	if gotAuth != "" {
		t.Fatalf("refresh must not use basic auth, got %q", gotAuth)
	}

	id, _ := cache.CurrentSessionID(db)
	if id != "tok-2" {
		t.Fatalf("token not updated: %q", id)
	}
	if n := sessionRows(t, c); n != 1 {
		t.Fatalf("refresh changed session row count: %d", n)
	}
}

func TestRefreshToken_NoHeaderKeepsOldToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	c, db := newTestClient(t, handler)

	if err := cache.BeginSession(db, "tok-1", nil); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := c.RefreshToken(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	id, _ := cache.CurrentSessionID(db)
	if id != "tok-1" {
		t.Fatalf("token changed without a header: %q", id)
	}
}

func TestSignOut_ClearsCacheRegardlessOfServer(t *testing.T) {
	var gotToken string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(headerSessionToken)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c, db := newTestClient(t, handler)

	if err := cache.BeginSession(db, "tok-1", &domain.User{UserID: "u1"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	status, err := c.SignOut(context.Background())
	if err == nil {
		t.Fatal("expected error from 500 response")
	}
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	// Headers were captured before the wipe.
	if gotToken != "tok-1" {
		t.Fatalf("logout request missing session token: %q", gotToken)
	}
	// Local sign-out is immediate and total.
	for _, model := range []any{&domain.Session{}, &domain.User{}, &domain.Note{}} {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if n != 0 {
			t.Fatalf("%T rows left after sign-out: %d", model, n)
		}
	}
}

func TestSignOut_ReportsStatusCode(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c, db := newTestClient(t, handler)
	if err := cache.BeginSession(db, "tok-1", nil); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	status, err := c.SignOut(context.Background())
	if err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
}

func sessionRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	if err := c.db.Model(&domain.Session{}).Count(&n).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return n
}
