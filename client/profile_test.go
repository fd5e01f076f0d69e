package client

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/tidewatch/tidesync/cache"
	"github.com/tidewatch/tidesync/domain"
)

func TestFetchProfile_UpsertsAndEnsuresUser(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"fullName":"Bob B","patient":{"birthday":"1990-04-01","diagnosisDate":"2010-01-01","about":"hi"}}`))
	})
	c, db := newTestClient(t, handler)

	profile, err := c.FetchProfile(context.Background(), "u2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/metadata/u2/profile" {
		t.Fatalf("path = %q", gotPath)
	}
	if profile.UserID != "u2" || profile.FullName != "Bob B" || profile.Birthday != "1990-04-01" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	user, err := cache.GetUser(db, "u2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Profile == nil || user.Profile.FullName != "Bob B" {
		t.Fatalf("profile not linked to user: %+v", user.Profile)
	}
}

func TestFetchProfile_ParseErrorNoWrite(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{{`))
	})
	c, db := newTestClient(t, handler)

	if _, err := c.FetchProfile(context.Background(), "u2"); err == nil {
		t.Fatal("expected parse error")
	}
	var n int64
	_ = db.Model(&domain.Profile{}).Count(&n).Error
	if n != 0 {
		t.Fatal("profile written despite parse failure")
	}
}

func TestFetchViewableUserIDs_ReplacesSetInDocumentOrder(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		// The ids are the keys, not the values.
		_, _ = w.Write([]byte(`{"b":{"view":{}},"a":{"view":{}},"c":{"view":{}}}`))
	})
	c, db := newTestClient(t, handler)

	if err := cache.BeginSession(db, "tok-1", &domain.User{UserID: "u1"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	// A previous set that must be fully replaced.
	if err := cache.ReplaceViewableUserIDs(db, "u1", []string{"old-1", "old-2"}); err != nil {
		t.Fatalf("seed viewable: %v", err)
	}

	ids, err := c.FetchViewableUserIDs(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/access/groups/u1" {
		t.Fatalf("path = %q", gotPath)
	}
	if !reflect.DeepEqual(ids, []string{"b", "a", "c"}) {
		t.Fatalf("ids = %v, want document order [b a c]", ids)
	}

	user, err := cache.GetUser(db, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	var stored []string
	for _, s := range user.ViewableUserIDs {
		stored = append(stored, s.Value)
	}
	if !reflect.DeepEqual(stored, []string{"b", "a", "c"}) {
		t.Fatalf("stored = %v, old set not replaced", stored)
	}
}

func TestFetchViewableUserIDs_RequiresSession(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := c.FetchViewableUserIDs(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
