package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

func newTestSession(id, operatorID string) *domain.Session {
	return &domain.Session{
		ID:           id,
		OperatorID:   operatorID,
		Token:        "token-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now(),
		UserAgent:    "possync-cli",
		IPAddress:    "192.168.1.20",
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := newTestSession("s-1", "op-1")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("unexpected error saving session: %v", err)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("failed to retrieve saved session: %v", err)
	}
	if got.OperatorID != "op-1" {
		t.Errorf("expected OperatorID op-1, got %s", got.OperatorID)
	}

	for _, key := range []string{
		sessionPrefix + "s-1",
		sessionTokenPrefix + "token-s-1",
		sessionRefreshPrefix + "refresh-s-1",
	} {
		if !mr.Exists(key) {
			t.Errorf("expected key %s", key)
		}
		if ttl := mr.TTL(key); ttl <= 0 || ttl > 24*time.Hour {
			t.Errorf("expected TTL on %s, got %v", key, ttl)
		}
	}
	if ok, _ := mr.SIsMember(sessionOperatorPrefix+"op-1", "s-1"); !ok {
		t.Error("expected session in operator index")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStore_Save_ExpiredSession(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)

	session := newTestSession("s-1", "op-1")
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(sessionPrefix + "s-1") {
		t.Error("expected expired session not to be stored")
	}
}

func TestSessionStore_Save_NoRefreshToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := newTestSession("s-1", "op-1")
	session.RefreshToken = ""
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(sessionRefreshPrefix) {
		t.Error("expected no index for an empty refresh token")
	}
	if _, err := store.GetByRefreshToken(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionStore_Lookups(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	_ = store.Save(ctx, newTestSession("s-1", "op-1"))

	got, err := store.GetByToken(ctx, "token-s-1")
	if err != nil || got.ID != "s-1" {
		t.Fatalf("expected s-1 by token, got %v (%v)", got, err)
	}
	got, err = store.GetByRefreshToken(ctx, "refresh-s-1")
	if err != nil || got.ID != "s-1" {
		t.Fatalf("expected s-1 by refresh token, got %v (%v)", got, err)
	}
	if _, err := store.GetByToken(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Index outlives the session data
	mr.Del(sessionPrefix + "s-1")
	if _, err := store.GetByToken(ctx, "token-s-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for dangling index, got %v", err)
	}

	_ = mr.Set(sessionPrefix+"bad", "{not json")
	_ = mr.Set(sessionTokenPrefix+"bad", "bad")
	if _, err := store.GetByToken(ctx, "bad"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	_ = store.Save(ctx, newTestSession("s-1", "op-1"))
	_ = store.Save(ctx, newTestSession("s-2", "op-1"))

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("unexpected error deleting session: %v", err)
	}
	for _, key := range []string{sessionPrefix + "s-1", sessionTokenPrefix + "token-s-1", sessionRefreshPrefix + "refresh-s-1"} {
		if mr.Exists(key) {
			t.Errorf("expected %s removed", key)
		}
	}
	if ok, _ := mr.SIsMember(sessionOperatorPrefix+"op-1", "s-1"); ok {
		t.Error("expected s-1 removed from operator index")
	}

	if err := store.DeleteByToken(ctx, "token-s-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(sessionPrefix + "s-2") {
		t.Error("expected s-2 removed")
	}

	// Missing sessions are not an error
	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Errorf("unexpected error deleting missing session: %v", err)
	}
	if err := store.DeleteByToken(ctx, "token-s-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionStore_ByOperator(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	_ = store.Save(ctx, newTestSession("s-1", "op-1"))
	_ = store.Save(ctx, newTestSession("s-2", "op-1"))
	_ = store.Save(ctx, newTestSession("s-3", "op-2"))

	// s-2 expires out from under the index
	mr.Del(sessionPrefix + "s-2")

	sessions, err := store.ListByOperator(ctx, "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s-1" {
		t.Fatalf("expected only s-1, got %d sessions", len(sessions))
	}
	if ok, _ := mr.SIsMember(sessionOperatorPrefix+"op-1", "s-2"); ok {
		t.Error("expected expired id pruned from operator index")
	}

	if err := store.DeleteByOperator(ctx, "op-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessions, _ = store.ListByOperator(ctx, "op-1")
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after logout everywhere, got %d", len(sessions))
	}
	if mr.Exists(sessionOperatorPrefix + "op-1") {
		t.Error("expected operator index removed")
	}

	others, _ := store.ListByOperator(ctx, "op-2")
	if len(others) != 1 {
		t.Errorf("expected other operator untouched, got %d sessions", len(others))
	}

	if err := store.DeleteByOperator(ctx, "nobody"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionStore_TTLExpiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := newTestSession("s-1", "op-1")
	session.ExpiresAt = time.Now().Add(time.Minute)
	_ = store.Save(ctx, session)

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected session expired, got %v", err)
	}
	if _, err := store.GetByToken(ctx, "token-s-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected token index expired, got %v", err)
	}
}
