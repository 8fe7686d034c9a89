package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, 24*time.Hour)

	sess, err := ss.Create(context.Background(), "alice@example.com", testNow)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", sess.Email)
	}
	if !sess.ExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Errorf("expires_at = %v, want %v", sess.ExpiresAt, testNow.Add(24*time.Hour))
	}
}

func TestSessionNewTokenEachLogin(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)

	a, _ := ss.Create(context.Background(), "alice@example.com", testNow)
	b, _ := ss.Create(context.Background(), "alice@example.com", testNow)
	if a.Token == b.Token {
		t.Error("expected distinct tokens")
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	sess, _ := ss.Create(ctx, "alice@example.com", testNow)

	got, err := ss.GetByToken(ctx, sess.Token, testNow.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("got %+v, want session %d", got, sess.ID)
	}

	got, err = ss.GetByToken(ctx, sess.Token, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	got, _ = ss.GetByToken(ctx, "nope", testNow)
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	sess, _ := ss.Create(ctx, "alice@example.com", testNow)
	if err := ss.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := ss.GetByToken(ctx, sess.Token, testNow)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	short := NewSessionStore(db, time.Minute)
	long := NewSessionStore(db, 24*time.Hour)
	short.Create(ctx, "a@example.com", testNow)
	keep, _ := long.Create(ctx, "b@example.com", testNow)

	n, err := short.DeleteExpired(ctx, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	got, _ := long.GetByToken(ctx, keep.Token, testNow.Add(time.Hour))
	if got == nil {
		t.Error("unexpired session should survive")
	}
}
