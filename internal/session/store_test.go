// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return s
}

func TestCreateLookupRevoke(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "admin", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Token == "" {
		t.Fatal("created session has empty token")
	}

	got, err := s.Lookup(ctx, created.Token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Author != "admin" {
		t.Errorf("author = %q, want %q", got.Author, "admin")
	}

	if err := s.Revoke(ctx, created.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := s.Lookup(ctx, created.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup after revoke = %v, want ErrNotFound", err)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Lookup(context.Background(), "no-such-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup unknown = %v, want ErrNotFound", err)
	}
}

func TestExpiredSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "admin", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := s.Lookup(ctx, created.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup expired = %v, want ErrNotFound", err)
	}
}

func TestRevokeUnknownTokenIsNoError(t *testing.T) {
	s := newTestStore(t)

	if err := s.Revoke(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("revoke unknown = %v, want nil", err)
	}
}

func TestCreateRejectsNonPositiveTTL(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create(context.Background(), "admin", 0); err == nil {
		t.Fatal("create with zero ttl succeeded, want error")
	}
}

func TestPasswordRoundtrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword(correct) = %v, want nil", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("CheckPassword(wrong) = %v, want ErrBadCredentials", err)
	}
	if err := CheckPassword("", "anything"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("CheckPassword(empty hash) = %v, want ErrBadCredentials", err)
	}
}
