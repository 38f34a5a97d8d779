// SPDX-License-Identifier: MIT

// Package session stores author login sessions in a Badger key-value
// database. Tokens are opaque UUIDs; expiry rides on Badger entry TTLs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound indicates the token does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

const keyPrefix = "sess:"

// Session is the stored record behind a login token.
type Session struct {
	Token     string    `json:"token"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions in Badger.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is usable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Create issues a new session token for the author, valid for ttl.
func (s *Store) Create(_ context.Context, author string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}

	now := time.Now().UTC()
	sess := &Session{
		Token:     uuid.New().String(),
		Author:    author,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	buf, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+sess.Token), buf).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return sess, nil
}

// Lookup returns the session behind a token, or ErrNotFound.
func (s *Store) Lookup(_ context.Context, token string) (*Session, error) {
	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	// Badger TTLs have second granularity; enforce the recorded expiry too.
	if time.Now().After(sess.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Revoke removes a session. Revoking an unknown token is not an error.
func (s *Store) Revoke(_ context.Context, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + token))
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
