// Package session persists the signed-in user's session record in a local
// key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhouzirui/z-chat/internal/config"
	"github.com/zhouzirui/z-chat/internal/model/user"
)

// Key is the fixed key the session record lives under.
const Key = "user"

var (
	// ErrMalformed is returned by Load when the stored record cannot be decoded.
	ErrMalformed = errors.New("stored session is malformed")
	// ErrNotFound is returned by KV.Get for a missing key.
	ErrNotFound = errors.New("key not found")
)

// KV is the persistence API the session store is built on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store saves and loads the serialized Session.
type Store struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Open builds the Store for the configured driver.
func Open(cfg config.StoreConfig) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch cfg.Driver {
	case config.StoreFile, "":
		kv, err = NewFileKV(cfg.Path)
	case config.StoreSQLite:
		kv, err = NewSQLiteKV(cfg.Path)
	case config.StoreMemory:
		kv = NewMemoryKV()
	default:
		return nil, fmt.Errorf("unknown session store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// Load returns the stored session. ok is false when nothing is stored.
func (s *Store) Load(ctx context.Context) (sess user.Session, ok bool, err error) {
	raw, err := s.kv.Get(ctx, Key)
	if errors.Is(err, ErrNotFound) {
		return user.Session{}, false, nil
	}
	if err != nil {
		return user.Session{}, false, fmt.Errorf("read session: %w", err)
	}

	if err := json.Unmarshal(raw, &sess); err != nil {
		return user.Session{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sess, true, nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess user.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}
