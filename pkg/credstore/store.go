package credstore

import (
	"sync"
)

// Canonical keys for persisted credential state. Stores apply their own
// namespacing on top of these names.
const (
	// AccessTokenKey holds the current access token.
	AccessTokenKey = "access_token"

	// RefreshTokenKey holds the refresh token, if the credential is refreshable.
	RefreshTokenKey = "refresh_token"

	// ExpiresAtKey holds the absolute access-token expiry as epoch milliseconds
	// in decimal form.
	ExpiresAtKey = "expires_at"

	// RefreshExpiresAtKey holds the refresh-token expiry in the same format,
	// when the token endpoint reports one.
	RefreshExpiresAtKey = "refresh_expires_at"
)

// Store is a key/value persistence abstraction for tokens and expiry metadata.
//
// A write to a key must be visible to a subsequent Get on the same Store.
// No ordering is guaranteed across keys.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)

	// Set stores value under key.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Clear removes every key owned by the store.
	Clear() error
}

// MemoryStore is a Store backed by a map that lives as long as the instance.
// Independent instances never share state.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

var _ Store = (*MemoryStore)(nil)
