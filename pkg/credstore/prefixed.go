package credstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultPrefix is the key namespace used when a persistent store is created
// with an empty prefix.
const DefaultPrefix = "authsession."

// Backing is shared storage that several prefixed stores may sit on top of.
// It plays the role a browser's web storage plays for origin-scoped data:
// other, unrelated data may live next to ours.
type Backing interface {
	Read(key string) (string, bool)
	Write(key, value string) error
	Erase(key string) error
	// Keys returns every key that starts with prefix.
	Keys(prefix string) ([]string, error)
}

// Kind distinguishes the retention of a persistent store.
type Kind string

const (
	// KindSession data lives as long as the backing does (the process).
	KindSession Kind = "session"

	// KindDurable data survives restarts and is shared between processes.
	KindDurable Kind = "durable"
)

// PrefixedStore is a Store that namespaces every key with a fixed prefix on a
// shared Backing. Clear removes only keys under its own prefix.
type PrefixedStore struct {
	backing Backing
	prefix  string
	kind    Kind
}

// NewSessionStore creates a session-scoped store over an in-memory backing.
func NewSessionStore(backing *SessionBacking, prefix string) *PrefixedStore {
	return newPrefixedStore(backing, prefix, KindSession)
}

// NewDurableStore creates a durable store over an on-disk backing.
func NewDurableStore(backing *DiskBacking, prefix string) *PrefixedStore {
	return newPrefixedStore(backing, prefix, KindDurable)
}

func newPrefixedStore(backing Backing, prefix string, kind Kind) *PrefixedStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PrefixedStore{backing: backing, prefix: prefix, kind: kind}
}

// Key returns the physical key used on the backing for name.
func (s *PrefixedStore) Key(name string) string {
	return s.prefix + name
}

// Prefix returns the namespace prefix.
func (s *PrefixedStore) Prefix() string {
	return s.prefix
}

// Kind reports whether the store is session-scoped or durable.
func (s *PrefixedStore) Kind() Kind {
	return s.kind
}

// Get implements Store.
func (s *PrefixedStore) Get(key string) (string, bool) {
	return s.backing.Read(s.Key(key))
}

// Set implements Store.
func (s *PrefixedStore) Set(key, value string) error {
	if err := s.backing.Write(s.Key(key), value); err != nil {
		return fmt.Errorf("failed to write %s to %s store: %w", key, s.kind, err)
	}
	return nil
}

// Remove implements Store.
func (s *PrefixedStore) Remove(key string) error {
	if err := s.backing.Erase(s.Key(key)); err != nil {
		return fmt.Errorf("failed to remove %s from %s store: %w", key, s.kind, err)
	}
	return nil
}

// Names returns the logical names of every key under the prefix.
func (s *PrefixedStore) Names() ([]string, error) {
	keys, err := s.backing.Keys(s.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s store keys: %w", s.kind, err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, s.prefix))
	}
	return names, nil
}

// Clear implements Store. Keys outside the prefix are left untouched.
func (s *PrefixedStore) Clear() error {
	keys, err := s.backing.Keys(s.prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s store keys: %w", s.kind, err)
	}
	for _, key := range keys {
		if err := s.backing.Erase(key); err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}
	return nil
}

var _ Store = (*PrefixedStore)(nil)

// SessionBacking is an in-memory Backing shared by reference between the
// stores of one process.
type SessionBacking struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionBacking creates an empty session backing.
func NewSessionBacking() *SessionBacking {
	return &SessionBacking{values: make(map[string]string)}
}

// Read implements Backing.
func (b *SessionBacking) Read(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Write implements Backing.
func (b *SessionBacking) Write(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

// Erase implements Backing.
func (b *SessionBacking) Erase(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

// Keys implements Backing.
func (b *SessionBacking) Keys(prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key := range b.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
