package crosssync

import (
	"sync"

	"github.com/google/uuid"

	"authsession/pkg/credstore"
)

// Hub connects in-process contexts that share storage, such as several
// sessions over one credstore.SessionBacking.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*MemoryChannel
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]*MemoryChannel)}
}

// Channel returns a new endpoint on the hub. Events published on an
// endpoint reach every other endpoint but not itself.
func (h *Hub) Channel() *MemoryChannel {
	c := &MemoryChannel{
		id:       uuid.NewString(),
		hub:      h,
		watchers: make(map[string]func(Event)),
	}
	h.mu.Lock()
	h.endpoints[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) broadcast(from string, ev Event) {
	h.mu.RLock()
	targets := make([]*MemoryChannel, 0, len(h.endpoints))
	for id, c := range h.endpoints {
		if id != from {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(ev)
	}
}

// MemoryChannel is one context's endpoint on a Hub.
type MemoryChannel struct {
	id  string
	hub *Hub

	mu       sync.RWMutex
	watchers map[string]func(Event)
}

// ID returns the endpoint's identifier.
func (c *MemoryChannel) ID() string {
	return c.id
}

// Watch implements Channel.
func (c *MemoryChannel) Watch(fn func(Event)) (func(), error) {
	id := uuid.NewString()
	c.mu.Lock()
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}, nil
}

// Publish sends ev to the other endpoints on the hub.
func (c *MemoryChannel) Publish(ev Event) {
	c.hub.broadcast(c.id, ev)
}

// Close detaches the endpoint from the hub.
func (c *MemoryChannel) Close() {
	c.hub.mu.Lock()
	delete(c.hub.endpoints, c.id)
	c.hub.mu.Unlock()
}

func (c *MemoryChannel) deliver(ev Event) {
	c.mu.RLock()
	fns := make([]func(Event), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// PublishingStore wraps a prefixed store and publishes every change on a
// MemoryChannel, so that other endpoints observe it.
type PublishingStore struct {
	store   *credstore.PrefixedStore
	channel *MemoryChannel
}

// NewPublishingStore creates a PublishingStore.
func NewPublishingStore(store *credstore.PrefixedStore, channel *MemoryChannel) *PublishingStore {
	return &PublishingStore{store: store, channel: channel}
}

// Get implements credstore.Store.
func (s *PublishingStore) Get(key string) (string, bool) {
	return s.store.Get(key)
}

// Set implements credstore.Store.
func (s *PublishingStore) Set(key, value string) error {
	if err := s.store.Set(key, value); err != nil {
		return err
	}
	s.channel.Publish(Event{Key: s.store.Key(key), Value: value})
	return nil
}

// Remove implements credstore.Store.
func (s *PublishingStore) Remove(key string) error {
	_, existed := s.store.Get(key)
	if err := s.store.Remove(key); err != nil {
		return err
	}
	if existed {
		s.channel.Publish(Event{Key: s.store.Key(key), Removed: true})
	}
	return nil
}

// Clear implements credstore.Store. One removal event is published per key.
func (s *PublishingStore) Clear() error {
	keys, err := s.store.Names()
	if err != nil {
		return err
	}
	if err := s.store.Clear(); err != nil {
		return err
	}
	for _, key := range keys {
		s.channel.Publish(Event{Key: s.store.Key(key), Removed: true})
	}
	return nil
}

// Key returns the physical key for name.
func (s *PublishingStore) Key(name string) string {
	return s.store.Key(name)
}
