package crosssync

import (
	"log/slog"
	"sync"
)

// Callbacks receive the changes a Synchronizer observes.
type Callbacks struct {
	// OnExternalLogout is called when the observed key is removed.
	OnExternalLogout func()

	// OnExternalTokenUpdate is called with the new raw value of the key.
	OnExternalTokenUpdate func(value string)
}

// Synchronizer watches one key on a Channel and turns its changes into
// logout and token-update callbacks.
type Synchronizer struct {
	channel   Channel
	key       string
	callbacks Callbacks
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stop    func()
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithSynchronizerLogger sets a custom logger.
func WithSynchronizerLogger(logger *slog.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// NewSynchronizer creates a stopped Synchronizer for key on channel.
func NewSynchronizer(channel Channel, key string, callbacks Callbacks, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		channel:   channel,
		key:       key,
		callbacks: callbacks,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins observing. Calling Start while running does nothing.
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	stop, err := s.channel.Watch(s.handle)
	if err != nil {
		return err
	}
	s.stop = stop
	s.running = true
	s.logger.Debug("Cross-context synchronization started", "key", s.key)
	return nil
}

// Stop detaches the observer. It is safe to call when not running.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.stop()
	s.stop = nil
	s.running = false
}

// IsRunning reports whether the synchronizer is observing.
func (s *Synchronizer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Synchronizer) handle(ev Event) {
	if ev.Key != s.key {
		return
	}
	if ev.Removed {
		s.logger.Debug("External logout observed", "key", s.key)
		if s.callbacks.OnExternalLogout != nil {
			s.callbacks.OnExternalLogout()
		}
		return
	}
	s.logger.Debug("External token update observed", "key", s.key)
	if s.callbacks.OnExternalTokenUpdate != nil {
		s.callbacks.OnExternalTokenUpdate(ev.Value)
	}
}
