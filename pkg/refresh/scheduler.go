package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultBuffer is how long before expiry the scheduler fires.
	DefaultBuffer = 60 * time.Second

	// DefaultMinInterval is the minimum time between two refresh attempts.
	DefaultMinInterval = 30 * time.Second
)

// ExpiryFunc reports the current credential expiry, or false when unknown.
type ExpiryFunc func() (time.Time, bool)

// Scheduler renews a credential shortly before it expires. It keeps at most
// one pending timer.
type Scheduler struct {
	clock       clockwork.Clock
	buffer      time.Duration
	minInterval time.Duration
	onFailure   func(error)
	logger      *slog.Logger

	mu          sync.Mutex
	timer       clockwork.Timer
	firing      bool
	generation  uint64
	lastAttempt time.Time
	refreshFn   func(context.Context) error
	expiresAt   ExpiryFunc
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock sets the clock used for timers. Tests pass a fake clock.
func WithClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithBuffer sets how long before expiry the refresh fires.
func WithBuffer(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.buffer = d
	}
}

// WithMinInterval sets the minimum spacing between refresh attempts.
func WithMinInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.minInterval = d
	}
}

// WithFailureHandler sets a callback for failed refreshes. After a failure
// the scheduler stays stopped until Start is called again.
func WithFailureHandler(fn func(error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onFailure = fn
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:       clockwork.NewRealClock(),
		buffer:      DefaultBuffer,
		minInterval: DefaultMinInterval,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start cancels any pending timer and schedules refreshFn to run buffer
// before the expiry reported by expiresAt. A run never happens sooner than
// the minimum interval after the previous attempt. On success the scheduler
// re-arms itself from a fresh expiresAt; on failure it stops.
//
// If expiresAt reports no expiry nothing is scheduled.
func (s *Scheduler) Start(refreshFn func(context.Context) error, expiresAt ExpiryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.refreshFn = refreshFn
	s.expiresAt = expiresAt
	s.scheduleLocked()
}

// Stop cancels the pending timer. It is safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// IsRunning reports whether a refresh is pending or in progress.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil || s.firing
}

// cancelLocked invalidates any pending or in-progress run.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.firing = false
	s.generation++
}

func (s *Scheduler) scheduleLocked() {
	if s.expiresAt == nil || s.refreshFn == nil {
		return
	}
	expiresAt, ok := s.expiresAt()
	if !ok {
		s.logger.Debug("No credential expiry known, refresh not scheduled")
		return
	}

	now := s.clock.Now()
	delay := expiresAt.Sub(now) - s.buffer
	if delay < 0 {
		delay = 0
	}
	if !s.lastAttempt.IsZero() {
		if earliest := s.lastAttempt.Add(s.minInterval); now.Add(delay).Before(earliest) {
			delay = earliest.Sub(now)
		}
	}

	gen := s.generation
	s.timer = s.clock.AfterFunc(delay, func() { go s.fire(gen) })
	s.logger.Debug("Proactive refresh scheduled", "delay", delay, "expires_at", expiresAt)
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.firing = true
	s.lastAttempt = s.clock.Now()
	refreshFn := s.refreshFn
	s.mu.Unlock()

	err := refreshFn(context.Background())

	s.mu.Lock()
	if gen != s.generation {
		// Stopped or restarted while the refresh ran.
		s.mu.Unlock()
		return
	}
	s.firing = false
	if err == nil {
		s.scheduleLocked()
		s.mu.Unlock()
		return
	}
	onFailure := s.onFailure
	s.mu.Unlock()

	s.logger.Warn("Proactive refresh failed", "error", err)
	if onFailure != nil {
		onFailure(err)
	}
}
