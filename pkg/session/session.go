package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"authsession/pkg/auth"
	"authsession/pkg/authhttp"
	"authsession/pkg/credstore"
	"authsession/pkg/crosssync"
	"authsession/pkg/refresh"
)

// ErrNoStore is returned by operations that need the shared store when none
// is configured.
var ErrNoStore = auth.NewError(auth.KindUnauthenticated, "no credential store configured", nil)

// AutoRefreshConfig enables proactive renewal before the stored expiry.
type AutoRefreshConfig struct {
	// Buffer defaults to refresh.DefaultBuffer.
	Buffer time.Duration

	// MinInterval defaults to refresh.DefaultMinInterval.
	MinInterval time.Duration

	// OnFailure is called when a proactive refresh fails. Defaults to
	// Config.OnAuthFailure.
	OnFailure func(error)
}

// Config configures a Session.
type Config struct {
	// Schemes are consulted in order for headers and refresh.
	Schemes []auth.Scheme

	// Store is the shared credential store read by AccessToken and written
	// by SetTokens. Optional.
	Store credstore.Store

	HTTPClient authhttp.Doer

	// MaxRetries bounds retries after a 401. Zero means
	// authhttp.DefaultMaxRetries; a negative value disables retries.
	MaxRetries int

	// OnAuthFailure is called when a refresh triggered by a 401 fails.
	OnAuthFailure func(error)

	// ValidateToken checks a persisted access token during Rehydrate.
	ValidateToken func(ctx context.Context, token string) (bool, error)

	AutoRefresh *AutoRefreshConfig

	// Sync delivers changes made by other contexts sharing Store.
	Sync crosssync.Channel

	// SyncKey is the physical key observed on Sync. Defaults to the store's
	// access token key.
	SyncKey string

	// OnExternalLogout is called after another context removed the
	// access token.
	OnExternalLogout func()

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// State is what listeners receive on every change.
type State struct {
	Authenticated bool
	User          any
}

// Listener observes session state changes.
type Listener func(State)

type subscription struct {
	id string
	fn Listener
}

// Session ties schemes, store, refresh and synchronization together and is
// the entry point for authenticated requests.
type Session struct {
	cfg         Config
	logger      *slog.Logger
	coordinator *refresh.Coordinator
	executor    *authhttp.Executor

	scheduler    *refresh.Scheduler
	synchronizer *crosssync.Synchronizer

	mu        sync.Mutex
	user      any
	listeners []subscription
	started   bool
}

// New creates a Session from cfg.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	s := &Session{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	s.coordinator = refresh.NewCoordinator(cfg.Schemes, refresh.WithLogger(cfg.Logger))

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = authhttp.DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	s.executor = authhttp.NewExecutor(cfg.Schemes, s.coordinator,
		authhttp.WithHTTPClient(cfg.HTTPClient),
		authhttp.WithMaxRetries(maxRetries),
		authhttp.WithAuthFailureHandler(cfg.OnAuthFailure),
		authhttp.WithLogger(cfg.Logger),
	)

	if cfg.AutoRefresh != nil {
		opts := []refresh.SchedulerOption{
			refresh.WithClock(cfg.Clock),
			refresh.WithSchedulerLogger(cfg.Logger),
		}
		if cfg.AutoRefresh.Buffer > 0 {
			opts = append(opts, refresh.WithBuffer(cfg.AutoRefresh.Buffer))
		}
		if cfg.AutoRefresh.MinInterval > 0 {
			opts = append(opts, refresh.WithMinInterval(cfg.AutoRefresh.MinInterval))
		}
		if onFailure := cfg.AutoRefresh.OnFailure; onFailure != nil {
			opts = append(opts, refresh.WithFailureHandler(onFailure))
		} else if cfg.OnAuthFailure != nil {
			opts = append(opts, refresh.WithFailureHandler(cfg.OnAuthFailure))
		}
		s.scheduler = refresh.NewScheduler(opts...)
	}

	if cfg.Sync != nil {
		key := cfg.SyncKey
		if key == "" {
			key = physicalKey(cfg.Store, credstore.AccessTokenKey)
		}
		s.synchronizer = crosssync.NewSynchronizer(cfg.Sync, key, crosssync.Callbacks{
			OnExternalLogout:      s.handleExternalLogout,
			OnExternalTokenUpdate: s.handleExternalTokenUpdate,
		}, crosssync.WithSynchronizerLogger(cfg.Logger))
	}

	return s
}

// physicalKey maps a logical key to the name it has on shared storage.
func physicalKey(store credstore.Store, name string) string {
	if k, ok := store.(interface{ Key(string) string }); ok {
		return k.Key(name)
	}
	return name
}

// Do performs an authenticated request. See authhttp.Executor.Do.
func (s *Session) Do(ctx context.Context, target string, opts authhttp.RequestOptions) (*http.Response, error) {
	return s.executor.Do(ctx, target, opts)
}

// Executor returns the session's request executor.
func (s *Session) Executor() *authhttp.Executor {
	return s.executor
}

// HTTPClient returns an http.Client that authenticates through the session.
func (s *Session) HTTPClient(base http.RoundTripper) *http.Client {
	return authhttp.Client(s.executor, base)
}

// Refresh renews credentials through the session's coordinator.
func (s *Session) Refresh(ctx context.Context) error {
	return s.coordinator.Refresh(ctx)
}

// IsAuthenticated reports whether any scheme has a credential.
func (s *Session) IsAuthenticated() bool {
	for _, scheme := range s.cfg.Schemes {
		if scheme.IsAuthenticated() {
			return true
		}
	}
	return false
}

// AccessToken returns the access token from the shared store.
func (s *Session) AccessToken() (string, bool) {
	if s.cfg.Store == nil {
		return "", false
	}
	token, ok := s.cfg.Store.Get(credstore.AccessTokenKey)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ExpiresAt returns the stored access token expiry.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s.cfg.Store == nil {
		return time.Time{}, false
	}
	return auth.LoadExpiresAt(s.cfg.Store)
}

// SetTokens persists pair in the shared store and notifies listeners.
func (s *Session) SetTokens(pair auth.TokenPair) error {
	if s.cfg.Store == nil {
		return ErrNoStore
	}
	if err := auth.SaveTokens(s.cfg.Store, pair, s.cfg.Clock.Now(), false); err != nil {
		return err
	}
	s.logger.Debug("Session tokens updated", "tokens", pair)
	s.rescheduleIfStarted()
	s.notify()
	return nil
}

// Clear drops every scheme's credential, the shared store and the cached
// user, then notifies listeners. All parts are cleared even if one fails.
func (s *Session) Clear() error {
	err := s.clearState()
	s.notify()
	return err
}

func (s *Session) clearState() error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	var errs []error
	for _, scheme := range s.cfg.Schemes {
		if err := scheme.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Clear(); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	s.logger.Debug("Session cleared")
	return errors.Join(errs...)
}

// Subscribe registers listener for state changes and returns a function
// that removes it.
func (s *Session) Subscribe(listener Listener) (unsubscribe func()) {
	id := uuid.NewString()

	s.mu.Lock()
	s.listeners = append(s.listeners, subscription{id: id, fn: listener})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Rehydrate restores the session at startup. Without a persisted access
// token listeners are notified of the unauthenticated state. Otherwise the
// token is checked with ValidateToken, if configured, and all state is
// cleared when it is reported invalid. Listeners are notified either way.
// An error from the validator is returned without notifying.
func (s *Session) Rehydrate(ctx context.Context) error {
	token, ok := s.AccessToken()
	if !ok {
		s.notifyState(State{Authenticated: false, User: s.User()})
		return nil
	}

	if s.cfg.ValidateToken != nil {
		valid, err := s.cfg.ValidateToken(ctx, token)
		if err != nil {
			return err
		}
		if !valid {
			s.logger.Info("Persisted access token rejected, clearing session")
			if err := s.clearState(); err != nil {
				s.notify()
				return err
			}
		}
	}

	s.rescheduleIfStarted()
	s.notify()
	return nil
}

// User returns the cached user info.
func (s *Session) User() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser caches user info and notifies listeners.
func (s *Session) SetUser(user any) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.notify()
}

// State returns the current session state.
func (s *Session) State() State {
	return State{Authenticated: s.IsAuthenticated(), User: s.User()}
}

// Start begins proactive refresh and cross-context synchronization, when
// configured. Calling Start again does nothing.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if s.synchronizer != nil {
		if err := s.synchronizer.Start(); err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
			return err
		}
	}
	s.reschedule()
	return nil
}

// Close stops background work. The session stays usable for requests.
func (s *Session) Close() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.synchronizer != nil {
		s.synchronizer.Stop()
	}
}

func (s *Session) rescheduleIfStarted() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		s.reschedule()
	}
}

func (s *Session) reschedule() {
	if s.scheduler == nil || s.cfg.Store == nil {
		return
	}
	s.scheduler.Start(s.coordinator.Refresh, s.ExpiresAt)
}

func (s *Session) handleExternalLogout() {
	s.logger.Info("Logged out in another context")
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	if s.cfg.OnExternalLogout != nil {
		s.cfg.OnExternalLogout()
	}
	s.notify()
}

func (s *Session) handleExternalTokenUpdate(string) {
	s.logger.Debug("Tokens updated in another context")
	s.rescheduleIfStarted()
	s.notify()
}

func (s *Session) notify() {
	s.notifyState(s.State())
}

func (s *Session) notifyState(state State) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		listeners = append(listeners, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
