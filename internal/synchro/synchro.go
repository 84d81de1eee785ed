// Package synchro keeps a process's user cache in step with invalidations
// published on the bus, including those relayed from other processes.
//
// Each user is either unregistered or registered. A user becomes registered
// on the first cache write for them (the cache reports it through its
// Listener hook) and unregistered when their whole entry is evicted. While
// registered, the process listens on the bus topic named by the user id.
// Username invalidations use one global topic, listened to from Start until
// Stop.
package synchro

import (
	"log/slog"
	"sync"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/cache"
)

// Evictor applies remote invalidations. *cache.Cache implements it.
type Evictor interface {
	EvictUserData(userID string)
	EvictAccessLogic(userID string, ref cache.AccessRef) cache.AccessRef
	EvictUser(username, userID string) string
}

// Synchro dispatches bus messages to cache evictions.
//
// Thread-safety: all methods are safe for concurrent use.
type Synchro struct {
	bus    *bus.Bus
	cache  Evictor
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string]bus.Unsubscribe
	global    bus.Unsubscribe
}

// Option configures a Synchro.
type Option func(*Synchro)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchro) {
		s.logger = l
	}
}

// New creates a Synchro between b and c. Call Start to listen for username
// invalidations.
func New(b *bus.Bus, c Evictor, opts ...Option) *Synchro {
	s := &Synchro{
		bus:       b,
		cache:     c,
		logger:    slog.Default(),
		listeners: make(map[string]bus.Unsubscribe),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the global username listener. Calling it again has no
// effect.
func (s *Synchro) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global != nil {
		return
	}
	s.global = s.bus.Subscribe(bus.TopicUnsetUser, s.handle)
}

// Stop removes every listener.
func (s *Synchro) Stop() {
	s.mu.Lock()
	global := s.global
	listeners := s.listeners
	s.global = nil
	s.listeners = make(map[string]bus.Unsubscribe)
	s.mu.Unlock()

	if global != nil {
		global()
	}
	for _, unsub := range listeners {
		unsub()
	}
}

// RegisterListenerForUserID starts listening for invalidations of userID.
// It is idempotent.
func (s *Synchro) RegisterListenerForUserID(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners[userID]; ok {
		return
	}
	s.listeners[userID] = s.bus.Subscribe(userID, s.handle)
	s.logger.Debug("listening for user invalidations", "user", userID)
}

// RemoveListenerForUserID stops listening for invalidations of userID.
func (s *Synchro) RemoveListenerForUserID(userID string) {
	s.mu.Lock()
	unsub, ok := s.listeners[userID]
	delete(s.listeners, userID)
	s.mu.Unlock()

	if ok {
		unsub()
		s.logger.Debug("stopped listening for user invalidations", "user", userID)
	}
}

// Listening reports whether userID is registered.
func (s *Synchro) Listening(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.listeners[userID]
	return ok
}

// UserCached implements cache.Listener.
func (s *Synchro) UserCached(userID string) {
	s.RegisterListenerForUserID(userID)
}

// UserEvicted implements cache.Listener.
func (s *Synchro) UserEvicted(userID string) {
	s.RemoveListenerForUserID(userID)
}

func (s *Synchro) handle(topic string, msg bus.Message) {
	userID := msg.UserID
	if userID == "" && topic != bus.TopicUnsetUser {
		userID = topic
	}
	s.HandleMessage(userID, msg)
}

// HandleMessage applies one invalidation to the cache. Evictions publish
// nothing, so a message is applied once per process.
func (s *Synchro) HandleMessage(userID string, msg bus.Message) {
	switch msg.Action {
	case bus.ActionUnsetUserData:
		s.cache.EvictUserData(userID)
	case bus.ActionUnsetAccessLogic:
		s.cache.EvictAccessLogic(userID, cache.AccessRef{ID: msg.AccessID, Token: msg.AccessToken})
	case bus.ActionUnsetUser:
		s.cache.EvictUser(msg.Username, userID)
	default:
		s.logger.Warn("ignoring unknown cache invalidation", "action", msg.Action, "user", userID)
	}
}
