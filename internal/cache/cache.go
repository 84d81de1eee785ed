// Package cache holds per-user, permission-relevant data that is expensive
// to recompute: stream trees, access logic, and username to user id
// resolution.
//
// The cache is never authoritative. Every local Unset* call publishes an
// invalidation so other components and other processes drop the same data;
// the Evict* variants apply invalidations that arrived from elsewhere and
// publish nothing.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/model"
)

// ContextLocal is the streams context of a user's own stores.
const ContextLocal = "local"

// AccessLogic is a cached, permission-bearing access object. Entries are
// indexed by both id and token.
type AccessLogic interface {
	AccessID() string
	AccessToken() string
}

// AccessRef identifies an access by id, token, or both.
type AccessRef struct {
	ID    string
	Token string
}

// Publisher receives the invalidations of local Unset* calls. *bus.Bus
// implements it.
type Publisher interface {
	Publish(topic string, msg bus.Message)
}

// Listener is told when a user's entry appears and disappears, so that it
// can track per-user invalidation subscriptions. It is called with the cache
// lock held, in the order entries are created and dropped, and must not call
// back into the cache.
type Listener interface {
	UserCached(userID string)
	UserEvicted(userID string)
}

// Stats summarizes cache use.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Users     int
	Usernames int
}

type entry struct {
	streams map[string][]model.Stream
	byToken map[string]AccessLogic
	byID    map[string]AccessLogic
}

func newEntry() *entry {
	return &entry{
		streams: make(map[string][]model.Stream),
		byToken: make(map[string]AccessLogic),
		byID:    make(map[string]AccessLogic),
	}
}

// Cache is the per-process user cache.
//
// Thread-safety: all methods are safe for concurrent use. Listener callbacks
// run under the lock; Publisher callbacks run after it is released.
type Cache struct {
	mu       sync.Mutex
	enabled  bool
	users    map[string]*entry
	userIDs  map[string]string
	pub      Publisher
	listener Listener
	logger   *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithPublisher sets where local invalidations are published.
func WithPublisher(p Publisher) Option {
	return func(c *Cache) {
		c.pub = p
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithEnabled sets the initial enabled state. Default: enabled.
func WithEnabled(enabled bool) Option {
	return func(c *Cache) {
		c.enabled = enabled
	}
}

// New creates an empty, enabled cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		enabled: true,
		users:   make(map[string]*entry),
		userIDs: make(map[string]string),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetListener registers the entry lifecycle listener.
func (c *Cache) SetListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// UsernameKey is the normalized form usernames are keyed by.
func UsernameKey(username string) string {
	return cases.Fold().String(norm.NFC.String(username))
}

// Enabled reports whether the cache serves and stores data.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled turns caching on or off at runtime. Disabling drops every
// entry locally; nothing is published since other processes hold their own
// valid copies.
func (c *Cache) SetEnabled(enabled bool) {
	c.mu.Lock()
	if c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	if !enabled {
		notifyEvicted(c.listener, c.dropAllLocked())
	}
	c.mu.Unlock()

	c.logger.Info("user cache toggled", "enabled", enabled)
}

// Stats returns hit and miss counters and the current entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Users:     len(c.users),
		Usernames: len(c.userIDs),
	}
}

func (c *Cache) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

// GetStreams returns a copy of the cached streams tree of userID in ctx.
func (c *Cache) GetStreams(userID, ctx string) ([]model.Stream, bool) {
	c.mu.Lock()
	var tree []model.Stream
	ok := false
	if e, found := c.users[userID]; c.enabled && found {
		tree, ok = e.streams[ctx]
	}
	if ok {
		tree = model.CloneStreams(tree)
	}
	c.mu.Unlock()

	c.record(ok)
	return tree, ok
}

// SetStreams caches the streams tree of userID in ctx.
func (c *Cache) SetStreams(userID, ctx string, tree []model.Stream) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	e, created := c.entryLocked(userID)
	e.streams[ctx] = model.CloneStreams(tree)
	if created && c.listener != nil {
		c.listener.UserCached(userID)
	}
	c.mu.Unlock()
}

// GetAccessByToken returns the cached access of userID with token.
func (c *Cache) GetAccessByToken(userID, token string) (AccessLogic, bool) {
	return c.getAccess(userID, func(e *entry) (AccessLogic, bool) {
		a, ok := e.byToken[token]
		return a, ok
	})
}

// GetAccessByID returns the cached access of userID with id.
func (c *Cache) GetAccessByID(userID, id string) (AccessLogic, bool) {
	return c.getAccess(userID, func(e *entry) (AccessLogic, bool) {
		a, ok := e.byID[id]
		return a, ok
	})
}

func (c *Cache) getAccess(userID string, lookup func(*entry) (AccessLogic, bool)) (AccessLogic, bool) {
	c.mu.Lock()
	var a AccessLogic
	ok := false
	if e, found := c.users[userID]; c.enabled && found {
		a, ok = lookup(e)
	}
	c.mu.Unlock()

	c.record(ok)
	return a, ok
}

// SetAccess caches access under its id and its token.
func (c *Cache) SetAccess(userID string, access AccessLogic) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	e, created := c.entryLocked(userID)
	if id := access.AccessID(); id != "" {
		e.byID[id] = access
	}
	if token := access.AccessToken(); token != "" {
		e.byToken[token] = access
	}
	if created && c.listener != nil {
		c.listener.UserCached(userID)
	}
	c.mu.Unlock()
}

// GetUserID resolves a username.
func (c *Cache) GetUserID(username string) (string, bool) {
	c.mu.Lock()
	id, ok := "", false
	if c.enabled {
		id, ok = c.userIDs[UsernameKey(username)]
	}
	c.mu.Unlock()

	c.record(ok)
	return id, ok
}

// SetUserID caches the user id of username.
func (c *Cache) SetUserID(username, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.userIDs[UsernameKey(username)] = userID
}

// entryLocked returns the entry of userID, creating it if needed.
func (c *Cache) entryLocked(userID string) (*entry, bool) {
	if e, ok := c.users[userID]; ok {
		return e, false
	}
	e := newEntry()
	c.users[userID] = e
	return e, true
}

func (c *Cache) dropAllLocked() []string {
	evicted := make([]string, 0, len(c.users))
	for id := range c.users {
		evicted = append(evicted, id)
	}
	c.users = make(map[string]*entry)
	c.userIDs = make(map[string]string)
	return evicted
}

func (c *Cache) publish(topic string, msg bus.Message) {
	if c.pub != nil {
		c.pub.Publish(topic, msg)
	}
}

func notifyEvicted(l Listener, userIDs []string) {
	if l == nil {
		return
	}
	for _, id := range userIDs {
		l.UserEvicted(id)
	}
}
