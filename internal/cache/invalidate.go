package cache

import (
	"sort"

	"github.com/roach88/streamhub/internal/bus"
)

// UnsetUserData drops every stream tree and access of userID and publishes
// the invalidation.
func (c *Cache) UnsetUserData(userID string) {
	c.EvictUserData(userID)
	c.publish(userID, bus.Message{Action: bus.ActionUnsetUserData, UserID: userID})
}

// EvictUserData drops the data of userID without publishing.
func (c *Cache) EvictUserData(userID string) {
	c.mu.Lock()
	_, existed := c.users[userID]
	delete(c.users, userID)
	if existed && c.listener != nil {
		c.listener.UserEvicted(userID)
	}
	c.mu.Unlock()

	if existed {
		c.logger.Debug("user data evicted", "user", userID)
	}
}

// UnsetAccessLogic drops one access of userID and publishes the
// invalidation.
func (c *Cache) UnsetAccessLogic(userID string, ref AccessRef) {
	ref = c.EvictAccessLogic(userID, ref)
	c.publish(userID, bus.Message{
		Action:      bus.ActionUnsetAccessLogic,
		UserID:      userID,
		AccessID:    ref.ID,
		AccessToken: ref.Token,
	})
}

// EvictAccessLogic drops one access of userID without publishing. The
// access is removed from both indexes whichever half of ref matched. It
// returns ref completed with the other half when the access was cached.
func (c *Cache) EvictAccessLogic(userID string, ref AccessRef) AccessRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.users[userID]
	if !ok {
		return ref
	}
	if a, ok := e.byID[ref.ID]; ok && ref.ID != "" {
		if ref.Token == "" {
			ref.Token = a.AccessToken()
		}
		delete(e.byToken, a.AccessToken())
	}
	if a, ok := e.byToken[ref.Token]; ok && ref.Token != "" {
		if ref.ID == "" {
			ref.ID = a.AccessID()
		}
		delete(e.byID, a.AccessID())
	}
	delete(e.byID, ref.ID)
	delete(e.byToken, ref.Token)
	return ref
}

// UnsetUser drops the mapping of username and the data of the user it
// resolved to, and publishes the invalidation on the global topic.
func (c *Cache) UnsetUser(username string) {
	userID := c.EvictUser(username, "")
	c.publish(bus.TopicUnsetUser, bus.Message{
		Action:   bus.ActionUnsetUser,
		Username: username,
		UserID:   userID,
	})
}

// EvictUser drops the mapping of username and the data of the user it
// resolved to, or of userID when the mapping is not cached. It publishes
// nothing and returns the user id whose data was targeted.
func (c *Cache) EvictUser(username, userID string) string {
	c.mu.Lock()
	key := UsernameKey(username)
	if id, ok := c.userIDs[key]; ok {
		userID = id
	}
	delete(c.userIDs, key)
	c.mu.Unlock()

	if userID != "" {
		c.EvictUserData(userID)
	}
	return userID
}

// Clear drops everything and publishes a data invalidation for every user
// that had an entry and a username invalidation for every cached username.
// Intended for tests and administration.
func (c *Cache) Clear() {
	c.mu.Lock()
	usernames := c.userIDs
	evicted := c.dropAllLocked()
	notifyEvicted(c.listener, evicted)
	c.mu.Unlock()

	sort.Strings(evicted)
	for _, id := range evicted {
		c.publish(id, bus.Message{Action: bus.ActionUnsetUserData, UserID: id})
	}

	keys := make([]string, 0, len(usernames))
	for key := range usernames {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c.publish(bus.TopicUnsetUser, bus.Message{
			Action:   bus.ActionUnsetUser,
			Username: key,
			UserID:   usernames[key],
		})
	}
}
