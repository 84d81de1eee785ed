package synchro

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/cache"
	"github.com/roach88/streamhub/internal/model"
)

type access struct{ id, token string }

func (a access) AccessID() string    { return a.id }
func (a access) AccessToken() string { return a.token }

func setup(t *testing.T) (*bus.Bus, *cache.Cache, *Synchro) {
	t.Helper()
	b := bus.New()
	c := cache.New(cache.WithPublisher(b))
	s := New(b, c)
	c.SetListener(s)
	s.Start()
	t.Cleanup(s.Stop)
	return b, c, s
}

func TestRegistration_FollowsCacheEntry(t *testing.T) {
	b, c, s := setup(t)
	assert.False(t, s.Listening("u1"))

	c.SetStreams("u1", cache.ContextLocal, []model.Stream{{ID: "A"}})
	assert.True(t, s.Listening("u1"))
	assert.Equal(t, 1, b.SubscriberCount("u1"))

	c.SetAccess("u1", access{"a1", "tok"})
	assert.Equal(t, 1, b.SubscriberCount("u1"), "registered once per user")

	c.UnsetUserData("u1")
	assert.False(t, s.Listening("u1"))
	assert.Equal(t, 0, b.SubscriberCount("u1"))
}

func TestRegisterIsIdempotent(t *testing.T) {
	b, _, s := setup(t)
	s.RegisterListenerForUserID("u1")
	s.RegisterListenerForUserID("u1")
	assert.Equal(t, 1, b.SubscriberCount("u1"))

	s.RemoveListenerForUserID("u1")
	s.RemoveListenerForUserID("u1")
	assert.Equal(t, 0, b.SubscriberCount("u1"))
}

func TestClusterDelivery_EvictsUserData(t *testing.T) {
	b, c, s := setup(t)
	c.SetStreams("u1", cache.ContextLocal, []model.Stream{{ID: "A"}})
	c.SetAccess("u1", access{"a1", "tok"})

	b.DeliverFromCluster("u1", bus.Message{Action: bus.ActionUnsetUserData, UserID: "u1"})

	_, ok := c.GetStreams("u1", cache.ContextLocal)
	assert.False(t, ok)
	_, ok = c.GetAccessByToken("u1", "tok")
	assert.False(t, ok)
	assert.False(t, s.Listening("u1"))
}

func TestClusterDelivery_EvictsAccess(t *testing.T) {
	b, c, s := setup(t)
	c.SetAccess("u1", access{"a1", "tok1"})
	c.SetAccess("u1", access{"a2", "tok2"})

	b.DeliverFromCluster("u1", bus.Message{Action: bus.ActionUnsetAccessLogic, UserID: "u1", AccessToken: "tok1"})

	_, ok := c.GetAccessByID("u1", "a1")
	assert.False(t, ok)
	_, ok = c.GetAccessByID("u1", "a2")
	assert.True(t, ok)
	assert.True(t, s.Listening("u1"))
}

func TestClusterDelivery_UnsetUserIsGlobal(t *testing.T) {
	b, c, _ := setup(t)
	c.SetUserID("bob", "u1")
	c.SetStreams("u1", cache.ContextLocal, []model.Stream{{ID: "A"}})

	b.DeliverFromCluster(bus.TopicUnsetUser, bus.Message{Action: bus.ActionUnsetUser, Username: "bob"})

	_, ok := c.GetUserID("bob")
	assert.False(t, ok)
	_, ok = c.GetStreams("u1", cache.ContextLocal)
	assert.False(t, ok)
}

func TestUnregisteredUser_IgnoresTopic(t *testing.T) {
	b, c, _ := setup(t)
	c.SetUserID("bob", "u1")

	b.DeliverFromCluster("u1", bus.Message{Action: bus.ActionUnsetUserData, UserID: "u1"})
	_, ok := c.GetUserID("bob")
	assert.True(t, ok, "username mappings only react to the global topic")
}

func TestStop(t *testing.T) {
	b, c, s := setup(t)
	c.SetStreams("u1", cache.ContextLocal, []model.Stream{{ID: "A"}})

	s.Stop()
	assert.Equal(t, 0, b.SubscriberCount("u1"))
	assert.Equal(t, 0, b.SubscriberCount(bus.TopicUnsetUser))

	s.Start()
	s.Start()
	assert.Equal(t, 1, b.SubscriberCount(bus.TopicUnsetUser))
}

func TestHandleMessage_UnknownAction(t *testing.T) {
	var logs bytes.Buffer
	c := cache.New()
	s := New(bus.New(), c, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	s.HandleMessage("u1", bus.Message{Action: "EXPLODE"})
	assert.Contains(t, logs.String(), "ignoring unknown cache invalidation")
}

func TestHandleMessage_UserIDFromTopic(t *testing.T) {
	b, c, _ := setup(t)
	c.SetStreams("u1", cache.ContextLocal, []model.Stream{{ID: "A"}})

	b.DeliverFromCluster("u1", bus.Message{Action: bus.ActionUnsetUserData})
	_, ok := c.GetStreams("u1", cache.ContextLocal)
	require.False(t, ok)
}
