package bus

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(_ string, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) Forward(topic string, msg Message) {
	r.handle(topic, msg)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestPublish_DeliversSynchronously(t *testing.T) {
	b := New()
	var got recorder
	b.Subscribe("u1", got.handle)

	msg := Message{Action: ActionUnsetUserData, UserID: "u1"}
	b.Publish("u1", msg)

	require.Equal(t, 1, got.count())
	assert.Equal(t, msg, got.msgs[0])
}

func TestPublish_ExactTopicsOnly(t *testing.T) {
	b := New()
	var u1, u2 recorder
	b.Subscribe("u1", u1.handle)
	b.Subscribe("u2", u2.handle)

	b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})

	assert.Equal(t, 1, u1.count())
	assert.Equal(t, 0, u2.count())
}

func TestPublish_Forwards(t *testing.T) {
	b := New()
	var fwd recorder
	b.SetForwarder(&fwd)

	b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})
	assert.Equal(t, 1, fwd.count())
}

func TestDeliverFromCluster_NeverForwards(t *testing.T) {
	b := New()
	var fwd, local recorder
	b.SetForwarder(&fwd)
	b.Subscribe("u1", local.handle)

	b.DeliverFromCluster("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})

	assert.Equal(t, 1, local.count())
	assert.Equal(t, 0, fwd.count())
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	var first, second recorder
	unsub := b.Subscribe("u1", first.handle)
	b.Subscribe("u1", second.handle)
	require.Equal(t, 2, b.SubscriberCount("u1"))

	unsub()
	unsub()
	assert.Equal(t, 1, b.SubscriberCount("u1"))

	b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())
}

func TestHandlerMayUnsubscribeItself(t *testing.T) {
	b := New()
	calls := 0
	var unsub Unsubscribe
	unsub = b.Subscribe("u1", func(string, Message) {
		calls++
		unsub()
	})

	b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})
	b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.SubscriberCount("u1"))
}

func TestHandlerPanicIsContained(t *testing.T) {
	var logs bytes.Buffer
	b := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	var after recorder
	b.Subscribe("u1", func(string, Message) { panic("boom") })
	b.Subscribe("u1", after.handle)

	assert.NotPanics(t, func() {
		b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})
	})
	assert.Equal(t, 1, after.count())
	assert.Contains(t, logs.String(), "bus handler panicked")
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe("u1", func(string, Message) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			b.Publish("u1", Message{Action: ActionUnsetUserData, UserID: "u1"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.SubscriberCount("u1"))
}

func TestMessageValid(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{Message{Action: ActionUnsetUserData, UserID: "u"}, true},
		{Message{Action: ActionUnsetUserData}, false},
		{Message{Action: ActionUnsetAccessLogic, UserID: "u", AccessID: "a"}, true},
		{Message{Action: ActionUnsetAccessLogic, UserID: "u", AccessToken: "t"}, true},
		{Message{Action: ActionUnsetAccessLogic, UserID: "u"}, false},
		{Message{Action: ActionUnsetUser, Username: "bob"}, true},
		{Message{Action: ActionUnsetUser}, false},
		{Message{Action: "NOPE", UserID: "u"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.msg.Valid(), "%+v", tt.msg)
	}
}
