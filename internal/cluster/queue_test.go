package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamhub/internal/bus"
)

func item(topic string) outbound {
	return outbound{topic: topic, msg: bus.Message{Action: bus.ActionUnsetUserData, UserID: topic}}
}

func TestOutboundQueue_FIFO(t *testing.T) {
	q := newOutboundQueue(10)
	require.True(t, q.Enqueue(item("a")))
	require.True(t, q.Enqueue(item("b")))
	assert.Equal(t, 2, q.Len())

	o, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", o.topic)
	o, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "b", o.topic)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestOutboundQueue_DropsWhenFull(t *testing.T) {
	q := newOutboundQueue(2)
	assert.True(t, q.Enqueue(item("a")))
	assert.True(t, q.Enqueue(item("b")))
	assert.False(t, q.Enqueue(item("c")))
	assert.Equal(t, 2, q.Len())
}

func TestOutboundQueue_SignalCoalesces(t *testing.T) {
	q := newOutboundQueue(10)
	q.Enqueue(item("a"))
	q.Enqueue(item("b"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestOutboundQueue_Close(t *testing.T) {
	q := newOutboundQueue(10)
	q.Enqueue(item("a"))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(item("b")))

	o, ok := q.TryDequeue()
	require.True(t, ok, "items queued before Close remain")
	assert.Equal(t, "a", o.topic)

	_, open := <-q.Wait()
	// The pending signal may be drained first; the channel ends closed.
	if open {
		_, open = <-q.Wait()
	}
	assert.False(t, open)
}

func TestEnvelope(t *testing.T) {
	msg := bus.Message{Action: bus.ActionUnsetAccessLogic, UserID: "u1", AccessID: "a1", AccessToken: "tok"}
	data, err := Encode("u1", msg)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"eventName":"u1","payload":{"action":"UNSET_ACCESS_LOGIC","userId":"u1","accessId":"a1","accessToken":"tok"}}`,
		string(data))

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "u1", env.EventName)
	assert.Equal(t, msg, env.Payload)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"no event name", `{"payload":{"action":"UNSET_USER_DATA","userId":"u"}}`},
		{"unknown action", `{"eventName":"u","payload":{"action":"EXPLODE","userId":"u"}}`},
		{"missing user", `{"eventName":"u","payload":{"action":"UNSET_USER_DATA"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
