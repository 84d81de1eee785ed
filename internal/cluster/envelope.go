package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/streamhub/internal/bus"
)

// Envelope is the broker wire form of a bus message. EventName is the bus
// topic the message was published on.
type Envelope struct {
	EventName string      `json:"eventName"`
	Payload   bus.Message `json:"payload"`
}

// Encode serializes a bus message for the broker.
func Encode(topic string, msg bus.Message) ([]byte, error) {
	data, err := json.Marshal(Envelope{EventName: topic, Payload: msg})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses and checks a broker payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventName == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing eventName")
	}
	if !env.Payload.Valid() {
		return Envelope{}, fmt.Errorf("decode envelope: invalid %q payload", env.Payload.Action)
	}
	return env, nil
}
