// Package cluster carries cache invalidations between processes.
//
// A Relay owns one broker connection per process. Outbound, it takes
// messages published on the local bus and sends them to the broker from a
// bounded queue, so publishing never waits on the network. Inbound, it holds
// a single subscription on the cache subject and hands every message to the
// local bus with DeliverFromCluster, which never forwards again.
//
// Delivery is at-most-once. While the broker is unreachable, messages in
// both directions are lost; nothing is replayed after reconnection.
package cluster

import "errors"

// DefaultSubject is the broker subject dedicated to cache traffic.
const DefaultSubject = "cache"

// ErrDisconnected is returned by brokers that are not connected.
var ErrDisconnected = errors.New("broker disconnected")

// Broker is a publish/subscribe connection to the cluster.
//
// Implementations must not deliver a process its own publications.
type Broker interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, fn func(data []byte)) (Subscription, error)
	Close() error
}

// Subscription is an active broker subscription.
type Subscription interface {
	Unsubscribe() error
}
