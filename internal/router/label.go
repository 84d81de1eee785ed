package router

import (
	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamid"
)

// Label returns events from storeID with their ids and stream ids
// namespaced for clients. Local events are returned unchanged.
func Label(storeID string, events []model.Event) []model.Event {
	if storeID == streamid.LocalStoreID {
		return events
	}
	out := make([]model.Event, len(events))
	for i, e := range events {
		out[i] = LabelEvent(storeID, e)
	}
	return out
}

// LabelEvent namespaces a single event from storeID.
func LabelEvent(storeID string, e model.Event) model.Event {
	if storeID == streamid.LocalStoreID {
		return e
	}
	c := e.Clone()
	c.ID = streamid.Encode(storeID, e.ID)
	if c.HeadID != "" {
		c.HeadID = streamid.Encode(storeID, e.HeadID)
	}
	for i, id := range c.StreamIDs {
		c.StreamIDs[i] = streamid.Encode(storeID, id)
	}
	return c
}

// LabelStreams namespaces a stream tree from storeID. Roots are attached to
// the store root pseudo-stream.
func LabelStreams(storeID string, streams []model.Stream) []model.Stream {
	if storeID == streamid.LocalStoreID {
		return streams
	}
	return streamid.AddStoreIDToTree(storeID, streams)
}
