package model

// Stream is one node of a user's streams tree.
//
// ParentID is nil for root streams. Children is only populated when a store
// returns a tree; stores persist streams flat.
type Stream struct {
	ID         string         `json:"id" bson:"id"`
	Name       string         `json:"name" bson:"name"`
	ParentID   *string        `json:"parentId" bson:"parentId"`
	ClientData map[string]any `json:"clientData,omitempty" bson:"clientData,omitempty"`
	Trashed    bool           `json:"trashed,omitempty" bson:"trashed,omitempty"`
	Created    float64        `json:"created,omitempty" bson:"created,omitempty"`
	CreatedBy  string         `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	Modified   float64        `json:"modified,omitempty" bson:"modified,omitempty"`
	ModifiedBy string         `json:"modifiedBy,omitempty" bson:"modifiedBy,omitempty"`
	Deleted    *float64       `json:"deleted,omitempty" bson:"deleted,omitempty"`
	Children   []Stream       `json:"children,omitempty" bson:"-"`
}

// IsRoot reports whether the stream has no parent.
func (s Stream) IsRoot() bool {
	return s.ParentID == nil
}

// Clone returns a deep copy of the stream and its children.
func (s Stream) Clone() Stream {
	c := s
	if s.ParentID != nil {
		p := *s.ParentID
		c.ParentID = &p
	}
	if s.Deleted != nil {
		d := *s.Deleted
		c.Deleted = &d
	}
	if s.ClientData != nil {
		c.ClientData = make(map[string]any, len(s.ClientData))
		for k, v := range s.ClientData {
			c.ClientData[k] = v
		}
	}
	c.Children = CloneStreams(s.Children)
	return c
}

// CloneStreams deep-copies a list of streams.
func CloneStreams(streams []Stream) []Stream {
	if streams == nil {
		return nil
	}
	out := make([]Stream, len(streams))
	for i, s := range streams {
		out[i] = s.Clone()
	}
	return out
}

// FindStream looks up a stream by id anywhere in a tree.
func FindStream(tree []Stream, id string) (Stream, bool) {
	for _, s := range tree {
		if s.ID == id {
			return s, true
		}
		if found, ok := FindStream(s.Children, id); ok {
			return found, true
		}
	}
	return Stream{}, false
}

// Event is a timestamped record attached to one or more streams.
//
// HeadID is set on history entries and points at the current version of the
// event. Running events have no end yet; Duration is ignored for them.
type Event struct {
	ID          string         `json:"id" bson:"id"`
	HeadID      string         `json:"headId,omitempty" bson:"headId,omitempty"`
	StreamIDs   []string       `json:"streamIds" bson:"streamIds"`
	Type        string         `json:"type" bson:"type"`
	Time        float64        `json:"time" bson:"time"`
	Duration    *float64       `json:"duration,omitempty" bson:"duration,omitempty"`
	Running     bool           `json:"running,omitempty" bson:"running,omitempty"`
	Content     any            `json:"content,omitempty" bson:"content,omitempty"`
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	ClientData  map[string]any `json:"clientData,omitempty" bson:"clientData,omitempty"`
	Trashed     bool           `json:"trashed,omitempty" bson:"trashed,omitempty"`
	Created     float64        `json:"created,omitempty" bson:"created,omitempty"`
	CreatedBy   string         `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	Modified    float64        `json:"modified,omitempty" bson:"modified,omitempty"`
	ModifiedBy  string         `json:"modifiedBy,omitempty" bson:"modifiedBy,omitempty"`
	Deleted     *float64       `json:"deleted,omitempty" bson:"deleted,omitempty"`
}

// EndTime returns the time the event ends. Running events never end.
func (e Event) EndTime() (float64, bool) {
	if e.Running {
		return 0, false
	}
	if e.Duration == nil {
		return e.Time, true
	}
	return e.Time + *e.Duration, true
}

// IsHistory reports whether the event is a past version of another event.
func (e Event) IsHistory() bool {
	return e.HeadID != ""
}

// Clone returns a copy of the event that shares no slices or maps with e.
// Content is copied by reference.
func (e Event) Clone() Event {
	c := e
	c.StreamIDs = append([]string(nil), e.StreamIDs...)
	if e.Duration != nil {
		d := *e.Duration
		c.Duration = &d
	}
	if e.Deleted != nil {
		d := *e.Deleted
		c.Deleted = &d
	}
	if e.ClientData != nil {
		c.ClientData = make(map[string]any, len(e.ClientData))
		for k, v := range e.ClientData {
			c.ClientData[k] = v
		}
	}
	return c
}
