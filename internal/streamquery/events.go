package streamquery

// Event states accepted by EventsGetQuery.State.
const (
	StateDefault = "default"
	StateTrashed = "trashed"
	StateAll     = "all"
)

// EventsGetQuery is the parameter set of an events.get request.
//
// ID and HeadID are mutually exclusive. HeadID selects the history of an
// event; ID selects one event (plus its history with IncludeHistory).
// Optional numeric parameters are pointers so that zero is distinguishable
// from absent.
type EventsGetQuery struct {
	ID               string      `json:"id,omitempty"`
	HeadID           string      `json:"headId,omitempty"`
	Streams          StreamQuery `json:"streams,omitempty"`
	Types            []string    `json:"types,omitempty"`
	FromTime         *float64    `json:"fromTime,omitempty"`
	ToTime           *float64    `json:"toTime,omitempty"`
	ModifiedSince    *float64    `json:"modifiedSince,omitempty"`
	State            string      `json:"state,omitempty"`
	Skip             int         `json:"skip,omitempty"`
	Limit            int         `json:"limit,omitempty"`
	SortAscending    bool        `json:"sortAscending,omitempty"`
	IncludeDeletions bool        `json:"includeDeletions,omitempty"`
	DeletedSince     *float64    `json:"deletedSince,omitempty"`
	IncludeHistory   bool        `json:"includeHistory,omitempty"`
	Running          *bool       `json:"running,omitempty"`
}

// Clone returns a deep copy of the query.
func (q EventsGetQuery) Clone() EventsGetQuery {
	c := q
	c.Streams = q.Streams.Clone()
	if q.Types != nil {
		c.Types = append([]string{}, q.Types...)
	}
	c.FromTime = cloneFloat(q.FromTime)
	c.ToTime = cloneFloat(q.ToTime)
	c.ModifiedSince = cloneFloat(q.ModifiedSince)
	c.DeletedSince = cloneFloat(q.DeletedSince)
	if q.Running != nil {
		r := *q.Running
		c.Running = &r
	}
	return c
}

// EffectiveState returns State, defaulting to StateDefault.
func (q EventsGetQuery) EffectiveState() string {
	if q.State == "" {
		return StateDefault
	}
	return q.State
}

// StreamsGetQuery is the parameter set of a streams.get request.
//
// ParentID selects the subtree to return; empty or Wildcard means the whole
// tree from its roots.
type StreamsGetQuery struct {
	ParentID              string   `json:"parentId,omitempty"`
	State                 string   `json:"state,omitempty"`
	IncludeDeletionsSince *float64 `json:"includeDeletionsSince,omitempty"`
}

// AllRoots reports whether the query asks for the whole tree.
func (q StreamsGetQuery) AllRoots() bool {
	return q.ParentID == "" || q.ParentID == Wildcard
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
