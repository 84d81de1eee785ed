package store

import (
	"math"
	"sort"
	"strings"

	"github.com/roach88/streamhub/internal/model"
	"github.com/roach88/streamhub/internal/streamquery"
)

// MatchEvent reports whether e satisfies every condition of q except the
// streams query, which each backend evaluates with its own compiled form.
func MatchEvent(e model.Event, q streamquery.EventsGetQuery) bool {
	if !matchIdentity(e, q) {
		return false
	}

	if e.Deleted != nil {
		if q.DeletedSince != nil {
			return *e.Deleted >= *q.DeletedSince
		}
		return q.IncludeDeletions
	}
	if q.DeletedSince != nil {
		return false
	}

	switch q.EffectiveState() {
	case streamquery.StateDefault:
		if e.Trashed {
			return false
		}
	case streamquery.StateTrashed:
		if !e.Trashed {
			return false
		}
	}

	if len(q.Types) > 0 && !MatchType(e.Type, q.Types) {
		return false
	}
	if !matchTime(e, q.FromTime, q.ToTime) {
		return false
	}
	if q.ModifiedSince != nil && e.Modified < *q.ModifiedSince {
		return false
	}
	if q.Running != nil && e.Running != *q.Running {
		return false
	}
	return true
}

// matchIdentity applies the id, headId and history selectors.
func matchIdentity(e model.Event, q streamquery.EventsGetQuery) bool {
	switch {
	case q.HeadID != "":
		return e.HeadID == q.HeadID
	case q.ID != "":
		if e.ID == q.ID {
			return true
		}
		return q.IncludeHistory && e.HeadID == q.ID
	default:
		return !e.IsHistory()
	}
}

// MatchType reports whether eventType matches one of types. An entry of the
// form "class/*" matches every format of that class.
func MatchType(eventType string, types []string) bool {
	for _, t := range types {
		if t == eventType {
			return true
		}
		if class, ok := strings.CutSuffix(t, "/*"); ok && strings.HasPrefix(eventType, class+"/") {
			return true
		}
	}
	return false
}

// matchTime keeps events whose [time, end] span overlaps [from, to].
func matchTime(e model.Event, from, to *float64) bool {
	if to != nil && e.Time > *to {
		return false
	}
	if from != nil {
		end, ok := e.EndTime()
		if !ok {
			end = math.Inf(1)
		}
		if end < *from {
			return false
		}
	}
	return true
}

// SortAndPage orders events by time (newest first unless q.SortAscending),
// then applies q.Skip and q.Limit. Ties are broken by id so pages are stable.
func SortAndPage(events []model.Event, q streamquery.EventsGetQuery) []model.Event {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Time != b.Time {
			if q.SortAscending {
				return a.Time < b.Time
			}
			return a.Time > b.Time
		}
		return a.ID < b.ID
	})

	if q.Skip > 0 {
		if q.Skip >= len(events) {
			return []model.Event{}
		}
		events = events[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(events) {
		events = events[:q.Limit]
	}
	return events
}
