package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/streamhub/internal/querydoc"
	"github.com/roach88/streamhub/internal/streamquery"
)

// eventsFilter translates q to a find filter. Types and the time window's
// start depend on duration and running state; those are left to
// store.MatchEvent.
func eventsFilter(userID string, q streamquery.EventsGetQuery) bson.D {
	filter := bson.D{{Key: "userId", Value: userID}}

	if streams := querydoc.Compile(q.Streams); len(streams) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: bson.A{streams}})
	}

	switch {
	case q.HeadID != "":
		filter = append(filter, bson.E{Key: "headId", Value: q.HeadID})
	case q.ID != "" && q.IncludeHistory:
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "id", Value: q.ID}},
			bson.D{{Key: "headId", Value: q.ID}},
		}})
	case q.ID != "":
		filter = append(filter, bson.E{Key: "id", Value: q.ID})
	default:
		filter = append(filter, bson.E{Key: "headId", Value: bson.D{{Key: "$exists", Value: false}}})
	}

	switch {
	case q.DeletedSince != nil:
		filter = append(filter, bson.E{Key: "deleted", Value: bson.D{{Key: "$gte", Value: *q.DeletedSince}}})
	case !q.IncludeDeletions:
		filter = append(filter, bson.E{Key: "deleted", Value: bson.D{{Key: "$exists", Value: false}}})
	}

	switch q.EffectiveState() {
	case streamquery.StateDefault:
		filter = append(filter, bson.E{Key: "trashed", Value: bson.D{{Key: "$ne", Value: true}}})
	case streamquery.StateTrashed:
		filter = append(filter, bson.E{Key: "trashed", Value: true})
	}

	if q.ToTime != nil {
		filter = append(filter, bson.E{Key: "time", Value: bson.D{{Key: "$lte", Value: *q.ToTime}}})
	}
	if q.ModifiedSince != nil {
		filter = append(filter, bson.E{Key: "modified", Value: bson.D{{Key: "$gte", Value: *q.ModifiedSince}}})
	}
	if q.Running != nil {
		if *q.Running {
			filter = append(filter, bson.E{Key: "running", Value: true})
		} else {
			filter = append(filter, bson.E{Key: "running", Value: bson.D{{Key: "$ne", Value: true}}})
		}
	}
	return filter
}

// eventsSort orders by time, then id, matching store.SortAndPage.
func eventsSort(q streamquery.EventsGetQuery) bson.D {
	dir := -1
	if q.SortAscending {
		dir = 1
	}
	return bson.D{{Key: "time", Value: dir}, {Key: "id", Value: 1}}
}
