package querydoc

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Match reports whether a document whose streamIds array holds tags
// satisfies filter.
//
// Supported: $and, $or, $nor, and on StreamIDsField either a string
// (array contains) or an operator document with $eq, $ne, $in, $nin, $all.
// Conditions on other fields, and other operators, are reported as errors.
func Match(filter bson.D, tags []string) (bool, error) {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return matchDoc(filter, set)
}

func matchDoc(doc bson.D, tags map[string]struct{}) (bool, error) {
	for _, e := range doc {
		ok, err := matchElem(e, tags)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElem(e bson.E, tags map[string]struct{}) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		docs, err := toDocList(e.Value)
		if err != nil {
			return false, fmt.Errorf("%s: %w", e.Key, err)
		}
		return matchLogical(e.Key, docs, tags)
	case StreamIDsField:
		return matchField(e.Value, tags)
	default:
		return false, fmt.Errorf("unsupported filter key %q", e.Key)
	}
}

func matchLogical(op string, docs []bson.D, tags map[string]struct{}) (bool, error) {
	for _, d := range docs {
		ok, err := matchDoc(d, tags)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func matchField(v any, tags map[string]struct{}) (bool, error) {
	if s, ok := v.(string); ok {
		return has(tags, s), nil
	}
	ops, err := toDoc(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", StreamIDsField, err)
	}
	for _, op := range ops {
		ok, err := matchOperator(op, tags)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(op bson.E, tags map[string]struct{}) (bool, error) {
	switch op.Key {
	case "$eq", "$ne":
		s, ok := op.Value.(string)
		if !ok {
			return false, fmt.Errorf("%s expects a string, got %T", op.Key, op.Value)
		}
		return has(tags, s) == (op.Key == "$eq"), nil
	case "$in", "$nin", "$all":
		values, err := toStrings(op.Value)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op.Key, err)
		}
		matched := 0
		for _, s := range values {
			if has(tags, s) {
				matched++
			}
		}
		switch op.Key {
		case "$in":
			return matched > 0, nil
		case "$nin":
			return matched == 0, nil
		default:
			return matched == len(values), nil
		}
	default:
		return false, fmt.Errorf("unsupported operator %q", op.Key)
	}
}

func has(tags map[string]struct{}, s string) bool {
	_, ok := tags[s]
	return ok
}

func toDoc(v any) (bson.D, error) {
	switch d := v.(type) {
	case bson.D:
		return d, nil
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a document, got %T", v)
	}
}

func toDocList(v any) ([]bson.D, error) {
	var items []any
	switch l := v.(type) {
	case bson.A:
		items = l
	case []any:
		items = l
	case []bson.D:
		return l, nil
	default:
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	docs := make([]bson.D, len(items))
	for i, item := range items {
		d, err := toDoc(item)
		if err != nil {
			return nil, err
		}
		docs[i] = d
	}
	return docs, nil
}

func toStrings(v any) ([]string, error) {
	var items []any
	switch l := v.(type) {
	case bson.A:
		items = l
	case []any:
		items = l
	case []string:
		return l, nil
	default:
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected strings, got %T", item)
		}
		out[i] = s
	}
	return out, nil
}
