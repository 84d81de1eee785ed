package sqlitestore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/streamhub/internal/querytext"
)

// matchFuncName is the SQL function evaluating a compiled streams query
// against an event's tag column: streams_match(expr, stream_tags).
const matchFuncName = "streams_match"

// maxCachedExprs bounds the parsed-expression cache. Queries repeat heavily
// within a request, rarely across users.
const maxCachedExprs = 256

var exprCache = struct {
	sync.Mutex
	m map[string]*querytext.Expr
}{m: make(map[string]*querytext.Expr)}

func parseCached(expr string) (*querytext.Expr, error) {
	exprCache.Lock()
	defer exprCache.Unlock()

	if e, ok := exprCache.m[expr]; ok {
		return e, nil
	}
	e, err := querytext.Parse(expr)
	if err != nil {
		return nil, err
	}
	if len(exprCache.m) >= maxCachedExprs {
		exprCache.m = make(map[string]*querytext.Expr)
	}
	exprCache.m[expr] = e
	return e, nil
}

// streamsMatch implements streams_match. It is registered on every
// connection of the driver.
func streamsMatch(expr, tags string) (bool, error) {
	e, err := parseCached(expr)
	if err != nil {
		return false, err
	}
	var list []string
	if err := json.Unmarshal([]byte(tags), &list); err != nil {
		return false, fmt.Errorf("decode stream tags: %w", err)
	}
	return e.Match(list), nil
}

// encodeTags returns the stream_tags column value for streamIDs.
func encodeTags(streamIDs []string) (string, error) {
	tags := make([]string, 0, len(streamIDs)+1)
	tags = append(tags, streamIDs...)
	tags = append(tags, querytext.AllEventsTag)
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
