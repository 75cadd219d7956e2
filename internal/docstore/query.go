package docstore

import (
	"encoding/json"
	"fmt"
)

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value string
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
}

// NewQuery starts a query over collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field, value string) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	filters = append(filters, Filter{Field: field, Value: value})
	return Query{Collection: q.Collection, Filters: filters}
}

// Owner returns the value of the tenant-partition filter, if any.
func (q Query) Owner() (string, bool) {
	for _, f := range q.Filters {
		if f.Field == FieldOwner {
			return f.Value, true
		}
	}
	return "", false
}

// Matches reports whether a JSON body satisfies every filter.
func (q Query) Matches(body []byte) bool {
	if len(q.Filters) == 0 {
		return true
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	for _, f := range q.Filters {
		v, ok := fields[f.Field]
		if !ok || !equalValue(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValue(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case nil:
		return want == ""
	default:
		return fmt.Sprint(t) == want
	}
}
