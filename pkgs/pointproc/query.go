package pointproc

import (
	"context"
	"encoding/json"
	"fmt"
)

// QueryKind enumerates the allowed derived-value queries of a DATA point.
// Anything outside this set is rejected at parse time.
type QueryKind string

const (
	QueryCount         QueryKind = "count"
	QuerySum           QueryKind = "sum"
	QueryFilteredCount QueryKind = "filtered_count"
)

// Query is the parsed form of a DATA point's json_data descriptor.
type Query struct {
	Kind   QueryKind
	Entity string
	Field  string
	// Filter holds equality predicates (column -> value) for filtered queries.
	Filter map[string]interface{}
}

// DataQuerier runs a Query against the configuration store and returns a
// scalar. Implemented by the store; faked in tests.
type DataQuerier interface {
	RunQuery(ctx context.Context, q Query) (float64, error)
}

// queryDescriptor is the wire shape saved by the editor:
// {"app": ..., "model": ..., "action": "filter", "params": {...},
//  "return": "count"|"sum", "field": ...}
type queryDescriptor struct {
	App    string                 `json:"app"`
	Model  string                 `json:"model"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
	Return string                 `json:"return"`
	Field  string                 `json:"field"`
}

// ParseQuery validates a json_data descriptor into a tagged Query.
func ParseQuery(raw string) (Query, error) {
	var d queryDescriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Query{}, fmt.Errorf("malformed query descriptor: %s", err.Error())
	}
	if d.Model == "" {
		return Query{}, fmt.Errorf("query descriptor is missing a model")
	}

	q := Query{Entity: d.Model}
	switch d.Return {
	case "count":
		q.Kind = QueryCount
		if d.Action == "filter" {
			q.Kind = QueryFilteredCount
			q.Filter = d.Params
		}
	case "sum":
		q.Kind = QuerySum
		q.Field = d.Field
		if q.Field == "" {
			q.Field = "value"
		}
		if d.Action == "filter" {
			q.Filter = d.Params
		}
	default:
		return Query{}, fmt.Errorf("unsupported query return %q", d.Return)
	}
	return q, nil
}
