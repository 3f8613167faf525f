package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/pointproc"
)

// queryTables whitelists the entities a DATA point may aggregate over, and
// per entity the columns usable as sum fields or filter predicates. The
// whitelist is the entire injection surface: nothing outside it reaches SQL.
var queryTables = map[string]map[string]bool{
	"alarm": {
		"id": true, "point_id": true, "name": true, "severity": true,
		"is_active": true, "is_acknowledged": true, "is_cleared": true,
	},
	"event": {
		"id": true, "point_id": true, "event_type": true, "severity": true,
	},
	"log": {
		"id": true, "point_id": true, "source": true, "value": true,
	},
	"point": {
		"id": true, "group_id": true, "type": true, "data_type": true,
		"is_active": true, "is_forced": true, "error_status": true, "read_value": true,
	},
	"device": {
		"id": true, "protocol": true, "is_online": true,
	},
	"fault": {
		"id": true, "device_id": true, "is_resolved": true,
	},
}

var queryTableNames = map[string]string{
	"alarm":  "alarms",
	"event":  "events",
	"log":    "logs",
	"point":  "points",
	"device": "devices",
	"fault":  "faults",
}

// RunQuery evaluates a DATA point's derived-value query. Entities and
// columns resolve through the whitelist; filter values are always bound
// parameters.
func (s *Store) RunQuery(ctx context.Context, q pointproc.Query) (float64, error) {
	table, ok := queryTableNames[strings.ToLower(q.Entity)]
	if !ok {
		return 0, errors.Errorf("unknown query entity %q", q.Entity)
	}
	columns := queryTables[strings.ToLower(q.Entity)]

	var sel string
	switch q.Kind {
	case pointproc.QueryCount, pointproc.QueryFilteredCount:
		sel = "COUNT(*)"
	case pointproc.QuerySum:
		field := strings.ToLower(q.Field)
		if !columns[field] {
			return 0, errors.Errorf("entity %q has no summable column %q", q.Entity, q.Field)
		}
		sel = fmt.Sprintf("COALESCE(SUM(%s), 0)", field)
	default:
		return 0, errors.Errorf("unsupported query kind %q", q.Kind)
	}

	// sort filter keys so generated SQL is deterministic
	keys := make([]string, 0, len(q.Filter))
	for column := range q.Filter {
		keys = append(keys, column)
	}
	sort.Strings(keys)

	where := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, column := range keys {
		c := strings.ToLower(column)
		if !columns[c] {
			return 0, errors.Errorf("entity %q has no filterable column %q", q.Entity, column)
		}
		where = append(where, c+" = ?")
		args = append(args, q.Filter[column])
	}

	query := "SELECT " + sel + " FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var result float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&result); err != nil {
		return 0, errors.Wrap(err, "run data query")
	}
	return result, nil
}
