package engine

import (
	"github.com/smarty-bms/smarty/pkgs/coerce"
	"github.com/smarty-bms/smarty/pkgs/model"
)

// pointTable is the per-cycle snapshot FBD and script programs read from.
// Reads see the values resolved by the refresh phase; writes accumulate as
// intents and are flushed by the scheduler at the phase boundary.
type pointTable struct {
	points map[int64]model.Point
	values map[int64]interface{}
	writes map[int64]string
}

func newPointTable() *pointTable {
	return &pointTable{
		points: map[int64]model.Point{},
		values: map[int64]interface{}{},
		writes: map[int64]string{},
	}
}

func (t *pointTable) add(p model.Point, value interface{}) {
	t.points[p.ID] = p
	t.values[p.ID] = value
}

// addStored seeds the table from a point's persisted read value, for manual
// executions that run outside a cycle.
func (t *pointTable) addStored(p model.Point) {
	var value interface{}
	if p.ReadValue != nil {
		value = coerce.ByType(*p.ReadValue, p.DataType)
	} else {
		value = coerce.ByType(nil, p.DataType)
	}
	t.add(p, value)
}

func (t *pointTable) ReadPoint(id int64) (interface{}, bool) {
	v, ok := t.values[id]
	return v, ok
}

func (t *pointTable) WritePoint(id int64, value interface{}) {
	t.writes[id] = coerce.String(value)
}

// takeWrites drains the accumulated write intents.
func (t *pointTable) takeWrites() map[int64]string {
	if len(t.writes) == 0 {
		return nil
	}
	out := t.writes
	t.writes = map[int64]string{}
	return out
}
