package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/model"
	"github.com/smarty-bms/smarty/pkgs/script"
)

// snapshotTable loads every point's persisted value, for executions that
// run outside a cycle.
func (e *Engine) snapshotTable() (*pointTable, error) {
	points, err := e.store.AllPoints()
	if err != nil {
		return nil, err
	}
	table := newPointTable()
	for _, p := range points {
		table.addStored(p)
	}
	return table, nil
}

// ExecuteFBD runs one diagram program synchronously and persists its
// runtime values. Serialized against the scheduler loop.
func (e *Engine) ExecuteFBD(ctx context.Context, id int64) (map[string]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := e.store.GetFBDProgram(id)
	if err != nil {
		return nil, err
	}
	table, err := e.snapshotTable()
	if err != nil {
		return nil, err
	}

	flat, err := e.executeDiagram(&p, table)
	if err != nil {
		return nil, errors.Wrapf(err, "execute fbd program %d", id)
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateFBDRuntime(p.ID, string(encoded), p.RuntimeState); err != nil {
		return nil, err
	}
	e.flushWrites(table)
	return flat, nil
}

// ExecuteScript runs one script program synchronously. Execution metadata
// is persisted whether it succeeded or not.
func (e *Engine) ExecuteScript(ctx context.Context, id int64) (script.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return script.Result{}, err
	}

	p, err := e.store.GetScriptProgram(id)
	if err != nil {
		return script.Result{}, err
	}
	bindings, err := e.store.Bindings(id)
	if err != nil {
		return script.Result{}, err
	}
	table, err := e.snapshotTable()
	if err != nil {
		return script.Result{}, err
	}

	res := script.Execute(&p, bindings, table)
	if err := e.store.UpdateScriptExecution(id, res.Status, res.Log, time.Now()); err != nil {
		return res, err
	}
	if res.Status == model.ExecutionSuccess {
		e.flushWrites(table)
	}
	return res, nil
}

// ValidateScript compiles a script program without running it and records
// the outcome in its execution log.
func (e *Engine) ValidateScript(id int64) (script.ValidationResult, error) {
	p, err := e.store.GetScriptProgram(id)
	if err != nil {
		return script.ValidationResult{}, err
	}
	res := script.Validate(p.CodeText)
	if err := e.store.UpdateScriptExecution(id, p.LastExecutionStatus, res.LogLine(), time.Now()); err != nil {
		return res, err
	}
	return res, nil
}
