package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/model"
)

const fbdColumns = `id, name, description, is_active, diagram_json, bindings,
	runtime_values, runtime_state, created_at, updated_at`

func scanFBD(row interface{ Scan(...interface{}) error }) (model.FBDProgram, error) {
	var p model.FBDProgram
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.DiagramJSON,
		&p.Bindings, &p.RuntimeValues, &p.RuntimeState, &createdAt, &updatedAt)
	p.CreatedAt = unixTime(createdAt)
	p.UpdatedAt = unixTime(updatedAt)
	return p, err
}

// CreateFBDProgram inserts a diagram program.
func (s *Store) CreateFBDProgram(p *model.FBDProgram) error {
	res, err := s.db.Exec(`INSERT INTO fbd_programs
		(name, description, is_active, diagram_json, bindings, runtime_values, runtime_state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.IsActive, p.DiagramJSON, p.Bindings, p.RuntimeValues, p.RuntimeState)
	if err != nil {
		return errors.Wrap(err, "insert fbd program")
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetFBDProgram fetches one program by id.
func (s *Store) GetFBDProgram(id int64) (model.FBDProgram, error) {
	p, err := scanFBD(s.db.QueryRow(`SELECT `+fbdColumns+` FROM fbd_programs WHERE id = ?`, id))
	return p, errors.Wrapf(err, "get fbd program %d", id)
}

// ListFBDPrograms returns every program ordered by name.
func (s *Store) ListFBDPrograms() ([]model.FBDProgram, error) {
	return s.queryFBD(`SELECT ` + fbdColumns + ` FROM fbd_programs ORDER BY name, id`)
}

// ActiveFBDPrograms returns the programs the FBD phase evaluates.
func (s *Store) ActiveFBDPrograms() ([]model.FBDProgram, error) {
	return s.queryFBD(`SELECT ` + fbdColumns + ` FROM fbd_programs WHERE is_active = 1 ORDER BY id`)
}

func (s *Store) queryFBD(query string, args ...interface{}) ([]model.FBDProgram, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query fbd programs")
	}
	defer rows.Close()

	var out []model.FBDProgram
	for rows.Next() {
		p, err := scanFBD(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateFBDRuntime persists one program's runtime maps after a cycle.
func (s *Store) UpdateFBDRuntime(id int64, values, state string) error {
	_, err := s.db.Exec(`UPDATE fbd_programs SET runtime_values = ?, runtime_state = ?,
		updated_at = ? WHERE id = ?`, values, state, now(), id)
	return errors.Wrapf(err, "update fbd runtime %d", id)
}

const scriptColumns = `id, name, description, code_text, is_active,
	last_execution_status, last_execution_time, last_execution_log,
	created_at, updated_at`

func scanScript(row interface{ Scan(...interface{}) error }) (model.ScriptProgram, error) {
	var p model.ScriptProgram
	var execTime sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CodeText, &p.IsActive,
		&p.LastExecutionStatus, &execTime, &p.LastExecutionLog, &createdAt, &updatedAt)
	p.LastExecutionTime = nullTime(execTime)
	p.CreatedAt = unixTime(createdAt)
	p.UpdatedAt = unixTime(updatedAt)
	return p, err
}

// CreateScriptProgram inserts a script program.
func (s *Store) CreateScriptProgram(p *model.ScriptProgram) error {
	res, err := s.db.Exec(`INSERT INTO script_programs
		(name, description, code_text, is_active, last_execution_status, last_execution_log)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.CodeText, p.IsActive, p.LastExecutionStatus, p.LastExecutionLog)
	if err != nil {
		return errors.Wrap(err, "insert script program")
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetScriptProgram fetches one program by id.
func (s *Store) GetScriptProgram(id int64) (model.ScriptProgram, error) {
	p, err := scanScript(s.db.QueryRow(`SELECT `+scriptColumns+` FROM script_programs WHERE id = ?`, id))
	return p, errors.Wrapf(err, "get script program %d", id)
}

// ListScriptPrograms returns every program ordered by name.
func (s *Store) ListScriptPrograms() ([]model.ScriptProgram, error) {
	return s.queryScripts(`SELECT ` + scriptColumns + ` FROM script_programs ORDER BY name, id`)
}

// ActiveScriptPrograms returns the programs the script phase runs.
func (s *Store) ActiveScriptPrograms() ([]model.ScriptProgram, error) {
	return s.queryScripts(`SELECT ` + scriptColumns + ` FROM script_programs WHERE is_active = 1 ORDER BY id`)
}

func (s *Store) queryScripts(query string, args ...interface{}) ([]model.ScriptProgram, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query script programs")
	}
	defer rows.Close()

	var out []model.ScriptProgram
	for rows.Next() {
		p, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateScriptExecution persists the outcome of one run.
func (s *Store) UpdateScriptExecution(id int64, status, log string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE script_programs SET last_execution_status = ?,
		last_execution_log = ?, last_execution_time = ?, updated_at = ? WHERE id = ?`,
		status, log, at.Unix(), now(), id)
	return errors.Wrapf(err, "update script execution %d", id)
}

// SetBindings replaces a script's bindings in one transaction.
func (s *Store) SetBindings(scriptID int64, bindings []model.ScriptBinding) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM script_bindings WHERE script_id = ?`, scriptID); err != nil {
			return errors.Wrap(err, "clear bindings")
		}
		for i := range bindings {
			b := &bindings[i]
			b.ScriptID = scriptID
			res, err := tx.Exec(`INSERT INTO script_bindings (script_id, variable_name, point_id, direction)
				VALUES (?, ?, ?, ?)`, b.ScriptID, b.VariableName, b.PointID, b.Direction)
			if err != nil {
				return errors.Wrapf(err, "insert binding %s", b.VariableName)
			}
			if b.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Bindings returns a script's bindings in declaration order.
func (s *Store) Bindings(scriptID int64) ([]model.ScriptBinding, error) {
	rows, err := s.db.Query(`SELECT id, script_id, variable_name, point_id, direction
		FROM script_bindings WHERE script_id = ? ORDER BY id`, scriptID)
	if err != nil {
		return nil, errors.Wrapf(err, "bindings of script %d", scriptID)
	}
	defer rows.Close()

	var out []model.ScriptBinding
	for rows.Next() {
		var b model.ScriptBinding
		if err := rows.Scan(&b.ID, &b.ScriptID, &b.VariableName, &b.PointID, &b.Direction); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
