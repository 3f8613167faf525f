package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/model"
)

// EnsureAlarm raises an alarm unless an active one with the same (point,
// name) pair already exists. Returns true when a new row was inserted.
func (s *Store) EnsureAlarm(pointID *int64, name, description string, severity model.Severity) (bool, error) {
	created := false
	err := s.inTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(`SELECT id FROM alarms WHERE name = ? AND is_active = 1
			AND point_id IS ?`, name, i64Null(pointID)).Scan(&existing)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return errors.Wrap(err, "probe active alarm")
		}
		_, err = tx.Exec(`INSERT INTO alarms (point_id, name, description, severity, start_time, is_active)
			VALUES (?, ?, ?, ?, ?, 1)`, i64Null(pointID), name, description, severity, now())
		if err != nil {
			return errors.Wrap(err, "insert alarm")
		}
		created = true
		return nil
	})
	return created, err
}

// CloseAlarm deactivates all active alarms with the given (point, name) pair.
func (s *Store) CloseAlarm(pointID *int64, name string) error {
	_, err := s.db.Exec(`UPDATE alarms SET is_active = 0, end_time = ?
		WHERE name = ? AND is_active = 1 AND point_id IS ?`, now(), name, i64Null(pointID))
	return errors.Wrapf(err, "close alarm %q", name)
}

// AcknowledgeAlarm records the acknowledging actor.
func (s *Store) AcknowledgeAlarm(id int64, by string) error {
	res, err := s.db.Exec(`UPDATE alarms SET is_acknowledged = 1, acknowledged_by = ?,
		acknowledged_time = ? WHERE id = ? AND is_acknowledged = 0`, by, now(), id)
	if err != nil {
		return errors.Wrapf(err, "acknowledge alarm %d", id)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return errors.Errorf("alarm %d not found or already acknowledged", id)
	}
	return err
}

const alarmColumns = `id, point_id, name, description, severity, start_time,
	end_time, is_active, is_acknowledged, acknowledged_by, acknowledged_time,
	is_cleared, cleared_by, cleared_time`

func scanAlarm(row interface{ Scan(...interface{}) error }) (model.Alarm, error) {
	var a model.Alarm
	var pointID sql.NullInt64
	var startTime int64
	var endTime, ackTime, clearedTime sql.NullInt64
	err := row.Scan(&a.ID, &pointID, &a.Name, &a.Description, &a.Severity, &startTime,
		&endTime, &a.IsActive, &a.IsAcknowledged, &a.AcknowledgedBy, &ackTime,
		&a.IsCleared, &a.ClearedBy, &clearedTime)
	a.PointID = nullI64(pointID)
	a.StartTime = unixTime(startTime)
	a.EndTime = nullTime(endTime)
	a.AcknowledgedTime = nullTime(ackTime)
	a.ClearedTime = nullTime(clearedTime)
	return a, err
}

// ListAlarms returns alarms newest first; activeOnly restricts to open ones.
func (s *Store) ListAlarms(activeOnly bool) ([]model.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY start_time DESC, id DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "list alarms")
	}
	defer rows.Close()

	var out []model.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertEvent appends one event row.
func (s *Store) InsertEvent(e *model.Event) error {
	ts := e.Timestamp.Unix()
	if e.Timestamp.IsZero() {
		ts = now()
	}
	res, err := s.db.Exec(`INSERT INTO events (point_id, event_type, description, severity, timestamp)
		VALUES (?, ?, ?, ?, ?)`, i64Null(e.PointID), e.EventType, e.Description, e.Severity, ts)
	if err != nil {
		return errors.Wrap(err, "insert event")
	}
	e.ID, err = res.LastInsertId()
	return err
}

// InsertLog appends one history sample.
func (s *Store) InsertLog(l *model.Log) error {
	ts := l.Timestamp.Unix()
	if l.Timestamp.IsZero() {
		ts = now()
	}
	res, err := s.db.Exec(`INSERT INTO logs (point_id, source, value, message, timestamp)
		VALUES (?, ?, ?, ?, ?)`, i64Null(l.PointID), l.Source, l.Value, l.Message, ts)
	if err != nil {
		return errors.Wrap(err, "insert log")
	}
	l.ID, err = res.LastInsertId()
	return err
}

// ListLogs returns a point's history newest first, capped at limit.
func (s *Store) ListLogs(pointID int64, limit int) ([]model.Log, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT id, point_id, source, value, message, timestamp
		FROM logs WHERE point_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, pointID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list logs of point %d", pointID)
	}
	defer rows.Close()

	var out []model.Log
	for rows.Next() {
		var l model.Log
		var pid sql.NullInt64
		var ts int64
		if err := rows.Scan(&l.ID, &pid, &l.Source, &l.Value, &l.Message, &ts); err != nil {
			return nil, err
		}
		l.PointID = nullI64(pid)
		l.Timestamp = unixTime(ts)
		out = append(out, l)
	}
	return out, rows.Err()
}

// EnsureFault records a hardware condition against a device unless an
// unresolved one with the same description already exists.
func (s *Store) EnsureFault(deviceID int64, pointID *int64, description string) (bool, error) {
	created := false
	err := s.inTx(func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(`SELECT id FROM faults WHERE device_id = ? AND description = ?
			AND is_resolved = 0`, deviceID, description).Scan(&existing)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return errors.Wrap(err, "probe fault")
		}
		_, err = tx.Exec(`INSERT INTO faults (device_id, point_id, description, timestamp)
			VALUES (?, ?, ?, ?)`, deviceID, i64Null(pointID), description, now())
		if err != nil {
			return errors.Wrap(err, "insert fault")
		}
		created = true
		return nil
	})
	return created, err
}

// ResolveFaults closes every unresolved fault of a device.
func (s *Store) ResolveFaults(deviceID int64) error {
	_, err := s.db.Exec(`UPDATE faults SET is_resolved = 1, resolved_at = ?
		WHERE device_id = ? AND is_resolved = 0`, now(), deviceID)
	return errors.Wrapf(err, "resolve faults of device %d", deviceID)
}

// OpenFaults returns every unresolved fault.
func (s *Store) OpenFaults() ([]model.Fault, error) {
	rows, err := s.db.Query(`SELECT id, device_id, point_id, description, is_resolved,
		resolved_at, timestamp FROM faults WHERE is_resolved = 0 ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list faults")
	}
	defer rows.Close()

	var out []model.Fault
	for rows.Next() {
		var f model.Fault
		var pid, resolvedAt sql.NullInt64
		var ts int64
		if err := rows.Scan(&f.ID, &f.DeviceID, &pid, &f.Description, &f.IsResolved, &resolvedAt, &ts); err != nil {
			return nil, err
		}
		f.PointID = nullI64(pid)
		f.ResolvedAt = nullTime(resolvedAt)
		f.Timestamp = unixTime(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}
