package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/model"
)

// CreateGroup inserts a point group at the end of the ordering.
func (s *Store) CreateGroup(g *model.PointGroup) error {
	if g.Slug == "" {
		g.Slug = model.Slugify(g.Name)
	}
	return s.inTx(func(tx *sql.Tx) error {
		if g.Order == 0 {
			if err := tx.QueryRow(`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM point_groups`).Scan(&g.Order); err != nil {
				return errors.Wrap(err, "next group order")
			}
		}
		res, err := tx.Exec(`INSERT INTO point_groups (name, slug, description, is_active, sort_order)
			VALUES (?, ?, ?, ?, ?)`, g.Name, g.Slug, g.Description, g.IsActive, g.Order)
		if err != nil {
			return errors.Wrap(err, "insert group")
		}
		g.ID, err = res.LastInsertId()
		return err
	})
}

// ListGroups returns all groups in their configured order.
func (s *Store) ListGroups() ([]model.PointGroup, error) {
	rows, err := s.db.Query(`SELECT id, name, slug, description, is_active, sort_order
		FROM point_groups ORDER BY sort_order, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list groups")
	}
	defer rows.Close()

	var out []model.PointGroup
	for rows.Next() {
		var g model.PointGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.IsActive, &g.Order); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const pointColumns = `id, name, slug, group_id, type, register_id, direction,
	is_active, frequency, data_type, bit_size, bit, is_single_bit, is_writeable,
	is_forced, forced_value, gain, offset, offset_before_gain, decimal_places,
	unit, range_min, range_max, scale_min, scale_max, threshold_high,
	threshold_low, pulse_width, may_be_faulty, faulty_value, read_value,
	write_value, json_data, error_status, error_message, last_updated,
	last_communication`

func scanPoint(row interface{ Scan(...interface{}) error }) (model.Point, error) {
	var p model.Point
	var registerID sql.NullInt64
	var rangeMin, rangeMax, scaleMin, scaleMax, thHigh, thLow, pulseWidth sql.NullFloat64
	var readValue, writeValue, jsonData sql.NullString
	var lastUpdated int64
	var lastComm sql.NullInt64

	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.GroupID, &p.Type, &registerID,
		&p.Direction, &p.IsActive, &p.Frequency, &p.DataType, &p.BitSize, &p.Bit,
		&p.IsSingleBit, &p.IsWriteable, &p.IsForced, &p.ForcedValue, &p.Gain,
		&p.Offset, &p.OffsetBeforeGain, &p.DecimalPlaces, &p.Unit,
		&rangeMin, &rangeMax, &scaleMin, &scaleMax, &thHigh, &thLow, &pulseWidth,
		&p.MayBeFaulty, &p.FaultyValue, &readValue, &writeValue, &jsonData,
		&p.ErrorStatus, &p.ErrorMessage, &lastUpdated, &lastComm)

	p.RegisterID = nullI64(registerID)
	p.RangeMin = nullF64(rangeMin)
	p.RangeMax = nullF64(rangeMax)
	p.ScaleMin = nullF64(scaleMin)
	p.ScaleMax = nullF64(scaleMax)
	p.ThresholdHigh = nullF64(thHigh)
	p.ThresholdLow = nullF64(thLow)
	p.PulseWidth = nullF64(pulseWidth)
	p.ReadValue = nullStr(readValue)
	p.WriteValue = nullStr(writeValue)
	p.JSONData = nullStr(jsonData)
	p.LastUpdated = unixTime(lastUpdated)
	p.LastCommunication = nullTime(lastComm)
	return p, err
}

// CreatePoint inserts a point and assigns its ID and slug.
func (s *Store) CreatePoint(p *model.Point) error {
	if p.Slug == "" {
		p.Slug = model.Slugify(p.Name)
	}
	if p.Gain == 0 {
		p.Gain = 1
	}
	res, err := s.db.Exec(`INSERT INTO points
		(name, slug, group_id, type, register_id, direction, is_active, frequency,
		 data_type, bit_size, bit, is_single_bit, is_writeable, is_forced,
		 forced_value, gain, offset, offset_before_gain, decimal_places, unit,
		 range_min, range_max, scale_min, scale_max, threshold_high, threshold_low,
		 pulse_width, may_be_faulty, faulty_value, read_value, write_value,
		 json_data, error_status, error_message, last_updated, last_communication)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Slug, p.GroupID, p.Type, i64Null(p.RegisterID), p.Direction,
		p.IsActive, p.Frequency, p.DataType, p.BitSize, p.Bit, p.IsSingleBit,
		p.IsWriteable, p.IsForced, p.ForcedValue, p.Gain, p.Offset,
		p.OffsetBeforeGain, p.DecimalPlaces, p.Unit,
		f64Null(p.RangeMin), f64Null(p.RangeMax), f64Null(p.ScaleMin), f64Null(p.ScaleMax),
		f64Null(p.ThresholdHigh), f64Null(p.ThresholdLow), f64Null(p.PulseWidth),
		p.MayBeFaulty, p.FaultyValue, strNull(p.ReadValue), strNull(p.WriteValue),
		strNull(p.JSONData), orStatus(p.ErrorStatus), p.ErrorMessage, now(),
		timeNull(p.LastCommunication))
	if err != nil {
		return errors.Wrap(err, "insert point")
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetPoint fetches one point by id.
func (s *Store) GetPoint(id int64) (model.Point, error) {
	p, err := scanPoint(s.db.QueryRow(`SELECT `+pointColumns+` FROM points WHERE id = ?`, id))
	return p, errors.Wrapf(err, "get point %d", id)
}

// ListPoints returns a group's points ordered by name.
func (s *Store) ListPoints(groupID int64) ([]model.Point, error) {
	return s.queryPoints(`SELECT `+pointColumns+` FROM points WHERE group_id = ? ORDER BY name, id`, groupID)
}

// ActivePoints returns every active point ordered by id; the refresh phase
// iterates this set.
func (s *Store) ActivePoints() ([]model.Point, error) {
	return s.queryPoints(`SELECT ` + pointColumns + ` FROM points WHERE is_active = 1 ORDER BY id`)
}

// AllPoints returns every point ordered by id.
func (s *Store) AllPoints() ([]model.Point, error) {
	return s.queryPoints(`SELECT ` + pointColumns + ` FROM points ORDER BY id`)
}

func (s *Store) queryPoints(query string, args ...interface{}) ([]model.Point, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query points")
	}
	defer rows.Close()

	var out []model.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PointRuntime is one point's runtime fields after a refresh pass.
type PointRuntime struct {
	ID          int64
	ReadValue   *string
	ErrorStatus model.ErrorStatus
}

// UpdatePointRuntimes bulk-persists changed read values in one transaction.
func (s *Store) UpdatePointRuntimes(updates []PointRuntime) error {
	if len(updates) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE points SET read_value = ?, error_status = ?,
			last_updated = ? WHERE id = ?`)
		if err != nil {
			return errors.Wrap(err, "prepare runtime update")
		}
		defer stmt.Close()

		ts := now()
		for _, u := range updates {
			if _, err := stmt.Exec(strNull(u.ReadValue), orStatus(u.ErrorStatus), ts, u.ID); err != nil {
				return errors.Wrapf(err, "update point %d", u.ID)
			}
		}
		return nil
	})
}

// UpdateWriteValues bulk-persists program output writes.
func (s *Store) UpdateWriteValues(writes map[int64]string) error {
	if len(writes) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE points SET write_value = ?, last_updated = ? WHERE id = ?`)
		if err != nil {
			return errors.Wrap(err, "prepare write update")
		}
		defer stmt.Close()

		ts := now()
		for id, value := range writes {
			if _, err := stmt.Exec(value, ts, id); err != nil {
				return errors.Wrapf(err, "write point %d", id)
			}
		}
		return nil
	})
}

// ForcePoint sets or clears the manual override.
func (s *Store) ForcePoint(id int64, forced bool, value string) error {
	_, err := s.db.Exec(`UPDATE points SET is_forced = ?, forced_value = ?, last_updated = ? WHERE id = ?`,
		forced, value, now(), id)
	return errors.Wrapf(err, "force point %d", id)
}
