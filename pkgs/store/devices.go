package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/smarty-bms/smarty/pkgs/model"
)

const deviceColumns = `id, name, slug, description, protocol, is_online,
	ip_address, port_number, slave_id, baud_rate, parity, stop_bits,
	bacnet_device_instance, bacnet_network_number, last_communication`

func scanDevice(row interface{ Scan(...interface{}) error }) (model.Device, error) {
	var d model.Device
	var lastComm sql.NullInt64
	err := row.Scan(&d.ID, &d.Name, &d.Slug, &d.Description, &d.Protocol, &d.IsOnline,
		&d.IPAddress, &d.PortNumber, &d.SlaveID, &d.BaudRate, &d.Parity, &d.StopBits,
		&d.BACnetDeviceInstance, &d.BACnetNetworkNumber, &lastComm)
	d.LastCommunication = nullTime(lastComm)
	return d, err
}

// CreateDevice inserts a device, fills protocol defaults for unset network
// parameters and assigns ID and slug.
func (s *Store) CreateDevice(d *model.Device) error {
	if !model.ValidProtocol(d.Protocol) {
		return errors.Errorf("unknown protocol %q", d.Protocol)
	}
	if d.Slug == "" {
		d.Slug = model.Slugify(d.Name)
	}
	def := model.DefaultsFor(d.Protocol)
	if d.PortNumber == 0 {
		d.PortNumber = def.PortNumber
	}
	if d.BaudRate == 0 {
		d.BaudRate = def.BaudRate
	}
	if d.Parity == "" {
		d.Parity = def.Parity
	}
	if d.StopBits == 0 {
		d.StopBits = def.StopBits
	}

	res, err := s.db.Exec(`INSERT INTO devices
		(name, slug, description, protocol, is_online, ip_address, port_number,
		 slave_id, baud_rate, parity, stop_bits, bacnet_device_instance,
		 bacnet_network_number, last_communication)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.Slug, d.Description, d.Protocol, d.IsOnline, d.IPAddress,
		d.PortNumber, d.SlaveID, d.BaudRate, d.Parity, d.StopBits,
		d.BACnetDeviceInstance, d.BACnetNetworkNumber, timeNull(d.LastCommunication))
	if err != nil {
		return errors.Wrap(err, "insert device")
	}
	d.ID, err = res.LastInsertId()
	return err
}

// GetDevice fetches one device by id.
func (s *Store) GetDevice(id int64) (model.Device, error) {
	d, err := scanDevice(s.db.QueryRow(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	return d, errors.Wrapf(err, "get device %d", id)
}

// ListDevices returns every device ordered by name.
func (s *Store) ListDevices() ([]model.Device, error) {
	rows, err := s.db.Query(`SELECT ` + deviceColumns + ` FROM devices ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list devices")
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDeviceOnline updates the on-line flag and the communication timestamp.
func (s *Store) SetDeviceOnline(id int64, online bool, at time.Time) error {
	_, err := s.db.Exec(`UPDATE devices SET is_online = ?, last_communication = ? WHERE id = ?`,
		online, at.Unix(), id)
	return errors.Wrapf(err, "set device %d online", id)
}

const registerColumns = `id, device_id, name, address, read_function_code,
	write_function_code, signal_type, direction, data_type, current_value,
	is_single_bit, is_writeable, gain, offset, offset_before_gain, is_active,
	error_status, error_message, last_updated, last_communication`

func scanRegister(row interface{ Scan(...interface{}) error }) (model.Register, error) {
	var r model.Register
	var lastUpdated int64
	var lastComm sql.NullInt64
	err := row.Scan(&r.ID, &r.DeviceID, &r.Name, &r.Address, &r.ReadFunctionCode,
		&r.WriteFunctionCode, &r.SignalType, &r.Direction, &r.DataType, &r.CurrentValue,
		&r.IsSingleBit, &r.IsWriteable, &r.Gain, &r.Offset, &r.OffsetBeforeGain, &r.IsActive,
		&r.ErrorStatus, &r.ErrorMessage, &lastUpdated, &lastComm)
	r.LastUpdated = unixTime(lastUpdated)
	r.LastCommunication = nullTime(lastComm)
	return r, err
}

// CreateRegister inserts a register under its device.
func (s *Store) CreateRegister(r *model.Register) error {
	if r.Gain == 0 {
		r.Gain = 1
	}
	res, err := s.db.Exec(`INSERT INTO registers
		(device_id, name, address, read_function_code, write_function_code,
		 signal_type, direction, data_type, current_value, is_single_bit,
		 is_writeable, gain, offset, offset_before_gain, is_active,
		 error_status, error_message, last_updated, last_communication)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DeviceID, r.Name, r.Address, r.ReadFunctionCode, r.WriteFunctionCode,
		r.SignalType, r.Direction, r.DataType, r.CurrentValue, r.IsSingleBit,
		r.IsWriteable, r.Gain, r.Offset, r.OffsetBeforeGain, r.IsActive,
		orStatus(r.ErrorStatus), r.ErrorMessage, now(), timeNull(r.LastCommunication))
	if err != nil {
		return errors.Wrap(err, "insert register")
	}
	r.ID, err = res.LastInsertId()
	return err
}

func orStatus(st model.ErrorStatus) model.ErrorStatus {
	if st == "" {
		return model.StatusOK
	}
	return st
}

// ListRegisters returns a device's registers ordered by address.
func (s *Store) ListRegisters(deviceID int64) ([]model.Register, error) {
	rows, err := s.db.Query(`SELECT `+registerColumns+` FROM registers
		WHERE device_id = ? ORDER BY address, id`, deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "list registers of device %d", deviceID)
	}
	defer rows.Close()

	var out []model.Register
	for rows.Next() {
		r, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RegistersByID loads every register keyed by id, for the point-refresh
// phase.
func (s *Store) RegistersByID() (map[int64]model.Register, error) {
	rows, err := s.db.Query(`SELECT ` + registerColumns + ` FROM registers`)
	if err != nil {
		return nil, errors.Wrap(err, "load registers")
	}
	defer rows.Close()

	out := map[int64]model.Register{}
	for rows.Next() {
		r, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, rows.Err()
}

// UpdateRegisterValue is the field I/O write path: raw value plus status.
func (s *Store) UpdateRegisterValue(id int64, value string, status model.ErrorStatus, message string) error {
	_, err := s.db.Exec(`UPDATE registers SET current_value = ?, error_status = ?,
		error_message = ?, last_updated = ?, last_communication = ? WHERE id = ?`,
		value, status, message, now(), now(), id)
	return errors.Wrapf(err, "update register %d", id)
}
