package store

// initSchema creates all tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT DEFAULT '',
		protocol TEXT NOT NULL,
		is_online INTEGER DEFAULT 0,
		ip_address TEXT DEFAULT '',
		port_number INTEGER DEFAULT 0,
		slave_id INTEGER DEFAULT 1,
		baud_rate INTEGER DEFAULT 0,
		parity TEXT DEFAULT 'None',
		stop_bits INTEGER DEFAULT 1,
		bacnet_device_instance INTEGER DEFAULT 0,
		bacnet_network_number INTEGER DEFAULT 0,
		last_communication INTEGER
	);

	CREATE TABLE IF NOT EXISTS registers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		address INTEGER NOT NULL,
		read_function_code TEXT DEFAULT '',
		write_function_code TEXT DEFAULT '',
		signal_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		data_type TEXT NOT NULL,
		current_value TEXT DEFAULT '',
		is_single_bit INTEGER DEFAULT 0,
		is_writeable INTEGER DEFAULT 0,
		gain REAL DEFAULT 1,
		offset REAL DEFAULT 0,
		offset_before_gain INTEGER DEFAULT 0,
		is_active INTEGER DEFAULT 1,
		error_status TEXT DEFAULT 'OK',
		error_message TEXT DEFAULT '',
		last_updated INTEGER DEFAULT 0,
		last_communication INTEGER,

		FOREIGN KEY(device_id) REFERENCES devices(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_registers_device ON registers(device_id);

	CREATE TABLE IF NOT EXISTS point_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT DEFAULT '',
		is_active INTEGER DEFAULT 1,
		sort_order INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		register_id INTEGER,
		direction TEXT DEFAULT 'Input',
		is_active INTEGER DEFAULT 1,
		frequency REAL DEFAULT 0,
		data_type TEXT NOT NULL,
		bit_size INTEGER DEFAULT 16,
		bit INTEGER DEFAULT 0,
		is_single_bit INTEGER DEFAULT 0,
		is_writeable INTEGER DEFAULT 0,
		is_forced INTEGER DEFAULT 0,
		forced_value TEXT DEFAULT '',
		gain REAL DEFAULT 1,
		offset REAL DEFAULT 0,
		offset_before_gain INTEGER DEFAULT 0,
		decimal_places INTEGER DEFAULT 2,
		unit TEXT DEFAULT '',
		range_min REAL,
		range_max REAL,
		scale_min REAL,
		scale_max REAL,
		threshold_high REAL,
		threshold_low REAL,
		pulse_width REAL,
		may_be_faulty INTEGER DEFAULT 0,
		faulty_value INTEGER DEFAULT 0,
		read_value TEXT,
		write_value TEXT,
		json_data TEXT,
		error_status TEXT DEFAULT 'OK',
		error_message TEXT DEFAULT '',
		last_updated INTEGER DEFAULT 0,
		last_communication INTEGER,

		UNIQUE(group_id, slug),
		FOREIGN KEY(group_id) REFERENCES point_groups(id) ON DELETE CASCADE,
		FOREIGN KEY(register_id) REFERENCES registers(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_points_group ON points(group_id);
	CREATE INDEX IF NOT EXISTS idx_points_active ON points(is_active);

	CREATE TABLE IF NOT EXISTS fbd_programs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		is_active INTEGER DEFAULT 1,
		diagram_json TEXT DEFAULT '',
		bindings TEXT DEFAULT '',
		runtime_values TEXT DEFAULT '',
		runtime_state TEXT DEFAULT '',
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS script_programs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		code_text TEXT DEFAULT '',
		is_active INTEGER DEFAULT 1,
		last_execution_status TEXT DEFAULT '',
		last_execution_time INTEGER,
		last_execution_log TEXT DEFAULT '',
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS script_bindings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		script_id INTEGER NOT NULL,
		variable_name TEXT NOT NULL,
		point_id INTEGER NOT NULL,
		direction TEXT NOT NULL,

		UNIQUE(script_id, variable_name),
		FOREIGN KEY(script_id) REFERENCES script_programs(id) ON DELETE CASCADE,
		FOREIGN KEY(point_id) REFERENCES points(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS alarms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		point_id INTEGER,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		severity TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		is_active INTEGER DEFAULT 1,
		is_acknowledged INTEGER DEFAULT 0,
		acknowledged_by TEXT DEFAULT '',
		acknowledged_time INTEGER,
		is_cleared INTEGER DEFAULT 0,
		cleared_by TEXT DEFAULT '',
		cleared_time INTEGER,

		FOREIGN KEY(point_id) REFERENCES points(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alarms_active ON alarms(point_id, name, is_active);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		point_id INTEGER,
		event_type TEXT NOT NULL,
		description TEXT DEFAULT '',
		severity TEXT NOT NULL,
		timestamp INTEGER NOT NULL,

		FOREIGN KEY(point_id) REFERENCES points(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		point_id INTEGER,
		source TEXT NOT NULL,
		value TEXT DEFAULT '',
		message TEXT DEFAULT '',
		timestamp INTEGER NOT NULL,

		FOREIGN KEY(point_id) REFERENCES points(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_point ON logs(point_id, timestamp);

	CREATE TABLE IF NOT EXISTS faults (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		point_id INTEGER,
		description TEXT DEFAULT '',
		is_resolved INTEGER DEFAULT 0,
		resolved_at INTEGER,
		timestamp INTEGER NOT NULL,

		FOREIGN KEY(device_id) REFERENCES devices(id) ON DELETE CASCADE,
		FOREIGN KEY(point_id) REFERENCES points(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_faults_device ON faults(device_id, is_resolved);
	`

	_, err := s.db.Exec(schema)
	return err
}
