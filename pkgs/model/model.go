// Package model holds the persistent entities shared by the configuration
// store, the runtime engine and the HTTP control plane. The engine treats
// everything here as immutable per cycle except for the narrow runtime
// fields it owns: Point.ReadValue, Point.WriteValue, the FBD runtime maps
// and the script execution metadata.
package model

import "time"

// Device is a physical field endpoint reachable over one of the supported
// protocols. Network and protocol-specific parameters live side by side;
// which ones are meaningful depends on Protocol.
type Device struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Protocol    Protocol `json:"protocol"`
	IsOnline    bool     `json:"is_online"`

	// common network parameters
	IPAddress  string `json:"ip_address"`
	PortNumber uint16 `json:"port_number"`

	// Modbus-specific
	SlaveID  uint8  `json:"slave_id"`
	BaudRate uint32 `json:"baud_rate"`
	Parity   string `json:"parity"`
	StopBits uint8  `json:"stop_bits"`

	// BACnet-specific
	BACnetDeviceInstance uint32 `json:"bacnet_device_instance"`
	BACnetNetworkNumber  uint32 `json:"bacnet_network_number"`

	LastCommunication *time.Time `json:"last_communication,omitempty"`
}

// Register is a raw addressable item on a Device. The field I/O driver owns
// CurrentValue and ErrorStatus; the engine only reads them.
type Register struct {
	ID                int64       `json:"id"`
	DeviceID          int64       `json:"device_id"`
	Name              string      `json:"name"`
	Address           uint32      `json:"address"`
	ReadFunctionCode  string      `json:"read_function_code"`
	WriteFunctionCode string      `json:"write_function_code"`
	SignalType        SignalType  `json:"signal_type"`
	Direction         Direction   `json:"direction"`
	DataType          DataType    `json:"data_type"`
	CurrentValue      string      `json:"current_value"`
	IsSingleBit       bool        `json:"is_single_bit"`
	IsWriteable       bool        `json:"is_writeable"`
	Gain              float64     `json:"gain"`
	Offset            float64     `json:"offset"`
	OffsetBeforeGain  bool        `json:"offset_before_gain"`
	IsActive          bool        `json:"is_active"`
	ErrorStatus       ErrorStatus `json:"error_status"`
	ErrorMessage      string      `json:"error_message"`
	LastUpdated       time.Time   `json:"last_updated"`
	LastCommunication *time.Time  `json:"last_communication,omitempty"`
}

// PointGroup is a logical, totally ordered bucket of Points.
type PointGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Order       int64  `json:"order"`
}

// Point is the engineering-unit view of a value, consumed by FBD and script
// programs. Nullable numeric settings are pointers: a nil threshold or range
// bound disables the dependent rule.
type Point struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Slug    string    `json:"slug"`
	GroupID int64     `json:"group_id"`
	Type    PointType `json:"type"`

	// hardware link
	RegisterID *int64    `json:"register_id,omitempty"`
	Direction  Direction `json:"direction"`
	IsActive   bool      `json:"is_active"`
	Frequency  float64   `json:"frequency"`

	// typing
	DataType    DataType `json:"data_type"`
	BitSize     uint8    `json:"bit_size"`
	Bit         uint8    `json:"bit"`
	IsSingleBit bool     `json:"is_single_bit"`
	IsWriteable bool     `json:"is_writeable"`

	// manual override; wins over every other resolution path
	IsForced    bool   `json:"is_forced"`
	ForcedValue string `json:"forced_value"`

	// scaling & calibration
	Gain             float64  `json:"gain"`
	Offset           float64  `json:"offset"`
	OffsetBeforeGain bool     `json:"offset_before_gain"`
	DecimalPlaces    int      `json:"decimal_places"`
	Unit             string   `json:"unit"`
	RangeMin         *float64 `json:"range_min,omitempty"`
	RangeMax         *float64 `json:"range_max,omitempty"`
	ScaleMin         *float64 `json:"scale_min,omitempty"`
	ScaleMax         *float64 `json:"scale_max,omitempty"`

	// logic
	ThresholdHigh *float64 `json:"threshold_high,omitempty"`
	ThresholdLow  *float64 `json:"threshold_low,omitempty"`
	PulseWidth    *float64 `json:"pulse_width,omitempty"`
	MayBeFaulty   bool     `json:"may_be_faulty"`
	FaultyValue   bool     `json:"faulty_value"`

	// runtime (engine-owned)
	ReadValue  *string `json:"read_value,omitempty"`
	WriteValue *string `json:"write_value,omitempty"`
	JSONData   *string `json:"json_data,omitempty"`

	ErrorStatus       ErrorStatus `json:"error_status"`
	ErrorMessage      string      `json:"error_message"`
	LastUpdated       time.Time   `json:"last_updated"`
	LastCommunication *time.Time  `json:"last_communication,omitempty"`
}

// FBDProgram is a stored function-block diagram. DiagramJSON and Bindings
// are user-owned; RuntimeValues and RuntimeState are written by the engine
// after each cycle.
type FBDProgram struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	IsActive      bool      `json:"is_active"`
	DiagramJSON   string    `json:"diagram_json"`
	Bindings      string    `json:"bindings"`
	RuntimeValues string    `json:"runtime_values"`
	RuntimeState  string    `json:"runtime_state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScriptProgram is a stored textual program: a declaration header followed
// by a restricted imperative body.
type ScriptProgram struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CodeText    string `json:"code_text"`
	IsActive    bool   `json:"is_active"`

	LastExecutionStatus string     `json:"last_execution_status"`
	LastExecutionTime   *time.Time `json:"last_execution_time,omitempty"`
	LastExecutionLog    string     `json:"last_execution_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScriptBinding maps a declared script variable to a Point.
type ScriptBinding struct {
	ID           int64            `json:"id"`
	ScriptID     int64            `json:"script_id"`
	VariableName string           `json:"variable_name"`
	PointID      int64            `json:"point_id"`
	Direction    BindingDirection `json:"direction"`
}

// Alarm is a user-facing, acknowledgeable condition. At most one active row
// exists per (point, name) pair.
type Alarm struct {
	ID               int64      `json:"id"`
	PointID          *int64     `json:"point_id,omitempty"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Severity         Severity   `json:"severity"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	IsActive         bool       `json:"is_active"`
	IsAcknowledged   bool       `json:"is_acknowledged"`
	AcknowledgedBy   string     `json:"acknowledged_by"`
	AcknowledgedTime *time.Time `json:"acknowledged_time,omitempty"`
	IsCleared        bool       `json:"is_cleared"`
	ClearedBy        string     `json:"cleared_by"`
	ClearedTime      *time.Time `json:"cleared_time,omitempty"`
}

// Event is an informational record, not requiring acknowledgement.
type Event struct {
	ID          int64     `json:"id"`
	PointID     *int64    `json:"point_id,omitempty"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Log is an append-only historical trend sample.
type Log struct {
	ID        int64     `json:"id"`
	PointID   *int64    `json:"point_id,omitempty"`
	Source    string    `json:"source"`
	Value     string    `json:"value"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Fault records a hardware condition against a device.
type Fault struct {
	ID          int64      `json:"id"`
	DeviceID    int64      `json:"device_id"`
	PointID     *int64     `json:"point_id,omitempty"`
	Description string     `json:"description"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}
