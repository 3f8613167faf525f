package model

// Protocol identifies the field bus a Device speaks.
type Protocol string

const (
	ProtocolModbusTCP  Protocol = "ModbusTCP"
	ProtocolModbusRTU  Protocol = "ModbusRTU"
	ProtocolBACnetIP   Protocol = "BACnetIP"
	ProtocolBACnetMSTP Protocol = "BACnetMSTP"
	ProtocolMQTT       Protocol = "MQTT"
)

// SignalType classifies the raw signal carried by a Register.
type SignalType string

const (
	SignalDigital    SignalType = "Digital"
	SignalAnalog     SignalType = "Analog"
	SignalPulse      SignalType = "Pulse"
	SignalMultistate SignalType = "Multistate"
)

type Direction string

const (
	DirectionInput  Direction = "Input"
	DirectionOutput Direction = "Output"
)

// DataType is the declared engineering data type of a Point or Register.
type DataType string

const (
	TypeInteger DataType = "Integer"
	TypeFloat   DataType = "Float"
	TypeReal    DataType = "Real"
	TypeBoolean DataType = "Boolean"
	TypeString  DataType = "String"
	TypeList    DataType = "List"
	TypeObject  DataType = "Object"
)

// IsNumeric reports whether the type resolves through the calibration path.
func (t DataType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat || t == TypeReal
}

type ErrorStatus string

const (
	StatusOK         ErrorStatus = "OK"
	StatusFault      ErrorStatus = "FAULT"
	StatusCommError  ErrorStatus = "COMM_ERROR"
	StatusRangeError ErrorStatus = "RANGE_ERROR"
)

// PointType selects the resolution path of a Point.
type PointType string

const (
	PointRegister PointType = "REGISTER"
	PointVariable PointType = "VARIABLE"
	PointData     PointType = "DATA"
)

// Severity is shared by alarms and events; alarms use LOW..CRITICAL,
// events use INFO/WARNING/CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
)

// Script execution statuses stored on ScriptProgram.
const (
	ExecutionSuccess = "success"
	ExecutionError   = "error"
)

// BindingDirection is the declared direction of a script variable.
type BindingDirection string

const (
	BindingInput  BindingDirection = "input"
	BindingOutput BindingDirection = "output"
)
