package model

// ProtocolDefaults carries the network parameters a protocol starts out
// with before the user tunes them.
type ProtocolDefaults struct {
	PortNumber uint16
	BaudRate   uint32
	Parity     string
	StopBits   uint8
}

// Serial baud rates accepted for ModbusRTU / BACnetMSTP devices.
var SerialBaudRates = []uint32{4800, 9600, 19200, 38400, 57600, 115200}

var protocolDefaults = map[Protocol]ProtocolDefaults{
	ProtocolModbusTCP:  {PortNumber: 502},
	ProtocolModbusRTU:  {BaudRate: 9600, Parity: "Even", StopBits: 1},
	ProtocolBACnetIP:   {PortNumber: 47808},
	ProtocolBACnetMSTP: {BaudRate: 38400, Parity: "None", StopBits: 1},
	ProtocolMQTT:       {PortNumber: 1883},
}

// DefaultsFor returns the defaults for a protocol; unknown protocols get
// the zero value.
func DefaultsFor(p Protocol) ProtocolDefaults {
	return protocolDefaults[p]
}

// ValidProtocol reports whether p is one of the supported protocols.
func ValidProtocol(p Protocol) bool {
	_, ok := protocolDefaults[p]
	return ok
}
