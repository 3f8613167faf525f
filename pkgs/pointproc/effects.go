package pointproc

import "github.com/smarty-bms/smarty/pkgs/model"

// AlarmEffect asks the caller to ensure an active alarm row for
// (PointID, Name). It never creates a second active row for the same pair.
type AlarmEffect struct {
	PointID     int64
	Name        string
	Description string
	Severity    model.Severity
}

type EventEffect struct {
	PointID     int64
	EventType   string
	Description string
	Severity    model.Severity
}

type LogEffect struct {
	PointID int64
	Source  string
	Value   string
	Message string
}

// FaultEffect asks the caller to ensure an unresolved fault row for the
// device backing a register point.
type FaultEffect struct {
	DeviceID    int64
	PointID     int64
	Description string
}

// Effects collects everything a resolution wants appended to history.
// The processor performs no I/O itself; the scheduler applies these in
// deterministic order after the phase.
type Effects struct {
	Alarms []AlarmEffect
	Events []EventEffect
	Logs   []LogEffect
	Faults []FaultEffect
}

func (e *Effects) Empty() bool {
	return len(e.Alarms) == 0 && len(e.Events) == 0 && len(e.Logs) == 0 && len(e.Faults) == 0
}
