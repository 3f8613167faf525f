package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smarty-bms/smarty/pkgs/model"
	"github.com/smarty-bms/smarty/pkgs/pointproc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateDeviceDefaults(t *testing.T) {
	s := openTestStore(t)

	d := &model.Device{Name: "AHU 1", Protocol: model.ProtocolModbusTCP}
	require.NoError(t, s.CreateDevice(d))
	require.NotZero(t, d.ID)
	require.Equal(t, "ahu-1", d.Slug)
	require.Equal(t, uint16(502), d.PortNumber)

	serial := &model.Device{Name: "Meter", Protocol: model.ProtocolModbusRTU}
	require.NoError(t, s.CreateDevice(serial))
	require.Equal(t, uint32(9600), serial.BaudRate)
	require.Equal(t, "Even", serial.Parity)

	_, err := s.GetDevice(d.ID)
	require.NoError(t, err)

	devices, err := s.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
}

func TestCreateDeviceRejectsUnknownProtocol(t *testing.T) {
	s := openTestStore(t)
	err := s.CreateDevice(&model.Device{Name: "x", Protocol: "LonWorks"})
	require.Error(t, err)
}

func TestRegisters(t *testing.T) {
	s := openTestStore(t)
	d := &model.Device{Name: "plc", Protocol: model.ProtocolModbusTCP}
	require.NoError(t, s.CreateDevice(d))

	r := &model.Register{
		DeviceID:   d.ID,
		Name:       "supply temp",
		Address:    40001,
		SignalType: model.SignalAnalog,
		Direction:  model.DirectionInput,
		DataType:   model.TypeReal,
		IsActive:   true,
	}
	require.NoError(t, s.CreateRegister(r))
	require.Equal(t, 1.0, r.Gain)

	require.NoError(t, s.UpdateRegisterValue(r.ID, "18", model.StatusOK, ""))

	byID, err := s.RegistersByID()
	require.NoError(t, err)
	require.Equal(t, "18", byID[r.ID].CurrentValue)
	require.Equal(t, model.StatusOK, byID[r.ID].ErrorStatus)
}

func TestGroupOrdering(t *testing.T) {
	s := openTestStore(t)

	g1 := &model.PointGroup{Name: "Heating", IsActive: true}
	g2 := &model.PointGroup{Name: "Cooling", IsActive: true}
	require.NoError(t, s.CreateGroup(g1))
	require.NoError(t, s.CreateGroup(g2))
	require.Equal(t, int64(1), g1.Order)
	require.Equal(t, int64(2), g2.Order)

	groups, err := s.ListGroups()
	require.NoError(t, err)
	require.Equal(t, []string{"Heating", "Cooling"}, []string{groups[0].Name, groups[1].Name})
}

func testPoint(groupID int64, name string) *model.Point {
	return &model.Point{
		Name:     name,
		GroupID:  groupID,
		Type:     model.PointVariable,
		DataType: model.TypeReal,
		IsActive: true,
	}
}

func TestPointRuntimeUpdates(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))

	p1 := testPoint(g.ID, "a")
	p2 := testPoint(g.ID, "b")
	p2.IsActive = false
	require.NoError(t, s.CreatePoint(p1))
	require.NoError(t, s.CreatePoint(p2))

	active, err := s.ActivePoints()
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "a", active[0].Name)
	require.Nil(t, active[0].ReadValue)

	v := "21.5"
	require.NoError(t, s.UpdatePointRuntimes([]PointRuntime{
		{ID: p1.ID, ReadValue: &v, ErrorStatus: model.StatusOK},
	}))
	require.NoError(t, s.UpdateWriteValues(map[int64]string{p1.ID: "1"}))

	got, err := s.GetPoint(p1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadValue)
	require.Equal(t, "21.5", *got.ReadValue)
	require.NotNil(t, got.WriteValue)
	require.Equal(t, "1", *got.WriteValue)
}

func TestForcePoint(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := testPoint(g.ID, "p")
	require.NoError(t, s.CreatePoint(p))

	require.NoError(t, s.ForcePoint(p.ID, true, "42"))
	got, err := s.GetPoint(p.ID)
	require.NoError(t, err)
	require.True(t, got.IsForced)
	require.Equal(t, "42", got.ForcedValue)

	require.NoError(t, s.ForcePoint(p.ID, false, ""))
	got, err = s.GetPoint(p.ID)
	require.NoError(t, err)
	require.False(t, got.IsForced)
}

func TestEnsureAlarmDeduplicates(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := testPoint(g.ID, "p")
	require.NoError(t, s.CreatePoint(p))

	created, err := s.EnsureAlarm(&p.ID, "Threshold Violation", "too hot", model.SeverityCritical)
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.EnsureAlarm(&p.ID, "Threshold Violation", "still too hot", model.SeverityCritical)
	require.NoError(t, err)
	require.False(t, created, "active alarm must not be duplicated")

	// same name on a different point is a separate alarm
	p2 := testPoint(g.ID, "q")
	require.NoError(t, s.CreatePoint(p2))
	created, err = s.EnsureAlarm(&p2.ID, "Threshold Violation", "", model.SeverityCritical)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, s.CloseAlarm(&p.ID, "Threshold Violation"))

	active, err := s.ListAlarms(true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, p2.ID, *active[0].PointID)

	// closing reopens the dedupe window
	created, err = s.EnsureAlarm(&p.ID, "Threshold Violation", "", model.SeverityCritical)
	require.NoError(t, err)
	require.True(t, created)
}

func TestAcknowledgeAlarm(t *testing.T) {
	s := openTestStore(t)
	created, err := s.EnsureAlarm(nil, "System", "engine restarted", model.SeverityLow)
	require.NoError(t, err)
	require.True(t, created)

	alarms, err := s.ListAlarms(true)
	require.NoError(t, err)
	require.Len(t, alarms, 1)

	require.NoError(t, s.AcknowledgeAlarm(alarms[0].ID, "operator"))
	require.Error(t, s.AcknowledgeAlarm(alarms[0].ID, "operator"), "second acknowledge must fail")

	alarms, err = s.ListAlarms(true)
	require.NoError(t, err)
	require.True(t, alarms[0].IsAcknowledged)
	require.Equal(t, "operator", alarms[0].AcknowledgedBy)
}

func TestFaultLifecycle(t *testing.T) {
	s := openTestStore(t)
	d := &model.Device{Name: "plc", Protocol: model.ProtocolModbusTCP}
	require.NoError(t, s.CreateDevice(d))

	created, err := s.EnsureFault(d.ID, nil, "Hardware Error: COMM_ERROR")
	require.NoError(t, err)
	require.True(t, created)
	created, err = s.EnsureFault(d.ID, nil, "Hardware Error: COMM_ERROR")
	require.NoError(t, err)
	require.False(t, created)

	open, err := s.OpenFaults()
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, s.ResolveFaults(d.ID))
	open, err = s.OpenFaults()
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestLogsAndEvents(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := testPoint(g.ID, "p")
	require.NoError(t, s.CreatePoint(p))

	require.NoError(t, s.InsertEvent(&model.Event{
		PointID: &p.ID, EventType: "STATE_CHANGE", Severity: model.SeverityInfo,
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertLog(&model.Log{
			PointID: &p.ID, Source: "Historical_Log", Value: "1",
		}))
	}

	logs, err := s.ListLogs(p.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestDuplicateDevice(t *testing.T) {
	s := openTestStore(t)
	d := &model.Device{Name: "AHU", Protocol: model.ProtocolModbusTCP, IsOnline: true}
	require.NoError(t, s.CreateDevice(d))
	require.NoError(t, s.CreateRegister(&model.Register{
		DeviceID: d.ID, Name: "r1", Address: 1,
		SignalType: model.SignalAnalog, Direction: model.DirectionInput,
		DataType: model.TypeReal, CurrentValue: "5", IsActive: true,
	}))

	ids, err := s.DuplicateDevice(d.ID, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, err := s.GetDevice(ids[0])
	require.NoError(t, err)
	require.Equal(t, "AHU_copy_1", first.Name)
	require.False(t, first.IsOnline)

	regs, err := s.ListRegisters(ids[0])
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, "", regs[0].CurrentValue, "clone starts with empty raw value")

	// duplicating again skips the taken names
	ids, err = s.DuplicateDevice(d.ID, 1)
	require.NoError(t, err)
	again, err := s.GetDevice(ids[0])
	require.NoError(t, err)
	require.Equal(t, "AHU_copy_3", again.Name)
}

func TestDuplicateScriptWithBindings(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := testPoint(g.ID, "p")
	require.NoError(t, s.CreatePoint(p))

	sp := &model.ScriptProgram{Name: "ctl", CodeText: "analogue_input x;\n", IsActive: true}
	require.NoError(t, s.CreateScriptProgram(sp))
	require.NoError(t, s.SetBindings(sp.ID, []model.ScriptBinding{
		{VariableName: "x", PointID: p.ID, Direction: model.BindingInput},
	}))

	ids, err := s.DuplicateScriptProgram(sp.ID, 1)
	require.NoError(t, err)

	clone, err := s.GetScriptProgram(ids[0])
	require.NoError(t, err)
	require.Equal(t, "ctl_copy_1", clone.Name)
	require.False(t, clone.IsActive)

	bindings, err := s.Bindings(ids[0])
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	require.Equal(t, p.ID, bindings[0].PointID)
}

func TestScriptExecutionMetadata(t *testing.T) {
	s := openTestStore(t)
	sp := &model.ScriptProgram{Name: "ctl", IsActive: true}
	require.NoError(t, s.CreateScriptProgram(sp))

	at := time.Now()
	require.NoError(t, s.UpdateScriptExecution(sp.ID, model.ExecutionError, "boom", at))

	got, err := s.GetScriptProgram(sp.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExecutionError, got.LastExecutionStatus)
	require.Equal(t, "boom", got.LastExecutionLog)
	require.NotNil(t, got.LastExecutionTime)
	require.Equal(t, at.Unix(), got.LastExecutionTime.Unix())
}

func TestFBDRuntimeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := &model.FBDProgram{Name: "gates", IsActive: true, DiagramJSON: `{"nodes":[],"edges":[]}`}
	require.NoError(t, s.CreateFBDProgram(p))

	require.NoError(t, s.UpdateFBDRuntime(p.ID, `{"a_out_0":true}`, `{"a":{}}`))
	got, err := s.GetFBDProgram(p.ID)
	require.NoError(t, err)
	require.Equal(t, `{"a_out_0":true}`, got.RuntimeValues)
	require.Equal(t, `{"a":{}}`, got.RuntimeState)

	active, err := s.ActiveFBDPrograms()
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRunQuery(t *testing.T) {
	s := openTestStore(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := testPoint(g.ID, "p")
	require.NoError(t, s.CreatePoint(p))

	_, err := s.EnsureAlarm(&p.ID, "a1", "", model.SeverityHigh)
	require.NoError(t, err)
	_, err = s.EnsureAlarm(&p.ID, "a2", "", model.SeverityLow)
	require.NoError(t, err)
	require.NoError(t, s.CloseAlarm(&p.ID, "a2"))

	ctx := context.Background()

	n, err := s.RunQuery(ctx, pointproc.Query{Kind: pointproc.QueryCount, Entity: "alarm"})
	require.NoError(t, err)
	require.Equal(t, 2.0, n)

	n, err = s.RunQuery(ctx, pointproc.Query{
		Kind:   pointproc.QueryFilteredCount,
		Entity: "alarm",
		Filter: map[string]interface{}{"is_active": 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, n)

	for _, v := range []string{"2", "3"} {
		require.NoError(t, s.InsertLog(&model.Log{PointID: &p.ID, Source: "s", Value: v}))
	}
	n, err = s.RunQuery(ctx, pointproc.Query{Kind: pointproc.QuerySum, Entity: "log", Field: "value"})
	require.NoError(t, err)
	require.Equal(t, 5.0, n)

	_, err = s.RunQuery(ctx, pointproc.Query{Kind: pointproc.QueryCount, Entity: "sqlite_master"})
	require.Error(t, err, "entities outside the whitelist are rejected")

	_, err = s.RunQuery(ctx, pointproc.Query{
		Kind:   pointproc.QueryFilteredCount,
		Entity: "alarm",
		Filter: map[string]interface{}{"name; DROP TABLE alarms": 1},
	})
	require.Error(t, err, "columns outside the whitelist are rejected")
}
