package pointproc

import (
	"context"
	"testing"

	"github.com/smarty-bms/smarty/pkgs/model"
)

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }

func registerPoint(dt model.DataType) (*model.Point, *model.Register) {
	regID := int64(1)
	point := &model.Point{
		ID:         10,
		Name:       "P",
		Type:       model.PointRegister,
		RegisterID: &regID,
		DataType:   dt,
		Gain:       1,
		IsActive:   true,
	}
	reg := &model.Register{
		ID:          regID,
		DeviceID:    5,
		Name:        "R",
		SignalType:  model.SignalAnalog,
		DataType:    dt,
		IsActive:    true,
		ErrorStatus: model.StatusOK,
	}
	return point, reg
}

func TestForcedOverridesHardwareError(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	point.IsForced = true
	point.ForcedValue = "42"
	reg.ErrorStatus = model.StatusFault

	res := Resolve(context.Background(), point, reg, nil)

	if res.Text != "42" {
		t.Errorf("forced value = %q, want \"42\"", res.Text)
	}
	if len(res.Effects.Alarms) != 0 {
		t.Errorf("forcing must not raise alarms, got %v", res.Effects.Alarms)
	}
}

func TestHardwareErrorRaisesHighAlarm(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	reg.ErrorStatus = model.StatusCommError
	reg.ErrorMessage = "no response from slave"

	res := Resolve(context.Background(), point, reg, nil)

	if res.Text != "0" {
		t.Errorf("value = %q, want \"0\"", res.Text)
	}
	if len(res.Effects.Alarms) != 1 {
		t.Fatalf("expected one alarm, got %d", len(res.Effects.Alarms))
	}
	alarm := res.Effects.Alarms[0]
	if alarm.Name != "Hardware Error: COMM_ERROR" {
		t.Errorf("alarm name = %q", alarm.Name)
	}
	if alarm.Severity != model.SeverityHigh {
		t.Errorf("alarm severity = %s, want HIGH", alarm.Severity)
	}
	if len(res.Effects.Faults) != 1 || res.Effects.Faults[0].DeviceID != 5 {
		t.Errorf("expected a device fault effect, got %v", res.Effects.Faults)
	}
}

func TestHardwareErrorFaultyValue(t *testing.T) {
	point, reg := registerPoint(model.TypeBoolean)
	point.MayBeFaulty = true
	point.FaultyValue = true
	reg.ErrorStatus = model.StatusFault

	res := Resolve(context.Background(), point, reg, nil)
	if res.Value != true {
		t.Errorf("value = %v, want true (the faulty value)", res.Value)
	}
}

func TestScalingAndThresholdViolation(t *testing.T) {
	// 4-20 mA raw range scaled to 0-100: raw 18 -> 87.5, above threshold 80.
	point, reg := registerPoint(model.TypeReal)
	point.Name = "Temp"
	point.DecimalPlaces = 2
	point.RangeMin, point.RangeMax = fptr(4), fptr(20)
	point.ScaleMin, point.ScaleMax = fptr(0), fptr(100)
	point.ThresholdHigh, point.ThresholdLow = fptr(80), fptr(20)
	reg.CurrentValue = "18"

	res := Resolve(context.Background(), point, reg, nil)

	if res.Text != "87.5" {
		t.Errorf("read value = %q, want \"87.5\"", res.Text)
	}
	if len(res.Effects.Alarms) != 1 || res.Effects.Alarms[0].Name != "Threshold Violation" {
		t.Fatalf("expected Threshold Violation, got %v", res.Effects.Alarms)
	}
	if res.Effects.Alarms[0].Severity != model.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", res.Effects.Alarms[0].Severity)
	}
}

func TestThresholdWarningInsideMargin(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	point.ThresholdHigh, point.ThresholdLow = fptr(100), fptr(0)
	reg.CurrentValue = "92" // margin is 10, warning band starts at 90

	res := Resolve(context.Background(), point, reg, nil)
	if len(res.Effects.Alarms) != 1 || res.Effects.Alarms[0].Name != "Threshold Warning" {
		t.Fatalf("expected Threshold Warning, got %v", res.Effects.Alarms)
	}
	if res.Effects.Alarms[0].Severity != model.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", res.Effects.Alarms[0].Severity)
	}
}

func TestNoRescaleWhenRangeDegenerate(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	point.Gain = 2
	point.Offset = 1
	point.RangeMin, point.RangeMax = fptr(5), fptr(5)
	point.ScaleMin, point.ScaleMax = fptr(0), fptr(100)
	reg.CurrentValue = "3"

	res := Resolve(context.Background(), point, reg, nil)
	if res.Text != "7" { // 3*2+1, no divide by zero
		t.Errorf("read value = %q, want \"7\"", res.Text)
	}
}

func TestOffsetBeforeGain(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	point.Gain = 2
	point.Offset = 1
	point.OffsetBeforeGain = true
	reg.CurrentValue = "3"

	res := Resolve(context.Background(), point, reg, nil)
	if res.Text != "8" { // (3+1)*2
		t.Errorf("read value = %q, want \"8\"", res.Text)
	}
}

func TestMultistateSingleBit(t *testing.T) {
	point, reg := registerPoint(model.TypeBoolean)
	point.IsSingleBit = true
	point.Bit = 2
	reg.SignalType = model.SignalMultistate
	reg.CurrentValue = "5" // 0b101, bit 2 set

	res := Resolve(context.Background(), point, reg, nil)
	if res.Value != true {
		t.Errorf("bit 2 of 5 = %v, want true", res.Value)
	}

	reg.CurrentValue = "2" // 0b010
	res = Resolve(context.Background(), point, reg, nil)
	if res.Value != false {
		t.Errorf("bit 2 of 2 = %v, want false", res.Value)
	}
}

func TestMissingRegisterFallsBack(t *testing.T) {
	point, _ := registerPoint(model.TypeReal)
	res := Resolve(context.Background(), point, nil, nil)
	if res.Text != "0" {
		t.Errorf("read value = %q, want \"0\"", res.Text)
	}
	if len(res.Effects.Alarms) != 0 {
		t.Errorf("missing register is a config error, not an alarm")
	}
}

func TestInactiveRegisterFallsBack(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	reg.IsActive = false
	reg.CurrentValue = "99"
	res := Resolve(context.Background(), point, reg, nil)
	if res.Text != "0" {
		t.Errorf("read value = %q, want \"0\"", res.Text)
	}
}

func TestBooleanStateChangeEffects(t *testing.T) {
	point, reg := registerPoint(model.TypeBoolean)
	point.Name = "Pump"
	reg.SignalType = model.SignalDigital
	reg.CurrentValue = "1"
	point.ReadValue = sptr("false")

	res := Resolve(context.Background(), point, reg, nil)

	if len(res.Effects.Events) != 1 {
		t.Fatalf("expected a STATE_CHANGE event, got %v", res.Effects.Events)
	}
	if res.Effects.Events[0].Description != "Pump is ON" {
		t.Errorf("event description = %q", res.Effects.Events[0].Description)
	}
	if len(res.Effects.Logs) != 1 || res.Effects.Logs[0].Source != "State_Change" {
		t.Errorf("expected a State_Change log, got %v", res.Effects.Logs)
	}
}

func TestInitialLogOnFirstEncounter(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	reg.CurrentValue = "1"

	res := Resolve(context.Background(), point, reg, nil)
	if len(res.Effects.Logs) != 1 || res.Effects.Logs[0].Source != "Initial_Log" {
		t.Fatalf("expected an Initial_Log, got %v", res.Effects.Logs)
	}

	// A stored previous value suppresses it.
	point.ReadValue = sptr("1")
	res = Resolve(context.Background(), point, reg, nil)
	for _, l := range res.Effects.Logs {
		if l.Source == "Initial_Log" {
			t.Errorf("Initial_Log emitted despite previous value")
		}
	}
}

func TestVariablePointCoercion(t *testing.T) {
	point := &model.Point{
		ID: 1, Name: "V", Type: model.PointVariable,
		DataType: model.TypeInteger, ReadValue: sptr("7.9"),
	}
	res := Resolve(context.Background(), point, nil, nil)
	if res.Value != int64(7) {
		t.Errorf("variable integer = %v, want 7", res.Value)
	}
}

type fakeQuerier struct {
	got    Query
	result float64
}

func (f *fakeQuerier) RunQuery(_ context.Context, q Query) (float64, error) {
	f.got = q
	return f.result, nil
}

func TestDataPointQuery(t *testing.T) {
	q := &fakeQuerier{result: 3}
	point := &model.Point{
		ID: 1, Name: "ActiveAlarms", Type: model.PointData,
		DataType: model.TypeInteger,
		JSONData: sptr(`{"app":"main","model":"alarm","action":"filter","params":{"is_active":true},"return":"count"}`),
	}
	res := Resolve(context.Background(), point, nil, q)
	if res.Value != float64(3) {
		t.Errorf("data value = %v, want 3", res.Value)
	}
	if q.got.Kind != QueryFilteredCount || q.got.Entity != "alarm" {
		t.Errorf("parsed query = %+v", q.got)
	}
}

func TestDataPointMalformedDescriptor(t *testing.T) {
	point := &model.Point{
		ID: 1, Name: "Broken", Type: model.PointData,
		DataType: model.TypeInteger, JSONData: sptr("{not json"),
	}
	res := Resolve(context.Background(), point, nil, &fakeQuerier{})
	if res.Value != float64(0) {
		t.Errorf("malformed descriptor should yield 0, got %v", res.Value)
	}
	if !res.Effects.Empty() {
		t.Errorf("config errors must not raise effects")
	}
}

func TestValueChangeEventAndHistoricalLog(t *testing.T) {
	point, reg := registerPoint(model.TypeReal)
	point.RangeMin, point.RangeMax = fptr(0), fptr(100)
	point.ScaleMin, point.ScaleMax = fptr(0), fptr(100)
	point.ReadValue = sptr("10")
	reg.CurrentValue = "15" // 5% move of both spans

	res := Resolve(context.Background(), point, reg, nil)

	foundEvent := false
	for _, e := range res.Effects.Events {
		if e.EventType == "VALUE_CHANGE" {
			foundEvent = true
		}
	}
	if !foundEvent {
		t.Errorf("expected a VALUE_CHANGE event, got %v", res.Effects.Events)
	}
	foundLog := false
	for _, l := range res.Effects.Logs {
		if l.Source == "Historical_Log" {
			foundLog = true
		}
	}
	if !foundLog {
		t.Errorf("expected a Historical_Log entry, got %v", res.Effects.Logs)
	}
}
