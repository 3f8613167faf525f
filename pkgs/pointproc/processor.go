// Package pointproc resolves a Point's value from its register, variable or
// data source through forcing, error-status, calibration and scaling rules,
// and reports the alarms, events and logs the resolution implies. It is a
// pure computation: the scheduler owns all persistence.
package pointproc

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smarty-bms/smarty/pkgs/coerce"
	"github.com/smarty-bms/smarty/pkgs/model"
)

// Result is one resolved point value. Text is the canonical string form
// persisted into read_value.
type Result struct {
	Value   interface{}
	Text    string
	Effects Effects
}

// Resolve computes the current value of point. reg may be nil for
// non-register points or when the link is broken; q may be nil when no DATA
// points exist. The previous read_value is taken from the point itself.
//
// Precedence: forced value, then hardware error, then the type-specific
// resolution path.
func Resolve(ctx context.Context, point *model.Point, reg *model.Register, q DataQuerier) Result {
	// 1. Manual force wins over everything, and raises nothing.
	if point.IsForced {
		val := coerce.ByType(point.ForcedValue, point.DataType)
		return Result{Value: val, Text: coerce.String(val)}
	}

	// 2. Hardware error status propagates to a HIGH alarm.
	if point.Type == model.PointRegister && reg != nil && reg.ErrorStatus != model.StatusOK {
		return resolveRegisterError(point, reg)
	}

	// 3. Resolve by point type.
	var val interface{}
	switch point.Type {
	case model.PointRegister:
		val = resolveRegisterValue(point, reg)
	case model.PointVariable:
		if point.ReadValue == nil {
			val = coerce.ByType(nil, point.DataType)
		} else {
			val = coerce.ByType(*point.ReadValue, point.DataType)
		}
	case model.PointData:
		val = resolveDataValue(ctx, point, q)
	default:
		val = coerce.ByType(nil, point.DataType)
	}

	// 4. Alarms, events and historical logs relative to the stored value.
	effects := checkLogicAndAlerts(point, val)

	return Result{Value: val, Text: coerce.String(val), Effects: effects}
}

func resolveRegisterError(point *model.Point, reg *model.Register) Result {
	desc := reg.ErrorMessage
	if desc == "" {
		desc = "Register Fault"
	}
	var effects Effects
	effects.Alarms = append(effects.Alarms, AlarmEffect{
		PointID:     point.ID,
		Name:        fmt.Sprintf("Hardware Error: %s", reg.ErrorStatus),
		Description: desc,
		Severity:    model.SeverityHigh,
	})
	effects.Faults = append(effects.Faults, FaultEffect{
		DeviceID:    reg.DeviceID,
		PointID:     point.ID,
		Description: fmt.Sprintf("%s on register %s: %s", reg.ErrorStatus, reg.Name, desc),
	})

	var val interface{}
	if point.MayBeFaulty {
		val = coerce.ByType(point.FaultyValue, point.DataType)
	} else {
		val = coerce.ByType(0, point.DataType)
	}
	return Result{Value: val, Text: coerce.String(val), Effects: effects}
}

// resolveRegisterValue interprets the raw register text per the point's
// extraction instructions. A missing or inactive register yields the
// type fallback; the engine must never invent a reading.
func resolveRegisterValue(point *model.Point, reg *model.Register) interface{} {
	if reg == nil || !reg.IsActive {
		return coerce.ByType(nil, point.DataType)
	}
	raw := coerce.Float(reg.CurrentValue)

	// A. Boolean extraction (digital, or a single bit of a multistate word).
	if point.DataType == model.TypeBoolean {
		if reg.SignalType == model.SignalMultistate && point.IsSingleBit {
			return (int64(raw)>>point.Bit)&1 == 1
		}
		return raw > 0.5
	}

	// B. Numeric extraction: calibration, then optional linear rescale.
	if point.DataType.IsNumeric() {
		var cal float64
		if point.OffsetBeforeGain {
			cal = (raw + point.Offset) * point.Gain
		} else {
			cal = raw*point.Gain + point.Offset
		}

		val := cal
		if point.RangeMin != nil && point.RangeMax != nil &&
			point.ScaleMin != nil && point.ScaleMax != nil &&
			*point.RangeMax != *point.RangeMin {
			rSpan := *point.RangeMax - *point.RangeMin
			sSpan := *point.ScaleMax - *point.ScaleMin
			val = *point.ScaleMin + (cal-*point.RangeMin)*(sSpan/rSpan)
		}

		if point.DataType == model.TypeInteger {
			return int64(val)
		}
		return coerce.Round(val, point.DecimalPlaces)
	}

	return coerce.String(reg.CurrentValue)
}

func resolveDataValue(ctx context.Context, point *model.Point, q DataQuerier) interface{} {
	if point.JSONData == nil || q == nil {
		return float64(0)
	}
	query, err := ParseQuery(*point.JSONData)
	if err != nil {
		// config error: substitute, never alarm
		logrus.Debugf("point %s: %s", point.Name, err)
		return float64(0)
	}
	res, err := q.RunQuery(ctx, query)
	if err != nil {
		logrus.Debugf("point %s: data query failed: %s", point.Name, err)
		return float64(0)
	}
	return res
}

// previousValue casts the stored read_value into the point's type for change
// detection. Returns nil when no previous value exists.
func previousValue(point *model.Point) interface{} {
	if point.ReadValue == nil || *point.ReadValue == "" {
		return nil
	}
	return coerce.ByType(*point.ReadValue, point.DataType)
}

func checkLogicAndAlerts(point *model.Point, current interface{}) Effects {
	var effects Effects
	prev := previousValue(point)

	switch point.DataType {
	case model.TypeBoolean:
		cur := coerce.Bool(current)
		changed := prev != nil && prev.(bool) != cur
		if changed {
			status := "OFF"
			if cur {
				status = "ON"
			}
			effects.Events = append(effects.Events, EventEffect{
				PointID:     point.ID,
				EventType:   "STATE_CHANGE",
				Description: fmt.Sprintf("%s is %s", point.Name, status),
				Severity:    model.SeverityInfo,
			})
			effects.Logs = append(effects.Logs, logFor(point, current, "State_Change"))
		}
		if point.MayBeFaulty && cur == point.FaultyValue {
			effects.Alarms = append(effects.Alarms, AlarmEffect{
				PointID:     point.ID,
				Name:        "Fault Condition",
				Description: fmt.Sprintf("%s in faulty state", point.Name),
				Severity:    model.SeverityHigh,
			})
		}

	case model.TypeInteger, model.TypeFloat, model.TypeReal:
		cur := coerce.Float(current)
		changed := prev != nil && coerce.Float(prev) != cur

		// Threshold alarms with a 10% approach margin.
		if point.ThresholdHigh != nil && point.ThresholdLow != nil {
			tHigh, tLow := *point.ThresholdHigh, *point.ThresholdLow
			margin := 0.10 * abs(tHigh-tLow)
			switch {
			case cur >= tHigh || cur <= tLow:
				effects.Alarms = append(effects.Alarms, AlarmEffect{
					PointID:     point.ID,
					Name:        "Threshold Violation",
					Description: fmt.Sprintf("%s out of bounds", point.Name),
					Severity:    model.SeverityCritical,
				})
			case cur >= tHigh-margin || cur <= tLow+margin:
				effects.Alarms = append(effects.Alarms, AlarmEffect{
					PointID:     point.ID,
					Name:        "Threshold Warning",
					Description: fmt.Sprintf("%s approaching limit", point.Name),
					Severity:    model.SeverityMedium,
				})
			}
		}

		// A move of more than 1% of the raw range is an event.
		if changed && point.RangeMin != nil && point.RangeMax != nil {
			if span := abs(*point.RangeMax - *point.RangeMin); span > 0 {
				if abs(cur-coerce.Float(prev))/span >= 0.01 {
					effects.Events = append(effects.Events, EventEffect{
						PointID:     point.ID,
						EventType:   "VALUE_CHANGE",
						Description: fmt.Sprintf("%s shifted to %s", point.Name, coerce.String(current)),
						Severity:    model.SeverityInfo,
					})
				}
			}
		}

		// A move of more than 2% of the engineering scale is trended.
		if changed && point.ScaleMin != nil && point.ScaleMax != nil {
			if span := abs(*point.ScaleMax - *point.ScaleMin); span > 0 {
				if abs(cur-coerce.Float(prev))/span >= 0.02 {
					effects.Logs = append(effects.Logs, logFor(point, current, "Historical_Log"))
				}
			}
		}
	}

	// First encounter of this point.
	if prev == nil {
		effects.Logs = append(effects.Logs, logFor(point, current, "Initial_Log"))
	}

	return effects
}

func logFor(point *model.Point, value interface{}, source string) LogEffect {
	text := coerce.String(value)
	return LogEffect{
		PointID: point.ID,
		Source:  source,
		Value:   text,
		Message: fmt.Sprintf("%s recorded as %s", point.Name, text),
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
