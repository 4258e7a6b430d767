package interpreter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

func installTime(c *Context) {
	c.AddFunction("timestamp", conversion(toTimestamp))
	c.AddFunction("duration", conversion(toDuration))

	c.AddFunction("getFullYear", timestampGetter(func(t time.Time) int64 { return int64(t.Year()) }))
	c.AddFunction("getMonth", timestampGetter(func(t time.Time) int64 { return int64(t.Month()) - 1 }))
	c.AddFunction("getDate", timestampGetter(func(t time.Time) int64 { return int64(t.Day()) }))
	c.AddFunction("getDayOfMonth", timestampGetter(func(t time.Time) int64 { return int64(t.Day()) - 1 }))
	c.AddFunction("getDayOfWeek", timestampGetter(func(t time.Time) int64 { return int64(t.Weekday()) }))
	c.AddFunction("getDayOfYear", timestampGetter(func(t time.Time) int64 { return int64(t.YearDay()) - 1 }))

	c.AddFunction("getHours", timeGetter(
		func(t time.Time) int64 { return int64(t.Hour()) },
		func(d value.Duration) int64 { return d.Seconds() / 3600 }))
	c.AddFunction("getMinutes", timeGetter(
		func(t time.Time) int64 { return int64(t.Minute()) },
		func(d value.Duration) int64 { return d.Seconds() / 60 }))
	c.AddFunction("getSeconds", timeGetter(
		func(t time.Time) int64 { return int64(t.Second()) },
		func(d value.Duration) int64 { return d.Seconds() }))
	c.AddFunction("getMilliseconds", timeGetter(
		func(t time.Time) int64 { return int64(t.Nanosecond() / int(time.Millisecond)) },
		func(d value.Duration) int64 { return d.Seconds()*1000 + int64(d.Nanos())/int64(time.Millisecond) }))
}

func toTimestamp(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Timestamp:
		return x, nil
	case value.String:
		return typed(value.ParseTimestamp(string(x)))
	case value.Int:
		return typed(value.NewTimestamp(time.Unix(int64(x), 0).UTC()))
	default:
		return nil, cannotConvert(x, "timestamp")
	}
}

func toDuration(v value.Value) (value.Value, error) {
	switch x := value.Materialize(v).(type) {
	case value.Duration:
		return x, nil
	case value.String:
		return typed(value.ParseDuration(string(x)))
	default:
		return nil, cannotConvert(x, "duration")
	}
}

// timestampGetter builds a getter that only applies to timestamps.
func timestampGetter(get func(time.Time) int64) Function {
	return timeGetter(get, nil)
}

// timeGetter builds t.getX([tz]) for timestamps and, when durGet is set,
// d.getX() for durations. tz is an IANA zone name or a "+hh:mm" offset.
func timeGetter(tsGet func(time.Time) int64, durGet func(value.Duration) int64) Function {
	return func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 2)
		if err != nil {
			return nil, err
		}
		switch x := value.Materialize(ops[0]).(type) {
		case value.Timestamp:
			t := x.UTC()
			if len(ops) == 2 {
				name, err := asString(ops[1])
				if err != nil {
					return nil, err
				}
				loc, err := loadLocation(name)
				if err != nil {
					return nil, celerrors.FunctionError(call.Function(), err.Error())
				}
				t = t.In(loc)
			}
			return value.Int(tsGet(t)), nil
		case value.Duration:
			if durGet == nil || len(ops) != 1 {
				return nil, celerrors.NoSuchOverload(call.Function())
			}
			return value.Int(durGet(x)), nil
		default:
			return nil, celerrors.NotSupportedAsMethod(call.Function(), value.TypeName(x))
		}
	}
}

// loadLocation accepts IANA names ("America/New_York") and fixed offsets
// ("+05:30", "-08:00").
func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	if name[0] == '+' || name[0] == '-' {
		hh, mm, ok := strings.Cut(name[1:], ":")
		if !ok {
			return nil, fmt.Errorf("invalid time zone offset %q", name)
		}
		h, herr := strconv.Atoi(hh)
		m, merr := strconv.Atoi(mm)
		if herr != nil || merr != nil || h > 23 || m > 59 {
			return nil, fmt.Errorf("invalid time zone offset %q", name)
		}
		offset := h*3600 + m*60
		if name[0] == '-' {
			offset = -offset
		}
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	return loc, nil
}
