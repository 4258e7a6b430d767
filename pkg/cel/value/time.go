package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
)

const (
	nanosPerSecond = int64(time.Second)

	// maxDurationSeconds bounds durations to roughly 10000 years either way.
	maxDurationSeconds = int64(315576000000)

	// minTimestampUnix and maxTimestampUnix bound timestamps to the years 1..9999.
	minTimestampUnix = int64(-62135596800)
	maxTimestampUnix = int64(253402300799)
)

// Timestamp is a point in time with a fixed offset.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, failing with Overflow outside the years 1..9999.
func NewTimestamp(t time.Time) (Timestamp, error) {
	ts := Timestamp{Time: t}
	if err := ts.checkRange("timestamp"); err != nil {
		return Timestamp{}, err
	}
	return ts, nil
}

// ParseTimestamp parses an RFC3339 string.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, celerrors.ConversionError(fmt.Sprintf("invalid timestamp %q: %v", s, err))
	}
	return NewTimestamp(t)
}

func (t Timestamp) checkRange(op string) error {
	s := t.Unix()
	if s < minTimestampUnix || s > maxTimestampUnix {
		return celerrors.Overflow(op, "timestamp outside years 1..9999")
	}
	return nil
}

// AddDuration returns t+d. Results that overflow the underlying seconds counter
// or fall outside the years 1..9999 fail with Overflow.
func (t Timestamp) AddDuration(d Duration) (Timestamp, error) {
	secs, ok := addInt64(t.Unix(), d.secs)
	if !ok {
		return Timestamp{}, celerrors.Overflow("timestamp + duration", "seconds overflow")
	}
	nanos := int64(t.Nanosecond()) + int64(d.nanos)
	if nanos >= nanosPerSecond {
		nanos -= nanosPerSecond
		secs++
	} else if nanos < 0 {
		nanos += nanosPerSecond
		secs--
	}
	if secs < minTimestampUnix || secs > maxTimestampUnix {
		return Timestamp{}, celerrors.Overflow("timestamp + duration", "timestamp outside years 1..9999")
	}
	return Timestamp{Time: time.Unix(secs, nanos).In(t.Location())}, nil
}

// SubDuration returns t-d.
func (t Timestamp) SubDuration(d Duration) (Timestamp, error) {
	neg, err := d.Negate()
	if err != nil {
		return Timestamp{}, err
	}
	return t.AddDuration(neg)
}

// Sub returns the duration t-o.
func (t Timestamp) Sub(o Timestamp) (Duration, error) {
	return NewDuration(t.Unix()-o.Unix(), int64(t.Nanosecond()-o.Nanosecond()))
}

func (Timestamp) Kind() Kind { return KindTimestamp }
func (Timestamp) isValue()   {}

// Duration is a signed span of time stored as seconds plus nanoseconds, with a
// range wider than time.Duration.
type Duration struct {
	secs  int64
	nanos int32
}

// NewDuration normalizes secs and nanos so both share a sign, failing with
// Overflow outside the supported range.
func NewDuration(secs, nanos int64) (Duration, error) {
	carry := nanos / nanosPerSecond
	nanos -= carry * nanosPerSecond
	s, ok := addInt64(secs, carry)
	if !ok {
		return Duration{}, celerrors.Overflow("duration", "seconds overflow")
	}
	if s > 0 && nanos < 0 {
		s--
		nanos += nanosPerSecond
	} else if s < 0 && nanos > 0 {
		s++
		nanos -= nanosPerSecond
	}
	if s > maxDurationSeconds || s < -maxDurationSeconds {
		return Duration{}, celerrors.Overflow("duration", "duration outside supported range")
	}
	return Duration{secs: s, nanos: int32(nanos)}, nil
}

// DurationOf converts a time.Duration, which always fits.
func DurationOf(d time.Duration) Duration {
	out, _ := NewDuration(0, int64(d))
	return out
}

// ParseDuration parses Go duration syntax ("1h30m", "2.5s", "-10ms").
func ParseDuration(s string) (Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return DurationOf(d), nil
	}
	// Fall back to whole seconds for spans time.Duration cannot hold.
	if strings.HasSuffix(s, "s") {
		var secs int64
		if _, serr := fmt.Sscanf(s, "%ds", &secs); serr == nil {
			return NewDuration(secs, 0)
		}
	}
	return Duration{}, celerrors.ConversionError(fmt.Sprintf("invalid duration %q: %v", s, err))
}

// Seconds returns the whole-second part.
func (d Duration) Seconds() int64 { return d.secs }

// Nanos returns the sub-second part, with the same sign as Seconds.
func (d Duration) Nanos() int32 { return d.nanos }

// Nanoseconds returns the total nanoseconds, or false if it does not fit in int64.
func (d Duration) Nanoseconds() (int64, bool) {
	if d.secs > math.MaxInt64/nanosPerSecond || d.secs < math.MinInt64/nanosPerSecond {
		return 0, false
	}
	n := d.secs * nanosPerSecond
	return addInt64(n, int64(d.nanos))
}

// Std converts to time.Duration, or false if it does not fit.
func (d Duration) Std() (time.Duration, bool) {
	n, ok := d.Nanoseconds()
	return time.Duration(n), ok
}

// Add returns d+o.
func (d Duration) Add(o Duration) (Duration, error) {
	secs, ok := addInt64(d.secs, o.secs)
	if !ok {
		return Duration{}, celerrors.Overflow("duration + duration", "seconds overflow")
	}
	return NewDuration(secs, int64(d.nanos)+int64(o.nanos))
}

// Negate returns -d.
func (d Duration) Negate() (Duration, error) {
	return NewDuration(-d.secs, -int64(d.nanos))
}

// Compare returns -1, 0 or 1.
func (d Duration) Compare(o Duration) int {
	switch {
	case d.secs < o.secs:
		return -1
	case d.secs > o.secs:
		return 1
	case d.nanos < o.nanos:
		return -1
	case d.nanos > o.nanos:
		return 1
	}
	return 0
}

// String renders the duration in seconds, e.g. "90.5s".
func (d Duration) String() string {
	if d.nanos == 0 {
		return fmt.Sprintf("%ds", d.secs)
	}
	if std, ok := d.Std(); ok {
		return strconv.FormatFloat(std.Seconds(), 'f', -1, 64) + "s"
	}
	return fmt.Sprintf("%ds", d.secs)
}

func (Duration) Kind() Kind { return KindDuration }
func (Duration) isValue()   {}

func addInt64(a, b int64) (int64, bool) {
	r := a + b
	if (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0) {
		return 0, false
	}
	return r, true
}
