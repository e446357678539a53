// Package schedule computes occurrences of weekly recurring coaching sessions.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	apperrors "coaching-notifier/internal/common/errors"
)

var (
	ErrInvalidWeekday  = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidTime     = errors.New("time must be HH:mm in 24h format")
	ErrUnknownTimezone = errors.New("unknown IANA timezone")
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Clock is a local time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ParseClock accepts exactly HH:mm.
func ParseClock(hhmm string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(hhmm)
	if m == nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return Clock{Hour: hour, Minute: minute}, nil
}

// LoadZone resolves an IANA identifier. The empty string and "Local" are
// rejected because time.LoadLocation maps them to UTC and the host zone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// NextOccurrence returns the next instant at weekday/hhmm in timezone after
// ref.
//
// When ref already falls on weekday the result is a week out, even if hhmm
// has not yet passed today. Local times inside a DST gap or overlap resolve
// the way time.Date normalizes them.
func NextOccurrence(weekday int, hhmm, timezone string, ref time.Time) (time.Time, error) {
	if weekday < 0 || weekday > 6 {
		return time.Time{}, apperrors.NewScheduleInvalidError(fmt.Errorf("%w: %d", ErrInvalidWeekday, weekday))
	}
	clock, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, apperrors.NewScheduleInvalidError(err)
	}
	loc, err := LoadZone(timezone)
	if err != nil {
		return time.Time{}, apperrors.NewScheduleInvalidError(err)
	}
	return next(time.Weekday(weekday), clock, loc, ref), nil
}

func next(weekday time.Weekday, clock Clock, loc *time.Location, ref time.Time) time.Time {
	local := ref.In(loc)
	delta := (int(weekday) - int(local.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	y, m, d := local.Date()
	return time.Date(y, m, d+delta, clock.Hour, clock.Minute, 0, 0, loc)
}

// Recurrence is the weekly slot stored on a coach/client schedule.
type Recurrence struct {
	Weekday  int    `json:"weekday"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// Validate reports the first invalid field as a SCHEDULE_INVALID error.
func (r Recurrence) Validate() error {
	_, err := NextOccurrence(r.Weekday, r.Time, r.Timezone, time.Time{})
	return err
}

// Next is NextOccurrence for r.
func (r Recurrence) Next(ref time.Time) (time.Time, error) {
	return NextOccurrence(r.Weekday, r.Time, r.Timezone, ref)
}
