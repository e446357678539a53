package schedule

import (
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "coaching-notifier/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func mustLocal(t *testing.T, zone string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	return time.Date(y, m, d, hh, mm, 0, 0, mustZone(t, zone))
}

// ==========================
// Documented Scenarios
// ==========================

// Monday 10:00 with a Monday 14:00 slot lands on the following Monday. The
// same-day slot is skipped even though 14:00 has not passed yet; this pins the
// current rule so a change to it is deliberate.
func TestNextOccurrence_SameWeekdaySkipsToNextWeek(t *testing.T) {
	ref := mustLocal(t, "America/New_York", 2026, time.February, 2, 10, 0)
	require.Equal(t, time.Monday, ref.Weekday())

	got, err := NextOccurrence(int(time.Monday), "14:00", "America/New_York", ref)
	require.NoError(t, err)

	want := mustLocal(t, "America/New_York", 2026, time.February, 9, 14, 0)
	assert.True(t, want.Equal(got), "got %s want %s", got, want)
	assert.Equal(t, time.Date(2026, 2, 9, 19, 0, 0, 0, time.UTC), got.UTC())
}

func TestNextOccurrence_SameWeekdayAfterSlotAlsoNextWeek(t *testing.T) {
	ref := mustLocal(t, "America/New_York", 2026, time.February, 2, 18, 0)

	got, err := NextOccurrence(int(time.Monday), "14:00", "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, mustLocal(t, "America/New_York", 2026, time.February, 9, 14, 0).Equal(got))
}

func TestNextOccurrence_WeekdayEvaluatedInTargetZone(t *testing.T) {
	// Sunday 20:00 UTC is already Monday 01:30 in Kolkata.
	ref := time.Date(2026, time.February, 1, 20, 0, 0, 0, time.UTC)

	got, err := NextOccurrence(int(time.Monday), "09:00", "Asia/Kolkata", ref)
	require.NoError(t, err)

	assert.True(t, mustLocal(t, "Asia/Kolkata", 2026, time.February, 9, 9, 0).Equal(got), "got %s", got)
}

// ==========================
// Properties
// ==========================

func TestNextOccurrence_MatchesInputsInLocalTime(t *testing.T) {
	zones := []string{"America/New_York", "Europe/London", "Asia/Kolkata", "Australia/Sydney", "UTC"}
	clocks := []string{"00:00", "07:45", "14:00", "23:59"}
	refs := []time.Time{
		time.Date(2026, time.January, 14, 3, 17, 0, 0, time.UTC),
		time.Date(2026, time.March, 7, 23, 0, 0, 0, time.UTC),
		time.Date(2026, time.October, 31, 12, 0, 0, 0, time.UTC),
	}

	for _, zone := range zones {
		loc := mustZone(t, zone)
		for _, clock := range clocks {
			want, err := ParseClock(clock)
			require.NoError(t, err)
			for _, ref := range refs {
				for weekday := 0; weekday <= 6; weekday++ {
					name := fmt.Sprintf("%s/%s/%s/%d", zone, clock, ref.Format(time.DateOnly), weekday)
					got, err := NextOccurrence(weekday, clock, zone, ref)
					require.NoError(t, err, name)

					local := got.In(loc)
					assert.Equal(t, time.Weekday(weekday), local.Weekday(), name)
					assert.Equal(t, want.Hour, local.Hour(), name)
					assert.Equal(t, want.Minute, local.Minute(), name)
					assert.True(t, got.After(ref), name)
					assert.LessOrEqual(t, got.Sub(ref), 8*24*time.Hour, name)

					if ref.In(loc).Weekday() != time.Weekday(weekday) {
						prev := local.AddDate(0, 0, -7)
						assert.False(t, prev.After(ref), "%s: an earlier slot after ref exists", name)
					}
				}
			}
		}
	}
}

func TestNextOccurrence_RoundTripAdvancesOneWeek(t *testing.T) {
	ref := mustLocal(t, "Europe/London", 2026, time.January, 6, 8, 0)

	first, err := NextOccurrence(int(time.Thursday), "17:30", "Europe/London", ref)
	require.NoError(t, err)
	second, err := NextOccurrence(int(time.Thursday), "17:30", "Europe/London", first)
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, second.Sub(first))
}

func TestNextOccurrence_RoundTripAcrossDSTKeepsWallClock(t *testing.T) {
	// US clocks spring forward on 2026-03-08.
	ref := mustLocal(t, "America/New_York", 2026, time.March, 3, 12, 0)

	first, err := NextOccurrence(int(time.Wednesday), "14:00", "America/New_York", ref)
	require.NoError(t, err)
	second, err := NextOccurrence(int(time.Wednesday), "14:00", "America/New_York", first)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC), first.UTC())
	assert.Equal(t, time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC), second.UTC())
	assert.Equal(t, "14:00", second.In(mustZone(t, "America/New_York")).Format("15:04"))
}

func TestNextOccurrence_DSTGapResolvesOnTargetDay(t *testing.T) {
	// 02:30 does not exist in New York on 2026-03-08.
	ref := mustLocal(t, "America/New_York", 2026, time.March, 7, 12, 0)

	got, err := NextOccurrence(int(time.Sunday), "02:30", "America/New_York", ref)
	require.NoError(t, err)

	local := got.In(mustZone(t, "America/New_York"))
	assert.Equal(t, 8, local.Day())
	assert.True(t, got.After(ref))
}

func TestNextOccurrence_DSTOverlapKeepsWallClock(t *testing.T) {
	// 01:30 happens twice in New York on 2026-11-01.
	ref := mustLocal(t, "America/New_York", 2026, time.October, 30, 9, 0)

	got, err := NextOccurrence(int(time.Sunday), "01:30", "America/New_York", ref)
	require.NoError(t, err)

	local := got.In(mustZone(t, "America/New_York"))
	assert.Equal(t, time.November, local.Month())
	assert.Equal(t, 1, local.Day())
	assert.Equal(t, "01:30", local.Format("15:04"))
}

// ==========================
// Input Errors
// ==========================

func TestNextOccurrence_InvalidInputs(t *testing.T) {
	ref := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		weekday  int
		clock    string
		timezone string
		want     error
	}{
		{"negative weekday", -1, "10:00", "UTC", ErrInvalidWeekday},
		{"weekday seven", 7, "10:00", "UTC", ErrInvalidWeekday},
		{"single digit hour", 1, "9:00", "UTC", ErrInvalidTime},
		{"hour 24", 1, "24:00", "UTC", ErrInvalidTime},
		{"minute 60", 1, "14:60", "UTC", ErrInvalidTime},
		{"seconds", 1, "14:00:00", "UTC", ErrInvalidTime},
		{"leading space", 1, " 14:00", "UTC", ErrInvalidTime},
		{"twelve hour", 1, "2pm", "UTC", ErrInvalidTime},
		{"empty time", 1, "", "UTC", ErrInvalidTime},
		{"empty zone", 1, "10:00", "", ErrUnknownTimezone},
		{"local zone", 1, "10:00", "Local", ErrUnknownTimezone},
		{"unknown zone", 1, "10:00", "Mars/Olympus_Mons", ErrUnknownTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.weekday, tt.clock, tt.timezone, ref)
			require.Error(t, err)
			assert.True(t, got.IsZero())
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, apperrors.ErrCodeScheduleInvalid, apperrors.CodeOf(err))
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 7, Minute: 5}, c)
	assert.Equal(t, "07:05", c.String())

	c, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 23, Minute: 59}, c)
}

func TestRecurrence(t *testing.T) {
	r := Recurrence{Weekday: 3, Time: "18:15", Timezone: "Europe/Berlin"}
	require.NoError(t, r.Validate())

	ref := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	got, err := r.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, got.In(mustZone(t, "Europe/Berlin")).Weekday())

	assert.Error(t, Recurrence{Weekday: 3, Time: "6pm", Timezone: "Europe/Berlin"}.Validate())
}
