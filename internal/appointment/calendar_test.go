package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayHours(open, close string) OperatingHours {
	h := OperatingHours{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		h[d] = DayHours{Open: open, Close: close}
	}
	return h
}

func TestOpenInterval(t *testing.T) {
	tuesday := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		hours     OperatingHours
		date      time.Time
		wantOpen  int
		wantClose int
		wantErr   error
	}{
		{
			name:      "regular day",
			hours:     weekdayHours("09:00", "17:00"),
			date:      tuesday,
			wantOpen:  9,
			wantClose: 17,
		},
		{
			name:      "minutes are ignored",
			hours:     OperatingHours{"tuesday": {Open: "08:30", Close: "18:45"}},
			date:      tuesday,
			wantOpen:  8,
			wantClose: 18,
		},
		{
			name:    "missing weekday is closed",
			hours:   weekdayHours("09:00", "17:00"),
			date:    time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC),
			wantErr: ErrClinicClosed,
		},
		{
			name:    "blank close is closed",
			hours:   OperatingHours{"tuesday": {Open: "09:00"}},
			date:    tuesday,
			wantErr: ErrClinicClosed,
		},
		{
			name:    "malformed hour",
			hours:   OperatingHours{"tuesday": {Open: "nine", Close: "17:00"}},
			date:    tuesday,
			wantErr: ErrInvalidOperatingHours,
		},
		{
			name:    "closes before it opens",
			hours:   OperatingHours{"tuesday": {Open: "17:00", Close: "09:00"}},
			date:    tuesday,
			wantErr: ErrInvalidOperatingHours,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Clinic{OperatingHours: tc.hours}
			open, closing, err := c.OpenInterval(tc.date)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOpen, open)
			assert.Equal(t, tc.wantClose, closing)
		})
	}
}

func TestOpenIntervalClosedNamesWeekday(t *testing.T) {
	c := &Clinic{OperatingHours: weekdayHours("09:00", "17:00")}

	_, _, err := c.OpenInterval(time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC))

	var closed *ClinicClosedError
	require.True(t, errors.As(err, &closed))
	assert.Equal(t, "sunday", closed.Weekday)
}

func TestOpenIntervalUsesDateLocation(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	// Monday 02:00 UTC is still Sunday evening in Toronto.
	instant := time.Date(2025, 6, 9, 2, 0, 0, 0, time.UTC)
	c := &Clinic{OperatingHours: weekdayHours("09:00", "17:00")}

	_, _, err = c.OpenInterval(instant)
	require.NoError(t, err)

	_, _, err = c.OpenInterval(instant.In(toronto))
	assert.ErrorIs(t, err, ErrClinicClosed)
}

func TestClinicLocation(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	loc, err := (&Clinic{}).Location(toronto)
	require.NoError(t, err)
	assert.Equal(t, toronto, loc)

	loc, err = (&Clinic{}).Location(nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = (&Clinic{Timezone: "Europe/Berlin"}).Location(toronto)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	_, err = (&Clinic{Timezone: "Nowhere/Special"}).Location(toronto)
	assert.Error(t, err)
}

func TestOperatingHoursValidate(t *testing.T) {
	assert.NoError(t, weekdayHours("08:00", "18:00").Validate())
	assert.NoError(t, OperatingHours{"friday": {Open: "00:00", Close: "24:00"}}.Validate())

	for name, h := range map[string]OperatingHours{
		"unknown day":    {"funday": {Open: "09:00", Close: "17:00"}},
		"open equals":    {"monday": {Open: "09:00", Close: "09:00"}},
		"open after":     {"monday": {Open: "10:00", Close: "09:30"}},
		"bad minutes":    {"monday": {Open: "09:75", Close: "17:00"}},
		"past midnight":  {"monday": {Open: "09:00", Close: "24:30"}},
		"not a time":     {"monday": {Open: "morning", Close: "17:00"}},
		"same hour only": {"monday": {Open: "09:10", Close: "09:05"}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, h.Validate(), ErrInvalidOperatingHours)
		})
	}
}

func TestParseDate(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	d, err := ParseDate("2025-07-01", toronto)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, toronto), d)

	_, err = ParseDate("07/01/2025", toronto)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestStartOfDay(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	got := StartOfDay(time.Date(2025, 7, 2, 3, 30, 0, 0, time.UTC), toronto)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, toronto), got)
}
