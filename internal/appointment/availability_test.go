package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func apptAt(hour int, status AppointmentStatus) Appointment {
	return Appointment{
		AppointmentDate: time.Date(2025, 7, 1, hour, 0, 0, 0, time.UTC),
		Status:          status,
	}
}

func TestFreeSlots(t *testing.T) {
	tests := []struct {
		name  string
		open  int
		close int
		appts []Appointment
		want  []int
	}{
		{
			name:  "empty day",
			open:  9,
			close: 17,
			want:  []int{9, 10, 11, 12, 13, 14, 15, 16},
		},
		{
			name:  "booked hour is excluded",
			open:  9,
			close: 17,
			appts: []Appointment{apptAt(11, StatusScheduled)},
			want:  []int{9, 10, 12, 13, 14, 15, 16},
		},
		{
			name:  "cancelled hour is free again",
			open:  9,
			close: 12,
			appts: []Appointment{apptAt(10, StatusCancelled)},
			want:  []int{9, 10, 11},
		},
		{
			name:  "completed and confirmed stay booked",
			open:  9,
			close: 12,
			appts: []Appointment{apptAt(9, StatusCompleted), apptAt(11, StatusConfirmed)},
			want:  []int{10},
		},
		{
			name:  "fully booked",
			open:  9,
			close: 11,
			appts: []Appointment{apptAt(10, StatusScheduled), apptAt(9, StatusConfirmed)},
			want:  []int{},
		},
		{
			name:  "appointments outside hours are ignored",
			open:  9,
			close: 11,
			appts: []Appointment{apptAt(20, StatusScheduled)},
			want:  []int{9, 10},
		},
		{
			name:  "empty interval",
			open:  9,
			close: 9,
			want:  []int{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FreeSlots(tc.open, tc.close, tc.appts, time.UTC))
		})
	}
}

func TestFreeSlotsReadsHoursInLocation(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	assert.NoError(t, err)

	// 14:00 UTC in July is 10:00 in Toronto.
	appts := []Appointment{apptAt(14, StatusScheduled)}

	assert.Equal(t, []int{9, 11}, FreeSlots(9, 12, appts, toronto))
}
