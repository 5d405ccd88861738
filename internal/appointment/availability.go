package appointment

import "time"

// FreeSlots returns every hour in [openHour, closeHour) not taken by one of
// the given appointments, in ascending order. Cancelled appointments free
// their hour; every other status keeps it booked. Appointment hours are read
// in loc.
func FreeSlots(openHour, closeHour int, appts []Appointment, loc *time.Location) []int {
	booked := make(map[int]struct{}, len(appts))
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		booked[a.AppointmentDate.In(loc).Hour()] = struct{}{}
	}

	free := make([]int, 0, closeHour-openHour)
	for h := openHour; h < closeHour; h++ {
		if _, taken := booked[h]; taken {
			continue
		}
		free = append(free, h)
	}
	return free
}
