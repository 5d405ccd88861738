package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location resolves the clinic's timezone, falling back to fallback when the
// clinic has none configured.
func (c *Clinic) Location(fallback *time.Location) (*time.Location, error) {
	if c.Timezone == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("clinic %s timezone %q: %w", c.ID, c.Timezone, err)
	}
	return loc, nil
}

// OpenInterval returns the half-open hour interval [openHour, closeHour) the
// clinic is open on the given date. The weekday comes from date itself, in
// date's own location. Minutes in the configured times are ignored.
func (c *Clinic) OpenInterval(date time.Time) (openHour, closeHour int, err error) {
	weekday := strings.ToLower(date.Weekday().String())

	hours, ok := c.OperatingHours[weekday]
	if !ok || strings.TrimSpace(hours.Open) == "" || strings.TrimSpace(hours.Close) == "" {
		return 0, 0, &ClinicClosedError{Weekday: weekday}
	}

	openHour, err = parseHour(hours.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s open %q", ErrInvalidOperatingHours, weekday, hours.Open)
	}
	closeHour, err = parseHour(hours.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s close %q", ErrInvalidOperatingHours, weekday, hours.Close)
	}
	if openHour > closeHour {
		return 0, 0, fmt.Errorf("%w: %s opens at %d but closes at %d", ErrInvalidOperatingHours, weekday, openHour, closeHour)
	}

	return openHour, closeHour, nil
}

// Validate checks every configured weekday.
func (h OperatingHours) Validate() error {
	for day, hours := range h {
		if _, err := weekdayByName(day); err != nil {
			return err
		}
		open, err := parseClock(hours.Open)
		if err != nil {
			return fmt.Errorf("%w: %s open %q", ErrInvalidOperatingHours, day, hours.Open)
		}
		closing, err := parseClock(hours.Close)
		if err != nil {
			return fmt.Errorf("%w: %s close %q", ErrInvalidOperatingHours, day, hours.Close)
		}
		if open >= closing {
			return fmt.Errorf("%w: %s open %s is not before close %s", ErrInvalidOperatingHours, day, hours.Open, hours.Close)
		}
	}
	return nil
}

// StartOfDay returns midnight of the calendar day of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseDate parses an ISO "YYYY-MM-DD" date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD: %v", ErrInvalidDate, s, err)
	}
	return d, nil
}

func parseHour(s string) (int, error) {
	hourPart, _, _ := strings.Cut(strings.TrimSpace(s), ":")
	h, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 {
		return 0, fmt.Errorf("hour %d out of range", h)
	}
	return h, nil
}

// parseClock returns minutes since midnight for "HH:MM" or "HH".
func parseClock(s string) (int, error) {
	hourPart, minutePart, hasMinutes := strings.Cut(strings.TrimSpace(s), ":")
	h, err := strconv.Atoi(hourPart)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m := 0
	if hasMinutes {
		m, err = strconv.Atoi(minutePart)
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("bad minute in %q", s)
		}
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("%q is past midnight", s)
	}
	return h*60 + m, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayByName(name string) (time.Weekday, error) {
	d, ok := weekdayNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidOperatingHours, name)
	}
	return d, nil
}
