package appointment

import (
	"errors"
	"fmt"
)

// Domain errors. They are user actionable and never retried automatically.
var (
	ErrClinicClosed          = errors.New("clinic is closed")
	ErrInvalidOperatingHours = errors.New("invalid clinic operating hours")
	ErrPastDate              = errors.New("appointment date is in the past")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidSlotTime       = errors.New("appointment must start on a whole hour")
	ErrSlotUnavailable       = errors.New("slot is not available")
	ErrNoOpTransition        = errors.New("appointment already has the requested status")
	ErrAlreadyFinalized      = errors.New("appointment is already finalized")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvalidStatus         = errors.New("unknown appointment status")
)

// ErrUnauthorized is matched by every *UnauthorizedError.
var ErrUnauthorized = errors.New("unauthorized")

// UnauthorizedError names the role and the field or transition it was refused.
type UnauthorizedError struct {
	Role   Role
	Action string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %s is not allowed to %s", e.Role, e.Action)
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func unauthorized(role Role, format string, args ...any) error {
	return &UnauthorizedError{Role: role, Action: fmt.Sprintf(format, args...)}
}

// ClinicClosedError is returned when the clinic has no usable hours on a weekday.
type ClinicClosedError struct {
	Weekday string
}

func (e *ClinicClosedError) Error() string {
	return fmt.Sprintf("clinic is closed on %s", e.Weekday)
}

func (e *ClinicClosedError) Is(target error) bool {
	return target == ErrClinicClosed
}

func IsReferenceError(err error) bool {
	return errors.Is(err, ErrClinicNotFound) ||
		errors.Is(err, ErrDoctorNotFound) ||
		errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrAppointmentNotFound)
}

func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrClinicClosed,
		ErrInvalidOperatingHours,
		ErrPastDate,
		ErrInvalidDate,
		ErrInvalidSlotTime,
		ErrSlotUnavailable,
		ErrNoOpTransition,
		ErrAlreadyFinalized,
		ErrInvalidTransition,
		ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
