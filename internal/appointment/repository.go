package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// UpdateFunc mutates a loaded appointment inside the store's critical section.
// Returning false skips the write; returning an error aborts the update.
type UpdateFunc func(a *Appointment) (bool, error)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListDoctorAppointments returns the doctor's appointments of any status
	// starting in [from, to), ordered by start.
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// ListDoctorIndexedAppointments resolves the doctor's appointment index,
	// ordered by start.
	ListDoctorIndexedAppointments(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
	// ListPatientAppointments resolves the patient's appointment index, ordered by start.
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListSpecializations(ctx context.Context) ([]string, error)
	// ListDoctors returns matching doctors with their clinics, ordered by
	// last name, first name, id.
	ListDoctors(ctx context.Context, f DoctorFilter) ([]DoctorDetail, error)

	// InsertAppointment stores a new appointment and appends its id to the
	// doctor's and patient's indexes. It fails with ErrSlotUnavailable when a
	// non-cancelled appointment already holds (DoctorID, AppointmentDate).
	InsertAppointment(ctx context.Context, a *Appointment) error
	// UpdateAppointment is an atomic read-modify-write of one appointment.
	UpdateAppointment(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Appointment, error)
	// DeleteAppointment removes the appointment and its index entries.
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
