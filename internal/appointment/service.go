package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/metrics"
	redisclient "github.com/ohmpatell/FindYourDoctor/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var statusEvents = map[AppointmentStatus]string{
	StatusConfirmed: EventAppointmentConfirmed,
	StatusCancelled: EventAppointmentCancelled,
	StatusCompleted: EventAppointmentCompleted,
}

type Service struct {
	repo       Repository
	locker     redisclient.Locker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	defaultLoc *time.Location
	now        func() time.Time
}

// NewService wires the booking service. locker and m may be nil; without a
// locker the store's uniqueness rule is the only cross-process guard.
func NewService(repo Repository, locker redisclient.Locker, m *metrics.Metrics, logger zerolog.Logger, defaultLoc *time.Location) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Service{
		repo:       repo,
		locker:     locker,
		metrics:    m,
		logger:     logger.With().Str("component", "booking").Logger(),
		defaultLoc: defaultLoc,
		now:        time.Now,
	}
}

// CreateRequest carries the client's booking intent. The clinic is always
// derived from the doctor.
type CreateRequest struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	PatientConcerns string
}

type doctorContext struct {
	doctor *Doctor
	clinic *Clinic
	loc    *time.Location
}

func (s *Service) loadDoctor(ctx context.Context, doctorID uuid.UUID) (*doctorContext, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	clinic, err := s.repo.GetClinicByID(ctx, doctor.ClinicID)
	if err != nil {
		if errors.Is(err, ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load clinic: %w", err)
	}

	loc, err := clinic.Location(s.defaultLoc)
	if err != nil {
		return nil, err
	}

	return &doctorContext{doctor: doctor, clinic: clinic, loc: loc}, nil
}

// freeSlots runs the calendar and the availability calculation for the
// clinic-local day starting at day.
func (s *Service) freeSlots(ctx context.Context, dc *doctorContext, day time.Time) ([]int, error) {
	openHour, closeHour, err := dc.clinic.OpenInterval(day)
	if err != nil {
		return nil, err
	}

	appts, err := s.repo.ListDoctorAppointments(ctx, dc.doctor.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}

	return FreeSlots(openHour, closeHour, appts, dc.loc), nil
}

// GetAvailability returns the doctor's free hours on isoDate (YYYY-MM-DD),
// read as a calendar date at the doctor's clinic.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, isoDate string) ([]int, error) {
	dc, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day, err := ParseDate(isoDate, dc.loc)
	if err != nil {
		return nil, err
	}

	return s.freeSlots(ctx, dc, day)
}

// Create books a slot for a patient. The availability recheck gives a fast
// rejection; the optional slot lock and the store's uniqueness rule are what
// keep two concurrent creates for one slot from both succeeding.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	dc, err := s.loadDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.now()
	start := req.AppointmentDate.In(dc.loc)
	if start.Before(now) {
		return nil, ErrPastDate
	}
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return nil, ErrInvalidSlotTime
	}

	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		DoctorID:        dc.doctor.ID,
		ClinicID:        dc.doctor.ClinicID,
		AppointmentDate: start.UTC(),
		Status:          StatusScheduled,
		PatientConcerns: req.PatientConcerns,
		TestsPrescribed: []PrescribedTest{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	book := func(ctx context.Context) error {
		free, err := s.freeSlots(ctx, dc, StartOfDay(start, dc.loc))
		if err != nil {
			return err
		}
		if !slices.Contains(free, start.Hour()) {
			s.metrics.BookingConflict(metrics.StagePrecheck)
			return ErrSlotUnavailable
		}

		if err := s.repo.InsertAppointment(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				s.metrics.BookingConflict(metrics.StageStore)
			}
			return err
		}
		return nil
	}

	if s.locker != nil {
		err = s.locker.WithSlotLock(ctx, dc.doctor.ID, start, book)
	} else {
		err = book(ctx)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.BookingConflict(metrics.StageLock)
			err = ErrSlotUnavailable
		}
		if errors.Is(err, ErrSlotUnavailable) {
			s.logger.Debug().
				Str("doctor_id", dc.doctor.ID.String()).
				Time("start", start).
				Msg("slot conflict")
		}
		if IsDomainError(err) || IsReferenceError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.metrics.BookingCreated()
	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"patient_id":       appt.PatientID.String(),
		"doctor_id":        appt.DoctorID.String(),
		"clinic_id":        appt.ClinicID.String(),
		"appointment_date": appt.AppointmentDate,
	})

	return appt, nil
}

// Update applies patch on behalf of actor as one read-modify-write. Any
// rejected field or transition rejects the whole patch.
func (s *Service) Update(ctx context.Context, id uuid.UUID, actor Actor, patch Patch) (*Appointment, error) {
	var change Change

	updated, err := s.repo.UpdateAppointment(ctx, id, func(a *Appointment) (bool, error) {
		c, err := Apply(a, actor, patch, s.now())
		if err != nil {
			return false, err
		}
		change = c
		return !c.Empty(), nil
	})
	if err != nil {
		if IsReferenceError(err) || IsDomainError(err) || IsAuthorizationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if change.StatusChanged() {
		s.metrics.StatusTransition(string(change.From), string(change.To))
		s.logEvent(ctx, updated.ID, statusEvents[change.To], map[string]any{
			"from":       change.From,
			"to":         change.To,
			"actor_id":   actor.ID.String(),
			"actor_role": actor.Role,
		})
	}
	if len(change.Fields) > 0 {
		s.logEvent(ctx, updated.ID, EventAppointmentUpdated, map[string]any{
			"fields":     change.Fields,
			"actor_id":   actor.ID.String(),
			"actor_role": actor.Role,
		})
	}

	return updated, nil
}

// Delete is the administrative hard delete. It ignores the lifecycle and is
// limited to clinic staff.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	if !actor.Role.IsStaff() {
		return unauthorized(actor.Role, "delete appointments")
	}

	deleted, err := s.repo.DeleteAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.metrics.AppointmentDeleted()
	s.logEvent(ctx, deleted.ID, EventAppointmentDeleted, map[string]any{
		"status":     deleted.Status,
		"actor_id":   actor.ID.String(),
		"actor_role": actor.Role,
	})

	return nil
}

// GetAppointment returns one appointment. Patients may only read their own.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	if !actor.Role.Valid() {
		return nil, unauthorized(actor.Role, "read appointments")
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if actor.Role == RoleUser && appt.PatientID != actor.ID {
		return nil, unauthorized(actor.Role, "read another patient's appointment")
	}
	return appt, nil
}

// ListPatientAppointments returns the patient's appointments, oldest first.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, actor Actor) ([]Appointment, error) {
	if !actor.Role.Valid() || (actor.Role == RoleUser && actor.ID != patientID) {
		return nil, unauthorized(actor.Role, "list another patient's appointments")
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appts, err := s.repo.ListPatientAppointments(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// DoctorSchedule is the doctor's day view: every appointment of any status
// on isoDate at the doctor's clinic, oldest first.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, isoDate string, actor Actor) ([]Appointment, error) {
	if !actor.Role.IsStaff() {
		return nil, unauthorized(actor.Role, "view doctor schedules")
	}

	dc, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day, err := ParseDate(isoDate, dc.loc)
	if err != nil {
		return nil, err
	}

	appts, err := s.repo.ListDoctorAppointments(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) ListSpecializations(ctx context.Context) ([]string, error) {
	specs, err := s.repo.ListSpecializations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	return specs, nil
}

func (s *Service) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*DoctorDetail, error) {
	dc, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return &DoctorDetail{Doctor: *dc.doctor, Clinic: dc.clinic}, nil
}

// ListDoctors is the public doctor directory.
func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]DoctorDetail, error) {
	f.Specialization = strings.TrimSpace(f.Specialization)
	f.Name = strings.TrimSpace(f.Name)

	doctors, err := s.repo.ListDoctors(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// ListClinicDoctors is a clinic's roster.
func (s *Service) ListClinicDoctors(ctx context.Context, clinicID uuid.UUID) ([]DoctorDetail, error) {
	if _, err := s.repo.GetClinicByID(ctx, clinicID); err != nil {
		if errors.Is(err, ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	return s.ListDoctors(ctx, DoctorFilter{ClinicID: clinicID})
}

// ListDoctorAppointments returns every appointment on the doctor's index,
// oldest first. Patients cannot see a doctor's book.
func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, actor Actor) ([]Appointment, error) {
	if !actor.Role.IsStaff() {
		return nil, unauthorized(actor.Role, "list a doctor's appointments")
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	appts, err := s.repo.ListDoctorIndexedAppointments(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

// Now is the service clock, exposed so read views agree with booking checks.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	// the request already succeeded; a lost audit row is logged, not returned
	if err := s.repo.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error().
			Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
