package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
)

// BookingService is the slice of the booking service the HTTP layer uses.
type BookingService interface {
	GetAvailability(ctx context.Context, doctorID uuid.UUID, isoDate string) ([]int, error)
	Create(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, actor appointment.Actor, patch appointment.Patch) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID, actor appointment.Actor) error
	GetAppointment(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID, actor appointment.Actor) ([]appointment.Appointment, error)
	DoctorSchedule(ctx context.Context, doctorID uuid.UUID, isoDate string, actor appointment.Actor) ([]appointment.Appointment, error)
	ListSpecializations(ctx context.Context) ([]string, error)
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*appointment.DoctorDetail, error)
	ListDoctors(ctx context.Context, f appointment.DoctorFilter) ([]appointment.DoctorDetail, error)
	ListClinicDoctors(ctx context.Context, clinicID uuid.UUID) ([]appointment.DoctorDetail, error)
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, actor appointment.Actor) ([]appointment.Appointment, error)
	Now() time.Time
}

type Handlers struct {
	svc    BookingService
	logger zerolog.Logger
}

func NewHandlers(svc BookingService, logger zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) requireActor(w http.ResponseWriter, r *http.Request) (appointment.Actor, bool) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_token", err.Error())
		return appointment.Actor{}, false
	}
	return actor, true
}

func (h *Handlers) ListSpecializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.ListSpecializations(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if specs == nil {
		specs = []string{}
	}
	writeJSON(w, http.StatusOK, specs)
}

func (h *Handlers) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.GetDoctor(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(detail))
}

func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctors, err := h.svc.ListDoctors(r.Context(), appointment.DoctorFilter{
		Specialization: q.Get("specialization"),
		Name:           q.Get("name"),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorList(doctors))
}

func (h *Handlers) ListClinicDoctors(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	doctors, err := h.svc.ListClinicDoctors(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorList(doctors))
}

func (h *Handlers) ListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	appts, err := h.svc.ListDoctorAppointments(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts, h.svc.Now()))
}

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter (YYYY-MM-DD) is required")
		return
	}

	slots, err := h.svc.GetAvailability(r.Context(), id, date)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{DoctorID: id, Date: date, FreeSlots: slots})
}

func (h *Handlers) DoctorSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter (YYYY-MM-DD) is required")
		return
	}

	appts, err := h.svc.DoctorSchedule(r.Context(), id, date, actor)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts, h.svc.Now()))
}

func (h *Handlers) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// uuid format is already validated
	patientID := uuid.MustParse(req.PatientID)
	doctorID := uuid.MustParse(req.DoctorID)

	at, err := time.Parse(time.RFC3339, req.AppointmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be RFC3339 with an offset")
		return
	}

	if actor.Role == appointment.RoleUser && actor.ID != patientID {
		writeError(w, http.StatusForbidden, "unauthorized", "patients may only book for themselves")
		return
	}

	appt, err := h.svc.Create(r.Context(), appointment.CreateRequest{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: at,
		PatientConcerns: req.PatientConcerns,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, h.svc.Now()))
}

func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.svc.Now()))
}

func (h *Handlers) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	appt, err := h.svc.Update(r.Context(), id, actor, req.toPatch())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.svc.Now()))
}

func (h *Handlers) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, actor); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	appts, err := h.svc.ListPatientAppointments(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts, h.svc.Now()))
}
