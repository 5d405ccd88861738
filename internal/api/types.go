package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id" validate:"required,uuid"`
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	AppointmentDate string `json:"appointment_date" validate:"required"`
	PatientConcerns string `json:"patient_concerns" validate:"max=2000"`
}

type PrescribedTestDTO struct {
	TestName    string `json:"test_name" validate:"required,max=200"`
	Details     string `json:"details" validate:"max=2000"`
	TestResults string `json:"test_results" validate:"max=4000"`
}

// UpdateAppointmentRequest is a partial update; absent fields are untouched.
type UpdateAppointmentRequest struct {
	Status          *string              `json:"status"`
	PatientConcerns *string              `json:"patient_concerns" validate:"omitempty,max=2000"`
	DoctorsNotes    *string              `json:"doctors_notes" validate:"omitempty,max=4000"`
	Prescription    *string              `json:"prescription" validate:"omitempty,max=4000"`
	TestsPrescribed *[]PrescribedTestDTO `json:"tests_prescribed" validate:"omitempty,dive"`
}

func (req UpdateAppointmentRequest) toPatch() appointment.Patch {
	p := appointment.Patch{
		PatientConcerns: req.PatientConcerns,
		DoctorsNotes:    req.DoctorsNotes,
		Prescription:    req.Prescription,
	}
	if req.Status != nil {
		s := appointment.AppointmentStatus(*req.Status)
		p.Status = &s
	}
	if req.TestsPrescribed != nil {
		tests := make([]appointment.PrescribedTest, 0, len(*req.TestsPrescribed))
		for _, t := range *req.TestsPrescribed {
			tests = append(tests, appointment.PrescribedTest{
				TestName:    t.TestName,
				Details:     t.Details,
				TestResults: t.TestResults,
			})
		}
		p.TestsPrescribed = &tests
	}
	return p
}

type AppointmentResponse struct {
	ID              uuid.UUID           `json:"id"`
	PatientID       uuid.UUID           `json:"patient_id"`
	DoctorID        uuid.UUID           `json:"doctor_id"`
	ClinicID        uuid.UUID           `json:"clinic_id"`
	AppointmentDate time.Time           `json:"appointment_date"`
	Status          string              `json:"status"`
	Past            bool                `json:"past"`
	PatientConcerns string              `json:"patient_concerns"`
	DoctorsNotes    string              `json:"doctors_notes"`
	Prescription    string              `json:"prescription"`
	TestsPrescribed []PrescribedTestDTO `json:"tests_prescribed"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment, now time.Time) AppointmentResponse {
	tests := make([]PrescribedTestDTO, 0, len(a.TestsPrescribed))
	for _, t := range a.TestsPrescribed {
		tests = append(tests, PrescribedTestDTO{
			TestName:    t.TestName,
			Details:     t.Details,
			TestResults: t.TestResults,
		})
	}
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		ClinicID:        a.ClinicID,
		AppointmentDate: a.AppointmentDate,
		Status:          string(a.Status),
		Past:            a.IsPast(now),
		PatientConcerns: a.PatientConcerns,
		DoctorsNotes:    a.DoctorsNotes,
		Prescription:    a.Prescription,
		TestsPrescribed: tests,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointmentList(appts []appointment.Appointment, now time.Time) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i], now))
	}
	return out
}

type AvailabilityResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	FreeSlots []int     `json:"freeSlots"`
}

type ClinicSummary struct {
	ID             uuid.UUID                  `json:"id"`
	Name           string                     `json:"name"`
	Address        string                     `json:"address"`
	Phone          *string                    `json:"phone,omitempty"`
	Timezone       string                     `json:"timezone,omitempty"`
	OperatingHours appointment.OperatingHours `json:"operating_hours"`
}

type DoctorResponse struct {
	ID             uuid.UUID      `json:"id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Email          string         `json:"email"`
	Specialization string         `json:"specialization"`
	Clinic         *ClinicSummary `json:"clinic,omitempty"`
}

func toDoctorResponse(d *appointment.DoctorDetail) DoctorResponse {
	resp := DoctorResponse{
		ID:             d.ID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Specialization: d.Specialization,
	}
	if d.Clinic != nil {
		resp.Clinic = &ClinicSummary{
			ID:             d.Clinic.ID,
			Name:           d.Clinic.Name,
			Address:        d.Clinic.Address,
			Phone:          d.Clinic.Phone,
			Timezone:       d.Clinic.Timezone,
			OperatingHours: d.Clinic.OperatingHours,
		}
	}
	return resp
}

func toDoctorList(doctors []appointment.DoctorDetail) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(doctors))
	for i := range doctors {
		out = append(out, toDoctorResponse(&doctors[i]))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
