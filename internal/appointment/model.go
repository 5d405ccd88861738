package appointment

import (
	"time"

	"github.com/google/uuid"
)

// SlotLength is the fixed duration of every bookable slot.
const SlotLength = time.Hour

type Role string

const (
	RoleUser   Role = "USER"
	RoleDoctor Role = "DOCTOR"
	RoleClinic Role = "CLINIC"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleClinic:
		return true
	}
	return false
}

// IsStaff reports whether the role acts on behalf of a clinic.
func (r Role) IsStaff() bool {
	return r == RoleDoctor || r == RoleClinic
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// DayHours holds "HH:MM" open and close times for one weekday.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// OperatingHours maps lowercase weekday names to opening hours. A missing
// weekday means the clinic is closed that day.
type OperatingHours map[string]DayHours

type Clinic struct {
	ID             uuid.UUID
	Name           string
	Address        string
	Phone          *string
	Timezone       string
	OperatingHours OperatingHours
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Doctor struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Specialization string
	AppointmentIDs []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          *string
	AppointmentIDs []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PrescribedTest struct {
	TestName    string `json:"testName"`
	Details     string `json:"details"`
	TestResults string `json:"testResults"`
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	ClinicID        uuid.UUID
	AppointmentDate time.Time
	Status          AppointmentStatus
	PatientConcerns string
	DoctorsNotes    string
	Prescription    string
	TestsPrescribed []PrescribedTest
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPast is the read-time view of an appointment whose slot has started.
// It never changes the stored status.
func (a *Appointment) IsPast(now time.Time) bool {
	return a.AppointmentDate.Before(now)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status          *AppointmentStatus
	PatientConcerns *string
	DoctorsNotes    *string
	Prescription    *string
	TestsPrescribed *[]PrescribedTest
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DoctorDetail is a doctor joined with its clinic.
type DoctorDetail struct {
	Doctor
	Clinic *Clinic
}

// DoctorFilter narrows the doctor directory. Zero fields match every doctor.
type DoctorFilter struct {
	Specialization string // exact match, case-insensitive
	Name           string // substring of first or last name, case-insensitive
	ClinicID       uuid.UUID
}
