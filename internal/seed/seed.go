package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
)

// Writer is implemented by both appointment repositories.
type Writer interface {
	CreateClinic(ctx context.Context, c *appointment.Clinic) error
	CreateDoctor(ctx context.Context, d *appointment.Doctor) error
	CreatePatient(ctx context.Context, p *appointment.Patient) error
}

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// weekly templates a clinic is drawn from; sunday is always closed
var hourTemplates = []appointment.OperatingHours{
	weekdays("08:00", "18:00", nil),
	weekdays("09:00", "17:00", &appointment.DayHours{Open: "09:00", Close: "13:00"}),
	weekdays("07:30", "15:30", nil),
}

func weekdays(open, close string, saturday *appointment.DayHours) appointment.OperatingHours {
	h := appointment.OperatingHours{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		h[d] = appointment.DayHours{Open: open, Close: close}
	}
	if saturday != nil {
		h["saturday"] = *saturday
	}
	return h
}

type Counts struct {
	Clinics          int
	DoctorsPerClinic int
	Patients         int
	// Timezone is stored on every clinic; empty uses the server default.
	Timezone string
}

type Result struct {
	ClinicIDs  []uuid.UUID
	DoctorIDs  []uuid.UUID
	PatientIDs []uuid.UUID
}

type Seeder struct {
	w      Writer
	faker  *gofakeit.Faker
	logger zerolog.Logger
}

// New returns a seeder. A zero seed draws a random one.
func New(w Writer, seed uint64, logger zerolog.Logger) *Seeder {
	return &Seeder{w: w, faker: gofakeit.New(seed), logger: logger}
}

func (s *Seeder) Run(ctx context.Context, c Counts) (*Result, error) {
	res := &Result{}

	for i := 0; i < c.Clinics; i++ {
		clinic := s.clinic(c.Timezone)
		if err := s.w.CreateClinic(ctx, clinic); err != nil {
			return res, fmt.Errorf("seed clinic: %w", err)
		}
		res.ClinicIDs = append(res.ClinicIDs, clinic.ID)

		for j := 0; j < c.DoctorsPerClinic; j++ {
			doctor := s.doctor(clinic.ID, len(res.DoctorIDs))
			if err := s.w.CreateDoctor(ctx, doctor); err != nil {
				return res, fmt.Errorf("seed doctor: %w", err)
			}
			res.DoctorIDs = append(res.DoctorIDs, doctor.ID)
		}
	}
	s.logger.Info().Int("clinics", len(res.ClinicIDs)).Int("doctors", len(res.DoctorIDs)).Msg("clinics seeded")

	for i := 0; i < c.Patients; i++ {
		patient := s.patient(i)
		if err := s.w.CreatePatient(ctx, patient); err != nil {
			return res, fmt.Errorf("seed patient: %w", err)
		}
		res.PatientIDs = append(res.PatientIDs, patient.ID)

		if (i+1)%500 == 0 {
			s.logger.Info().Msgf("patients seeded: %d/%d", i+1, c.Patients)
		}
	}
	s.logger.Info().Int("patients", len(res.PatientIDs)).Msg("patients seeded")

	return res, nil
}

func (s *Seeder) clinic(tz string) *appointment.Clinic {
	phone := s.faker.Phone()
	addr := s.faker.Address()
	return &appointment.Clinic{
		ID:             uuid.New(),
		Name:           s.faker.LastName() + " " + s.faker.RandomString([]string{"Family Clinic", "Medical Centre", "Health Clinic", "Walk-in Clinic"}),
		Address:        addr.Street + ", " + addr.City,
		Phone:          &phone,
		Timezone:       tz,
		OperatingHours: hourTemplates[s.faker.Number(0, len(hourTemplates)-1)],
	}
}

func (s *Seeder) doctor(clinicID uuid.UUID, n int) *appointment.Doctor {
	first, last := s.faker.FirstName(), s.faker.LastName()
	return &appointment.Doctor{
		ID:             uuid.New(),
		ClinicID:       clinicID,
		FirstName:      first,
		LastName:       last,
		Email:          uniqueEmail(first, last, n, "clinic.example.com"),
		Specialization: s.faker.RandomString(specializations),
	}
}

func (s *Seeder) patient(n int) *appointment.Patient {
	first, last := s.faker.FirstName(), s.faker.LastName()
	email := uniqueEmail(first, last, n, s.faker.DomainName())
	return &appointment.Patient{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		Email:     &email,
	}
}

// uniqueEmail includes the ordinal so fake names never collide on the
// unique email columns.
func uniqueEmail(first, last string, n int, domain string) string {
	local := strings.ToLower(strings.Join(strings.Fields(first+" "+last), "."))
	return fmt.Sprintf("%s.%d@%s", local, n, domain)
}
