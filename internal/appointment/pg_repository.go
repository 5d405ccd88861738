package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// likeEscaper quotes LIKE wildcards in user input; backslash is the default
// escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const appointmentCols = `id, patient_id, doctor_id, clinic_id, appointment_date, status,
	patient_concerns, doctors_notes, prescription, tests_prescribed, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	var hours []byte

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.Phone,
		&c.Timezone,
		&hours,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.OperatingHours); err != nil {
			return nil, fmt.Errorf("decode operating hours for clinic %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var ids []string

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.FirstName,
		&d.LastName,
		&d.Email,
		&d.Specialization,
		&ids,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.AppointmentIDs, err = parseIDs(ids)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var ids []string

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&ids,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.AppointmentIDs, err = parseIDs(ids)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var tests []byte

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.AppointmentDate,
		&a.Status,
		&a.PatientConcerns,
		&a.DoctorsNotes,
		&a.Prescription,
		&tests,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if len(tests) > 0 {
		if err := json.Unmarshal(tests, &a.TestsPrescribed); err != nil {
			return nil, fmt.Errorf("decode tests for appointment %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse appointment index entry %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Interface methods

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, address, phone, timezone, operating_hours, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, first_name, last_name, email, specialization,
		       appointment_ids::text[], created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, appointment_ids::text[], created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date >= $2
		  AND appointment_date < $3
		ORDER BY appointment_date ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = ANY (SELECT unnest(appointment_ids) FROM patients WHERE id = $1)
		ORDER BY appointment_date ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListDoctorIndexedAppointments(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = ANY (SELECT unnest(appointment_ids) FROM doctors WHERE id = $1)
		ORDER BY appointment_date ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListDoctors(ctx context.Context, f DoctorFilter) ([]DoctorDetail, error) {
	var clinicID *uuid.UUID
	if f.ClinicID != uuid.Nil {
		clinicID = &f.ClinicID
	}
	namePattern := ""
	if f.Name != "" {
		namePattern = "%" + likeEscaper.Replace(f.Name) + "%"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.clinic_id, d.first_name, d.last_name, d.email, d.specialization,
		       d.appointment_ids::text[], d.created_at, d.updated_at,
		       c.id, c.name, c.address, c.phone, c.timezone, c.operating_hours, c.created_at, c.updated_at
		FROM doctors d
		JOIN clinics c ON c.id = d.clinic_id
		WHERE ($1::text = '' OR lower(d.specialization) = lower($1))
		  AND ($2::text = '' OR d.first_name ILIKE $2 OR d.last_name ILIKE $2)
		  AND ($3::uuid IS NULL OR d.clinic_id = $3)
		ORDER BY d.last_name, d.first_name, d.id
	`, f.Specialization, namePattern, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []DoctorDetail{}
	for rows.Next() {
		var (
			d     Doctor
			c     Clinic
			ids   []string
			hours []byte
		)
		if err := rows.Scan(
			&d.ID, &d.ClinicID, &d.FirstName, &d.LastName, &d.Email, &d.Specialization,
			&ids, &d.CreatedAt, &d.UpdatedAt,
			&c.ID, &c.Name, &c.Address, &c.Phone, &c.Timezone, &hours, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if d.AppointmentIDs, err = parseIDs(ids); err != nil {
			return nil, err
		}
		if len(hours) > 0 {
			if err := json.Unmarshal(hours, &c.OperatingHours); err != nil {
				return nil, fmt.Errorf("decode operating hours for clinic %s: %w", c.ID, err)
			}
		}
		result = append(result, DoctorDetail{Doctor: d, Clinic: &c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListSpecializations(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT specialization FROM doctors ORDER BY specialization`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	tests, err := json.Marshal(nonNilTests(a.TestsPrescribed))
	if err != nil {
		return fmt.Errorf("encode tests: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	// The partial unique index on (doctor_id, appointment_date) is the final
	// authority on double booking.
	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (doctor_id, appointment_date) WHERE status <> 'cancelled' DO NOTHING
		RETURNING id
	`, a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.AppointmentDate, a.Status,
		a.PatientConcerns, a.DoctorsNotes, a.Prescription, tests, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE doctors
		SET appointment_ids = array_append(appointment_ids, $2), updated_at = now()
		WHERE id = $1
	`, a.DoctorID, a.ID)
	if err != nil {
		return fmt.Errorf("index appointment on doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}

	tag, err = tx.Exec(ctx, `
		UPDATE patients
		SET appointment_ids = array_append(appointment_ids, $2), updated_at = now()
		WHERE id = $1
	`, a.PatientID, a.ID)
	if err != nil {
		return fmt.Errorf("index appointment on patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("commit insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	write, err := fn(a)
	if err != nil {
		return nil, err
	}
	if !write {
		return a, nil
	}

	tests, err := json.Marshal(nonNilTests(a.TestsPrescribed))
	if err != nil {
		return nil, fmt.Errorf("encode tests: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    patient_concerns = $3,
		    doctors_notes = $4,
		    prescription = $5,
		    tests_prescribed = $6,
		    updated_at = $7
		WHERE id = $1
	`, a.ID, a.Status, a.PatientConcerns, a.DoctorsNotes, a.Prescription, tests, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update appointment: %w", err)
	}
	return a, nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentCols, id))
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE doctors SET appointment_ids = array_remove(appointment_ids, $2), updated_at = now() WHERE id = $1
	`, a.DoctorID, a.ID); err != nil {
		return nil, fmt.Errorf("unindex appointment on doctor: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE patients SET appointment_ids = array_remove(appointment_ids, $2), updated_at = now() WHERE id = $1
	`, a.PatientID, a.ID); err != nil {
		return nil, fmt.Errorf("unindex appointment on patient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete appointment: %w", err)
	}
	return a, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Directory writes, used by seeding.

func (r *PgRepository) CreateClinic(ctx context.Context, c *Clinic) error {
	hours, err := json.Marshal(c.OperatingHours)
	if err != nil {
		return fmt.Errorf("encode operating hours: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO clinics (id, name, address, phone, timezone, operating_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, c.ID, c.Name, c.Address, c.Phone, c.Timezone, hours)
	if err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, clinic_id, first_name, last_name, email, specialization, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, d.ID, d.ClinicID, d.FirstName, d.LastName, d.Email, d.Specialization)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, p.ID, p.FirstName, p.LastName, p.Email)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func nonNilTests(tests []PrescribedTest) []PrescribedTest {
	if tests == nil {
		return []PrescribedTest{}
	}
	return tests
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
