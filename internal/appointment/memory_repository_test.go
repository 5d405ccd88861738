package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*MemoryRepository, *Doctor, *Patient) {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	clinic := &Clinic{ID: uuid.New(), Name: "Northside"}
	doctor := &Doctor{ID: uuid.New(), ClinicID: clinic.ID, Specialization: "Pediatrics"}
	patient := &Patient{ID: uuid.New()}
	require.NoError(t, repo.CreateClinic(ctx, clinic))
	require.NoError(t, repo.CreateDoctor(ctx, doctor))
	require.NoError(t, repo.CreatePatient(ctx, patient))
	return repo, doctor, patient
}

func memAppt(doctor *Doctor, patient *Patient, at time.Time) *Appointment {
	return &Appointment{
		ID:              uuid.New(),
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		ClinicID:        doctor.ClinicID,
		AppointmentDate: at,
		Status:          StatusScheduled,
	}
}

func TestMemoryInsertUniqueness(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at)))

	// the same instant expressed in another zone is the same slot
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at.In(toronto))), ErrSlotUnavailable)

	// another doctor may take the same hour
	other := &Doctor{ID: uuid.New(), ClinicID: doctor.ClinicID}
	require.NoError(t, repo.CreateDoctor(ctx, other))
	assert.NoError(t, repo.InsertAppointment(ctx, memAppt(other, patient, at)))
}

func TestMemoryInsertUnknownReferences(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	a := memAppt(doctor, patient, at)
	a.DoctorID = uuid.New()
	assert.ErrorIs(t, repo.InsertAppointment(ctx, a), ErrDoctorNotFound)

	a = memAppt(doctor, patient, at)
	a.PatientID = uuid.New()
	assert.ErrorIs(t, repo.InsertAppointment(ctx, a), ErrPatientNotFound)

	// failed inserts must not hold the slot
	assert.NoError(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at)))
}

func TestMemoryUpdateCancelReleasesSlot(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	a := memAppt(doctor, patient, at)
	require.NoError(t, repo.InsertAppointment(ctx, a))

	_, err := repo.UpdateAppointment(ctx, a.ID, func(x *Appointment) (bool, error) {
		x.Status = StatusCancelled
		return true, nil
	})
	require.NoError(t, err)

	assert.NoError(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at)))
}

func TestMemoryUpdateSkipsWriteAndIsolatesCopies(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	a := memAppt(doctor, patient, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	a.TestsPrescribed = []PrescribedTest{{TestName: "X-ray"}}
	require.NoError(t, repo.InsertAppointment(ctx, a))

	_, err := repo.UpdateAppointment(ctx, a.ID, func(x *Appointment) (bool, error) {
		x.DoctorsNotes = "discarded"
		return false, nil
	})
	require.NoError(t, err)

	got, err := repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DoctorsNotes)

	got.TestsPrescribed[0].TestName = "changed"
	again, err := repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "X-ray", again.TestsPrescribed[0].TestName)

	_, err = repo.UpdateAppointment(ctx, uuid.New(), func(*Appointment) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryDeleteRemovesIndexes(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	keep := memAppt(doctor, patient, at.Add(time.Hour))
	drop := memAppt(doctor, patient, at)
	require.NoError(t, repo.InsertAppointment(ctx, keep))
	require.NoError(t, repo.InsertAppointment(ctx, drop))

	deleted, err := repo.DeleteAppointment(ctx, drop.ID)
	require.NoError(t, err)
	assert.Equal(t, drop.ID, deleted.ID)

	d, err := repo.GetDoctorByID(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep.ID}, d.AppointmentIDs)

	p, err := repo.GetPatientByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep.ID}, p.AppointmentIDs)

	list, err := repo.ListPatientAppointments(ctx, patient.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.NoError(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at)))

	_, err = repo.DeleteAppointment(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryListDoctorAppointmentsWindow(t *testing.T) {
	repo, doctor, patient := seedMemory(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{
		day.Add(15 * time.Hour),
		day.Add(9 * time.Hour),
		day.Add(-time.Hour),
		day.Add(24 * time.Hour),
	} {
		require.NoError(t, repo.InsertAppointment(ctx, memAppt(doctor, patient, at)))
	}

	got, err := repo.ListDoctorAppointments(ctx, doctor.ID, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].AppointmentDate.Hour())
	assert.Equal(t, 15, got[1].AppointmentDate.Hour())
}

func TestMemoryCreateDoctorNeedsClinic(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.CreateDoctor(context.Background(), &Doctor{ID: uuid.New(), ClinicID: uuid.New()})
	assert.ErrorIs(t, err, ErrClinicNotFound)
}
