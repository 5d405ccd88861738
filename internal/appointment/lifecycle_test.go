package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		role Role
		want error
	}{
		{StatusScheduled, StatusConfirmed, RoleDoctor, nil},
		{StatusScheduled, StatusConfirmed, RoleClinic, nil},
		{StatusScheduled, StatusConfirmed, RoleUser, ErrUnauthorized},
		{StatusScheduled, StatusCancelled, RoleUser, nil},
		{StatusScheduled, StatusCancelled, RoleDoctor, nil},
		{StatusConfirmed, StatusCancelled, RoleUser, nil},
		{StatusConfirmed, StatusCancelled, RoleClinic, nil},
		{StatusConfirmed, StatusCompleted, RoleDoctor, nil},
		{StatusConfirmed, StatusCompleted, RoleUser, ErrUnauthorized},
		{StatusScheduled, StatusCompleted, RoleDoctor, ErrInvalidTransition},
		{StatusConfirmed, StatusScheduled, RoleClinic, ErrInvalidTransition},
		{StatusScheduled, StatusScheduled, RoleDoctor, ErrNoOpTransition},
		{StatusConfirmed, StatusConfirmed, RoleUser, ErrNoOpTransition},
		{StatusCancelled, StatusCancelled, RoleUser, ErrAlreadyFinalized},
		{StatusCompleted, StatusCancelled, RoleClinic, ErrAlreadyFinalized},
		{StatusCancelled, StatusScheduled, RoleDoctor, ErrAlreadyFinalized},
		{StatusScheduled, "archived", RoleDoctor, ErrInvalidStatus},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to)+"/"+string(tc.role), func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.role)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCanEditField(t *testing.T) {
	assert.True(t, CanEditField(FieldPatientConcerns, RoleUser))
	assert.True(t, CanEditField(FieldPatientConcerns, RoleDoctor))
	assert.False(t, CanEditField(FieldDoctorsNotes, RoleUser))
	assert.False(t, CanEditField(FieldPrescription, RoleUser))
	assert.False(t, CanEditField(FieldTestsPrescribed, RoleUser))
	assert.True(t, CanEditField(FieldTestsPrescribed, RoleClinic))
	assert.False(t, CanEditField("status", RoleClinic))
}

func newAppt(status AppointmentStatus) (*Appointment, uuid.UUID) {
	patient := uuid.New()
	return &Appointment{
		ID:              uuid.New(),
		PatientID:       patient,
		DoctorID:        uuid.New(),
		ClinicID:        uuid.New(),
		AppointmentDate: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Status:          status,
		PatientConcerns: "headache",
	}, patient
}

func TestApply(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("patient edits own concerns", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)

		change, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{PatientConcerns: ptr("migraine")}, now)
		require.NoError(t, err)
		assert.Equal(t, []string{FieldPatientConcerns}, change.Fields)
		assert.False(t, change.StatusChanged())
		assert.Equal(t, "migraine", a.PatientConcerns)
		assert.Equal(t, now, a.UpdatedAt)
	})

	t.Run("stranger user cannot write doctors notes", func(t *testing.T) {
		a, _ := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: RoleUser}, Patch{DoctorsNotes: ptr("fine")}, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Empty(t, a.DoctorsNotes)
	})

	t.Run("owner cannot write doctors notes", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{DoctorsNotes: ptr("fine")}, now)
		var ue *UnauthorizedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, RoleUser, ue.Role)
		assert.Contains(t, ue.Action, FieldDoctorsNotes)
	})

	t.Run("one bad field rejects the whole patch", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{
			PatientConcerns: ptr("fever"),
			Prescription:    ptr("rest"),
		}, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "headache", a.PatientConcerns)
		assert.Empty(t, a.Prescription)
	})

	t.Run("bad transition rejects field edits too", func(t *testing.T) {
		a, _ := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{
			DoctorsNotes: ptr("seen"),
			Status:       ptr(StatusCompleted),
		}, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, a.DoctorsNotes)
		assert.Equal(t, StatusScheduled, a.Status)
	})

	t.Run("doctor confirms and prescribes", func(t *testing.T) {
		a, _ := newAppt(StatusScheduled)
		tests := []PrescribedTest{{TestName: "CBC", Details: "fasting"}}

		change, err := Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{
			Status:          ptr(StatusConfirmed),
			Prescription:    ptr("ibuprofen"),
			TestsPrescribed: &tests,
		}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, change.From)
		assert.Equal(t, StatusConfirmed, change.To)
		assert.ElementsMatch(t, []string{FieldPrescription, FieldTestsPrescribed}, change.Fields)
		assert.Equal(t, StatusConfirmed, a.Status)
		assert.Equal(t, tests, a.TestsPrescribed)

		tests[0].TestName = "mutated"
		assert.Equal(t, "CBC", a.TestsPrescribed[0].TestName)
	})

	t.Run("terminal appointment is locked", func(t *testing.T) {
		a, patient := newAppt(StatusCompleted)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: RoleClinic}, Patch{Status: ptr(StatusCancelled)}, now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)

		_, err = Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{PatientConcerns: ptr("later")}, now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("cancelling twice", func(t *testing.T) {
		a, patient := newAppt(StatusCancelled)

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{Status: ptr(StatusCancelled)}, now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("unchanged values are not writes", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)
		before := *a

		change, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{PatientConcerns: ptr("headache")}, now)
		require.NoError(t, err)
		assert.True(t, change.Empty())
		assert.Equal(t, before, *a)
	})

	t.Run("owner cannot send doctors notes even when unchanged", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)
		before := *a

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{DoctorsNotes: ptr("")}, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, before, *a)
	})

	t.Run("unchanged forbidden field blocks a cancel", func(t *testing.T) {
		a, patient := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{
			Status:       ptr(StatusCancelled),
			DoctorsNotes: ptr(""),
		}, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, StatusScheduled, a.Status)
	})

	t.Run("unchanged field on a completed appointment is finalized", func(t *testing.T) {
		a, patient := newAppt(StatusCompleted)

		_, err := Apply(a, Actor{ID: patient, Role: RoleUser}, Patch{PatientConcerns: ptr("headache")}, now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)

		_, err = Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{DoctorsNotes: ptr("")}, now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("confirm with an unchanged note only changes status", func(t *testing.T) {
		a, _ := newAppt(StatusScheduled)

		change, err := Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{
			Status:          ptr(StatusConfirmed),
			PatientConcerns: ptr("headache"),
		}, now)
		require.NoError(t, err)
		assert.Empty(t, change.Fields)
		assert.True(t, change.StatusChanged())
		assert.Equal(t, StatusConfirmed, a.Status)
	})

	t.Run("same status is a no-op transition", func(t *testing.T) {
		a, _ := newAppt(StatusConfirmed)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{Status: ptr(StatusConfirmed)}, now)
		assert.ErrorIs(t, err, ErrNoOpTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		a, _ := newAppt(StatusConfirmed)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: RoleDoctor}, Patch{Status: ptr(AppointmentStatus("lost"))}, now)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("unknown role", func(t *testing.T) {
		a, _ := newAppt(StatusScheduled)

		_, err := Apply(a, Actor{ID: uuid.New(), Role: "ADMIN"}, Patch{PatientConcerns: ptr("x")}, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
