package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClinics struct {
	*MemoryRepository
	calls int
}

func (c *countingClinics) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c.calls++
	return c.MemoryRepository.GetClinicByID(ctx, id)
}

func TestCachedRepositoryClinicLookups(t *testing.T) {
	ctx := context.Background()
	inner := &countingClinics{MemoryRepository: NewMemoryRepository()}
	clinic := &Clinic{ID: uuid.New(), Name: "Eastgate", OperatingHours: weekdayHours("09:00", "17:00")}
	require.NoError(t, inner.CreateClinic(ctx, clinic))

	repo := NewCachedRepository(inner, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := repo.GetClinicByID(ctx, clinic.ID)
		require.NoError(t, err)
		assert.Equal(t, "Eastgate", got.Name)
	}
	assert.Equal(t, 1, inner.calls)

	repo.InvalidateClinic(clinic.ID)
	_, err := repo.GetClinicByID(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRepositoryDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingClinics{MemoryRepository: NewMemoryRepository()}
	repo := NewCachedRepository(inner, time.Minute)
	id := uuid.New()

	_, err := repo.GetClinicByID(ctx, id)
	assert.ErrorIs(t, err, ErrClinicNotFound)
	_, err = repo.GetClinicByID(ctx, id)
	assert.ErrorIs(t, err, ErrClinicNotFound)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRepositoryDelegatesEverythingElse(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryRepository()
	clinic := &Clinic{ID: uuid.New()}
	doctor := &Doctor{ID: uuid.New(), ClinicID: clinic.ID, Specialization: "Neurology"}
	require.NoError(t, inner.CreateClinic(ctx, clinic))
	require.NoError(t, inner.CreateDoctor(ctx, doctor))

	var repo Repository = NewCachedRepository(inner, time.Minute)

	got, err := repo.GetDoctorByID(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, got.ID)

	specs, err := repo.ListSpecializations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Neurology"}, specs)
}
