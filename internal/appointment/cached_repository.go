package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CachedRepository serves clinic lookups from a short lived in-process cache.
// Clinics change rarely and are read on every availability and booking call.
type CachedRepository struct {
	Repository
	clinics *cache.Cache
}

func NewCachedRepository(inner Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: inner,
		clinics:    cache.New(ttl, 2*ttl),
	}
}

func (r *CachedRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	if v, ok := r.clinics.Get(id.String()); ok {
		c := v.(Clinic)
		return &c, nil
	}

	c, err := r.Repository.GetClinicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.clinics.Set(id.String(), *c, cache.DefaultExpiration)
	return c, nil
}

// InvalidateClinic drops a cached clinic, e.g. after its hours were edited.
func (r *CachedRepository) InvalidateClinic(id uuid.UUID) {
	r.clinics.Delete(id.String())
}
