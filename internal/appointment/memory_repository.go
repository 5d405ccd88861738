package appointment

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	start    int64
}

func keyFor(a *Appointment) slotKey {
	return slotKey{doctorID: a.DoctorID, start: a.AppointmentDate.UnixNano()}
}

// MemoryRepository keeps everything in process memory. It honours the same
// uniqueness rule as the Postgres schema and is used for the memory store
// driver and in tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	clinics      map[uuid.UUID]Clinic
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	// slots maps every non-cancelled (doctor, start) to its appointment.
	slots  map[slotKey]uuid.UUID
	events []EventLog
	nextEv int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clinics:      make(map[uuid.UUID]Clinic),
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
		slots:        make(map[slotKey]uuid.UUID),
	}
}

func cloneAppointment(a Appointment) Appointment {
	a.TestsPrescribed = slices.Clone(a.TestsPrescribed)
	return a
}

func (r *MemoryRepository) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.AppointmentIDs = slices.Clone(d.AppointmentIDs)
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.AppointmentIDs = slices.Clone(p.AppointmentIDs)
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a = cloneAppointment(a)
	return &a, nil
}

func (r *MemoryRepository) ListDoctorAppointments(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if a.AppointmentDate.Before(from) || !a.AppointmentDate.Before(to) {
			continue
		}
		result = append(result, cloneAppointment(a))
	}
	sortByDate(result)
	return result, nil
}

func (r *MemoryRepository) ListDoctorIndexedAppointments(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[doctorID]
	if !ok {
		return nil, nil
	}
	return r.resolve(d.AppointmentIDs), nil
}

func (r *MemoryRepository) ListPatientAppointments(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[patientID]
	if !ok {
		return nil, nil
	}
	return r.resolve(p.AppointmentIDs), nil
}

// resolve looks up indexed ids. Callers hold r.mu.
func (r *MemoryRepository) resolve(ids []uuid.UUID) []Appointment {
	result := make([]Appointment, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.appointments[id]; ok {
			result = append(result, cloneAppointment(a))
		}
	}
	sortByDate(result)
	return result
}

func (r *MemoryRepository) ListDoctors(_ context.Context, f DoctorFilter) ([]DoctorDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := strings.ToLower(f.Name)
	result := []DoctorDetail{}
	for _, d := range r.doctors {
		if f.ClinicID != uuid.Nil && d.ClinicID != f.ClinicID {
			continue
		}
		if f.Specialization != "" && !strings.EqualFold(d.Specialization, f.Specialization) {
			continue
		}
		if name != "" &&
			!strings.Contains(strings.ToLower(d.FirstName), name) &&
			!strings.Contains(strings.ToLower(d.LastName), name) {
			continue
		}

		d.AppointmentIDs = slices.Clone(d.AppointmentIDs)
		detail := DoctorDetail{Doctor: d}
		if c, ok := r.clinics[d.ClinicID]; ok {
			detail.Clinic = &c
		}
		result = append(result, detail)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID.String() < b.ID.String()
	})
	return result, nil
}

func (r *MemoryRepository) ListSpecializations(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []string
	for _, d := range r.doctors {
		if _, ok := seen[d.Specialization]; ok {
			continue
		}
		seen[d.Specialization] = struct{}{}
		result = append(result, d.Specialization)
	}
	sort.Strings(result)
	return result, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(a)
	if a.Status != StatusCancelled {
		if _, taken := r.slots[key]; taken {
			return ErrSlotUnavailable
		}
	}

	d, ok := r.doctors[a.DoctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	p, ok := r.patients[a.PatientID]
	if !ok {
		return ErrPatientNotFound
	}

	r.appointments[a.ID] = cloneAppointment(*a)
	if a.Status != StatusCancelled {
		r.slots[key] = a.ID
	}

	d.AppointmentIDs = append(slices.Clone(d.AppointmentIDs), a.ID)
	r.doctors[d.ID] = d
	p.AppointmentIDs = append(slices.Clone(p.AppointmentIDs), a.ID)
	r.patients[p.ID] = p

	return nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, id uuid.UUID, fn UpdateFunc) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	working := cloneAppointment(stored)
	write, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if !write {
		return &working, nil
	}

	if stored.Status != StatusCancelled && working.Status == StatusCancelled {
		delete(r.slots, keyFor(&stored))
	}
	r.appointments[id] = cloneAppointment(working)

	return &working, nil
}

func (r *MemoryRepository) DeleteAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	delete(r.appointments, id)
	if key := keyFor(&a); r.slots[key] == id {
		delete(r.slots, key)
	}
	if d, ok := r.doctors[a.DoctorID]; ok {
		d.AppointmentIDs = removeID(d.AppointmentIDs, id)
		r.doctors[d.ID] = d
	}
	if p, ok := r.patients[a.PatientID]; ok {
		p.AppointmentIDs = removeID(p.AppointmentIDs, id)
		r.patients[p.ID] = p
	}

	return &a, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEv++
	ev.ID = r.nextEv
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.events)
}

func (r *MemoryRepository) CreateClinic(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp(&c.CreatedAt, &c.UpdatedAt)
	r.clinics[c.ID] = *c
	return nil
}

func (r *MemoryRepository) CreateDoctor(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clinics[d.ClinicID]; !ok {
		return ErrClinicNotFound
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	stored := *d
	stored.AppointmentIDs = slices.Clone(d.AppointmentIDs)
	r.doctors[d.ID] = stored
	return nil
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp(&p.CreatedAt, &p.UpdatedAt)
	stored := *p
	stored.AppointmentIDs = slices.Clone(p.AppointmentIDs)
	r.patients[p.ID] = stored
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(slices.Clone(ids), func(x uuid.UUID) bool { return x == id })
}

func sortByDate(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].AppointmentDate.Before(appts[j].AppointmentDate)
	})
}
