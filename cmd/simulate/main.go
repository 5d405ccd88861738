package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/api"
	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
	"github.com/ohmpatell/FindYourDoctor/internal/config"
	"github.com/ohmpatell/FindYourDoctor/internal/db"
	"github.com/ohmpatell/FindYourDoctor/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	DaysAhead    int
	// HotSlots is how many of the earliest free slots bookers aim at;
	// small values force same-slot races.
	HotSlots    int
	PostgresDSN string
	JWTSecret   string
	DefaultTZ   *time.Location
}

type booked struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

type DataPool struct {
	Doctors      []uuid.UUID
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []booked
	zones        sync.Map // doctor id -> *time.Location
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// opStats collects outcomes and latencies for one kind of request.
type opStats struct {
	total     atomic.Int64
	ok        atomic.Int64
	conflicts atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

// Record counts one request. conflict only matters when ok is false.
func (o *opStats) Record(latency time.Duration, ok, conflict bool) {
	o.total.Add(1)
	switch {
	case ok:
		o.ok.Add(1)
	case conflict:
		o.conflicts.Add(1)
	default:
		o.failures.Add(1)
	}

	o.mu.Lock()
	o.latencies = append(o.latencies, latency)
	o.mu.Unlock()
}

type latencySummary struct {
	Mean, Min, Max, P50, P95, P99 time.Duration
}

func (o *opStats) Summary() latencySummary {
	o.mu.Lock()
	sorted := slices.Clone(o.latencies)
	o.mu.Unlock()

	if len(sorted) == 0 {
		return latencySummary{}
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	at := func(p int) time.Duration {
		return sorted[min(len(sorted)*p/100, len(sorted)-1)]
	}

	return latencySummary{
		Mean: sum / time.Duration(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  at(50),
		P95:  at(95),
		P99:  at(99),
	}
}

type Metrics struct {
	Availability opStats
	Booking      opStats
	Cancel       opStats
	ReadByID     opStats
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	auth    *api.Authenticator
	tokens  sync.Map // patient id -> bearer token
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Int("hot_slots", cfg.HotSlots).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		auth:   api.NewAuthenticator(cfg.JWTSecret),
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("app", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL:   config.EnvString("SIM_API_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:     config.EnvDuration("SIM_DURATION", 30*time.Second),
		Workers:      config.EnvInt("SIM_WORKERS", 10),
		BookingRatio: config.EnvFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  config.EnvFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    config.EnvFloat("SIM_READ_RATIO", 0.4),
		DoctorLimit:  config.EnvInt("SIM_DOCTOR_LIMIT", 20),
		PatientLimit: config.EnvInt("SIM_PATIENT_LIMIT", 4000),
		DaysAhead:    config.EnvInt("SIM_DAYS_AHEAD", 5),
		HotSlots:     config.EnvInt("SIM_HOT_SLOTS", 2),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
		DefaultTZ:    baseCfg.DefaultLocation,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 || cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD and SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	doctors, err := loadIDs(ctx, pool, `SELECT id FROM doctors ORDER BY id LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}

	return &DataPool{Doctors: doctors, Patients: patients}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				s.doReadByID(ctx, rng)
			}
		}
	}
}

func (s *Simulator) token(patientID uuid.UUID) string {
	if v, ok := s.tokens.Load(patientID); ok {
		return v.(string)
	}
	tok, err := s.auth.IssueToken(appointment.Actor{ID: patientID, Role: appointment.RoleUser}, time.Hour)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("issue token")
	}
	s.tokens.Store(patientID, tok)
	return tok
}

func (s *Simulator) send(ctx context.Context, method, path, token string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// zone returns the doctor's clinic timezone, looked up once.
func (s *Simulator) zone(ctx context.Context, doctorID uuid.UUID) *time.Location {
	if v, ok := s.pool.zones.Load(doctorID); ok {
		return v.(*time.Location)
	}

	loc := s.config.DefaultTZ
	var doc api.DoctorResponse
	if code, err := s.send(ctx, http.MethodGet, "/doctors/"+doctorID.String(), "", nil, &doc); err == nil && code == http.StatusOK {
		if doc.Clinic != nil && doc.Clinic.Timezone != "" {
			if l, err := time.LoadLocation(doc.Clinic.Timezone); err == nil {
				loc = l
			}
		}
	}
	s.pool.zones.Store(doctorID, loc)
	return loc
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	loc := s.zone(ctx, doctorID)
	day := time.Now().In(loc).AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
	date := day.Format(time.DateOnly)

	start := time.Now()
	var avail api.AvailabilityResponse
	code, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/availability?date=%s", doctorID, date), "", nil, &avail)
	s.metrics.Availability.Record(time.Since(start), err == nil && code == http.StatusOK, code == http.StatusUnprocessableEntity)
	if err != nil || code != http.StatusOK || len(avail.FreeSlots) == 0 {
		return
	}

	hot := min(s.config.HotSlots, len(avail.FreeSlots))
	hour := avail.FreeSlots[rng.Intn(hot)]
	at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)

	reqBody := map[string]string{
		"patient_id":       patientID.String(),
		"doctor_id":        doctorID.String(),
		"appointment_date": at.Format(time.RFC3339),
		"patient_concerns": "simulated visit",
	}

	start = time.Now()
	var created api.AppointmentResponse
	code, err = s.send(ctx, http.MethodPost, "/appointments", s.token(patientID), reqBody, &created)
	latency := time.Since(start)

	success := err == nil && code == http.StatusCreated
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: created.ID, PatientID: patientID})
	}
	s.metrics.Booking.Record(latency, success, code == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.send(ctx, http.MethodPatch, "/appointments/"+b.ID.String(), s.token(b.PatientID),
		map[string]string{"status": string(appointment.StatusCancelled)}, nil)
	s.metrics.Cancel.Record(time.Since(start), err == nil && code == http.StatusOK, code == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.send(ctx, http.MethodGet, "/appointments/"+b.ID.String(), s.token(b.PatientID), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Printf("\nsimulation: duration=%s workers=%d hot_slots=%d\n\n", s.config.Duration, s.config.Workers, s.config.HotSlots)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "operation\ttotal\tok\tconflict\terror\tmean\tp50\tp95\tp99\tmax\t")

	rows := []struct {
		name string
		op   *opStats
	}{
		{"availability", &s.metrics.Availability},
		{"booking", &s.metrics.Booking},
		{"cancel", &s.metrics.Cancel},
		{"read", &s.metrics.ReadByID},
	}
	for _, row := range rows {
		total := row.op.total.Load()
		if total == 0 {
			continue
		}
		l := row.op.Summary()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			row.name, total, row.op.ok.Load(), row.op.conflicts.Load(), row.op.failures.Load(),
			round(l.Mean), round(l.P50), round(l.P95), round(l.P99), round(l.Max))
	}
	_ = tw.Flush()

	// Each booking conflict is a race another worker won.
	if c := s.metrics.Booking.conflicts.Load(); c > 0 {
		fmt.Printf("\nbooking conflicts resolved by the server: %d\n", c)
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(100 * time.Microsecond)
}
