package main

import (
	"context"
	"flag"
	"time"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
	"github.com/ohmpatell/FindYourDoctor/internal/config"
	"github.com/ohmpatell/FindYourDoctor/internal/db"
	"github.com/ohmpatell/FindYourDoctor/internal/logging"
	"github.com/ohmpatell/FindYourDoctor/internal/seed"
)

func main() {
	clinics := flag.Int("clinics", 10, "number of clinics")
	doctors := flag.Int("doctors-per-clinic", 10, "doctors created at each clinic")
	patients := flag.Int("patients", 9000, "number of patients")
	tz := flag.String("timezone", "", "IANA timezone stored on every clinic, empty uses DEFAULT_TIMEZONE at read time")
	fakerSeed := flag.Uint64("seed", 0, "faker seed, 0 picks one from the clock")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "info")
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("app", "seed").Logger()

	if cfg.StoreDriver != config.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seed writes to postgres only, set STORE_DRIVER=postgres")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Open(connectCtx, cfg.PostgresDSN, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if *fakerSeed == 0 {
		*fakerSeed = uint64(time.Now().UnixNano())
	}

	logger.Info().
		Int("clinics", *clinics).
		Int("doctors_per_clinic", *doctors).
		Int("patients", *patients).
		Uint64("seed", *fakerSeed).
		Msg("seed starting")

	res, err := seed.New(appointment.NewPgRepository(pool), *fakerSeed, logger).Run(context.Background(), seed.Counts{
		Clinics:          *clinics,
		DoctorsPerClinic: *doctors,
		Patients:         *patients,
		Timezone:         *tz,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	logger.Info().
		Int("clinics", len(res.ClinicIDs)).
		Int("doctors", len(res.DoctorIDs)).
		Int("patients", len(res.PatientIDs)).
		Msg("seed complete")
}
