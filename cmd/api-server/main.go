package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/api"
	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
	"github.com/ohmpatell/FindYourDoctor/internal/config"
	"github.com/ohmpatell/FindYourDoctor/internal/db"
	"github.com/ohmpatell/FindYourDoctor/internal/logging"
	"github.com/ohmpatell/FindYourDoctor/internal/metrics"
	redisclient "github.com/ohmpatell/FindYourDoctor/internal/redis"
	"github.com/ohmpatell/FindYourDoctor/internal/seed"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "info")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("app", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("default_tz", cfg.DefaultTimezone).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo       appointment.Repository
		pgPinger   api.Pinger
		redisPing  api.Pinger
		slotLocker redisclient.Locker
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.Open(pgCtx, cfg.PostgresDSN, logger)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		repo = appointment.NewPgRepository(pgPool)
		pgPinger = poolPinger(pgPool)

	case config.StoreMemory:
		mem := appointment.NewMemoryRepository()
		if cfg.SeedDemo {
			res, err := seed.New(mem, uint64(time.Now().UnixNano()), logger).Run(rootCtx, seed.Counts{
				Clinics:          3,
				DoctorsPerClinic: 4,
				Patients:         50,
			})
			if err != nil {
				logger.Fatal().Err(err).Msg("seed demo data")
			}
			logger.Info().
				Int("clinics", len(res.ClinicIDs)).
				Int("doctors", len(res.DoctorIDs)).
				Int("patients", len(res.PatientIDs)).
				Msg("seeded in-memory store")
		}
		repo = mem
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	}

	if cfg.ClinicCacheTTL > 0 {
		repo = appointment.NewCachedRepository(repo, cfg.ClinicCacheTTL)
	}

	if cfg.RedisEnabled() {
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err := redisclient.NewRedisClient(redisCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		cancelRedis()
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Dur("lock_ttl", cfg.LockTTL).Msg("connected to Redis")

		slotLocker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, logger)
		redisPing = clientPinger(rdb)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, slot lock disabled")
	}

	m := metrics.New("fyd")
	svc := appointment.NewService(repo, slotLocker, m, logger, cfg.DefaultLocation)

	handler := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Auth:           api.NewAuthenticator(cfg.JWTSecret),
		Metrics:        m,
		Logger:         logger,
		Postgres:       pgPinger,
		Redis:          redisPing,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			shutdown(srv, cfg.ShutdownTimeout, logger)
			os.Exit(1)
		}
	}

	shutdown(srv, cfg.ShutdownTimeout, logger)
}

func shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	logger.Info().Dur("timeout", timeout).Msg("shutting down api-server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func poolPinger(pool *pgxpool.Pool) api.Pinger {
	return api.PingFunc(pool.Ping)
}

func clientPinger(rdb *redis.Client) api.Pinger {
	return api.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}
