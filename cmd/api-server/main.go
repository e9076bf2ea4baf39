package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/appointment-booking/internal/api"
	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/clock"
	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/db"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/mailqueue"
	"github.com/hackgods/appointment-booking/internal/notification"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
	"github.com/hackgods/appointment-booking/internal/telemetry"
	"github.com/hackgods/appointment-booking/internal/user"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("api-server", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("queue_backend", cfg.QueueBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "api-server",
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup error")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	if err := db.EnsureSchema(rootCtx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("schema error")
	}
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	readyChecks := []api.ReadyCheck{
		{Name: "postgres", Critical: true, Check: db.ReadyCheck(pgPool)},
		{Name: "redis", Check: redisclient.ReadyCheck(rdb)},
	}

	var dispatcher appointment.MailDispatcher
	switch cfg.QueueBackend {
	case config.QueueKafka:
		kd := mailqueue.NewKafkaDispatcher(cfg.Brokers(), cfg.KafkaTopic)
		defer func() {
			if err := kd.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing kafka writer")
			}
		}()
		dispatcher = kd
		readyChecks = append(readyChecks, api.ReadyCheck{Name: "kafka", Check: mailqueue.KafkaReadyCheck(cfg.Brokers())})
	default:
		dispatcher = mailqueue.NewRedisDispatcher(rdb, cfg.MailStream)
	}

	sink := notification.NewPgSink(pgPool)

	svc := appointment.NewService(appointment.ServiceDeps{
		Store:         appointment.NewPgRepository(pgPool),
		Users:         user.NewDirectory(pgPool),
		Notifications: sink,
		Mail:          dispatcher,
		Formatter:     notification.PtBRFormatter{},
		Locker:        redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		Clock:         clock.System,
		Policy: appointment.Policy{
			CancelCutoffHours: cfg.CancelCutoffHours,
			PageSize:          cfg.PageSize,
		},
	})

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Notifications: sink,
		ReadyChecks:   readyChecks,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown error")
	}
}
