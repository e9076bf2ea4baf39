package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/mail"
	"github.com/hackgods/appointment-booking/internal/mailqueue"
	"github.com/hackgods/appointment-booking/internal/metrics"
	"github.com/hackgods/appointment-booking/internal/notification"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
	"github.com/hackgods/appointment-booking/internal/telemetry"
)

type consumer interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("mail-worker", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("queue_backend", cfg.QueueBackend).
		Str("smtp", cfg.SMTPHost+":"+cfg.SMTPPort).
		Msg("mail-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "mail-worker",
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup error")
	}

	mailer := mail.NewCancellationMailer(
		mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom),
		notification.PtBRFormatter{},
	)

	var c consumer
	switch cfg.QueueBackend {
	case config.QueueKafka:
		c = mailqueue.NewKafkaConsumer(mailqueue.KafkaConsumerConfig{
			Brokers: cfg.Brokers(),
			GroupID: cfg.MailGroup,
			Topic:   cfg.KafkaTopic,
		}, mailer.Handle)
	default:
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

		c = mailqueue.NewRedisConsumer(rdb, mailqueue.RedisConsumerConfig{
			Stream:   cfg.MailStream,
			Group:    cfg.MailGroup,
			Consumer: consumerName(),
		}, mailer.Handle)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           opsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server error")
		}
	}()

	if err := c.Run(rootCtx); err != nil {
		log.Error().Err(err).Msg("mail consumer stopped")
	}
	log.Info().Msg("shutdown signal received, stopping mail worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown error")
	}
}

func opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// consumerName keeps pending entries attached to the same name across restarts
// of one host.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "mail-worker"
	}
	return "mail-worker-" + host
}
