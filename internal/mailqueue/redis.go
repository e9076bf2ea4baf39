package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/metrics"
)

const (
	fieldJob         = "job"
	fieldPayload     = "payload"
	fieldTraceparent = "traceparent"
)

// RedisDispatcher appends jobs to a Redis stream. XADD returning an id is the
// durable acknowledgement.
type RedisDispatcher struct {
	client *redis.Client
	stream string
}

func NewRedisDispatcher(client *redis.Client, stream string) *RedisDispatcher {
	return &RedisDispatcher{client: client, stream: stream}
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, job appointment.CancellationJob) error {
	payload, err := encode(job)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	values := map[string]any{
		fieldJob:     appointment.CancellationMailKey,
		fieldPayload: string(payload),
	}
	if tp := carrier.Get(fieldTraceparent); tp != "" {
		values[fieldTraceparent] = tp
	}

	if err := d.client.XAdd(ctx, &redis.XAddArgs{Stream: d.stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", d.stream, err)
	}
	return nil
}

type RedisConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	Count    int64
}

// RedisConsumer reads a stream through a consumer group. Jobs are acked only
// after the handler succeeds, so a crash leaves them pending for the next run.
type RedisConsumer struct {
	client  *redis.Client
	cfg     RedisConsumerConfig
	handler Handler
}

func NewRedisConsumer(client *redis.Client, cfg RedisConsumerConfig, handler Handler) *RedisConsumer {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	return &RedisConsumer{client: client, cfg: cfg, handler: handler}
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run drains this consumer's pending entries first, then blocks for new ones
// until ctx is cancelled.
func (c *RedisConsumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	logger := log.With().Str("stream", c.cfg.Stream).Str("group", c.cfg.Group).Logger()
	logger.Info().Str("consumer", c.cfg.Consumer).Msg("mail consumer started")

	// pending entries are walked once by id; failures stay pending for the next start
	backlog, cursor := true, "0"
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := ">"
		if backlog {
			start = cursor
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, start},
			Count:    c.cfg.Count,
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("xreadgroup failed")
			time.Sleep(time.Second)
			continue
		}

		handled := 0
		for _, s := range streams {
			for _, msg := range s.Messages {
				handled++
				cursor = msg.ID
				c.process(ctx, msg)
			}
		}
		if backlog && handled == 0 {
			backlog = false
			logger.Debug().Msg("pending backlog drained")
		}
	}
}

func (c *RedisConsumer) process(ctx context.Context, msg redis.XMessage) {
	logger := log.With().Str("message_id", msg.ID).Logger()

	key, _ := msg.Values[fieldJob].(string)
	payload, _ := msg.Values[fieldPayload].(string)

	job, err := decode(key, []byte(payload))
	if err != nil {
		// a malformed entry will never succeed; ack so it does not block the backlog
		metrics.MailJobsTotal.WithLabelValues("discarded").Inc()
		logger.Error().Err(err).Msg("discarding mail job")
		c.ack(ctx, msg.ID)
		return
	}

	jobCtx := ctx
	if tp, _ := msg.Values[fieldTraceparent].(string); tp != "" {
		jobCtx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{fieldTraceparent: tp})
	}

	if err := c.handler(jobCtx, job); err != nil {
		if errors.Is(err, ErrPermanent) {
			metrics.MailJobsTotal.WithLabelValues("discarded").Inc()
			logger.Error().Err(err).Str("appointment_id", job.AppointmentID.String()).Msg("discarding mail job")
			c.ack(ctx, msg.ID)
			return
		}
		metrics.MailJobsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Str("appointment_id", job.AppointmentID.String()).Msg("mail job failed, left pending")
		return
	}

	metrics.MailJobsTotal.WithLabelValues("sent").Inc()
	c.ack(ctx, msg.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(context.WithoutCancel(ctx), c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("xack failed")
	}
}
