package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/metrics"
)

const headerJob = "job"

// KafkaDispatcher publishes jobs synchronously; Enqueue returns after all
// in-sync replicas have the message. Keys are appointment ids so retries of
// one appointment land on one partition.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

func (d *KafkaDispatcher) Enqueue(ctx context.Context, job appointment.CancellationJob) error {
	payload, err := encode(job)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(job.AppointmentID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerJob, Value: []byte(appointment.CancellationMailKey)},
		},
	}
	msg.Headers = injectTraceHeaders(ctx, msg.Headers)

	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", d.writer.Topic, err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

type KafkaConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// KafkaConsumer commits an offset only after the handler succeeds or reports
// ErrPermanent. Any other failure is retried until it succeeds or ctx ends,
// since committing past it would drop the mail.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler Handler
	backoff time.Duration
}

func NewKafkaConsumer(cfg KafkaConsumerConfig, handler Handler) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: handler,
		backoff: 2 * time.Second,
	}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	cfg := c.reader.Config()
	logger := log.With().Str("topic", cfg.Topic).Str("group", cfg.GroupID).Logger()
	logger.Info().Msg("mail consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error().Err(err).Msg("kafka fetch failed")
			time.Sleep(time.Second)
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

// process reports false only when ctx ended before the job went through.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) bool {
	logger := log.With().Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()

	job, err := decode(headerValue(msg.Headers, headerJob), msg.Value)
	if err != nil {
		metrics.MailJobsTotal.WithLabelValues("discarded").Inc()
		logger.Error().Err(err).Msg("discarding mail job")
		return true
	}

	msgCtx := extractTraceContext(ctx, msg)
	for {
		spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)
		err := c.handler(spanCtx, job)
		if err == nil {
			span.End()
			metrics.MailJobsTotal.WithLabelValues("sent").Inc()
			return true
		}
		span.RecordError(err)
		span.End()

		if errors.Is(err, ErrPermanent) {
			metrics.MailJobsTotal.WithLabelValues("discarded").Inc()
			logger.Error().Err(err).Str("appointment_id", job.AppointmentID.String()).Msg("discarding mail job")
			return true
		}

		metrics.MailJobsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Str("appointment_id", job.AppointmentID.String()).Msg("mail job failed, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff):
		}
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

func extractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &headerCarrier{headers: msg.Headers})
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return headerValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

// KafkaReadyCheck dials the first broker.
func KafkaReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
