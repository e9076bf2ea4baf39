// Package mailqueue carries CancellationMail jobs from the API to the mail
// worker over Redis Streams or Kafka.
package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

// Handler processes one job. Returning an error leaves the job unacknowledged,
// unless the error wraps ErrPermanent.
type Handler func(ctx context.Context, job appointment.CancellationJob) error

var (
	// ErrPermanent marks a job that can never succeed. Consumers count it as
	// discarded and release it instead of retrying.
	ErrPermanent = errors.New("permanent job failure")

	ErrUnknownJob = fmt.Errorf("%w: unknown job", ErrPermanent)
)

func encode(job appointment.CancellationJob) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode %s job: %w", appointment.CancellationMailKey, err)
	}
	return payload, nil
}

func decode(key string, payload []byte) (appointment.CancellationJob, error) {
	var job appointment.CancellationJob
	if key != appointment.CancellationMailKey {
		return job, fmt.Errorf("%w: %q", ErrUnknownJob, key)
	}
	if err := json.Unmarshal(payload, &job); err != nil {
		return job, fmt.Errorf("decode %s job: %w", key, err)
	}
	return job, nil
}
