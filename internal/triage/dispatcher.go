// Package triage hands new tickets to the asynchronous classification
// worker. The worker is an external consumer; its verdict comes back later
// as an ordinary severity/category update, never as a return value here.
package triage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Job is the enqueue payload for the classification worker.
type Job struct {
	TicketID    string `json:"ticket_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Dispatcher enqueues triage jobs. Implementations must be safe to call
// fire-and-forget: the ticket mutation has already committed when Enqueue
// runs and must not be affected by its outcome.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
}

// NoopDispatcher is injected when the triage feature is disabled, so call
// sites never branch on a feature flag.
type NoopDispatcher struct{}

// NewNoopDispatcher builds the disabled dispatcher.
func NewNoopDispatcher() *NoopDispatcher {
	return &NoopDispatcher{}
}

// Enqueue discards the job.
func (d *NoopDispatcher) Enqueue(ctx context.Context, job Job) error {
	return nil
}

// RedisDispatcher pushes jobs onto a Redis list consumed by the worker.
type RedisDispatcher struct {
	client *redis.Client
	queue  string
	logger *zap.Logger
}

// NewRedisDispatcher builds a queue-backed dispatcher.
func NewRedisDispatcher(client *redis.Client, queue string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, queue: queue, logger: logger}
}

// Enqueue serializes the job and pushes it to the queue.
func (d *RedisDispatcher) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := d.client.LPush(ctx, d.queue, payload).Err(); err != nil {
		return err
	}
	d.logger.Debug("triage job enqueued",
		zap.String("ticket_id", job.TicketID),
		zap.String("queue", d.queue))
	return nil
}
