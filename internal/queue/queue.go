package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// TopicCampaignProcess carries CampaignJob payloads.
const TopicCampaignProcess = "campaign_process"

// CampaignJob asks a worker to run one processing pass over a campaign.
type CampaignJob struct {
	CampaignID int       `json:"campaign_id"`
	Reason     string    `json:"reason,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler consumes one JSON payload. Returning an error asks the queue to retry.
type Handler func(ctx context.Context, payload []byte) error

// DefaultDeferDelay is how long a job returned with RetryLater waits before redelivery.
const DefaultDeferDelay = time.Second

type retryLaterError struct{ err error }

func (e *retryLaterError) Error() string { return e.err.Error() }
func (e *retryLaterError) Unwrap() error { return e.err }

// RetryLater marks a handler error as transient. The job is redelivered after
// the queue's defer delay and the attempt does not count against MaxRetries.
func RetryLater(err error) error {
	if err == nil {
		return nil
	}
	return &retryLaterError{err: err}
}

// IsRetryLater reports whether err was produced by RetryLater.
func IsRetryLater(err error) bool {
	var r *retryLaterError
	return errors.As(err, &r)
}

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue is an in-process queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	MaxRetries int
	Backoff    time.Duration
	DeferDelay time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(maxRetries int) *InMemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		ctx:        ctx,
		cancel:     cancel,
		MaxRetries: maxRetries,
		Backoff:    500 * time.Millisecond,
		DeferDelay: DefaultDeferDelay,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Body       []byte
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed")
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Body: body, MaxRetries: q.MaxRetries}
		q.wg.Add(1)
		go q.processJob(handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, job JobPayload) {
	defer q.wg.Done()

	for {
		err := handler(q.ctx, job.Body)
		if err == nil {
			logger.Debug("job processed", "topic", job.Topic, "attempt", job.RetryCount+1)
			return // ACK
		}

		if IsRetryLater(err) {
			logger.Debug("job deferred", "topic", job.Topic, "delay", q.DeferDelay, "error", err)
			select {
			case <-time.After(q.DeferDelay):
				continue
			case <-q.ctx.Done():
				return
			}
		}

		job.RetryCount++
		logger.Warn("job failed",
			"topic", job.Topic, "attempt", job.RetryCount, "max_retries", job.MaxRetries, "error", err)

		if job.RetryCount > job.MaxRetries {
			logger.Error("job permanently failed", "topic", job.Topic, "attempts", job.RetryCount, "payload", string(job.Body))
			return // No requeue
		}

		// linear backoff before retry
		select {
		case <-time.After(time.Duration(job.RetryCount) * q.Backoff):
		case <-q.ctx.Done():
			return
		}
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops pending retries and waits for in-flight handlers to return.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
