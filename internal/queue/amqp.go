package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes JSON jobs to durable RabbitMQ queues named after the topic.
type AMQPQueue struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel

	MaxRetries int
	DeferDelay time.Duration
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
}

// DialAMQP connects to the broker and opens the publishing channel.
func DialAMQP(url string, maxRetries int) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{
		conn:       conn,
		ch:         ch,
		MaxRetries: maxRetries,
		DeferDelay: DefaultDeferDelay,
		done:       make(chan struct{}),
	}, nil
}

func declare(ch *amqp.Channel, topic string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := declare(q.ch, topic); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Body:         body,
	})
}

// Subscribe consumes the topic on its own channel. Failed deliveries are
// republished with an incremented retry header until MaxRetries, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	if _, err := declare(ch, topic); err != nil {
		ch.Close()
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer ch.Close()
		for d := range msgs {
			q.deliver(topic, d, handler)
		}
	}()
	return nil
}

func (q *AMQPQueue) deliver(topic string, d amqp.Delivery, handler Handler) {
	err := handler(context.Background(), d.Body)
	if err == nil {
		d.Ack(false)
		return
	}

	retries := RetryCount(d.Headers)
	if IsRetryLater(err) {
		q.redeliverLater(topic, d, retries, err)
		return
	}
	logger.Warn("job failed", "topic", topic, "attempt", retries+1, "error", err)
	if retries >= q.MaxRetries {
		logger.Error("job permanently failed", "topic", topic, "attempts", retries+1, "payload", string(d.Body))
		d.Nack(false, false)
		return
	}
	if perr := q.publish(topic, d.Body, retries+1); perr != nil {
		logger.Error("requeue failed", "topic", topic, "error", perr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// redeliverLater holds the delivery for DeferDelay and republishes it with an
// unchanged retry count. The consumer (prefetch 1) is paused meanwhile.
func (q *AMQPQueue) redeliverLater(topic string, d amqp.Delivery, retries int, err error) {
	logger.Debug("job deferred", "topic", topic, "delay", q.DeferDelay, "error", err)
	select {
	case <-time.After(q.DeferDelay):
	case <-q.done:
		d.Nack(false, true)
		return
	}
	if perr := q.publish(topic, d.Body, retries); perr != nil {
		logger.Error("requeue failed", "topic", topic, "error", perr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// RetryCount reads the retry header whatever integer type the broker decoded it as.
func RetryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (q *AMQPQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	q.mu.Lock()
	q.ch.Close()
	q.mu.Unlock()
	err := q.conn.Close()
	q.wg.Wait()
	return err
}

var _ Queue = (*AMQPQueue)(nil)
