package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

// AuditSink persists audit rows. repository.AuditRepo satisfies it.
type AuditSink interface {
	Insert(ctx context.Context, ev model.AuditEvent) error
}

// errMalformed marks messages that can never be processed.
var errMalformed = errors.New("malformed audit event")

// StartAuditConsumer connects to RabbitMQ, declares the auth.events queue
// (durable) and writes every delivery to sink. It reconnects with
// exponential backoff and only returns once ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url string, sink AuditSink, log *zap.Logger) error {
	log = log.Named("audit-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink AuditSink, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(AuditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, handleMessage(ctx, sink, d.Body), log)
		}
	}
}

// settle acks a stored event. A malformed event is dropped at once; a store
// failure is requeued once and dropped if the redelivery fails too.
func settle(d amqp.Delivery, err error, log *zap.Logger) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformed):
		log.Error("dropping malformed audit event", zap.Error(err))
		_ = d.Nack(false, false)
	case d.Redelivered:
		log.Error("dropping audit event after redelivery", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		log.Warn("store audit event failed; requeueing", zap.Error(err))
		_ = d.Nack(false, true)
	}
}

func handleMessage(ctx context.Context, sink AuditSink, body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return fmt.Errorf("%w: missing id or type", errMalformed)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sink.Insert(ctx, ev.Record())
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
