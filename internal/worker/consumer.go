// Package worker runs the dispatch consumer: it pulls queued dispatch jobs
// and performs per-recipient delivery against the API. Jobs are consumed
// at-least-once; the delivery endpoint is idempotent, so redelivery after a
// crash re-marks already-delivered recipients harmlessly.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"notify24/config"
	"notify24/internal/queue"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrMalformedJob marks a payload that can never be processed; retrying it is
// pointless, so the consume loop drops it instead of requeueing.
var ErrMalformedJob = errors.New("malformed job payload")

type Consumer struct {
	cfg       *config.Config
	deliverer Deliverer
}

func NewConsumer(cfg *config.Config, deliverer Deliverer) *Consumer {
	return &Consumer{cfg: cfg, deliverer: deliverer}
}

// Run consumes until ctx is cancelled. Connection-level failures are never
// fatal: the loop logs, waits a fixed delay and reconnects.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			log.Printf("[worker] stopped")
			return
		}
		if err := c.consume(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[worker] consume loop failed: %v; reconnecting in %s", err, c.cfg.Worker.ReconnectDelay)
			select {
			case <-time.After(c.cfg.Worker.ReconnectDelay):
			case <-ctx.Done():
			}
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.DialConfig(c.cfg.RabbitMQ.URL, amqp.Config{Dial: amqp.DefaultDial(c.cfg.RabbitMQ.DialTimeout)})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := queue.DeclareTopology(ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	// One unacked message at a time: a job is fully processed or requeued
	// before the next one arrives, and extra worker processes scale out
	// without sharing in-flight work.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	log.Printf("[worker] consuming from %s", queue.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := c.ProcessJob(ctx, d.Body); err != nil {
				if errors.Is(err, ErrMalformedJob) {
					log.Printf("[worker] dropping job: %v", err)
					if nackErr := d.Nack(false, false); nackErr != nil {
						return fmt.Errorf("nack: %w", nackErr)
					}
					continue
				}
				log.Printf("[worker] job failed, requeueing: %v", err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					return fmt.Errorf("nack: %w", nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				return fmt.Errorf("ack: %w", ackErr)
			}
		}
	}
}

// ProcessJob handles one dispatch job: recipients are delivered sequentially
// in list order and the whole job fails if any delivery call fails.
func (c *Consumer) ProcessJob(ctx context.Context, body []byte) error {
	var msg queue.DispatchMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	for _, recipientID := range dedupe(msg.TargetUserIDs) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Worker.DeliveryTimeout)
		err := c.deliverer.Deliver(callCtx, msg, recipientID)
		cancel()
		if err != nil {
			return err
		}
	}
	log.Printf("[worker] delivered notification %s to %d recipients", msg.NotificationID, len(msg.TargetUserIDs))
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
