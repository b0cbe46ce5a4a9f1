package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"notify24/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher places dispatch jobs on the durable queue. Each Publish opens a
// fresh connection, declares the topology and closes again; dispatch volume
// is low enough that connection reuse is not worth the failure modes.
type Publisher struct {
	cfg *config.RabbitMQConfig
}

func NewPublisher(cfg *config.RabbitMQConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

func (p *Publisher) Publish(msg DispatchMessage) error {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{Dial: amqp.DefaultDial(p.cfg.DialTimeout)})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareTopology(ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, Exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
