// Package queue holds the RabbitMQ topology shared by the API publisher and
// the dispatch worker, and the wire message they exchange.
package queue

import amqp "github.com/rabbitmq/amqp091-go"

const (
	Exchange   = "notifications"
	Queue      = "notification.dispatch.queue"
	RoutingKey = "notification.dispatch"
)

// DeclareTopology declares the durable exchange, queue and binding. All
// declarations are idempotent; publisher and consumer both call this so
// either side can start first.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(Queue, RoutingKey, Exchange, false, nil)
}
