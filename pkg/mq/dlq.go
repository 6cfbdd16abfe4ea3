package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "myelin.events.dlq"
)

// deadLetterArgs routes rejected messages from queueName to its dead letter
// queue.
func deadLetterArgs(queueName string) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    DLQExchangeName,
		"x-dead-letter-routing-key": queueName,
	}
}

// DeclareDLQ declares the dead letter exchange and a "<queue>.dlq" queue
// bound to it.
func DeclareDLQ(ch *amqp091.Channel, queueName string) (amqp091.Queue, error) {
	if err := ch.ExchangeDeclare(DLQExchangeName, "direct", true, false, false, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queueName+".dlq", true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, queueName, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return q, nil
}
