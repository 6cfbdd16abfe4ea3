package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName carries habit activity and insight request events.
const (
	ExchangeName = "myelin.events"
	exchangeKind = amqp091.ExchangeTopic

	clientName = "myelinmap"
	heartbeat  = 10 * time.Second
)

// NewConnection dials the broker and tags the connection so it shows up as
// myelinmap in the management UI.
func NewConnection(url string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(clientName)

	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("dial event broker: %w", err)
	}
	return conn, nil
}

func DeclareExchange(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s exchange: %w", ExchangeName, err)
	}
	return nil
}
