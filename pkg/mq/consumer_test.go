package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

type ackCall struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.calls = append(f.calls, ackCall{acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.calls = append(f.calls, ackCall{nacked: true, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.calls = append(f.calls, ackCall{nacked: true, requeue: requeue})
	return nil
}

func setupConsumer(t *testing.T, h MessageHandler) *Consumer {
	t.Helper()
	return &Consumer{
		queue:      amqp091.Queue{Name: "habit.test.q"},
		routingKey: "habit.test",
		handler:    h,
		logger:     zap.NewNop(),
	}
}

func deliver(c *Consumer, headers amqp091.Table) *fakeAcknowledger {
	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Headers:      headers,
		Body:         []byte(`{"user_id":1}`),
	})
	return ack
}

func TestHandleDelivery_Ack(t *testing.T) {
	var gotTrace string
	c := setupConsumer(t, func(ctx context.Context, data json.RawMessage) error {
		gotTrace = trace.FromContext(ctx)
		return nil
	})

	ack := deliver(c, amqp091.Table{traceIDHeader: "abc"})

	assert.Equal(t, []ackCall{{acked: true}}, ack.calls)
	assert.Equal(t, "abc", gotTrace)
}

func TestHandleDelivery_RetryableRequeues(t *testing.T) {
	c := setupConsumer(t, func(context.Context, json.RawMessage) error {
		return context.DeadlineExceeded
	})

	ack := deliver(c, nil)

	assert.Equal(t, []ackCall{{nacked: true, requeue: true}}, ack.calls)
}

func TestHandleDelivery_PermanentDeadLetters(t *testing.T) {
	c := setupConsumer(t, func(_ context.Context, data json.RawMessage) error {
		var v []int
		return json.Unmarshal(data, &v)
	})

	ack := deliver(c, nil)

	assert.Equal(t, []ackCall{{nacked: true, requeue: false}}, ack.calls)
}

func TestHandleDelivery_PanicDeadLetters(t *testing.T) {
	c := setupConsumer(t, func(context.Context, json.RawMessage) error {
		panic(errors.New("boom"))
	})

	ack := deliver(c, nil)

	assert.Equal(t, []ackCall{{nacked: true, requeue: false}}, ack.calls)
}

func TestStartConsuming_NoHandler(t *testing.T) {
	c := setupConsumer(t, nil)
	assert.ErrorIs(t, c.StartConsuming(context.Background()), ErrNoHandler)
}
