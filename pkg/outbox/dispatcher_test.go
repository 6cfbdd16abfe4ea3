package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (f *fakeStore) GetPendingEvents(context.Context, int) ([]*Event, error) {
	return f.pending, nil
}

func (f *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	f.failed = append(f.failed, id)
	return nil
}

type published struct {
	key     string
	traceID string
}

type fakePublisher struct {
	failKey string
	got     []published
}

func (f *fakePublisher) PublishRaw(ctx context.Context, key string, _ []byte) error {
	if key == f.failKey {
		return errors.New("broker down")
	}
	f.got = append(f.got, published{key: key, traceID: trace.FromContext(ctx)})
	return nil
}

func TestDispatcher_ProcessPendingEvents(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "habit.insights.generated", Payload: json.RawMessage(`{"trace_id":"t-1"}`)},
		{ID: 2, RoutingKey: "broken", Payload: json.RawMessage(`{}`)},
		{ID: 3, RoutingKey: "habit.insights.generated", Payload: json.RawMessage(`[1,2]`)},
	}}
	pub := &fakePublisher{failKey: "broken"}
	d := NewDispatcher(store, pub, zap.NewNop())

	sent := d.processPendingEvents(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
	require.Len(t, pub.got, 2)
	assert.Equal(t, "t-1", pub.got[0].traceID)
	assert.Empty(t, pub.got[1].traceID)
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("insight_snapshot", "abc", "habit.insights.generated", map[string]int{"user_id": 7})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.JSONEq(t, `{"user_id":7}`, string(e.Payload))

	_, err = NewEvent("x", "y", "z", make(chan int))
	assert.Error(t, err)
}
