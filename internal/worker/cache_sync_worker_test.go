package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"FileVault/internal/task"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

type fakePublisher struct {
	retries [][]byte
	delays  []time.Duration
	dlq     [][]byte
	err     error
}

func (p *fakePublisher) PublishRetry(_ context.Context, body []byte, delay time.Duration) error {
	if p.err != nil {
		return p.err
	}
	p.retries = append(p.retries, body)
	p.delays = append(p.delays, delay)
	return nil
}

func (p *fakePublisher) PublishDLQ(_ context.Context, body []byte) error {
	p.dlq = append(p.dlq, body)
	return nil
}

type stubWriter struct {
	err   error
	calls int
}

func (w *stubWriter) UpdateCacheFields(context.Context, uint64, uint64, string, int64) (bool, error) {
	w.calls++
	return w.err == nil, w.err
}

func newHandler(t *testing.T, writer *stubWriter, pub *fakePublisher, retryMax int) *handler {
	return &handler{
		pub:     pub,
		applier: task.NewApplier(writer, zaptest.NewLogger(t), nil),
		limiter: newLimiter(0, 1),
		opts: Options{
			RetryMax:    retryMax,
			RetryDelays: []time.Duration{time.Second, 5 * time.Second},
		},
		log: zaptest.NewLogger(t),
	}
}

func encode(t *testing.T, msg task.CacheSyncMessage) []byte {
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

var sample = task.CacheSyncMessage{RecordID: 1, OwnerID: 2, FileName: "a", LocalPath: "/c/2/a", CacheTimestamp: 9}

func TestHandleAppliesAndAcks(t *testing.T) {
	writer := &stubWriter{}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	newHandler(t, writer, pub, 3).handle(context.Background(), encode(t, sample), ack)

	require.Equal(t, 1, writer.calls)
	require.Equal(t, 1, ack.acked)
	require.Empty(t, pub.retries)
}

func TestHandleInvalidJSONIsDropped(t *testing.T) {
	writer := &stubWriter{}
	ack := &fakeAck{}
	newHandler(t, writer, &fakePublisher{}, 3).handle(context.Background(), []byte("{"), ack)

	require.Zero(t, writer.calls)
	require.Equal(t, 1, ack.acked)
}

func TestHandleSchedulesRetry(t *testing.T) {
	writer := &stubWriter{err: errors.New("database is locked")}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	newHandler(t, writer, pub, 3).handle(context.Background(), encode(t, sample), ack)

	require.Equal(t, 1, ack.acked)
	require.Len(t, pub.retries, 1)
	require.Equal(t, time.Second, pub.delays[0])

	var retried task.CacheSyncMessage
	require.NoError(t, json.Unmarshal(pub.retries[0], &retried))
	require.Equal(t, 1, retried.Attempt)
}

func TestHandleSendsToDLQAfterMaxAttempts(t *testing.T) {
	writer := &stubWriter{err: errors.New("database is locked")}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	msg := sample
	msg.Attempt = 3
	newHandler(t, writer, pub, 3).handle(context.Background(), encode(t, msg), ack)

	require.Equal(t, 1, ack.acked)
	require.Empty(t, pub.retries)
	require.Len(t, pub.dlq, 1)
}

func TestHandleInvalidMessageGoesToDLQ(t *testing.T) {
	writer := &stubWriter{}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	newHandler(t, writer, pub, 3).handle(context.Background(), encode(t, task.CacheSyncMessage{}), ack)

	require.Zero(t, writer.calls)
	require.Len(t, pub.dlq, 1)
	require.Equal(t, 1, ack.acked)
}

func TestHandleRequeuesWhenRetryPublishFails(t *testing.T) {
	writer := &stubWriter{err: errors.New("database is locked")}
	pub := &fakePublisher{err: errors.New("channel closed")}
	ack := &fakeAck{}
	newHandler(t, writer, pub, 3).handle(context.Background(), encode(t, sample), ack)

	require.Zero(t, ack.acked)
	require.Equal(t, 1, ack.nacked)
	require.True(t, ack.requeue)
}

func TestPickRetryDelay(t *testing.T) {
	delays := []time.Duration{time.Second, 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 5 * time.Second},
		{9, 5 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, pickRetryDelay(tt.attempt, delays))
	}
	require.Zero(t, pickRetryDelay(1, nil))
}

func TestAcquireStopsOnCancel(t *testing.T) {
	sem := make(chan struct{}, 1)
	require.True(t, acquire(context.Background(), sem))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- acquire(ctx, sem) }()
	cancel()
	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancel")
	}
	require.Len(t, sem, 1)
}
