package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InlineDispatcher applies messages on background goroutines with a bounded number
// of attempts. Requests never wait on it.
type InlineDispatcher struct {
	applier  *Applier
	log      *zap.Logger
	attempts int
	delay    time.Duration
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewInlineDispatcher(applier *Applier, log *zap.Logger, attempts int, delay time.Duration) *InlineDispatcher {
	if attempts <= 0 {
		attempts = 1
	}
	return &InlineDispatcher{
		applier:  applier,
		log:      log,
		attempts: attempts,
		delay:    delay,
		timeout:  30 * time.Second,
	}
}

func (d *InlineDispatcher) Dispatch(msg CacheSyncMessage) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(msg)
	}()
}

func (d *InlineDispatcher) run(msg CacheSyncMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
retry:
	for attempt := 1; ; attempt++ {
		msg.Attempt = attempt
		err = d.applier.Apply(ctx, msg)
		if err == nil || errors.Is(err, ErrInvalidMessage) || attempt >= d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(d.delay * time.Duration(attempt)):
		}
	}
	if err != nil {
		d.log.Warn("cache sync failed",
			zap.Uint64("record_id", msg.RecordID),
			zap.Int("attempts", msg.Attempt),
			zap.Error(err))
	}
}

// Wait blocks until every dispatched message finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// Publisher sends an encoded message to the broker.
type Publisher interface {
	PublishTask(ctx context.Context, body []byte) error
}

// AMQPDispatcher publishes messages for the cache sync worker. When publishing fails
// the message is applied inline so the update is not lost.
type AMQPDispatcher struct {
	pub      Publisher
	fallback *InlineDispatcher
	log      *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewAMQPDispatcher(pub Publisher, fallback *InlineDispatcher, log *zap.Logger) *AMQPDispatcher {
	return &AMQPDispatcher{pub: pub, fallback: fallback, log: log, timeout: 5 * time.Second}
}

func (d *AMQPDispatcher) Dispatch(msg CacheSyncMessage) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		body, err := json.Marshal(msg)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err = d.pub.PublishTask(ctx, body)
			cancel()
		}
		if err != nil {
			d.log.Warn("cache sync publish failed, applying inline",
				zap.Uint64("record_id", msg.RecordID),
				zap.Error(err))
			d.fallback.Dispatch(msg)
		}
	}()
}

// Wait blocks until every publish and fallback finished.
func (d *AMQPDispatcher) Wait() {
	d.wg.Wait()
	d.fallback.Wait()
}
