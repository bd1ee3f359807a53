package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"FileVault/internal/mq"
	"FileVault/internal/task"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	URL         string
	Prefetch    int
	Concurrency int
	Rate        float64 // messages per second, <= 0 means unlimited
	Burst       int
	RetryMax    int
	RetryDelays []time.Duration
}

type dlqMessage struct {
	Message  task.CacheSyncMessage `json:"message"`
	Error    string                `json:"error"`
	FailedAt time.Time             `json:"failed_at"`
}

// retryPublisher is the part of mq.Client the handler needs.
type retryPublisher interface {
	PublishRetry(ctx context.Context, body []byte, delay time.Duration) error
	PublishDLQ(ctx context.Context, body []byte) error
}

// acknowledger is satisfied by amqp.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type handler struct {
	pub     retryPublisher
	applier *task.Applier
	limiter *rate.Limiter
	opts    Options
	log     *zap.Logger
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RunCacheSyncWorker consumes cache sync messages until ctx is done.
func RunCacheSyncWorker(ctx context.Context, opts Options, applier *task.Applier, log *zap.Logger) error {
	client, err := mq.Dial(opts.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(mq.QueueTasks, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	h := &handler{
		pub:     client,
		applier: applier,
		limiter: newLimiter(opts.Rate, opts.Burst),
		opts:    opts,
		log:     log,
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("cache sync worker: delivery channel closed")
			}
			if !acquire(ctx, sem) {
				_ = delivery.Nack(false, true)
				return nil
			}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				h.handle(ctx, d.Body, d)
			}(delivery)
		}
	}
}

// acquire takes a handler slot, giving up when ctx ends first.
func acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *handler) handle(ctx context.Context, body []byte, ack acknowledger) {
	var msg task.CacheSyncMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.log.Warn("cache sync worker: invalid message", zap.Error(err))
		_ = ack.Ack(false)
		return
	}

	if err := h.limiter.Wait(ctx); err != nil {
		_ = ack.Nack(false, true)
		return
	}

	if err := h.applier.Apply(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = ack.Nack(false, true)
			return
		}
		var next error
		if shouldRetry(err) {
			next = h.scheduleRetry(ctx, msg, err)
		} else {
			next = h.markFailed(ctx, msg, err)
		}
		if next != nil {
			h.log.Warn("cache sync worker: requeue", zap.Error(next))
			_ = ack.Nack(false, true)
			return
		}
	}

	_ = ack.Ack(false)
}

func shouldRetry(err error) bool {
	return !errors.Is(err, task.ErrInvalidMessage)
}

func (h *handler) scheduleRetry(ctx context.Context, msg task.CacheSyncMessage, procErr error) error {
	maxRetry := h.opts.RetryMax
	if maxRetry < 0 {
		maxRetry = 0
	}
	nextAttempt := msg.Attempt + 1
	if maxRetry == 0 || nextAttempt > maxRetry {
		return h.markFailed(ctx, msg, procErr)
	}

	msg.Attempt = nextAttempt
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	delay := pickRetryDelay(nextAttempt, h.opts.RetryDelays)
	h.log.Info("cache sync worker: retry scheduled",
		zap.Uint64("record_id", msg.RecordID),
		zap.Int("attempt", nextAttempt),
		zap.Duration("delay", delay),
		zap.Error(procErr))
	return h.pub.PublishRetry(ctx, body, delay)
}

func (h *handler) markFailed(ctx context.Context, msg task.CacheSyncMessage, procErr error) error {
	body, err := json.Marshal(dlqMessage{
		Message:  msg,
		Error:    procErr.Error(),
		FailedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	h.log.Error("cache sync worker: giving up",
		zap.Uint64("record_id", msg.RecordID),
		zap.Int("attempt", msg.Attempt),
		zap.Error(procErr))
	if err := h.pub.PublishDLQ(ctx, body); err != nil {
		h.log.Warn("cache sync worker: dlq publish failed", zap.Error(err))
	}
	return nil
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
