package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeTasks = "cache.sync.exchange"
	ExchangeRetry = "cache.sync.retry.exchange"
	ExchangeDLQ   = "cache.sync.dlq.exchange"

	QueueTasks = "cache.sync.queue"
	QueueRetry = "cache.sync.retry.queue"
	QueueDLQ   = "cache.sync.dlq.queue"

	RoutingTask  = "cache.sync"
	RoutingRetry = "cache.sync.retry"
	RoutingDLQ   = "cache.sync.dlq"
)

type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

// Dial opens a connection and a channel.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *Client) closed() bool {
	return c.Conn.IsClosed() || c.Channel.IsClosed()
}

type queueDecl struct {
	name     string
	exchange string
	routing  string
	args     amqp.Table
}

// topology lists the durable queues and their bindings. Retry messages carry a
// per-message TTL and dead-letter back into the task exchange when it runs out.
var topology = []queueDecl{
	{name: QueueTasks, exchange: ExchangeTasks, routing: RoutingTask},
	{name: QueueRetry, exchange: ExchangeRetry, routing: RoutingRetry, args: amqp.Table{
		"x-dead-letter-exchange":    ExchangeTasks,
		"x-dead-letter-routing-key": RoutingTask,
	}},
	{name: QueueDLQ, exchange: ExchangeDLQ, routing: RoutingDLQ},
}

// DeclareTopology declares exchanges, queues and bindings. It is idempotent.
func (c *Client) DeclareTopology() error {
	for _, q := range topology {
		if err := c.Channel.ExchangeDeclare(q.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", q.exchange, err)
		}
		if _, err := c.Channel.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
		if err := c.Channel.QueueBind(q.name, q.routing, q.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q.name, err)
		}
	}
	return nil
}

func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeTasks, RoutingTask, body, "")
}

func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, RetryExpiration(delay))
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

// RetryExpiration formats a delay as an AMQP per-message TTL in milliseconds.
func RetryExpiration(delay time.Duration) string {
	if delay < 0 {
		delay = 0
	}
	return fmt.Sprintf("%d", delay.Milliseconds())
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Expiration:   expiration,
	}
	return c.Channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}

// Publisher holds one lazily dialed client and redials after the broker drops it.
type Publisher struct {
	url    string
	mu     sync.Mutex
	client *Client
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) get() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if !p.client.closed() {
			return p.client, nil
		}
		p.client.Close()
		p.client = nil
	}
	client, err := Dial(p.url)
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	p.client = client
	return client, nil
}

// PublishTask publishes a cache sync message, dialing on demand.
func (p *Publisher) PublishTask(ctx context.Context, body []byte) error {
	client, err := p.get()
	if err != nil {
		return err
	}
	return client.PublishTask(ctx, body)
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Close()
	p.client = nil
}
