// Package scheduler enqueues and processes background tasks over Redis.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"contractor_portal_backend/platform/config"
)

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// NotificationEnqueuer schedules delivery of queued notifications.
type NotificationEnqueuer interface {
	EnqueueNotificationDelivery(ctx context.Context, payload NotificationDeliverPayload) error
}

// NewClient creates an asynq client from the scheduler configuration.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueNotificationDelivery schedules immediate delivery of an outbox record.
func (c *Client) EnqueueNotificationDelivery(ctx context.Context, payload NotificationDeliverPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNotificationDeliverTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// redisClientOpt translates a redis:// or rediss:// URL into asynq
// connection options. TLS verification can be relaxed for managed Redis
// providers that serve certificates for internal hostnames.
func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}

	var tlsConfig *tls.Config
	switch {
	case parsed.TLSConfig != nil:
		tlsConfig = parsed.TLSConfig.Clone()
		if tlsInsecure {
			tlsConfig.InsecureSkipVerify = true
		}
	case tlsInsecure:
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      parsed.Addr,
		Password:  parsed.Password,
		DB:        parsed.DB,
		TLSConfig: tlsConfig,
	}, nil
}
