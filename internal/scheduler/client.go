package scheduler

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/categoryb"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "default"

// Config holds the asynq connection settings.
type Config struct {
	RedisURL    string `mapstructure:"url"`
	TLSInsecure bool   `mapstructure:"tls_insecure"`
	Queue       string `mapstructure:"queue"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxRetry    int    `mapstructure:"max_retry"`
}

func (c Config) queue() string {
	if c.Queue == "" {
		return DefaultQueue
	}
	return c.Queue
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues referral tasks. It implements categoryb.Dispatcher.
type Client struct {
	client   enqueuer
	queue    string
	maxRetry int
}

// NewClient connects to the Redis behind cfg.RedisURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RedisURL == "" {
		return nil, eris.New("scheduler: redis url not configured")
	}
	opt, err := redisClientOpt(cfg.RedisURL, cfg.TLSInsecure)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt), queue: cfg.queue(), maxRetry: cfg.MaxRetry}, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Dispatch enqueues job to run after delay. The referral is reported as
// scheduled, not sent.
func (c *Client) Dispatch(ctx context.Context, job categoryb.ReferralJob, delay time.Duration) (categoryb.Dispatch, error) {
	task, err := NewReferralTask(job)
	if err != nil {
		return categoryb.Dispatch{}, err
	}

	opts := []asynq.Option{asynq.ProcessIn(delay), asynq.Queue(c.queue)}
	if c.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.maxRetry))
	}
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return categoryb.Dispatch{}, eris.Wrapf(err, "scheduler: enqueue referral for lead %s", job.LeadID)
	}

	zap.L().Info("scheduler: referral queued",
		zap.String("lead_id", job.LeadID),
		zap.String("task_id", info.ID),
		zap.Duration("delay", delay),
	)
	return categoryb.Dispatch{Scheduled: true}, nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, eris.Wrap(err, "scheduler: parse redis url")
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		tlsConfig = opt.TLSConfig.Clone()
		if tlsInsecure {
			tlsConfig.InsecureSkipVerify = true
		}
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev redis
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
