package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/clearlens/governance-backend/internal/platform/envutil"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

// JobEvent is the wire shape published on every job lifecycle change so UIs
// can follow progress without polling.
type JobEvent struct {
	Type        string    `json:"type"`
	JobID       uuid.UUID `json:"job_id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	JobType     string    `json:"job_type"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

const (
	EventJobCreated   = "job.created"
	EventJobStarted   = "job.started"
	EventJobProgress  = "job.progress"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
	EventJobCancelled = "job.cancelled"
	EventJobRetrying  = "job.retrying"
)

type Bus interface {
	PublishJobEvent(ctx context.Context, ev JobEvent) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to REDIS_ADDR and publishes job events on
// REDIS_JOB_CHANNEL (default "governance.jobs").
func NewRedisBus(log *logger.Logger) (Bus, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := envutil.String("REDIS_JOB_CHANNEL", "governance.jobs")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("service", "RedisJobBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) PublishJobEvent(ctx context.Context, ev JobEvent) error {
	if strings.TrimSpace(ev.Type) == "" {
		return fmt.Errorf("missing event type")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

// NopBus drops events; used when Redis is not configured and in tests.
type NopBus struct{}

func (NopBus) PublishJobEvent(context.Context, JobEvent) error { return nil }
func (NopBus) Close() error                                    { return nil }
