// Package status publishes in-flight submission state to Redis so observers
// can poll progress without touching the judge.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arbiter/internal/judge"
	appErr "arbiter/pkg/errors"
)

const (
	stateKeyFmt    = "arbiter:submission:%s:state"
	progressKeyFmt = "arbiter:submission:%s:progress"
	defaultTTL     = 24 * time.Hour
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// Repository implements judge.StatusReporter on Redis.
type Repository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRepository(cfg Config) *Repository {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := defaultTTL
	if cfg.TTLHours > 0 {
		ttl = time.Duration(cfg.TTLHours) * time.Hour
	}
	return &Repository{client: client, ttl: ttl}
}

// NewRepositoryWithClient wraps an existing client, used by tests.
func NewRepositoryWithClient(client *redis.Client) *Repository {
	return &Repository{client: client, ttl: defaultTTL}
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "ping redis failed")
	}
	return nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) ReportState(ctx context.Context, submissionID string, state judge.SubmissionState) error {
	key := fmt.Sprintf(stateKeyFmt, submissionID)
	if err := r.client.Set(ctx, key, string(state), r.ttl).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "set state failed")
	}
	return nil
}

func (r *Repository) ReportProgress(ctx context.Context, submissionID string, done, total int) error {
	key := fmt.Sprintf(progressKeyFmt, submissionID)
	if err := r.client.Set(ctx, key, fmt.Sprintf("%d/%d", done, total), r.ttl).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "set progress failed")
	}
	return nil
}

// GetState reads the last reported state. CacheMiss when none is stored.
func (r *Repository) GetState(ctx context.Context, submissionID string) (judge.SubmissionState, error) {
	key := fmt.Sprintf(stateKeyFmt, submissionID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", appErr.Newf(appErr.CacheMiss, "no state for submission %s", submissionID)
	}
	if err != nil {
		return "", appErr.Wrapf(err, appErr.CacheError, "get state failed")
	}
	return judge.SubmissionState(val), nil
}

// GetProgress reads the last reported progress as "done/total".
func (r *Repository) GetProgress(ctx context.Context, submissionID string) (string, error) {
	key := fmt.Sprintf(progressKeyFmt, submissionID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", appErr.Newf(appErr.CacheMiss, "no progress for submission %s", submissionID)
	}
	if err != nil {
		return "", appErr.Wrapf(err, appErr.CacheError, "get progress failed")
	}
	return val, nil
}
