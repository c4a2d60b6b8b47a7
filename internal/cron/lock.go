package cron

import (
	"context"
	"time"

	"gorm.io/gorm"

	pkgredis "github.com/kitea/hunt-backend/pkg/redis"
)

// cycleLockTTL outlives any single cycle so a crashed holder eventually frees it.
const cycleLockTTL = time.Hour

// Lock coordinates exclusive cron runs across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewCycleLock returns the redis lock guarding one cron cycle per environment.
func NewCycleLock(client *pkgredis.Client, env string) (*pkgredis.Lock, error) {
	if env == "" {
		env = "local"
	}
	return pkgredis.NewLock(client, client.LockKey("cron", env), cycleLockTTL)
}
