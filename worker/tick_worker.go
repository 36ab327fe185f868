package worker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sakanly/services"
)

const tickLockKey = "sakanly:sequence-tick-lock"

// TickWorker drives the sequence tick on a timer. When a redis client is
// provided, a SetNX advisory lock keeps concurrent instances from scanning
// the same pass; run advancement itself is already safe under row locks, so
// the lock only avoids wasted work.
type TickWorker struct {
	tick     *services.TickService
	redis    *redis.Client
	logger   *logrus.Entry
	interval time.Duration
	id       string
}

func NewTickWorker(tick *services.TickService, redisClient *redis.Client, logger *logrus.Logger, interval time.Duration) *TickWorker {
	return &TickWorker{
		tick:     tick,
		redis:    redisClient,
		logger:   logger.WithField("component", "tick_worker"),
		interval: interval,
		id:       uuid.New().String(),
	}
}

func (tw *TickWorker) Start(ctx context.Context) {
	tw.logger.WithField("interval", tw.interval.String()).Info("tick worker started")

	ticker := time.NewTicker(tw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tw.logger.Info("tick worker shutting down")
			return
		case <-ticker.C:
			tw.runPass(ctx)
		}
	}
}

func (tw *TickWorker) runPass(ctx context.Context) {
	if !tw.acquireLock(ctx) {
		return
	}
	defer tw.releaseLock(ctx)

	if _, err := tw.tick.RunOnce(ctx); err != nil {
		tw.logger.WithError(err).Error("tick pass failed")
	}
}

func (tw *TickWorker) acquireLock(ctx context.Context) bool {
	if tw.redis == nil {
		return true
	}
	ok, err := tw.redis.SetNX(ctx, tickLockKey, tw.id, 2*tw.interval).Result()
	if err != nil {
		tw.logger.WithError(err).Warn("failed to acquire tick lock, skipping pass")
		return false
	}
	return ok
}

func (tw *TickWorker) releaseLock(ctx context.Context) {
	if tw.redis == nil {
		return
	}
	holder, err := tw.redis.Get(ctx, tickLockKey).Result()
	if err != nil || holder != tw.id {
		return
	}
	if err := tw.redis.Del(ctx, tickLockKey).Err(); err != nil {
		tw.logger.WithError(err).Warn("failed to release tick lock")
	}
}
