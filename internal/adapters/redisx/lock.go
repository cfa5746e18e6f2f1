package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
)

// ClusterLock is a soft, best-effort distributed lock keyed on a story
// cluster id. It is an optimization to avoid two enricher instances paying
// for the same LLM call concurrently — the actual exactly-once guarantee
// is the unique constraint on AnalyzedNews.cluster_id (§5).
type ClusterLock struct {
	lockManager *redlock.RedLock
	clusterID   int64
	lockName    string
	ttl         time.Duration
	locked      bool
}

// NewClusterLock creates a lock for the given cluster.
func NewClusterLock(lockManager *redlock.RedLock, clusterID int64) *ClusterLock {
	return &ClusterLock{
		lockManager: lockManager,
		clusterID:   clusterID,
		lockName:    fmt.Sprintf("enrich:cluster:%d", clusterID),
		ttl:         30 * time.Second,
	}
}

// TryAcquire attempts to acquire the lock. Returns false, nil if another
// enricher already holds it — that is not an error, just a signal to skip
// this cluster this cycle.
func (l *ClusterLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := l.lockManager.Lock(ctx, l.lockName, l.ttl)
	if err != nil {
		logger.Debug("cluster lock already held",
			zap.Int64("cluster_id", l.clusterID),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire cluster lock: invalid expiry %v", expiry)
	}
	l.locked = true
	go l.renew(ctx)
	return true, nil
}

// Release releases the lock, if held.
func (l *ClusterLock) Release(ctx context.Context) error {
	if !l.locked {
		return nil
	}
	if err := l.lockManager.UnLock(ctx, l.lockName); err != nil {
		logger.Warn("failed to release cluster lock (may have already expired)",
			zap.Int64("cluster_id", l.clusterID),
			zap.Error(err),
		)
	}
	l.locked = false
	return nil
}

// renew keeps the lock alive for long-running LLM calls by renewing at 2/3
// of its TTL.
func (l *ClusterLock) renew(ctx context.Context) {
	interval := (l.ttl * 2) / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.locked {
				return
			}
			if err := l.lockManager.UnLock(ctx, l.lockName); err != nil {
				l.locked = false
				return
			}
			expiry, err := l.lockManager.Lock(ctx, l.lockName, l.ttl)
			if err != nil || expiry <= 0 {
				l.locked = false
				return
			}
		}
	}
}
