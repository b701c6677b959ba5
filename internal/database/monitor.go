package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CheckIdle pings every idle connection once and reports failures through
// HandleIdleError. Broken connections are closed so the pool replaces them.
// The pings do not count toward MaxUsesPerConnection.
func (p *Pool) CheckIdle(ctx context.Context) int {
	failed := 0
	for _, conn := range p.AcquireAllIdle(ctx) {
		if err := conn.Ping(ctx); err != nil {
			failed++
			_ = conn.Conn().Close(ctx)
			p.HandleIdleError(err)
			conn.Release()
			continue
		}
		p.releaseUncounted(conn)
	}
	return failed
}

// RunIdleMonitor calls CheckIdle on every tick until ctx is cancelled.
func (p *Pool) RunIdleMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckIdle(ctx)
		}
	}
}

// KeepAlive issues a trivial query on every tick so upstream proxies do not
// reclaim idle connections. Failures are logged and never escalated.
func KeepAlive(ctx context.Context, db Querier, exec *Executor, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Database keep-alive started",
		zap.Duration("interval", interval),
		zap.Duration("timeout", exec.Timeout()),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Database keep-alive stopped")
			return
		case <-ticker.C:
			err := exec.Do(ctx, func(ctx context.Context) error {
				_, err := db.Exec(ctx, "SELECT 1")
				return err
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("Database keep-alive query failed", zap.Error(err))
				continue
			}
			logger.Debug("Database keep-alive succeeded")
		}
	}
}
