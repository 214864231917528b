package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type cleaner interface {
	Cleanup(ctx context.Context) error
}

// cleanupTask runs Cleanup on a ticker until stop is closed
type cleanupTask struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startCleanupTask(c cleaner, freq time.Duration, logger *zap.Logger) *cleanupTask {
	t := &cleanupTask{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if freq <= 0 {
		close(t.doneCh)
		return t
	}

	go func() {
		defer close(t.doneCh)
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up cache", zap.Error(err))
				}
			case <-t.stopCh:
				return
			}
		}
	}()
	return t
}

func (t *cleanupTask) stop() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	<-t.doneCh
}
