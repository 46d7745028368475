package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/snowsink/internal/clock"
	"github.com/pithecene-io/snowsink/snowerr"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/warehouse"
)

// SchedulePurge launches a one-shot background task that purges
// reprocessSet from stage after delay elapses, giving the new
// consumer a full flush/ingest cycle to catch up before the
// duplicate files are removed. Each invocation gets its own
// correlation ID so its log lines can be traced across the delay.
func SchedulePurge(ctx context.Context, clk clock.Clock, logger *snowlog.Logger, conn warehouse.Connection, stage string, reprocessSet []string, delay time.Duration) {
	if len(reprocessSet) == 0 {
		return
	}

	taskID := uuid.NewString()
	logger.Info("scheduled delayed reprocess purge", map[string]any{
		"task_id": taskID,
		"files":   len(reprocessSet),
		"delay":   delay.String(),
	})

	go func() {
		select {
		case <-clk.After(delay):
		case <-ctx.Done():
			logger.Info("delayed reprocess purge canceled", map[string]any{"task_id": taskID})
			return
		}

		if err := conn.PurgeStage(ctx, stage, reprocessSet); err != nil {
			if classified := snowerr.Classify(err, "delayed_purge", stage); classified != nil {
				logger.Error("delayed reprocess purge failed", map[string]any{
					"task_id": taskID,
					"error":   classified.Error(),
				})
				return
			}
		}
		logger.Info("delayed reprocess purge complete", map[string]any{
			"task_id": taskID,
			"files":   len(reprocessSet),
		})
	}()
}
