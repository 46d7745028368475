// Package cleaner reconciles stage files the sink has flushed against
// what the warehouse's asynchronous ingestion backend reports about
// them, purging what loaded, escalating what failed, and aging out
// files neither report source ever resolves.
package cleaner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/snowsink/ingest"
	"github.com/pithecene-io/snowsink/internal/clock"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/stagefile"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse"
)

// Ages at which an unresolved file is escalated to a slower, more
// authoritative report source, and eventually given up on.
const (
	TenMinutes = 10 * time.Minute
	OneHour    = 1 * time.Hour
)

// Target is the partition-local state a Cleaner reconciles. sink.Context
// implements this; the interface exists so cleaner doesn't import sink
// and create a cycle.
type Target interface {
	Stage() string
	Table() string
	PipeName() string
	StagePrefix() string
	Connection() warehouse.Connection
	Telemetry() telemetry.Client
	Logger() *snowlog.Logger

	// TakeCleanerFiles removes and returns every file currently
	// tracked for cleanup, clearing the target's own list.
	TakeCleanerFiles() []string
	// RequeueCleanerFiles adds files back to the target's tracked
	// list, used for files still too young to resolve or that the
	// cleaner couldn't process this pass.
	RequeueCleanerFiles(files []string)
	// PendingFileCount reports how many files are tracked for cleanup
	// right now, without taking ownership of them.
	PendingFileCount() int
	// MergeCleanerFiles unions files into the tracked list,
	// deduplicated, used to recover from a lost or corrupted in-memory
	// file list by re-listing the stage from scratch.
	MergeCleanerFiles(files []string)
}

// Params configures a Cleaner.
type Params struct {
	Target   Target
	Clock    clock.Clock
	Interval time.Duration
}

// Cleaner runs a periodic reconciliation loop for one partition's
// staged files.
type Cleaner struct {
	target   Target
	clock    clock.Clock
	interval time.Duration
	stopCh   chan struct{}

	forceReset atomic.Bool
}

// New builds a Cleaner. Start must be called to begin the periodic
// loop.
func New(p Params) *Cleaner {
	return &Cleaner{
		target:   p.Target,
		clock:    p.Clock,
		interval: p.Interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the reconciliation loop in a goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Stop ends the reconciliation loop. Safe to call once; a second call
// panics, matching a programming-error-only use pattern shared with
// the rest of this package's lifecycle methods.
func (c *Cleaner) Stop() {
	close(c.stopCh)
}

func (c *Cleaner) loop(ctx context.Context) {
	for {
		c.emitSnapshot()

		select {
		case <-c.clock.After(c.interval):
		case <-c.stopCh:
			return
		}

		if c.forceReset.Load() {
			if err := c.resetCleanerFiles(ctx); err != nil {
				c.target.Logger().Warn("cleaner file reset failed, retrying next cycle", map[string]any{"error": err.Error()})
				continue
			}
			c.forceReset.Store(false)
			continue
		}

		if err := c.CheckStatus(ctx); err != nil {
			c.forceReset.Store(true)
			c.target.Telemetry().IncCounter("cleaner.fatal", 1, map[string]string{"table": c.target.Table()})
			c.target.Logger().Error("cleaner check failed, forcing a file-list reset next cycle", map[string]any{"error": err.Error()})
		}
	}
}

// emitSnapshot reports the current reconciliation backlog size before
// each cycle sleeps, the periodic health signal alongside the
// purged/failed counters CheckStatus emits.
func (c *Cleaner) emitSnapshot() {
	c.target.Telemetry().SetGauge("cleaner.pending_files", float64(c.target.PendingFileCount()), map[string]string{"table": c.target.Table()})
}

// resetCleanerFiles re-lists the stage from scratch and unions the
// result into the tracked file list, the recovery path for when
// in-memory tracking may have lost a file a transient remote error
// left unaccounted for.
func (c *Cleaner) resetCleanerFiles(ctx context.Context) error {
	files, err := c.target.Connection().ListStage(ctx, c.target.Stage(), c.target.StagePrefix())
	if err != nil {
		return err
	}
	c.target.MergeCleanerFiles(files)
	return nil
}

// CheckStatus runs one reconciliation pass: it takes ownership of every
// file the target is tracking, asks the ingest service for their
// status, and purges/escalates/requeues each one. Exported so tests and
// an operator-triggered force-check can run it synchronously.
//
// Two sources are consulted in order of freshness: the ingest report
// (short retention, fast) first, then the one-hour load history for
// anything it left unresolved and old enough to be worth the extra
// round trip. A file unresolved past OneHour is given up on and moved
// to the table stage without a second history check — the source is
// long enough by then that waiting further buys nothing.
func (c *Cleaner) CheckStatus(ctx context.Context) error {
	files := c.target.TakeCleanerFiles()
	if len(files) == 0 {
		return nil
	}

	svc := c.target.Connection().IngestService(c.target.PipeName())
	report, err := svc.ReadIngestReport(ctx, files)
	if err != nil {
		c.target.Logger().Warn("ingest report read failed, requeueing", map[string]any{"error": err.Error(), "files": len(files)})
		c.target.RequeueCleanerFiles(files)
		return err
	}

	var loaded, failed, remaining []string
	for _, f := range files {
		switch {
		case report[f] == ingest.StatusLoaded:
			loaded = append(loaded, f)
		case report[f] == ingest.StatusFailed || report[f] == ingest.StatusPartiallyLoaded:
			failed = append(failed, f)
		default:
			remaining = append(remaining, f)
		}
	}

	now := c.clock.Now()
	var tmp, needsHistory []string
	for _, f := range remaining {
		switch age := fileAge(now, f); {
		case age >= OneHour:
			failed = append(failed, f)
		case age >= TenMinutes:
			needsHistory = append(needsHistory, f)
			tmp = append(tmp, f)
		default:
			tmp = append(tmp, f)
		}
	}

	if len(needsHistory) > 0 {
		history, err := svc.ReadOneHourHistory(ctx, needsHistory, now.Add(-OneHour))
		if err != nil {
			c.target.Logger().Warn("load history read failed, requeueing", map[string]any{"error": err.Error(), "files": len(files)})
			c.target.RequeueCleanerFiles(files)
			return err
		}
		var young []string
		for _, f := range tmp {
			switch history[f] {
			case ingest.StatusLoaded:
				loaded = append(loaded, f)
			case ingest.StatusFailed, ingest.StatusPartiallyLoaded:
				failed = append(failed, f)
			default:
				young = append(young, f)
			}
		}
		tmp = young
	}

	if len(loaded) > 0 {
		c.purge(ctx, loaded)
	}
	if len(failed) > 0 {
		c.moveToTableStage(ctx, failed)
	}
	if len(tmp) > 0 {
		c.target.RequeueCleanerFiles(tmp)
	}
	return nil
}

// purge removes every confirmed-loaded file from stage in one batch.
func (c *Cleaner) purge(ctx context.Context, files []string) {
	if err := c.target.Connection().PurgeStage(ctx, c.target.Stage(), files); err != nil {
		c.target.Logger().Error("failed to purge loaded files", map[string]any{"files": len(files), "error": err.Error()})
		c.target.RequeueCleanerFiles(files)
		return
	}
	c.target.Telemetry().IncCounter("cleaner.loaded", int64(len(files)), map[string]string{"table": c.target.Table()})
}

// moveToTableStage relocates files that failed ingestion, partially
// loaded, or aged out past OneHour without ever resolving. Moved
// rather than deleted, so an operator can inspect and reload by hand.
func (c *Cleaner) moveToTableStage(ctx context.Context, files []string) {
	if err := c.target.Connection().MoveToTableStage(ctx, c.target.Table(), c.target.Stage(), files); err != nil {
		c.target.Logger().Error("failed to move failed/aged-out files to table stage", map[string]any{"files": len(files), "error": err.Error()})
		c.target.RequeueCleanerFiles(files)
		return
	}
	c.target.Telemetry().IncCounter("cleaner.load_failed", int64(len(files)), map[string]string{"table": c.target.Table()})
}

func fileAge(now time.Time, file string) time.Duration {
	ingestedAt, err := stagefile.ToTimeIngested(file)
	if err != nil {
		return 0
	}
	return now.Sub(time.UnixMilli(ingestedAt))
}
