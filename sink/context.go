// Package sink implements the per-partition service context that ties
// record ingestion, buffering, flushing, and offset bookkeeping
// together: one Context per (topic, partition) the task owns.
package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/snowsink/buffer"
	"github.com/pithecene-io/snowsink/cleaner"
	"github.com/pithecene-io/snowsink/config"
	"github.com/pithecene-io/snowsink/internal/clock"
	"github.com/pithecene-io/snowsink/record"
	"github.com/pithecene-io/snowsink/recovery"
	"github.com/pithecene-io/snowsink/snowerr"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/stagefile"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse"
)

// CleanPeriod is the interval between cleaner reconciliation passes.
const CleanPeriod = 60 * time.Second

// Params configures a new Context. FirstRecordOffset is the offset the
// owning consumer will deliver first on this run; it drives recovery's
// reprocess/preserve split.
type Params struct {
	Topic             string
	Partition         int32
	Table             string
	Stage             string
	Pipe              string
	StagePrefix       string
	FirstRecordOffset int64

	Connection warehouse.Connection
	Converter  record.Converter
	Config     *config.Config
	Clock      clock.Clock
	Logger     *snowlog.Logger
	Telemetry  telemetry.Client
}

// Context is one partition's ServiceContext: the owner of its
// PartitionBuffer, its pending/committed offsets, and the stage files
// it has produced that are awaiting ingest or cleanup.
type Context struct {
	topic       string
	partition   int32
	table       string
	stage       string
	pipe        string
	stagePrefix string

	firstRecordOffset int64

	conn      warehouse.Connection
	converter record.Converter
	cfg       *config.Config
	clock     clock.Clock
	logger    *snowlog.Logger
	telemetry telemetry.Client

	bufferLock sync.Mutex
	buf        *buffer.PartitionBuffer
	lastFlush  time.Time

	fileListLock     sync.Mutex
	fileNames        []string
	cleanerFileNames []string

	processedOffset atomic.Int64
	flushedOffset   atomic.Int64
	committedOffset atomic.Int64

	initOnce  sync.Once
	initErr   error
	isStopped atomic.Bool

	cleaner *cleaner.Cleaner
}

// New constructs a Context. Bootstrap, recovery and cleaner startup are
// deferred to the first Insert/InsertAll call rather than done here, so
// construction itself cannot fail on a warehouse round trip.
func New(p Params) *Context {
	c := &Context{
		topic:             p.Topic,
		partition:         p.Partition,
		table:             p.Table,
		stage:             p.Stage,
		pipe:              p.Pipe,
		stagePrefix:       p.StagePrefix,
		firstRecordOffset: p.FirstRecordOffset,
		conn:              p.Connection,
		converter:         p.Converter,
		cfg:               p.Config,
		clock:             p.Clock,
		logger:            p.Logger,
		telemetry:         p.Telemetry,
		buf:               buffer.New(),
	}
	c.processedOffset.Store(p.FirstRecordOffset - 1)
	c.flushedOffset.Store(p.FirstRecordOffset)
	c.committedOffset.Store(p.FirstRecordOffset)
	c.lastFlush = p.Clock.Now()
	return c
}

func (c *Context) ensureInitialized(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.initialize(ctx)
	})
	return c.initErr
}

func (c *Context) initialize(ctx context.Context) error {
	if _, err := warehouse.EnsureTableStagePipe(ctx, c.conn, c.table, c.stage, c.pipe); err != nil {
		return err
	}

	result, err := recovery.Recover(ctx, c.conn, c.stage, c.stagePrefix, c.firstRecordOffset)
	if err != nil {
		return err
	}

	c.fileListLock.Lock()
	c.cleanerFileNames = append(c.cleanerFileNames, result.PreserveSet...)
	c.fileListLock.Unlock()

	recovery.SchedulePurge(ctx, c.clock, c.logger, c.conn, c.stage, result.ReprocessSet, CleanPeriod)

	c.cleaner = cleaner.New(cleaner.Params{
		Target:   c,
		Clock:    c.clock,
		Interval: CleanPeriod,
	})
	c.cleaner.Start(ctx)

	c.logger.Info("service context initialized", map[string]any{
		"topic":     c.topic,
		"partition": c.partition,
		"preserved": len(result.PreserveSet),
		"reprocess": len(result.ReprocessSet),
	})
	return nil
}

// Insert converts, buffers or directly stages one record. A buffered
// record's offset is reflected in processedOffset when Insert returns —
// not necessarily flushed to stage yet; a record dropped by the null-value
// policy or routed to the table stage as broken leaves processedOffset
// unchanged.
func (c *Context) Insert(ctx context.Context, rec *record.SinkRecord) error {
	if err := c.ensureInitialized(ctx); err != nil {
		return err
	}

	if rec.Offset <= c.processedOffset.Load() {
		return nil
	}

	content, convertErr := c.converter.Convert(rec.Topic, rec.ValueSchema, rec.Value)
	if convertErr != nil {
		var fallbackErr error
		content, fallbackErr = record.FallbackBroken(rec.Value)
		if fallbackErr != nil {
			return convertErr
		}
	}

	var keyContent *record.Content
	if rec.Key != nil {
		var keyErr error
		keyContent, keyErr = c.converter.Convert(rec.Topic, rec.KeySchema, rec.Key)
		if keyErr != nil {
			var fallbackErr error
			keyContent, fallbackErr = record.FallbackBroken(rec.Key)
			if fallbackErr != nil {
				return keyErr
			}
		}
	}

	if c.cfg.BehaviorOnNullValues == config.BehaviorIgnore {
		switch record.ClassifyValue(rec.Value, content).Kind {
		case record.ValueNull, record.ValueFirstParty:
			return nil
		}
	}

	if content.IsBroken() || (keyContent != nil && keyContent.IsBroken()) {
		return c.insertBroken(ctx, rec, keyContent, content)
	}

	serialized := record.SerializeForBuffer(content)

	c.bufferLock.Lock()
	c.buf.Insert(rec.Offset, serialized)
	c.processedOffset.Store(rec.Offset)
	shouldFlush := c.thresholdExceededLocked()
	c.bufferLock.Unlock()

	if shouldFlush {
		if err := c.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InsertAll inserts each record in order, then applies the time-based
// flush threshold once for the whole batch rather than after every
// record.
func (c *Context) InsertAll(ctx context.Context, records []*record.SinkRecord) error {
	for _, rec := range records {
		if err := c.Insert(ctx, rec); err != nil {
			return err
		}
	}

	c.bufferLock.Lock()
	due := !c.buf.IsEmpty() && c.clock.Now().Sub(c.lastFlush) >= time.Duration(c.cfg.FlushTimeSec)*time.Second
	c.bufferLock.Unlock()

	if due {
		return c.Flush(ctx)
	}
	return nil
}

// thresholdExceededLocked reports whether the buffer has crossed its
// size or record-count flush threshold. Caller must hold bufferLock.
func (c *Context) thresholdExceededLocked() bool {
	if c.buf.BufferSize() >= c.cfg.FileSizeBytes {
		return true
	}
	if c.cfg.RecordNum > 0 && c.buf.NumOfRecord() >= c.cfg.RecordNum {
		return true
	}
	return false
}

// insertBroken writes each non-null broken part directly to the
// table's own stage, never the pipe stage: a broken part is never a
// candidate for Snowpipe ingestion. processedOffset is deliberately
// left untouched so the same offset is re-presented on the next poll,
// letting a later, repaired version of the record flow normally.
func (c *Context) insertBroken(ctx context.Context, rec *record.SinkRecord, keyContent, valueContent *record.Content) error {
	now := c.clock.Now().UnixMilli()

	if valueContent.IsBroken() {
		filename := stagefile.EncodeBroken(c.stagePrefix, rec.Offset, now, false)
		if err := c.conn.PutToTableStage(ctx, c.table, filename, valueContent.RawBytes()); err != nil {
			return snowerr.Classify(err, "put_broken_value", c.table)
		}
		c.telemetry.IncCounter("sink.broken_record", 1, map[string]string{"topic": c.topic, "part": "value"})
	}

	if keyContent != nil && keyContent.IsBroken() {
		filename := stagefile.EncodeBroken(c.stagePrefix, rec.Offset, now, true)
		if err := c.conn.PutToTableStage(ctx, c.table, filename, keyContent.RawBytes()); err != nil {
			return snowerr.Classify(err, "put_broken_key", c.table)
		}
		c.telemetry.IncCounter("sink.broken_record", 1, map[string]string{"topic": c.topic, "part": "key"})
	}

	return nil
}

// ProcessedOffset returns the offset of the last record Insert
// accepted.
func (c *Context) ProcessedOffset() int64 { return c.processedOffset.Load() }

// FlushedOffset returns one past the highest offset written to a
// stage file so far.
func (c *Context) FlushedOffset() int64 { return c.flushedOffset.Load() }

// CommittedOffset returns the offset safe to commit back to the
// consumer framework.
func (c *Context) CommittedOffset() int64 { return c.committedOffset.Load() }

// Close stops the cleaner and best-effort flushes any buffered
// records. Safe to call more than once.
func (c *Context) Close(ctx context.Context) error {
	if !c.isStopped.CompareAndSwap(false, true) {
		return nil
	}
	if c.cleaner != nil {
		c.cleaner.Stop()
	}
	return c.Flush(ctx)
}
