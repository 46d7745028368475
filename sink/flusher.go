package sink

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pithecene-io/snowsink/buffer"
	"github.com/pithecene-io/snowsink/snowerr"
	"github.com/pithecene-io/snowsink/stagefile"
)

// Flush detaches the current buffer and uploads it as one stage file,
// leaving a fresh buffer in place before the upload starts so Insert
// can keep accumulating the next batch concurrently with the I/O.
//
// A failed upload is not retried by re-buffering the detached records:
// their offsets have already advanced processedOffset, and recovery at
// the next task restart is what reconciles a partially-flushed
// partition, not an in-process retry loop.
func (c *Context) Flush(ctx context.Context) error {
	c.bufferLock.Lock()
	if c.buf.IsEmpty() {
		c.bufferLock.Unlock()
		return nil
	}
	data := c.buf.GetData()
	start := c.buf.FirstOffset()
	end := c.buf.LastOffset()
	c.buf = buffer.New()
	c.lastFlush = c.clock.Now()
	c.bufferLock.Unlock()

	compressed, err := gzipCompress(data)
	if err != nil {
		return fmt.Errorf("compressing flush buffer for %s/%d: %w", c.topic, c.partition, err)
	}

	filename := stagefile.Encode(c.stagePrefix, start, end, c.clock.Now().UnixMilli())
	if err := c.conn.PutToStage(ctx, c.stage, filename, compressed); err != nil {
		return snowerr.Classify(err, "flush", c.stage)
	}

	raiseMax(&c.flushedOffset, end+1)

	c.fileListLock.Lock()
	c.fileNames = append(c.fileNames, filename)
	c.cleanerFileNames = append(c.cleanerFileNames, filename)
	c.fileListLock.Unlock()

	c.telemetry.IncCounter("sink.flush", 1, map[string]string{"topic": c.topic})
	c.telemetry.SetGauge("sink.flush_size_bytes", float64(len(compressed)), map[string]string{"topic": c.topic})
	return nil
}

// raiseMax stores v into counter only if it exceeds the current value,
// matching flushedOffset's "monotonically non-decreasing" invariant
// under concurrent flushes.
func raiseMax(counter *atomic.Int64, v int64) {
	for {
		cur := counter.Load()
		if v <= cur {
			return
		}
		if counter.CompareAndSwap(cur, v) {
			return
		}
	}
}

func gzipCompress(data string) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
