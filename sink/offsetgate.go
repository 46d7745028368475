package sink

import (
	"context"

	"github.com/pithecene-io/snowsink/snowerr"
)

// GetOffset implements the offset-gate sequence run on every consumer
// commit: pending flushed files are swapped out, committedOffset
// advances to flushedOffset unconditionally, and only then is the
// ingest service asked to trigger Snowpipe on the swapped-out files.
// Offset-commit progress is deliberately independent of whether that
// trigger succeeds: cleanerFileNames already carries these filenames
// from Flush, so a failed trigger here is reconciled later by the
// cleaner/aging path rather than by retrying the commit.
func (c *Context) GetOffset(ctx context.Context) (int64, error) {
	c.fileListLock.Lock()
	pending := c.fileNames
	c.fileNames = nil
	c.fileListLock.Unlock()

	if len(pending) == 0 {
		return c.committedOffset.Load(), nil
	}

	c.committedOffset.Store(c.flushedOffset.Load())

	if err := c.conn.IngestService(c.pipe).IngestFiles(ctx, pending); err != nil {
		return c.committedOffset.Load(), snowerr.Classify(err, "ingest_files", c.pipe)
	}

	return c.committedOffset.Load(), nil
}
