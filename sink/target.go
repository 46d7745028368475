package sink

import (
	"github.com/pithecene-io/snowsink/cleaner"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse"
)

// The following methods satisfy cleaner.Target, letting a Cleaner
// reconcile this Context's staged files without cleaner importing sink.

func (c *Context) Stage() string                    { return c.stage }
func (c *Context) Table() string                    { return c.table }
func (c *Context) PipeName() string                 { return c.pipe }
func (c *Context) StagePrefix() string              { return c.stagePrefix }
func (c *Context) Connection() warehouse.Connection { return c.conn }
func (c *Context) Telemetry() telemetry.Client      { return c.telemetry }
func (c *Context) Logger() *snowlog.Logger          { return c.logger }

func (c *Context) TakeCleanerFiles() []string {
	c.fileListLock.Lock()
	defer c.fileListLock.Unlock()
	files := c.cleanerFileNames
	c.cleanerFileNames = nil
	return files
}

func (c *Context) RequeueCleanerFiles(files []string) {
	c.fileListLock.Lock()
	defer c.fileListLock.Unlock()
	c.cleanerFileNames = append(c.cleanerFileNames, files...)
}

// PendingFileCount reports how many files are currently tracked for
// cleanup, without taking ownership of them.
func (c *Context) PendingFileCount() int {
	c.fileListLock.Lock()
	defer c.fileListLock.Unlock()
	return len(c.cleanerFileNames)
}

// MergeCleanerFiles unions files into cleanerFileNames, deduplicating
// against what's already tracked. Used by the cleaner's file-list reset
// to recover from any gap between in-memory tracking and stage reality.
func (c *Context) MergeCleanerFiles(files []string) {
	c.fileListLock.Lock()
	defer c.fileListLock.Unlock()
	seen := make(map[string]bool, len(c.cleanerFileNames))
	for _, f := range c.cleanerFileNames {
		seen[f] = true
	}
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			c.cleanerFileNames = append(c.cleanerFileNames, f)
		}
	}
}

var _ cleaner.Target = (*Context)(nil)
