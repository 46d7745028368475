// Package ingest defines the contract for an asynchronous file-ingestion
// backend (a Snowpipe-style load path): files are handed off for
// loading, and their outcome is discovered later through one of two
// report sources rather than a synchronous response.
package ingest

import (
	"context"
	"time"
)

// Status is the load outcome of a single staged file, as reported by
// either ingest-report or load-history source.
type Status string

const (
	StatusRunning         Status = "RUNNING"
	StatusLoaded          Status = "LOADED"
	StatusFailed          Status = "FAILED"
	StatusPartiallyLoaded Status = "PARTIALLY_LOADED"
	StatusNotFound        Status = "NOT_FOUND"
)

// IsTerminal reports whether this status will never change on a later
// poll.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusLoaded, StatusFailed, StatusPartiallyLoaded:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the file reached a fully-loaded terminal
// state.
func (s Status) Succeeded() bool {
	return s == StatusLoaded
}

// Service is the warehouse's asynchronous ingestion backend: files are
// queued with IngestFiles and their outcome discovered later through
// ReadIngestReport (recent, low-latency) or ReadOneHourHistory (slower,
// authoritative over a longer retention window).
type Service interface {
	// IngestFiles queues files for asynchronous loading. It does not
	// block on load completion.
	IngestFiles(ctx context.Context, files []string) error

	// ReadIngestReport returns the most recent known status for each of
	// files. Files with no report yet are StatusNotFound.
	ReadIngestReport(ctx context.Context, files []string) (map[string]Status, error)

	// ReadOneHourHistory returns status for files ingested since, using
	// the slower but longer-retention history source. Used for files
	// that have aged out of ReadIngestReport's window without a terminal
	// status.
	ReadOneHourHistory(ctx context.Context, files []string, since time.Time) (map[string]Status, error)

	// Close releases resources held by the service.
	Close() error
}
