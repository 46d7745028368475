// Package warehouse defines the sink's contract with the destination
// warehouse: table/stage/pipe bootstrap, stage object storage, and
// access to the asynchronous ingest.Service that loads staged files.
package warehouse

import (
	"context"

	"github.com/pithecene-io/snowsink/ingest"
	"github.com/pithecene-io/snowsink/telemetry"
)

// Connection is the warehouse-side collaborator a ServiceContext
// bootstraps against and flushes through. Concrete implementations
// (warehouse/s3stage being the one shipped here) own the actual
// network client.
type Connection interface {
	TableExists(ctx context.Context, table string) (bool, error)
	StageExists(ctx context.Context, stage string) (bool, error)
	PipeExists(ctx context.Context, pipe string) (bool, error)

	IsTableCompatible(ctx context.Context, table string) (bool, error)
	IsStageCompatible(ctx context.Context, stage string) (bool, error)
	IsPipeCompatible(ctx context.Context, pipe, stage, table string) (bool, error)

	CreateTable(ctx context.Context, table string) error
	CreateStage(ctx context.Context, stage string) error
	CreatePipe(ctx context.Context, pipe, stage, table string) error

	// ListStage returns the filenames currently under prefix in stage,
	// used by recovery to enumerate what survived a prior run.
	ListStage(ctx context.Context, stage, prefix string) ([]string, error)

	// PutToStage uploads content under filename in stage.
	PutToStage(ctx context.Context, stage, filename string, content []byte) error

	// PutToTableStage uploads content directly onto table's own
	// built-in stage, bypassing the pipe stage entirely. Used for
	// broken records, which are never candidates for pipe ingestion.
	PutToTableStage(ctx context.Context, table, filename string, content []byte) error

	// PurgeStage deletes files from stage once they're confirmed loaded,
	// or when recovery finds them duplicated by the incoming stream.
	// Aged-out files are moved with MoveToTableStage, not purged.
	PurgeStage(ctx context.Context, stage string, files []string) error

	// MoveToTableStage relocates files from stage onto table's own
	// built-in stage, used to hand off files the pipe never picked up.
	MoveToTableStage(ctx context.Context, table, stage string, files []string) error

	// IngestService returns the asynchronous file-ingestion backend
	// bound to pipe.
	IngestService(pipe string) ingest.Service

	// Telemetry returns the telemetry sink this connection reports
	// through. Never nil.
	Telemetry() telemetry.Client

	// ConnectorName identifies the owning connector for logging.
	ConnectorName() string

	// IsClosed reports whether Close has already been called.
	IsClosed() bool

	Close() error
}
