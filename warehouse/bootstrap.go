package warehouse

import (
	"context"
	"errors"

	"github.com/pithecene-io/snowsink/snowerr"
)

// BootstrapResult records which of table/stage/pipe already existed, so
// the caller can fold that into its own creation-telemetry record
// rather than recompute it.
type BootstrapResult struct {
	TableReused bool
	StageReused bool
	PipeReused  bool
}

// EnsureTableStagePipe bootstraps the destination objects for one
// topic-table binding: the table, its stage, and the pipe connecting
// them. Each object is checked for existence before creation; an
// existing-but-incompatible object is a fatal error rather than a
// silent overwrite, since Connection has no way to reconcile schema
// drift on its own.
func EnsureTableStagePipe(ctx context.Context, conn Connection, table, stage, pipe string) (*BootstrapResult, error) {
	if conn == nil || conn.IsClosed() {
		return nil, snowerr.NewFatal(snowerr.FatalNoConnection, stage, errors.New("connection is nil or closed"))
	}

	result := &BootstrapResult{}

	tableReused, err := ensureObject(ctx, table,
		func() (bool, error) { return conn.TableExists(ctx, table) },
		func() (bool, error) { return conn.IsTableCompatible(ctx, table) },
		func() error { return conn.CreateTable(ctx, table) },
		snowerr.FatalIncompatibleTable,
	)
	if err != nil {
		return nil, err
	}
	result.TableReused = tableReused

	stageReused, err := ensureObject(ctx, stage,
		func() (bool, error) { return conn.StageExists(ctx, stage) },
		func() (bool, error) { return conn.IsStageCompatible(ctx, stage) },
		func() error { return conn.CreateStage(ctx, stage) },
		snowerr.FatalIncompatibleStage,
	)
	if err != nil {
		return nil, err
	}
	result.StageReused = stageReused

	pipeReused, err := ensureObject(ctx, pipe,
		func() (bool, error) { return conn.PipeExists(ctx, pipe) },
		func() (bool, error) { return conn.IsPipeCompatible(ctx, pipe, stage, table) },
		func() error { return conn.CreatePipe(ctx, pipe, stage, table) },
		snowerr.FatalIncompatiblePipe,
	)
	if err != nil {
		return nil, err
	}
	result.PipeReused = pipeReused

	return result, nil
}

// ensureObject implements the existence -> compatibility -> create
// ordering shared by table, stage, and pipe bootstrap: an object that
// exists and is compatible is reused; one that exists and is not
// compatible is fatal; one that doesn't exist is created.
func ensureObject(
	ctx context.Context,
	resource string,
	exists func() (bool, error),
	compatible func() (bool, error),
	create func() error,
	fatalCode snowerr.FatalCode,
) (reused bool, err error) {
	ok, err := exists()
	if err != nil {
		return false, snowerr.Classify(err, "exists", resource)
	}
	if !ok {
		if err := create(); err != nil {
			return false, snowerr.Classify(err, "create", resource)
		}
		return false, nil
	}

	compat, err := compatible()
	if err != nil {
		return false, snowerr.Classify(err, "compatible", resource)
	}
	if !compat {
		return false, snowerr.NewFatal(fatalCode, resource, nil)
	}
	return true, nil
}
