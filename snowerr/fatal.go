package snowerr

import "fmt"

// FatalCode identifies one of the connector's fatal startup conditions.
// These stop the task; the framework is expected to restart it
// (incompatible objects require operator intervention first).
type FatalCode int

const (
	// FatalIncompatibleTable: the table exists but is not ingestion-compatible.
	FatalIncompatibleTable FatalCode = 5003
	// FatalIncompatibleStage: the stage exists but is not ingestion-compatible.
	FatalIncompatibleStage FatalCode = 5004
	// FatalIncompatiblePipe: the pipe exists but does not bind the expected stage/table.
	FatalIncompatiblePipe FatalCode = 5005
	// FatalNoConnection: the warehouse connection is nil or already closed.
	FatalNoConnection FatalCode = 5010
)

func (c FatalCode) String() string {
	switch c {
	case FatalIncompatibleTable:
		return "incompatible table"
	case FatalIncompatibleStage:
		return "incompatible stage"
	case FatalIncompatiblePipe:
		return "incompatible pipe"
	case FatalNoConnection:
		return "no connection"
	default:
		return fmt.Sprintf("fatal(%d)", int(c))
	}
}

// FatalError aborts task startup. It is never retried by the cleaner;
// the caller of StageBootstrap or ServiceContext initialization must
// propagate it up to the connector framework.
type FatalError struct {
	Code     FatalCode
	Resource string
	Err      error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s (%s): %v", e.Code, e.Code, e.Resource, e.Err)
	}
	return fmt.Sprintf("%d %s (%s)", e.Code, e.Code, e.Resource)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatal constructs a FatalError for the given code/resource.
func NewFatal(code FatalCode, resource string, err error) *FatalError {
	return &FatalError{Code: code, Resource: resource, Err: err}
}
