// Package recovery reconciles the stage files already present at task
// startup (from a prior run that crashed or was rebalanced away)
// against the first offset the new task is about to process.
package recovery

import (
	"context"

	"github.com/pithecene-io/snowsink/snowerr"
	"github.com/pithecene-io/snowsink/stagefile"
	"github.com/pithecene-io/snowsink/warehouse"
)

// Result partitions the files found on stage at startup into the set
// the cleaner should keep tracking (preserveSet) and the set that must
// be reprocessed because the new task's first record offset already
// covers them (reprocessSet).
type Result struct {
	PreserveSet  []string
	ReprocessSet []string
}

// Recover lists stageName under prefix and partitions the result: a
// file whose start offset is at or after firstRecordOffset will be
// re-emitted by the consumer on this run, so its stage copy is a
// duplicate and belongs in ReprocessSet; everything else is handed to
// the cleaner via PreserveSet exactly as it would have been had the
// task never restarted.
//
// Listing returns a fresh snapshot from the warehouse on every call, so
// iterating it directly already has snapshot semantics: a file appended
// to stage mid-recovery by some other writer doesn't retroactively
// change this partition.
func Recover(ctx context.Context, conn warehouse.Connection, stage, prefix string, firstRecordOffset int64) (*Result, error) {
	files, err := conn.ListStage(ctx, stage, prefix)
	if err != nil {
		return nil, snowerr.Classify(err, "list_stage", stage)
	}

	result := &Result{}
	for _, f := range files {
		start, err := stagefile.ToStartOffset(f)
		if err != nil {
			// A name recovery can't parse isn't safe to reprocess
			// automatically; hand it to the cleaner like any other
			// preserved file rather than silently dropping it.
			result.PreserveSet = append(result.PreserveSet, f)
			continue
		}
		if start >= firstRecordOffset {
			result.ReprocessSet = append(result.ReprocessSet, f)
		} else {
			result.PreserveSet = append(result.PreserveSet, f)
		}
	}
	return result, nil
}
