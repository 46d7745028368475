package recovery

import (
	"context"
	"testing"

	"github.com/pithecene-io/snowsink/ingest"
	"github.com/pithecene-io/snowsink/telemetry"
)

type fakeConnection struct {
	files []string
}

func (f *fakeConnection) TableExists(ctx context.Context, table string) (bool, error) { return false, nil }
func (f *fakeConnection) StageExists(ctx context.Context, stage string) (bool, error) { return false, nil }
func (f *fakeConnection) PipeExists(ctx context.Context, pipe string) (bool, error)   { return false, nil }
func (f *fakeConnection) IsTableCompatible(ctx context.Context, table string) (bool, error) {
	return true, nil
}
func (f *fakeConnection) IsStageCompatible(ctx context.Context, stage string) (bool, error) {
	return true, nil
}
func (f *fakeConnection) IsPipeCompatible(ctx context.Context, pipe, stage, table string) (bool, error) {
	return true, nil
}
func (f *fakeConnection) CreateTable(ctx context.Context, table string) error { return nil }
func (f *fakeConnection) CreateStage(ctx context.Context, stage string) error { return nil }
func (f *fakeConnection) CreatePipe(ctx context.Context, pipe, stage, table string) error {
	return nil
}
func (f *fakeConnection) ListStage(ctx context.Context, stage, prefix string) ([]string, error) {
	return f.files, nil
}
func (f *fakeConnection) PutToStage(ctx context.Context, stage, filename string, content []byte) error {
	return nil
}
func (f *fakeConnection) PutToTableStage(ctx context.Context, table, filename string, content []byte) error {
	return nil
}
func (f *fakeConnection) PurgeStage(ctx context.Context, stage string, files []string) error {
	return nil
}
func (f *fakeConnection) MoveToTableStage(ctx context.Context, table, stage string, files []string) error {
	return nil
}
func (f *fakeConnection) IngestService(pipe string) ingest.Service { return nil }
func (f *fakeConnection) Telemetry() telemetry.Client              { return telemetry.Noop{} }
func (f *fakeConnection) ConnectorName() string                    { return "test" }
func (f *fakeConnection) IsClosed() bool                           { return false }
func (f *fakeConnection) Close() error                             { return nil }

func TestRecoverPartitionsByStartOffset(t *testing.T) {
	conn := &fakeConnection{files: []string{
		"stage/orders/0_9_1000.json.gz",
		"stage/orders/10_19_1000.json.gz",
		"stage/orders/20_29_1000.json.gz",
	}}

	result, err := Recover(context.Background(), conn, "stage/orders", "", 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.PreserveSet) != 2 || result.PreserveSet[0] != "stage/orders/0_9_1000.json.gz" || result.PreserveSet[1] != "stage/orders/10_19_1000.json.gz" {
		t.Fatalf("PreserveSet = %v, want the 0_9 and 10_19 files (start offset below 15)", result.PreserveSet)
	}
	if len(result.ReprocessSet) != 1 || result.ReprocessSet[0] != "stage/orders/20_29_1000.json.gz" {
		t.Fatalf("ReprocessSet = %v, want only the 20_29 file", result.ReprocessSet)
	}
}

func TestRecoverPreservesUnparsableNames(t *testing.T) {
	conn := &fakeConnection{files: []string{"stage/orders/not-a-stage-file.json.gz"}}
	result, err := Recover(context.Background(), conn, "stage/orders", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.PreserveSet) != 1 {
		t.Fatalf("expected unparsable name preserved, got %+v", result)
	}
}
