package cleaner

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/pithecene-io/snowsink/ingest"
	intclock "github.com/pithecene-io/snowsink/internal/clock"
	"github.com/pithecene-io/snowsink/snowlog"
	"github.com/pithecene-io/snowsink/stagefile"
	"github.com/pithecene-io/snowsink/telemetry"
	"github.com/pithecene-io/snowsink/warehouse"
)

type fakeIngestService struct {
	report    map[string]ingest.Status
	history   map[string]ingest.Status
	reportErr error
}

func (s *fakeIngestService) IngestFiles(ctx context.Context, files []string) error { return nil }
func (s *fakeIngestService) ReadIngestReport(ctx context.Context, files []string) (map[string]ingest.Status, error) {
	if s.reportErr != nil {
		return nil, s.reportErr
	}
	out := make(map[string]ingest.Status, len(files))
	for _, f := range files {
		if st, ok := s.report[f]; ok {
			out[f] = st
		} else {
			out[f] = ingest.StatusRunning
		}
	}
	return out, nil
}
func (s *fakeIngestService) ReadOneHourHistory(ctx context.Context, files []string, since time.Time) (map[string]ingest.Status, error) {
	out := make(map[string]ingest.Status, len(files))
	for _, f := range files {
		if st, ok := s.history[f]; ok {
			out[f] = st
		} else {
			out[f] = ingest.StatusRunning
		}
	}
	return out, nil
}
func (s *fakeIngestService) Close() error { return nil }

type fakeConnection struct {
	purged     []string
	moved      []string
	svc        ingest.Service
	stageFiles []string
}

func (c *fakeConnection) TableExists(ctx context.Context, table string) (bool, error) { return true, nil }
func (c *fakeConnection) StageExists(ctx context.Context, stage string) (bool, error) { return true, nil }
func (c *fakeConnection) PipeExists(ctx context.Context, pipe string) (bool, error)   { return true, nil }
func (c *fakeConnection) IsTableCompatible(ctx context.Context, table string) (bool, error) {
	return true, nil
}
func (c *fakeConnection) IsStageCompatible(ctx context.Context, stage string) (bool, error) {
	return true, nil
}
func (c *fakeConnection) IsPipeCompatible(ctx context.Context, pipe, stage, table string) (bool, error) {
	return true, nil
}
func (c *fakeConnection) CreateTable(ctx context.Context, table string) error { return nil }
func (c *fakeConnection) CreateStage(ctx context.Context, stage string) error { return nil }
func (c *fakeConnection) CreatePipe(ctx context.Context, pipe, stage, table string) error {
	return nil
}
func (c *fakeConnection) ListStage(ctx context.Context, stage, prefix string) ([]string, error) {
	return c.stageFiles, nil
}
func (c *fakeConnection) PutToStage(ctx context.Context, stage, filename string, content []byte) error {
	return nil
}
func (c *fakeConnection) PutToTableStage(ctx context.Context, table, filename string, content []byte) error {
	return nil
}
func (c *fakeConnection) PurgeStage(ctx context.Context, stage string, files []string) error {
	c.purged = append(c.purged, files...)
	return nil
}
func (c *fakeConnection) MoveToTableStage(ctx context.Context, table, stage string, files []string) error {
	c.moved = append(c.moved, files...)
	return nil
}
func (c *fakeConnection) IngestService(pipe string) ingest.Service { return c.svc }
func (c *fakeConnection) Telemetry() telemetry.Client              { return telemetry.Noop{} }
func (c *fakeConnection) ConnectorName() string                    { return "test" }
func (c *fakeConnection) IsClosed() bool                           { return false }
func (c *fakeConnection) Close() error                             { return nil }

var _ warehouse.Connection = (*fakeConnection)(nil)

type fakeTarget struct {
	conn   *fakeConnection
	files  []string
	logger *snowlog.Logger
}

func (t *fakeTarget) Stage() string                    { return "stage/orders" }
func (t *fakeTarget) Table() string                    { return "T_ORDERS" }
func (t *fakeTarget) PipeName() string                 { return "PIPE_ORDERS" }
func (t *fakeTarget) StagePrefix() string              { return "stage/orders" }
func (t *fakeTarget) Connection() warehouse.Connection { return t.conn }
func (t *fakeTarget) Telemetry() telemetry.Client      { return telemetry.Noop{} }
func (t *fakeTarget) Logger() *snowlog.Logger          { return t.logger }
func (t *fakeTarget) TakeCleanerFiles() []string {
	files := t.files
	t.files = nil
	return files
}
func (t *fakeTarget) RequeueCleanerFiles(files []string) {
	t.files = append(t.files, files...)
}
func (t *fakeTarget) PendingFileCount() int { return len(t.files) }
func (t *fakeTarget) MergeCleanerFiles(files []string) {
	seen := make(map[string]bool, len(t.files))
	for _, f := range t.files {
		seen[f] = true
	}
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			t.files = append(t.files, f)
		}
	}
}

func newTestLogger() *snowlog.Logger {
	return snowlog.New(snowlog.TaskContext{Connector: "test", Topic: "orders", Partition: 0})
}

func TestCheckStatusPurgesLoadedFile(t *testing.T) {
	fileName := "stage/orders/0_9_1000.json.gz"
	conn := &fakeConnection{svc: &fakeIngestService{report: map[string]ingest.Status{fileName: ingest.StatusLoaded}}}
	target := &fakeTarget{conn: conn, files: []string{fileName}, logger: newTestLogger()}

	clk := intclock.NewFake(time.UnixMilli(1000))
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})

	c.CheckStatus(context.Background())

	if len(conn.purged) != 1 || conn.purged[0] != fileName {
		t.Fatalf("expected file purged, got %v", conn.purged)
	}
	if len(target.files) != 0 {
		t.Fatalf("expected no residual files, got %v", target.files)
	}
}

func TestCheckStatusMovesFailedFile(t *testing.T) {
	fileName := "stage/orders/0_9_1000.json.gz"
	conn := &fakeConnection{svc: &fakeIngestService{report: map[string]ingest.Status{fileName: ingest.StatusFailed}}}
	target := &fakeTarget{conn: conn, files: []string{fileName}, logger: newTestLogger()}

	clk := intclock.NewFake(time.UnixMilli(1000))
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})
	c.CheckStatus(context.Background())

	if len(conn.moved) != 1 || conn.moved[0] != fileName {
		t.Fatalf("expected file moved to table stage, got %v", conn.moved)
	}
}

func TestCheckStatusRequeuesYoungUnresolvedFile(t *testing.T) {
	now := time.UnixMilli(1000)
	fileName := "stage/orders/0_9_1000.json.gz"
	conn := &fakeConnection{svc: &fakeIngestService{}}
	target := &fakeTarget{conn: conn, files: []string{fileName}, logger: newTestLogger()}

	clk := intclock.NewFake(now)
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})
	c.CheckStatus(context.Background())

	if len(target.files) != 1 {
		t.Fatalf("expected the unresolved file requeued, got %v", target.files)
	}
	if len(conn.purged) != 0 || len(conn.moved) != 0 {
		t.Fatalf("expected no purge/move for a fresh unresolved file")
	}
}

func TestCheckStatusReconcilesAcrossBothSources(t *testing.T) {
	now := time.UnixMilli(100_000_000)
	f1 := stagefile.Encode("stage/orders", 0, 9, now.Add(-5*time.Minute).UnixMilli())
	f2 := stagefile.Encode("stage/orders", 10, 19, now.Add(-30*time.Minute).UnixMilli())
	f3 := stagefile.Encode("stage/orders", 20, 29, now.Add(-2*time.Hour).UnixMilli())

	conn := &fakeConnection{svc: &fakeIngestService{
		report:  map[string]ingest.Status{f1: ingest.StatusLoaded, f2: ingest.StatusNotFound, f3: ingest.StatusNotFound},
		history: map[string]ingest.Status{f2: ingest.StatusFailed},
	}}
	target := &fakeTarget{conn: conn, files: []string{f1, f2, f3}, logger: newTestLogger()}

	clk := intclock.NewFake(now)
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})
	c.CheckStatus(context.Background())

	if len(conn.purged) != 1 || conn.purged[0] != f1 {
		t.Fatalf("expected only F1 purged, got %v", conn.purged)
	}
	moved := append([]string(nil), conn.moved...)
	sort.Strings(moved)
	want := []string{f2, f3}
	if len(moved) != 2 || moved[0] != want[0] || moved[1] != want[1] {
		t.Fatalf("expected F2 and F3 moved to table stage, got %v", conn.moved)
	}
	if len(target.files) != 0 {
		t.Fatalf("expected cleanerFileNames empty after reconciliation, got %v", target.files)
	}
}

func TestCheckStatusAgesOutAfterOneHour(t *testing.T) {
	ingestedAt := time.UnixMilli(1000)
	fileName := "stage/orders/0_9_1000.json.gz"
	conn := &fakeConnection{svc: &fakeIngestService{}}
	target := &fakeTarget{conn: conn, files: []string{fileName}, logger: newTestLogger()}

	clk := intclock.NewFake(ingestedAt.Add(OneHour + time.Minute))
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})
	c.CheckStatus(context.Background())

	if len(conn.moved) != 1 || conn.moved[0] != fileName {
		t.Fatalf("expected aged-out file moved to table stage, got %v", conn.moved)
	}
	if len(target.files) != 0 {
		t.Fatalf("expected no residual after ageOut, got %v", target.files)
	}
}

func TestCheckStatusReturnsErrorAndRequeuesFullListOnReportFailure(t *testing.T) {
	fileName := "stage/orders/0_9_1000.json.gz"
	conn := &fakeConnection{svc: &fakeIngestService{reportErr: errReportRead}}
	target := &fakeTarget{conn: conn, files: []string{fileName}, logger: newTestLogger()}

	clk := intclock.NewFake(time.UnixMilli(1000))
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})

	if err := c.CheckStatus(context.Background()); err == nil {
		t.Fatalf("expected the ingest report read failure to propagate")
	}
	if len(target.files) != 1 || target.files[0] != fileName {
		t.Fatalf("expected the full in-flight list requeued, got %v", target.files)
	}
	if len(conn.purged) != 0 || len(conn.moved) != 0 {
		t.Fatalf("expected no purge/move when the report read itself fails")
	}
}

var errReportRead = fmt.Errorf("ingest report endpoint unavailable")

func TestResetCleanerFilesMergesStageListingDeduplicated(t *testing.T) {
	existing := "stage/orders/0_9_1000.json.gz"
	recovered := "stage/orders/10_19_2000.json.gz"
	conn := &fakeConnection{stageFiles: []string{existing, recovered}}
	target := &fakeTarget{conn: conn, files: []string{existing}, logger: newTestLogger()}

	clk := intclock.NewFake(time.UnixMilli(1000))
	c := New(Params{Target: target, Clock: clk, Interval: time.Minute})

	if err := c.resetCleanerFiles(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(target.files) != 2 {
		t.Fatalf("expected the recovered file merged in without duplicating the existing one, got %v", target.files)
	}
}

