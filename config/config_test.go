package config

import "testing"

func TestNormalizeClampsFileSize(t *testing.T) {
	c := &Config{FileSizeBytes: 100, FlushTimeSec: BufferFlushTimeSecDefault}
	warnings := c.Normalize()
	if c.FileSizeBytes != BufferSizeBytesDefault {
		t.Fatalf("FileSizeBytes = %d, want default %d", c.FileSizeBytes, BufferSizeBytesDefault)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
}

func TestNormalizeResetsNegativeRecordNum(t *testing.T) {
	c := &Config{FileSizeBytes: BufferSizeBytesDefault, RecordNum: -5, FlushTimeSec: BufferFlushTimeSecDefault}
	c.Normalize()
	if c.RecordNum != 0 {
		t.Fatalf("RecordNum = %d, want 0", c.RecordNum)
	}
}

func TestNormalizeClampsFlushTime(t *testing.T) {
	c := &Config{FileSizeBytes: BufferSizeBytesDefault, FlushTimeSec: 1}
	c.Normalize()
	if c.FlushTimeSec != BufferFlushTimeSecMin {
		t.Fatalf("FlushTimeSec = %d, want %d", c.FlushTimeSec, BufferFlushTimeSecMin)
	}
}

func TestNormalizeDefaultsNullBehavior(t *testing.T) {
	c := &Config{FileSizeBytes: BufferSizeBytesDefault, FlushTimeSec: BufferFlushTimeSecDefault}
	c.Normalize()
	if c.BehaviorOnNullValues != BehaviorDefault {
		t.Fatalf("BehaviorOnNullValues = %q, want DEFAULT", c.BehaviorOnNullValues)
	}
}

func TestNormalizeRejectsUnknownBehavior(t *testing.T) {
	c := &Config{FileSizeBytes: BufferSizeBytesDefault, FlushTimeSec: BufferFlushTimeSecDefault, BehaviorOnNullValues: "BOGUS"}
	warnings := c.Normalize()
	if c.BehaviorOnNullValues != BehaviorDefault {
		t.Fatalf("BehaviorOnNullValues = %q, want DEFAULT fallback", c.BehaviorOnNullValues)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
}

func TestTableForUsesMapOrDerives(t *testing.T) {
	c := &Config{Topic2TableMap: map[string]string{"orders": "T_ORDERS"}}
	if got := c.TableFor("orders"); got != "T_ORDERS" {
		t.Fatalf("TableFor(orders) = %q, want T_ORDERS", got)
	}
	if got := c.TableFor("events.v2-raw"); got != "events_v2_raw" {
		t.Fatalf("TableFor(unmapped) = %q, want events_v2_raw", got)
	}
}
