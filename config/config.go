// Package config parses the per-connector sink configuration. Values act
// as defaults; the connector framework's own config resolution always
// wins over what is loaded here.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Minimum and default thresholds: values outside range are
// clamped with a warning, never rejected outright.
const (
	BufferSizeBytesMin        = 1 * 1024 * 1024 // 1 MiB
	BufferSizeBytesDefault    = 100 * 1024 * 1024
	BufferFlushTimeSecMin     = 10
	BufferFlushTimeSecDefault = 120
)

// NullBehavior controls how tombstones/semantically-null values are
// handled by ServiceContext.insert.
type NullBehavior string

const (
	// BehaviorDefault keeps the record even when its value is null/empty.
	BehaviorDefault NullBehavior = "DEFAULT"
	// BehaviorIgnore drops null-valued records instead of buffering them.
	BehaviorIgnore NullBehavior = "IGNORE"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "30s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "30s" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the per-connector configuration consumed by ServiceContext.
// All fields are optional; Normalize() applies the clamping rules below.
type Config struct {
	// FileSizeBytes is the buffer size threshold that triggers a flush.
	FileSizeBytes int64 `yaml:"file_size_bytes"`
	// RecordNum is the buffer record-count threshold; 0 disables it.
	RecordNum int `yaml:"record_num"`
	// FlushTimeSec is the time-based flush threshold in seconds.
	FlushTimeSec int64 `yaml:"flush_time_sec"`
	// Topic2TableMap maps topic name to destination table name.
	Topic2TableMap map[string]string `yaml:"topic2table_map"`
	// BehaviorOnNullValues controls the tombstone/null-value policy.
	BehaviorOnNullValues NullBehavior `yaml:"behavior_on_null_values"`
	// MetadataConfig is decoded from YAML but not read by the sink: the
	// record serializer (record.SerializeForBuffer) takes no metadata
	// settings.
	MetadataConfig map[string]string `yaml:"metadata_config"`

	// Warehouse connection coordinates for warehouse/s3stage.
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// WarehouseConfig configures the concrete warehouse.Connection backing
// the internal/table stage and pipe.
type WarehouseConfig struct {
	StagePrefix  string `yaml:"stage_prefix"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Warnings collects clamp warnings produced by Normalize, so callers can
// route them through their own logger without Config depending on one.
type Warnings []string

// Normalize applies the clamping rules in place and returns any
// warnings that were produced.
func (c *Config) Normalize() Warnings {
	var warnings Warnings

	if c.FileSizeBytes < BufferSizeBytesMin {
		warnings = append(warnings, fmt.Sprintf(
			"file_size_bytes %d below minimum %d, resetting to default %d",
			c.FileSizeBytes, BufferSizeBytesMin, BufferSizeBytesDefault))
		c.FileSizeBytes = BufferSizeBytesDefault
	}

	if c.RecordNum < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"record_num %d is negative, resetting to 0 (disabled)", c.RecordNum))
		c.RecordNum = 0
	}

	if c.FlushTimeSec < BufferFlushTimeSecMin {
		warnings = append(warnings, fmt.Sprintf(
			"flush_time_sec %d below minimum %d, clamping up",
			c.FlushTimeSec, BufferFlushTimeSecMin))
		c.FlushTimeSec = BufferFlushTimeSecMin
	}

	switch c.BehaviorOnNullValues {
	case "":
		c.BehaviorOnNullValues = BehaviorDefault
	case BehaviorDefault, BehaviorIgnore:
	default:
		warnings = append(warnings, fmt.Sprintf(
			"unknown behavior_on_null_values %q, resetting to DEFAULT", c.BehaviorOnNullValues))
		c.BehaviorOnNullValues = BehaviorDefault
	}

	return warnings
}

// TableFor resolves the destination table for a topic, falling back to a
// default derivation (the topic name, sanitized) for unmapped topics.
func (c *Config) TableFor(topic string) string {
	if t, ok := c.Topic2TableMap[topic]; ok && t != "" {
		return t
	}
	return sanitizeIdentifier(topic)
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
