// Package record models the sink's view of an ingested Kafka-style
// record and the parsed/broken content derived from its key and value.
//
// The record converter and metadata shaper that produce Content from raw
// key/value objects are external collaborators, consumed only — this
// package defines the Converter contract they satisfy, not their
// implementation.
package record

import "time"

// Header is a single record header entry.
type Header struct {
	Key   string
	Value []byte
}

// SinkRecord is the input unit delivered to a ServiceContext.
type SinkRecord struct {
	Topic         string
	Partition     int32
	Key           any
	Value         any
	KeySchema     any
	ValueSchema   any
	Offset        int64
	Timestamp     time.Time
	TimestampType string
	Headers       []Header
}
