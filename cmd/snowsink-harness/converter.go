package main

import (
	"encoding/json"
	"fmt"

	"github.com/pithecene-io/snowsink/record"
)

// jsonConverter is a minimal record.Converter for the demo harness: it
// parses a JSON object value into a flat node list. An empty value
// converts to empty structured content; any other value that isn't a
// JSON object (or fails to parse) is an error, which Insert falls back
// to Broken content for.
type jsonConverter struct{}

func (jsonConverter) Convert(topic string, schema any, value any) (*record.Content, error) {
	raw, err := record.ToRawBytes(value)
	if err != nil {
		return nil, fmt.Errorf("coercing raw value for %s: %w", topic, err)
	}
	if len(raw) == 0 {
		return record.Structured(nil), nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parsing JSON value for %s: %w", topic, err)
	}

	nodes := make([]record.Node, 0, len(obj))
	for field, v := range obj {
		nodes = append(nodes, record.Node{Field: field, Value: v})
	}
	return record.Structured(nodes), nil
}

var _ record.Converter = jsonConverter{}
