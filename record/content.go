package record

// Node is one structured field of a parsed record key or value.
type Node struct {
	Field string
	Value any
}

// Content is the parsed form of a record key or value: either a
// structured sequence of nodes, or a broken envelope carrying the raw
// bytes that failed to parse. A ServiceContext never inspects the two
// cases through the same field — Broken gates which one is valid.
type Content struct {
	broken bool
	nodes  []Node
	raw    []byte
}

// Structured wraps a successfully parsed node list.
func Structured(nodes []Node) *Content {
	return &Content{nodes: nodes}
}

// BrokenContent wraps the raw bytes of a value that failed to parse.
func BrokenContent(raw []byte) *Content {
	return &Content{broken: true, raw: raw}
}

// IsBroken reports whether this content failed to parse into nodes.
func (c *Content) IsBroken() bool {
	return c != nil && c.broken
}

// RawBytes returns the raw payload of a broken Content. Returns nil for
// structured content.
func (c *Content) RawBytes() []byte {
	if c == nil || !c.broken {
		return nil
	}
	return c.raw
}

// Nodes returns the structured fields. Returns nil for broken content.
func (c *Content) Nodes() []Node {
	if c == nil || c.broken {
		return nil
	}
	return c.nodes
}

// IsValueNull reports whether this content is the semantically-empty
// value (no fields, not broken) that the null-value policy acts on —
// distinct from a tombstone, which never reaches Content at all.
func (c *Content) IsValueNull() bool {
	return c != nil && !c.broken && len(c.nodes) == 0
}

// ValueKind discriminates how a record's value should be treated once
// converted: a plain language-native value, first-party structured
// content, or an explicit null (tombstone).
type ValueKind int

const (
	ValueNative ValueKind = iota
	ValueFirstParty
	ValueNull
)

// Value is the dispatch union ServiceContext.insert branches on after
// the record converter runs.
type Value struct {
	Kind    ValueKind
	Native  any
	Content *Content
}

// Converter is the external collaborator that shapes a raw Kafka
// record key/value object into Content. Its implementation (schema
// registry lookups, JSON/Avro/Protobuf decoding) is out of scope here —
// this is the contract ServiceContext.insert calls through.
type Converter interface {
	Convert(topic string, schema any, raw any) (*Content, error)
}

// ClassifyValue builds the dispatch union ServiceContext.insert's
// null-value policy switches on. A nil raw value is the tombstone shape
// a community converter hands back with nothing to convert; a non-nil
// raw value that a first-party converter reduces to a semantically
// empty Content is a distinct case the IGNORE policy treats the same
// way but arrives at differently.
func ClassifyValue(raw any, content *Content) Value {
	if raw == nil {
		return Value{Kind: ValueNull}
	}
	if content.IsValueNull() {
		return Value{Kind: ValueFirstParty, Content: content}
	}
	return Value{Kind: ValueNative, Native: raw, Content: content}
}
