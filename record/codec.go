package record

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// SerializeForBuffer renders Content the way records are appended to a
// PartitionBuffer: a human-readable "field=value" representation of the
// node list, one line per record, rather than a canonical JSON
// encoding. This mirrors a legacy quirk of the connector this sink is
// modeled on and is kept as-is rather than normalized to JSON, since
// stage files already on disk were written in this form.
func SerializeForBuffer(c *Content) string {
	if c == nil {
		return ""
	}
	if c.broken {
		return string(c.raw)
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, n := range c.nodes {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", n.Field, n.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// ToRawBytes produces the raw payload used when a record fails
// conversion and must fall back to Broken content. Byte slices and
// strings pass through unchanged; anything else is msgpack-encoded so
// the broken envelope still carries a deterministic, replayable
// payload instead of a Go %v dump.
func ToRawBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding broken-record fallback payload: %w", err)
		}
		return b, nil
	}
}

// FallbackBroken builds Broken content from an arbitrary raw value, for
// use when Converter.Convert itself returns an error. If the fallback
// encoding also fails, the caller should rethrow the original Convert
// error rather than this one.
func FallbackBroken(value any) (*Content, error) {
	raw, err := ToRawBytes(value)
	if err != nil {
		return nil, err
	}
	return BrokenContent(raw), nil
}
