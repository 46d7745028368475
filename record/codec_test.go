package record

import "testing"

func TestSerializeForBufferStructured(t *testing.T) {
	c := Structured([]Node{{Field: "id", Value: 7}, {Field: "name", Value: "a"}})
	got := SerializeForBuffer(c)
	want := "{id=7,name=a}"
	if got != want {
		t.Fatalf("SerializeForBuffer() = %q, want %q", got, want)
	}
}

func TestSerializeForBufferBroken(t *testing.T) {
	c := BrokenContent([]byte("not json"))
	if got := SerializeForBuffer(c); got != "not json" {
		t.Fatalf("SerializeForBuffer() = %q, want raw passthrough", got)
	}
}

func TestIsValueNull(t *testing.T) {
	if !Structured(nil).IsValueNull() {
		t.Fatalf("expected empty structured content to be null")
	}
	if Structured([]Node{{Field: "a", Value: 1}}).IsValueNull() {
		t.Fatalf("non-empty structured content must not be null")
	}
	if BrokenContent([]byte("x")).IsValueNull() {
		t.Fatalf("broken content must not be null")
	}
}

func TestToRawBytesPassthrough(t *testing.T) {
	b, err := ToRawBytes([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("ToRawBytes([]byte) = %q, want hello", b)
	}
}

func TestToRawBytesEncodesStruct(t *testing.T) {
	type payload struct {
		A int
	}
	b, err := ToRawBytes(payload{A: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected non-empty msgpack encoding")
	}
}
