package snowerr

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", errors.New("NoSuchKey: the specified key does not exist"), ErrNotFound},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"access denied", errors.New("AccessDenied: insufficient permissions"), ErrAccessDenied},
		{"auth", errors.New("InvalidAccessKeyId: the access key does not exist"), ErrAuth},
		{"network", errors.New("dial tcp: connection refused"), ErrNetwork},
		{"timeout", errors.New("context deadline exceeded"), ErrTimeout},
		{"closed", errors.New("use of closed network connection"), ErrConnectionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Classify(tt.err, "list", "mystage")
			if !errors.Is(wrapped, tt.want) {
				t.Fatalf("Classify(%v) did not match %v, got %v", tt.err, tt.want, wrapped)
			}
		})
	}
}

func TestClassifyNilIsNil(t *testing.T) {
	if Classify(nil, "op", "resource") != nil {
		t.Fatalf("Classify(nil) should return nil")
	}
}

func TestFatalErrorUnwrap(t *testing.T) {
	base := errors.New("object mismatch")
	fe := NewFatal(FatalIncompatibleTable, "t_events", base)
	if !errors.Is(fe, base) {
		t.Fatalf("FatalError should unwrap to base error")
	}
	if fe.Code != 5003 {
		t.Fatalf("Code = %d, want 5003", fe.Code)
	}
}
