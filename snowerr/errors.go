// Package snowerr classifies failures from the warehouse connection and
// ingestion service collaborators so callers can use errors.Is/errors.As
// instead of string matching, and distinguishes the fatal configuration
// errors that must abort task startup from the transient ones a cleaner
// cycle can retry.
package snowerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for remote-collaborator failure classification.
var (
	ErrNotFound         = errors.New("not found")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNetwork          = errors.New("network error")
	ErrTimeout          = errors.New("operation timed out")
	ErrConnectionClosed = errors.New("connection closed")
)

// ClassifiedError wraps an underlying remote-collaborator error with a
// sentinel classification, an operation name and the resource involved.
type ClassifiedError struct {
	Kind     error
	Op       string
	Resource string
	Err      error
}

func (e *ClassifiedError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Resource, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Is reports whether the error matches the target sentinel.
func (e *ClassifiedError) Is(target error) bool { return errors.Is(e.Kind, target) }

// Classify wraps err with a sentinel inferred from its message, for
// operations against the warehouse connection or ingestion service.
// Returns nil if err is nil.
func Classify(err error, op, resource string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: classify(err), Op: op, Resource: resource, Err: err}
}

type pattern struct {
	substrings []string
	kind       error
}

// table is checked in order; the first match wins. More specific entries
// (AccessDenied before PermissionDenied-shaped generic auth, auth error
// codes before generic "does not exist" wording) come first.
var table = []pattern{
	{[]string{"AccessDenied", "Forbidden", "403"}, ErrAccessDenied},
	{[]string{"InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized", "credentials"}, ErrAuth},
	{[]string{"no such", "does not exist", "not found", "NoSuchKey", "404"}, ErrNotFound},
	{[]string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}, ErrThrottled},
	{[]string{"connection refused", "no route to host", "network unreachable", "dial tcp", "i/o timeout"}, ErrNetwork},
	{[]string{"timeout", "timed out", "deadline exceeded"}, ErrTimeout},
	{[]string{"connection is closed", "use of closed"}, ErrConnectionClosed},
}

func classify(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	lower := strings.ToLower(err.Error())
	for _, p := range table {
		for _, s := range p.substrings {
			if strings.Contains(lower, strings.ToLower(s)) {
				return p.kind
			}
		}
	}
	return errors.New("remote collaborator error")
}
