package mmdeploy

import (
	"fmt"
	"strings"
)

// Kind categorizes a binding failure.
type Kind string

const (
	KindPrecondition Kind = "precondition" // caller broke the handle or batch contract
	KindCreate       Kind = "create"       // engine rejected a create call
	KindApply        Kind = "apply"        // engine rejected a batch
	KindDecode       Kind = "decode"       // engine result did not match its declared shape
	KindUnsupported  Kind = "unsupported"  // engine lacks the capability
	KindUnavailable  Kind = "unavailable"  // native SDK not linked into this build
	KindClosed       Kind = "closed"       // session already closed
	KindCanceled     Kind = "canceled"     // context done before the native call
)

// Sentinels for use with errors.Is. Matching is by Kind only.
var (
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrCreate       = &Error{Kind: KindCreate}
	ErrApply        = &Error{Kind: KindApply}
	ErrDecode       = &Error{Kind: KindDecode}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
	ErrClosed       = &Error{Kind: KindClosed}
	ErrCanceled     = &Error{Kind: KindCanceled}
)

// Error is the structured error returned by every binding operation.
type Error struct {
	Cause  error
	Op     string
	Kind   Kind
	Detail string
	Handle Raw
	Status Status
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("mmdeploy: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))

	if e.Status != StatusSuccess {
		fmt.Fprintf(&b, " (code %d, %s)", int32(e.Status), e.Status)
	}
	if e.Handle != InvalidRaw {
		fmt.Fprintf(&b, " handle=%#x", uintptr(e.Handle))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func precondition(op string, h Raw, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindPrecondition, Handle: h, Detail: fmt.Sprintf(format, args...)}
}

func statusError(op string, kind Kind, h Raw, st Status) *Error {
	return &Error{Op: op, Kind: kind, Handle: h, Status: st}
}
