/*
NAME
  errors.go

DESCRIPTION
  errors.go defines the error kinds returned by the h265dec decoder core.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Kind identifies the category of a DecodeError, letting callers branch on
// failure class without string-matching error text.
type Kind int8

const (
	// InvalidData indicates a malformed NAL header, a reserved-must-be-X
	// field violation, or an id out of its valid range.
	InvalidData Kind = iota

	// UnsupportedStream indicates a feature was signalled in the bitstream
	// but is not implemented by this snapshot (chroma format other than
	// 4:2:0, bit depth above 10, mismatched luma/chroma bit depth,
	// long-term reference pictures, non-zero HRD parameter counts,
	// scaling lists, in-slice reference-list modification, short-term RPS
	// override, PPS scaling-list data, cu_qp_delta).
	UnsupportedStream

	// InsufficientData indicates the bit reader ran out of input before a
	// syntax element could be fully read.
	InsufficientData

	// OutOfMemory indicates an allocation failure for a picture-sized
	// array or a parameter-set derived table.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case InvalidData:
		return "invalid data"
	case UnsupportedStream:
		return "unsupported stream"
	case InsufficientData:
		return "insufficient data"
	case OutOfMemory:
		return "out of memory"
	default:
		return "unknown error kind"
	}
}

// DecodeError wraps an underlying error with the Kind the core classifies
// it as, so callers can recover from UnsupportedStream without treating it
// the same as a fatal InvalidData bitstream corruption.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// newErr constructs a DecodeError of the given kind wrapping err with msg.
func newErr(kind Kind, err error, msg string) error {
	return &DecodeError{Kind: kind, Err: errors.Wrap(err, msg)}
}

// newErrf is newErr with a literal message and no wrapped cause.
func newErrf(kind Kind, msg string) error {
	return &DecodeError{Kind: kind, Err: errors.New(msg)}
}

// KindOf returns the Kind of err if it is (or wraps) a *DecodeError, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var de *DecodeError
	if stderrors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
