// Package apierr defines the scheduler's error kinds and maps
// them onto gRPC status codes for the wire layer in pkg/api/rpc.
package apierr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one of the scheduler's error categories.
type Kind int

const (
	Unknown Kind = iota
	InvalidArgument
	BadConfig
	BadRequest
	Unsupported
	JobUnknown
	InvalidState
	BackendUnavailable
	BackendSerialization
	BackendNotFound
	PlannerUnsupportedOperator
)

// Error wraps an underlying cause with a Kind so callers (the RPC layer,
// the reconciler, tests) can branch on category without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, otherwise returns Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Code maps a Kind to the gRPC status code the wire layer should return.
func (k Kind) Code() codes.Code {
	switch k {
	case InvalidArgument:
		return codes.InvalidArgument
	case BadConfig, BadRequest:
		return codes.InvalidArgument
	case Unsupported:
		return codes.Unimplemented
	case JobUnknown, BackendNotFound:
		return codes.NotFound
	case InvalidState, PlannerUnsupportedOperator:
		return codes.Internal
	case BackendUnavailable:
		return codes.Unavailable
	case BackendSerialization:
		return codes.Internal
	default:
		return codes.Internal
	}
}

// ToGRPCStatus converts err into the status error the RPC layer should
// return to the caller.
// Errors that aren't an *Error surface as Internal rather than leaking
// an unclassified message.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return status.Error(e.Kind.Code(), e.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
