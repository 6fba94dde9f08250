package rpcclient

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an RPC failure.
type ErrorKind int

const (
	// KindTransport covers network unreachable, non-2xx responses and
	// malformed bodies.
	KindTransport ErrorKind = iota
	// KindProtocol covers well-formed RPC error envelopes. The code is
	// preserved verbatim for upstream interpretation.
	KindProtocol
	// KindTimeout covers deadline expiry and cancellation.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// RPCError is the uniform failure shape produced by the client adapters.
type RPCError struct {
	Kind    ErrorKind
	Code    string // protocol error code, e.g. "actNotFound"; empty otherwise
	Message string
	Err     error // underlying cause, if any
}

func (e *RPCError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("rpc %s error (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("rpc %s error: %s", e.Kind, e.Message)
}

func (e *RPCError) Unwrap() error { return e.Err }

// Well-known protocol error codes.
const (
	CodeAccountNotFound = "actNotFound"
)

// IsNotFound reports whether err is a protocol error with the actNotFound
// code, the ledger's way of saying an account does not exist.
func IsNotFound(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind == KindProtocol && rpcErr.Code == CodeAccountNotFound
	}
	return false
}

// IsTimeout reports whether err represents deadline expiry or cancellation.
func IsTimeout(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind == KindTimeout
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func transportError(msg string, err error) *RPCError {
	return &RPCError{Kind: KindTransport, Message: msg, Err: err}
}

func timeoutError(msg string, err error) *RPCError {
	return &RPCError{Kind: KindTimeout, Message: msg, Err: err}
}

// wrapCtxErr converts a context error into the adapter's taxonomy.
func wrapCtxErr(err error) *RPCError {
	return timeoutError(err.Error(), err)
}
