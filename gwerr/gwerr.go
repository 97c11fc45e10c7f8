// Package gwerr defines the error kinds the gateway's connection handler
// logs for a failed request. Every kind named in the protocol spec gets a
// Kind constant here instead of a bespoke error type per package, so the
// top-level handler can do one errors.As and read the Kind rather than
// type-switching across package boundaries.
package gwerr

import (
	"errors"
	"fmt"
)

// Kind identifies why a request failed, independent of which package
// detected the failure.
type Kind string

const (
	KindMalformedFrame           Kind = "malformed_frame"
	KindMalformedMessage         Kind = "malformed_message"
	KindCrypto                   Kind = "crypto_error"
	KindUnknownPartner           Kind = "unknown_partner"
	KindUpstream                 Kind = "upstream_error"
	KindMalformedUpstreamResponse Kind = "malformed_upstream_response"
	KindTimeout                  Kind = "timeout"
	KindIO                       Kind = "io_error"
)

// Error wraps an underlying cause with the kind the handler logs.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Of reports the Kind of err, and whether err carries one at all.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err was wrapped with the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
