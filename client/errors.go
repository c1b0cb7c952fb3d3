package client

import (
	"errors"
	"fmt"
)

// Kind is the class of a failed call. Callers branch on it instead of on error text.
type Kind uint8

const (
	Other             Kind = iota // Unclassified error.
	Transport                     // The channel could not be opened or the call did not complete.
	Encoding                      // The query could not be encoded.
	Decoding                      // The reply was not a valid envelope: protocol or version mismatch.
	UnexpectedVariant             // The reply decoded but held the wrong response variant.
	Server                        // The server reported a failure.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Transport:
		return "transport error"
	case Encoding:
		return "encoding error"
	case Decoding:
		return "decoding error"
	case UnexpectedVariant:
		return "unexpected response variant"
	case Server:
		return "server error"
	}
	return "unknown error kind"
}

// Error is returned by every Client method that fails.
//
// For Kind Server, Err is a *message.ServerError and Error returns the server's
// message verbatim. For Kind UnexpectedVariant, Err is an *UnexpectedVariantError.
type Error struct {
	// Op is the client operation, e.g. "text_read".
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == Server && e.Err != nil {
		return e.Err.Error()
	}
	msg := fmt.Sprintf("doordb: %s: %s", e.Op, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(kind Kind, err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// UnexpectedVariantError records which response variant an operation expected and
// which one arrived.
type UnexpectedVariantError struct {
	Want string
	Got  string
}

func (e *UnexpectedVariantError) Error() string {
	return fmt.Sprintf("want %s response, got %s", e.Want, e.Got)
}
