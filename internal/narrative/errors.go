package narrative

import (
	"errors"
	"fmt"
)

// Kind classifies why a generation call failed.
type Kind int

const (
	KindMissingToken Kind = iota + 1
	KindHTTP
	KindNetwork
	KindUnexpectedResponse
)

func (k Kind) String() string {
	switch k {
	case KindMissingToken:
		return "missing_token"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindUnexpectedResponse:
		return "unexpected_response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; each matches any *Error of that kind.
var (
	ErrMissingToken       = &Error{Kind: KindMissingToken}
	ErrHTTP               = &Error{Kind: KindHTTP}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrUnexpectedResponse = &Error{Kind: KindUnexpectedResponse}
)

type Error struct {
	Kind   Kind
	Status int    // KindHTTP only
	Detail string // KindHTTP and KindUnexpectedResponse
	Cause  error  // KindNetwork, or the decode failure behind KindUnexpectedResponse
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingToken:
		return "API token is missing"
	case KindHTTP:
		return e.Detail
	case KindNetwork:
		return fmt.Sprintf("network or request error: %v", e.Cause)
	case KindUnexpectedResponse:
		if e.Detail != "" {
			return "unexpected response format: " + e.Detail
		}
		return "unexpected response format"
	default:
		return "narrative generation failed"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}
