package apiclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the category of a failed remote operation.
type Kind string

const (
	KindOffline         Kind = "offline"
	KindUnauthenticated Kind = "unauthenticated"
	KindAPIUnavailable  Kind = "api_unavailable"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindNetwork         Kind = "network_error"
	KindServer          Kind = "server_error"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

// quotaMessage is the server's error text for a full storage quota.
const quotaMessage = "Insufficient storage quota"

// Sentinels for errors.Is checks. Any *Error of the same Kind matches.
var (
	ErrOffline         = &Error{Kind: KindOffline, Message: "offline mode - API unavailable"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "not authenticated"}
	ErrAPIUnavailable  = &Error{Kind: KindAPIUnavailable, Message: "API endpoint not configured"}
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded, Message: quotaMessage}
)

// Error is a classified remote failure.
type Error struct {
	Kind       Kind
	StatusCode int    // HTTP status, zero when no response was received
	Message    string // Server's error field or a local description
	Err        error  // Underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// FromStatus classifies a non-2xx response.
func FromStatus(statusCode int, message string) *Error {
	kind := KindServer
	switch {
	case statusCode == 401:
		kind = KindUnauthenticated
	case statusCode == 402 || strings.Contains(message, quotaMessage):
		kind = KindQuotaExceeded
	}
	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}

// FromTransport classifies an error returned by http.Client.Do or by a body
// read. Cancellation by the caller is reported as KindCanceled; everything
// else, timeouts included, is a network failure.
func FromTransport(ctx context.Context, err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Kind: KindCanceled, Message: "transfer canceled", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "network error - API unavailable", Err: err}
}
