// Package apperr defines the error taxonomy the core raises (spec §7) and
// maps each kind to the HTTP status the API layer should respond with.
// Callers construct errors with the per-kind functions below; Data and
// Internal keep their cause in the chain via Unwrap, and the chain stays
// inspectable with errors.As and Is.
package apperr

import "net/http"

// Kind is one of the seven error categories the simulator's core raises.
type Kind int

const (
	KindAuth Kind = iota
	KindValidation
	KindInsufficientFunds
	KindNotFound
	KindState
	KindData
	KindInternal
)

// Error wraps a message with a Kind, giving the API layer enough to pick an
// HTTP status without string-matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the HTTP status codes in spec §7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuth:
		return http.StatusForbidden
	case KindValidation, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	case KindData:
		// Data errors are logged and swallowed inside the engine; if one
		// somehow reaches the API layer, treat it as internal.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func newf(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Auth wraps an unknown or missing API key.
func Auth(msg string) *Error { return newf(KindAuth, msg, nil) }

// Validation wraps a malformed request, unknown order type, or missing field.
func Validation(msg string) *Error { return newf(KindValidation, msg, nil) }

// InsufficientFunds wraps a block that would underflow a balance.
func InsufficientFunds(msg string) *Error { return newf(KindInsufficientFunds, msg, nil) }

// NotFound wraps a missing order, user, or balance lookup.
func NotFound(msg string) *Error { return newf(KindNotFound, msg, nil) }

// State wraps an operation invalid for the engine's current lifecycle state.
func State(msg string) *Error { return newf(KindState, msg, nil) }

// Data wraps a candle lookup failure. The engine handles lookup failures
// itself (it logs them and resolves against the last known candle), so they
// are not surfaced to an HTTP caller.
func Data(msg string, err error) *Error { return newf(KindData, msg, err) }

// Internal wraps anything else, keeping the underlying error in the chain.
func Internal(msg string, err error) *Error { return newf(KindInternal, msg, err) }

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := asError(err)
	return ok && ae.Kind == kind
}

func asError(err error) (*Error, bool) {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
