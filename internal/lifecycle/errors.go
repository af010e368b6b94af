package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies lifecycle failures
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind onto the status code handlers respond with
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type returned by the lifecycle service.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	IDs     []int64 // listings the failure refers to, if any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " (ids %v)", e.IDs)
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

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrValidation  = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound    = &Error{Kind: KindNotFound, Message: "listing not found"}
	ErrConflict    = &Error{Kind: KindConflict, Message: "listing state conflict"}
	ErrPersistence = &Error{Kind: KindPersistence, Message: "persistence failure"}
)

// ErrNoRow is returned by stores when the addressed row does not exist.
var ErrNoRow = errors.New("no such listing row")

// KindOf returns the kind of err, or KindPersistence for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

func validationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(op string, ids ...int64) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: "listing not found", IDs: ids}
}

func conflictError(op, message string, ids ...int64) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message, IDs: ids}
}

// persistenceError wraps a store failure. Errors that already carry a kind pass through.
func persistenceError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Message: "store call failed", Err: err}
}
