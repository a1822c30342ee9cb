package service

import (
	"errors"

	"push-notification-service/pkg/repository"
)

// Kind is the application-level classification of a failure.
type Kind string

const (
	// KindInternal covers every storage failure: constraint violations,
	// connectivity problems and malformed statements alike.
	KindInternal Kind = "internal"
	KindNotFound Kind = "not_found"
	KindInvalid  Kind = "invalid"
)

// Error is returned by every NotificationService method. Message is the raw
// text of the underlying failure; Err keeps the cause for errors.Is/As.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func storageFailure(op string, err error) *Error {
	kind := KindInternal
	if errors.Is(err, repository.ErrNotFound) {
		kind = KindNotFound
	}
	return &Error{Op: op, Kind: kind, Message: err.Error(), Err: err}
}

func invalid(op, message string) *Error {
	return &Error{Op: op, Kind: KindInvalid, Message: message}
}
