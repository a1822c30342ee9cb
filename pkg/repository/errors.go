package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned (wrapped in a *StorageError) when no row matches.
var ErrNotFound = errors.New("record not found")

// Kind classifies a storage failure.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindNotFound   Kind = "not_found"
	KindConstraint Kind = "constraint"
	KindConnection Kind = "connection"
	KindStatement  Kind = "statement"
	KindCanceled   Kind = "canceled"
)

// StorageError is the only error type returned by SQLRepository.
type StorageError struct {
	Op    string
	Table string
	Kind  Kind
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op, table string, err error) *StorageError {
	kind := Classify(err)
	if kind == KindNotFound {
		err = ErrNotFound
	}
	return &StorageError{Op: op, Table: table, Kind: kind, Err: err}
}

// KindOf returns the Kind of err, classifying it if it is not a *StorageError.
func KindOf(err error) Kind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return Classify(err)
}

// Classify maps driver errors onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return KindConnection
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		// SQLSTATE class, see https://www.postgresql.org/docs/current/errcodes-appendix.html
		switch pgErr.Code[:2] {
		case "23":
			return KindConstraint
		case "08", "53", "57":
			return KindConnection
		case "22", "42":
			return KindStatement
		}
		return KindUnknown
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "conn closed") {
		return KindConnection
	}

	return KindUnknown
}
