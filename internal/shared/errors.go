package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// FailureKind labels a use case failure for logging and metrics.
// The external response envelope never carries it.
type FailureKind string

const (
	FailureNotFound            FailureKind = "not_found"
	FailureConstraintViolation FailureKind = "constraint_violation"
	FailureStore               FailureKind = "store_failure"
)

const uniqueViolationCode = "23505"

// ClassifyFailure maps an error to its failure kind.
func ClassifyFailure(err error) FailureKind {
	if errors.Is(err, ErrNotFound) {
		return FailureNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return FailureConstraintViolation
	}
	return FailureStore
}
