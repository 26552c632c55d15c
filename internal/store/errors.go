package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInsufficientStock is returned when a decrement would drive
	// quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrQuantityOverflow is returned when an increment would push quantity
	// past types.MaxQuantity.
	ErrQuantityOverflow = errors.New("quantity overflow")
)

const (
	pqUniqueViolation = "23505"
	pqOutOfRange      = "22003"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isOutOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqOutOfRange
}
