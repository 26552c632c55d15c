package services

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindInsufficientStock
)

// Error is a failure the caller can act on. Message is safe to return to
// clients as-is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindInsufficientStock:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func authError(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}

const (
	msgRegisterRequired   = "Email, password, and name are required"
	msgEmailTaken         = "User with this email already exists"
	msgLoginRequired      = "Email and password are required"
	msgInvalidCredentials = "Invalid email or password"

	msgSweetRequired     = "Name, category, price, and quantity are required"
	msgNegativeValues    = "Price and quantity must be non-negative"
	msgPriceTooLarge     = "Price is too large"
	msgSweetNotFound     = "Sweet not found"
	msgPurchasePositive  = "Purchase quantity must be positive"
	msgInsufficientStock = "Insufficient quantity in stock"
	msgRestockPositive   = "Restock quantity must be positive"
	msgUserNotFound      = "User not found"
	msgQuantityTooLarge  = "Quantity is too large"
	msgStockLimit        = "Restock would exceed the maximum stock level"
)
