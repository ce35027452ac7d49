// Package errors provides the error values shared by the store, service and transport layers.
package errors

import "errors"

var ErrInvalidPurchase = errors.New("invalid purchase request")

var ErrProductNotFound = errors.New("product not found")
var ErrFailedToFindProduct = errors.New("failed to find product")
var ErrFailedToListProducts = errors.New("failed to list products")

var ErrInsufficientStock = errors.New("insufficient stock")
var ErrDecrementStock = errors.New("failed to decrement stock")

var ErrUpsertCustomer = errors.New("failed to upsert customer")
var ErrCreateCustomer = errors.New("failed to create customer")

var ErrCreatePurchase = errors.New("failed to create purchase")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

// messageError keeps a caller facing message while still matching its kind with errors.Is.
type messageError struct {
	kind    error
	message string
}

func (e *messageError) Error() string {
	return e.message
}

func (e *messageError) Unwrap() error {
	return e.kind
}

// WithMessage returns an error that prints as message and unwraps to kind.
func WithMessage(kind error, message string) error {
	return &messageError{kind: kind, message: message}
}
