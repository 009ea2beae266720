package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoCart             = errors.New("cart not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotCancellable     = errors.New("order cannot be cancelled")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrTransactionFailure = errors.New("transaction failure")

	ErrProductNotFound  = errors.New("product not found")
	ErrProductInactive  = errors.New("product is not available")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidPrice     = errors.New("price must be positive with at most two decimals")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// InsufficientStockError names the product that could not be reserved.
type InsufficientStockError struct {
	ProductID   uint64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): available %d, requested %d",
		e.ProductID, e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransactionError wraps a storage failure raised while running Op.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransactionFailure, e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransactionFailure, e.Err} }

var known = []error{
	ErrNoCart, ErrEmptyCart, ErrInsufficientStock, ErrOrderNotFound, ErrForbidden,
	ErrNotCancellable, ErrInvalidStatus, ErrInvalidTransition, ErrInvalidAddress, ErrTransactionFailure,
	ErrProductNotFound, ErrProductInactive, ErrInvalidProduct, ErrInvalidPrice,
	ErrInvalidQuantity, ErrCartItemNotFound,
}

// Classify returns the taxonomy sentinel err belongs to, or nil for anything
// that did not originate in the domain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// WrapTx passes domain errors through and wraps everything else as a
// TransactionError for op.
func WrapTx(op string, err error) error {
	if err == nil || Classify(err) != nil {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
