package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for non-positive quantities and for
	// quantities finer than QuantityPlaces.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidAmount is returned for non-positive payments, negative prices
	// and amounts finer than MoneyPlaces.
	ErrInvalidAmount = errors.New("invalid amount")
)

// BatchClosedError rejects a mutation of a closed batch.
type BatchClosedError struct {
	BatchID uuid.UUID
}

func (e *BatchClosedError) Error() string {
	return fmt.Sprintf("batch %s is closed", e.BatchID)
}

// AlreadyClosedError is returned by a second close of the same batch.
type AlreadyClosedError struct {
	BatchID uuid.UUID
}

func (e *AlreadyClosedError) Error() string {
	return fmt.Sprintf("batch %s is already closed", e.BatchID)
}

// InsufficientStockError reports a deduction that would take stock below zero.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for product %s: available %s, required %s, short by %s",
		name, e.Available.String(), e.Requested.String(), e.Shortfall().String())
}

// Shortfall is how many units are missing.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ProductInUseError refuses to delete a product that an open batch still demands.
type ProductInUseError struct {
	ProductID   uuid.UUID
	ProductName string
	BatchID     uuid.UUID
}

func (e *ProductInUseError) Error() string {
	return fmt.Sprintf("product %s still has demand on open batch %s", e.ProductName, e.BatchID)
}

// NotFoundError is returned for unknown or soft-deleted records.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func notFound(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// SyncFailure wraps an error from the remote gateway. It never reaches the
// caller of a local write; the outbox worker records it instead.
type SyncFailure struct {
	Op  string
	Err error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
}

func (e *SyncFailure) Unwrap() error { return e.Err }

// IsNotFound reports whether err (or anything it wraps) is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
