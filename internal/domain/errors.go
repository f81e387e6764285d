package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a remote that could not be reached or answered with a
	// transient failure. It always triggers the offline path, never a hard failure.
	ErrNetwork = errors.New("remote unreachable")

	ErrNotFound = errors.New("not found")

	// ErrPersistence marks a local store that is unavailable or failed a write.
	ErrPersistence = errors.New("local store unavailable")

	ErrStockConflict = errors.New("stock conflict")
)

// ValidationError is a user-facing checkout validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StockConflictError blocks add-to-cart or checkout before any network call.
type StockConflictError struct {
	ProductID string
	SKU       string
	Requested int
	Available int
	Reason    string
}

func (e *StockConflictError) Error() string {
	if e.SKU == "" {
		return fmt.Sprintf("stock conflict for product %s: %s", e.ProductID, e.Reason)
	}
	return fmt.Sprintf("stock conflict for %s: %s (requested %d, available %d)", e.SKU, e.Reason, e.Requested, e.Available)
}

func (e *StockConflictError) Is(target error) bool {
	return target == ErrStockConflict
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
