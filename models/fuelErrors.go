package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the fuel ledger. Structural validation errors are
// returned before any mutation; multi-step failures roll back fully first.
var (
	ErrInvalidQuantity             = errors.New("invalid quantity")
	ErrMeterNotSupported           = errors.New("warehouse has no volumetric meter")
	ErrMeterEditRestrictedToLatest = errors.New("meter reading can only be edited on the latest transaction")
	ErrQuantityMismatch            = errors.New("transfer quantity mismatch")
	ErrProductMismatch             = errors.New("transfer product mismatch")
	ErrSameWarehouse               = errors.New("transfer sides must be in different warehouses")
	ErrAlreadyLinked               = errors.New("transaction already belongs to a transfer pair")
	ErrPartialTransferUpdateFailed = errors.New("transfer price update failed; both sides rolled back")
	ErrChainRecalculationFailed    = errors.New("chain recalculation failed; ledger left unchanged")
	ErrInsufficientPricingData     = errors.New("insufficient pricing data")
)

// InvalidQuantityError carries the offending value so callers can show it.
type InvalidQuantityError struct {
	Qty float64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity: qty=%v (must be > 0)", e.Qty)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// QuantityMismatchError reports expected vs actual liters of a transfer pair.
type QuantityMismatchError struct {
	Expected float64
	Actual   float64
}

func (e *QuantityMismatchError) Error() string {
	return fmt.Sprintf("transfer quantity mismatch: expected=%v actual=%v", e.Expected, e.Actual)
}

func (e *QuantityMismatchError) Unwrap() error { return ErrQuantityMismatch }
