/*
errors.go - Centralized error kinds for the rental engine

PURPOSE:
  Every rejected operation surfaces one of these kinds so that a calling
  layer can render a precise, localized explanation. Callers match with
  errors.Is; Code() maps any error onto a stable string for wire formats.

ERROR CATEGORIES:
  1. Lookup errors - unknown car or reservation
  2. Authorization errors - wrong owner, renter, or admin
  3. Validation errors - malformed listing, dates, payment
  4. State-machine errors - inactive, started, already refunded/initialized
  5. Settlement errors - nothing to withdraw, transfer failed

USAGE:
  if errors.Is(err, ledger.ErrOverlap) {
      var oe *ledger.OverlapError
      if errors.As(err, &oe) { ... oe.ConflictingID ... }
  }

SEE ALSO:
  - rental/: returns these errors
  - api/handlers.go: maps Code() to HTTP status
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound            = errors.New("not found")
	ErrCarNotFound         = fmt.Errorf("car %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	ErrNotOwner      = errors.New("caller is not the car owner")
	ErrNotRenter     = errors.New("caller is not the renter")
	ErrNotAuthorized = errors.New("caller is not the platform admin")

	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidDates  = errors.New("invalid dates: start must be before end")
	ErrNotDayAligned = errors.New("dates must be aligned to midnight UTC")
	ErrStartInPast   = errors.New("start date is in the past")

	ErrOverlap             = errors.New("reservation overlaps an existing reservation")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrSelfRental          = errors.New("owner cannot rent their own car")

	ErrCarNotActive           = errors.New("car is not active")
	ErrNotActive              = errors.New("reservation is not active")
	ErrAlreadyStarted         = errors.New("reservation has already started")
	ErrDepositAlreadyRefunded = errors.New("deposit already refunded")
	ErrDepositRequired        = errors.New("a deposit is required for this car")

	ErrInvalidFeePercent  = errors.New("platform fee percent exceeds maximum")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("ledger not initialized")
	ErrV2Required         = errors.New("operation requires version 2.0.0")

	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrTransferFailed    = errors.New("transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverlapError names the active reservation that blocks a request.
type OverlapError struct {
	CarID         CarID
	Requested     Period
	ConflictingID ReservationID
	Conflicting   Period
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("car %d: %s overlaps reservation %d %s",
		e.CarID, e.Requested, e.ConflictingID, e.Conflicting)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InsufficientPaymentError provides details about a payment shortfall.
type InsufficientPaymentError struct {
	Required Amount
	Paid     Amount
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %s, paid %s", e.Required, e.Paid)
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// TransferError wraps a failure reported by the value-transfer layer.
type TransferError struct {
	To     Address
	Amount Amount
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s to %s failed: %v", e.Amount, e.To, e.Err)
}

func (e *TransferError) Unwrap() []error { return []error{ErrTransferFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

var codes = []struct {
	err  error
	code string
}{
	// Specific not-found kinds before the parent.
	{ErrCarNotFound, "car_not_found"},
	{ErrReservationNotFound, "reservation_not_found"},
	{ErrNotFound, "not_found"},
	{ErrNotOwner, "not_owner"},
	{ErrNotRenter, "not_renter"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidDates, "invalid_dates"},
	{ErrNotDayAligned, "not_day_aligned"},
	{ErrStartInPast, "start_in_past"},
	{ErrOverlap, "overlap"},
	{ErrInsufficientPayment, "insufficient_payment"},
	{ErrSelfRental, "self_rental_forbidden"},
	{ErrCarNotActive, "car_not_active"},
	{ErrNotActive, "reservation_not_active"},
	{ErrAlreadyStarted, "already_started"},
	{ErrDepositAlreadyRefunded, "deposit_already_refunded"},
	{ErrDepositRequired, "deposit_required"},
	{ErrInvalidFeePercent, "invalid_fee_percent"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrV2Required, "v2_required"},
	{ErrNothingToWithdraw, "nothing_to_withdraw"},
	{ErrTransferFailed, "transfer_failed"},
}

// Code returns the stable code of err's kind, or "internal" for errors
// outside the taxonomy. Code(nil) is "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsNotFound returns true if the error indicates a missing car or reservation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is a rejection of the request
// rather than a failure of the engine or its storage.
func IsClientError(err error) bool {
	c := Code(err)
	return c != "" && c != "internal" && c != "transfer_failed"
}
