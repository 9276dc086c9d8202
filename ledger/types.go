/*
Package ledger provides the primitives and records of the rental engine.

PURPOSE:
  This package contains the value types every other package speaks in:
  amounts of the settlement asset, account addresses, day-aligned
  timestamps, and the persisted records (cars, reservations, deposit
  escrows, platform state). It also defines the Store interface that the
  in-memory and SQLite implementations satisfy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: an unsigned integer quantity in the smallest denomination
  - Address: an account identity (owner, renter, platform admin)
  - CarID / ReservationID: sequential identifiers starting at 1

DESIGN PRINCIPLES:
  1. Integer money: Amount is backed by decimal.Decimal but never holds a
     fraction or a negative value. Arbitrary size, so 18-decimal assets fit.
  2. Type safety: distinct ID types prevent mixing car and reservation ids.
  3. Records are plain values: the engine copies them in and out of the
     store, nothing holds a pointer into storage.

USAGE:
  price := ledger.MustParseEther("0.01")
  total := price.MulInt(3)

SEE ALSO:
  - time.go: Timestamp and Period (half-open ranges)
  - records.go: Car, Reservation, Escrow, Platform
  - store.go: persistence interface
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Unsigned integer in the smallest denomination
// =============================================================================

// EtherDecimals is the number of decimals between the display unit and the
// smallest unit (wei-style).
const EtherDecimals = 18

// Amount is a non-negative integer quantity of the settlement asset.
// The zero value is a valid zero amount.
type Amount struct {
	v decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// NewAmount returns an amount from a non-negative int64. Negative input is clamped to zero.
func NewAmount(v int64) Amount {
	if v < 0 {
		return Zero
	}
	return canon(decimal.NewFromInt(v))
}

// ParseAmount parses a base-10 integer string in the smallest unit.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, s, err)
	}
	return amountFromDecimal(d, s)
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseEther parses a display-unit string ("0.05") into the smallest unit.
func ParseEther(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, s, err)
	}
	return amountFromDecimal(d.Shift(EtherDecimals), s)
}

// MustParseEther is ParseEther for constants and tests.
func MustParseEther(s string) Amount {
	a, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return a
}

func amountFromDecimal(d decimal.Decimal, raw string) (Amount, error) {
	if d.IsNegative() {
		return Zero, fmt.Errorf("%w: negative amount %q", ErrInvalidInput, raw)
	}
	if !d.Equal(d.Truncate(0)) {
		return Zero, fmt.Errorf("%w: fractional amount %q", ErrInvalidInput, raw)
	}
	return canon(d), nil
}

// canon keeps one representation per value: exponent 0, and the zero
// value for zero. Equal amounts are then also deep-equal.
func canon(d decimal.Decimal) Amount {
	if d.Sign() <= 0 {
		return Zero
	}
	return Amount{v: decimal.NewFromBigInt(d.BigInt(), 0)}
}

func (a Amount) Add(b Amount) Amount { return canon(a.v.Add(b.v)) }

// Sub returns a-b, floored at zero. Callers that must not lose the
// difference check LessThan first.
func (a Amount) Sub(b Amount) Amount {
	return canon(a.v.Sub(b.v))
}

func (a Amount) MulInt(n int64) Amount {
	if n <= 0 {
		return Zero
	}
	return canon(a.v.Mul(decimal.NewFromInt(n)))
}

// Percent returns floor(a * pct / 100).
func (a Amount) Percent(pct uint8) Amount {
	return canon(a.v.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Floor())
}

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) IsZero() bool { return a.v.IsZero() }
func (a Amount) IsPositive() bool { return a.v.IsPositive() }
func (a Amount) Equal(b Amount) bool { return a.v.Equal(b.v) }
func (a Amount) LessThan(b Amount) bool { return a.v.LessThan(b.v) }
func (a Amount) GreaterThan(b Amount) bool { return a.v.GreaterThan(b.v) }
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(b.v) }
func (a Amount) Decimal() decimal.Decimal { return a.v }
func (a Amount) String() string { return a.v.String() }

// Ether formats the amount in the display unit, trailing zeros trimmed.
func (a Amount) Ether() string {
	return a.v.Shift(-EtherDecimals).String()
}

// MarshalText encodes the amount as its base-10 integer string.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText decodes a base-10 integer string.
func (a *Amount) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Address identifies an account. Addresses compare case-insensitively,
// so they are normalized to lower case on construction.
type Address string

func NewAddress(s string) Address { return Address(strings.ToLower(strings.TrimSpace(s))) }

func (a Address) IsZero() bool   { return a == "" }
func (a Address) String() string { return string(a) }

type CarID uint64
type ReservationID uint64
