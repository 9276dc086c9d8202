/*
store.go - Persistence interface for the rental state

PURPOSE:
  Defines the interface between the engine and the database. The logical
  layout is: a car table and a reservation table keyed by sequential id,
  two counters, an earnings map keyed by address, a deposit-amount map
  keyed by car, an escrow table keyed by reservation, the platform
  singleton, and two append-only logs (events and payouts).

KEY INTERFACES:
  Reader:  read accessors, safe to call concurrently
  Writer:  upserts and appends, only called inside WithTx
  Store:   Reader + Writer + WithTx

ATOMICITY:
  The engine performs every mutation inside WithTx. If fn returns an
  error nothing it wrote is visible afterwards: no partial credit, no
  orphan event, no payout for a rejected operation.

APPEND-ONLY LOGS:
  Events and payouts have no update or delete. Seq is assigned by the
  store on append and is strictly increasing.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: in-memory for tests and demos

SEE ALSO:
  - records.go: record types
  - rental/engine.go: the only writer
*/
package ledger

import "context"

// =============================================================================
// STORE - Tables, maps, counters and logs
// =============================================================================

// Reader exposes the persisted state. Lookups of unknown ids return
// ErrCarNotFound / ErrReservationNotFound.
type Reader interface {
	Car(ctx context.Context, id CarID) (Car, error)
	Cars(ctx context.Context, owner Address) ([]Car, error)
	Reservation(ctx context.Context, id ReservationID) (Reservation, error)
	Reservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	Counters(ctx context.Context) (Counters, error)

	// Earnings returns zero for addresses that never earned.
	Earnings(ctx context.Context, owner Address) (Amount, error)

	// CarDeposit returns zero when no deposit was configured.
	CarDeposit(ctx context.Context, id CarID) (Amount, error)

	// Escrow returns ok=false when the reservation was not paid with a deposit.
	Escrow(ctx context.Context, id ReservationID) (e Escrow, ok bool, err error)

	Platform(ctx context.Context) (Platform, error)

	Events(ctx context.Context, filter EventFilter) ([]Event, error)
	Payouts(ctx context.Context, to Address) ([]Payout, error)
}

// Writer mutates the state. Put* are upserts keyed by the record id.
type Writer interface {
	PutCar(ctx context.Context, car Car) error
	PutReservation(ctx context.Context, r Reservation) error
	PutCounters(ctx context.Context, c Counters) error
	PutEarnings(ctx context.Context, owner Address, amount Amount) error
	PutCarDeposit(ctx context.Context, id CarID, amount Amount) error
	PutEscrow(ctx context.Context, e Escrow) error
	PutPlatform(ctx context.Context, p Platform) error

	// AppendEvent assigns Seq and returns the stored event.
	AppendEvent(ctx context.Context, e Event) (Event, error)
	// AppendPayout assigns Seq and returns the stored payout.
	AppendPayout(ctx context.Context, p Payout) (Payout, error)
}

// Store is the full persistence surface.
type Store interface {
	Reader
	Writer

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through tx is rolled back.
	// Reads through tx observe the writes made earlier in fn.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Reset clears all state (demo scenarios, tests).
	Reset(ctx context.Context) error
}
