/*
Package rental implements the car rental reservation and ledger engine.

PURPOSE:
  The Engine is the single writer of all rental state: car listings,
  reservations, owner earnings, deposit escrows and the platform fee
  accumulator. Callers (HTTP API, scenarios, tests) only ever invoke its
  operations and read the results.

EXECUTION MODEL:
  Every mutating operation runs to completion under the engine mutex and
  inside one store transaction. Validation happens before any write; if a
  later step fails (including a value transfer) the transaction is rolled
  back, so a rejected operation leaves no trace: no credit, no event, no
  payout. Reads go straight to the store and see the last commit.

VERSIONS:
  1.0.0  listings, plain rentals, returns, cancellations, earnings
  2.0.0  adds per-car deposits, late-return penalties, platform fee
  The version is stored state. MigrateToV2 switches it once; version 2
  operations are rejected before that.

FILES:
  registry.go      car listings
  reservations.go  availability, pricing, rent / return / cancel
  deposits.go      deposits, penalties, platform fee withdrawal
  payments.go      owner earnings
  version.go       initialization and migration
  policy.go        who may return a car
  overdue.go       read-only sweep of late reservations

SEE ALSO:
  - ledger/store.go: persistence contract
  - api/handlers.go: HTTP surface
*/
package rental

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/rental-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Transferer moves value out to an address. It is called inside the
// operation's transaction after every state change has been written; an
// error aborts and rolls back the whole operation.
type Transferer interface {
	Transfer(ctx context.Context, p ledger.Payout) error
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, p ledger.Payout) error

func (f TransferFunc) Transfer(ctx context.Context, p ledger.Payout) error { return f(ctx, p) }

type Engine struct {
	store      ledger.Store
	now        func() time.Time
	transferer Transferer
	policy     ReturnPolicy
	log        *logrus.Entry

	// mu is shared with engines derived through Clocked.
	mu *sync.Mutex
}

type Option func(*Engine)

// WithClock replaces time.Now. Tests and demo scenarios use it to place
// operations at fixed instants.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTransferer settles payouts synchronously. Without one, payouts are
// only recorded in the store outbox.
func WithTransferer(t Transferer) Option {
	return func(e *Engine) { e.transferer = t }
}

func WithReturnPolicy(p ReturnPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

func New(store ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		policy: ReturnAnyCaller,
		log:    logrus.NewEntry(logrus.StandardLogger()),
		mu:     &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "rental")
	return e
}

// Now returns the engine's current time as a ledger timestamp.
func (e *Engine) Now() ledger.Timestamp { return ledger.FromTime(e.now()) }

func (e *Engine) ReturnPolicy() ReturnPolicy { return e.policy }

// Clocked returns an engine over the same store that reads time from now.
// Mutations of both engines stay serialized. Demo scenarios use it to
// replay bookings in the past.
func (e *Engine) Clocked(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

// Reset wipes the store.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Reset(ctx); err != nil {
		return err
	}
	e.log.Warn("store reset")
	return nil
}

// =============================================================================
// MUTATION - One serialized transaction per operation
// =============================================================================

// txn is the working context of one mutating operation.
type txn struct {
	ledger.Store
	ctx      context.Context
	at       ledger.Timestamp
	platform ledger.Platform
	payouts  []ledger.Payout
}

type gate int

const (
	gateInitialized gate = iota
	gateV2
	gateNone
)

// mutate runs fn inside a store transaction, serialized with every other
// mutation. The gate is checked against the stored platform version first.
func (e *Engine) mutate(ctx context.Context, op string, g gate, fn func(t *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		p, err := s.Platform(ctx)
		if err != nil {
			return err
		}
		switch g {
		case gateInitialized:
			if !p.Initialized() {
				return ledger.ErrNotInitialized
			}
		case gateV2:
			if !p.Initialized() {
				return ledger.ErrNotInitialized
			}
			if !p.IsV2() {
				return ledger.ErrV2Required
			}
		}

		t := &txn{Store: s, ctx: ctx, at: e.Now(), platform: p}
		if err := fn(t); err != nil {
			return err
		}
		return e.settle(t)
	})
	if err != nil {
		entry := e.log.WithFields(logrus.Fields{"op": op, "code": ledger.Code(err)})
		if ledger.IsClientError(err) {
			entry.WithError(err).Debug("operation rejected")
		} else {
			entry.WithError(err).Error("operation failed")
		}
	}
	return err
}

// settle hands queued payouts to the transferer, in order.
func (e *Engine) settle(t *txn) error {
	if e.transferer == nil {
		return nil
	}
	for _, p := range t.payouts {
		if err := e.transferer.Transfer(t.ctx, p); err != nil {
			return &ledger.TransferError{To: p.To, Amount: p.Amount, Err: err}
		}
	}
	return nil
}

// emit appends an event stamped with the operation time.
func (t *txn) emit(ev ledger.Event) error {
	ev.ID = uuid.NewString()
	ev.At = t.at
	_, err := t.AppendEvent(t.ctx, ev)
	return err
}

// pay records a payout in the outbox and queues it for settlement.
// Zero amounts are skipped.
func (t *txn) pay(to ledger.Address, amount ledger.Amount, reason ledger.PayoutReason, rid ledger.ReservationID) error {
	if amount.IsZero() {
		return nil
	}
	p, err := t.AppendPayout(t.ctx, ledger.Payout{
		ID:            uuid.NewString(),
		To:            to,
		Amount:        amount,
		Reason:        reason,
		ReservationID: rid,
		At:            t.at,
	})
	if err != nil {
		return err
	}
	t.payouts = append(t.payouts, p)
	return nil
}

func (t *txn) credit(owner ledger.Address, amount ledger.Amount) error {
	if amount.IsZero() {
		return nil
	}
	bal, err := t.Earnings(t.ctx, owner)
	if err != nil {
		return err
	}
	return t.PutEarnings(t.ctx, owner, bal.Add(amount))
}

// debit lowers an owner's balance by at most its current value and
// returns the part that could not be taken.
func (t *txn) debit(owner ledger.Address, amount ledger.Amount) (shortfall ledger.Amount, err error) {
	if amount.IsZero() {
		return ledger.Zero, nil
	}
	bal, err := t.Earnings(t.ctx, owner)
	if err != nil {
		return ledger.Zero, err
	}
	if bal.LessThan(amount) {
		shortfall = amount.Sub(bal)
	}
	return shortfall, t.PutEarnings(t.ctx, owner, bal.Sub(amount))
}

func (t *txn) savePlatform() error {
	return t.PutPlatform(t.ctx, t.platform)
}

// =============================================================================
// READS
// =============================================================================

// Events returns the notification log.
func (e *Engine) Events(ctx context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	return e.store.Events(ctx, f)
}

// Payouts returns the recorded outbound transfers, optionally for one address.
func (e *Engine) Payouts(ctx context.Context, to ledger.Address) ([]ledger.Payout, error) {
	return e.store.Payouts(ctx, to)
}

func isNotFound(err error) bool { return errors.Is(err, ledger.ErrNotFound) }
