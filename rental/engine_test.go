package rental

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	admin  = ledger.Address("0xadmin")
	owner  = ledger.Address("0xowner")
	renter = ledger.Address("0xrenter")
	other  = ledger.Address("0xother")
)

var (
	eth = ledger.MustParseEther

	// day0 is midnight of the test "today"; the clock starts mid-morning.
	day0 = ledger.Date(2025, time.March, 1)
)

func day(n int64) ledger.Timestamp { return day0.AddDays(n) }

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) set(ts ledger.Timestamp) { c.now = ts.Time() }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fixture struct {
	engine *Engine
	store  *store.Memory
	clock  *testClock
	ctx    context.Context
}

// newFixture returns an initialized version 1 engine whose clock reads
// 09:00 UTC on day0.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		clock: &testClock{now: day0.Time().Add(9 * time.Hour)},
		ctx:   context.Background(),
	}
	opts = append([]Option{WithClock(f.clock.Now), WithLogger(quietLogger())}, opts...)
	f.engine = New(f.store, opts...)
	require.NoError(t, f.engine.Initialize(f.ctx, admin))
	return f
}

func (f *fixture) listCar(t *testing.T, price string) ledger.CarID {
	t.Helper()
	id, err := f.engine.ListCar(f.ctx, owner, Listing{
		Brand:       "Tesla",
		Model:       "Model 3",
		Year:        2023,
		DailyPrice:  eth(price),
		MetadataURI: "ipfs://car",
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) rent(t *testing.T, car ledger.CarID, from, to int64) ledger.ReservationID {
	t.Helper()
	price, err := f.engine.CalculatePrice(f.ctx, car, day(from), day(to))
	require.NoError(t, err)
	id, err := f.engine.RentCar(f.ctx, car, renter, day(from), day(to), price)
	require.NoError(t, err)
	return id
}

func (f *fixture) migrate(t *testing.T, penalty string, fee uint8) {
	t.Helper()
	require.NoError(t, f.engine.MigrateToV2(f.ctx, admin, UpgradeParams{
		LatePenaltyPerDay:  eth(penalty),
		PlatformFeePercent: fee,
	}))
}

func (f *fixture) earnings(t *testing.T, a ledger.Address) string {
	t.Helper()
	bal, err := f.engine.Earnings(f.ctx, a)
	require.NoError(t, err)
	return bal.Ether()
}

func (f *fixture) eventTypes(t *testing.T) []ledger.EventType {
	t.Helper()
	events, err := f.engine.Events(f.ctx, ledger.EventFilter{})
	require.NoError(t, err)
	out := make([]ledger.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// =============================================================================
// ENGINE
// =============================================================================

func TestEngine_RejectedOperationLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	car := f.listCar(t, "0.1")
	before, err := f.engine.Events(f.ctx, ledger.EventFilter{})
	require.NoError(t, err)

	// GIVEN: a payment one wei short
	price, err := f.engine.CalculatePrice(f.ctx, car, day(1), day(3))
	require.NoError(t, err)
	short := price.Sub(ledger.NewAmount(1))

	// WHEN: renting
	_, err = f.engine.RentCar(f.ctx, car, renter, day(1), day(3), short)

	// THEN: rejected with the amounts, and nothing changed
	var ipe *ledger.InsufficientPaymentError
	require.ErrorAs(t, err, &ipe)
	assert.True(t, ipe.Required.Equal(price))
	assert.True(t, ipe.Paid.Equal(short))

	count, err := f.engine.ReservationCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
	assert.Equal(t, "0", f.earnings(t, owner))
	after, err := f.engine.Events(f.ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestEngine_TransferFailureRollsBack(t *testing.T) {
	failing := TransferFunc(func(ctx context.Context, p ledger.Payout) error {
		return errors.New("connection reset")
	})
	f := newFixture(t, WithTransferer(failing))
	car := f.listCar(t, "0.1")
	f.rent(t, car, 1, 3)

	// WHEN: the owner withdraws but the transfer fails
	_, err := f.engine.Withdraw(f.ctx, owner)

	// THEN: TransferFailed, the balance is intact, no payout recorded
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.Equal(t, "transfer_failed", ledger.Code(err))
	assert.Equal(t, "0.2", f.earnings(t, owner))
	payouts, err := f.engine.Payouts(f.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestEngine_TransfererReceivesPayouts(t *testing.T) {
	var sent []ledger.Payout
	rec := TransferFunc(func(ctx context.Context, p ledger.Payout) error {
		sent = append(sent, p)
		return nil
	})
	f := newFixture(t, WithTransferer(rec))
	car := f.listCar(t, "0.1")

	// WHEN: the renter overpays by 0.05
	_, err := f.engine.RentCar(f.ctx, car, renter, day(1), day(2), eth("0.15"))
	require.NoError(t, err)

	// THEN: the excess goes back through the transferer and the outbox
	require.Len(t, sent, 1)
	assert.Equal(t, renter, sent[0].To)
	assert.Equal(t, "0.05", sent[0].Amount.Ether())
	assert.Equal(t, ledger.PayoutExcessRefund, sent[0].Reason)

	payouts, err := f.engine.Payouts(f.ctx, renter)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, sent[0].ID, payouts[0].ID)
}

func TestEngine_NotInitialized(t *testing.T) {
	e := New(store.NewMemory(), WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := e.ListCar(ctx, owner, Listing{Brand: "Kia", Model: "Rio", DailyPrice: eth("0.01")})
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	v, err := e.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestEngine_EventsCarIDsAndSeq(t *testing.T) {
	f := newFixture(t)
	car := f.listCar(t, "0.1")
	f.rent(t, car, 1, 2)

	events, err := f.engine.Events(f.ctx, ledger.EventFilter{CarID: car})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ledger.EventCarListed, events[0].Type)
	assert.Equal(t, ledger.EventCarRented, events[1].Type)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestEngine_ClockedSharesStore(t *testing.T) {
	f := newFixture(t)
	car := f.listCar(t, "0.1")

	// GIVEN: an engine whose clock is a week earlier
	past := f.engine.Clocked(func() time.Time { return day(-7).Time() })

	// WHEN: it books days -5 to -3, which the real clock sees as past
	id, err := past.RentCar(f.ctx, car, renter, day(-5), day(-3), eth("0.2"))
	require.NoError(t, err)

	// THEN: the booking is visible to the original engine
	r, err := f.engine.Reservation(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, day(-5), r.StartDate)

	overdue, err := f.engine.Overdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, int64(3), overdue[0].LateDays)
}

func TestEngine_Reset(t *testing.T) {
	f := newFixture(t)
	f.listCar(t, "0.1")

	require.NoError(t, f.engine.Reset(f.ctx))

	count, err := f.engine.CarCount(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = f.engine.ListCar(f.ctx, owner, Listing{Brand: "a", Model: "b", DailyPrice: eth("1")})
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)
}
