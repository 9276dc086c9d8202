package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/ledger"
)

func TestMemory_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// GIVEN: a committed car
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.PutCar(ctx, ledger.Car{ID: 1, Owner: "0xa", DailyPrice: ledger.NewAmount(10), Active: true})
	}))

	// WHEN: a transaction writes everywhere then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		require.NoError(t, tx.PutCar(ctx, ledger.Car{ID: 1, Owner: "0xa", DailyPrice: ledger.NewAmount(99)}))
		require.NoError(t, tx.PutEarnings(ctx, "0xa", ledger.NewAmount(5)))
		require.NoError(t, tx.PutCounters(ctx, ledger.Counters{Cars: 3}))
		_, err := tx.AppendEvent(ctx, ledger.Event{Type: ledger.EventCarUpdated})
		require.NoError(t, err)
		_, err = tx.AppendPayout(ctx, ledger.Payout{To: "0xa", Amount: ledger.NewAmount(1)})
		require.NoError(t, err)

		// reads inside the transaction see its writes
		car, err := tx.Car(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "99", car.DailyPrice.String())
		return boom
	})

	// THEN: nothing survived
	require.ErrorIs(t, err, boom)
	car, err := s.Car(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10", car.DailyPrice.String())
	assert.True(t, car.Active)

	bal, err := s.Earnings(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	c, err := s.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Counters{}, c)

	events, err := s.Events(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	payouts, err := s.Payouts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Car(ctx, 7)
	assert.ErrorIs(t, err, ledger.ErrCarNotFound)
	_, err = s.Reservation(ctx, 7)
	assert.ErrorIs(t, err, ledger.ErrReservationNotFound)

	_, ok, err := s.Escrow(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ListsAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		for i, owner := range []ledger.Address{"0xb", "0xa", "0xb"} {
			if err := tx.PutCar(ctx, ledger.Car{ID: ledger.CarID(3 - i), Owner: owner}); err != nil {
				return err
			}
		}
		for _, r := range []ledger.Reservation{
			{ID: 1, CarID: 1, Renter: "0xr", EndDate: 100, Active: true},
			{ID: 2, CarID: 1, Renter: "0xr", EndDate: 200, Active: false},
			{ID: 3, CarID: 2, Renter: "0xq", EndDate: 300, Active: true},
		} {
			if err := tx.PutReservation(ctx, r); err != nil {
				return err
			}
		}
		for _, typ := range []ledger.EventType{ledger.EventCarListed, ledger.EventCarRented, ledger.EventCarListed} {
			if _, err := tx.AppendEvent(ctx, ledger.Event{Type: typ}); err != nil {
				return err
			}
		}
		return nil
	}))

	cars, err := s.Cars(ctx, "")
	require.NoError(t, err)
	require.Len(t, cars, 3)
	assert.Equal(t, ledger.CarID(1), cars[0].ID)

	mine, err := s.Cars(ctx, "0xb")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	active, err := s.Reservations(ctx, ledger.ReservationFilter{CarID: 1, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ledger.ReservationID(1), active[0].ID)

	ending, err := s.Reservations(ctx, ledger.ReservationFilter{EndsBefore: 300})
	require.NoError(t, err)
	assert.Len(t, ending, 2)

	listed, err := s.Events(ctx, ledger.EventFilter{Types: []ledger.EventType{ledger.EventCarListed}})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, uint64(1), listed[0].Seq)
	assert.Equal(t, uint64(3), listed[1].Seq)

	page, err := s.Events(ctx, ledger.EventFilter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(2), page[0].Seq)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.PutPlatform(ctx, ledger.Platform{Version: ledger.Version1, Admin: "0xa"})
	}))

	require.NoError(t, s.Reset(ctx))

	p, err := s.Platform(ctx)
	require.NoError(t, err)
	assert.False(t, p.Initialized())
}
