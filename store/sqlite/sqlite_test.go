package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func putCar(ctx context.Context, t *testing.T, s ledger.Store, id ledger.CarID, owner ledger.Address) {
	t.Helper()
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.PutCar(ctx, ledger.Car{
			ID:          id,
			Owner:       owner,
			Brand:       "Tesla",
			Model:       "Model Y",
			Year:        2024,
			DailyPrice:  ledger.MustParseEther("0.1"),
			Active:      true,
			MetadataURI: "ipfs://y",
		})
	}))
}

// =============================================================================
// RECORDS
// =============================================================================

func TestStore_CarRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putCar(ctx, t, s, 1, "0xowner")

	car, err := s.Car(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.Address("0xowner"), car.Owner)
	assert.Equal(t, "Model Y", car.Model)
	assert.Equal(t, 2024, car.Year)
	assert.Equal(t, "0.1", car.DailyPrice.Ether())
	assert.True(t, car.Active)

	_, err = s.Car(ctx, 2)
	assert.ErrorIs(t, err, ledger.ErrCarNotFound)
}

func TestStore_ReservationImmutableFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putCar(ctx, t, s, 1, "0xowner")

	r := ledger.Reservation{
		ID:         1,
		CarID:      1,
		Renter:     "0xrenter",
		StartDate:  ledger.Timestamp(86400),
		EndDate:    ledger.Timestamp(3 * 86400),
		TotalPrice: ledger.MustParseEther("0.2"),
		Active:     true,
	}
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error { return tx.PutReservation(ctx, r) }))

	// WHEN: saved again with a different price and inactive
	changed := r
	changed.TotalPrice = ledger.MustParseEther("9")
	changed.Active = false
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error { return tx.PutReservation(ctx, changed) }))

	// THEN: only the active flag moved
	got, err := s.Reservation(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "0.2", got.TotalPrice.Ether())
	assert.Equal(t, r.StartDate, got.StartDate)
	assert.Equal(t, r.EndDate, got.EndDate)

	_, err = s.Reservation(ctx, 2)
	assert.ErrorIs(t, err, ledger.ErrReservationNotFound)
}

func TestStore_ReservationFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putCar(ctx, t, s, 1, "0xowner")
	putCar(ctx, t, s, 2, "0xowner")

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		for _, r := range []ledger.Reservation{
			{ID: 1, CarID: 1, Renter: "0xa", StartDate: 0, EndDate: 100, Active: true},
			{ID: 2, CarID: 1, Renter: "0xb", StartDate: 100, EndDate: 200, Active: false},
			{ID: 3, CarID: 2, Renter: "0xa", StartDate: 0, EndDate: 300, Active: true},
		} {
			if err := tx.PutReservation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	tests := []struct {
		name   string
		filter ledger.ReservationFilter
		want   []ledger.ReservationID
	}{
		{"all", ledger.ReservationFilter{}, []ledger.ReservationID{1, 2, 3}},
		{"by car", ledger.ReservationFilter{CarID: 1}, []ledger.ReservationID{1, 2}},
		{"active of car", ledger.ReservationFilter{CarID: 1, ActiveOnly: true}, []ledger.ReservationID{1}},
		{"by renter", ledger.ReservationFilter{Renter: "0xa"}, []ledger.ReservationID{1, 3}},
		{"ending before", ledger.ReservationFilter{ActiveOnly: true, EndsBefore: 300}, []ledger.ReservationID{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Reservations(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]ledger.ReservationID, len(got))
			for i, r := range got {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_SingletonsDefaultToZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Counters{}, c)

	p, err := s.Platform(ctx)
	require.NoError(t, err)
	assert.False(t, p.Initialized())

	bal, err := s.Earnings(ctx, "0xnobody")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	_, ok, err := s.Escrow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PlatformAndEscrow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putCar(ctx, t, s, 1, "0xowner")

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.PutPlatform(ctx, ledger.Platform{
			Version:            ledger.Version2,
			Admin:              "0xadmin",
			LatePenaltyPerDay:  ledger.MustParseEther("0.01"),
			PlatformFeePercent: 10,
			AccumulatedFees:    ledger.MustParseEther("0.03"),
		}); err != nil {
			return err
		}
		if err := tx.PutCarDeposit(ctx, 1, ledger.MustParseEther("0.05")); err != nil {
			return err
		}
		if err := tx.PutReservation(ctx, ledger.Reservation{ID: 1, CarID: 1, Renter: "0xr", EndDate: 86400, Active: true}); err != nil {
			return err
		}
		return tx.PutEscrow(ctx, ledger.Escrow{ReservationID: 1, Amount: ledger.MustParseEther("0.05"), PlatformFee: ledger.MustParseEther("0.01")})
	}))

	p, err := s.Platform(ctx)
	require.NoError(t, err)
	assert.True(t, p.IsV2())
	assert.Equal(t, ledger.Address("0xadmin"), p.Admin)
	assert.Equal(t, uint8(10), p.PlatformFeePercent)
	assert.Equal(t, "0.03", p.AccumulatedFees.Ether())

	dep, err := s.CarDeposit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.05", dep.Ether())

	esc, ok, err := s.Escrow(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.01", esc.PlatformFee.Ether())
	assert.False(t, esc.Refunded)
}

// =============================================================================
// LOGS
// =============================================================================

func TestStore_EventsAppendAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		events := []ledger.Event{
			{ID: "e1", Type: ledger.EventCarListed, CarID: 1, Account: "0xo", Amount: ledger.NewAmount(5)},
			{ID: "e2", Type: ledger.EventCarRented, CarID: 1, ReservationID: 1, Account: "0xr",
				Data: map[string]string{"start_date": "86400"}},
			{ID: "e3", Type: ledger.EventCarListed, CarID: 2, Account: "0xo"},
		}
		for i, e := range events {
			stored, err := tx.AppendEvent(ctx, e)
			if err != nil {
				return err
			}
			assert.Equal(t, uint64(i+1), stored.Seq)
		}
		return nil
	}))

	all, err := s.Events(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "5", all[0].Amount.String())
	assert.Equal(t, "86400", all[1].Data["start_date"])
	assert.Nil(t, all[0].Data)

	listed, err := s.Events(ctx, ledger.EventFilter{Types: []ledger.EventType{ledger.EventCarListed}})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	page, err := s.Events(ctx, ledger.EventFilter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "e2", page[0].ID)

	byRes, err := s.Events(ctx, ledger.EventFilter{ReservationID: 1, Account: "0xr"})
	require.NoError(t, err)
	assert.Len(t, byRes, 1)

	// Duplicate ids are rejected
	err = s.WithTx(ctx, func(tx ledger.Store) error {
		_, err := tx.AppendEvent(ctx, ledger.Event{ID: "e1", Type: ledger.EventCarListed})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestStore_Payouts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.AppendPayout(ctx, ledger.Payout{ID: "p1", To: "0xa", Amount: ledger.NewAmount(7), Reason: ledger.PayoutEarnings, At: 100}); err != nil {
			return err
		}
		_, err := tx.AppendPayout(ctx, ledger.Payout{ID: "p2", To: "0xb", Amount: ledger.NewAmount(3), Reason: ledger.PayoutExcessRefund, ReservationID: 4})
		return err
	}))

	mine, err := s.Payouts(ctx, "0xb")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, uint64(2), mine[0].Seq)
	assert.Equal(t, ledger.ReservationID(4), mine[0].ReservationID)
	assert.Equal(t, ledger.PayoutExcessRefund, mine[0].Reason)

	all, err := s.Payouts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.PutEarnings(ctx, "0xa", ledger.NewAmount(10)); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, ledger.Event{ID: "x", Type: ledger.EventEarningsWithdrawn}); err != nil {
			return err
		}
		// reads through tx see the write
		bal, err := tx.Earnings(ctx, "0xa")
		require.NoError(t, err)
		assert.Equal(t, "10", bal.String())
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.Earnings(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	events, err := s.Events(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putCar(ctx, t, s, 1, "0xowner")
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		_, err := tx.AppendEvent(ctx, ledger.Event{ID: "a", Type: ledger.EventCarListed})
		return err
	}))

	require.NoError(t, s.Reset(ctx))

	cars, err := s.Cars(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cars)

	// AND: sequences restart
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Store) error {
		e, err := tx.AppendEvent(ctx, ledger.Event{ID: "b", Type: ledger.EventCarListed})
		assert.Equal(t, uint64(1), e.Seq)
		return err
	}))
}

// =============================================================================
// FAILURE PATHS (sqlmock)
// =============================================================================

func TestNewWithDB_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cars").WillReturnError(errors.New("disk I/O error"))

	_, err = NewWithDB(db)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to migrate database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewWithDB(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO earnings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err = s.WithTx(context.Background(), func(tx ledger.Store) error {
		return tx.PutEarnings(context.Background(), "0xa", ledger.NewAmount(1))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.Equal(t, "internal", ledger.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_FnErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewWithDB(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT amount FROM earnings").WillReturnError(errors.New("no such table: earnings"))
	mock.ExpectRollback()

	err = s.WithTx(context.Background(), func(tx ledger.Store) error {
		_, err := tx.Earnings(context.Background(), "0xa")
		return err
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
