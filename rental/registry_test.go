package rental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rental-engine/ledger"
)

func TestListCar(t *testing.T) {
	f := newFixture(t)

	// WHEN: two cars are listed
	first := f.listCar(t, "0.1")
	second := f.listCar(t, "0.2")

	// THEN: ids are sequential from 1 and the car is active
	assert.Equal(t, ledger.CarID(1), first)
	assert.Equal(t, ledger.CarID(2), second)

	car, err := f.engine.Car(f.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, owner, car.Owner)
	assert.Equal(t, "Tesla", car.Brand)
	assert.True(t, car.Active)
	assert.Equal(t, "0.1", car.DailyPrice.Ether())

	count, err := f.engine.CarCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestListCar_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		owner   ledger.Address
		listing Listing
	}{
		{"empty brand", owner, Listing{Brand: " ", Model: "A4", DailyPrice: eth("0.1")}},
		{"empty model", owner, Listing{Brand: "Audi", DailyPrice: eth("0.1")}},
		{"zero price", owner, Listing{Brand: "Audi", Model: "A4"}},
		{"no owner", "", Listing{Brand: "Audi", Model: "A4", DailyPrice: eth("0.1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.ListCar(f.ctx, tt.owner, tt.listing)
			assert.ErrorIs(t, err, ledger.ErrInvalidInput)

			count, err := f.engine.CarCount(f.ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestUpdateCar(t *testing.T) {
	f := newFixture(t)
	car := f.listCar(t, "0.1")
	res := f.rent(t, car, 1, 3)

	// WHEN: the owner doubles the price and deactivates the car
	require.NoError(t, f.engine.UpdateCar(f.ctx, car, owner, eth("0.2"), false))

	// THEN: the car changed, the existing reservation kept its price
	got, err := f.engine.Car(f.ctx, car)
	require.NoError(t, err)
	assert.Equal(t, "0.2", got.DailyPrice.Ether())
	assert.False(t, got.Active)

	r, err := f.engine.Reservation(f.ctx, res)
	require.NoError(t, err)
	assert.Equal(t, "0.2", r.TotalPrice.Ether())
	assert.True(t, r.Active)

	// AND: an inactive car cannot be rented
	_, err = f.engine.RentCar(f.ctx, car, renter, day(5), day(6), eth("1"))
	assert.ErrorIs(t, err, ledger.ErrCarNotActive)
}

func TestUpdateCar_Errors(t *testing.T) {
	f := newFixture(t)
	car := f.listCar(t, "0.1")

	err := f.engine.UpdateCar(f.ctx, car, other, eth("0.2"), true)
	assert.ErrorIs(t, err, ledger.ErrNotOwner)

	err = f.engine.UpdateCar(f.ctx, 99, owner, eth("0.2"), true)
	assert.ErrorIs(t, err, ledger.ErrCarNotFound)
	assert.True(t, ledger.IsNotFound(err))

	err = f.engine.UpdateCar(f.ctx, car, owner, ledger.Zero, true)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestCarsByOwner(t *testing.T) {
	f := newFixture(t)
	f.listCar(t, "0.1")
	_, err := f.engine.ListCar(f.ctx, other, Listing{Brand: "BMW", Model: "i3", Year: 2020, DailyPrice: eth("0.05")})
	require.NoError(t, err)

	all, err := f.engine.Cars(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.engine.CarsByOwner(f.ctx, other)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "BMW", mine[0].Brand)
}
