package ledger

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AMOUNT
// =============================================================================

func TestParseEther(t *testing.T) {
	a, err := ParseEther("0.01")
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", a.String())
	assert.Equal(t, "0.01", a.Ether())

	_, err = ParseEther("0.0000000000000000001")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseEther("-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseEther("abc")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount(" 42 ")
	require.NoError(t, err)
	assert.True(t, a.Equal(NewAmount(42)))

	_, err = ParseAmount("1.5")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAmount_Arithmetic(t *testing.T) {
	price := MustParseEther("0.1")

	assert.Equal(t, "0.7", price.MulInt(7).Ether())
	assert.True(t, price.MulInt(0).IsZero())
	assert.Equal(t, "0.01", price.Percent(10).Ether())
	assert.Equal(t, "0.09", price.Sub(price.Percent(10)).Ether())

	// Sub floors at zero
	assert.True(t, NewAmount(1).Sub(NewAmount(2)).IsZero())

	// Percent rounds down
	assert.Equal(t, "3", NewAmount(7).Percent(50).String())

	assert.Equal(t, "0.05", MustParseEther("0.05").Min(MustParseEther("0.3")).Ether())
}

func TestAmount_EqualValuesAreDeepEqual(t *testing.T) {
	a := MustParseEther("0.02")
	b := MustParseEther("0.01").MulInt(2)
	c := MustParseAmount("20000000000000000")

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, Zero, NewAmount(5).Sub(NewAmount(5)))
}

func TestAmount_JSON(t *testing.T) {
	in := struct {
		Price Amount `json:"price"`
	}{Price: MustParseEther("1.5")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"1500000000000000000"}`, string(raw))

	var out struct {
		Price Amount `json:"price"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Price.Equal(in.Price))

	assert.Error(t, json.Unmarshal([]byte(`{"price":"-3"}`), &out))
}

func TestNewAddress(t *testing.T) {
	assert.Equal(t, Address("0xabc"), NewAddress("  0xABC "))
	assert.True(t, NewAddress(" ").IsZero())
}

// =============================================================================
// TIME
// =============================================================================

func TestTimestamp_DayAligned(t *testing.T) {
	d := Date(2025, time.June, 10)
	assert.True(t, d.DayAligned())
	assert.False(t, (d + 1).DayAligned())
	assert.Equal(t, d, StartOfDay(d.Time().Add(13*time.Hour)))
	assert.Equal(t, "2025-06-11", d.AddDays(1).String())
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, Date(2025, time.June, 10), d)

	_, err = ParseDay("10/06/2025")
	assert.ErrorIs(t, err, ErrInvalidDates)
}

func TestPeriod_Overlaps(t *testing.T) {
	base := Date(2025, time.January, 1)
	p := func(from, to int64) Period { return Period{Start: base.AddDays(from), End: base.AddDays(to)} }

	tests := []struct {
		a, b Period
		want bool
	}{
		{p(10, 15), p(12, 18), true},
		{p(10, 15), p(15, 20), false},
		{p(10, 15), p(5, 10), false},
		{p(10, 15), p(11, 12), true},
		{p(10, 15), p(9, 16), true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s vs %s", tt.a, tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestPeriod_Days(t *testing.T) {
	start := Date(2025, time.January, 1)

	days, err := Period{Start: start, End: start.AddDays(30)}.Days()
	require.NoError(t, err)
	assert.Equal(t, int64(30), days)

	_, err = Period{Start: start, End: start}.Days()
	assert.ErrorIs(t, err, ErrInvalidDates)

	_, err = Period{Start: start + 60, End: start.AddDays(1)}.Days()
	assert.ErrorIs(t, err, ErrNotDayAligned)
}

func TestWholeDaysSince(t *testing.T) {
	end := Date(2025, time.January, 3)
	assert.Equal(t, int64(0), end.WholeDaysSince(end))
	assert.Equal(t, int64(0), (end - 10).WholeDaysSince(end))
	assert.Equal(t, int64(0), (end.AddDays(1) - 1).WholeDaysSince(end))
	assert.Equal(t, int64(2), (end.AddDays(2) + 7200).WholeDaysSince(end))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "internal", Code(fmt.Errorf("disk full")))
	assert.Equal(t, "car_not_found", Code(fmt.Errorf("lookup: %w", ErrCarNotFound)))
	assert.Equal(t, "overlap", Code(&OverlapError{CarID: 1}))
	assert.Equal(t, "insufficient_payment", Code(&InsufficientPaymentError{}))
	assert.Equal(t, "transfer_failed", Code(&TransferError{To: "0xa", Err: fmt.Errorf("boom")}))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrReservationNotFound)))
	assert.False(t, IsNotFound(ErrNotOwner))

	assert.True(t, IsClientError(ErrStartInPast))
	assert.False(t, IsClientError(fmt.Errorf("db closed")))
	assert.False(t, IsClientError(&TransferError{Err: fmt.Errorf("boom")}))
}
