/*
reservations.go - Availability, pricing and the reservation lifecycle

RULES:
  - A reservation covers the half-open range [start, end). Two active
    reservations of one car never overlap; back-to-back ones are fine.
  - Price is days * dailyPrice at booking time. Later price changes do not
    touch existing reservations.
  - Checks run in a fixed order (car, self-rental, start time, dates,
    availability, deposit, payment) so the first failing rule is reported.
  - Overpayment is refunded to the renter in the same operation.

LIFECYCLE:
  rent -> Active --return--> inactive
               \--cancel--> inactive (only before start, full refund)
*/
package rental

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/warp/rental-engine/ledger"
)

// =============================================================================
// AVAILABILITY & PRICE
// =============================================================================

// IsAvailable reports whether no active reservation of the car overlaps
// [start, end). Alignment is not required here, only start < end.
func (e *Engine) IsAvailable(ctx context.Context, carID ledger.CarID, start, end ledger.Timestamp) (bool, error) {
	if _, err := e.store.Car(ctx, carID); err != nil {
		return false, err
	}
	p := ledger.Period{Start: start, End: end}
	if start >= end {
		return false, fmt.Errorf("%w: start %s is not before end %s", ledger.ErrInvalidDates, start, end)
	}
	conflict, err := findConflict(ctx, e.store, carID, p)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

// CalculatePrice returns days * dailyPrice for an aligned range.
func (e *Engine) CalculatePrice(ctx context.Context, carID ledger.CarID, start, end ledger.Timestamp) (ledger.Amount, error) {
	car, err := e.store.Car(ctx, carID)
	if err != nil {
		return ledger.Zero, err
	}
	days, err := ledger.Period{Start: start, End: end}.Days()
	if err != nil {
		return ledger.Zero, err
	}
	return car.DailyPrice.MulInt(days), nil
}

func findConflict(ctx context.Context, r ledger.Reader, carID ledger.CarID, p ledger.Period) (*ledger.Reservation, error) {
	active, err := r.Reservations(ctx, ledger.ReservationFilter{CarID: carID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].Period().Overlaps(p) {
			return &active[i], nil
		}
	}
	return nil, nil
}

// =============================================================================
// RENT
// =============================================================================

type rentMode int

const (
	rentPlain rentMode = iota
	rentWithDeposit
)

// RentCar books [start, end) for renter, who pays paid. Once version 2 is
// active, cars with a configured deposit can only be booked through
// RentCarWithDeposit.
func (e *Engine) RentCar(ctx context.Context, carID ledger.CarID, renter ledger.Address, start, end ledger.Timestamp, paid ledger.Amount) (ledger.ReservationID, error) {
	return e.rent(ctx, rentPlain, carID, renter, start, end, paid)
}

type booking struct {
	reservation ledger.Reservation
	deposit     ledger.Amount
	fee         ledger.Amount
	excess      ledger.Amount
}

func (e *Engine) rent(ctx context.Context, mode rentMode, carID ledger.CarID, renter ledger.Address, start, end ledger.Timestamp, paid ledger.Amount) (ledger.ReservationID, error) {
	op, g := "rent_car", gateInitialized
	if mode == rentWithDeposit {
		op, g = "rent_car_with_deposit", gateV2
	}

	var b booking
	err := e.mutate(ctx, op, g, func(t *txn) error {
		var err error
		b, err = t.book(mode, carID, renter, start, end, paid)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{
		"reservation_id": b.reservation.ID,
		"car_id":         carID,
		"renter":         renter,
		"period":         b.reservation.Period().String(),
		"price":          b.reservation.TotalPrice,
		"deposit":        b.deposit,
		"platform_fee":   b.fee,
		"excess":         b.excess,
	}).Info("car rented")
	return b.reservation.ID, nil
}

func (t *txn) book(mode rentMode, carID ledger.CarID, renter ledger.Address, start, end ledger.Timestamp, paid ledger.Amount) (booking, error) {
	var b booking
	ctx := t.ctx

	car, err := t.Car(ctx, carID)
	if err != nil {
		return b, err
	}
	if !car.Active {
		return b, fmt.Errorf("%w: car %d", ledger.ErrCarNotActive, carID)
	}
	if renter.IsZero() {
		return b, fmt.Errorf("%w: renter is required", ledger.ErrInvalidInput)
	}
	if renter == car.Owner {
		return b, fmt.Errorf("%w: car %d", ledger.ErrSelfRental, carID)
	}
	if start < t.at {
		return b, fmt.Errorf("%w: start %s, now %s", ledger.ErrStartInPast, start, t.at)
	}
	period := ledger.Period{Start: start, End: end}
	days, err := period.Days()
	if err != nil {
		return b, err
	}
	conflict, err := findConflict(ctx, t, carID, period)
	if err != nil {
		return b, err
	}
	if conflict != nil {
		return b, &ledger.OverlapError{
			CarID:         carID,
			Requested:     period,
			ConflictingID: conflict.ID,
			Conflicting:   conflict.Period(),
		}
	}

	price := car.DailyPrice.MulInt(days)
	deposit, err := t.CarDeposit(ctx, carID)
	if err != nil {
		return b, err
	}
	required := price
	switch {
	case mode == rentWithDeposit:
		required = price.Add(deposit)
	case t.platform.IsV2() && deposit.IsPositive():
		return b, fmt.Errorf("%w: car %d requires a deposit of %s", ledger.ErrDepositRequired, carID, deposit)
	}
	if paid.LessThan(required) {
		return b, &ledger.InsufficientPaymentError{Required: required, Paid: paid}
	}

	c, err := t.Counters(ctx)
	if err != nil {
		return b, err
	}
	c.Reservations++
	r := ledger.Reservation{
		ID:         ledger.ReservationID(c.Reservations),
		CarID:      carID,
		Renter:     renter,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: price,
		Active:     true,
	}
	if err := t.PutReservation(ctx, r); err != nil {
		return b, err
	}
	if err := t.PutCounters(ctx, c); err != nil {
		return b, err
	}

	fee := ledger.Zero
	if mode == rentWithDeposit {
		fee = price.Percent(t.platform.PlatformFeePercent)
		if err := t.PutEscrow(ctx, ledger.Escrow{ReservationID: r.ID, Amount: deposit, PlatformFee: fee}); err != nil {
			return b, err
		}
		t.platform.AccumulatedFees = t.platform.AccumulatedFees.Add(fee)
		if err := t.savePlatform(); err != nil {
			return b, err
		}
	}
	if err := t.credit(car.Owner, price.Sub(fee)); err != nil {
		return b, err
	}

	if mode == rentWithDeposit {
		if err := t.emit(ledger.Event{
			Type:          ledger.EventDepositPaid,
			CarID:         carID,
			ReservationID: r.ID,
			Account:       renter,
			Amount:        deposit,
		}); err != nil {
			return b, err
		}
	}
	if err := t.emit(ledger.Event{
		Type:          ledger.EventCarRented,
		CarID:         carID,
		ReservationID: r.ID,
		Account:       renter,
		Amount:        price,
		Data: map[string]string{
			"start_date": strconv.FormatInt(start.Unix(), 10),
			"end_date":   strconv.FormatInt(end.Unix(), 10),
		},
	}); err != nil {
		return b, err
	}

	excess := paid.Sub(required)
	if err := t.pay(renter, excess, ledger.PayoutExcessRefund, r.ID); err != nil {
		return b, err
	}

	return booking{reservation: r, deposit: deposit, fee: fee, excess: excess}, nil
}

// =============================================================================
// RETURN & CANCEL
// =============================================================================

// ReturnCar closes an active reservation. Who may call it depends on the
// engine's ReturnPolicy. Reservations holding an unrefunded deposit must
// be closed with ReturnCarWithDeposit instead.
func (e *Engine) ReturnCar(ctx context.Context, id ledger.ReservationID, caller ledger.Address) error {
	var r ledger.Reservation
	err := e.mutate(ctx, "return_car", gateInitialized, func(t *txn) error {
		var err error
		r, err = t.Reservation(ctx, id)
		if err != nil {
			return err
		}
		if !r.Active {
			return fmt.Errorf("%w: reservation %d", ledger.ErrNotActive, id)
		}
		esc, held, err := t.Escrow(ctx, id)
		if err != nil {
			return err
		}
		if held && !esc.Refunded {
			return fmt.Errorf("%w: reservation %d holds a deposit", ledger.ErrDepositRequired, id)
		}
		car, err := t.Car(ctx, r.CarID)
		if err != nil {
			return err
		}
		if err := e.policy.check(caller, r, car); err != nil {
			return err
		}

		r.Active = false
		if err := t.PutReservation(ctx, r); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:          ledger.EventCarReturned,
			CarID:         r.CarID,
			ReservationID: id,
			Account:       r.Renter,
			Data:          map[string]string{"returned_by": caller.String()},
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"reservation_id": id, "car_id": r.CarID, "caller": caller}).Info("car returned")
	return nil
}

// CancelReservation lets the renter withdraw before the start date. The
// renter gets back everything paid for the reservation and the owner's
// credit is reversed. If the owner already withdrew part of it, the debit
// is capped at the current balance and the gap is reported in the event.
func (e *Engine) CancelReservation(ctx context.Context, id ledger.ReservationID, caller ledger.Address) (ledger.Amount, error) {
	var (
		refund    ledger.Amount
		shortfall ledger.Amount
	)
	err := e.mutate(ctx, "cancel_reservation", gateInitialized, func(t *txn) error {
		r, err := t.Reservation(ctx, id)
		if err != nil {
			return err
		}
		if !r.Active {
			return fmt.Errorf("%w: reservation %d", ledger.ErrNotActive, id)
		}
		if caller != r.Renter {
			return fmt.Errorf("%w: reservation %d", ledger.ErrNotRenter, id)
		}
		if t.at >= r.StartDate {
			return fmt.Errorf("%w: reservation %d started %s", ledger.ErrAlreadyStarted, id, r.StartDate)
		}
		car, err := t.Car(ctx, r.CarID)
		if err != nil {
			return err
		}

		refund = r.TotalPrice
		ownerCredit := r.TotalPrice
		esc, held, err := t.Escrow(ctx, id)
		if err != nil {
			return err
		}
		if held && !esc.Refunded {
			refund = refund.Add(esc.Amount)
			ownerCredit = ownerCredit.Sub(esc.PlatformFee)
			if t.platform.AccumulatedFees.LessThan(esc.PlatformFee) {
				shortfall = shortfall.Add(esc.PlatformFee.Sub(t.platform.AccumulatedFees))
			}
			t.platform.AccumulatedFees = t.platform.AccumulatedFees.Sub(esc.PlatformFee)
			if err := t.savePlatform(); err != nil {
				return err
			}
		}

		short, err := t.debit(car.Owner, ownerCredit)
		if err != nil {
			return err
		}
		shortfall = shortfall.Add(short)

		r.Active = false
		if err := t.PutReservation(ctx, r); err != nil {
			return err
		}

		ev := ledger.Event{
			Type:          ledger.EventReservationCancelled,
			CarID:         r.CarID,
			ReservationID: id,
			Account:       r.Renter,
			Amount:        refund,
		}
		if shortfall.IsPositive() {
			ev.Data = map[string]string{"unreconciled": shortfall.String()}
		}
		if err := t.emit(ev); err != nil {
			return err
		}
		return t.pay(r.Renter, refund, ledger.PayoutCancellationRefund, id)
	})
	if err != nil {
		return ledger.Zero, err
	}

	entry := e.log.WithFields(logrus.Fields{"reservation_id": id, "refund": refund})
	if shortfall.IsPositive() {
		entry.WithField("unreconciled", shortfall).Warn("reservation cancelled with unreconciled debit")
	} else {
		entry.Info("reservation cancelled")
	}
	return refund, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) Reservation(ctx context.Context, id ledger.ReservationID) (ledger.Reservation, error) {
	return e.store.Reservation(ctx, id)
}

// ReservationCount returns how many reservations were ever created.
func (e *Engine) ReservationCount(ctx context.Context) (uint64, error) {
	c, err := e.store.Counters(ctx)
	if err != nil {
		return 0, err
	}
	return c.Reservations, nil
}

// CarReservations lists every reservation of a car, active or not.
func (e *Engine) CarReservations(ctx context.Context, carID ledger.CarID) ([]ledger.Reservation, error) {
	if _, err := e.store.Car(ctx, carID); err != nil {
		return nil, err
	}
	return e.store.Reservations(ctx, ledger.ReservationFilter{CarID: carID})
}

func (e *Engine) RenterReservations(ctx context.Context, renter ledger.Address) ([]ledger.Reservation, error) {
	return e.store.Reservations(ctx, ledger.ReservationFilter{Renter: renter})
}
