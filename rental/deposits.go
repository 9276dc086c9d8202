/*
deposits.go - Version 2: deposits, late penalties and the platform fee

MONEY FLOW (rent with deposit, price P, deposit D, fee percent f):
  renter pays  >= P + D
  owner        += P - floor(P*f/100)
  platform     += floor(P*f/100)
  escrow        = D   (held per reservation)

RETURN WITH DEPOSIT:
  lateDays = floor((now - end) / day), 0 when on time
  penalty  = min(D, lateDays * latePenaltyPerDay)
  owner   += penalty
  renter  <- D - penalty

The escrow's Refunded flag is set exactly once, by ReturnCarWithDeposit.
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
// DEPOSIT CONFIGURATION
// =============================================================================

// SetCarDeposit sets the deposit future deposit-path rentals of the car
// must put in escrow. Zero removes the requirement. Existing escrows keep
// their amount.
func (e *Engine) SetCarDeposit(ctx context.Context, carID ledger.CarID, caller ledger.Address, amount ledger.Amount) error {
	err := e.mutate(ctx, "set_car_deposit", gateV2, func(t *txn) error {
		car, err := t.Car(ctx, carID)
		if err != nil {
			return err
		}
		if caller != car.Owner {
			return fmt.Errorf("%w: car %d", ledger.ErrNotOwner, carID)
		}
		if err := t.PutCarDeposit(ctx, carID, amount); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventDepositSet,
			CarID:   carID,
			Account: caller,
			Amount:  amount,
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"car_id": carID, "deposit": amount}).Info("car deposit set")
	return nil
}

// CarDeposit returns the configured deposit, zero when none was set.
func (e *Engine) CarDeposit(ctx context.Context, carID ledger.CarID) (ledger.Amount, error) {
	if _, err := e.store.Car(ctx, carID); err != nil {
		return ledger.Zero, err
	}
	return e.store.CarDeposit(ctx, carID)
}

// Escrow returns the deposit state of a reservation; ok is false when the
// reservation was not paid through the deposit path.
func (e *Engine) Escrow(ctx context.Context, id ledger.ReservationID) (ledger.Escrow, bool, error) {
	if _, err := e.store.Reservation(ctx, id); err != nil {
		return ledger.Escrow{}, false, err
	}
	return e.store.Escrow(ctx, id)
}

// =============================================================================
// RENT & RETURN WITH DEPOSIT
// =============================================================================

// RentCarWithDeposit books like RentCar but requires price + deposit, holds
// the deposit in escrow and splits the price between owner and platform.
func (e *Engine) RentCarWithDeposit(ctx context.Context, carID ledger.CarID, renter ledger.Address, start, end ledger.Timestamp, paid ledger.Amount) (ledger.ReservationID, error) {
	return e.rent(ctx, rentWithDeposit, carID, renter, start, end, paid)
}

// ReturnSettlement describes how a deposit was split on return.
type ReturnSettlement struct {
	LateDays int64
	Penalty  ledger.Amount
	Refund   ledger.Amount
}

// ReturnCarWithDeposit closes the reservation and settles its deposit. A
// reservation with no escrow settles as a zero deposit.
func (e *Engine) ReturnCarWithDeposit(ctx context.Context, id ledger.ReservationID, caller ledger.Address) (ReturnSettlement, error) {
	var s ReturnSettlement
	err := e.mutate(ctx, "return_car_with_deposit", gateV2, func(t *txn) error {
		r, err := t.Reservation(ctx, id)
		if err != nil {
			return err
		}
		esc, held, err := t.Escrow(ctx, id)
		if err != nil {
			return err
		}
		if held && esc.Refunded {
			return fmt.Errorf("%w: reservation %d", ledger.ErrDepositAlreadyRefunded, id)
		}
		if !r.Active {
			return fmt.Errorf("%w: reservation %d", ledger.ErrNotActive, id)
		}
		car, err := t.Car(ctx, r.CarID)
		if err != nil {
			return err
		}
		if err := e.policy.check(caller, r, car); err != nil {
			return err
		}

		if !held {
			esc = ledger.Escrow{ReservationID: id}
		}
		s = settleDeposit(esc.Amount, t.platform.LatePenaltyPerDay, r.EndDate, t.at)

		if err := t.credit(car.Owner, s.Penalty); err != nil {
			return err
		}
		esc.Refunded = true
		if err := t.PutEscrow(ctx, esc); err != nil {
			return err
		}
		r.Active = false
		if err := t.PutReservation(ctx, r); err != nil {
			return err
		}

		if s.LateDays > 0 {
			if err := t.emit(ledger.Event{
				Type:          ledger.EventLateReturn,
				CarID:         r.CarID,
				ReservationID: id,
				Account:       r.Renter,
				Amount:        s.Penalty,
				Data:          map[string]string{"late_days": strconv.FormatInt(s.LateDays, 10)},
			}); err != nil {
				return err
			}
		}
		if err := t.emit(ledger.Event{
			Type:          ledger.EventDepositRefunded,
			CarID:         r.CarID,
			ReservationID: id,
			Account:       r.Renter,
			Amount:        s.Refund,
		}); err != nil {
			return err
		}
		if err := t.emit(ledger.Event{
			Type:          ledger.EventCarReturned,
			CarID:         r.CarID,
			ReservationID: id,
			Account:       r.Renter,
			Data:          map[string]string{"returned_by": caller.String()},
		}); err != nil {
			return err
		}
		return t.pay(r.Renter, s.Refund, ledger.PayoutDepositRefund, id)
	})
	if err != nil {
		return ReturnSettlement{}, err
	}

	e.log.WithFields(logrus.Fields{
		"reservation_id": id,
		"late_days":      s.LateDays,
		"penalty":        s.Penalty,
		"refund":         s.Refund,
	}).Info("car returned with deposit")
	return s, nil
}

// settleDeposit splits a deposit between penalty and refund. The penalty
// never exceeds the deposit.
func settleDeposit(deposit, perDay ledger.Amount, end, now ledger.Timestamp) ReturnSettlement {
	days := now.WholeDaysSince(end)
	penalty := perDay.MulInt(days).Min(deposit)
	return ReturnSettlement{
		LateDays: days,
		Penalty:  penalty,
		Refund:   deposit.Sub(penalty),
	}
}

// =============================================================================
// PLATFORM FEES
// =============================================================================

// PlatformFees returns the fees accumulated since the last withdrawal.
func (e *Engine) PlatformFees(ctx context.Context) (ledger.Amount, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return ledger.Zero, err
	}
	return p.AccumulatedFees, nil
}

// WithdrawPlatformFees pays the accumulated fees to the admin.
func (e *Engine) WithdrawPlatformFees(ctx context.Context, caller ledger.Address) (ledger.Amount, error) {
	var amount ledger.Amount
	err := e.mutate(ctx, "withdraw_platform_fees", gateV2, func(t *txn) error {
		if caller != t.platform.Admin {
			return fmt.Errorf("%w: %s is not the admin", ledger.ErrNotAuthorized, caller)
		}
		amount = t.platform.AccumulatedFees
		if amount.IsZero() {
			return ledger.ErrNothingToWithdraw
		}
		t.platform.AccumulatedFees = ledger.Zero
		if err := t.savePlatform(); err != nil {
			return err
		}
		if err := t.emit(ledger.Event{
			Type:    ledger.EventPlatformFeesWithdrawn,
			Account: caller,
			Amount:  amount,
		}); err != nil {
			return err
		}
		return t.pay(caller, amount, ledger.PayoutPlatformFees, 0)
	})
	if err != nil {
		return ledger.Zero, err
	}

	e.log.WithField("amount", amount).Info("platform fees withdrawn")
	return amount, nil
}
