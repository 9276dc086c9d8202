package rental

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/rental-engine/ledger"
)

// Earnings returns the owner's withdrawable balance.
func (e *Engine) Earnings(ctx context.Context, owner ledger.Address) (ledger.Amount, error) {
	return e.store.Earnings(ctx, owner)
}

// Withdraw pays the caller's whole balance and zeroes it. The balance is
// cleared before the transfer is attempted; a failed transfer rolls both
// back.
func (e *Engine) Withdraw(ctx context.Context, caller ledger.Address) (ledger.Amount, error) {
	var amount ledger.Amount
	err := e.mutate(ctx, "withdraw_earnings", gateInitialized, func(t *txn) error {
		var err error
		amount, err = t.Earnings(ctx, caller)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ledger.ErrNothingToWithdraw
		}
		if err := t.PutEarnings(ctx, caller, ledger.Zero); err != nil {
			return err
		}
		if err := t.emit(ledger.Event{
			Type:    ledger.EventEarningsWithdrawn,
			Account: caller,
			Amount:  amount,
		}); err != nil {
			return err
		}
		return t.pay(caller, amount, ledger.PayoutEarnings, 0)
	})
	if err != nil {
		return ledger.Zero, err
	}

	e.log.WithFields(logrus.Fields{"owner": caller, "amount": amount}).Info("earnings withdrawn")
	return amount, nil
}
