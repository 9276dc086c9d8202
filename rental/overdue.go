package rental

import (
	"context"

	"github.com/warp/rental-engine/ledger"
)

// Overdue is an active reservation whose end date has passed by at least
// one whole day, with what a deposit return would settle to right now.
type Overdue struct {
	Reservation ledger.Reservation
	LateDays    int64
	Deposit     ledger.Amount
	Penalty     ledger.Amount
}

// Overdue lists late reservations in id order. It reads only.
func (e *Engine) Overdue(ctx context.Context) ([]Overdue, error) {
	now := e.Now()
	active, err := e.store.Reservations(ctx, ledger.ReservationFilter{ActiveOnly: true, EndsBefore: now})
	if err != nil {
		return nil, err
	}
	p, err := e.store.Platform(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Overdue, 0, len(active))
	for _, r := range active {
		days := now.WholeDaysSince(r.EndDate)
		if days == 0 {
			continue
		}
		deposit := ledger.Zero
		esc, held, err := e.store.Escrow(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if held && !esc.Refunded {
			deposit = esc.Amount
		}
		s := settleDeposit(deposit, p.LatePenaltyPerDay, r.EndDate, now)
		out = append(out, Overdue{Reservation: r, LateDays: s.LateDays, Deposit: deposit, Penalty: s.Penalty})
	}
	return out, nil
}
