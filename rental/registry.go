package rental

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/rental-engine/ledger"
)

// =============================================================================
// CAR REGISTRY
// =============================================================================

// Listing is what an owner provides to list a car.
type Listing struct {
	Brand       string
	Model       string
	Year        int
	DailyPrice  ledger.Amount
	MetadataURI string
}

func (l Listing) validate() error {
	if strings.TrimSpace(l.Brand) == "" {
		return fmt.Errorf("%w: brand is required", ledger.ErrInvalidInput)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("%w: model is required", ledger.ErrInvalidInput)
	}
	if !l.DailyPrice.IsPositive() {
		return fmt.Errorf("%w: daily price must be positive", ledger.ErrInvalidInput)
	}
	return nil
}

// ListCar registers a car owned by owner and returns its id. Ids start at
// 1 and are never reused.
func (e *Engine) ListCar(ctx context.Context, owner ledger.Address, l Listing) (ledger.CarID, error) {
	var id ledger.CarID
	err := e.mutate(ctx, "list_car", gateInitialized, func(t *txn) error {
		if owner.IsZero() {
			return fmt.Errorf("%w: owner is required", ledger.ErrInvalidInput)
		}
		if err := l.validate(); err != nil {
			return err
		}

		c, err := t.Counters(ctx)
		if err != nil {
			return err
		}
		c.Cars++
		id = ledger.CarID(c.Cars)

		car := ledger.Car{
			ID:          id,
			Owner:       owner,
			Brand:       strings.TrimSpace(l.Brand),
			Model:       strings.TrimSpace(l.Model),
			Year:        l.Year,
			DailyPrice:  l.DailyPrice,
			Active:      true,
			MetadataURI: l.MetadataURI,
		}
		if err := t.PutCar(ctx, car); err != nil {
			return err
		}
		if err := t.PutCounters(ctx, c); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventCarListed,
			CarID:   id,
			Account: owner,
			Amount:  l.DailyPrice,
			Data:    map[string]string{"brand": car.Brand, "model": car.Model},
		})
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{"car_id": id, "owner": owner, "daily_price": l.DailyPrice}).Info("car listed")
	return id, nil
}

// UpdateCar changes the daily price and the active flag. Only the owner
// may call it. Existing reservations keep the price they were made at.
func (e *Engine) UpdateCar(ctx context.Context, id ledger.CarID, caller ledger.Address, dailyPrice ledger.Amount, active bool) error {
	err := e.mutate(ctx, "update_car", gateInitialized, func(t *txn) error {
		car, err := t.Car(ctx, id)
		if err != nil {
			return err
		}
		if caller != car.Owner {
			return fmt.Errorf("%w: car %d", ledger.ErrNotOwner, id)
		}
		if !dailyPrice.IsPositive() {
			return fmt.Errorf("%w: daily price must be positive", ledger.ErrInvalidInput)
		}

		car.DailyPrice = dailyPrice
		car.Active = active
		if err := t.PutCar(ctx, car); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventCarUpdated,
			CarID:   id,
			Account: caller,
			Amount:  dailyPrice,
			Data:    map[string]string{"active": strconv.FormatBool(active)},
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"car_id": id, "daily_price": dailyPrice, "active": active}).Info("car updated")
	return nil
}

func (e *Engine) Car(ctx context.Context, id ledger.CarID) (ledger.Car, error) {
	return e.store.Car(ctx, id)
}

// CarCount returns how many cars were ever listed.
func (e *Engine) CarCount(ctx context.Context) (uint64, error) {
	c, err := e.store.Counters(ctx)
	if err != nil {
		return 0, err
	}
	return c.Cars, nil
}

// Cars lists every car in id order.
func (e *Engine) Cars(ctx context.Context) ([]ledger.Car, error) {
	return e.store.Cars(ctx, "")
}

func (e *Engine) CarsByOwner(ctx context.Context, owner ledger.Address) ([]ledger.Car, error) {
	if owner.IsZero() {
		return []ledger.Car{}, nil
	}
	return e.store.Cars(ctx, owner)
}
