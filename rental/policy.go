package rental

import (
	"fmt"
	"strings"

	"github.com/warp/rental-engine/ledger"
)

// ReturnPolicy decides who may close an active reservation through a
// return. Cancellation is always renter-only.
type ReturnPolicy string

const (
	// ReturnAnyCaller accepts a return from anyone.
	ReturnAnyCaller ReturnPolicy = "any"
	// ReturnRenterOnly accepts a return from the renter only.
	ReturnRenterOnly ReturnPolicy = "renter"
	// ReturnRenterOrOwner also accepts the car owner.
	ReturnRenterOrOwner ReturnPolicy = "renter_or_owner"
)

func ParseReturnPolicy(s string) (ReturnPolicy, error) {
	switch p := ReturnPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReturnAnyCaller, nil
	case ReturnAnyCaller, ReturnRenterOnly, ReturnRenterOrOwner:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown return policy %q", ledger.ErrInvalidInput, s)
	}
}

func (p ReturnPolicy) check(caller ledger.Address, r ledger.Reservation, car ledger.Car) error {
	switch p {
	case ReturnRenterOnly:
		if caller == r.Renter {
			return nil
		}
	case ReturnRenterOrOwner:
		if caller == r.Renter || caller == car.Owner {
			return nil
		}
	default:
		return nil
	}
	return fmt.Errorf("%w: %s may not return reservation %d", ledger.ErrNotRenter, caller, r.ID)
}
