package ledger

// =============================================================================
// EVENT LOG - Append-only notifications for external observers
// =============================================================================

type EventType string

const (
	EventInitialized             EventType = "Initialized"
	EventUpgraded                EventType = "Upgraded"
	EventCarListed               EventType = "CarListed"
	EventCarUpdated              EventType = "CarUpdated"
	EventCarRented               EventType = "CarRented"
	EventCarReturned             EventType = "CarReturned"
	EventReservationCancelled    EventType = "ReservationCancelled"
	EventEarningsWithdrawn       EventType = "EarningsWithdrawn"
	EventDepositSet              EventType = "DepositSet"
	EventDepositPaid             EventType = "DepositPaid"
	EventLateReturn              EventType = "LateReturn"
	EventDepositRefunded         EventType = "DepositRefunded"
	EventPlatformFeesWithdrawn   EventType = "PlatformFeesWithdrawn"
	EventPlatformSettingsUpdated EventType = "PlatformSettingsUpdated"
)

// Event is one committed state change. Which of the optional fields are
// set depends on Type; Account is the party the event is about (owner for
// listings, renter for rentals, withdrawer for withdrawals).
type Event struct {
	Seq           uint64
	ID            string
	Type          EventType
	At            Timestamp
	CarID         CarID
	ReservationID ReservationID
	Account       Address
	Amount        Amount
	Data          map[string]string
}

// EventFilter selects events. Zero fields do not filter.
type EventFilter struct {
	AfterSeq      uint64
	Types         []EventType
	CarID         CarID
	ReservationID ReservationID
	Account       Address
	Limit         int
}

// Match reports whether e passes every set field of the filter except Limit.
func (f EventFilter) Match(e Event) bool {
	if e.Seq <= f.AfterSeq {
		return false
	}
	if f.CarID != 0 && e.CarID != f.CarID {
		return false
	}
	if f.ReservationID != 0 && e.ReservationID != f.ReservationID {
		return false
	}
	if f.Account != "" && e.Account != f.Account {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// ReservationFilter selects reservations. Zero fields do not filter.
type ReservationFilter struct {
	CarID      CarID
	Renter     Address
	ActiveOnly bool
	// EndsBefore keeps reservations whose EndDate is strictly earlier.
	EndsBefore Timestamp
}

func (f ReservationFilter) Match(r Reservation) bool {
	if f.CarID != 0 && r.CarID != f.CarID {
		return false
	}
	if f.Renter != "" && r.Renter != f.Renter {
		return false
	}
	if f.ActiveOnly && !r.Active {
		return false
	}
	if f.EndsBefore != 0 && r.EndDate >= f.EndsBefore {
		return false
	}
	return true
}
