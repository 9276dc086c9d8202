package ledger

// =============================================================================
// CAR - A listing owned by exactly one address
// =============================================================================

// Car is a vehicle listing. ID, Owner, Brand, Model, Year and MetadataURI
// are fixed at listing time; only DailyPrice and Active change afterwards.
type Car struct {
	ID          CarID
	Owner       Address
	Brand       string
	Model       string
	Year        int
	DailyPrice  Amount
	Active      bool
	MetadataURI string
}

// =============================================================================
// RESERVATION - A time-ranged claim on a car
// =============================================================================

// Reservation is created Active and deactivated exactly once, by a return
// or a cancellation. Everything but Active is immutable.
type Reservation struct {
	ID         ReservationID
	CarID      CarID
	Renter     Address
	StartDate  Timestamp
	EndDate    Timestamp
	TotalPrice Amount
	Active     bool
}

func (r Reservation) Period() Period { return Period{Start: r.StartDate, End: r.EndDate} }

// =============================================================================
// ESCROW - Version 2 deposit state per reservation
// =============================================================================

// Escrow is written when a reservation is paid through the deposit path.
// Amount and PlatformFee never change; Refunded flips to true once.
type Escrow struct {
	ReservationID ReservationID
	Amount        Amount
	PlatformFee   Amount
	Refunded      bool
}

// =============================================================================
// PLATFORM - Singleton state: version, admin, fee accumulator
// =============================================================================

const (
	VersionNone = ""
	Version1    = "1.0.0"
	Version2    = "2.0.0"
)

// MaxPlatformFeePercent caps the share of each rental diverted to the platform.
const MaxPlatformFeePercent uint8 = 20

// Platform holds the scalar state. The version 2 fields stay zero until the
// migration sets them.
type Platform struct {
	Version string
	Admin   Address

	LatePenaltyPerDay  Amount
	PlatformFeePercent uint8
	AccumulatedFees    Amount
}

func (p Platform) Initialized() bool { return p.Version != VersionNone }
func (p Platform) IsV2() bool        { return p.Version == Version2 }

// Counters are the sources of sequential ids. They only ever grow.
type Counters struct {
	Cars         uint64
	Reservations uint64
}

// =============================================================================
// PAYOUT - Outbound value transfer (outbox)
// =============================================================================

type PayoutReason string

const (
	PayoutExcessRefund       PayoutReason = "excess_refund"
	PayoutCancellationRefund PayoutReason = "cancellation_refund"
	PayoutDepositRefund      PayoutReason = "deposit_refund"
	PayoutEarnings           PayoutReason = "earnings_withdrawal"
	PayoutPlatformFees       PayoutReason = "platform_fee_withdrawal"
)

// Payout records value owed back to an address. It is written in the same
// transaction as the ledger change that caused it; the transport layer
// settles it.
type Payout struct {
	ID            string
	Seq           uint64
	To            Address
	Amount        Amount
	Reason        PayoutReason
	ReservationID ReservationID
	At            Timestamp
}
