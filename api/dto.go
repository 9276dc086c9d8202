/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around a DTO and an operation result

AMOUNTS:
  Every amount is a decimal string in the smallest unit (wei), followed by
  an "_eth" sibling for display. Request bodies accept either form; when
  both are present the wei value wins.

DATES:
  Responses carry "YYYY-MM-DD" for reservation days and RFC 3339 for
  instants. Requests accept "YYYY-MM-DD" (midnight UTC) or Unix seconds,
  quoted or not.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/fleet.go: UpgradeJSON for the migration body
*/
package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// CARS
// =============================================================================

// CarDTO represents a car in API responses.
type CarDTO struct {
	ID            ledger.CarID   `json:"id"`
	Owner         string         `json:"owner"`
	Brand         string         `json:"brand"`
	Model         string         `json:"model"`
	Year          int            `json:"year"`
	DailyPrice    ledger.Amount  `json:"daily_price"`
	DailyPriceEth string         `json:"daily_price_eth"`
	Active        bool           `json:"active"`
	MetadataURI   string         `json:"metadata_uri,omitempty"`
	Deposit       *ledger.Amount `json:"deposit,omitempty"`
	DepositEth    string         `json:"deposit_eth,omitempty"`
}

// CreateCarRequest is the request to list a car.
type CreateCarRequest struct {
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Year          int    `json:"year"`
	DailyPrice    string `json:"daily_price,omitempty"`
	DailyPriceEth string `json:"daily_price_eth,omitempty"`
	MetadataURI   string `json:"metadata_uri,omitempty"`
}

// UpdateCarRequest changes price and availability. Omitted fields keep
// their current value.
type UpdateCarRequest struct {
	DailyPrice    string `json:"daily_price,omitempty"`
	DailyPriceEth string `json:"daily_price_eth,omitempty"`
	Active        *bool  `json:"active,omitempty"`
}

// DepositRequest sets the per-car deposit.
type DepositRequest struct {
	Amount    string `json:"amount,omitempty"`
	AmountEth string `json:"amount_eth,omitempty"`
}

type DepositDTO struct {
	CarID      ledger.CarID  `json:"car_id"`
	Deposit    ledger.Amount `json:"deposit"`
	DepositEth string        `json:"deposit_eth"`
}

type AvailabilityDTO struct {
	CarID     ledger.CarID `json:"car_id"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Available bool         `json:"available"`
}

type PriceDTO struct {
	CarID     ledger.CarID  `json:"car_id"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Days      int64         `json:"days"`
	Price     ledger.Amount `json:"price"`
	PriceEth  string        `json:"price_eth"`
	// Deposit is the extra amount due on the deposit path (version 2).
	Deposit    ledger.Amount `json:"deposit"`
	DepositEth string        `json:"deposit_eth"`
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID            ledger.ReservationID `json:"id"`
	CarID         ledger.CarID         `json:"car_id"`
	Renter        string               `json:"renter"`
	StartDate     string               `json:"start_date"`
	EndDate       string               `json:"end_date"`
	TotalPrice    ledger.Amount        `json:"total_price"`
	TotalPriceEth string               `json:"total_price_eth"`
	Active        bool                 `json:"active"`
	Escrow        *EscrowDTO           `json:"escrow,omitempty"`
}

type EscrowDTO struct {
	Amount         ledger.Amount `json:"amount"`
	AmountEth      string        `json:"amount_eth"`
	PlatformFee    ledger.Amount `json:"platform_fee"`
	PlatformFeeEth string        `json:"platform_fee_eth"`
	Refunded       bool          `json:"refunded"`
}

// RentRequest books a car. With WithDeposit the payment must also cover
// the car's deposit and the booking goes through escrow.
type RentRequest struct {
	StartDate   DateInput `json:"start_date"`
	EndDate     DateInput `json:"end_date"`
	Payment     string    `json:"payment,omitempty"`
	PaymentEth  string    `json:"payment_eth,omitempty"`
	WithDeposit bool      `json:"with_deposit"`
}

// ReturnResponse reports a return. The settlement fields are only set when
// a deposit escrow was settled.
type ReturnResponse struct {
	Reservation ReservationDTO `json:"reservation"`
	WithDeposit bool           `json:"with_deposit"`
	LateDays    int64          `json:"late_days,omitempty"`
	Penalty     *ledger.Amount `json:"penalty,omitempty"`
	PenaltyEth  string         `json:"penalty_eth,omitempty"`
	Refund      *ledger.Amount `json:"refund,omitempty"`
	RefundEth   string         `json:"refund_eth,omitempty"`
}

type CancelResponse struct {
	Reservation ReservationDTO `json:"reservation"`
	Refund      ledger.Amount  `json:"refund"`
	RefundEth   string         `json:"refund_eth"`
}

// OverdueDTO is a late reservation as the sweep sees it right now.
type OverdueDTO struct {
	Reservation ReservationDTO `json:"reservation"`
	LateDays    int64          `json:"late_days"`
	Deposit     ledger.Amount  `json:"deposit"`
	DepositEth  string         `json:"deposit_eth"`
	Penalty     ledger.Amount  `json:"penalty"`
	PenaltyEth  string         `json:"penalty_eth"`
}

// =============================================================================
// ACCOUNTS & PAYMENTS
// =============================================================================

// AccountDTO is everything the ledger knows about one address.
type AccountDTO struct {
	Address      string           `json:"address"`
	Earnings     ledger.Amount    `json:"earnings"`
	EarningsEth  string           `json:"earnings_eth"`
	Cars         []CarDTO         `json:"cars"`
	Reservations []ReservationDTO `json:"reservations"`
	Payouts      []PayoutDTO      `json:"payouts"`
}

type PayoutDTO struct {
	ID            string               `json:"id"`
	Seq           uint64               `json:"seq"`
	To            string               `json:"to"`
	Amount        ledger.Amount        `json:"amount"`
	AmountEth     string               `json:"amount_eth"`
	Reason        ledger.PayoutReason  `json:"reason"`
	ReservationID ledger.ReservationID `json:"reservation_id,omitempty"`
	At            string               `json:"at"`
}

type WithdrawDTO struct {
	To        string        `json:"to"`
	Amount    ledger.Amount `json:"amount"`
	AmountEth string        `json:"amount_eth"`
}

// =============================================================================
// PLATFORM & EVENTS
// =============================================================================

type PlatformDTO struct {
	Version              string        `json:"version"`
	Admin                string        `json:"admin,omitempty"`
	LatePenaltyPerDay    ledger.Amount `json:"late_penalty_per_day"`
	LatePenaltyPerDayEth string        `json:"late_penalty_per_day_eth"`
	PlatformFeePercent   uint8         `json:"platform_fee_percent"`
	AccumulatedFees      ledger.Amount `json:"accumulated_fees"`
	AccumulatedFeesEth   string        `json:"accumulated_fees_eth"`
	CarCount             uint64        `json:"car_count"`
	ReservationCount     uint64        `json:"reservation_count"`
	ReturnPolicy         string        `json:"return_policy"`
}

type EventDTO struct {
	Seq           uint64               `json:"seq"`
	ID            string               `json:"id"`
	Type          ledger.EventType     `json:"type"`
	At            string               `json:"at"`
	CarID         ledger.CarID         `json:"car_id,omitempty"`
	ReservationID ledger.ReservationID `json:"reservation_id,omitempty"`
	Account       string               `json:"account,omitempty"`
	Amount        *ledger.Amount       `json:"amount,omitempty"`
	AmountEth     string               `json:"amount_eth,omitempty"`
	Data          map[string]string    `json:"data,omitempty"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response. Code is the stable
// ledger.Code of the failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// DateInput holds a date as sent: "YYYY-MM-DD" or Unix seconds.
type DateInput string

func (d *DateInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = DateInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("date must be a string or a number")
	}
	*d = DateInput(n.String())
	return nil
}

func (d DateInput) Timestamp() (ledger.Timestamp, error) {
	return parseDate(string(d))
}

func parseDate(s string) (ledger.Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: date is required", ledger.ErrInvalidDates)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ledger.Timestamp(n), nil
	}
	return ledger.ParseDay(s)
}

// parseAmount reads an amount given in wei or in ether.
func parseAmount(wei, eth, field string) (ledger.Amount, error) {
	switch {
	case wei != "":
		a, err := ledger.ParseAmount(wei)
		if err != nil {
			return ledger.Zero, fmt.Errorf("%s: %w", field, err)
		}
		return a, nil
	case eth != "":
		a, err := ledger.ParseEther(eth)
		if err != nil {
			return ledger.Zero, fmt.Errorf("%s_eth: %w", field, err)
		}
		return a, nil
	default:
		return ledger.Zero, fmt.Errorf("%w: %s is required", ledger.ErrInvalidInput, field)
	}
}

func toCarDTO(c ledger.Car) CarDTO {
	return CarDTO{
		ID:            c.ID,
		Owner:         c.Owner.String(),
		Brand:         c.Brand,
		Model:         c.Model,
		Year:          c.Year,
		DailyPrice:    c.DailyPrice,
		DailyPriceEth: c.DailyPrice.Ether(),
		Active:        c.Active,
		MetadataURI:   c.MetadataURI,
	}
}

func toCarDTOs(cars []ledger.Car) []CarDTO {
	dtos := make([]CarDTO, len(cars))
	for i, c := range cars {
		dtos[i] = toCarDTO(c)
	}
	return dtos
}

func toReservationDTO(r ledger.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:            r.ID,
		CarID:         r.CarID,
		Renter:        r.Renter.String(),
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		TotalPrice:    r.TotalPrice,
		TotalPriceEth: r.TotalPrice.Ether(),
		Active:        r.Active,
	}
}

func toReservationDTOs(rs []ledger.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toReservationDTO(r)
	}
	return dtos
}

func toEscrowDTO(e ledger.Escrow) *EscrowDTO {
	return &EscrowDTO{
		Amount:         e.Amount,
		AmountEth:      e.Amount.Ether(),
		PlatformFee:    e.PlatformFee,
		PlatformFeeEth: e.PlatformFee.Ether(),
		Refunded:       e.Refunded,
	}
}

func toPayoutDTOs(ps []ledger.Payout) []PayoutDTO {
	dtos := make([]PayoutDTO, len(ps))
	for i, p := range ps {
		dtos[i] = PayoutDTO{
			ID:            p.ID,
			Seq:           p.Seq,
			To:            p.To.String(),
			Amount:        p.Amount,
			AmountEth:     p.Amount.Ether(),
			Reason:        p.Reason,
			ReservationID: p.ReservationID,
			At:            p.At.Time().Format(time.RFC3339),
		}
	}
	return dtos
}

func toEventDTO(e ledger.Event) EventDTO {
	dto := EventDTO{
		Seq:           e.Seq,
		ID:            e.ID,
		Type:          e.Type,
		At:            e.At.Time().Format(time.RFC3339),
		CarID:         e.CarID,
		ReservationID: e.ReservationID,
		Account:       e.Account.String(),
		Data:          e.Data,
	}
	if e.Amount.IsPositive() {
		amount := e.Amount
		dto.Amount = &amount
		dto.AmountEth = amount.Ether()
	}
	return dto
}

func toOverdueDTO(o rental.Overdue) OverdueDTO {
	return OverdueDTO{
		Reservation: toReservationDTO(o.Reservation),
		LateDays:    o.LateDays,
		Deposit:     o.Deposit,
		DepositEth:  o.Deposit.Ether(),
		Penalty:     o.Penalty,
		PenaltyEth:  o.Penalty.Ether(),
	}
}

func toPlatformDTO(p ledger.Platform) PlatformDTO {
	return PlatformDTO{
		Version:              p.Version,
		Admin:                p.Admin.String(),
		LatePenaltyPerDay:    p.LatePenaltyPerDay,
		LatePenaltyPerDayEth: p.LatePenaltyPerDay.Ether(),
		PlatformFeePercent:   p.PlatformFeePercent,
		AccumulatedFees:      p.AccumulatedFees,
		AccumulatedFeesEth:   p.AccumulatedFees.Ether(),
	}
}
