/*
handlers.go - HTTP API handlers for the car rental ledger

PURPOSE:
  Exposes the rental engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to rental.Engine.

ENDPOINTS:
  Cars:
    GET    /api/cars                        List cars (?owner= filters)
    POST   /api/cars                        List a car for the caller
    GET    /api/cars/{id}                   Car details (+ deposit)
    PUT    /api/cars/{id}                   Update price / active flag
    GET    /api/cars/{id}/availability      ?start&end
    GET    /api/cars/{id}/price             ?start&end
    GET    /api/cars/{id}/reservations      All reservations of the car
    GET    /api/cars/{id}/deposit           Configured deposit
    PUT    /api/cars/{id}/deposit           Set deposit (version 2)
    POST   /api/cars/{id}/rentals           Book (with_deposit selects escrow)
    GET    /api/fleet                       Cars as a fleet file (?owner=)

  Reservations:
    GET    /api/reservations/overdue        Late reservations (read-only)
    GET    /api/reservations/{id}           Reservation (+ escrow)
    POST   /api/reservations/{id}/return    Return (escrow settled if held)
    POST   /api/reservations/{id}/cancel    Cancel before start

  Accounts:
    GET    /api/accounts/{address}          Earnings, cars, reservations, payouts
    POST   /api/earnings/withdraw           Withdraw the caller's earnings

  Platform:
    GET    /api/platform                    Version, settings, counts
    POST   /api/platform/migrate            Migrate to 2.0.0 (admin)
    PUT    /api/platform/settings           Change version 2 settings (admin)
    POST   /api/platform/fees/withdraw      Withdraw platform fees (admin)
    GET    /api/events                      Event log (?after&limit&type)

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

IDENTITY:
  Mutating endpoints act as the caller resolved by Identity (auth.go).
  Without a caller they answer 401.

ERROR HANDLING:
  Errors are returned as ErrorResponse with the ledger.Code of the failure
  and an HTTP status derived from it (statusFor):
  - 400: Invalid input, dates, past start
  - 401: Missing or invalid identity
  - 402: Insufficient payment
  - 403: Not owner / renter / admin
  - 404: Car or reservation not found
  - 409: State conflicts (overlap, inactive, already started, versions)
  - 502: Transfer failed
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/rental-engine/factory"
	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *rental.Engine
	Identity *Identity
	Overdue  *OverdueScheduler

	// Admin is re-initialized as the platform admin when a scenario resets
	// the ledger.
	Admin ledger.Address

	log *logrus.Entry

	mu              sync.Mutex
	currentScenario string
}

// HandlerConfig carries the optional handler settings.
type HandlerConfig struct {
	Admin     ledger.Address
	JWTSecret string
	Logger    *logrus.Entry
}

// NewHandler creates a handler around the engine.
func NewHandler(engine *rental.Engine, cfg HandlerConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "api")
	return &Handler{
		Engine:   engine,
		Identity: NewIdentity(cfg.JWTSecret),
		Overdue:  NewOverdueScheduler(engine, log),
		Admin:    cfg.Admin,
		log:      log,
	}
}

// =============================================================================
// CAR HANDLERS
// =============================================================================

// ListCars returns all cars, or the cars of ?owner=.
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	var (
		cars []ledger.Car
		err  error
	)
	if owner := ledger.NewAddress(r.URL.Query().Get("owner")); !owner.IsZero() {
		cars, err = h.Engine.CarsByOwner(r.Context(), owner)
	} else {
		cars, err = h.Engine.Cars(r.Context())
	}
	if err != nil {
		h.fail(w, "Failed to list cars", err)
		return
	}
	writeJSON(w, http.StatusOK, toCarDTOs(cars))
}

// ExportFleet returns the cars, or the cars of ?owner=, in the fleet file
// format accepted by -fleet.
func (h *Handler) ExportFleet(w http.ResponseWriter, r *http.Request) {
	fleet, err := factory.Export(r.Context(), h.Engine, ledger.NewAddress(r.URL.Query().Get("owner")))
	if err != nil {
		h.fail(w, "Failed to export fleet", err)
		return
	}
	writeJSON(w, http.StatusOK, fleet)
}

// CreateCar lists a car owned by the caller.
func (h *Handler) CreateCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateCarRequest
	if !decode(w, r, &req) {
		return
	}
	price, err := parseAmount(req.DailyPrice, req.DailyPriceEth, "daily_price")
	if err != nil {
		h.fail(w, "Invalid daily price", err)
		return
	}

	id, err := h.Engine.ListCar(r.Context(), caller, rental.Listing{
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
		DailyPrice:  price,
		MetadataURI: req.MetadataURI,
	})
	if err != nil {
		h.fail(w, "Failed to list car", err)
		return
	}
	car, err := h.Engine.Car(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get car", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCarDTO(car))
}

// GetCar returns a car and its deposit, if one is configured.
func (h *Handler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, ok := carID(w, r)
	if !ok {
		return
	}
	car, err := h.Engine.Car(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get car", err)
		return
	}
	deposit, err := h.Engine.CarDeposit(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get deposit", err)
		return
	}

	dto := toCarDTO(car)
	if deposit.IsPositive() {
		dto.Deposit = &deposit
		dto.DepositEth = deposit.Ether()
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdateCar changes the daily price and the active flag.
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := carID(w, r)
	if !ok {
		return
	}
	var req UpdateCarRequest
	if !decode(w, r, &req) {
		return
	}

	car, err := h.Engine.Car(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get car", err)
		return
	}
	price := car.DailyPrice
	if req.DailyPrice != "" || req.DailyPriceEth != "" {
		if price, err = parseAmount(req.DailyPrice, req.DailyPriceEth, "daily_price"); err != nil {
			h.fail(w, "Invalid daily price", err)
			return
		}
	}
	active := car.Active
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.Engine.UpdateCar(r.Context(), id, caller, price, active); err != nil {
		h.fail(w, "Failed to update car", err)
		return
	}
	car, err = h.Engine.Car(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get car", err)
		return
	}
	writeJSON(w, http.StatusOK, toCarDTO(car))
}

// GetAvailability answers whether ?start..?end is free.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := carID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.queryPeriod(w, r)
	if !ok {
		return
	}
	available, err := h.Engine.IsAvailable(r.Context(), id, start, end)
	if err != nil {
		h.fail(w, "Failed to check availability", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		CarID:     id,
		StartDate: start.String(),
		EndDate:   end.String(),
		Available: available,
	})
}

// GetPrice quotes ?start..?end, plus the deposit due on the escrow path.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := carID(w, r)
	if !ok {
		return
	}
	start, end, ok := h.queryPeriod(w, r)
	if !ok {
		return
	}
	price, err := h.Engine.CalculatePrice(r.Context(), id, start, end)
	if err != nil {
		h.fail(w, "Failed to calculate price", err)
		return
	}
	deposit, err := h.Engine.CarDeposit(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get deposit", err)
		return
	}
	// CalculatePrice has already validated the period.
	days, _ := ledger.Period{Start: start, End: end}.Days()

	writeJSON(w, http.StatusOK, PriceDTO{
		CarID:      id,
		StartDate:  start.String(),
		EndDate:    end.String(),
		Days:       days,
		Price:      price,
		PriceEth:   price.Ether(),
		Deposit:    deposit,
		DepositEth: deposit.Ether(),
	})
}

// GetCarReservations returns every reservation of a car, closed ones included.
func (h *Handler) GetCarReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := carID(w, r)
	if !ok {
		return
	}
	rs, err := h.Engine.CarReservations(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to list reservations", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := carID(w, r)
	if !ok {
		return
	}
	deposit, err := h.Engine.CarDeposit(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, DepositDTO{CarID: id, Deposit: deposit, DepositEth: deposit.Ether()})
}

func (h *Handler) SetDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := carID(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount, req.AmountEth, "amount")
	if err != nil {
		h.fail(w, "Invalid deposit", err)
		return
	}

	if err := h.Engine.SetCarDeposit(r.Context(), id, caller, amount); err != nil {
		h.fail(w, "Failed to set deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, DepositDTO{CarID: id, Deposit: amount, DepositEth: amount.Ether()})
}

// RentCar books the car for the caller.
func (h *Handler) RentCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := carID(w, r)
	if !ok {
		return
	}
	var req RentRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := req.StartDate.Timestamp()
	if err != nil {
		h.fail(w, "Invalid start_date", err)
		return
	}
	end, err := req.EndDate.Timestamp()
	if err != nil {
		h.fail(w, "Invalid end_date", err)
		return
	}
	payment, err := parseAmount(req.Payment, req.PaymentEth, "payment")
	if err != nil {
		h.fail(w, "Invalid payment", err)
		return
	}

	var rid ledger.ReservationID
	if req.WithDeposit {
		rid, err = h.Engine.RentCarWithDeposit(r.Context(), id, caller, start, end, payment)
	} else {
		rid, err = h.Engine.RentCar(r.Context(), id, caller, start, end, payment)
	}
	if err != nil {
		h.fail(w, "Failed to rent car", err)
		return
	}

	dto, err := h.reservationDTO(r, rid)
	if err != nil {
		h.fail(w, "Failed to get reservation", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := reservationID(w, r)
	if !ok {
		return
	}
	dto, err := h.reservationDTO(r, id)
	if err != nil {
		h.fail(w, "Failed to get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListOverdue runs the overdue sweep on demand.
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.Overdue.Check(r.Context())
	if err != nil {
		h.fail(w, "Failed to list overdue reservations", err)
		return
	}
	dtos := make([]OverdueDTO, len(overdue))
	for i, o := range overdue {
		dtos[i] = toOverdueDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReturnReservation closes a reservation. A reservation holding an escrow
// is settled through the deposit path; any other goes through ReturnCar.
func (h *Handler) ReturnReservation(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := reservationID(w, r)
	if !ok {
		return
	}
	_, held, err := h.Engine.Escrow(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get reservation", err)
		return
	}

	resp := ReturnResponse{WithDeposit: held}
	if held {
		s, err := h.Engine.ReturnCarWithDeposit(r.Context(), id, caller)
		if err != nil {
			h.fail(w, "Failed to return car", err)
			return
		}
		resp.LateDays = s.LateDays
		resp.Penalty, resp.PenaltyEth = &s.Penalty, s.Penalty.Ether()
		resp.Refund, resp.RefundEth = &s.Refund, s.Refund.Ether()
	} else if err := h.Engine.ReturnCar(r.Context(), id, caller); err != nil {
		h.fail(w, "Failed to return car", err)
		return
	}

	if resp.Reservation, err = h.reservationDTO(r, id); err != nil {
		h.fail(w, "Failed to get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := reservationID(w, r)
	if !ok {
		return
	}
	refund, err := h.Engine.CancelReservation(r.Context(), id, caller)
	if err != nil {
		h.fail(w, "Failed to cancel reservation", err)
		return
	}
	dto, err := h.reservationDTO(r, id)
	if err != nil {
		h.fail(w, "Failed to get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Reservation: dto, Refund: refund, RefundEth: refund.Ether()})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccount returns what the ledger holds for an address.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr := ledger.NewAddress(chi.URLParam(r, "address"))
	ctx := r.Context()

	earnings, err := h.Engine.Earnings(ctx, addr)
	if err != nil {
		h.fail(w, "Failed to get earnings", err)
		return
	}
	cars, err := h.Engine.CarsByOwner(ctx, addr)
	if err != nil {
		h.fail(w, "Failed to list cars", err)
		return
	}
	rs, err := h.Engine.RenterReservations(ctx, addr)
	if err != nil {
		h.fail(w, "Failed to list reservations", err)
		return
	}
	payouts, err := h.Engine.Payouts(ctx, addr)
	if err != nil {
		h.fail(w, "Failed to list payouts", err)
		return
	}

	writeJSON(w, http.StatusOK, AccountDTO{
		Address:      addr.String(),
		Earnings:     earnings,
		EarningsEth:  earnings.Ether(),
		Cars:         toCarDTOs(cars),
		Reservations: toReservationDTOs(rs),
		Payouts:      toPayoutDTOs(payouts),
	})
}

func (h *Handler) WithdrawEarnings(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	amount, err := h.Engine.Withdraw(r.Context(), caller)
	if err != nil {
		h.fail(w, "Failed to withdraw earnings", err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawDTO{To: caller.String(), Amount: amount, AmountEth: amount.Ether()})
}

// =============================================================================
// PLATFORM HANDLERS
// =============================================================================

func (h *Handler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	dto, err := h.platformDTO(r)
	if err != nil {
		h.fail(w, "Failed to get platform", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// MigrateToV2 upgrades the platform. The body is factory.UpgradeJSON.
func (h *Handler) MigrateToV2(w http.ResponseWriter, r *http.Request) {
	h.applyUpgrade(w, r, "Failed to migrate", h.Engine.MigrateToV2)
}

func (h *Handler) UpdatePlatformSettings(w http.ResponseWriter, r *http.Request) {
	h.applyUpgrade(w, r, "Failed to update settings", h.Engine.UpdatePlatformSettings)
}

func (h *Handler) applyUpgrade(w http.ResponseWriter, r *http.Request, message string,
	apply func(ctx context.Context, caller ledger.Address, params rental.UpgradeParams) error) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req factory.UpgradeJSON
	if !decode(w, r, &req) {
		return
	}
	params, err := factory.UpgradeFromJSON(req)
	if err != nil {
		h.fail(w, "Invalid settings", err)
		return
	}
	if err := apply(r.Context(), caller, params); err != nil {
		h.fail(w, message, err)
		return
	}
	dto, err := h.platformDTO(r)
	if err != nil {
		h.fail(w, "Failed to get platform", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) WithdrawPlatformFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	amount, err := h.Engine.WithdrawPlatformFees(r.Context(), caller)
	if err != nil {
		h.fail(w, "Failed to withdraw platform fees", err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawDTO{To: caller.String(), Amount: amount, AmountEth: amount.Ether()})
}

// ListEvents returns the event log. ?after is the last seq the client has
// seen; ?type may repeat or be comma separated.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f ledger.EventFilter

	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid after", err)
			return
		}
		f.AfterSeq = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid limit", err)
			return
		}
		f.Limit = n
	}
	if v := q.Get("car_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid car_id", err)
			return
		}
		f.CarID = ledger.CarID(n)
	}
	if v := q.Get("reservation_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid reservation_id", err)
			return
		}
		f.ReservationID = ledger.ReservationID(n)
	}
	f.Account = ledger.NewAddress(q.Get("account"))
	for _, v := range q["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, ledger.EventType(t))
			}
		}
	}

	events, err := h.Engine.Events(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) reservationDTO(r *http.Request, id ledger.ReservationID) (ReservationDTO, error) {
	res, err := h.Engine.Reservation(r.Context(), id)
	if err != nil {
		return ReservationDTO{}, err
	}
	dto := toReservationDTO(res)
	esc, held, err := h.Engine.Escrow(r.Context(), id)
	if err != nil {
		return ReservationDTO{}, err
	}
	if held {
		dto.Escrow = toEscrowDTO(esc)
	}
	return dto, nil
}

func (h *Handler) platformDTO(r *http.Request) (PlatformDTO, error) {
	ctx := r.Context()
	p, err := h.Engine.Settings(ctx)
	if err != nil {
		return PlatformDTO{}, err
	}
	cars, err := h.Engine.CarCount(ctx)
	if err != nil {
		return PlatformDTO{}, err
	}
	reservations, err := h.Engine.ReservationCount(ctx)
	if err != nil {
		return PlatformDTO{}, err
	}
	dto := toPlatformDTO(p)
	dto.CarCount = cars
	dto.ReservationCount = reservations
	dto.ReturnPolicy = string(h.Engine.ReturnPolicy())
	return dto, nil
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	c := CallerFrom(r.Context())
	if c.IsZero() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Caller identity required", ErrNoCaller)
		return "", false
	}
	return c, true
}

// queryPeriod reads ?start and ?end.
func (h *Handler) queryPeriod(w http.ResponseWriter, r *http.Request) (ledger.Timestamp, ledger.Timestamp, bool) {
	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		h.fail(w, "Invalid start", err)
		return 0, 0, false
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		h.fail(w, "Invalid end", err)
		return 0, 0, false
	}
	return start, end, true
}

func carID(w http.ResponseWriter, r *http.Request) (ledger.CarID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid car id", err)
		return 0, false
	}
	return ledger.CarID(n), true
}

func reservationID(w http.ResponseWriter, r *http.Request) (ledger.ReservationID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid reservation id", err)
		return 0, false
	}
	return ledger.ReservationID(n), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch ledger.Code(err) {
	case "car_not_found", "reservation_not_found", "not_found":
		return http.StatusNotFound
	case "not_owner", "not_renter", "not_authorized":
		return http.StatusForbidden
	case "overlap", "car_not_active", "reservation_not_active", "already_started",
		"deposit_already_refunded", "deposit_required", "already_initialized",
		"not_initialized", "v2_required", "nothing_to_withdraw":
		return http.StatusConflict
	case "insufficient_payment":
		return http.StatusPaymentRequired
	case "invalid_input", "invalid_dates", "not_day_aligned", "start_in_past",
		"self_rental_forbidden", "invalid_fee_percent":
		return http.StatusBadRequest
	case "transfer_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an engine error. Server-side failures are logged; rejections
// were already logged by the engine.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("status", status).Error(message)
	}
	writeError(w, status, ledger.Code(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
