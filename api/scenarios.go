/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that reset the ledger and populate it with
	cars, reservations and platform settings that demonstrate a feature.

AVAILABLE SCENARIOS:

	basic-rental: Version 1, two cars, one upcoming reservation
	upgrade-v2:   basic-rental, then migrated to 2.0.0 (0.005/day, 5% fee)
	late-return:  Version 2, deposit car rented in the past and not returned

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Initialize version 1 with the configured admin
 3. Seed cars from a JSON fleet (factory.ParseFleet)
 4. Book reservations, migrating first where the scenario needs it

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "late-return"}

NOTE:

	Scenarios reset the ledger. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/fleet.go: Fleet and upgrade JSON
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/rental-engine/factory"
	"github.com/warp/rental-engine/ledger"
)

// Demo parties.
const (
	DemoOwner  = ledger.Address("0xa11ce")
	DemoRenter = ledger.Address("0xb0b")
	demoAdmin  = ledger.Address("0xadmin")
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-rental",
		Name:        "Basic Rental",
		Description: "Two listed cars and one upcoming three-day reservation",
		Version:     ledger.Version1,
	},
	{
		ID:          "upgrade-v2",
		Name:        "Upgrade to V2",
		Description: "Basic rental state migrated to 2.0.0 with a 5% platform fee and 0.005 ETH/day late penalty",
		Version:     ledger.Version2,
	},
	{
		ID:          "late-return",
		Name:        "Late Return",
		Description: "Deposit-backed reservation that ended three days ago and was never returned",
		Version:     ledger.Version2,
	},
}

const basicFleetJSON = `{
  "cars": [
    {"brand": "Tesla", "model": "Model 3", "year": 2023, "daily_price_eth": "0.1", "metadata_uri": "ipfs://demo/tesla-model-3"},
    {"brand": "Toyota", "model": "Corolla", "year": 2021, "daily_price_eth": "0.05", "metadata_uri": "ipfs://demo/toyota-corolla"}
  ]
}`

const depositFleetJSON = `{
  "cars": [
    {"brand": "Porsche", "model": "Taycan", "year": 2024, "daily_price_eth": "0.1", "deposit_eth": "0.05", "metadata_uri": "ipfs://demo/porsche-taycan"}
  ]
}`

const (
	upgradeV2JSON  = `{"late_penalty_per_day_eth": "0.005", "platform_fee_percent": 5}`
	lateReturnJSON = `{"late_penalty_per_day_eth": "0.01", "platform_fee_percent": 5}`
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the ledger and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusNotFound, "not_found", "Unknown scenario", fmt.Errorf("%w: %q", err, req.ScenarioID))
			return
		}
		h.fail(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the ledger and loads the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	loaders := map[string]func(context.Context) error{
		"basic-rental": h.loadBasicRental,
		"upgrade-v2":   h.loadUpgradeV2,
		"late-return":  h.loadLateReturn,
	}
	load, ok := loaders[id]
	if !ok {
		return errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Engine.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	if err := h.Engine.Initialize(ctx, h.admin()); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		h.currentScenario = ""
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.log.WithField("scenario", id).Info("scenario loaded")
	return nil
}

func (h *Handler) admin() ledger.Address {
	if h.Admin.IsZero() {
		return demoAdmin
	}
	return h.Admin
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBasicRental(ctx context.Context) error {
	ids, err := h.seed(ctx, basicFleetJSON)
	if err != nil {
		return err
	}

	// Tesla, three days starting tomorrow.
	today := ledger.StartOfDay(h.Engine.Now().Time())
	start, end := today.AddDays(1), today.AddDays(4)
	price, err := h.Engine.CalculatePrice(ctx, ids[0], start, end)
	if err != nil {
		return err
	}
	_, err = h.Engine.RentCar(ctx, ids[0], DemoRenter, start, end, price)
	return err
}

func (h *Handler) loadUpgradeV2(ctx context.Context) error {
	if err := h.loadBasicRental(ctx); err != nil {
		return err
	}
	return h.migrate(ctx, upgradeV2JSON)
}

func (h *Handler) loadLateReturn(ctx context.Context) error {
	if err := h.migrate(ctx, lateReturnJSON); err != nil {
		return err
	}
	ids, err := h.seed(ctx, depositFleetJSON)
	if err != nil {
		return err
	}

	// Booked a week ago for days -5..-3, so it is three days late today.
	today := ledger.StartOfDay(h.Engine.Now().Time())
	weekAgo := today.AddDays(-7)
	past := h.Engine.Clocked(func() time.Time { return weekAgo.Time() })

	start, end := today.AddDays(-5), today.AddDays(-3)
	price, err := past.CalculatePrice(ctx, ids[0], start, end)
	if err != nil {
		return err
	}
	deposit, err := past.CarDeposit(ctx, ids[0])
	if err != nil {
		return err
	}
	_, err = past.RentCarWithDeposit(ctx, ids[0], DemoRenter, start, end, price.Add(deposit))
	return err
}

func (h *Handler) seed(ctx context.Context, fleetJSON string) ([]ledger.CarID, error) {
	fleet, err := factory.ParseFleet(fleetJSON)
	if err != nil {
		return nil, err
	}
	return factory.Seed(ctx, h.Engine, DemoOwner, fleet)
}

func (h *Handler) migrate(ctx context.Context, upgradeJSON string) error {
	params, err := factory.ParseUpgrade(upgradeJSON)
	if err != nil {
		return err
	}
	return h.Engine.MigrateToV2(ctx, h.admin(), params)
}
