/*
Package factory provides JSON to Go fleet and upgrade conversion.

PURPOSE:
  Converts JSON fleet definitions into rental listings and JSON upgrade
  settings into rental.UpgradeParams. Operators describe a fleet in ether
  units, the way prices are quoted, and the factory turns them into exact
  smallest-unit amounts.

JSON SCHEMA (fleet):
  {
    "cars": [
      {
        "owner": "0xabc...",          (optional, defaults to the seeding owner)
        "brand": "Tesla",
        "model": "Model 3",
        "year": 2023,
        "daily_price_eth": "0.1",
        "deposit_eth": "0.05",        (optional, version 2 only)
        "metadata_uri": "ipfs://..."
      }
    ]
  }

JSON SCHEMA (upgrade):
  {
    "late_penalty_per_day_eth": "0.01",
    "platform_fee_percent": 5
  }

USAGE:
  fleet, err := factory.ParseFleet(jsonString)
  ids, err := factory.Seed(ctx, engine, owner, fleet)
  fj, err := factory.Export(ctx, engine, "")   (back to a fleet file)

SEE ALSO:
  - rental/registry.go: Listing
  - rental/version.go: UpgradeParams
  - api/scenarios.go: demo fleets
  - api/handlers.go: GET /api/fleet
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// FleetJSON is the JSON representation of a fleet.
type FleetJSON struct {
	Cars []CarJSON `json:"cars"`
}

// CarJSON is one car of a fleet. Amounts are decimal strings in ether.
type CarJSON struct {
	Owner         string `json:"owner,omitempty"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Year          int    `json:"year"`
	DailyPriceEth string `json:"daily_price_eth"`
	DepositEth    string `json:"deposit_eth,omitempty"`
	MetadataURI   string `json:"metadata_uri,omitempty"`
}

// UpgradeJSON represents the version 2 settings.
type UpgradeJSON struct {
	LatePenaltyPerDayEth string `json:"late_penalty_per_day_eth"`
	PlatformFeePercent   int    `json:"platform_fee_percent"`
}

// FleetCar is a parsed fleet entry.
type FleetCar struct {
	Owner   ledger.Address
	Listing rental.Listing
	Deposit ledger.Amount
}

// =============================================================================
// PARSING
// =============================================================================

// ParseFleet parses a JSON fleet definition.
func ParseFleet(jsonStr string) ([]FleetCar, error) {
	var fj FleetJSON
	if err := json.Unmarshal([]byte(jsonStr), &fj); err != nil {
		return nil, fmt.Errorf("failed to parse fleet JSON: %w", err)
	}
	return FromJSON(fj)
}

// FromJSON converts FleetJSON to fleet entries. Entries are validated the
// way ListCar validates them so a bad fleet fails before anything is listed.
func FromJSON(fj FleetJSON) ([]FleetCar, error) {
	if len(fj.Cars) == 0 {
		return nil, fmt.Errorf("%w: fleet has no cars", ledger.ErrInvalidInput)
	}

	cars := make([]FleetCar, 0, len(fj.Cars))
	for i, cj := range fj.Cars {
		if strings.TrimSpace(cj.Brand) == "" || strings.TrimSpace(cj.Model) == "" {
			return nil, fmt.Errorf("%w: car %d: brand and model are required", ledger.ErrInvalidInput, i)
		}
		price, err := ledger.ParseEther(cj.DailyPriceEth)
		if err != nil {
			return nil, fmt.Errorf("car %d: daily_price_eth: %w", i, err)
		}
		if price.IsZero() {
			return nil, fmt.Errorf("%w: car %d: daily price must be positive", ledger.ErrInvalidInput, i)
		}
		deposit := ledger.Zero
		if cj.DepositEth != "" {
			if deposit, err = ledger.ParseEther(cj.DepositEth); err != nil {
				return nil, fmt.Errorf("car %d: deposit_eth: %w", i, err)
			}
		}

		cars = append(cars, FleetCar{
			Owner: ledger.NewAddress(cj.Owner),
			Listing: rental.Listing{
				Brand:       cj.Brand,
				Model:       cj.Model,
				Year:        cj.Year,
				DailyPrice:  price,
				MetadataURI: cj.MetadataURI,
			},
			Deposit: deposit,
		})
	}
	return cars, nil
}

// ParseUpgrade parses JSON version 2 settings.
func ParseUpgrade(jsonStr string) (rental.UpgradeParams, error) {
	var uj UpgradeJSON
	if err := json.Unmarshal([]byte(jsonStr), &uj); err != nil {
		return rental.UpgradeParams{}, fmt.Errorf("failed to parse upgrade JSON: %w", err)
	}
	return UpgradeFromJSON(uj)
}

func UpgradeFromJSON(uj UpgradeJSON) (rental.UpgradeParams, error) {
	if uj.PlatformFeePercent < 0 || uj.PlatformFeePercent > int(ledger.MaxPlatformFeePercent) {
		return rental.UpgradeParams{}, fmt.Errorf("%w: %d", ledger.ErrInvalidFeePercent, uj.PlatformFeePercent)
	}
	penalty := ledger.Zero
	if uj.LatePenaltyPerDayEth != "" {
		var err error
		if penalty, err = ledger.ParseEther(uj.LatePenaltyPerDayEth); err != nil {
			return rental.UpgradeParams{}, fmt.Errorf("late_penalty_per_day_eth: %w", err)
		}
	}
	return rental.UpgradeParams{
		LatePenaltyPerDay:  penalty,
		PlatformFeePercent: uint8(uj.PlatformFeePercent),
	}, nil
}

// ToJSON converts a car back to its fleet representation.
func ToJSON(car ledger.Car, deposit ledger.Amount) CarJSON {
	cj := CarJSON{
		Owner:         car.Owner.String(),
		Brand:         car.Brand,
		Model:         car.Model,
		Year:          car.Year,
		DailyPriceEth: car.DailyPrice.Ether(),
		MetadataURI:   car.MetadataURI,
	}
	if deposit.IsPositive() {
		cj.DepositEth = deposit.Ether()
	}
	return cj
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed lists every car of the fleet and configures the deposits. Entries
// without an owner are listed for defaultOwner. Deposits need version 2;
// a fleet with deposits is rejected on a version 1 platform before any
// car is listed.
func Seed(ctx context.Context, engine *rental.Engine, defaultOwner ledger.Address, fleet []FleetCar) ([]ledger.CarID, error) {
	if hasDeposits(fleet) {
		p, err := engine.Settings(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsV2() {
			return nil, fmt.Errorf("fleet configures deposits: %w", ledger.ErrV2Required)
		}
	}
	ids := make([]ledger.CarID, 0, len(fleet))
	for _, fc := range fleet {
		owner := fc.Owner
		if owner.IsZero() {
			owner = defaultOwner
		}
		id, err := engine.ListCar(ctx, owner, fc.Listing)
		if err != nil {
			return ids, fmt.Errorf("list %s %s: %w", fc.Listing.Brand, fc.Listing.Model, err)
		}
		if fc.Deposit.IsPositive() {
			if err := engine.SetCarDeposit(ctx, id, owner, fc.Deposit); err != nil {
				return ids, fmt.Errorf("deposit for car %d: %w", id, err)
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SeedEmpty seeds the fleet only when no car was ever listed. It reports
// whether the fleet was seeded.
func SeedEmpty(ctx context.Context, engine *rental.Engine, defaultOwner ledger.Address, fleet []FleetCar) ([]ledger.CarID, bool, error) {
	count, err := engine.CarCount(ctx)
	if err != nil {
		return nil, false, err
	}
	if count > 0 {
		return nil, false, nil
	}
	ids, err := Seed(ctx, engine, defaultOwner, fleet)
	return ids, err == nil, err
}

func hasDeposits(fleet []FleetCar) bool {
	for _, fc := range fleet {
		if fc.Deposit.IsPositive() {
			return true
		}
	}
	return false
}

// =============================================================================
// EXPORT
// =============================================================================

// Export writes the listed cars back as a fleet, with their deposits. An
// empty owner exports every car. The result parses with ParseFleet.
func Export(ctx context.Context, engine *rental.Engine, owner ledger.Address) (FleetJSON, error) {
	var (
		cars []ledger.Car
		err  error
	)
	if owner.IsZero() {
		cars, err = engine.Cars(ctx)
	} else {
		cars, err = engine.CarsByOwner(ctx, owner)
	}
	if err != nil {
		return FleetJSON{}, err
	}
	fj := FleetJSON{Cars: make([]CarJSON, 0, len(cars))}
	for _, car := range cars {
		deposit, err := engine.CarDeposit(ctx, car.ID)
		if err != nil {
			return FleetJSON{}, fmt.Errorf("deposit for car %d: %w", car.ID, err)
		}
		fj.Cars = append(fj.Cars, ToJSON(car, deposit))
	}
	return fj, nil
}
