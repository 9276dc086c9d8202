package rental

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/warp/rental-engine/ledger"
)

// =============================================================================
// INITIALIZATION & MIGRATION
// =============================================================================

// UpgradeParams are the version 2 platform settings.
type UpgradeParams struct {
	LatePenaltyPerDay  ledger.Amount
	PlatformFeePercent uint8
}

func (p UpgradeParams) validate() error {
	if p.PlatformFeePercent > ledger.MaxPlatformFeePercent {
		return fmt.Errorf("%w: %d > %d", ledger.ErrInvalidFeePercent, p.PlatformFeePercent, ledger.MaxPlatformFeePercent)
	}
	return nil
}

// Initialize sets up version 1.0.0 with admin as the platform
// administrator. It succeeds once per store.
func (e *Engine) Initialize(ctx context.Context, admin ledger.Address) error {
	err := e.mutate(ctx, "initialize", gateNone, func(t *txn) error {
		if t.platform.Initialized() {
			return fmt.Errorf("%w: version %s", ledger.ErrAlreadyInitialized, t.platform.Version)
		}
		if admin.IsZero() {
			return fmt.Errorf("%w: admin is required", ledger.ErrInvalidInput)
		}
		t.platform = ledger.Platform{Version: ledger.Version1, Admin: admin}
		if err := t.savePlatform(); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventInitialized,
			Account: admin,
			Data:    map[string]string{"version": ledger.Version1},
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"admin": admin, "version": ledger.Version1}).Info("platform initialized")
	return nil
}

// MigrateToV2 switches the platform to 2.0.0. Only the platform record
// changes; cars, reservations and balances are carried over as they are.
func (e *Engine) MigrateToV2(ctx context.Context, caller ledger.Address, params UpgradeParams) error {
	var from string
	err := e.mutate(ctx, "migrate_v2", gateInitialized, func(t *txn) error {
		if caller != t.platform.Admin {
			return fmt.Errorf("%w: %s is not the admin", ledger.ErrNotAuthorized, caller)
		}
		if t.platform.IsV2() {
			return fmt.Errorf("%w: version %s", ledger.ErrAlreadyInitialized, t.platform.Version)
		}
		if err := params.validate(); err != nil {
			return err
		}

		from = t.platform.Version
		t.platform.Version = ledger.Version2
		t.platform.LatePenaltyPerDay = params.LatePenaltyPerDay
		t.platform.PlatformFeePercent = params.PlatformFeePercent
		t.platform.AccumulatedFees = ledger.Zero
		if err := t.savePlatform(); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventUpgraded,
			Account: caller,
			Amount:  params.LatePenaltyPerDay,
			Data: map[string]string{
				"from":                 from,
				"to":                   ledger.Version2,
				"platform_fee_percent": strconv.Itoa(int(params.PlatformFeePercent)),
			},
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"from":                 from,
		"to":                   ledger.Version2,
		"late_penalty_per_day": params.LatePenaltyPerDay,
		"platform_fee_percent": params.PlatformFeePercent,
	}).Info("platform upgraded")
	return nil
}

// UpdatePlatformSettings changes the version 2 settings. Reservations
// already booked keep the fee they were charged.
func (e *Engine) UpdatePlatformSettings(ctx context.Context, caller ledger.Address, params UpgradeParams) error {
	err := e.mutate(ctx, "update_platform_settings", gateV2, func(t *txn) error {
		if caller != t.platform.Admin {
			return fmt.Errorf("%w: %s is not the admin", ledger.ErrNotAuthorized, caller)
		}
		if err := params.validate(); err != nil {
			return err
		}
		t.platform.LatePenaltyPerDay = params.LatePenaltyPerDay
		t.platform.PlatformFeePercent = params.PlatformFeePercent
		if err := t.savePlatform(); err != nil {
			return err
		}
		return t.emit(ledger.Event{
			Type:    ledger.EventPlatformSettingsUpdated,
			Account: caller,
			Amount:  params.LatePenaltyPerDay,
			Data:    map[string]string{"platform_fee_percent": strconv.Itoa(int(params.PlatformFeePercent))},
		})
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"late_penalty_per_day": params.LatePenaltyPerDay,
		"platform_fee_percent": params.PlatformFeePercent,
	}).Info("platform settings updated")
	return nil
}

// Version returns the stored version, "" before Initialize.
func (e *Engine) Version(ctx context.Context) (string, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return "", err
	}
	return p.Version, nil
}

// Settings returns the platform record: version, admin, version 2
// settings and the fee accumulator.
func (e *Engine) Settings(ctx context.Context) (ledger.Platform, error) {
	return e.store.Platform(ctx)
}
