/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists the rental state so the server survives restarts. In production
  the same layout maps to PostgreSQL with only dialect differences.

KEY TABLES:
  cars:          listings, keyed by sequential id
  reservations:  time-ranged claims, keyed by sequential id
  counters:      singleton row with the two id counters
  platform:      singleton row with version, admin and version 2 settings
  earnings:      withdrawable balance per owner
  car_deposits:  configured deposit per car (version 2)
  escrows:       deposit state per reservation (version 2)
  events:        append-only notification log (seq AUTOINCREMENT)
  payouts:       append-only outbox of value owed to addresses

AMOUNTS:
  Stored as base-10 TEXT in the smallest unit. Wei-scale values do not fit
  in INTEGER columns.

APPEND-ONLY ENFORCEMENT:
  events and payouts are only ever INSERTed. Reset is the one exception
  and exists for demos and tests.

TRANSACTIONS:
  WithTx wraps fn in a database/sql transaction. Every read and write made
  through the tx store goes through the same *sql.Tx, so reads observe
  earlier writes of the same operation. The pool is limited to one
  connection, which keeps ":memory:" databases shared and makes writers
  strictly sequential.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := rental.New(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/rental-engine/ledger"
)

// querier is the part of *sql.DB and *sql.Tx the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.Store using SQLite.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an already opened database and migrates it.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cars (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		daily_price TEXT NOT NULL,
		active INTEGER NOT NULL,
		metadata_uri TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_cars_owner ON cars(owner);

	CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY,
		car_id INTEGER NOT NULL REFERENCES cars(id),
		renter TEXT NOT NULL,
		start_date INTEGER NOT NULL,
		end_date INTEGER NOT NULL,
		total_price TEXT NOT NULL,
		active INTEGER NOT NULL
	);

	-- Availability checks scan the active reservations of one car
	CREATE INDEX IF NOT EXISTS idx_reservations_car_active
		ON reservations(car_id, active);
	CREATE INDEX IF NOT EXISTS idx_reservations_renter
		ON reservations(renter);

	CREATE TABLE IF NOT EXISTS counters (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		cars INTEGER NOT NULL,
		reservations INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS platform (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version TEXT NOT NULL,
		admin TEXT NOT NULL,
		late_penalty_per_day TEXT NOT NULL,
		platform_fee_percent INTEGER NOT NULL,
		accumulated_fees TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS earnings (
		owner TEXT PRIMARY KEY,
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS car_deposits (
		car_id INTEGER PRIMARY KEY REFERENCES cars(id),
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS escrows (
		reservation_id INTEGER PRIMARY KEY REFERENCES reservations(id),
		amount TEXT NOT NULL,
		platform_fee TEXT NOT NULL,
		refunded INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		at INTEGER NOT NULL,
		car_id INTEGER NOT NULL DEFAULT 0,
		reservation_id INTEGER NOT NULL DEFAULT 0,
		account TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		data_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_car ON events(car_id);
	CREATE INDEX IF NOT EXISTS idx_events_reservation ON events(reservation_id);

	CREATE TABLE IF NOT EXISTS payouts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		to_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL,
		reservation_id INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_to ON payouts(to_address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{conn: conn{q: sqlTx}}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.Reset(ctx)
	})
}

type txStore struct {
	conn
}

// WithTx inside a transaction joins it.
func (ts *txStore) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	return fn(ts)
}

func (ts *txStore) Reset(ctx context.Context) error {
	// Children first: reservations, deposits and escrows reference cars.
	tables := []string{"escrows", "car_deposits", "reservations", "cars", "earnings", "counters", "platform", "events", "payouts"}
	for _, table := range tables {
		if _, err := ts.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	_, err := ts.q.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN ('events', 'payouts')")
	return err
}

// =============================================================================
// CONN - Reader and Writer over a querier
// =============================================================================

// conn carries every read and write. Store uses the database handle;
// txStore uses the open transaction.
type conn struct {
	q querier
}

// =============================================================================
// CARS
// =============================================================================

const carColumns = `id, owner, brand, model, year, daily_price, active, metadata_uri`

func (c conn) Car(ctx context.Context, id ledger.CarID) (ledger.Car, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, int64(id))
	car, err := scanCar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Car{}, fmt.Errorf("%w: id %d", ledger.ErrCarNotFound, id)
	}
	return car, err
}

func (c conn) Cars(ctx context.Context, owner ledger.Address) ([]ledger.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, string(owner))
	}
	query += ` ORDER BY id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cars: %w", err)
	}
	defer rows.Close()

	result := []ledger.Car{}
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, car)
	}
	return result, rows.Err()
}

func (c conn) PutCar(ctx context.Context, car ledger.Car) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO cars (`+carColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			brand = excluded.brand,
			model = excluded.model,
			year = excluded.year,
			daily_price = excluded.daily_price,
			active = excluded.active,
			metadata_uri = excluded.metadata_uri
	`, int64(car.ID), string(car.Owner), car.Brand, car.Model, car.Year,
		car.DailyPrice.String(), car.Active, car.MetadataURI)
	if err != nil {
		return fmt.Errorf("failed to save car %d: %w", car.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCar(s scanner) (ledger.Car, error) {
	var (
		car   ledger.Car
		id    int64
		owner string
		price string
	)
	if err := s.Scan(&id, &owner, &car.Brand, &car.Model, &car.Year, &price, &car.Active, &car.MetadataURI); err != nil {
		return ledger.Car{}, err
	}
	car.ID = ledger.CarID(id)
	car.Owner = ledger.Address(owner)
	var err error
	if car.DailyPrice, err = parseAmount(price); err != nil {
		return ledger.Car{}, err
	}
	return car, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

const reservationColumns = `id, car_id, renter, start_date, end_date, total_price, active`

func (c conn) Reservation(ctx context.Context, id ledger.ReservationID) (ledger.Reservation, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, int64(id))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Reservation{}, fmt.Errorf("%w: id %d", ledger.ErrReservationNotFound, id)
	}
	return r, err
}

func (c conn) Reservations(ctx context.Context, f ledger.ReservationFilter) ([]ledger.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.CarID != 0 {
		where = append(where, "car_id = ?")
		args = append(args, int64(f.CarID))
	}
	if f.Renter != "" {
		where = append(where, "renter = ?")
		args = append(args, string(f.Renter))
	}
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	if f.EndsBefore != 0 {
		where = append(where, "end_date < ?")
		args = append(args, int64(f.EndsBefore))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	result := []ledger.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (c conn) PutReservation(ctx context.Context, r ledger.Reservation) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET active = excluded.active
	`, int64(r.ID), int64(r.CarID), string(r.Renter), int64(r.StartDate), int64(r.EndDate),
		r.TotalPrice.String(), r.Active)
	if err != nil {
		return fmt.Errorf("failed to save reservation %d: %w", r.ID, err)
	}
	return nil
}

func scanReservation(s scanner) (ledger.Reservation, error) {
	var (
		r                 ledger.Reservation
		id, carID         int64
		renter, price     string
		startDate, endDay int64
	)
	if err := s.Scan(&id, &carID, &renter, &startDate, &endDay, &price, &r.Active); err != nil {
		return ledger.Reservation{}, err
	}
	r.ID = ledger.ReservationID(id)
	r.CarID = ledger.CarID(carID)
	r.Renter = ledger.Address(renter)
	r.StartDate = ledger.Timestamp(startDate)
	r.EndDate = ledger.Timestamp(endDay)
	var err error
	if r.TotalPrice, err = parseAmount(price); err != nil {
		return ledger.Reservation{}, err
	}
	return r, nil
}

// =============================================================================
// SINGLETONS - counters, platform
// =============================================================================

func (c conn) Counters(ctx context.Context) (ledger.Counters, error) {
	var cars, reservations int64
	err := c.q.QueryRowContext(ctx, `SELECT cars, reservations FROM counters WHERE id = 1`).Scan(&cars, &reservations)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Counters{}, nil
	}
	if err != nil {
		return ledger.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}
	return ledger.Counters{Cars: uint64(cars), Reservations: uint64(reservations)}, nil
}

func (c conn) PutCounters(ctx context.Context, ctr ledger.Counters) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO counters (id, cars, reservations) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET cars = excluded.cars, reservations = excluded.reservations
	`, int64(ctr.Cars), int64(ctr.Reservations))
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}

func (c conn) Platform(ctx context.Context) (ledger.Platform, error) {
	var (
		p                    ledger.Platform
		admin, penalty, fees string
		feePercent           int64
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT version, admin, late_penalty_per_day, platform_fee_percent, accumulated_fees
		FROM platform WHERE id = 1
	`).Scan(&p.Version, &admin, &penalty, &feePercent, &fees)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Platform{}, nil
	}
	if err != nil {
		return ledger.Platform{}, fmt.Errorf("failed to load platform: %w", err)
	}
	p.Admin = ledger.Address(admin)
	p.PlatformFeePercent = uint8(feePercent)
	if p.LatePenaltyPerDay, err = parseAmount(penalty); err != nil {
		return ledger.Platform{}, err
	}
	if p.AccumulatedFees, err = parseAmount(fees); err != nil {
		return ledger.Platform{}, err
	}
	return p, nil
}

func (c conn) PutPlatform(ctx context.Context, p ledger.Platform) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO platform (id, version, admin, late_penalty_per_day, platform_fee_percent, accumulated_fees)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			admin = excluded.admin,
			late_penalty_per_day = excluded.late_penalty_per_day,
			platform_fee_percent = excluded.platform_fee_percent,
			accumulated_fees = excluded.accumulated_fees
	`, p.Version, string(p.Admin), p.LatePenaltyPerDay.String(), int64(p.PlatformFeePercent), p.AccumulatedFees.String())
	if err != nil {
		return fmt.Errorf("failed to save platform: %w", err)
	}
	return nil
}

// =============================================================================
// BALANCES - earnings, deposits, escrows
// =============================================================================

func (c conn) Earnings(ctx context.Context, owner ledger.Address) (ledger.Amount, error) {
	return c.amount(ctx, `SELECT amount FROM earnings WHERE owner = ?`, string(owner))
}

func (c conn) PutEarnings(ctx context.Context, owner ledger.Address, amount ledger.Amount) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO earnings (owner, amount) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET amount = excluded.amount
	`, string(owner), amount.String())
	if err != nil {
		return fmt.Errorf("failed to save earnings of %s: %w", owner, err)
	}
	return nil
}

func (c conn) CarDeposit(ctx context.Context, id ledger.CarID) (ledger.Amount, error) {
	return c.amount(ctx, `SELECT amount FROM car_deposits WHERE car_id = ?`, int64(id))
}

func (c conn) PutCarDeposit(ctx context.Context, id ledger.CarID, amount ledger.Amount) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO car_deposits (car_id, amount) VALUES (?, ?)
		ON CONFLICT(car_id) DO UPDATE SET amount = excluded.amount
	`, int64(id), amount.String())
	if err != nil {
		return fmt.Errorf("failed to save deposit of car %d: %w", id, err)
	}
	return nil
}

// amount reads a single TEXT amount; a missing row is zero.
func (c conn) amount(ctx context.Context, query string, args ...any) (ledger.Amount, error) {
	var raw string
	err := c.q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Zero, nil
	}
	if err != nil {
		return ledger.Zero, err
	}
	return parseAmount(raw)
}

func (c conn) Escrow(ctx context.Context, id ledger.ReservationID) (ledger.Escrow, bool, error) {
	var amount, fee string
	e := ledger.Escrow{ReservationID: id}
	err := c.q.QueryRowContext(ctx, `
		SELECT amount, platform_fee, refunded FROM escrows WHERE reservation_id = ?
	`, int64(id)).Scan(&amount, &fee, &e.Refunded)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Escrow{}, false, nil
	}
	if err != nil {
		return ledger.Escrow{}, false, fmt.Errorf("failed to load escrow %d: %w", id, err)
	}
	if e.Amount, err = parseAmount(amount); err != nil {
		return ledger.Escrow{}, false, err
	}
	if e.PlatformFee, err = parseAmount(fee); err != nil {
		return ledger.Escrow{}, false, err
	}
	return e, true, nil
}

func (c conn) PutEscrow(ctx context.Context, e ledger.Escrow) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO escrows (reservation_id, amount, platform_fee, refunded) VALUES (?, ?, ?, ?)
		ON CONFLICT(reservation_id) DO UPDATE SET refunded = excluded.refunded
	`, int64(e.ReservationID), e.Amount.String(), e.PlatformFee.String(), e.Refunded)
	if err != nil {
		return fmt.Errorf("failed to save escrow %d: %w", e.ReservationID, err)
	}
	return nil
}

// =============================================================================
// LOGS - events, payouts
// =============================================================================

func (c conn) AppendEvent(ctx context.Context, e ledger.Event) (ledger.Event, error) {
	var data sql.NullString
	if len(e.Data) > 0 {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return ledger.Event{}, fmt.Errorf("failed to encode event data: %w", err)
		}
		data = nullString(string(raw))
	}

	res, err := c.q.ExecContext(ctx, `
		INSERT INTO events (id, type, at, car_id, reservation_id, account, amount, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Type), int64(e.At), int64(e.CarID), int64(e.ReservationID),
		string(e.Account), e.Amount.String(), data)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Event{}, fmt.Errorf("%w: duplicate event id %s", ledger.ErrInvalidInput, e.ID)
		}
		return ledger.Event{}, fmt.Errorf("failed to append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.Event{}, err
	}
	e.Seq = uint64(seq)
	return e, nil
}

func (c conn) Events(ctx context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	where := []string{"seq > ?"}
	args := []any{int64(f.AfterSeq)}
	if f.CarID != 0 {
		where = append(where, "car_id = ?")
		args = append(args, int64(f.CarID))
	}
	if f.ReservationID != 0 {
		where = append(where, "reservation_id = ?")
		args = append(args, int64(f.ReservationID))
	}
	if f.Account != "" {
		where = append(where, "account = ?")
		args = append(args, string(f.Account))
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT seq, id, type, at, car_id, reservation_id, account, amount, data_json
		FROM events WHERE ` + strings.Join(where, " AND ") + ` ORDER BY seq`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	result := []ledger.Event{}
	for rows.Next() {
		var (
			e                     ledger.Event
			seq, at, carID, resID int64
			typ, account, amount  string
			data                  sql.NullString
		)
		if err := rows.Scan(&seq, &e.ID, &typ, &at, &carID, &resID, &account, &amount, &data); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Type = ledger.EventType(typ)
		e.At = ledger.Timestamp(at)
		e.CarID = ledger.CarID(carID)
		e.ReservationID = ledger.ReservationID(resID)
		e.Account = ledger.Address(account)
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event %d data: %w", seq, err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (c conn) AppendPayout(ctx context.Context, p ledger.Payout) (ledger.Payout, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO payouts (id, to_address, amount, reason, reservation_id, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, string(p.To), p.Amount.String(), string(p.Reason), int64(p.ReservationID), int64(p.At))
	if err != nil {
		return ledger.Payout{}, fmt.Errorf("failed to append payout: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.Payout{}, err
	}
	p.Seq = uint64(seq)
	return p, nil
}

func (c conn) Payouts(ctx context.Context, to ledger.Address) ([]ledger.Payout, error) {
	query := `SELECT seq, id, to_address, amount, reason, reservation_id, at FROM payouts`
	var args []any
	if to != "" {
		query += ` WHERE to_address = ?`
		args = append(args, string(to))
	}
	query += ` ORDER BY seq`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	result := []ledger.Payout{}
	for rows.Next() {
		var (
			p                 ledger.Payout
			seq, resID, at    int64
			addr, amt, reason string
		)
		if err := rows.Scan(&seq, &p.ID, &addr, &amt, &reason, &resID, &at); err != nil {
			return nil, err
		}
		p.Seq = uint64(seq)
		p.To = ledger.Address(addr)
		p.Reason = ledger.PayoutReason(reason)
		p.ReservationID = ledger.ReservationID(resID)
		p.At = ledger.Timestamp(at)
		if p.Amount, err = parseAmount(amt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string) (ledger.Amount, error) {
	a, err := ledger.ParseAmount(value)
	if err != nil {
		return ledger.Zero, fmt.Errorf("corrupt amount column %q: %w", value, err)
	}
	return a, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
