// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/rental-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	cars         map[ledger.CarID]ledger.Car
	reservations map[ledger.ReservationID]ledger.Reservation
	counters     ledger.Counters
	earnings     map[ledger.Address]ledger.Amount
	deposits     map[ledger.CarID]ledger.Amount
	escrows      map[ledger.ReservationID]ledger.Escrow
	platform     ledger.Platform
	events       []ledger.Event
	payouts      []ledger.Payout
}

var _ ledger.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() *state {
	return &state{
		cars:         make(map[ledger.CarID]ledger.Car),
		reservations: make(map[ledger.ReservationID]ledger.Reservation),
		earnings:     make(map[ledger.Address]ledger.Amount),
		deposits:     make(map[ledger.CarID]ledger.Amount),
		escrows:      make(map[ledger.ReservationID]ledger.Escrow),
	}
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) Car(_ context.Context, id ledger.CarID) (ledger.Car, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.car(id)
}

func (m *Memory) Cars(_ context.Context, owner ledger.Address) ([]ledger.Car, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listCars(owner), nil
}

func (m *Memory) Reservation(_ context.Context, id ledger.ReservationID) (ledger.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.reservation(id)
}

func (m *Memory) Reservations(_ context.Context, f ledger.ReservationFilter) ([]ledger.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listReservations(f), nil
}

func (m *Memory) Counters(_ context.Context) (ledger.Counters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.counters, nil
}

func (m *Memory) Earnings(_ context.Context, owner ledger.Address) (ledger.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.earnings[owner], nil
}

func (m *Memory) CarDeposit(_ context.Context, id ledger.CarID) (ledger.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.deposits[id], nil
}

func (m *Memory) Escrow(_ context.Context, id ledger.ReservationID) (ledger.Escrow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.st.escrows[id]
	return e, ok, nil
}

func (m *Memory) Platform(_ context.Context) (ledger.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.platform, nil
}

func (m *Memory) Events(_ context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listEvents(f), nil
}

func (m *Memory) Payouts(_ context.Context, to ledger.Address) ([]ledger.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listPayouts(to), nil
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) PutCar(_ context.Context, car ledger.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.cars[car.ID] = car
	return nil
}

func (m *Memory) PutReservation(_ context.Context, r ledger.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.reservations[r.ID] = r
	return nil
}

func (m *Memory) PutCounters(_ context.Context, c ledger.Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.counters = c
	return nil
}

func (m *Memory) PutEarnings(_ context.Context, owner ledger.Address, amount ledger.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.earnings[owner] = amount
	return nil
}

func (m *Memory) PutCarDeposit(_ context.Context, id ledger.CarID, amount ledger.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.deposits[id] = amount
	return nil
}

func (m *Memory) PutEscrow(_ context.Context, e ledger.Escrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.escrows[e.ReservationID] = e
	return nil
}

func (m *Memory) PutPlatform(_ context.Context, p ledger.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.platform = p
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, e ledger.Event) (ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendEvent(e), nil
}

func (m *Memory) AppendPayout(_ context.Context, p ledger.Payout) (ledger.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendPayout(p), nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized
// and readers never observe a half-applied operation.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the parent's state without locking; the parent
// holds the write lock for the lifetime of the view.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Car(_ context.Context, id ledger.CarID) (ledger.Car, error) {
	return tv.parent.st.car(id)
}

func (tv *txMemoryView) Cars(_ context.Context, owner ledger.Address) ([]ledger.Car, error) {
	return tv.parent.st.listCars(owner), nil
}

func (tv *txMemoryView) Reservation(_ context.Context, id ledger.ReservationID) (ledger.Reservation, error) {
	return tv.parent.st.reservation(id)
}

func (tv *txMemoryView) Reservations(_ context.Context, f ledger.ReservationFilter) ([]ledger.Reservation, error) {
	return tv.parent.st.listReservations(f), nil
}

func (tv *txMemoryView) Counters(_ context.Context) (ledger.Counters, error) {
	return tv.parent.st.counters, nil
}

func (tv *txMemoryView) Earnings(_ context.Context, owner ledger.Address) (ledger.Amount, error) {
	return tv.parent.st.earnings[owner], nil
}

func (tv *txMemoryView) CarDeposit(_ context.Context, id ledger.CarID) (ledger.Amount, error) {
	return tv.parent.st.deposits[id], nil
}

func (tv *txMemoryView) Escrow(_ context.Context, id ledger.ReservationID) (ledger.Escrow, bool, error) {
	e, ok := tv.parent.st.escrows[id]
	return e, ok, nil
}

func (tv *txMemoryView) Platform(_ context.Context) (ledger.Platform, error) {
	return tv.parent.st.platform, nil
}

func (tv *txMemoryView) Events(_ context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	return tv.parent.st.listEvents(f), nil
}

func (tv *txMemoryView) Payouts(_ context.Context, to ledger.Address) ([]ledger.Payout, error) {
	return tv.parent.st.listPayouts(to), nil
}

func (tv *txMemoryView) PutCar(_ context.Context, car ledger.Car) error {
	tv.parent.st.cars[car.ID] = car
	return nil
}

func (tv *txMemoryView) PutReservation(_ context.Context, r ledger.Reservation) error {
	tv.parent.st.reservations[r.ID] = r
	return nil
}

func (tv *txMemoryView) PutCounters(_ context.Context, c ledger.Counters) error {
	tv.parent.st.counters = c
	return nil
}

func (tv *txMemoryView) PutEarnings(_ context.Context, owner ledger.Address, amount ledger.Amount) error {
	tv.parent.st.earnings[owner] = amount
	return nil
}

func (tv *txMemoryView) PutCarDeposit(_ context.Context, id ledger.CarID, amount ledger.Amount) error {
	tv.parent.st.deposits[id] = amount
	return nil
}

func (tv *txMemoryView) PutEscrow(_ context.Context, e ledger.Escrow) error {
	tv.parent.st.escrows[e.ReservationID] = e
	return nil
}

func (tv *txMemoryView) PutPlatform(_ context.Context, p ledger.Platform) error {
	tv.parent.st.platform = p
	return nil
}

func (tv *txMemoryView) AppendEvent(_ context.Context, e ledger.Event) (ledger.Event, error) {
	return tv.parent.st.appendEvent(e), nil
}

func (tv *txMemoryView) AppendPayout(_ context.Context, p ledger.Payout) (ledger.Payout, error) {
	return tv.parent.st.appendPayout(p), nil
}

// WithTx inside a transaction joins it.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(tv)
}

func (tv *txMemoryView) Reset(_ context.Context) error {
	tv.parent.st = newState()
	return nil
}

// =============================================================================
// STATE HELPERS (caller holds the lock)
// =============================================================================

func (s *state) car(id ledger.CarID) (ledger.Car, error) {
	c, ok := s.cars[id]
	if !ok {
		return ledger.Car{}, fmt.Errorf("%w: id %d", ledger.ErrCarNotFound, id)
	}
	return c, nil
}

func (s *state) reservation(id ledger.ReservationID) (ledger.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return ledger.Reservation{}, fmt.Errorf("%w: id %d", ledger.ErrReservationNotFound, id)
	}
	return r, nil
}

func (s *state) listCars(owner ledger.Address) []ledger.Car {
	result := []ledger.Car{}
	for _, c := range s.cars {
		if owner == "" || c.Owner == owner {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *state) listReservations(f ledger.ReservationFilter) []ledger.Reservation {
	result := []ledger.Reservation{}
	for _, r := range s.reservations {
		if f.Match(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *state) listEvents(f ledger.EventFilter) []ledger.Event {
	result := []ledger.Event{}
	for _, e := range s.events {
		if !f.Match(e) {
			continue
		}
		result = append(result, e)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result
}

func (s *state) listPayouts(to ledger.Address) []ledger.Payout {
	result := []ledger.Payout{}
	for _, p := range s.payouts {
		if to == "" || p.To == to {
			result = append(result, p)
		}
	}
	return result
}

func (s *state) appendEvent(e ledger.Event) ledger.Event {
	e.Seq = uint64(len(s.events)) + 1
	s.events = append(s.events, e)
	return e
}

func (s *state) appendPayout(p ledger.Payout) ledger.Payout {
	p.Seq = uint64(len(s.payouts)) + 1
	s.payouts = append(s.payouts, p)
	return p
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cars {
		c.cars[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.earnings {
		c.earnings[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.escrows {
		c.escrows[k] = v
	}
	c.counters = s.counters
	c.platform = s.platform
	c.events = append([]ledger.Event{}, s.events...)
	c.payouts = append([]ledger.Payout{}, s.payouts...)
	return c
}
