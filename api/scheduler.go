/*
scheduler.go - Overdue reservation sweep

PURPOSE:
  Periodically lists active reservations whose end date has passed and
  logs each with its late days and the penalty a deposit return would
  settle right now. Nothing is mutated: returns stay with the renter.

DESIGN:
  - robfig/cron with seconds precision, UTC
  - One job, registered from config.Scheduler.OverdueScan
  - Check() runs the same sweep synchronously; it backs
    GET /api/reservations/overdue
  - Each run records when it ran and how many reservations were late

USAGE:
  s := NewOverdueScheduler(engine, log)
  if err := s.Start("0 0/15 * * * *"); err != nil { ... }
  defer s.Stop()

SEE ALSO:
  - rental/overdue.go: the read-only sweep
  - config/config.go: SchedulerConfig
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/rental-engine/rental"
)

// OverdueRun summarizes one sweep.
type OverdueRun struct {
	At      time.Time
	Overdue int
	Err     error
}

// OverdueScheduler runs the overdue sweep on a cron schedule.
type OverdueScheduler struct {
	engine *rental.Engine
	log    *logrus.Entry

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun *OverdueRun
}

func NewOverdueScheduler(engine *rental.Engine, log *logrus.Entry) *OverdueScheduler {
	return &OverdueScheduler{
		engine: engine,
		log:    log.WithField("job", "overdue_scan"),
	}
}

// Start registers the sweep under spec and starts the cron. Starting an
// already running scheduler is a no-op.
func (s *OverdueScheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("failed to register overdue scan %q: %w", spec, err)
	}
	c.Start()
	s.cron = c

	s.log.WithField("schedule", spec).Info("scheduler started")
	return nil
}

// Stop stops the cron and waits for a running sweep to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Check runs one sweep now and returns the late reservations.
func (s *OverdueScheduler) Check(ctx context.Context) ([]rental.Overdue, error) {
	overdue, err := s.engine.Overdue(ctx)

	s.mu.Lock()
	s.lastRun = &OverdueRun{At: time.Now().UTC(), Overdue: len(overdue), Err: err}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, o := range overdue {
		s.log.WithFields(logrus.Fields{
			"reservation_id": o.Reservation.ID,
			"car_id":         o.Reservation.CarID,
			"renter":         o.Reservation.Renter,
			"late_days":      o.LateDays,
			"deposit":        o.Deposit.Ether(),
			"penalty":        o.Penalty.Ether(),
		}).Warn("reservation overdue")
	}
	return overdue, nil
}

// LastRun returns the most recent sweep, or nil before the first one.
func (s *OverdueScheduler) LastRun() *OverdueRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}

func (s *OverdueScheduler) run() {
	overdue, err := s.Check(context.Background())
	if err != nil {
		s.log.WithError(err).Error("overdue scan failed")
		return
	}
	s.log.WithField("overdue", len(overdue)).Info("overdue scan complete")
}
