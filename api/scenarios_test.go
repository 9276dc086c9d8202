package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/config"
	"github.com/warp/rental-engine/ledger"
)

func loadScenario(t *testing.T, s *testServer, id string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	s := newTestServer(t, "")

	list := decodeBody[[]ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios", "", nil))

	require.Len(t, list, 3)
	assert.Equal(t, "basic-rental", list[0].ID)
}

func TestScenario_BasicRental(t *testing.T) {
	s := newTestServer(t, "")

	loadScenario(t, s, "basic-rental")

	p := decodeBody[PlatformDTO](t, s.do(http.MethodGet, "/api/platform", "", nil))
	assert.Equal(t, ledger.Version1, p.Version)
	assert.Equal(t, uint64(2), p.CarCount)
	assert.Equal(t, uint64(1), p.ReservationCount)

	res := decodeBody[ReservationDTO](t, s.do(http.MethodGet, "/api/reservations/1", "", nil))
	assert.Equal(t, DemoRenter.String(), res.Renter)
	assert.Equal(t, "2025-03-02", res.StartDate)
	assert.Equal(t, "0.3", res.TotalPriceEth)

	current := decodeBody[map[string]ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios/current", "", nil))
	assert.Equal(t, "basic-rental", current["scenario"].ID)
}

func TestScenario_UpgradeV2(t *testing.T) {
	s := newTestServer(t, "")

	loadScenario(t, s, "upgrade-v2")

	p := decodeBody[PlatformDTO](t, s.do(http.MethodGet, "/api/platform", "", nil))
	assert.Equal(t, ledger.Version2, p.Version)
	assert.Equal(t, uint8(5), p.PlatformFeePercent)
	assert.Equal(t, "0.005", p.LatePenaltyPerDayEth)
	assert.Equal(t, "0", p.AccumulatedFeesEth)
	// state from version 1 survives the migration
	assert.Equal(t, uint64(2), p.CarCount)
	assert.Equal(t, uint64(1), p.ReservationCount)
	account := decodeBody[AccountDTO](t, s.do(http.MethodGet, "/api/accounts/"+DemoOwner.String(), "", nil))
	assert.Equal(t, "0.3", account.EarningsEth)
}

func TestScenario_LateReturn(t *testing.T) {
	s := newTestServer(t, "")

	// GIVEN: a scenario loaded over existing state
	loadScenario(t, s, "basic-rental")
	loadScenario(t, s, "late-return")

	// THEN: the previous state is gone and one reservation is three days late
	p := decodeBody[PlatformDTO](t, s.do(http.MethodGet, "/api/platform", "", nil))
	assert.Equal(t, uint64(1), p.CarCount)

	overdue := decodeBody[[]OverdueDTO](t, s.do(http.MethodGet, "/api/reservations/overdue", "", nil))
	require.Len(t, overdue, 1)
	assert.Equal(t, int64(3), overdue[0].LateDays)
	assert.Equal(t, "0.05", overdue[0].DepositEth)
	assert.Equal(t, "0.03", overdue[0].PenaltyEth)

	// WHEN: the renter finally returns
	rec := s.do(http.MethodPost, "/api/reservations/1/return", DemoRenter.String(), nil)

	// THEN: the penalty is kept and the rest refunded
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0.02", decodeBody[ReturnResponse](t, rec).RefundEth)
}

func TestScenario_Unknown(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodPost, "/api/scenarios/load", "", `{"scenario_id": "nope"}`)

	assertError(t, rec, http.StatusNotFound, "not_found")
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestOverdueScheduler(t *testing.T) {
	s := newTestServer(t, "")
	sched := s.handler.Overdue
	loadScenario(t, s, "late-return")

	assert.Error(t, sched.Start("every now and then"))
	assert.Nil(t, sched.LastRun())

	overdue, err := sched.Check(context.Background())
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
	run := sched.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, 1, run.Overdue)
	assert.NoError(t, run.Err)

	require.NoError(t, sched.Start(config.DefaultOverdueScan))
	require.NoError(t, sched.Start(config.DefaultOverdueScan))
	sched.Stop()
	sched.Stop()

	// stepped minutes with an explicit start
	require.NoError(t, sched.Start("0 0/15 * * * *"))
	sched.Stop()
}
