package nightaudit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/pms-engine/businessdate"
	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/engine/store"
	"github.com/stayware/pms-engine/inventory"
	"github.com/stayware/pms-engine/nightaudit"
	"github.com/stayware/pms-engine/rates"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func june(day int) engine.Date { return engine.NewDate(2024, time.June, day) }

type fixture struct {
	mem   *store.Memory
	auth  *businessdate.Authority
	audit *nightaudit.Orchestrator
}

// newFixture builds a small property audited on June 10: deluxe rooms priced
// directly, suites derived from deluxe at +32%, two in-house stays with rooms
// assigned.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	auth := businessdate.NewAuthority(mem, nil)
	_, err := auth.Set(ctx, june(10))
	require.NoError(t, err)

	require.NoError(t, mem.SaveRoomType(ctx, engine.RoomType{ID: "deluxe", Name: "Deluxe", TotalRooms: 20}))
	require.NoError(t, mem.SaveRoomType(ctx, engine.RoomType{ID: "suite", Name: "Suite", TotalRooms: 8}))

	ledger := inventory.NewLedger(mem)
	require.NoError(t, ledger.Seed(ctx, "deluxe", june(1), june(30), 20))
	require.NoError(t, ledger.Seed(ctx, "suite", june(1), june(30), 8))

	resolver := rates.NewResolver(mem, auth)
	require.NoError(t, resolver.CreateRate(ctx, engine.RoomTypeRate{
		RoomTypeID: "deluxe", RatePlanID: "bar",
		Range: engine.DateRange{Start: june(10), End: june(30)},
		Price: engine.MustMoney("140.00"),
	}))
	require.NoError(t, resolver.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(32),
	}))

	saveInHouseStay(t, mem, "stay-deluxe", "deluxe", "bar", 2, "204")
	saveInHouseStay(t, mem, "stay-suite", "suite", "bar", 1, "512")

	return fixture{mem: mem, auth: auth, audit: nightaudit.NewOrchestrator(mem, nil)}
}

func saveInHouseStay(t *testing.T, mem *store.Memory, id, roomType, plan string, rooms int, roomNumber string) {
	t.Helper()
	require.NoError(t, mem.SaveStay(context.Background(), engine.Stay{
		ID:         engine.StayID(id),
		RoomTypeID: engine.RoomTypeID(roomType),
		RatePlanID: engine.RatePlanID(plan),
		Range:      engine.StayRange{CheckIn: june(9), CheckOut: june(12)},
		Rooms:      rooms,
		Status:     engine.StayInHouse,
		RoomNumber: roomNumber,
		FolioID:    "folio-" + id,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}))
}

// =============================================================================
// FULL RUN
// =============================================================================

func TestOrchestrator_Run_PostsAggregatesAndAdvances(t *testing.T) {
	// GIVEN: Two in-house stays, one direct-priced and one derived
	// WHEN: Running the audit for the current business date
	// THEN: Both nights are charged, revenue is aggregated, the date advances

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.audit.Run(ctx, june(10))
	require.NoError(t, err)

	assert.Equal(t, engine.AuditDateAdvanced, res.Run.State)
	assert.NotNil(t, res.Run.CompletedAt)
	assert.Equal(t, 2, res.ChargesPosted)
	assert.Empty(t, res.Discrepancies)
	assert.Equal(t, "2024-06-11", res.NewBusinessDate.String())

	// Deluxe: 140.00 x 2 rooms. Suite: 140.00 + 32% = 184.80 x 1 room.
	require.NotNil(t, res.Revenue)
	assert.Equal(t, "464.80", res.Revenue.Total.String())
	assert.Equal(t, 2, res.Revenue.RoomNights)
	assert.Equal(t, "280.00", res.Revenue.ByRoomType["deluxe"].String())
	assert.Equal(t, "184.80", res.Revenue.ByRoomType["suite"].String())
	assert.Equal(t, "464.80", res.Revenue.ByRatePlan["bar"].String())

	// The authority reflects the advance.
	current, err := f.auth.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-11", current.String())

	// Both the run and the summary are persisted.
	run, err := f.mem.GetAuditRun(ctx, june(10))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, run.Completed())

	summary, err := f.mem.GetRevenueSummary(ctx, june(10))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "464.80", summary.Total.String())
}

func TestOrchestrator_Run_RejectsSecondRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.audit.Run(ctx, june(10))
	require.NoError(t, err)

	_, err = f.audit.Run(ctx, june(10))
	var already *engine.AlreadyAuditedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, june(10), already.BusinessDate)
	assert.True(t, engine.IsConflict(err))
}

func TestOrchestrator_Run_RejectsWrongDate(t *testing.T) {
	// The business date is June 10; auditing June 12 must not touch anything.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.audit.Run(ctx, june(12))
	var mismatch *engine.BusinessDateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, june(12), mismatch.Requested)
	assert.Equal(t, june(10), mismatch.Current)

	// Nothing was posted and the date did not move.
	charges, err := f.mem.ListChargesByDate(ctx, june(12))
	require.NoError(t, err)
	assert.Empty(t, charges)

	current, err := f.auth.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, june(10), current)

	// The failure is on record for the report, without completing the run.
	run, err := f.mem.GetAuditRun(ctx, june(12))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.False(t, run.Completed())
	assert.NotEmpty(t, run.Error)
}

// staleRunStore feigns one stale advisory read of the run record: the state a
// caller sees when another audit completes between its guard and its
// transaction. Everything inside WithTx still reads the committed truth.
type staleRunStore struct {
	*store.Memory
	stale bool
}

func (s *staleRunStore) GetAuditRun(ctx context.Context, d engine.Date) (*engine.NightAuditRun, error) {
	if !s.stale {
		s.stale = true
		return nil, nil
	}
	return s.Memory.GetAuditRun(ctx, d)
}

func TestOrchestrator_Run_LateLoserKeepsCompletedRecord(t *testing.T) {
	// GIVEN: June 10 fully audited, and a second caller whose advisory guard
	// read happened before that completion landed
	// WHEN: The late caller runs the same date
	// THEN: It gets AlreadyAudited and the completed record survives intact

	f := newFixture(t)
	ctx := context.Background()

	winner, err := f.audit.Run(ctx, june(10))
	require.NoError(t, err)

	late := nightaudit.NewOrchestrator(&staleRunStore{Memory: f.mem}, nil)
	_, err = late.Run(ctx, june(10))
	var already *engine.AlreadyAuditedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, june(10), already.BusinessDate)

	run, err := f.mem.GetAuditRun(ctx, june(10))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, run.Completed(), "the loser must not clobber the completed record")
	assert.Empty(t, run.Error)
	assert.Equal(t, winner.Run.ID, run.ID)

	// The guard stays armed for any further attempt.
	_, err = f.audit.Run(ctx, june(10))
	assert.ErrorAs(t, err, &already)
}

func TestOrchestrator_Run_MissingRateBecomesDiscrepancy(t *testing.T) {
	// GIVEN: An in-house stay whose plan prices no date at all
	// WHEN: Running the audit
	// THEN: It completes; the stay gets no charge and one missing_charge finding

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mem.SaveRoomType(ctx, engine.RoomType{ID: "cabana", Name: "Cabana", TotalRooms: 4}))
	require.NoError(t, inventory.NewLedger(f.mem).Seed(ctx, "cabana", june(1), june(30), 4))
	saveInHouseStay(t, f.mem, "stay-cabana", "cabana", "bar", 1, "C1")

	res, err := f.audit.Run(ctx, june(10))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChargesPosted, "only the priced stays are charged")

	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, engine.DiscrepancyMissingCharge, res.Discrepancies[0].Kind)
	assert.Equal(t, engine.StayID("stay-cabana"), res.Discrepancies[0].StayID)

	exists, err := f.mem.ChargeExists(ctx, "stay-cabana", june(10))
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// INDIVIDUAL STEPS
// =============================================================================

func TestOrchestrator_PostDailyRoomCharges_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	posted, err := f.audit.PostDailyRoomCharges(ctx, june(10))
	require.NoError(t, err)
	assert.Equal(t, 2, posted)

	// Re-posting the same night charges nothing twice.
	posted, err = f.audit.PostDailyRoomCharges(ctx, june(10))
	require.NoError(t, err)
	assert.Equal(t, 0, posted)

	charges, err := f.mem.ListChargesByDate(ctx, june(10))
	require.NoError(t, err)
	assert.Len(t, charges, 2)
}

func TestOrchestrator_GenerateDailyRevenueReport_Replaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.audit.PostDailyRoomCharges(ctx, june(10))
	require.NoError(t, err)

	first, err := f.audit.GenerateDailyRevenueReport(ctx, june(10))
	require.NoError(t, err)
	second, err := f.audit.GenerateDailyRevenueReport(ctx, june(10))
	require.NoError(t, err)

	assert.True(t, first.Total.Equal(second.Total), "recomputation must not drift")
	assert.Equal(t, first.RoomNights, second.RoomNights)
}

func TestOrchestrator_FlagDiscrepancies_NoRoomAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saveInHouseStay(t, f.mem, "stay-roomless", "deluxe", "bar", 1, "")
	_, err := f.audit.PostDailyRoomCharges(ctx, june(10))
	require.NoError(t, err)

	findings, err := f.audit.FlagDiscrepancies(ctx, june(10))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, engine.DiscrepancyNoRoomAssigned, findings[0].Kind)
	assert.Equal(t, engine.StayID("stay-roomless"), findings[0].StayID)
}

func TestOrchestrator_FlagDiscrepancies_OverCeiling(t *testing.T) {
	// GIVEN: A deluxe night sold to 22 against capacity 20 with no policy
	// WHEN: Flagging
	// THEN: One over_ceiling finding for the type

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mem.UpsertInventoryDay(ctx, engine.InventoryDay{
		RoomTypeID: "deluxe",
		Date:       june(10),
		Capacity:   20,
		Available:  -2,
	}))
	_, err := f.audit.PostDailyRoomCharges(ctx, june(10))
	require.NoError(t, err)

	findings, err := f.audit.FlagDiscrepancies(ctx, june(10))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, engine.DiscrepancyOverCeiling, findings[0].Kind)
	assert.Equal(t, engine.RoomTypeID("deluxe"), findings[0].RoomTypeID)
}

func TestOrchestrator_Run_ConsecutiveNights(t *testing.T) {
	// Auditing June 10 then June 11 charges the stays once per night.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.audit.Run(ctx, june(10))
	require.NoError(t, err)
	res, err := f.audit.Run(ctx, june(11))
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChargesPosted)
	assert.Equal(t, "2024-06-12", res.NewBusinessDate.String())

	for _, stayID := range []engine.StayID{"stay-deluxe", "stay-suite"} {
		for _, night := range []engine.Date{june(10), june(11)} {
			exists, err := f.mem.ChargeExists(ctx, stayID, night)
			require.NoError(t, err)
			assert.True(t, exists, "%s on %s", stayID, night)
		}
	}
}
