package inventory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/engine/store"
	"github.com/stayware/pms-engine/inventory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*inventory.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return inventory.NewLedger(mem), mem
}

func seedStandard(t *testing.T, ledger *inventory.Ledger, capacity int) (engine.Date, engine.Date) {
	t.Helper()
	start := engine.NewDate(2024, time.June, 1)
	end := engine.NewDate(2024, time.June, 30)
	require.NoError(t, ledger.Seed(context.Background(), "standard", start, end, capacity))
	return start, end
}

func globalPolicy(t *testing.T, mem *store.Memory, percent int) {
	t.Helper()
	require.NoError(t, mem.SaveOverbookingPolicy(context.Background(), engine.OverbookingPolicy{
		ID:      "p-" + time.Now().Format("150405.000000000"),
		Range:   engine.DateRange{Start: engine.NewDate(2024, time.June, 1), End: engine.NewDate(2024, time.June, 30)},
		Percent: percent,
	}))
}

// =============================================================================
// SEEDING
// =============================================================================

func TestLedger_Seed_CreatesFullRows(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	start, end := seedStandard(t, ledger, 10)

	days, err := mem.ListInventoryDays(ctx, "standard", engine.DateRange{Start: start, End: end})
	require.NoError(t, err)
	assert.Len(t, days, 30)
	for _, day := range days {
		assert.Equal(t, 10, day.Capacity)
		assert.Equal(t, 10, day.Available)
		assert.Equal(t, 0, day.Sold())
	}
}

func TestLedger_Seed_RejectsBadInput(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// Reversed range
	err := ledger.Seed(ctx, "standard",
		engine.NewDate(2024, time.June, 10), engine.NewDate(2024, time.June, 1), 10)
	var rangeErr *engine.InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)

	// Negative capacity
	err = ledger.Seed(ctx, "standard",
		engine.NewDate(2024, time.June, 1), engine.NewDate(2024, time.June, 10), -1)
	assert.True(t, engine.IsClientError(err))
}

func TestLedger_Reseed_ResetsCounters(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	seedStandard(t, ledger, 10)
	require.NoError(t, ledger.Decrement(ctx, "standard", engine.NewDate(2024, time.June, 5), 3))

	seedStandard(t, ledger, 12)
	day, err := mem.GetInventoryDay(ctx, "standard", engine.NewDate(2024, time.June, 5))
	require.NoError(t, err)
	assert.Equal(t, 12, day.Capacity)
	assert.Equal(t, 12, day.Available)
}

// =============================================================================
// CEILING ENFORCEMENT
// =============================================================================

func TestLedger_Decrement_InclusiveCeilingBoundary(t *testing.T) {
	// GIVEN: Capacity 10, a 110% policy (ceiling 11), 9 rooms already sold
	// WHEN: Requesting 2 rooms (landing exactly on the ceiling), then 1 more
	// THEN: The boundary request is accepted; the next is rejected

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	night := engine.NewDate(2024, time.June, 10)

	seedStandard(t, ledger, 10)
	globalPolicy(t, mem, 110)

	require.NoError(t, ledger.Decrement(ctx, "standard", night, 9))

	err := ledger.Decrement(ctx, "standard", night, 2)
	assert.NoError(t, err, "sold+requested == ceiling must be accepted")

	day, err := mem.GetInventoryDay(ctx, "standard", night)
	require.NoError(t, err)
	assert.Equal(t, 11, day.Sold())
	assert.Equal(t, -1, day.Available, "oversold nights go negative")

	err = ledger.Decrement(ctx, "standard", night, 1)
	var availErr *engine.InsufficientAvailabilityError
	require.ErrorAs(t, err, &availErr)
	assert.Equal(t, 11, availErr.Ceiling)
	assert.Equal(t, 11, availErr.Sold)
	assert.True(t, engine.IsConflict(err))
}

func TestLedger_Decrement_DefaultCeilingIsCapacity(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	night := engine.NewDate(2024, time.June, 10)

	seedStandard(t, ledger, 10)

	require.NoError(t, ledger.Decrement(ctx, "standard", night, 10))
	err := ledger.Decrement(ctx, "standard", night, 1)
	assert.True(t, engine.IsConflict(err), "no policy means ceiling == capacity")
}

func TestLedger_Decrement_ConcurrentCallersHoldCeiling(t *testing.T) {
	// GIVEN: Capacity 10, no policy, and 20 single-room decrements racing
	// WHEN: All goroutines hit the same night at once
	// THEN: Exactly 10 succeed; sold lands on the ceiling, never past it

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	night := engine.NewDate(2024, time.June, 10)

	seedStandard(t, ledger, 10)

	const callers = 20
	var (
		wg        sync.WaitGroup
		succeeded int64
		start     = make(chan struct{})
		failures  = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := ledger.Decrement(ctx, "standard", night, 1)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case !engine.IsConflict(err):
				failures <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(failures)

	for err := range failures {
		t.Errorf("unexpected decrement error: %v", err)
	}
	assert.EqualValues(t, 10, succeeded)

	day, err := mem.GetInventoryDay(ctx, "standard", night)
	require.NoError(t, err)
	assert.Equal(t, 10, day.Sold())
	assert.Equal(t, 0, day.Available)
}

func TestLedger_Decrement_UnseededDateFails(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.Decrement(context.Background(), "standard", engine.NewDate(2024, time.June, 10), 1)
	var noRow *engine.NoInventoryRowError
	assert.ErrorAs(t, err, &noRow)
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// PER-STAY CONSUMPTION
// =============================================================================

func TestLedger_ConsumeStay_TakesExactlyTheNights(t *testing.T) {
	// A two-night stay June 1 -> June 3 touches June 1 and 2 only.
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	seedStandard(t, ledger, 10)
	stay := engine.StayRange{
		CheckIn:  engine.NewDate(2024, time.June, 1),
		CheckOut: engine.NewDate(2024, time.June, 3),
	}
	require.NoError(t, ledger.ConsumeStay(ctx, "standard", stay, 1, nil))

	for _, tc := range []struct {
		date string
		sold int
	}{
		{"2024-06-01", 1},
		{"2024-06-02", 1},
		{"2024-06-03", 0},
	} {
		day, err := mem.GetInventoryDay(ctx, "standard", engine.MustParseDate(tc.date))
		require.NoError(t, err)
		assert.Equal(t, tc.sold, day.Sold(), tc.date)
	}
}

func TestLedger_ConsumeStay_AllOrNothing(t *testing.T) {
	// GIVEN: The middle night of a stay is already at capacity
	// WHEN: Consuming the stay
	// THEN: It fails and the first night's decrement is rolled back

	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	seedStandard(t, ledger, 10)
	require.NoError(t, ledger.Decrement(ctx, "standard", engine.NewDate(2024, time.June, 2), 10))

	stay := engine.StayRange{
		CheckIn:  engine.NewDate(2024, time.June, 1),
		CheckOut: engine.NewDate(2024, time.June, 3),
	}
	err := ledger.ConsumeStay(ctx, "standard", stay, 1, nil)
	require.Error(t, err)

	day, err := mem.GetInventoryDay(ctx, "standard", engine.NewDate(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, day.Sold(), "partial consumption must not survive the rollback")
}

func TestLedger_ReleaseStay_ReturnsNights(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	seedStandard(t, ledger, 10)
	stay := engine.StayRange{
		CheckIn:  engine.NewDate(2024, time.June, 1),
		CheckOut: engine.NewDate(2024, time.June, 4),
	}
	require.NoError(t, ledger.ConsumeStay(ctx, "standard", stay, 2, nil))
	require.NoError(t, ledger.ReleaseStay(ctx, "standard", stay, 2))

	for _, night := range stay.Nights() {
		day, err := mem.GetInventoryDay(ctx, "standard", night)
		require.NoError(t, err)
		assert.Equal(t, 0, day.Sold())
	}
}

func TestLedger_Decrement_OverrideBypassesPolicies(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	night := engine.NewDate(2024, time.June, 10)

	seedStandard(t, ledger, 10)
	globalPolicy(t, mem, 100)

	override := 120 // ceiling 12 for this call only
	stay := engine.StayRange{CheckIn: night, CheckOut: night.Next()}
	require.NoError(t, ledger.ConsumeStay(ctx, "standard", stay, 12, &override))

	day, err := mem.GetInventoryDay(ctx, "standard", night)
	require.NoError(t, err)
	assert.Equal(t, 12, day.Sold())
}
