package rates_test

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
	"github.com/stayware/pms-engine/rates"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestResolver(t *testing.T) (*rates.Resolver, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	auth := businessdate.NewAuthority(mem, nil)
	_, err := auth.Set(context.Background(), engine.NewDate(2024, time.June, 1))
	require.NoError(t, err)
	return rates.NewResolver(mem, auth), mem
}

func june(day int) engine.Date { return engine.NewDate(2024, time.June, day) }

func juneRange(from, to int) engine.DateRange {
	return engine.DateRange{Start: june(from), End: june(to)}
}

func mustCreateRate(t *testing.T, r *rates.Resolver, roomType, plan string, rng engine.DateRange, price string) {
	t.Helper()
	require.NoError(t, r.CreateRate(context.Background(), engine.RoomTypeRate{
		RoomTypeID: engine.RoomTypeID(roomType),
		RatePlanID: engine.RatePlanID(plan),
		Range:      rng,
		Price:      engine.MustMoney(price),
	}))
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolver_EffectiveRate(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "standard", "bar", juneRange(1, 10), "100.00")

	price, err := r.EffectiveRate(ctx, "standard", "bar", june(5))
	require.NoError(t, err)
	assert.Equal(t, "100.00", price.String())

	// Uncovered date is a RateNotFoundError, not a crash.
	_, err = r.EffectiveRate(ctx, "standard", "bar", june(11))
	var notFound *engine.RateNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.True(t, engine.IsNotFound(err))
}

func TestResolver_DerivedRate_PercentWithRounding(t *testing.T) {
	// GIVEN: Deluxe priced at 100.00 and suites derived at +32%
	// WHEN: Resolving the suite price
	// THEN: Exactly 132.00, rounded to the minor unit

	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 10), "100.00")
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID:    "deluxe",
		DerivedRoomTypeID: "suite",
		Type:              engine.AdjustmentPercent,
		Value:             decimal.NewFromInt(32),
	}))

	price, err := r.DerivedRate(ctx, "deluxe", "suite", "bar", june(5))
	require.NoError(t, err)
	assert.Equal(t, "132.00", price.String())
}

func TestResolver_DerivedRate_PlanScopedBeatsUnscoped(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 10), "100.00")

	corp := engine.RatePlanID("corp")
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(32),
	}))
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite", RatePlanID: &corp,
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(10),
	}))
	mustCreateRate(t, r, "deluxe", "corp", juneRange(1, 10), "100.00")

	// Corp resolves through its scoped adjustment, bar through the unscoped one.
	price, err := r.DerivedRate(ctx, "deluxe", "suite", "corp", june(5))
	require.NoError(t, err)
	assert.Equal(t, "110.00", price.String())

	price, err = r.DerivedRate(ctx, "deluxe", "suite", "bar", june(5))
	require.NoError(t, err)
	assert.Equal(t, "132.00", price.String())
}

func TestResolver_DerivedRate_MissingAdjustment(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.DerivedRate(context.Background(), "deluxe", "suite", "bar", june(5))
	var adjErr *engine.AdjustmentNotFoundError
	assert.ErrorAs(t, err, &adjErr)
}

// =============================================================================
// WRITE VALIDATION
// =============================================================================

func TestResolver_CreateRate_RejectsOverlap(t *testing.T) {
	r, _ := newTestResolver(t)

	mustCreateRate(t, r, "standard", "bar", juneRange(1, 10), "100.00")

	err := r.CreateRate(context.Background(), engine.RoomTypeRate{
		RoomTypeID: "standard", RatePlanID: "bar",
		Range: juneRange(10, 20), Price: engine.MustMoney("110.00"),
	})
	var overlap *engine.RateOverlapError
	require.ErrorAs(t, err, &overlap)

	// Same dates under another plan are fine.
	mustCreateRate(t, r, "standard", "corp", juneRange(1, 10), "85.00")
	// Adjacent non-overlapping range under the same plan is fine.
	mustCreateRate(t, r, "standard", "bar", juneRange(11, 20), "110.00")
}

func TestResolver_CreateRate_RejectsPastStart(t *testing.T) {
	r, _ := newTestResolver(t)

	err := r.CreateRate(context.Background(), engine.RoomTypeRate{
		RoomTypeID: "standard", RatePlanID: "bar",
		Range: engine.DateRange{Start: engine.NewDate(2024, time.May, 20), End: june(10)},
		Price: engine.MustMoney("100.00"),
	})
	var past *engine.PastDateError
	assert.ErrorAs(t, err, &past)
}

func TestResolver_CreateAdjustment_RejectsChains(t *testing.T) {
	// GIVEN: suite derives from deluxe
	// WHEN: Trying to derive from suite, or to make deluxe derived
	// THEN: Both directions are rejected as chained derivations

	r, _ := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(32),
	}))

	var chained *engine.ChainedDerivationError

	// suite (derived) as a base
	err := r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "suite", DerivedRoomTypeID: "penthouse",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(50),
	})
	assert.ErrorAs(t, err, &chained)

	// deluxe (a base) as a derived type
	err = r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "standard", DerivedRoomTypeID: "deluxe",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(20),
	})
	assert.ErrorAs(t, err, &chained)

	// self-derivation
	err = r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "standard", DerivedRoomTypeID: "standard",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(5),
	})
	assert.ErrorAs(t, err, &chained)
}

// =============================================================================
// BASE RATE UPDATE WITH PROPAGATION
// =============================================================================

func TestResolver_UpdateBaseRate_PropagatesToDerived(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 30), "100.00")
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite",
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(32),
	}))

	require.NoError(t, r.UpdateBaseRateAndPropagate(ctx, "deluxe", "bar", juneRange(10, 20), engine.MustMoney("150.00")))

	// Inside the updated range both prices changed.
	price, err := r.EffectiveRate(ctx, "deluxe", "bar", june(15))
	require.NoError(t, err)
	assert.Equal(t, "150.00", price.String())

	price, err = r.EffectiveRate(ctx, "suite", "bar", june(15))
	require.NoError(t, err)
	assert.Equal(t, "198.00", price.String())

	// Outside the range the original base price survives as remnants.
	price, err = r.EffectiveRate(ctx, "deluxe", "bar", june(5))
	require.NoError(t, err)
	assert.Equal(t, "100.00", price.String())

	price, err = r.EffectiveRate(ctx, "deluxe", "bar", june(25))
	require.NoError(t, err)
	assert.Equal(t, "100.00", price.String())
}

func TestResolver_UpdateBaseRate_SplitKeepsNoOverlap(t *testing.T) {
	// A row strictly containing the update is split into two remnants; the
	// resulting rows must still be pairwise non-overlapping.
	r, mem := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 30), "100.00")
	require.NoError(t, r.UpdateBaseRateAndPropagate(ctx, "deluxe", "bar", juneRange(10, 20), engine.MustMoney("150.00")))

	rows, err := mem.ListRates(ctx, "deluxe", "bar")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			assert.False(t, rows[i].Range.Overlaps(rows[j].Range),
				"rows %s and %s overlap", rows[i].Range, rows[j].Range)
		}
	}
}

func TestResolver_UpdateBaseRate_SkipsOtherPlanAdjustments(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	corp := engine.RatePlanID("corp")
	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 30), "100.00")
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID: "deluxe", DerivedRoomTypeID: "suite", RatePlanID: &corp,
		Type: engine.AdjustmentPercent, Value: decimal.NewFromInt(10),
	}))

	// The adjustment is corp-scoped, so a bar update writes no suite rows.
	require.NoError(t, r.UpdateBaseRateAndPropagate(ctx, "deluxe", "bar", juneRange(1, 30), engine.MustMoney("120.00")))

	_, err := r.EffectiveRate(ctx, "suite", "bar", june(5))
	assert.True(t, engine.IsNotFound(err))
}

// suiteWriteFailStore fails every suite rate write inside a transaction,
// simulating a storage error mid-propagation.
type suiteWriteFailStore struct {
	*store.Memory
}

type failSuiteSaves struct {
	engine.Store
}

func (f failSuiteSaves) SaveRate(ctx context.Context, rate engine.RoomTypeRate) error {
	if rate.RoomTypeID == "suite" {
		return engine.ErrUnavailable
	}
	return f.Store.SaveRate(ctx, rate)
}

func (s *suiteWriteFailStore) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	return s.Memory.WithTx(ctx, func(inner engine.Store) error {
		return fn(failSuiteSaves{Store: inner})
	})
}

func TestResolver_UpdateBaseRate_PropagationFailureRollsBackBase(t *testing.T) {
	// GIVEN: A priced base with a derived type, over a store that fails the
	// derived write after the base rows are already rewritten
	// WHEN: Updating the base rate
	// THEN: Everything rolls back; the base keeps its original row and price

	r, mem := newTestResolver(t)
	ctx := context.Background()

	mustCreateRate(t, r, "deluxe", "bar", juneRange(1, 30), "100.00")
	require.NoError(t, r.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID:    "deluxe",
		DerivedRoomTypeID: "suite",
		Type:              engine.AdjustmentPercent,
		Value:             decimal.NewFromInt(32),
	}))

	failing := rates.NewResolver(&suiteWriteFailStore{Memory: mem}, businessdate.NewAuthority(mem, nil))
	err := failing.UpdateBaseRateAndPropagate(ctx, "deluxe", "bar", juneRange(10, 20), engine.MustMoney("150.00"))
	require.ErrorIs(t, err, engine.ErrUnavailable)

	price, err := r.EffectiveRate(ctx, "deluxe", "bar", june(15))
	require.NoError(t, err)
	assert.Equal(t, "100.00", price.String())

	// No remnant of the trim/split survived the rollback.
	rows, err := mem.ListRates(ctx, "deluxe", "bar")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, juneRange(1, 30), rows[0].Range)

	_, err = r.EffectiveRate(ctx, "suite", "bar", june(15))
	assert.True(t, engine.IsNotFound(err))
}
