/*
Package rates resolves the price owed for a room-night.

PURPOSE:
  Prices come from layered rate rows: a room type either carries direct
  RoomTypeRate rows per (plan, date range), or derives its price from a base
  type's resolved price plus a RateAdjustment. Base-rate changes propagate to
  every derived type atomically.

INVARIANTS:
  1. No two rate rows for one (room type, plan) overlap. Enforced on every
     write, never assumed of storage.
  2. Derivations are single-level. A derived type can never be a base.
  3. Derived prices round to the minor unit, half-up.

RANGE REPLACEMENT:
  UpdateBaseRateAndPropagate replaces the covered span deterministically:
  rows fully inside the new range are deleted; rows overlapping an edge are
  trimmed to end/start beside it; a row strictly containing the new range is
  split into two remnants. Remnant prices are unchanged.

SEE ALSO:
  - engine/types.go: RoomTypeRate, RateAdjustment
  - nightaudit: Prices every in-house stay-night through this resolver
*/
package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stayware/pms-engine/engine"
)

// BusinessDateSource supplies the current business date for the
// not-past-date guard on rate writes.
type BusinessDateSource interface {
	Get(ctx context.Context) (engine.Date, error)
}

// Resolver is the rate resolution engine.
type Resolver struct {
	store engine.TxStore
	dates BusinessDateSource
}

func NewResolver(store engine.TxStore, dates BusinessDateSource) *Resolver {
	return &Resolver{store: store, dates: dates}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// EffectiveRate returns the price of the rate row covering the date.
// A *RateNotFoundError is a normal outcome: not every plan covers every date.
func (r *Resolver) EffectiveRate(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (engine.Money, error) {
	return EffectiveRateIn(ctx, r.store, roomTypeID, planID, date)
}

// EffectiveRateIn resolves against s, for callers inside a transaction.
func EffectiveRateIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (engine.Money, error) {
	rate, err := s.FindRate(ctx, roomTypeID, planID, date)
	if err != nil {
		return engine.Money{}, err
	}
	if rate == nil {
		return engine.Money{}, &engine.RateNotFoundError{RoomTypeID: roomTypeID, RatePlanID: planID, Date: date}
	}
	return rate.Price, nil
}

// DerivedRate resolves the derived type's price: find the (base, derived)
// adjustment (plan-scoped first, falling back to unscoped), resolve the base
// price, apply the adjustment, round half-up to the minor unit.
func (r *Resolver) DerivedRate(ctx context.Context, baseRoomTypeID, derivedRoomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (engine.Money, error) {
	return DerivedRateIn(ctx, r.store, baseRoomTypeID, derivedRoomTypeID, planID, date)
}

// DerivedRateIn resolves against s, for callers inside a transaction.
func DerivedRateIn(ctx context.Context, s engine.Store, baseRoomTypeID, derivedRoomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (engine.Money, error) {
	adj, err := findAdjustment(ctx, s, baseRoomTypeID, derivedRoomTypeID, planID)
	if err != nil {
		return engine.Money{}, err
	}
	base, err := EffectiveRateIn(ctx, s, baseRoomTypeID, planID, date)
	if err != nil {
		return engine.Money{}, err
	}
	return adj.Apply(base), nil
}

// findAdjustment prefers a plan-scoped adjustment for the pair and falls back
// to an unscoped one.
func findAdjustment(ctx context.Context, s engine.Store, base, derived engine.RoomTypeID, planID engine.RatePlanID) (*engine.RateAdjustment, error) {
	adjs, err := s.ListAdjustmentsByBase(ctx, base)
	if err != nil {
		return nil, err
	}
	var unscoped *engine.RateAdjustment
	for i := range adjs {
		a := adjs[i]
		if a.DerivedRoomTypeID != derived {
			continue
		}
		if a.RatePlanID != nil && *a.RatePlanID == planID {
			return &a, nil
		}
		if a.RatePlanID == nil && unscoped == nil {
			unscoped = &a
		}
	}
	if unscoped != nil {
		return unscoped, nil
	}
	return nil, &engine.AdjustmentNotFoundError{BaseRoomTypeID: base, DerivedRoomTypeID: derived}
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// CreateRatePlan registers a named pricing policy.
func (r *Resolver) CreateRatePlan(ctx context.Context, plan engine.RatePlan) error {
	if plan.ID == "" {
		return fmt.Errorf("%w: rate plan id required", engine.ErrInvalidInput)
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	return r.store.WithTx(ctx, func(s engine.Store) error {
		return s.SaveRatePlan(ctx, plan)
	})
}

// CreateRate writes a new rate row after validating the range, the
// not-past-date guard, and the no-overlap invariant.
func (r *Resolver) CreateRate(ctx context.Context, rate engine.RoomTypeRate) error {
	if !rate.Range.Valid() {
		return &engine.InvalidRangeError{Start: rate.Range.Start, End: rate.Range.End}
	}
	if rate.Price.IsNegative() {
		return fmt.Errorf("%w: negative price", engine.ErrInvalidInput)
	}
	current, err := r.dates.Get(ctx)
	if err != nil {
		return err
	}
	if err := engine.AssertNotPastDate(current, rate.Range.Start); err != nil {
		return err
	}
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}
	return r.store.WithTx(ctx, func(s engine.Store) error {
		existing, err := s.ListRates(ctx, rate.RoomTypeID, rate.RatePlanID)
		if err != nil {
			return err
		}
		for _, row := range existing {
			if row.ID != rate.ID && row.Range.Overlaps(rate.Range) {
				return &engine.RateOverlapError{
					RoomTypeID: rate.RoomTypeID,
					RatePlanID: rate.RatePlanID,
					Existing:   row.Range,
					Incoming:   rate.Range,
				}
			}
		}
		return s.SaveRate(ctx, rate)
	})
}

// CreateAdjustment registers a (base, derived) derivation. Chained
// derivations are rejected at creation: the base must not itself be derived,
// and the derived type must not already act as a base.
func (r *Resolver) CreateAdjustment(ctx context.Context, adj engine.RateAdjustment) error {
	if adj.BaseRoomTypeID == adj.DerivedRoomTypeID {
		return &engine.ChainedDerivationError{BaseRoomTypeID: adj.BaseRoomTypeID, DerivedRoomTypeID: adj.DerivedRoomTypeID}
	}
	if adj.Type != engine.AdjustmentAmount && adj.Type != engine.AdjustmentPercent {
		return fmt.Errorf("%w: unknown adjustment type %q", engine.ErrInvalidInput, adj.Type)
	}
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}
	return r.store.WithTx(ctx, func(s engine.Store) error {
		baseDerivations, err := s.ListAdjustmentsByDerived(ctx, adj.BaseRoomTypeID)
		if err != nil {
			return err
		}
		if len(baseDerivations) > 0 {
			return &engine.ChainedDerivationError{BaseRoomTypeID: adj.BaseRoomTypeID, DerivedRoomTypeID: adj.DerivedRoomTypeID}
		}
		derivedBases, err := s.ListAdjustmentsByBase(ctx, adj.DerivedRoomTypeID)
		if err != nil {
			return err
		}
		if len(derivedBases) > 0 {
			return &engine.ChainedDerivationError{BaseRoomTypeID: adj.BaseRoomTypeID, DerivedRoomTypeID: adj.DerivedRoomTypeID}
		}
		return s.SaveAdjustment(ctx, adj)
	})
}

// =============================================================================
// BASE RATE UPDATE WITH PROPAGATION
// =============================================================================

// UpdateBaseRateAndPropagate replaces the base type's rate for the range and
// rewrites every derived type's rate for the same range and plan, all inside
// one transaction. If any derived write fails, the base update rolls back.
func (r *Resolver) UpdateBaseRateAndPropagate(ctx context.Context, baseRoomTypeID engine.RoomTypeID, planID engine.RatePlanID, rng engine.DateRange, newPrice engine.Money) error {
	if !rng.Valid() {
		return &engine.InvalidRangeError{Start: rng.Start, End: rng.End}
	}
	if newPrice.IsNegative() {
		return fmt.Errorf("%w: negative price", engine.ErrInvalidInput)
	}
	current, err := r.dates.Get(ctx)
	if err != nil {
		return err
	}
	if err := engine.AssertNotPastDate(current, rng.Start); err != nil {
		return err
	}

	return r.store.WithTx(ctx, func(s engine.Store) error {
		if err := replaceRange(ctx, s, baseRoomTypeID, planID, rng, newPrice); err != nil {
			return err
		}

		adjs, err := s.ListAdjustmentsByBase(ctx, baseRoomTypeID)
		if err != nil {
			return err
		}
		for _, adj := range adjs {
			if adj.RatePlanID != nil && *adj.RatePlanID != planID {
				continue
			}
			derivedPrice := adj.Apply(newPrice)
			if err := replaceRange(ctx, s, adj.DerivedRoomTypeID, planID, rng, derivedPrice); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceRange makes [rng] exclusively priced at price for (roomTypeID,
// planID), trimming or splitting any overlapping rows so the no-overlap
// invariant holds afterwards.
func replaceRange(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, rng engine.DateRange, price engine.Money) error {
	existing, err := s.ListRates(ctx, roomTypeID, planID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, row := range existing {
		if !row.Range.Overlaps(rng) {
			continue
		}

		coversLeft := row.Range.Start.Before(rng.Start)
		coversRight := row.Range.End.After(rng.End)

		if err := s.DeleteRate(ctx, row.ID); err != nil {
			return err
		}
		if coversLeft {
			left := row
			left.ID = uuid.NewString()
			left.Range = engine.DateRange{Start: row.Range.Start, End: rng.Start.AddDays(-1)}
			left.CreatedAt = now
			if err := s.SaveRate(ctx, left); err != nil {
				return err
			}
		}
		if coversRight {
			right := row
			right.ID = uuid.NewString()
			right.Range = engine.DateRange{Start: rng.End.AddDays(1), End: row.Range.End}
			right.CreatedAt = now
			if err := s.SaveRate(ctx, right); err != nil {
				return err
			}
		}
	}

	return s.SaveRate(ctx, engine.RoomTypeRate{
		ID:         uuid.NewString(),
		RoomTypeID: roomTypeID,
		RatePlanID: planID,
		Range:      rng,
		Price:      price,
		CreatedAt:  now,
	})
}
