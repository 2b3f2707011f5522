/*
Package inventory is the room-type inventory ledger.

PURPOSE:
  Tracks finite room-type capacity per calendar day. Seeding creates one
  counter row per date; every accepted stay decrements its nights and every
  cancellation returns them. The decrement is the single authoritative
  availability check: it re-reads the row under the store transaction and
  validates the oversell ceiling before committing.

ALL-OR-NOTHING:
  A stay's nights are consumed inside one transaction. If any night fails
  the ceiling check, nights already decremented for the same stay are rolled
  back with the transaction; no partial consumption is ever visible.

SEE ALSO:
  - availability: Advisory checks and the two-phase acceptance path
  - engine/types.go: EffectiveOverbookingPercent / OversellCeiling
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/stayware/pms-engine/engine"
)

// Ledger mutates the per-day counters. All multi-row operations run inside
// one store transaction.
type Ledger struct {
	store engine.TxStore
}

func NewLedger(store engine.TxStore) *Ledger {
	return &Ledger{store: store}
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed creates or overwrites one row per date in [start, end] with
// available = capacity. Re-seeding resets counters; rows are never deleted.
func (l *Ledger) Seed(ctx context.Context, roomTypeID engine.RoomTypeID, start, end engine.Date, capacity int) error {
	r := engine.DateRange{Start: start, End: end}
	if !r.Valid() {
		return &engine.InvalidRangeError{Start: start, End: end}
	}
	if capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", engine.ErrInvalidInput, capacity)
	}
	return l.store.WithTx(ctx, func(s engine.Store) error {
		return SeedIn(ctx, s, roomTypeID, r, capacity)
	})
}

// SeedAll seeds every room type with its physical room count for the range.
// Idempotent per range: re-running resets the counters.
func (l *Ledger) SeedAll(ctx context.Context, start, end engine.Date) error {
	r := engine.DateRange{Start: start, End: end}
	if !r.Valid() {
		return &engine.InvalidRangeError{Start: start, End: end}
	}
	return l.store.WithTx(ctx, func(s engine.Store) error {
		types, err := s.ListRoomTypes(ctx)
		if err != nil {
			return err
		}
		for _, rt := range types {
			if err := SeedIn(ctx, s, rt.ID, r, rt.TotalRooms); err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedIn writes the counter rows against s, inside the caller's transaction.
func SeedIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, r engine.DateRange, capacity int) error {
	now := time.Now().UTC()
	for _, d := range r.Days() {
		day := engine.InventoryDay{
			RoomTypeID: roomTypeID,
			Date:       d,
			Capacity:   capacity,
			Available:  capacity,
			UpdatedAt:  now,
		}
		if err := s.UpsertInventoryDay(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SINGLE-NIGHT ADJUSTMENTS
// =============================================================================

// Decrement removes n rooms from one night after validating the effective
// oversell ceiling. The check and the write share one transaction.
func (l *Ledger) Decrement(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date, n int) error {
	return l.store.WithTx(ctx, func(s engine.Store) error {
		return DecrementIn(ctx, s, roomTypeID, date, n, nil)
	})
}

// Increment returns n rooms to one night (cancellation path).
func (l *Ledger) Increment(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date, n int) error {
	return l.store.WithTx(ctx, func(s engine.Store) error {
		return s.AdjustAvailable(ctx, roomTypeID, date, n)
	})
}

// DecrementIn performs the authoritative ceiling check and the decrement
// against s. overridePercent bypasses policy lookup for this call only.
//
// The row is re-read inside the caller's transaction, so a concurrent
// booking that raced past the advisory check still fails cleanly here.
func DecrementIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, date engine.Date, n int, overridePercent *int) error {
	day, err := s.GetInventoryDay(ctx, roomTypeID, date)
	if err != nil {
		return err
	}
	if day == nil {
		return &engine.NoInventoryRowError{RoomTypeID: roomTypeID, Date: date}
	}

	percent := 100
	if overridePercent != nil {
		percent = *overridePercent
	} else {
		policies, err := s.ListOverbookingPolicies(ctx, roomTypeID, date)
		if err != nil {
			return err
		}
		percent = engine.EffectiveOverbookingPercent(policies, roomTypeID, date)
	}

	ceiling := engine.OversellCeiling(day.Capacity, percent)
	if day.Sold()+n > ceiling {
		return &engine.InsufficientAvailabilityError{
			RoomTypeID: roomTypeID,
			Date:       date,
			Requested:  n,
			Sold:       day.Sold(),
			Ceiling:    ceiling,
		}
	}

	return s.AdjustAvailable(ctx, roomTypeID, date, -n)
}

// =============================================================================
// PER-STAY CONSUMPTION
// =============================================================================

// ConsumeStayIn decrements every night of the stay against s. Used by the
// acceptance path inside its transaction: a ceiling failure on any night
// rolls back the nights already taken.
func ConsumeStayIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, stay engine.StayRange, rooms int, overridePercent *int) error {
	for _, night := range stay.Nights() {
		if err := DecrementIn(ctx, s, roomTypeID, night, rooms, overridePercent); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseStayIn returns every night of the stay to the pool against s.
func ReleaseStayIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, stay engine.StayRange, rooms int) error {
	for _, night := range stay.Nights() {
		if err := s.AdjustAvailable(ctx, roomTypeID, night, rooms); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeStay is the transactional wrapper over ConsumeStayIn.
func (l *Ledger) ConsumeStay(ctx context.Context, roomTypeID engine.RoomTypeID, stay engine.StayRange, rooms int, overridePercent *int) error {
	if !stay.Valid() {
		return &engine.InvalidRangeError{Start: stay.CheckIn, End: stay.CheckOut}
	}
	return l.store.WithTx(ctx, func(s engine.Store) error {
		return ConsumeStayIn(ctx, s, roomTypeID, stay, rooms, overridePercent)
	})
}

// ReleaseStay is the transactional wrapper over ReleaseStayIn.
func (l *Ledger) ReleaseStay(ctx context.Context, roomTypeID engine.RoomTypeID, stay engine.StayRange, rooms int) error {
	if !stay.Valid() {
		return &engine.InvalidRangeError{Start: stay.CheckIn, End: stay.CheckOut}
	}
	return l.store.WithTx(ctx, func(s engine.Store) error {
		return ReleaseStayIn(ctx, s, roomTypeID, stay, rooms)
	})
}
