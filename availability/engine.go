/*
Package availability decides whether a stay request can be accepted.

PURPOSE:
  Answers the two questions every booking needs: how many rooms of a type
  are free for a whole stay window, and whether a shortfall may be admitted
  as controlled overbooking against a policy ceiling.

TWO-PHASE ACCEPTANCE:
  CheckAvailability and CanOverbook are ADVISORY: concurrent requests may
  race between the check and the booking. Admission therefore always flows
  through the inventory ledger's transactional decrement, which re-validates
  the ceiling under the store transaction and is the only source of truth.
  A failed decrement after a successful advisory check is an expected,
  clean *InsufficientAvailabilityError, never a partial booking.

SEE ALSO:
  - inventory: The authoritative decrement
  - engine/types.go: EffectiveOverbookingPercent precedence rules
*/
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/inventory"
)

// Engine is the availability and overbooking decision engine.
type Engine struct {
	store engine.TxStore
	log   *zap.Logger
}

func NewEngine(store engine.TxStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// =============================================================================
// ADVISORY CHECKS
// =============================================================================

// CheckAvailability returns the number of rooms bookable for every night of
// [checkIn, checkOut). The checkout date is not a night. Active room blocks
// reduce availability before the per-night minimum is taken. A night with no
// seeded row fails with *NoInventoryRowError.
func (e *Engine) CheckAvailability(ctx context.Context, roomTypeID engine.RoomTypeID, checkIn, checkOut engine.Date) (int, error) {
	stay := engine.StayRange{CheckIn: checkIn, CheckOut: checkOut}
	if !stay.Valid() {
		return 0, &engine.InvalidRangeError{Start: checkIn, End: checkOut}
	}
	return checkAvailabilityIn(ctx, e.store, roomTypeID, stay)
}

func checkAvailabilityIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, stay engine.StayRange) (int, error) {
	min := -1
	for _, night := range stay.Nights() {
		day, err := s.GetInventoryDay(ctx, roomTypeID, night)
		if err != nil {
			return 0, err
		}
		if day == nil {
			return 0, &engine.NoInventoryRowError{RoomTypeID: roomTypeID, Date: night}
		}

		blocked, err := blockedRooms(ctx, s, roomTypeID, night)
		if err != nil {
			return 0, err
		}

		avail := day.Available - blocked
		if min < 0 || avail < min {
			min = avail
		}
	}
	if min < 0 {
		min = 0
	}
	return min, nil
}

func blockedRooms(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, night engine.Date) (int, error) {
	blocks, err := s.ActiveBlocks(ctx, roomTypeID, night)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range blocks {
		total += b.Rooms
	}
	return total, nil
}

// EffectiveOverbookingPercent resolves the oversell percent for one night:
// a room-type-specific policy wins over a global one, creation order breaks
// ties, and no policy means 100.
func (e *Engine) EffectiveOverbookingPercent(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) (int, error) {
	policies, err := e.store.ListOverbookingPolicies(ctx, roomTypeID, date)
	if err != nil {
		return 0, err
	}
	return engine.EffectiveOverbookingPercent(policies, roomTypeID, date), nil
}

// CanOverbook reports whether requestedRooms can be admitted for every night
// of the stay under the oversell ceiling: for each night,
// sold + requested <= floor(capacity * percent / 100), boundary inclusive.
// overridePercent bypasses policy lookup for this call and must be >= 100.
func (e *Engine) CanOverbook(ctx context.Context, roomTypeID engine.RoomTypeID, checkIn, checkOut engine.Date, requestedRooms int, overridePercent *int) (bool, error) {
	stay := engine.StayRange{CheckIn: checkIn, CheckOut: checkOut}
	if !stay.Valid() {
		return false, &engine.InvalidRangeError{Start: checkIn, End: checkOut}
	}
	if overridePercent != nil && *overridePercent < 100 {
		return false, fmt.Errorf("%w: override percent %d below 100", engine.ErrInvalidInput, *overridePercent)
	}
	return canOverbookIn(ctx, e.store, roomTypeID, stay, requestedRooms, overridePercent)
}

func canOverbookIn(ctx context.Context, s engine.Store, roomTypeID engine.RoomTypeID, stay engine.StayRange, requestedRooms int, overridePercent *int) (bool, error) {
	for _, night := range stay.Nights() {
		day, err := s.GetInventoryDay(ctx, roomTypeID, night)
		if err != nil {
			return false, err
		}
		if day == nil {
			return false, &engine.NoInventoryRowError{RoomTypeID: roomTypeID, Date: night}
		}

		percent := 100
		if overridePercent != nil {
			percent = *overridePercent
		} else {
			policies, err := s.ListOverbookingPolicies(ctx, roomTypeID, night)
			if err != nil {
				return false, err
			}
			percent = engine.EffectiveOverbookingPercent(policies, roomTypeID, night)
		}

		ceiling := engine.OversellCeiling(day.Capacity, percent)
		if day.Sold()+requestedRooms > ceiling {
			return false, nil
		}
	}
	return true, nil
}

// =============================================================================
// ACCEPTANCE PATH
// =============================================================================

// StayRequest is the booking contract consumed from the surrounding layer.
type StayRequest struct {
	RoomTypeID      engine.RoomTypeID
	RatePlanID      engine.RatePlanID
	CheckIn         engine.Date
	CheckOut        engine.Date
	RequestedRooms  int
	OverridePercent *int
}

// Decision is the acceptance outcome returned to the surrounding layer.
type Decision struct {
	Accepted       bool
	StayID         engine.StayID
	RoomsAvailable int
	Overbooked     bool
}

// AcceptStay runs the full two-phase admission: advisory check, optional
// overbooking admission, then the authoritative transactional decrement of
// every night plus the stay write. All-or-nothing.
func (e *Engine) AcceptStay(ctx context.Context, req StayRequest) (*Decision, error) {
	stay := engine.StayRange{CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	if !stay.Valid() {
		return nil, &engine.InvalidRangeError{Start: req.CheckIn, End: req.CheckOut}
	}
	if req.RequestedRooms <= 0 {
		return nil, fmt.Errorf("%w: requested rooms must be positive", engine.ErrInvalidInput)
	}
	if req.OverridePercent != nil && *req.OverridePercent < 100 {
		return nil, fmt.Errorf("%w: override percent %d below 100", engine.ErrInvalidInput, *req.OverridePercent)
	}

	// Phase one: advisory. May be invalidated by a concurrent booking
	// before phase two commits.
	available, err := checkAvailabilityIn(ctx, e.store, req.RoomTypeID, stay)
	if err != nil {
		return nil, err
	}

	overbooked := false
	var decrementOverride *int
	if available < req.RequestedRooms {
		ok, err := canOverbookIn(ctx, e.store, req.RoomTypeID, stay, req.RequestedRooms, req.OverridePercent)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &engine.InsufficientAvailabilityError{
				RoomTypeID: req.RoomTypeID,
				Date:       req.CheckIn,
				Requested:  req.RequestedRooms,
			}
		}
		overbooked = true
		decrementOverride = req.OverridePercent
	}

	// Phase two: authoritative. The decrement re-validates each night's
	// ceiling inside the transaction; losing the race rolls everything back.
	newStay := engine.Stay{
		ID:         engine.StayID(uuid.NewString()),
		RoomTypeID: req.RoomTypeID,
		RatePlanID: req.RatePlanID,
		Range:      stay,
		Rooms:      req.RequestedRooms,
		Status:     engine.StayReserved,
		FolioID:    uuid.NewString(),
		Overbooked: overbooked,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	err = e.store.WithTx(ctx, func(s engine.Store) error {
		if err := inventory.ConsumeStayIn(ctx, s, req.RoomTypeID, stay, req.RequestedRooms, decrementOverride); err != nil {
			return err
		}
		return s.SaveStay(ctx, newStay)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("stay accepted",
		zap.String("stay_id", string(newStay.ID)),
		zap.String("room_type", string(req.RoomTypeID)),
		zap.String("window", stay.String()),
		zap.Int("rooms", req.RequestedRooms),
		zap.Bool("overbooked", overbooked),
	)
	return &Decision{
		Accepted:       true,
		StayID:         newStay.ID,
		RoomsAvailable: available,
		Overbooked:     overbooked,
	}, nil
}

// =============================================================================
// STAY LIFECYCLE
// =============================================================================

// CancelStay returns the stay's nights to the pool and marks it cancelled.
// Cancelling an already-cancelled stay is a no-op.
func (e *Engine) CancelStay(ctx context.Context, stayID engine.StayID) error {
	return e.store.WithTx(ctx, func(s engine.Store) error {
		stay, err := s.GetStay(ctx, stayID)
		if err != nil {
			return err
		}
		if stay == nil {
			return fmt.Errorf("%w: stay %s", engine.ErrNotFound, stayID)
		}
		if stay.Status == engine.StayCancelled {
			return nil
		}
		if stay.Status == engine.StayCheckedOut {
			return fmt.Errorf("%w: stay %s already checked out", engine.ErrConflict, stayID)
		}
		if err := inventory.ReleaseStayIn(ctx, s, stay.RoomTypeID, stay.Range, stay.Rooms); err != nil {
			return err
		}
		stay.Status = engine.StayCancelled
		stay.UpdatedAt = time.Now().UTC()
		return s.SaveStay(ctx, *stay)
	})
}

// CheckIn moves a reserved stay in house, optionally assigning a room.
func (e *Engine) CheckIn(ctx context.Context, stayID engine.StayID, roomNumber string) error {
	return e.transition(ctx, stayID, engine.StayReserved, engine.StayInHouse, roomNumber)
}

// CheckOut moves an in-house stay to checked out.
func (e *Engine) CheckOut(ctx context.Context, stayID engine.StayID) error {
	return e.transition(ctx, stayID, engine.StayInHouse, engine.StayCheckedOut, "")
}

func (e *Engine) transition(ctx context.Context, stayID engine.StayID, from, to engine.StayStatus, roomNumber string) error {
	return e.store.WithTx(ctx, func(s engine.Store) error {
		stay, err := s.GetStay(ctx, stayID)
		if err != nil {
			return err
		}
		if stay == nil {
			return fmt.Errorf("%w: stay %s", engine.ErrNotFound, stayID)
		}
		if stay.Status != from {
			return fmt.Errorf("%w: stay %s is %s, expected %s", engine.ErrConflict, stayID, stay.Status, from)
		}
		stay.Status = to
		if roomNumber != "" {
			stay.RoomNumber = roomNumber
		}
		stay.UpdatedAt = time.Now().UTC()
		return s.SaveStay(ctx, *stay)
	})
}

// =============================================================================
// ROOM BLOCKS AND POLICIES
// =============================================================================

// CreateRoomBlock removes rooms from the sellable pool for the range.
func (e *Engine) CreateRoomBlock(ctx context.Context, roomTypeID engine.RoomTypeID, rng engine.DateRange, rooms int, reason string) (*engine.RoomBlock, error) {
	if !rng.Valid() {
		return nil, &engine.InvalidRangeError{Start: rng.Start, End: rng.End}
	}
	if rooms <= 0 {
		return nil, fmt.Errorf("%w: block rooms must be positive", engine.ErrInvalidInput)
	}
	block := engine.RoomBlock{
		ID:         uuid.NewString(),
		RoomTypeID: roomTypeID,
		Range:      rng,
		Rooms:      rooms,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.SaveRoomBlock(ctx, block); err != nil {
		return nil, err
	}
	return &block, nil
}

// ReleaseRoomBlock returns a block's rooms to the pool.
func (e *Engine) ReleaseRoomBlock(ctx context.Context, id string) error {
	return e.store.ReleaseRoomBlock(ctx, id, time.Now().UTC())
}

// CreateOverbookingPolicy registers an oversell policy after the
// not-past-date guard. currentBusinessDate is passed explicitly; the guard
// is a pure function.
func (e *Engine) CreateOverbookingPolicy(ctx context.Context, currentBusinessDate engine.Date, roomTypeID *engine.RoomTypeID, rng engine.DateRange, percent int) (*engine.OverbookingPolicy, error) {
	if !rng.Valid() {
		return nil, &engine.InvalidRangeError{Start: rng.Start, End: rng.End}
	}
	if percent < 100 {
		return nil, fmt.Errorf("%w: overbooking percent %d below 100", engine.ErrInvalidInput, percent)
	}
	if err := engine.AssertNotPastDate(currentBusinessDate, rng.Start); err != nil {
		return nil, err
	}
	p := engine.OverbookingPolicy{
		ID:         uuid.NewString(),
		RoomTypeID: roomTypeID,
		Range:      rng,
		Percent:    percent,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.SaveOverbookingPolicy(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}
