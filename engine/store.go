/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the boundary between the engine and the database. The engine never
  assumes a storage technology; it only requires the semantics below.

KEY INTERFACES:
  Store:    Every row family the engine reads or writes
  TxStore:  Store plus WithTx, the scoped-transaction abstraction

SCOPED TRANSACTIONS:
  Every multi-row mutation runs inside WithTx: acquire a transactional view,
  pass it through every nested call, commit when fn returns nil, roll back on
  any error or early return. Components that participate in a caller's
  transaction expose package-level functions taking a plain Store, so a
  WithTx is never nested inside another.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL, single writer)
  - engine/store: In-memory with snapshot/rollback, for tests

SEE ALSO:
  - types.go: The row types persisted here
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Row-family interfaces
// =============================================================================

// BusinessDateStore persists the property's single current-operating-day row.
type BusinessDateStore interface {
	// GetBusinessDate returns the stored date. ok is false when no row
	// exists yet; that is the default-today case, not an error.
	GetBusinessDate(ctx context.Context) (d Date, ok bool, err error)

	// SetBusinessDate unconditionally overwrites the singleton row.
	SetBusinessDate(ctx context.Context, d Date) error
}

// RoomTypeStore persists room-type records.
type RoomTypeStore interface {
	SaveRoomType(ctx context.Context, rt RoomType) error
	GetRoomType(ctx context.Context, id RoomTypeID) (*RoomType, error)
	ListRoomTypes(ctx context.Context) ([]RoomType, error)
}

// InventoryStore persists the per-day inventory counters.
type InventoryStore interface {
	// UpsertInventoryDay creates or overwrites one counter row (seeding).
	UpsertInventoryDay(ctx context.Context, day InventoryDay) error

	// GetInventoryDay returns the row, or nil when the date was never seeded.
	GetInventoryDay(ctx context.Context, roomTypeID RoomTypeID, date Date) (*InventoryDay, error)

	// AdjustAvailable applies a signed delta to one row's available counter.
	// Fails with *NoInventoryRowError if the row does not exist.
	AdjustAvailable(ctx context.Context, roomTypeID RoomTypeID, date Date, delta int) error

	// ListInventoryDays returns the rows covering the range, ordered by date.
	ListInventoryDays(ctx context.Context, roomTypeID RoomTypeID, r DateRange) ([]InventoryDay, error)
}

// RateStore persists rate plans, rate rows, and derivation adjustments.
type RateStore interface {
	SaveRatePlan(ctx context.Context, plan RatePlan) error
	GetRatePlan(ctx context.Context, id RatePlanID) (*RatePlan, error)
	ListRatePlans(ctx context.Context) ([]RatePlan, error)

	SaveRate(ctx context.Context, rate RoomTypeRate) error
	DeleteRate(ctx context.Context, id string) error

	// ListRates returns every rate row for (room type, plan), ordered by
	// range start.
	ListRates(ctx context.Context, roomTypeID RoomTypeID, planID RatePlanID) ([]RoomTypeRate, error)

	// FindRate returns the row whose range covers date, or nil.
	FindRate(ctx context.Context, roomTypeID RoomTypeID, planID RatePlanID, date Date) (*RoomTypeRate, error)

	SaveAdjustment(ctx context.Context, adj RateAdjustment) error

	// ListAdjustmentsByBase returns every adjustment deriving from the base
	// type, ordered by creation.
	ListAdjustmentsByBase(ctx context.Context, baseRoomTypeID RoomTypeID) ([]RateAdjustment, error)

	// ListAdjustmentsByDerived returns every adjustment targeting the
	// derived type (used to reject chained derivations).
	ListAdjustmentsByDerived(ctx context.Context, derivedRoomTypeID RoomTypeID) ([]RateAdjustment, error)
}

// OverbookingStore persists oversell policies.
type OverbookingStore interface {
	// SaveOverbookingPolicy persists the policy, assigning its Seq ordering
	// key on first save.
	SaveOverbookingPolicy(ctx context.Context, p OverbookingPolicy) error

	// ListOverbookingPolicies returns every policy whose range covers date
	// and whose scope is either global or the given room type.
	ListOverbookingPolicies(ctx context.Context, roomTypeID RoomTypeID, date Date) ([]OverbookingPolicy, error)
}

// BlockStore persists room blocks.
type BlockStore interface {
	SaveRoomBlock(ctx context.Context, b RoomBlock) error
	GetRoomBlock(ctx context.Context, id string) (*RoomBlock, error)

	// ReleaseRoomBlock stamps ReleasedAt, returning the block to the pool.
	ReleaseRoomBlock(ctx context.Context, id string, at time.Time) error

	// ActiveBlocks returns unreleased blocks covering the date for the type.
	ActiveBlocks(ctx context.Context, roomTypeID RoomTypeID, date Date) ([]RoomBlock, error)
}

// StayStore persists the reservation surface the engine needs.
type StayStore interface {
	SaveStay(ctx context.Context, s Stay) error
	GetStay(ctx context.Context, id StayID) (*Stay, error)

	// ListInHouseStays returns stays in an in-house state whose window
	// covers the date (check-in <= date < check-out).
	ListInHouseStays(ctx context.Context, date Date) ([]Stay, error)
}

// ChargeStore persists posted room-night charges.
type ChargeStore interface {
	SaveCharge(ctx context.Context, c Charge) error

	// ChargeExists reports whether a charge was already posted for the
	// stay-night. The audit checks existence, never re-derives.
	ChargeExists(ctx context.Context, stayID StayID, date Date) (bool, error)

	ListChargesByDate(ctx context.Context, date Date) ([]Charge, error)
}

// AuditStore persists night-audit runs and revenue summaries.
type AuditStore interface {
	SaveAuditRun(ctx context.Context, run NightAuditRun) error
	GetAuditRun(ctx context.Context, businessDate Date) (*NightAuditRun, error)

	// SaveRevenueSummary replaces any prior summary for the date.
	SaveRevenueSummary(ctx context.Context, s RevenueSummary) error
	GetRevenueSummary(ctx context.Context, date Date) (*RevenueSummary, error)
}

// Store is everything the engine persists.
type Store interface {
	BusinessDateStore
	RoomTypeStore
	InventoryStore
	RateStore
	OverbookingStore
	BlockStore
	StayStore
	ChargeStore
	AuditStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with the scoped-transaction abstraction.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back; otherwise it
	// is committed. For a single room type and date, concurrent WithTx
	// bodies that mutate the same counter are serialized.
	WithTx(ctx context.Context, fn func(Store) error) error
}
