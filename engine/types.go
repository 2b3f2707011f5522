/*
Package engine provides the core types of the property-management engine.

PURPOSE:
  This package contains the domain rows and value types shared by every
  component: dated room-type inventory counters, layered rate rows, derived
  rate adjustments, overbooking policies, room blocks, stays, posted charges,
  and the night-audit run record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal (no float math)
  - InventoryDay: Per room-type, per-calendar-day capacity/available counters
  - RoomTypeRate / RateAdjustment: Direct and derived pricing rows
  - OverbookingPolicy: Oversell ceiling as a percent of capacity
  - Stay / Charge: The minimum reservation surface the night audit needs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Day anchoring: Every decision is keyed to a Date or a bounded range
  3. Type Safety: Strong typing for IDs prevents mixing room-type/plan IDs

SEE ALSO:
  - date.go: Date, DateRange, StayRange
  - errors.go: Error taxonomy
  - store.go: Persistence interfaces
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount (minor-unit precision, half-up rounding)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money              { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money              { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) Equal(b Money) bool             { return m.Value.Equal(b.Value) }
func (m Money) String() string                 { return m.Value.StringFixed(2) }

// RoundMinorUnit rounds to the currency's minor unit (2 decimal places) using
// half-up rounding. Applied after every derived-rate computation.
func (m Money) RoundMinorUnit() Money { return Money{Value: m.Value.Round(2)} }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RoomTypeID string
type RatePlanID string
type StayID string

// =============================================================================
// ROOM TYPES AND INVENTORY
// =============================================================================

// RoomType is the sellable category (e.g. "standard-double"). TotalRooms is
// the physical room count and the default seed capacity.
type RoomType struct {
	ID         RoomTypeID
	Name       string
	TotalRooms int
	CreatedAt  time.Time
}

// InventoryDay is one cell of the inventory ledger: how many rooms of a type
// exist and how many are still sellable on one calendar day.
//
// Available may go negative when overbooking is admitted; the oversell
// ceiling check bounds how far. Rows are created by seeding, never deleted.
type InventoryDay struct {
	RoomTypeID RoomTypeID
	Date       Date
	Capacity   int
	Available  int
	UpdatedAt  time.Time
}

// Sold is the number of rooms committed for the day.
func (d InventoryDay) Sold() int { return d.Capacity - d.Available }

// =============================================================================
// RATE PLANS AND RATES
// =============================================================================

// RatePlan is a named pricing policy. The engine references plans but never
// mutates them.
type RatePlan struct {
	ID             RatePlanID
	Name           string
	Refundable     bool
	MinAdvanceDays int
	CreatedAt      time.Time
}

// RoomTypeRate prices one room type under one plan for every date in an
// inclusive range. For a given (room type, plan) pair, ranges never overlap;
// the rates engine enforces this on every write.
type RoomTypeRate struct {
	ID         string
	RoomTypeID RoomTypeID
	RatePlanID RatePlanID
	Range      DateRange
	Price      Money
	CreatedAt  time.Time
}

// AdjustmentType selects how a derived price is computed from the base price.
type AdjustmentType string

const (
	AdjustmentAmount  AdjustmentType = "amount"  // base + value
	AdjustmentPercent AdjustmentType = "percent" // base * (1 + value/100)
)

// RateAdjustment derives one room type's price from another's. Derivations
// are single-level: a derived type can never itself be a base.
// RatePlanID scopes the adjustment to one plan; nil applies to all plans.
type RateAdjustment struct {
	ID                string
	BaseRoomTypeID    RoomTypeID
	DerivedRoomTypeID RoomTypeID
	RatePlanID        *RatePlanID
	Type              AdjustmentType
	Value             decimal.Decimal
	CreatedAt         time.Time
}

// Apply computes the derived price from a base price, rounded to the minor
// unit half-up.
func (a RateAdjustment) Apply(base Money) Money {
	switch a.Type {
	case AdjustmentPercent:
		factor := decimal.NewFromInt(1).Add(a.Value.Div(decimal.NewFromInt(100)))
		return base.Mul(factor).RoundMinorUnit()
	default:
		return base.Add(Money{Value: a.Value}).RoundMinorUnit()
	}
}

// =============================================================================
// OVERBOOKING POLICIES
// =============================================================================

// OverbookingPolicy raises the sellable ceiling for a date range.
// Percent 110 means 10% over physical capacity. A nil RoomTypeID makes the
// policy global. Seq is a monotonically increasing creation-order key used as
// the deterministic tie-break between same-specificity policies.
type OverbookingPolicy struct {
	ID         string
	RoomTypeID *RoomTypeID
	Range      DateRange
	Percent    int
	Seq        int64
	CreatedAt  time.Time
}

// EffectiveOverbookingPercent resolves the oversell percent for one
// (room type, date) from the candidate policies covering that date.
// Precedence: room-type-specific beats global; within the same specificity
// the most recently created (highest Seq) wins; no policy means 100.
func EffectiveOverbookingPercent(policies []OverbookingPolicy, roomTypeID RoomTypeID, date Date) int {
	best := 100
	bestSeq := int64(-1)
	bestSpecific := false

	for _, p := range policies {
		if !p.Range.Contains(date) {
			continue
		}
		specific := p.RoomTypeID != nil
		if specific && *p.RoomTypeID != roomTypeID {
			continue
		}
		if specific == bestSpecific && p.Seq <= bestSeq {
			continue
		}
		if !specific && bestSpecific {
			continue
		}
		best = p.Percent
		bestSeq = p.Seq
		bestSpecific = specific
	}
	return best
}

// OversellCeiling is the maximum sold count for a day:
// floor(capacity * percent / 100).
func OversellCeiling(capacity, percent int) int {
	return capacity * percent / 100
}

// =============================================================================
// ROOM BLOCKS
// =============================================================================

// RoomBlock removes rooms of a type from the sellable pool for a date range
// regardless of the inventory counters (group holds, out-of-order rooms).
// A block is active while ReleasedAt is nil.
type RoomBlock struct {
	ID         string
	RoomTypeID RoomTypeID
	Range      DateRange
	Rooms      int
	Reason     string
	ReleasedAt *time.Time
	CreatedAt  time.Time
}

func (b RoomBlock) Active() bool { return b.ReleasedAt == nil }

// =============================================================================
// STAYS AND CHARGES
// =============================================================================

type StayStatus string

const (
	StayReserved   StayStatus = "reserved"
	StayInHouse    StayStatus = "in_house"
	StayCheckedOut StayStatus = "checked_out"
	StayCancelled  StayStatus = "cancelled"
)

// Stay is the minimum reservation surface this engine needs: which nights of
// which room type are consumed, under which plan, and whether the guest is in
// house when the audit runs. Guest and folio management live elsewhere.
type Stay struct {
	ID         StayID
	RoomTypeID RoomTypeID
	RatePlanID RatePlanID
	Range      StayRange
	Rooms      int
	Status     StayStatus
	RoomNumber string
	FolioID    string
	Overbooked bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InHouseOn reports whether the stay occupies the given business date in an
// in-house state (the night audit posts charges for exactly these stays).
func (s Stay) InHouseOn(d Date) bool {
	return s.Status == StayInHouse && s.Range.CoversNight(d)
}

// Charge is one posted room-night charge against a stay's folio.
// At most one charge exists per (stay, date); the audit checks existence
// before posting, never re-derives.
type Charge struct {
	ID         string
	StayID     StayID
	FolioID    string
	RoomTypeID RoomTypeID
	RatePlanID RatePlanID
	Date       Date
	Amount     Money
	Detail     string
	PostedAt   time.Time
}

// =============================================================================
// NIGHT AUDIT
// =============================================================================

// AuditState is the strictly ordered workflow position of a night-audit run.
type AuditState string

const (
	AuditNotStarted            AuditState = "not_started"
	AuditChargesPosted         AuditState = "charges_posted"
	AuditRevenueAggregated     AuditState = "revenue_aggregated"
	AuditDiscrepanciesFlagged  AuditState = "discrepancies_flagged"
	AuditDateAdvanced          AuditState = "date_advanced" // terminal
)

// NightAuditRun records one audit attempt for a business date. At most one
// run per date reaches AuditDateAdvanced; a run stuck earlier may be resumed.
type NightAuditRun struct {
	ID            string
	BusinessDate  Date
	State         AuditState
	ChargesPosted int
	Discrepancies int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

func (r NightAuditRun) Completed() bool { return r.State == AuditDateAdvanced }

// RevenueSummary is the single aggregate row the audit produces per business
// date. Regenerating it replaces the prior row.
type RevenueSummary struct {
	Date        Date
	Total       Money
	RoomNights  int
	ByRoomType  map[RoomTypeID]Money
	ByRatePlan  map[RatePlanID]Money
	GeneratedAt time.Time
}

// DiscrepancyKind classifies a night-audit finding.
type DiscrepancyKind string

const (
	DiscrepancyNoRoomAssigned  DiscrepancyKind = "no_room_assigned"
	DiscrepancyMissingCharge   DiscrepancyKind = "missing_charge"
	DiscrepancyOverCeiling     DiscrepancyKind = "over_ceiling"
)

// Discrepancy is one finding. Findings are reported, never auto-repaired,
// and never block the date advance.
type Discrepancy struct {
	Kind       DiscrepancyKind
	StayID     StayID
	RoomTypeID RoomTypeID
	Date       Date
	Detail     string
}
