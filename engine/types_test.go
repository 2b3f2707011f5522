package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERBOOKING RESOLUTION
// =============================================================================

func policyFor(id string, roomTypeID *RoomTypeID, percent int, seq int64) OverbookingPolicy {
	return OverbookingPolicy{
		ID:         id,
		RoomTypeID: roomTypeID,
		Range:      DateRange{Start: NewDate(2024, time.June, 1), End: NewDate(2024, time.June, 30)},
		Percent:    percent,
		Seq:        seq,
	}
}

func TestEffectiveOverbookingPercent_SpecificBeatsGlobal(t *testing.T) {
	// GIVEN: A global 120% policy and a type-specific 105% policy, both covering the date
	// WHEN: Resolving for that room type
	// THEN: The specific policy wins even though the global one is newer

	standard := RoomTypeID("standard")
	policies := []OverbookingPolicy{
		policyFor("p1", &standard, 105, 1),
		policyFor("p2", nil, 120, 2),
	}

	got := EffectiveOverbookingPercent(policies, standard, NewDate(2024, time.June, 10))
	if got != 105 {
		t.Errorf("expected specific policy 105, got %d", got)
	}

	// Another room type only sees the global policy.
	got = EffectiveOverbookingPercent(policies, "deluxe", NewDate(2024, time.June, 10))
	if got != 120 {
		t.Errorf("expected global policy 120, got %d", got)
	}
}

func TestEffectiveOverbookingPercent_SeqBreaksTies(t *testing.T) {
	// Two global policies over the same dates: the later-created one wins.
	policies := []OverbookingPolicy{
		policyFor("old", nil, 110, 1),
		policyFor("new", nil, 115, 2),
	}

	if got := EffectiveOverbookingPercent(policies, "standard", NewDate(2024, time.June, 10)); got != 115 {
		t.Errorf("expected newest policy 115, got %d", got)
	}
}

func TestEffectiveOverbookingPercent_DefaultsTo100(t *testing.T) {
	if got := EffectiveOverbookingPercent(nil, "standard", NewDate(2024, time.June, 10)); got != 100 {
		t.Errorf("expected default 100, got %d", got)
	}

	// A policy outside its range does not apply.
	policies := []OverbookingPolicy{policyFor("p", nil, 150, 1)}
	if got := EffectiveOverbookingPercent(policies, "standard", NewDate(2024, time.July, 1)); got != 100 {
		t.Errorf("expected default 100 outside range, got %d", got)
	}
}

func TestOversellCeiling_FloorsFractions(t *testing.T) {
	cases := []struct {
		capacity, percent, want int
	}{
		{10, 100, 10},
		{10, 110, 11},
		{7, 110, 7},  // 7.7 floors to 7
		{9, 115, 10}, // 10.35 floors to 10
		{0, 150, 0},
	}
	for _, tc := range cases {
		if got := OversellCeiling(tc.capacity, tc.percent); got != tc.want {
			t.Errorf("OversellCeiling(%d, %d) = %d, want %d", tc.capacity, tc.percent, got, tc.want)
		}
	}
}

// =============================================================================
// DERIVED PRICING
// =============================================================================

func TestRateAdjustment_Apply_Percent(t *testing.T) {
	// GIVEN: A base price of 100.00 and a +32% adjustment
	// WHEN: Applying it
	// THEN: The derived price is exactly 132.00

	adj := RateAdjustment{Type: AdjustmentPercent, Value: decimal.NewFromInt(32)}
	got := adj.Apply(MustMoney("100.00"))
	if got.String() != "132.00" {
		t.Errorf("expected 132.00, got %s", got)
	}
}

func TestRateAdjustment_Apply_PercentRoundsHalfUp(t *testing.T) {
	// 99.99 * 1.325 = 132.48675 -> 132.49
	adj := RateAdjustment{Type: AdjustmentPercent, Value: decimal.RequireFromString("32.5")}
	got := adj.Apply(MustMoney("99.99"))
	if got.String() != "132.49" {
		t.Errorf("expected 132.49, got %s", got)
	}
}

func TestRateAdjustment_Apply_Amount(t *testing.T) {
	adj := RateAdjustment{Type: AdjustmentAmount, Value: decimal.RequireFromString("-15")}
	got := adj.Apply(MustMoney("100.00"))
	if got.String() != "85.00" {
		t.Errorf("expected 85.00, got %s", got)
	}
}

func TestMoney_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 is exactly 0.3 in decimal arithmetic.
	sum := MustMoney("0.1").Add(MustMoney("0.2"))
	if !sum.Equal(MustMoney("0.3")) {
		t.Errorf("0.1 + 0.2 = %s", sum)
	}
}

// =============================================================================
// STAY AND INVENTORY HELPERS
// =============================================================================

func TestInventoryDay_Sold(t *testing.T) {
	day := InventoryDay{Capacity: 10, Available: -1}
	if got := day.Sold(); got != 11 {
		t.Errorf("negative available means oversold: expected 11, got %d", got)
	}
}

func TestStay_InHouseOn(t *testing.T) {
	stay := Stay{
		Status: StayInHouse,
		Range: StayRange{
			CheckIn:  NewDate(2024, time.June, 1),
			CheckOut: NewDate(2024, time.June, 3),
		},
	}

	if !stay.InHouseOn(NewDate(2024, time.June, 2)) {
		t.Error("in-house stay covers its last night")
	}
	if stay.InHouseOn(NewDate(2024, time.June, 3)) {
		t.Error("check-out day is not occupied")
	}

	stay.Status = StayCheckedOut
	if stay.InHouseOn(NewDate(2024, time.June, 2)) {
		t.Error("checked-out stays are never in house")
	}
}
