/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a realistic
	property for testing and demos. Each scenario creates room types, rate
	plans, rates, inventory, and stays that demonstrate specific features.

AVAILABLE SCENARIOS:

	city-hotel:      Three room types with derived suite pricing, two rate
	                 plans, 60 days of inventory, in-house stays ready for a
	                 night audit
	sold-out-peak:   Small property near capacity with a 110% overbooking
	                 policy over a peak weekend

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create room types and rate plans
 3. Write rates and derivation adjustments
 4. Seed the inventory ledger from the business date
 5. Book stays and check some in

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "city-hotel"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayware/pms-engine/availability"
	"github.com/stayware/pms-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "city-hotel",
		Name:        "City Hotel",
		Description: "Three room types with derived suite pricing, in-house stays ready for a night audit",
	},
	{
		ID:          "sold-out-peak",
		Name:        "Sold-Out Peak Weekend",
		Description: "Small property near capacity with a 110% overbooking policy",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if resetter, ok := h.Store.(interface{ Reset(context.Context) error }); ok {
		if err := resetter.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
			return
		}
	}

	var err error
	switch req.ScenarioID {
	case "city-hotel":
		err = h.loadCityHotel(ctx)
	case "sold-out-peak":
		err = h.loadSoldOutPeak(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadCityHotel builds a mid-size property: standard and deluxe rooms priced
// directly, suites derived from deluxe at +32%, corporate rates EUR 15 under
// BAR, and two stays already in house so a night audit has work to do.
func (h *Handler) loadCityHotel(ctx context.Context) error {
	today, err := h.Dates.Get(ctx)
	if err != nil {
		return err
	}

	roomTypes := []engine.RoomType{
		{ID: "standard", Name: "Standard Double", TotalRooms: 40},
		{ID: "deluxe", Name: "Deluxe King", TotalRooms: 20},
		{ID: "suite", Name: "Junior Suite", TotalRooms: 8},
	}
	for _, rt := range roomTypes {
		rt.CreatedAt = time.Now().UTC()
		if err := h.Store.SaveRoomType(ctx, rt); err != nil {
			return err
		}
	}

	plans := []engine.RatePlan{
		{ID: "bar", Name: "Best Available Rate", Refundable: true},
		{ID: "corp", Name: "Corporate", Refundable: true, MinAdvanceDays: 0},
	}
	for _, plan := range plans {
		if err := h.Rates.CreateRatePlan(ctx, plan); err != nil {
			return err
		}
	}

	season := engine.DateRange{Start: today, End: today.AddDays(59)}
	directRates := []engine.RoomTypeRate{
		{RoomTypeID: "standard", RatePlanID: "bar", Range: season, Price: engine.MustMoney("100.00")},
		{RoomTypeID: "standard", RatePlanID: "corp", Range: season, Price: engine.MustMoney("85.00")},
		{RoomTypeID: "deluxe", RatePlanID: "bar", Range: season, Price: engine.MustMoney("140.00")},
		{RoomTypeID: "deluxe", RatePlanID: "corp", Range: season, Price: engine.MustMoney("125.00")},
	}
	for _, rate := range directRates {
		if err := h.Rates.CreateRate(ctx, rate); err != nil {
			return err
		}
	}

	// Suites are never priced directly; they follow deluxe at +32%.
	if err := h.Rates.CreateAdjustment(ctx, engine.RateAdjustment{
		BaseRoomTypeID:    "deluxe",
		DerivedRoomTypeID: "suite",
		Type:              engine.AdjustmentPercent,
		Value:             decimal.NewFromInt(32),
	}); err != nil {
		return err
	}

	if err := h.Inventory.SeedAll(ctx, season.Start, season.End); err != nil {
		return err
	}

	// Two stays covering tonight, checked in so the audit posts charges.
	bookings := []availability.StayRequest{
		{RoomTypeID: "standard", RatePlanID: "bar", CheckIn: today, CheckOut: today.AddDays(2), RequestedRooms: 1},
		{RoomTypeID: "deluxe", RatePlanID: "corp", CheckIn: today, CheckOut: today.AddDays(3), RequestedRooms: 2},
	}
	rooms := []string{"204", "512"}
	for i, req := range bookings {
		decision, err := h.Availability.AcceptStay(ctx, req)
		if err != nil {
			return err
		}
		if err := h.Availability.CheckIn(ctx, decision.StayID, rooms[i]); err != nil {
			return err
		}
	}

	return nil
}

// loadSoldOutPeak builds a small property one booking away from its physical
// capacity, with a 110% overbooking policy covering the coming weekend.
func (h *Handler) loadSoldOutPeak(ctx context.Context) error {
	today, err := h.Dates.Get(ctx)
	if err != nil {
		return err
	}

	if err := h.Store.SaveRoomType(ctx, engine.RoomType{
		ID: "standard", Name: "Standard", TotalRooms: 10, CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := h.Rates.CreateRatePlan(ctx, engine.RatePlan{ID: "bar", Name: "Best Available Rate", Refundable: true}); err != nil {
		return err
	}

	week := engine.DateRange{Start: today, End: today.AddDays(6)}
	if err := h.Rates.CreateRate(ctx, engine.RoomTypeRate{
		RoomTypeID: "standard", RatePlanID: "bar", Range: week, Price: engine.MustMoney("120.00"),
	}); err != nil {
		return err
	}
	if err := h.Inventory.SeedAll(ctx, week.Start, week.End); err != nil {
		return err
	}

	// Ten rooms, 110% policy: up to 11 sold per night.
	if _, err := h.Availability.CreateOverbookingPolicy(ctx, today, nil, week, 110); err != nil {
		return err
	}

	// Nine rooms sold for the next two nights; one left, plus one oversell.
	_, err = h.Availability.AcceptStay(ctx, availability.StayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: today, CheckOut: today.AddDays(2), RequestedRooms: 9,
	})
	return err
}
