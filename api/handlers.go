/*
handlers.go - HTTP API handlers for the availability, rate and audit engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Business date:
    GET    /api/business-date            Current operating day
    PUT    /api/business-date            Admin override
    POST   /api/business-date/advance    Advance one day (manual)

  Room types and inventory:
    GET    /api/room-types               List room types
    POST   /api/room-types               Create room type
    POST   /api/inventory/seed           Seed counter rows for a range
    GET    /api/inventory                Ledger rows for a type and range

  Rates:
    GET    /api/rate-plans               List rate plans
    POST   /api/rate-plans               Create rate plan
    POST   /api/rates                    Create direct rate row
    GET    /api/rates/effective          Resolve a nightly price
    GET    /api/rates/derived            Resolve a derived nightly price
    POST   /api/rates/adjustments        Create derivation rule
    PUT    /api/rates/base               Update base rate, propagate

  Availability and stays:
    GET    /api/availability             Advisory availability check
    POST   /api/stays                    Book (authoritative consumption)
    GET    /api/stays/{id}               Stay details
    POST   /api/stays/{id}/cancel        Cancel and return nights
    POST   /api/stays/{id}/check-in      Reserved -> in-house
    POST   /api/stays/{id}/check-out     In-house -> checked-out

  Blocks and policies:
    POST   /api/blocks                   Hold rooms out of the pool
    POST   /api/blocks/{id}/release      Return held rooms
    POST   /api/overbooking-policies     Raise the sellable ceiling

  Night audit:
    POST   /api/audit/run                Full audit for a business date
    GET    /api/audit/runs/{date}        Run report
    GET    /api/audit/revenue/{date}     Revenue summary
    GET    /api/audit/discrepancies      Flag findings without mutating

ERROR HANDLING:
  Domain errors map onto HTTP status through the engine's classifiers:
  - 400: ErrInvalidInput (bad ranges, past dates, role failures)
  - 404: ErrNotFound (unknown rows, unpriced dates)
  - 409: ErrConflict (ceiling violations, duplicate audits)
  - 503: ErrUnavailable (storage unreachable)
  - 500: everything else

SECURITY NOTE:
  The only privilege check is the role field on the business-date override.
  Real authentication belongs in a gateway in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stayware/pms-engine/availability"
	"github.com/stayware/pms-engine/businessdate"
	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/inventory"
	"github.com/stayware/pms-engine/nightaudit"
	"github.com/stayware/pms-engine/rates"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        engine.TxStore
	Dates        *businessdate.Authority
	Inventory    *inventory.Ledger
	Rates        *rates.Resolver
	Availability *availability.Engine
	Audit        *nightaudit.Orchestrator
	Log          *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the engine's services over one store.
func NewHandler(store engine.TxStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	dates := businessdate.NewAuthority(store, log)
	return &Handler{
		Store:        store,
		Dates:        dates,
		Inventory:    inventory.NewLedger(store),
		Rates:        rates.NewResolver(store, dates),
		Availability: availability.NewEngine(store, log),
		Audit:        nightaudit.NewOrchestrator(store, log),
		Log:          log,
	}
}

// =============================================================================
// BUSINESS DATE
// =============================================================================

// GetBusinessDate returns the current operating day.
func (h *Handler) GetBusinessDate(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dates.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BusinessDateDTO{BusinessDate: d.String()})
}

// SetBusinessDate overrides the operating day. Admin role required; the
// override intentionally accepts past dates.
func (h *Handler) SetBusinessDate(w http.ResponseWriter, r *http.Request) {
	var req SetBusinessDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := engine.AssertOperationalRole(engine.Role(req.Role), engine.RoleAdmin); err != nil {
		writeDomainError(w, err)
		return
	}

	d, err := engine.ParseDate(req.BusinessDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business_date format (use YYYY-MM-DD)", err)
		return
	}

	set, err := h.Dates.Set(r.Context(), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BusinessDateDTO{BusinessDate: set.String()})
}

// AdvanceBusinessDate moves the operating day forward one day without
// running an audit (setup and recovery tool).
func (h *Handler) AdvanceBusinessDate(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dates.Advance(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BusinessDateDTO{BusinessDate: d.String()})
}

// =============================================================================
// ROOM TYPES AND INVENTORY
// =============================================================================

// ListRoomTypes returns all room types.
func (h *Handler) ListRoomTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListRoomTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RoomTypeDTO, len(types))
	for i, rt := range types {
		dtos[i] = RoomTypeDTO{
			ID:         string(rt.ID),
			Name:       rt.Name,
			TotalRooms: rt.TotalRooms,
			CreatedAt:  rt.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRoomType registers a sellable room category.
func (h *Handler) CreateRoomType(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.TotalRooms < 0 {
		writeError(w, http.StatusBadRequest, "id required and total_rooms must be non-negative", nil)
		return
	}

	rt := engine.RoomType{
		ID:         engine.RoomTypeID(req.ID),
		Name:       req.Name,
		TotalRooms: req.TotalRooms,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.SaveRoomType(r.Context(), rt); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RoomTypeDTO{
		ID:         req.ID,
		Name:       req.Name,
		TotalRooms: req.TotalRooms,
	})
}

// SeedInventory creates counter rows for a range. With no room_type_id it
// seeds every room type at its physical capacity.
func (h *Handler) SeedInventory(w http.ResponseWriter, r *http.Request) {
	var req SeedInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	if req.RoomTypeID == "" {
		if err := h.Inventory.SeedAll(ctx, start, end); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "seeded all room types"})
		return
	}

	capacity := 0
	if req.Capacity != nil {
		capacity = *req.Capacity
	} else {
		rt, err := h.Store.GetRoomType(ctx, engine.RoomTypeID(req.RoomTypeID))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if rt == nil {
			writeError(w, http.StatusNotFound, "Room type not found", nil)
			return
		}
		capacity = rt.TotalRooms
	}

	if err := h.Inventory.Seed(ctx, engine.RoomTypeID(req.RoomTypeID), start, end, capacity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// GetInventory returns ledger rows for ?room_type=&start=&end=.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	roomTypeID := r.URL.Query().Get("room_type")
	start, err := engine.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end, err := engine.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date", err)
		return
	}

	days, err := h.Store.ListInventoryDays(r.Context(), engine.RoomTypeID(roomTypeID),
		engine.DateRange{Start: start, End: end})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]InventoryDayDTO, len(days))
	for i, day := range days {
		dtos[i] = InventoryDayDTO{
			RoomTypeID: string(day.RoomTypeID),
			Date:       day.Date.String(),
			Capacity:   day.Capacity,
			Available:  day.Available,
			Sold:       day.Sold(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RATE PLANS AND RATES
// =============================================================================

// ListRatePlans returns all rate plans.
func (h *Handler) ListRatePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListRatePlans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RatePlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = RatePlanDTO{
			ID:             string(p.ID),
			Name:           p.Name,
			Refundable:     p.Refundable,
			MinAdvanceDays: p.MinAdvanceDays,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRatePlan registers a named pricing policy.
func (h *Handler) CreateRatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreateRatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan := engine.RatePlan{
		ID:             engine.RatePlanID(req.ID),
		Name:           req.Name,
		Refundable:     req.Refundable,
		MinAdvanceDays: req.MinAdvanceDays,
	}
	if err := h.Rates.CreateRatePlan(r.Context(), plan); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RatePlanDTO{
		ID:             req.ID,
		Name:           req.Name,
		Refundable:     req.Refundable,
		MinAdvanceDays: req.MinAdvanceDays,
	})
}

// CreateRate writes a direct rate row.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}
	price, err := engine.MoneyFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	rate := engine.RoomTypeRate{
		RoomTypeID: engine.RoomTypeID(req.RoomTypeID),
		RatePlanID: engine.RatePlanID(req.RatePlanID),
		Range:      rng,
		Price:      price,
	}
	if err := h.Rates.CreateRate(r.Context(), rate); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// GetEffectiveRate resolves ?room_type=&plan=&date= to a nightly price.
func (h *Handler) GetEffectiveRate(w http.ResponseWriter, r *http.Request) {
	roomTypeID := r.URL.Query().Get("room_type")
	planID := r.URL.Query().Get("plan")
	date, err := engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	price, err := h.Rates.EffectiveRate(r.Context(),
		engine.RoomTypeID(roomTypeID), engine.RatePlanID(planID), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RateDTO{
		RoomTypeID: roomTypeID,
		RatePlanID: planID,
		Date:       date.String(),
		Price:      price.String(),
	})
}

// GetDerivedRate resolves ?base=&derived=&plan=&date=.
func (h *Handler) GetDerivedRate(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	derived := r.URL.Query().Get("derived")
	planID := r.URL.Query().Get("plan")
	date, err := engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	price, err := h.Rates.DerivedRate(r.Context(),
		engine.RoomTypeID(base), engine.RoomTypeID(derived), engine.RatePlanID(planID), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RateDTO{
		RoomTypeID: derived,
		RatePlanID: planID,
		Date:       date.String(),
		Price:      price.String(),
	})
}

// CreateAdjustment registers a derived-pricing rule.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	value, err := engine.MoneyFromString(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value", err)
		return
	}

	adj := engine.RateAdjustment{
		BaseRoomTypeID:    engine.RoomTypeID(req.BaseRoomTypeID),
		DerivedRoomTypeID: engine.RoomTypeID(req.DerivedRoomTypeID),
		Type:              engine.AdjustmentType(req.Type),
		Value:             value.Value,
	}
	if req.RatePlanID != nil {
		p := engine.RatePlanID(*req.RatePlanID)
		adj.RatePlanID = &p
	}
	if err := h.Rates.CreateAdjustment(r.Context(), adj); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// UpdateBaseRate replaces a base rate for a range and propagates to every
// derived type atomically.
func (h *Handler) UpdateBaseRate(w http.ResponseWriter, r *http.Request) {
	var req UpdateBaseRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}
	price, err := engine.MoneyFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	err = h.Rates.UpdateBaseRateAndPropagate(r.Context(),
		engine.RoomTypeID(req.RoomTypeID), engine.RatePlanID(req.RatePlanID), rng, price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// =============================================================================
// AVAILABILITY AND STAYS
// =============================================================================

// CheckAvailability answers ?room_type=&check_in=&check_out=. Advisory only:
// the answer can be stale the moment it is produced.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	roomTypeID := r.URL.Query().Get("room_type")
	checkIn, err := engine.ParseDate(r.URL.Query().Get("check_in"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in", err)
		return
	}
	checkOut, err := engine.ParseDate(r.URL.Query().Get("check_out"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_out", err)
		return
	}

	rooms, err := h.Availability.CheckAvailability(r.Context(),
		engine.RoomTypeID(roomTypeID), checkIn, checkOut)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		RoomTypeID:     roomTypeID,
		CheckIn:        checkIn.String(),
		CheckOut:       checkOut.String(),
		RoomsAvailable: rooms,
	})
}

// BookStay runs the authoritative two-phase acceptance.
func (h *Handler) BookStay(w http.ResponseWriter, r *http.Request) {
	var req BookStayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	checkIn, err := engine.ParseDate(req.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in", err)
		return
	}
	checkOut, err := engine.ParseDate(req.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_out", err)
		return
	}
	if req.Rooms <= 0 {
		writeError(w, http.StatusBadRequest, "rooms must be positive", nil)
		return
	}

	decision, err := h.Availability.AcceptStay(r.Context(), availability.StayRequest{
		RoomTypeID:      engine.RoomTypeID(req.RoomTypeID),
		RatePlanID:      engine.RatePlanID(req.RatePlanID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		RequestedRooms:  req.Rooms,
		OverridePercent: req.OverridePercent,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, BookStayResponse{
		Accepted:       decision.Accepted,
		StayID:         string(decision.StayID),
		RoomsAvailable: decision.RoomsAvailable,
		Overbooked:     decision.Overbooked,
	})
}

// GetStay returns stay details.
func (h *Handler) GetStay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stay, err := h.Store.GetStay(r.Context(), engine.StayID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if stay == nil {
		writeError(w, http.StatusNotFound, "Stay not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStayDTO(*stay))
}

// CancelStay returns the stay's nights to the pool. Idempotent.
func (h *Handler) CancelStay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Availability.CancelStay(r.Context(), engine.StayID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// CheckInStay transitions a reserved stay to in-house.
func (h *Handler) CheckInStay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AssignRoomRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // room number optional
	}

	if err := h.Availability.CheckIn(r.Context(), engine.StayID(id), req.RoomNumber); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_house"})
}

// CheckOutStay transitions an in-house stay to checked-out.
func (h *Handler) CheckOutStay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Availability.CheckOut(r.Context(), engine.StayID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "checked_out"})
}

// =============================================================================
// BLOCKS AND OVERBOOKING POLICIES
// =============================================================================

// CreateBlock holds rooms out of the sellable pool.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	block, err := h.Availability.CreateRoomBlock(r.Context(),
		engine.RoomTypeID(req.RoomTypeID), rng, req.Rooms, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RoomBlockDTO{
		ID:         block.ID,
		RoomTypeID: string(block.RoomTypeID),
		StartDate:  block.Range.Start.String(),
		EndDate:    block.Range.End.String(),
		Rooms:      block.Rooms,
		Reason:     block.Reason,
		Active:     true,
	})
}

// ReleaseBlock returns held rooms to the pool. Idempotent.
func (h *Handler) ReleaseBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Availability.ReleaseRoomBlock(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

// CreateOverbookingPolicy raises the sellable ceiling for a range.
func (h *Handler) CreateOverbookingPolicy(w http.ResponseWriter, r *http.Request) {
	var req CreateOverbookingPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	current, err := h.Dates.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var roomTypeID *engine.RoomTypeID
	if req.RoomTypeID != "" {
		rt := engine.RoomTypeID(req.RoomTypeID)
		roomTypeID = &rt
	}

	policy, err := h.Availability.CreateOverbookingPolicy(r.Context(), current, roomTypeID, rng, req.Percent)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      policy.ID,
		"percent": policy.Percent,
	})
}

// =============================================================================
// NIGHT AUDIT
// =============================================================================

// RunAudit executes the full audit for the named business date.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	var req RunAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	businessDate, err := engine.ParseDate(req.BusinessDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Audit.Run(r.Context(), businessDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := AuditResultDTO{
		Run:             toAuditRunDTO(result.Run),
		Discrepancies:   toDiscrepancyDTOs(result.Discrepancies),
		NewBusinessDate: result.NewBusinessDate.String(),
	}
	if result.Revenue != nil {
		rev := toRevenueDTO(*result.Revenue)
		dto.Revenue = &rev
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetAuditRun returns the run report for a business date.
func (h *Handler) GetAuditRun(w http.ResponseWriter, r *http.Request) {
	date, err := engine.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	run, err := h.Store.GetAuditRun(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "No audit run for that date", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAuditRunDTO(*run))
}

// GetRevenue returns the revenue summary for a business date.
func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	date, err := engine.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	summary, err := h.Store.GetRevenueSummary(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "No revenue summary for that date", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRevenueDTO(*summary))
}

// GetDiscrepancies flags findings for ?date= without mutating anything.
func (h *Handler) GetDiscrepancies(w http.ResponseWriter, r *http.Request) {
	date, err := engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	findings, err := h.Audit.FlagDiscrepancies(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscrepancyDTOs(findings))
}

// =============================================================================
// DTO CONVERSION AND RESPONSE HELPERS
// =============================================================================

func toStayDTO(s engine.Stay) StayDTO {
	return StayDTO{
		ID:         string(s.ID),
		RoomTypeID: string(s.RoomTypeID),
		RatePlanID: string(s.RatePlanID),
		CheckIn:    s.Range.CheckIn.String(),
		CheckOut:   s.Range.CheckOut.String(),
		Rooms:      s.Rooms,
		Status:     string(s.Status),
		RoomNumber: s.RoomNumber,
		FolioID:    s.FolioID,
		Overbooked: s.Overbooked,
	}
}

func toAuditRunDTO(run engine.NightAuditRun) AuditRunDTO {
	dto := AuditRunDTO{
		ID:            run.ID,
		BusinessDate:  run.BusinessDate.String(),
		State:         string(run.State),
		ChargesPosted: run.ChargesPosted,
		Discrepancies: run.Discrepancies,
		Error:         run.Error,
		StartedAt:     run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toRevenueDTO(s engine.RevenueSummary) RevenueDTO {
	byType := make(map[string]string, len(s.ByRoomType))
	for id, m := range s.ByRoomType {
		byType[string(id)] = m.String()
	}
	byPlan := make(map[string]string, len(s.ByRatePlan))
	for id, m := range s.ByRatePlan {
		byPlan[string(id)] = m.String()
	}
	return RevenueDTO{
		Date:        s.Date.String(),
		Total:       s.Total.String(),
		RoomNights:  s.RoomNights,
		ByRoomType:  byType,
		ByRatePlan:  byPlan,
		GeneratedAt: s.GeneratedAt.Format(time.RFC3339),
	}
}

func toDiscrepancyDTOs(findings []engine.Discrepancy) []DiscrepancyDTO {
	dtos := make([]DiscrepancyDTO, len(findings))
	for i, d := range findings {
		dtos[i] = DiscrepancyDTO{
			Kind:       string(d.Kind),
			StayID:     string(d.StayID),
			RoomTypeID: string(d.RoomTypeID),
			Date:       d.Date.String(),
			Detail:     d.Detail,
		}
	}
	return dtos
}

// parseRange parses an inclusive range pair, writing a 400 on failure.
func parseRange(w http.ResponseWriter, startStr, endStr string) (engine.DateRange, bool) {
	start, err := engine.ParseDate(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return engine.DateRange{}, false
	}
	end, err := engine.ParseDate(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return engine.DateRange{}, false
	}
	return engine.DateRange{Start: start, End: end}, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error onto its HTTP status via the engine's
// classifiers.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case engine.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "Temporarily unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
