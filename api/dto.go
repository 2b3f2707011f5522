/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES ON THE WIRE:
  Every calendar day crosses the API as a YYYY-MM-DD string. Money crosses
  as a fixed two-decimal string; clients never see floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// BUSINESS DATE
// =============================================================================

// BusinessDateDTO is the current operating day.
type BusinessDateDTO struct {
	BusinessDate string `json:"business_date"`
}

// SetBusinessDateRequest overrides the operating day (admin only).
type SetBusinessDateRequest struct {
	BusinessDate string `json:"business_date"`
	Role         string `json:"role"`
}

// =============================================================================
// ROOM TYPES AND INVENTORY
// =============================================================================

// RoomTypeDTO represents a sellable room category.
type RoomTypeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalRooms int    `json:"total_rooms"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateRoomTypeRequest registers a room type.
type CreateRoomTypeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalRooms int    `json:"total_rooms"`
}

// SeedInventoryRequest creates counter rows for a date range. An empty
// room_type_id seeds every room type at its physical capacity.
type SeedInventoryRequest struct {
	RoomTypeID string `json:"room_type_id,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Capacity   *int   `json:"capacity,omitempty"`
}

// InventoryDayDTO is one ledger cell.
type InventoryDayDTO struct {
	RoomTypeID string `json:"room_type_id"`
	Date       string `json:"date"`
	Capacity   int    `json:"capacity"`
	Available  int    `json:"available"`
	Sold       int    `json:"sold"`
}

// =============================================================================
// RATES
// =============================================================================

// RatePlanDTO represents a named pricing policy.
type RatePlanDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Refundable     bool   `json:"refundable"`
	MinAdvanceDays int    `json:"min_advance_days"`
}

// CreateRatePlanRequest registers a rate plan.
type CreateRatePlanRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Refundable     bool   `json:"refundable"`
	MinAdvanceDays int    `json:"min_advance_days"`
}

// CreateRateRequest writes a direct rate row.
type CreateRateRequest struct {
	RoomTypeID string `json:"room_type_id"`
	RatePlanID string `json:"rate_plan_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Price      string `json:"price"`
}

// RateDTO is a resolved nightly price.
type RateDTO struct {
	RoomTypeID string `json:"room_type_id"`
	RatePlanID string `json:"rate_plan_id"`
	Date       string `json:"date"`
	Price      string `json:"price"`
}

// CreateAdjustmentRequest registers a derived-pricing rule.
type CreateAdjustmentRequest struct {
	BaseRoomTypeID    string  `json:"base_room_type_id"`
	DerivedRoomTypeID string  `json:"derived_room_type_id"`
	RatePlanID        *string `json:"rate_plan_id,omitempty"`
	Type              string  `json:"type"`
	Value             string  `json:"value"`
}

// UpdateBaseRateRequest replaces a base rate and propagates to derived types.
type UpdateBaseRateRequest struct {
	RoomTypeID string `json:"room_type_id"`
	RatePlanID string `json:"rate_plan_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Price      string `json:"price"`
}

// =============================================================================
// AVAILABILITY AND STAYS
// =============================================================================

// AvailabilityDTO is the advisory answer for a prospective stay window.
type AvailabilityDTO struct {
	RoomTypeID     string `json:"room_type_id"`
	CheckIn        string `json:"check_in"`
	CheckOut       string `json:"check_out"`
	RoomsAvailable int    `json:"rooms_available"`
}

// BookStayRequest asks to consume inventory for a stay.
type BookStayRequest struct {
	RoomTypeID      string `json:"room_type_id"`
	RatePlanID      string `json:"rate_plan_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Rooms           int    `json:"rooms"`
	OverridePercent *int   `json:"override_percent,omitempty"`
}

// StayDTO represents a stay in API responses.
type StayDTO struct {
	ID         string `json:"id"`
	RoomTypeID string `json:"room_type_id"`
	RatePlanID string `json:"rate_plan_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Rooms      int    `json:"rooms"`
	Status     string `json:"status"`
	RoomNumber string `json:"room_number,omitempty"`
	FolioID    string `json:"folio_id,omitempty"`
	Overbooked bool   `json:"overbooked"`
}

// BookStayResponse is the booking decision.
type BookStayResponse struct {
	Accepted       bool   `json:"accepted"`
	StayID         string `json:"stay_id,omitempty"`
	RoomsAvailable int    `json:"rooms_available"`
	Overbooked     bool   `json:"overbooked"`
}

// AssignRoomRequest sets the physical room for a stay.
type AssignRoomRequest struct {
	RoomNumber string `json:"room_number"`
}

// =============================================================================
// BLOCKS AND OVERBOOKING POLICIES
// =============================================================================

// CreateBlockRequest holds rooms out of the sellable pool.
type CreateBlockRequest struct {
	RoomTypeID string `json:"room_type_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Rooms      int    `json:"rooms"`
	Reason     string `json:"reason"`
}

// RoomBlockDTO represents a block in API responses.
type RoomBlockDTO struct {
	ID         string `json:"id"`
	RoomTypeID string `json:"room_type_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Rooms      int    `json:"rooms"`
	Reason     string `json:"reason,omitempty"`
	Active     bool   `json:"active"`
}

// CreateOverbookingPolicyRequest raises the sellable ceiling for a range.
// An empty room_type_id makes the policy global.
type CreateOverbookingPolicyRequest struct {
	RoomTypeID string `json:"room_type_id,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Percent    int    `json:"percent"`
}

// =============================================================================
// NIGHT AUDIT
// =============================================================================

// RunAuditRequest names the business date the caller believes is current.
type RunAuditRequest struct {
	BusinessDate string `json:"business_date"`
}

// AuditRunDTO reports one audit attempt.
type AuditRunDTO struct {
	ID            string `json:"id"`
	BusinessDate  string `json:"business_date"`
	State         string `json:"state"`
	ChargesPosted int    `json:"charges_posted"`
	Discrepancies int    `json:"discrepancies"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// AuditResultDTO is the full outcome of a completed run.
type AuditResultDTO struct {
	Run             AuditRunDTO       `json:"run"`
	Revenue         *RevenueDTO       `json:"revenue,omitempty"`
	Discrepancies   []DiscrepancyDTO  `json:"discrepancies"`
	NewBusinessDate string            `json:"new_business_date"`
}

// RevenueDTO is the daily revenue summary.
type RevenueDTO struct {
	Date        string            `json:"date"`
	Total       string            `json:"total"`
	RoomNights  int               `json:"room_nights"`
	ByRoomType  map[string]string `json:"by_room_type"`
	ByRatePlan  map[string]string `json:"by_rate_plan"`
	GeneratedAt string            `json:"generated_at"`
}

// DiscrepancyDTO is one audit finding.
type DiscrepancyDTO struct {
	Kind       string `json:"kind"`
	StayID     string `json:"stay_id,omitempty"`
	RoomTypeID string `json:"room_type_id,omitempty"`
	Date       string `json:"date"`
	Detail     string `json:"detail"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a loadable demo property.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
