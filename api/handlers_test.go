package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayware/pms-engine/api"
	"github.com/stayware/pms-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	return api.NewRouter(api.NewHandler(store.NewMemory(), zap.NewNop()))
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

// setProperty drives the API through a minimal setup: business date
// 2024-06-01, ten standard rooms seeded for June, priced at 100.00 on bar.
func setProperty(t *testing.T, router http.Handler) {
	t.Helper()

	rec := do(t, router, http.MethodPut, "/api/business-date",
		api.SetBusinessDateRequest{BusinessDate: "2024-06-01", Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/room-types",
		api.CreateRoomTypeRequest{ID: "standard", Name: "Standard", TotalRooms: 10})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/inventory/seed",
		api.SeedInventoryRequest{RoomTypeID: "standard", StartDate: "2024-06-01", EndDate: "2024-06-30"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/rate-plans",
		api.CreateRatePlanRequest{ID: "bar", Name: "Best Available Rate", Refundable: true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/rates", api.CreateRateRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		StartDate: "2024-06-01", EndDate: "2024-06-30", Price: "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

// =============================================================================
// BUSINESS DATE
// =============================================================================

func TestAPI_BusinessDate(t *testing.T) {
	router := newTestAPI(t)

	// The override is admin-only.
	rec := do(t, router, http.MethodPut, "/api/business-date",
		api.SetBusinessDateRequest{BusinessDate: "2024-06-01", Role: "front_desk"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/business-date",
		api.SetBusinessDateRequest{BusinessDate: "2024-06-01", Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	var dto api.BusinessDateDTO
	rec = do(t, router, http.MethodGet, "/api/business-date", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &dto)
	assert.Equal(t, "2024-06-01", dto.BusinessDate)

	rec = do(t, router, http.MethodPost, "/api/business-date/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &dto)
	assert.Equal(t, "2024-06-02", dto.BusinessDate)
}

// =============================================================================
// BOOKING FLOW
// =============================================================================

func TestAPI_BookingFlow(t *testing.T) {
	// GIVEN: A seeded, priced property
	// WHEN: Checking, booking, re-checking, cancelling over the API
	// THEN: Availability tracks every step

	router := newTestAPI(t)
	setProperty(t, router)

	availQuery := "/api/availability?room_type=standard&check_in=2024-06-01&check_out=2024-06-03"

	var avail api.AvailabilityDTO
	rec := do(t, router, http.MethodGet, availQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &avail)
	assert.Equal(t, 10, avail.RoomsAvailable)

	var booked api.BookStayResponse
	rec = do(t, router, http.MethodPost, "/api/stays", api.BookStayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: "2024-06-01", CheckOut: "2024-06-03", Rooms: 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &booked)
	assert.True(t, booked.Accepted)
	assert.False(t, booked.Overbooked)
	require.NotEmpty(t, booked.StayID)

	rec = do(t, router, http.MethodGet, availQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &avail)
	assert.Equal(t, 8, avail.RoomsAvailable)

	var stay api.StayDTO
	rec = do(t, router, http.MethodGet, "/api/stays/"+booked.StayID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stay)
	assert.Equal(t, "reserved", stay.Status)
	assert.Equal(t, 2, stay.Rooms)

	rec = do(t, router, http.MethodPost, "/api/stays/"+booked.StayID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, availQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &avail)
	assert.Equal(t, 10, avail.RoomsAvailable)
}

func TestAPI_BookStay_SoldOutIs409(t *testing.T) {
	router := newTestAPI(t)
	setProperty(t, router)

	rec := do(t, router, http.MethodPost, "/api/stays", api.BookStayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: "2024-06-01", CheckOut: "2024-06-02", Rooms: 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/stays", api.BookStayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: "2024-06-01", CheckOut: "2024-06-02", Rooms: 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	router := newTestAPI(t)
	setProperty(t, router)

	// Unpriced date -> 404
	rec := do(t, router, http.MethodGet,
		"/api/rates/effective?room_type=standard&plan=bar&date=2024-07-15", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown stay -> 404
	rec = do(t, router, http.MethodGet, "/api/stays/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Reversed stay window -> 400
	rec = do(t, router, http.MethodPost, "/api/stays", api.BookStayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: "2024-06-03", CheckOut: "2024-06-01", Rooms: 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Rate row starting before the business date -> 400
	rec = do(t, router, http.MethodPost, "/api/rates", api.CreateRateRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		StartDate: "2024-05-01", EndDate: "2024-05-10", Price: "90.00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// NIGHT AUDIT OVER THE API
// =============================================================================

func TestAPI_AuditFlow(t *testing.T) {
	router := newTestAPI(t)
	setProperty(t, router)

	var booked api.BookStayResponse
	rec := do(t, router, http.MethodPost, "/api/stays", api.BookStayRequest{
		RoomTypeID: "standard", RatePlanID: "bar",
		CheckIn: "2024-06-01", CheckOut: "2024-06-03", Rooms: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &booked)

	rec = do(t, router, http.MethodPost, "/api/stays/"+booked.StayID+"/check-in",
		api.AssignRoomRequest{RoomNumber: "204"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result api.AuditResultDTO
	rec = do(t, router, http.MethodPost, "/api/audit/run",
		api.RunAuditRequest{BusinessDate: "2024-06-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)

	assert.Equal(t, "date_advanced", result.Run.State)
	assert.Equal(t, 1, result.Run.ChargesPosted)
	assert.Equal(t, "2024-06-02", result.NewBusinessDate)
	require.NotNil(t, result.Revenue)
	assert.Equal(t, "100.00", result.Revenue.Total)
	assert.Empty(t, result.Discrepancies)

	// Re-running the same night is a conflict.
	rec = do(t, router, http.MethodPost, "/api/audit/run",
		api.RunAuditRequest{BusinessDate: "2024-06-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Auditing a date other than the current one is a caller mistake.
	rec = do(t, router, http.MethodPost, "/api/audit/run",
		api.RunAuditRequest{BusinessDate: "2024-06-05"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var run api.AuditRunDTO
	rec = do(t, router, http.MethodGet, "/api/audit/runs/2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &run)
	assert.Equal(t, "date_advanced", run.State)
	assert.NotEmpty(t, run.CompletedAt)

	var revenue api.RevenueDTO
	rec = do(t, router, http.MethodGet, "/api/audit/revenue/2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &revenue)
	assert.Equal(t, "100.00", revenue.Total)
	assert.Equal(t, 1, revenue.RoomNights)

	rec = do(t, router, http.MethodGet, "/api/audit/revenue/2024-06-07", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	router := newTestAPI(t)

	var list []api.ScenarioDTO
	rec := do(t, router, http.MethodGet, "/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Len(t, list, 2)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "city-hotel"})
	require.Equal(t, http.StatusOK, rec.Code)

	var current api.ScenarioDTO
	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &current)
	assert.Equal(t, "city-hotel", current.ID)

	// The scenario left a real property behind.
	var types []api.RoomTypeDTO
	rec = do(t, router, http.MethodGet, "/api/room-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &types)
	assert.Len(t, types, 3)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "no-such-scenario"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	router := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
