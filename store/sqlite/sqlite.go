/*
Package sqlite provides the SQLite-backed implementation of engine.TxStore.

PURPOSE:
  Persists every row family the engine needs: the business-date singleton,
  room types, per-day inventory counters, rate plans/rates/adjustments,
  overbooking policies, room blocks, stays, posted charges, revenue
  summaries, and night-audit runs. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  business_date:        Single-row current operating day (id is always 1)
  inventory_days:       Counter per (room_type, date); available may go
                        negative when overbooking is admitted
  room_type_rates:      Non-overlapping priced date ranges per (type, plan)
  overbooking_policies: seq is the creation-order tie-break key
  charges:              UNIQUE(stay_id, date) backs at-most-one-per-night

CONCURRENCY:
  Opened in WAL mode so readers never block. A mutex serializes WithTx
  bodies: the engine's check-then-decrement sequences must not interleave,
  and SQLite has a single writer anyway. Plain reads go straight to the
  pool.

DATE AND MONEY ENCODING:
  Dates are stored as their canonical YYYY-MM-DD string so range predicates
  work with plain text comparison. Money is stored as the decimal's exact
  string representation; no floats touch the database.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions and semantics
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stayware/pms-engine/engine"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every data method is
// written once and runs inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements engine.Store against a querier. It holds no locks.
type conn struct {
	q querier
}

// Store implements engine.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Business date singleton (id is always 1)
	CREATE TABLE IF NOT EXISTS business_date (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		date TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Room types
	CREATE TABLE IF NOT EXISTS room_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		total_rooms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Inventory ledger: one counter row per (room type, calendar day)
	CREATE TABLE IF NOT EXISTS inventory_days (
		room_type_id TEXT NOT NULL,
		date TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		available INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (room_type_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_inventory_days_date
		ON inventory_days(date);

	-- Rate plans
	CREATE TABLE IF NOT EXISTS rate_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		refundable BOOLEAN DEFAULT TRUE,
		min_advance_days INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Rate rows: non-overlapping inclusive ranges per (room type, plan).
	-- The rates engine enforces non-overlap; the index makes date lookup
	-- (the audit hot path) a range scan.
	CREATE TABLE IF NOT EXISTS room_type_rates (
		id TEXT PRIMARY KEY,
		room_type_id TEXT NOT NULL,
		rate_plan_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rates_type_plan_dates
		ON room_type_rates(room_type_id, rate_plan_id, start_date, end_date);

	-- Derivation adjustments (single level: a derived type is never a base)
	CREATE TABLE IF NOT EXISTS rate_adjustments (
		id TEXT PRIMARY KEY,
		base_room_type_id TEXT NOT NULL,
		derived_room_type_id TEXT NOT NULL,
		rate_plan_id TEXT,
		adjustment_type TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_base
		ON rate_adjustments(base_room_type_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_derived
		ON rate_adjustments(derived_room_type_id);

	-- Overbooking policies; seq is the creation-order tie-break key
	CREATE TABLE IF NOT EXISTS overbooking_policies (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		room_type_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		percent INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_dates
		ON overbooking_policies(start_date, end_date);

	-- Room blocks (group holds, out-of-order rooms)
	CREATE TABLE IF NOT EXISTS room_blocks (
		id TEXT PRIMARY KEY,
		room_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		rooms INTEGER NOT NULL,
		reason TEXT,
		released_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_type_dates
		ON room_blocks(room_type_id, start_date, end_date);

	-- Stays (exclusive check-out: the night of check_out is not consumed)
	CREATE TABLE IF NOT EXISTS stays (
		id TEXT PRIMARY KEY,
		room_type_id TEXT NOT NULL,
		rate_plan_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		rooms INTEGER NOT NULL,
		status TEXT NOT NULL,
		room_number TEXT,
		folio_id TEXT,
		overbooked BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stays_status_dates
		ON stays(status, check_in, check_out);

	-- Posted room-night charges; at most one per (stay, date)
	CREATE TABLE IF NOT EXISTS charges (
		id TEXT PRIMARY KEY,
		stay_id TEXT NOT NULL,
		folio_id TEXT,
		room_type_id TEXT NOT NULL,
		rate_plan_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		detail TEXT,
		posted_at TEXT NOT NULL,
		UNIQUE (stay_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_charges_date
		ON charges(date);

	-- Revenue summaries (replaced on regeneration)
	CREATE TABLE IF NOT EXISTS revenue_summaries (
		date TEXT PRIMARY KEY,
		total TEXT NOT NULL,
		room_nights INTEGER NOT NULL,
		by_room_type_json TEXT NOT NULL,
		by_rate_plan_json TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);

	-- Night-audit runs; one per business date
	CREATE TABLE IF NOT EXISTS night_audit_runs (
		id TEXT PRIMARY KEY,
		business_date TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL,
		charges_posted INTEGER DEFAULT 0,
		discrepancies INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn against a transactional view. The mutex serializes
// transaction bodies so a check-then-decrement sequence never interleaves
// with another writer.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"business_date", "room_types", "inventory_days", "rate_plans",
		"room_type_rates", "rate_adjustments", "overbooking_policies",
		"room_blocks", "stays", "charges", "revenue_summaries",
		"night_audit_runs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// BUSINESS DATE
// =============================================================================

func (c *conn) GetBusinessDate(ctx context.Context) (engine.Date, bool, error) {
	var dateStr string
	err := c.q.QueryRowContext(ctx,
		"SELECT date FROM business_date WHERE id = 1",
	).Scan(&dateStr)

	if err == sql.ErrNoRows {
		return engine.Date{}, false, nil
	}
	if err != nil {
		return engine.Date{}, false, err
	}

	d, err := engine.ParseDate(dateStr)
	if err != nil {
		return engine.Date{}, false, fmt.Errorf("corrupt business date %q: %w", dateStr, err)
	}
	return d, true, nil
}

func (c *conn) SetBusinessDate(ctx context.Context, d engine.Date) error {
	query := `
		INSERT INTO business_date (id, date, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			updated_at = excluded.updated_at
	`

	_, err := c.q.ExecContext(ctx, query, d.String(), nowRFC3339())
	return err
}

// =============================================================================
// ROOM TYPES
// =============================================================================

func (c *conn) SaveRoomType(ctx context.Context, rt engine.RoomType) error {
	query := `
		INSERT INTO room_types (id, name, total_rooms, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			total_rooms = excluded.total_rooms
	`

	_, err := c.q.ExecContext(ctx, query,
		rt.ID, rt.Name, rt.TotalRooms, formatTime(rt.CreatedAt))
	return err
}

func (c *conn) GetRoomType(ctx context.Context, id engine.RoomTypeID) (*engine.RoomType, error) {
	var rt engine.RoomType
	var createdAt string

	err := c.q.QueryRowContext(ctx,
		"SELECT id, name, total_rooms, created_at FROM room_types WHERE id = ?",
		id,
	).Scan(&rt.ID, &rt.Name, &rt.TotalRooms, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rt, nil
}

func (c *conn) ListRoomTypes(ctx context.Context) ([]engine.RoomType, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT id, name, total_rooms, created_at FROM room_types ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []engine.RoomType
	for rows.Next() {
		var rt engine.RoomType
		var createdAt string
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.TotalRooms, &createdAt); err != nil {
			return nil, err
		}
		rt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		types = append(types, rt)
	}
	return types, rows.Err()
}

// =============================================================================
// INVENTORY
// =============================================================================

func (c *conn) UpsertInventoryDay(ctx context.Context, day engine.InventoryDay) error {
	query := `
		INSERT INTO inventory_days (room_type_id, date, capacity, available, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_type_id, date) DO UPDATE SET
			capacity = excluded.capacity,
			available = excluded.available,
			updated_at = excluded.updated_at
	`

	_, err := c.q.ExecContext(ctx, query,
		day.RoomTypeID, day.Date.String(), day.Capacity, day.Available,
		formatTime(day.UpdatedAt))
	return err
}

func (c *conn) GetInventoryDay(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) (*engine.InventoryDay, error) {
	var day engine.InventoryDay
	var dateStr, updatedAt string

	err := c.q.QueryRowContext(ctx,
		`SELECT room_type_id, date, capacity, available, updated_at
		 FROM inventory_days WHERE room_type_id = ? AND date = ?`,
		roomTypeID, date.String(),
	).Scan(&day.RoomTypeID, &dateStr, &day.Capacity, &day.Available, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	day.Date, _ = engine.ParseDate(dateStr)
	day.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &day, nil
}

func (c *conn) AdjustAvailable(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date, delta int) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE inventory_days SET available = available + ?, updated_at = ?
		 WHERE room_type_id = ? AND date = ?`,
		delta, nowRFC3339(), roomTypeID, date.String(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &engine.NoInventoryRowError{RoomTypeID: roomTypeID, Date: date}
	}
	return nil
}

func (c *conn) ListInventoryDays(ctx context.Context, roomTypeID engine.RoomTypeID, r engine.DateRange) ([]engine.InventoryDay, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT room_type_id, date, capacity, available, updated_at
		 FROM inventory_days
		 WHERE room_type_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		roomTypeID, r.Start.String(), r.End.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []engine.InventoryDay
	for rows.Next() {
		var day engine.InventoryDay
		var dateStr, updatedAt string
		if err := rows.Scan(&day.RoomTypeID, &dateStr, &day.Capacity, &day.Available, &updatedAt); err != nil {
			return nil, err
		}
		day.Date, _ = engine.ParseDate(dateStr)
		day.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		days = append(days, day)
	}
	return days, rows.Err()
}

// =============================================================================
// RATE PLANS, RATES, ADJUSTMENTS
// =============================================================================

func (c *conn) SaveRatePlan(ctx context.Context, plan engine.RatePlan) error {
	query := `
		INSERT INTO rate_plans (id, name, refundable, min_advance_days, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			refundable = excluded.refundable,
			min_advance_days = excluded.min_advance_days
	`

	_, err := c.q.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.Refundable, plan.MinAdvanceDays,
		formatTime(plan.CreatedAt))
	return err
}

func (c *conn) GetRatePlan(ctx context.Context, id engine.RatePlanID) (*engine.RatePlan, error) {
	var plan engine.RatePlan
	var createdAt string

	err := c.q.QueryRowContext(ctx,
		"SELECT id, name, refundable, min_advance_days, created_at FROM rate_plans WHERE id = ?",
		id,
	).Scan(&plan.ID, &plan.Name, &plan.Refundable, &plan.MinAdvanceDays, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &plan, nil
}

func (c *conn) ListRatePlans(ctx context.Context) ([]engine.RatePlan, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT id, name, refundable, min_advance_days, created_at FROM rate_plans ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []engine.RatePlan
	for rows.Next() {
		var plan engine.RatePlan
		var createdAt string
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Refundable, &plan.MinAdvanceDays, &createdAt); err != nil {
			return nil, err
		}
		plan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (c *conn) SaveRate(ctx context.Context, rate engine.RoomTypeRate) error {
	query := `
		INSERT INTO room_type_rates
		(id, room_type_id, rate_plan_id, start_date, end_date, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			price = excluded.price
	`

	_, err := c.q.ExecContext(ctx, query,
		rate.ID, rate.RoomTypeID, rate.RatePlanID,
		rate.Range.Start.String(), rate.Range.End.String(),
		rate.Price.Value.String(), formatTime(rate.CreatedAt))
	return err
}

func (c *conn) DeleteRate(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, "DELETE FROM room_type_rates WHERE id = ?", id)
	return err
}

func (c *conn) ListRates(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID) ([]engine.RoomTypeRate, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, rate_plan_id, start_date, end_date, price, created_at
		 FROM room_type_rates
		 WHERE room_type_id = ? AND rate_plan_id = ?
		 ORDER BY start_date ASC`,
		roomTypeID, planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []engine.RoomTypeRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (c *conn) FindRate(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (*engine.RoomTypeRate, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, rate_plan_id, start_date, end_date, price, created_at
		 FROM room_type_rates
		 WHERE room_type_id = ? AND rate_plan_id = ? AND start_date <= ? AND end_date >= ?
		 LIMIT 1`,
		roomTypeID, planID, date.String(), date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rate, err := scanRate(rows)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func scanRate(rows *sql.Rows) (engine.RoomTypeRate, error) {
	var rate engine.RoomTypeRate
	var startStr, endStr, priceStr, createdAt string

	err := rows.Scan(&rate.ID, &rate.RoomTypeID, &rate.RatePlanID,
		&startStr, &endStr, &priceStr, &createdAt)
	if err != nil {
		return rate, fmt.Errorf("failed to scan rate: %w", err)
	}

	rate.Range.Start, _ = engine.ParseDate(startStr)
	rate.Range.End, _ = engine.ParseDate(endStr)
	rate.Price, _ = engine.MoneyFromString(priceStr)
	rate.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return rate, nil
}

func (c *conn) SaveAdjustment(ctx context.Context, adj engine.RateAdjustment) error {
	var planID *string
	if adj.RatePlanID != nil {
		p := string(*adj.RatePlanID)
		planID = &p
	}

	query := `
		INSERT INTO rate_adjustments
		(id, base_room_type_id, derived_room_type_id, rate_plan_id, adjustment_type, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adjustment_type = excluded.adjustment_type,
			value = excluded.value
	`

	_, err := c.q.ExecContext(ctx, query,
		adj.ID, adj.BaseRoomTypeID, adj.DerivedRoomTypeID, planID,
		adj.Type, adj.Value.String(), formatTime(adj.CreatedAt))
	return err
}

func (c *conn) ListAdjustmentsByBase(ctx context.Context, baseRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	return c.queryAdjustments(ctx,
		`SELECT id, base_room_type_id, derived_room_type_id, rate_plan_id, adjustment_type, value, created_at
		 FROM rate_adjustments WHERE base_room_type_id = ? ORDER BY created_at ASC`,
		baseRoomTypeID)
}

func (c *conn) ListAdjustmentsByDerived(ctx context.Context, derivedRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	return c.queryAdjustments(ctx,
		`SELECT id, base_room_type_id, derived_room_type_id, rate_plan_id, adjustment_type, value, created_at
		 FROM rate_adjustments WHERE derived_room_type_id = ? ORDER BY created_at ASC`,
		derivedRoomTypeID)
}

func (c *conn) queryAdjustments(ctx context.Context, query string, args ...any) ([]engine.RateAdjustment, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjs []engine.RateAdjustment
	for rows.Next() {
		var adj engine.RateAdjustment
		var planID sql.NullString
		var valueStr, createdAt string
		if err := rows.Scan(&adj.ID, &adj.BaseRoomTypeID, &adj.DerivedRoomTypeID,
			&planID, &adj.Type, &valueStr, &createdAt); err != nil {
			return nil, err
		}
		if planID.Valid {
			p := engine.RatePlanID(planID.String)
			adj.RatePlanID = &p
		}
		m, _ := engine.MoneyFromString(valueStr)
		adj.Value = m.Value
		adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		adjs = append(adjs, adj)
	}
	return adjs, rows.Err()
}

// =============================================================================
// OVERBOOKING POLICIES
// =============================================================================

func (c *conn) SaveOverbookingPolicy(ctx context.Context, p engine.OverbookingPolicy) error {
	var roomTypeID *string
	if p.RoomTypeID != nil {
		rt := string(*p.RoomTypeID)
		roomTypeID = &rt
	}

	// Seq 0 means unassigned: take the next creation-order key.
	query := `
		INSERT INTO overbooking_policies
		(id, seq, room_type_id, start_date, end_date, percent, created_at)
		VALUES (?,
			CASE WHEN ? > 0 THEN ?
			     ELSE COALESCE((SELECT MAX(seq) FROM overbooking_policies), 0) + 1
			END,
			?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			percent = excluded.percent
	`

	_, err := c.q.ExecContext(ctx, query,
		p.ID, p.Seq, p.Seq, roomTypeID,
		p.Range.Start.String(), p.Range.End.String(),
		p.Percent, formatTime(p.CreatedAt))
	return err
}

func (c *conn) ListOverbookingPolicies(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.OverbookingPolicy, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, seq, room_type_id, start_date, end_date, percent, created_at
		 FROM overbooking_policies
		 WHERE (room_type_id IS NULL OR room_type_id = ?)
		   AND start_date <= ? AND end_date >= ?
		 ORDER BY seq ASC`,
		roomTypeID, date.String(), date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []engine.OverbookingPolicy
	for rows.Next() {
		var p engine.OverbookingPolicy
		var rtID sql.NullString
		var startStr, endStr, createdAt string
		if err := rows.Scan(&p.ID, &p.Seq, &rtID, &startStr, &endStr, &p.Percent, &createdAt); err != nil {
			return nil, err
		}
		if rtID.Valid {
			rt := engine.RoomTypeID(rtID.String)
			p.RoomTypeID = &rt
		}
		p.Range.Start, _ = engine.ParseDate(startStr)
		p.Range.End, _ = engine.ParseDate(endStr)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// =============================================================================
// ROOM BLOCKS
// =============================================================================

func (c *conn) SaveRoomBlock(ctx context.Context, b engine.RoomBlock) error {
	var releasedAt *string
	if b.ReleasedAt != nil {
		t := b.ReleasedAt.Format(time.RFC3339)
		releasedAt = &t
	}

	query := `
		INSERT INTO room_blocks
		(id, room_type_id, start_date, end_date, rooms, reason, released_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rooms = excluded.rooms,
			reason = excluded.reason,
			released_at = excluded.released_at
	`

	_, err := c.q.ExecContext(ctx, query,
		b.ID, b.RoomTypeID, b.Range.Start.String(), b.Range.End.String(),
		b.Rooms, b.Reason, releasedAt, formatTime(b.CreatedAt))
	return err
}

func (c *conn) GetRoomBlock(ctx context.Context, id string) (*engine.RoomBlock, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, start_date, end_date, rooms, reason, released_at, created_at
		 FROM room_blocks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	b, err := scanBlock(rows)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *conn) ReleaseRoomBlock(ctx context.Context, id string, at time.Time) error {
	res, err := c.q.ExecContext(ctx,
		"UPDATE room_blocks SET released_at = ? WHERE id = ? AND released_at IS NULL",
		at.Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either unknown or already released; distinguish for the caller.
		existing, err := c.GetRoomBlock(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: room block %s", engine.ErrNotFound, id)
		}
		return nil // already released, idempotent
	}
	return nil
}

func (c *conn) ActiveBlocks(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.RoomBlock, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, start_date, end_date, rooms, reason, released_at, created_at
		 FROM room_blocks
		 WHERE room_type_id = ? AND released_at IS NULL
		   AND start_date <= ? AND end_date >= ?`,
		roomTypeID, date.String(), date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []engine.RoomBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func scanBlock(rows *sql.Rows) (engine.RoomBlock, error) {
	var b engine.RoomBlock
	var startStr, endStr, createdAt string
	var reason, releasedAt sql.NullString

	err := rows.Scan(&b.ID, &b.RoomTypeID, &startStr, &endStr,
		&b.Rooms, &reason, &releasedAt, &createdAt)
	if err != nil {
		return b, fmt.Errorf("failed to scan room block: %w", err)
	}

	b.Range.Start, _ = engine.ParseDate(startStr)
	b.Range.End, _ = engine.ParseDate(endStr)
	b.Reason = reason.String
	if releasedAt.Valid {
		t, _ := time.Parse(time.RFC3339, releasedAt.String)
		b.ReleasedAt = &t
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return b, nil
}

// =============================================================================
// STAYS
// =============================================================================

func (c *conn) SaveStay(ctx context.Context, stay engine.Stay) error {
	query := `
		INSERT INTO stays
		(id, room_type_id, rate_plan_id, check_in, check_out, rooms, status,
		 room_number, folio_id, overbooked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			room_number = excluded.room_number,
			updated_at = excluded.updated_at
	`

	_, err := c.q.ExecContext(ctx, query,
		stay.ID, stay.RoomTypeID, stay.RatePlanID,
		stay.Range.CheckIn.String(), stay.Range.CheckOut.String(),
		stay.Rooms, stay.Status, stay.RoomNumber, stay.FolioID, stay.Overbooked,
		formatTime(stay.CreatedAt), formatTime(stay.UpdatedAt))
	return err
}

func (c *conn) GetStay(ctx context.Context, id engine.StayID) (*engine.Stay, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, rate_plan_id, check_in, check_out, rooms, status,
		        room_number, folio_id, overbooked, created_at, updated_at
		 FROM stays WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	stay, err := scanStay(rows)
	if err != nil {
		return nil, err
	}
	return &stay, nil
}

func (c *conn) ListInHouseStays(ctx context.Context, date engine.Date) ([]engine.Stay, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, room_type_id, rate_plan_id, check_in, check_out, rooms, status,
		        room_number, folio_id, overbooked, created_at, updated_at
		 FROM stays
		 WHERE status = ? AND check_in <= ? AND check_out > ?
		 ORDER BY created_at ASC`,
		engine.StayInHouse, date.String(), date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stays []engine.Stay
	for rows.Next() {
		stay, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		stays = append(stays, stay)
	}
	return stays, rows.Err()
}

func scanStay(rows *sql.Rows) (engine.Stay, error) {
	var stay engine.Stay
	var checkIn, checkOut, createdAt, updatedAt string
	var roomNumber, folioID sql.NullString

	err := rows.Scan(&stay.ID, &stay.RoomTypeID, &stay.RatePlanID,
		&checkIn, &checkOut, &stay.Rooms, &stay.Status,
		&roomNumber, &folioID, &stay.Overbooked, &createdAt, &updatedAt)
	if err != nil {
		return stay, fmt.Errorf("failed to scan stay: %w", err)
	}

	stay.Range.CheckIn, _ = engine.ParseDate(checkIn)
	stay.Range.CheckOut, _ = engine.ParseDate(checkOut)
	stay.RoomNumber = roomNumber.String
	stay.FolioID = folioID.String
	stay.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	stay.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return stay, nil
}

// =============================================================================
// CHARGES
// =============================================================================

func (c *conn) SaveCharge(ctx context.Context, charge engine.Charge) error {
	query := `
		INSERT INTO charges
		(id, stay_id, folio_id, room_type_id, rate_plan_id, date, amount, detail, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.q.ExecContext(ctx, query,
		charge.ID, charge.StayID, charge.FolioID, charge.RoomTypeID,
		charge.RatePlanID, charge.Date.String(), charge.Amount.Value.String(),
		charge.Detail, formatTime(charge.PostedAt))

	if err != nil && isUniqueConstraintError(err) {
		return fmt.Errorf("%w: charge already posted for stay %s on %s",
			engine.ErrConflict, charge.StayID, charge.Date)
	}
	return err
}

func (c *conn) ChargeExists(ctx context.Context, stayID engine.StayID, date engine.Date) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM charges WHERE stay_id = ? AND date = ?",
		stayID, date.String(),
	).Scan(&count)
	return count > 0, err
}

func (c *conn) ListChargesByDate(ctx context.Context, date engine.Date) ([]engine.Charge, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, stay_id, folio_id, room_type_id, rate_plan_id, date, amount, detail, posted_at
		 FROM charges WHERE date = ? ORDER BY posted_at ASC`,
		date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []engine.Charge
	for rows.Next() {
		var charge engine.Charge
		var dateStr, amountStr, postedAt string
		var folioID, detail sql.NullString
		if err := rows.Scan(&charge.ID, &charge.StayID, &folioID, &charge.RoomTypeID,
			&charge.RatePlanID, &dateStr, &amountStr, &detail, &postedAt); err != nil {
			return nil, err
		}
		charge.FolioID = folioID.String
		charge.Detail = detail.String
		charge.Date, _ = engine.ParseDate(dateStr)
		charge.Amount, _ = engine.MoneyFromString(amountStr)
		charge.PostedAt, _ = time.Parse(time.RFC3339, postedAt)
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}

// =============================================================================
// NIGHT AUDIT RUNS AND REVENUE SUMMARIES
// =============================================================================

func (c *conn) SaveAuditRun(ctx context.Context, run engine.NightAuditRun) error {
	var completedAt *string
	if run.CompletedAt != nil {
		t := run.CompletedAt.Format(time.RFC3339)
		completedAt = &t
	}

	query := `
		INSERT INTO night_audit_runs
		(id, business_date, state, charges_posted, discrepancies, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_date) DO UPDATE SET
			state = excluded.state,
			charges_posted = excluded.charges_posted,
			discrepancies = excluded.discrepancies,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := c.q.ExecContext(ctx, query,
		run.ID, run.BusinessDate.String(), run.State, run.ChargesPosted,
		run.Discrepancies, nullString(run.Error),
		formatTime(run.StartedAt), completedAt)
	return err
}

func (c *conn) GetAuditRun(ctx context.Context, businessDate engine.Date) (*engine.NightAuditRun, error) {
	var run engine.NightAuditRun
	var dateStr, startedAt string
	var errStr, completedAt sql.NullString

	err := c.q.QueryRowContext(ctx,
		`SELECT id, business_date, state, charges_posted, discrepancies, error, started_at, completed_at
		 FROM night_audit_runs WHERE business_date = ?`,
		businessDate.String(),
	).Scan(&run.ID, &dateStr, &run.State, &run.ChargesPosted,
		&run.Discrepancies, &errStr, &startedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.BusinessDate, _ = engine.ParseDate(dateStr)
	run.Error = errStr.String
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		run.CompletedAt = &t
	}
	return &run, nil
}

func (c *conn) SaveRevenueSummary(ctx context.Context, summary engine.RevenueSummary) error {
	byType := make(map[string]string, len(summary.ByRoomType))
	for id, m := range summary.ByRoomType {
		byType[string(id)] = m.Value.String()
	}
	byPlan := make(map[string]string, len(summary.ByRatePlan))
	for id, m := range summary.ByRatePlan {
		byPlan[string(id)] = m.Value.String()
	}
	byTypeJSON, _ := json.Marshal(byType)
	byPlanJSON, _ := json.Marshal(byPlan)

	query := `
		INSERT INTO revenue_summaries
		(date, total, room_nights, by_room_type_json, by_rate_plan_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total = excluded.total,
			room_nights = excluded.room_nights,
			by_room_type_json = excluded.by_room_type_json,
			by_rate_plan_json = excluded.by_rate_plan_json,
			generated_at = excluded.generated_at
	`

	_, err := c.q.ExecContext(ctx, query,
		summary.Date.String(), summary.Total.Value.String(), summary.RoomNights,
		string(byTypeJSON), string(byPlanJSON), formatTime(summary.GeneratedAt))
	return err
}

func (c *conn) GetRevenueSummary(ctx context.Context, date engine.Date) (*engine.RevenueSummary, error) {
	var summary engine.RevenueSummary
	var dateStr, totalStr, byTypeJSON, byPlanJSON, generatedAt string

	err := c.q.QueryRowContext(ctx,
		`SELECT date, total, room_nights, by_room_type_json, by_rate_plan_json, generated_at
		 FROM revenue_summaries WHERE date = ?`,
		date.String(),
	).Scan(&dateStr, &totalStr, &summary.RoomNights, &byTypeJSON, &byPlanJSON, &generatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	summary.Date, _ = engine.ParseDate(dateStr)
	summary.Total, _ = engine.MoneyFromString(totalStr)
	summary.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)

	var byType, byPlan map[string]string
	json.Unmarshal([]byte(byTypeJSON), &byType)
	json.Unmarshal([]byte(byPlanJSON), &byPlan)
	summary.ByRoomType = make(map[engine.RoomTypeID]engine.Money, len(byType))
	for id, v := range byType {
		m, _ := engine.MoneyFromString(v)
		summary.ByRoomType[engine.RoomTypeID(id)] = m
	}
	summary.ByRatePlan = make(map[engine.RatePlanID]engine.Money, len(byPlan))
	for id, v := range byPlan {
		m, _ := engine.MoneyFromString(v)
		summary.ByRatePlan[engine.RatePlanID(id)] = m
	}

	return &summary, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// formatTime stores zero times as now so NOT NULL columns always hold a
// real timestamp.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
