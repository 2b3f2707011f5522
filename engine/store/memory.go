// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stayware/pms-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation with snapshot/rollback transactions
// =============================================================================

type invKey struct {
	RoomTypeID engine.RoomTypeID
	Date       string
}

type chargeKey struct {
	StayID engine.StayID
	Date   string
}

type Memory struct {
	mu sync.RWMutex

	businessDate *engine.Date
	roomTypes    map[engine.RoomTypeID]engine.RoomType
	inventory    map[invKey]engine.InventoryDay
	ratePlans    map[engine.RatePlanID]engine.RatePlan
	rates        map[string]engine.RoomTypeRate
	adjustments  map[string]engine.RateAdjustment
	policies     map[string]engine.OverbookingPolicy
	policySeq    int64
	blocks       map[string]engine.RoomBlock
	stays        map[engine.StayID]engine.Stay
	charges      map[chargeKey]engine.Charge
	summaries    map[string]engine.RevenueSummary
	runs         map[string]engine.NightAuditRun
}

func NewMemory() *Memory {
	return &Memory{
		roomTypes:   make(map[engine.RoomTypeID]engine.RoomType),
		inventory:   make(map[invKey]engine.InventoryDay),
		ratePlans:   make(map[engine.RatePlanID]engine.RatePlan),
		rates:       make(map[string]engine.RoomTypeRate),
		adjustments: make(map[string]engine.RateAdjustment),
		policies:    make(map[string]engine.OverbookingPolicy),
		blocks:      make(map[string]engine.RoomBlock),
		stays:       make(map[engine.StayID]engine.Stay),
		charges:     make(map[chargeKey]engine.Charge),
		summaries:   make(map[string]engine.RevenueSummary),
		runs:        make(map[string]engine.NightAuditRun),
	}
}

var _ engine.TxStore = (*Memory)(nil)

// =============================================================================
// TRANSACTIONS - Snapshot the maps, restore on error
// =============================================================================

// WithTx executes fn against an unlocked view while holding the write lock,
// restoring the pre-transaction snapshot if fn fails. Holding the lock for
// the whole body also serializes concurrent decrements, matching the
// row-locking the SQLite store gets from its single-writer transactions.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	businessDate *engine.Date
	roomTypes    map[engine.RoomTypeID]engine.RoomType
	inventory    map[invKey]engine.InventoryDay
	ratePlans    map[engine.RatePlanID]engine.RatePlan
	rates        map[string]engine.RoomTypeRate
	adjustments  map[string]engine.RateAdjustment
	policies     map[string]engine.OverbookingPolicy
	policySeq    int64
	blocks       map[string]engine.RoomBlock
	stays        map[engine.StayID]engine.Stay
	charges      map[chargeKey]engine.Charge
	summaries    map[string]engine.RevenueSummary
	runs         map[string]engine.NightAuditRun
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Memory) snapshot() memorySnapshot {
	var bd *engine.Date
	if m.businessDate != nil {
		d := *m.businessDate
		bd = &d
	}
	return memorySnapshot{
		businessDate: bd,
		roomTypes:    copyMap(m.roomTypes),
		inventory:    copyMap(m.inventory),
		ratePlans:    copyMap(m.ratePlans),
		rates:        copyMap(m.rates),
		adjustments:  copyMap(m.adjustments),
		policies:     copyMap(m.policies),
		policySeq:    m.policySeq,
		blocks:       copyMap(m.blocks),
		stays:        copyMap(m.stays),
		charges:      copyMap(m.charges),
		summaries:    copyMap(m.summaries),
		runs:         copyMap(m.runs),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.businessDate = s.businessDate
	m.roomTypes = s.roomTypes
	m.inventory = s.inventory
	m.ratePlans = s.ratePlans
	m.rates = s.rates
	m.adjustments = s.adjustments
	m.policies = s.policies
	m.policySeq = s.policySeq
	m.blocks = s.blocks
	m.stays = s.stays
	m.charges = s.charges
	m.summaries = s.summaries
	m.runs = s.runs
}

// txView exposes the unlocked implementations to a WithTx body.
type txView struct {
	m *Memory
}

// =============================================================================
// BUSINESS DATE
// =============================================================================

func (m *Memory) GetBusinessDate(ctx context.Context) (engine.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBusinessDate()
}

func (m *Memory) getBusinessDate() (engine.Date, bool, error) {
	if m.businessDate == nil {
		return engine.Date{}, false, nil
	}
	return *m.businessDate, true, nil
}

func (m *Memory) SetBusinessDate(ctx context.Context, d engine.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBusinessDate(d)
}

func (m *Memory) setBusinessDate(d engine.Date) error {
	m.businessDate = &d
	return nil
}

func (v *txView) GetBusinessDate(ctx context.Context) (engine.Date, bool, error) {
	return v.m.getBusinessDate()
}

func (v *txView) SetBusinessDate(ctx context.Context, d engine.Date) error {
	return v.m.setBusinessDate(d)
}

// =============================================================================
// ROOM TYPES
// =============================================================================

func (m *Memory) SaveRoomType(ctx context.Context, rt engine.RoomType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRoomType(rt)
}

func (m *Memory) saveRoomType(rt engine.RoomType) error {
	m.roomTypes[rt.ID] = rt
	return nil
}

func (m *Memory) GetRoomType(ctx context.Context, id engine.RoomTypeID) (*engine.RoomType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRoomType(id)
}

func (m *Memory) getRoomType(id engine.RoomTypeID) (*engine.RoomType, error) {
	rt, ok := m.roomTypes[id]
	if !ok {
		return nil, nil
	}
	return &rt, nil
}

func (m *Memory) ListRoomTypes(ctx context.Context) ([]engine.RoomType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRoomTypes()
}

func (m *Memory) listRoomTypes() ([]engine.RoomType, error) {
	out := make([]engine.RoomType, 0, len(m.roomTypes))
	for _, rt := range m.roomTypes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) SaveRoomType(ctx context.Context, rt engine.RoomType) error {
	return v.m.saveRoomType(rt)
}

func (v *txView) GetRoomType(ctx context.Context, id engine.RoomTypeID) (*engine.RoomType, error) {
	return v.m.getRoomType(id)
}

func (v *txView) ListRoomTypes(ctx context.Context) ([]engine.RoomType, error) {
	return v.m.listRoomTypes()
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Memory) UpsertInventoryDay(ctx context.Context, day engine.InventoryDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertInventoryDay(day)
}

func (m *Memory) upsertInventoryDay(day engine.InventoryDay) error {
	m.inventory[invKey{RoomTypeID: day.RoomTypeID, Date: day.Date.String()}] = day
	return nil
}

func (m *Memory) GetInventoryDay(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) (*engine.InventoryDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getInventoryDay(roomTypeID, date)
}

func (m *Memory) getInventoryDay(roomTypeID engine.RoomTypeID, date engine.Date) (*engine.InventoryDay, error) {
	day, ok := m.inventory[invKey{RoomTypeID: roomTypeID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	return &day, nil
}

func (m *Memory) AdjustAvailable(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustAvailable(roomTypeID, date, delta)
}

func (m *Memory) adjustAvailable(roomTypeID engine.RoomTypeID, date engine.Date, delta int) error {
	k := invKey{RoomTypeID: roomTypeID, Date: date.String()}
	day, ok := m.inventory[k]
	if !ok {
		return &engine.NoInventoryRowError{RoomTypeID: roomTypeID, Date: date}
	}
	day.Available += delta
	day.UpdatedAt = time.Now().UTC()
	m.inventory[k] = day
	return nil
}

func (m *Memory) ListInventoryDays(ctx context.Context, roomTypeID engine.RoomTypeID, r engine.DateRange) ([]engine.InventoryDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInventoryDays(roomTypeID, r)
}

func (m *Memory) listInventoryDays(roomTypeID engine.RoomTypeID, r engine.DateRange) ([]engine.InventoryDay, error) {
	var out []engine.InventoryDay
	for _, day := range m.inventory {
		if day.RoomTypeID == roomTypeID && r.Contains(day.Date) {
			out = append(out, day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v *txView) UpsertInventoryDay(ctx context.Context, day engine.InventoryDay) error {
	return v.m.upsertInventoryDay(day)
}

func (v *txView) GetInventoryDay(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) (*engine.InventoryDay, error) {
	return v.m.getInventoryDay(roomTypeID, date)
}

func (v *txView) AdjustAvailable(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date, delta int) error {
	return v.m.adjustAvailable(roomTypeID, date, delta)
}

func (v *txView) ListInventoryDays(ctx context.Context, roomTypeID engine.RoomTypeID, r engine.DateRange) ([]engine.InventoryDay, error) {
	return v.m.listInventoryDays(roomTypeID, r)
}

// =============================================================================
// RATE PLANS, RATES, ADJUSTMENTS
// =============================================================================

func (m *Memory) SaveRatePlan(ctx context.Context, plan engine.RatePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratePlans[plan.ID] = plan
	return nil
}

func (m *Memory) GetRatePlan(ctx context.Context, id engine.RatePlanID) (*engine.RatePlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.ratePlans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (m *Memory) ListRatePlans(ctx context.Context) ([]engine.RatePlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.RatePlan, 0, len(m.ratePlans))
	for _, p := range m.ratePlans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) SaveRatePlan(ctx context.Context, plan engine.RatePlan) error {
	v.m.ratePlans[plan.ID] = plan
	return nil
}

func (v *txView) GetRatePlan(ctx context.Context, id engine.RatePlanID) (*engine.RatePlan, error) {
	plan, ok := v.m.ratePlans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (v *txView) ListRatePlans(ctx context.Context) ([]engine.RatePlan, error) {
	out := make([]engine.RatePlan, 0, len(v.m.ratePlans))
	for _, p := range v.m.ratePlans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveRate(ctx context.Context, rate engine.RoomTypeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRate(rate)
}

func (m *Memory) saveRate(rate engine.RoomTypeRate) error {
	m.rates[rate.ID] = rate
	return nil
}

func (m *Memory) DeleteRate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRate(id)
}

func (m *Memory) deleteRate(id string) error {
	delete(m.rates, id)
	return nil
}

func (m *Memory) ListRates(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID) ([]engine.RoomTypeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRates(roomTypeID, planID)
}

func (m *Memory) listRates(roomTypeID engine.RoomTypeID, planID engine.RatePlanID) ([]engine.RoomTypeRate, error) {
	var out []engine.RoomTypeRate
	for _, r := range m.rates {
		if r.RoomTypeID == roomTypeID && r.RatePlanID == planID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start.Before(out[j].Range.Start) })
	return out, nil
}

func (m *Memory) FindRate(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (*engine.RoomTypeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findRate(roomTypeID, planID, date)
}

func (m *Memory) findRate(roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (*engine.RoomTypeRate, error) {
	for _, r := range m.rates {
		if r.RoomTypeID == roomTypeID && r.RatePlanID == planID && r.Range.Contains(date) {
			rate := r
			return &rate, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveAdjustment(ctx context.Context, adj engine.RateAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAdjustment(adj)
}

func (m *Memory) saveAdjustment(adj engine.RateAdjustment) error {
	m.adjustments[adj.ID] = adj
	return nil
}

func (m *Memory) ListAdjustmentsByBase(ctx context.Context, baseRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAdjustmentsByBase(baseRoomTypeID)
}

func (m *Memory) listAdjustmentsByBase(baseRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	var out []engine.RateAdjustment
	for _, a := range m.adjustments {
		if a.BaseRoomTypeID == baseRoomTypeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListAdjustmentsByDerived(ctx context.Context, derivedRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAdjustmentsByDerived(derivedRoomTypeID)
}

func (m *Memory) listAdjustmentsByDerived(derivedRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	var out []engine.RateAdjustment
	for _, a := range m.adjustments {
		if a.DerivedRoomTypeID == derivedRoomTypeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *txView) SaveRate(ctx context.Context, rate engine.RoomTypeRate) error {
	return v.m.saveRate(rate)
}

func (v *txView) DeleteRate(ctx context.Context, id string) error {
	return v.m.deleteRate(id)
}

func (v *txView) ListRates(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID) ([]engine.RoomTypeRate, error) {
	return v.m.listRates(roomTypeID, planID)
}

func (v *txView) FindRate(ctx context.Context, roomTypeID engine.RoomTypeID, planID engine.RatePlanID, date engine.Date) (*engine.RoomTypeRate, error) {
	return v.m.findRate(roomTypeID, planID, date)
}

func (v *txView) SaveAdjustment(ctx context.Context, adj engine.RateAdjustment) error {
	return v.m.saveAdjustment(adj)
}

func (v *txView) ListAdjustmentsByBase(ctx context.Context, baseRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	return v.m.listAdjustmentsByBase(baseRoomTypeID)
}

func (v *txView) ListAdjustmentsByDerived(ctx context.Context, derivedRoomTypeID engine.RoomTypeID) ([]engine.RateAdjustment, error) {
	return v.m.listAdjustmentsByDerived(derivedRoomTypeID)
}

// =============================================================================
// OVERBOOKING POLICIES
// =============================================================================

func (m *Memory) SaveOverbookingPolicy(ctx context.Context, p engine.OverbookingPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveOverbookingPolicy(p)
}

func (m *Memory) saveOverbookingPolicy(p engine.OverbookingPolicy) error {
	if p.Seq == 0 {
		m.policySeq++
		p.Seq = m.policySeq
	}
	m.policies[p.ID] = p
	return nil
}

func (m *Memory) ListOverbookingPolicies(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.OverbookingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOverbookingPolicies(roomTypeID, date)
}

func (m *Memory) listOverbookingPolicies(roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.OverbookingPolicy, error) {
	var out []engine.OverbookingPolicy
	for _, p := range m.policies {
		if !p.Range.Contains(date) {
			continue
		}
		if p.RoomTypeID != nil && *p.RoomTypeID != roomTypeID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (v *txView) SaveOverbookingPolicy(ctx context.Context, p engine.OverbookingPolicy) error {
	return v.m.saveOverbookingPolicy(p)
}

func (v *txView) ListOverbookingPolicies(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.OverbookingPolicy, error) {
	return v.m.listOverbookingPolicies(roomTypeID, date)
}

// =============================================================================
// ROOM BLOCKS
// =============================================================================

func (m *Memory) SaveRoomBlock(ctx context.Context, b engine.RoomBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRoomBlock(b)
}

func (m *Memory) saveRoomBlock(b engine.RoomBlock) error {
	m.blocks[b.ID] = b
	return nil
}

func (m *Memory) GetRoomBlock(ctx context.Context, id string) (*engine.RoomBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ReleaseRoomBlock(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseRoomBlock(id, at)
}

func (m *Memory) releaseRoomBlock(id string, at time.Time) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("%w: room block %s", engine.ErrNotFound, id)
	}
	b.ReleasedAt = &at
	m.blocks[id] = b
	return nil
}

func (m *Memory) ActiveBlocks(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.RoomBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeBlocks(roomTypeID, date)
}

func (m *Memory) activeBlocks(roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.RoomBlock, error) {
	var out []engine.RoomBlock
	for _, b := range m.blocks {
		if b.Active() && b.RoomTypeID == roomTypeID && b.Range.Contains(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) SaveRoomBlock(ctx context.Context, b engine.RoomBlock) error {
	return v.m.saveRoomBlock(b)
}

func (v *txView) GetRoomBlock(ctx context.Context, id string) (*engine.RoomBlock, error) {
	b, ok := v.m.blocks[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (v *txView) ReleaseRoomBlock(ctx context.Context, id string, at time.Time) error {
	return v.m.releaseRoomBlock(id, at)
}

func (v *txView) ActiveBlocks(ctx context.Context, roomTypeID engine.RoomTypeID, date engine.Date) ([]engine.RoomBlock, error) {
	return v.m.activeBlocks(roomTypeID, date)
}

// =============================================================================
// STAYS AND CHARGES
// =============================================================================

func (m *Memory) SaveStay(ctx context.Context, s engine.Stay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveStay(s)
}

func (m *Memory) saveStay(s engine.Stay) error {
	m.stays[s.ID] = s
	return nil
}

func (m *Memory) GetStay(ctx context.Context, id engine.StayID) (*engine.Stay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getStay(id)
}

func (m *Memory) getStay(id engine.StayID) (*engine.Stay, error) {
	s, ok := m.stays[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListInHouseStays(ctx context.Context, date engine.Date) ([]engine.Stay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInHouseStays(date)
}

func (m *Memory) listInHouseStays(date engine.Date) ([]engine.Stay, error) {
	var out []engine.Stay
	for _, s := range m.stays {
		if s.InHouseOn(date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveCharge(ctx context.Context, c engine.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCharge(c)
}

func (m *Memory) saveCharge(c engine.Charge) error {
	m.charges[chargeKey{StayID: c.StayID, Date: c.Date.String()}] = c
	return nil
}

func (m *Memory) ChargeExists(ctx context.Context, stayID engine.StayID, date engine.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chargeExists(stayID, date)
}

func (m *Memory) chargeExists(stayID engine.StayID, date engine.Date) (bool, error) {
	_, ok := m.charges[chargeKey{StayID: stayID, Date: date.String()}]
	return ok, nil
}

func (m *Memory) ListChargesByDate(ctx context.Context, date engine.Date) ([]engine.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listChargesByDate(date)
}

func (m *Memory) listChargesByDate(date engine.Date) ([]engine.Charge, error) {
	var out []engine.Charge
	for _, c := range m.charges {
		if c.Date.Equal(date) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StayID < out[j].StayID })
	return out, nil
}

func (v *txView) SaveStay(ctx context.Context, s engine.Stay) error {
	return v.m.saveStay(s)
}

func (v *txView) GetStay(ctx context.Context, id engine.StayID) (*engine.Stay, error) {
	return v.m.getStay(id)
}

func (v *txView) ListInHouseStays(ctx context.Context, date engine.Date) ([]engine.Stay, error) {
	return v.m.listInHouseStays(date)
}

func (v *txView) SaveCharge(ctx context.Context, c engine.Charge) error {
	return v.m.saveCharge(c)
}

func (v *txView) ChargeExists(ctx context.Context, stayID engine.StayID, date engine.Date) (bool, error) {
	return v.m.chargeExists(stayID, date)
}

func (v *txView) ListChargesByDate(ctx context.Context, date engine.Date) ([]engine.Charge, error) {
	return v.m.listChargesByDate(date)
}

// =============================================================================
// NIGHT AUDIT
// =============================================================================

func (m *Memory) SaveAuditRun(ctx context.Context, run engine.NightAuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAuditRun(run)
}

func (m *Memory) saveAuditRun(run engine.NightAuditRun) error {
	m.runs[run.BusinessDate.String()] = run
	return nil
}

func (m *Memory) GetAuditRun(ctx context.Context, businessDate engine.Date) (*engine.NightAuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAuditRun(businessDate)
}

func (m *Memory) getAuditRun(businessDate engine.Date) (*engine.NightAuditRun, error) {
	run, ok := m.runs[businessDate.String()]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *Memory) SaveRevenueSummary(ctx context.Context, s engine.RevenueSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRevenueSummary(s)
}

func (m *Memory) saveRevenueSummary(s engine.RevenueSummary) error {
	m.summaries[s.Date.String()] = s
	return nil
}

func (m *Memory) GetRevenueSummary(ctx context.Context, date engine.Date) (*engine.RevenueSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRevenueSummary(date)
}

func (m *Memory) getRevenueSummary(date engine.Date) (*engine.RevenueSummary, error) {
	s, ok := m.summaries[date.String()]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (v *txView) SaveAuditRun(ctx context.Context, run engine.NightAuditRun) error {
	return v.m.saveAuditRun(run)
}

func (v *txView) GetAuditRun(ctx context.Context, businessDate engine.Date) (*engine.NightAuditRun, error) {
	return v.m.getAuditRun(businessDate)
}

func (v *txView) SaveRevenueSummary(ctx context.Context, s engine.RevenueSummary) error {
	return v.m.saveRevenueSummary(s)
}

func (v *txView) GetRevenueSummary(ctx context.Context, date engine.Date) (*engine.RevenueSummary, error) {
	return v.m.getRevenueSummary(date)
}
