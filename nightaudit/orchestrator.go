/*
Package nightaudit runs the end-of-day rollover for the property.

PURPOSE:
  The audit is a date-scoped, strictly ordered workflow:

    NotStarted -> ChargesPosted -> RevenueAggregated
               -> DiscrepanciesFlagged -> DateAdvanced (terminal)

  It posts every in-house stay's nightly room charge, aggregates posted
  charges into one revenue summary, reports operational discrepancies, and
  finally advances the business date.

ATOMICITY AND RETRIES:
  The four steps plus the date advance execute inside ONE store transaction:
  no other writer ever observes charges posted without the revenue aggregate,
  or an advanced date without the charges. On failure the transaction rolls
  back and the run record reports the state the audit stopped in. A retry
  re-runs safely: charge posting is idempotent by existence, the revenue
  summary is a replace, and discrepancy flagging is read-only. Only a run
  that reached DateAdvanced rejects re-running, with *AlreadyAuditedError.

SEE ALSO:
  - businessdate: AdvanceIn, called as the final step inside the transaction
  - rates: Nightly prices, direct or derived
*/
package nightaudit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stayware/pms-engine/businessdate"
	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/rates"
)

// Orchestrator drives the night-audit workflow.
type Orchestrator struct {
	store engine.TxStore
	log   *zap.Logger
}

func NewOrchestrator(store engine.TxStore, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{store: store, log: log}
}

// Result is the outcome of a completed audit run.
type Result struct {
	Run             engine.NightAuditRun
	ChargesPosted   int
	Revenue         *engine.RevenueSummary
	Discrepancies   []engine.Discrepancy
	NewBusinessDate engine.Date
}

// =============================================================================
// FULL RUN
// =============================================================================

// Run executes the four audit steps in order and advances the business date.
// businessDate must equal the authority's current date; auditing an
// arbitrary day is rejected with *BusinessDateMismatchError before anything
// else happens.
func (o *Orchestrator) Run(ctx context.Context, businessDate engine.Date) (*Result, error) {
	prior, err := o.store.GetAuditRun(ctx, businessDate)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.Completed() {
		return nil, &engine.AlreadyAuditedError{BusinessDate: businessDate, RunID: prior.ID}
	}

	run := engine.NightAuditRun{
		ID:           uuid.NewString(),
		BusinessDate: businessDate,
		State:        engine.AuditNotStarted,
		StartedAt:    time.Now().UTC(),
	}
	if prior != nil {
		// Resume the partially failed run under its original ID.
		run.ID = prior.ID
		run.StartedAt = prior.StartedAt
	}

	var res Result
	err = o.store.WithTx(ctx, func(s engine.Store) error {
		// Re-check under the transaction: a concurrent run may have completed
		// this date between the advisory guard above and here.
		stored, err := s.GetAuditRun(ctx, businessDate)
		if err != nil {
			return err
		}
		if stored != nil && stored.Completed() {
			return &engine.AlreadyAuditedError{BusinessDate: businessDate, RunID: stored.ID}
		}

		current, err := businessdate.GetIn(ctx, s)
		if err != nil {
			return err
		}
		if !current.Equal(businessDate) {
			return &engine.BusinessDateMismatchError{Requested: businessDate, Current: current}
		}

		posted, err := postChargesIn(ctx, s, businessDate, o.log)
		if err != nil {
			return err
		}
		run.State = engine.AuditChargesPosted
		run.ChargesPosted = posted

		summary, err := aggregateRevenueIn(ctx, s, businessDate)
		if err != nil {
			return err
		}
		run.State = engine.AuditRevenueAggregated

		findings, err := flagDiscrepanciesIn(ctx, s, businessDate)
		if err != nil {
			return err
		}
		run.State = engine.AuditDiscrepanciesFlagged
		run.Discrepancies = len(findings)

		newDate, err := businessdate.AdvanceIn(ctx, s)
		if err != nil {
			return err
		}
		run.State = engine.AuditDateAdvanced
		done := time.Now().UTC()
		run.CompletedAt = &done
		if err := s.SaveAuditRun(ctx, run); err != nil {
			return err
		}

		res = Result{
			Run:             run,
			ChargesPosted:   posted,
			Revenue:         summary,
			Discrepancies:   findings,
			NewBusinessDate: newDate,
		}
		return nil
	})
	if err != nil {
		var already *engine.AlreadyAuditedError
		if errors.As(err, &already) {
			// Another run finished this date first; its record stands.
			return nil, err
		}

		// The transaction rolled back; persist the run record so the report
		// names the state the audit stopped in. Every step is idempotent,
		// so a retry simply re-executes from the top.
		run.Error = err.Error()
		if saveErr := o.saveFailedRun(ctx, run); saveErr != nil {
			o.log.Error("failed to record audit failure", zap.Error(saveErr))
		}
		o.log.Error("night audit failed",
			zap.String("business_date", businessDate.String()),
			zap.String("stopped_in", string(run.State)),
			zap.Error(err),
		)
		return nil, err
	}

	o.log.Info("night audit completed",
		zap.String("business_date", businessDate.String()),
		zap.Int("charges_posted", res.ChargesPosted),
		zap.Int("discrepancies", len(res.Discrepancies)),
		zap.String("new_business_date", res.NewBusinessDate.String()),
	)
	return &res, nil
}

// saveFailedRun records a failed run without ever clobbering a completed
// record: a date that already reached DateAdvanced keeps that record forever.
func (o *Orchestrator) saveFailedRun(ctx context.Context, run engine.NightAuditRun) error {
	return o.store.WithTx(ctx, func(s engine.Store) error {
		stored, err := s.GetAuditRun(ctx, run.BusinessDate)
		if err != nil {
			return err
		}
		if stored != nil && stored.Completed() {
			return nil
		}
		return s.SaveAuditRun(ctx, run)
	})
}

// =============================================================================
// STEP 1: POST DAILY ROOM CHARGES
// =============================================================================

// PostDailyRoomCharges posts the night's room charge for every in-house stay
// covering businessDate. Standalone entry point for troubleshooting.
func (o *Orchestrator) PostDailyRoomCharges(ctx context.Context, businessDate engine.Date) (int, error) {
	var posted int
	err := o.store.WithTx(ctx, func(s engine.Store) error {
		n, err := postChargesIn(ctx, s, businessDate, o.log)
		posted = n
		return err
	})
	return posted, err
}

func postChargesIn(ctx context.Context, s engine.Store, businessDate engine.Date, log *zap.Logger) (int, error) {
	stays, err := s.ListInHouseStays(ctx, businessDate)
	if err != nil {
		return 0, err
	}

	posted := 0
	for _, stay := range stays {
		exists, err := s.ChargeExists(ctx, stay.ID, businessDate)
		if err != nil {
			return posted, err
		}
		if exists {
			continue
		}

		price, err := nightlyPrice(ctx, s, stay, businessDate)
		if errors.Is(err, engine.ErrNotFound) {
			// Normal outcome: the plan does not price this date. The missing
			// charge surfaces as a discrepancy finding, not a failure.
			if log != nil {
				log.Warn("no rate for stay night, skipping charge",
					zap.String("stay_id", string(stay.ID)),
					zap.String("date", businessDate.String()),
				)
			}
			continue
		}
		if err != nil {
			return posted, err
		}

		amount := price
		for i := 1; i < stay.Rooms; i++ {
			amount = amount.Add(price)
		}
		charge := engine.Charge{
			ID:         uuid.NewString(),
			StayID:     stay.ID,
			FolioID:    stay.FolioID,
			RoomTypeID: stay.RoomTypeID,
			RatePlanID: stay.RatePlanID,
			Date:       businessDate,
			Amount:     amount,
			Detail:     fmt.Sprintf("room charge %s x%d", businessDate, stay.Rooms),
			PostedAt:   time.Now().UTC(),
		}
		if err := s.SaveCharge(ctx, charge); err != nil {
			return posted, err
		}
		posted++
	}
	return posted, nil
}

// nightlyPrice resolves the stay's price for one night: direct rate first,
// then derived pricing when the room type has an adjustment against a base.
func nightlyPrice(ctx context.Context, s engine.Store, stay engine.Stay, night engine.Date) (engine.Money, error) {
	price, err := rates.EffectiveRateIn(ctx, s, stay.RoomTypeID, stay.RatePlanID, night)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, engine.ErrNotFound) {
		return engine.Money{}, err
	}

	adjs, adjErr := s.ListAdjustmentsByDerived(ctx, stay.RoomTypeID)
	if adjErr != nil {
		return engine.Money{}, adjErr
	}
	for _, adj := range adjs {
		if adj.RatePlanID != nil && *adj.RatePlanID != stay.RatePlanID {
			continue
		}
		derived, dErr := rates.DerivedRateIn(ctx, s, adj.BaseRoomTypeID, stay.RoomTypeID, stay.RatePlanID, night)
		if dErr == nil {
			return derived, nil
		}
		if !errors.Is(dErr, engine.ErrNotFound) {
			return engine.Money{}, dErr
		}
	}
	return engine.Money{}, err
}

// =============================================================================
// STEP 2: DAILY REVENUE REPORT
// =============================================================================

// GenerateDailyRevenueReport aggregates the date's posted charges into one
// summary row, replacing any prior summary. Recomputation is idempotent.
func (o *Orchestrator) GenerateDailyRevenueReport(ctx context.Context, businessDate engine.Date) (*engine.RevenueSummary, error) {
	var summary *engine.RevenueSummary
	err := o.store.WithTx(ctx, func(s engine.Store) error {
		out, err := aggregateRevenueIn(ctx, s, businessDate)
		summary = out
		return err
	})
	return summary, err
}

func aggregateRevenueIn(ctx context.Context, s engine.Store, businessDate engine.Date) (*engine.RevenueSummary, error) {
	charges, err := s.ListChargesByDate(ctx, businessDate)
	if err != nil {
		return nil, err
	}

	summary := engine.RevenueSummary{
		Date:        businessDate,
		Total:       engine.ZeroMoney(),
		ByRoomType:  make(map[engine.RoomTypeID]engine.Money),
		ByRatePlan:  make(map[engine.RatePlanID]engine.Money),
		GeneratedAt: time.Now().UTC(),
	}
	for _, c := range charges {
		summary.Total = summary.Total.Add(c.Amount)
		summary.RoomNights++
		summary.ByRoomType[c.RoomTypeID] = summary.ByRoomType[c.RoomTypeID].Add(c.Amount)
		summary.ByRatePlan[c.RatePlanID] = summary.ByRatePlan[c.RatePlanID].Add(c.Amount)
	}

	if err := s.SaveRevenueSummary(ctx, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// =============================================================================
// STEP 3: DISCREPANCY FLAGGING
// =============================================================================

// FlagDiscrepancies cross-checks the date's operational state and returns
// findings. Read-only: it never mutates state and never blocks the advance.
func (o *Orchestrator) FlagDiscrepancies(ctx context.Context, businessDate engine.Date) ([]engine.Discrepancy, error) {
	return flagDiscrepanciesIn(ctx, o.store, businessDate)
}

func flagDiscrepanciesIn(ctx context.Context, s engine.Store, businessDate engine.Date) ([]engine.Discrepancy, error) {
	var findings []engine.Discrepancy

	stays, err := s.ListInHouseStays(ctx, businessDate)
	if err != nil {
		return nil, err
	}
	for _, stay := range stays {
		if stay.RoomNumber == "" {
			findings = append(findings, engine.Discrepancy{
				Kind:       engine.DiscrepancyNoRoomAssigned,
				StayID:     stay.ID,
				RoomTypeID: stay.RoomTypeID,
				Date:       businessDate,
				Detail:     "in-house stay has no room assigned",
			})
		}
		exists, err := s.ChargeExists(ctx, stay.ID, businessDate)
		if err != nil {
			return nil, err
		}
		if !exists {
			findings = append(findings, engine.Discrepancy{
				Kind:       engine.DiscrepancyMissingCharge,
				StayID:     stay.ID,
				RoomTypeID: stay.RoomTypeID,
				Date:       businessDate,
				Detail:     "night has no posted charge",
			})
		}
	}

	types, err := s.ListRoomTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, rt := range types {
		day, err := s.GetInventoryDay(ctx, rt.ID, businessDate)
		if err != nil {
			return nil, err
		}
		if day == nil {
			continue
		}
		policies, err := s.ListOverbookingPolicies(ctx, rt.ID, businessDate)
		if err != nil {
			return nil, err
		}
		percent := engine.EffectiveOverbookingPercent(policies, rt.ID, businessDate)
		ceiling := engine.OversellCeiling(day.Capacity, percent)
		if day.Sold() > ceiling {
			findings = append(findings, engine.Discrepancy{
				Kind:       engine.DiscrepancyOverCeiling,
				RoomTypeID: rt.ID,
				Date:       businessDate,
				Detail:     fmt.Sprintf("sold %d exceeds ceiling %d", day.Sold(), ceiling),
			})
		}
	}

	return findings, nil
}
