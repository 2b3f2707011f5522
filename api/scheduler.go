/*
scheduler.go - Automated night-audit scheduler

PURPOSE:
  Periodically checks whether the current business date still needs its
  night audit and, past the configured audit hour, runs it automatically.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips dates whose audit already reached the terminal state
  - Concurrent manual runs are safe: the orchestrator rejects a second
    completed run for the same date

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - AuditHour:     Local hour after which the audit may fire (default: 2)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAuditScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAudit endpoint (manual trigger)
  - nightaudit: The orchestrator this drives
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AuditScheduler fires the night audit once per business date.
type AuditScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	AuditHour     int
	Enabled       bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(handler *Handler) *AuditScheduler {
	return &AuditScheduler{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		AuditHour:     2,
		Enabled:       true,
		log:           handler.Log,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		as.log.Info("audit scheduler disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	as.log.Info("audit scheduler started",
		zap.Duration("check_interval", as.CheckInterval),
		zap.Int("audit_hour", as.AuditHour),
	)
}

// Stop stops the scheduler.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		as.log.Info("audit scheduler stopped")
	}
}

func (as *AuditScheduler) run() {
	defer as.wg.Done()

	for {
		select {
		case <-as.ticker.C:
			as.checkAndRun()
		case <-as.stop:
			return
		}
	}
}

// checkAndRun audits the current business date if it is due.
func (as *AuditScheduler) checkAndRun() {
	ctx := context.Background()

	// Before the audit hour the desk is still posting; leave the date open.
	if time.Now().Hour() < as.AuditHour {
		return
	}

	current, err := as.Handler.Dates.Get(ctx)
	if err != nil {
		as.log.Error("scheduler failed to read business date", zap.Error(err))
		return
	}

	run, err := as.Handler.Store.GetAuditRun(ctx, current)
	if err != nil {
		as.log.Error("scheduler failed to read audit run", zap.Error(err))
		return
	}
	if run != nil && run.Completed() {
		return
	}

	as.log.Info("scheduler starting night audit", zap.String("business_date", current.String()))
	if _, err := as.Handler.Audit.Run(ctx, current); err != nil {
		as.log.Error("scheduled night audit failed",
			zap.String("business_date", current.String()),
			zap.Error(err),
		)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (as *AuditScheduler) RunNow() {
	as.checkAndRun()
}
