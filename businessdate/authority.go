/*
Package businessdate owns the property's single current-operating-day value.

PURPOSE:
  Everything else in the engine reads the business date to decide what is
  past, present, or future. The value is created lazily on first read
  (defaulting to the real-world date), overwritten by admin override, and
  advanced exactly one day by the night audit.

ATOMICITY:
  Get, Set, and Advance each run their read-modify-write inside one store
  transaction so two concurrent advances can never both compute current+1
  from the same value.

SEE ALSO:
  - nightaudit: Calls Advance as the final audit step, inside its own
    transaction, via the package-level AdvanceIn.
*/
package businessdate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayware/pms-engine/engine"
)

// Authority is the single source of the current business date.
type Authority struct {
	store engine.TxStore
	log   *zap.Logger
}

func NewAuthority(store engine.TxStore, log *zap.Logger) *Authority {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authority{store: store, log: log}
}

// Get returns the current business date, creating it with today's real-world
// date if no row exists. Absence of a row is the default-today case, never an
// error; only an unreachable store fails.
func (a *Authority) Get(ctx context.Context) (engine.Date, error) {
	var out engine.Date
	err := a.store.WithTx(ctx, func(s engine.Store) error {
		d, err := GetIn(ctx, s)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return engine.Date{}, err
	}
	return out, nil
}

// Set unconditionally overwrites the business date. Any date is accepted,
// including past ones: this is the intentional administrative override, and
// restriction to privileged callers happens in the layer above.
func (a *Authority) Set(ctx context.Context, d engine.Date) (engine.Date, error) {
	err := a.store.WithTx(ctx, func(s engine.Store) error {
		if err := s.SetBusinessDate(ctx, d); err != nil {
			return fmt.Errorf("%w: set business date: %v", engine.ErrUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return engine.Date{}, err
	}
	a.log.Info("business date overridden", zap.String("date", d.String()))
	return d, nil
}

// Advance atomically moves the business date forward exactly one day and
// returns the new value.
func (a *Authority) Advance(ctx context.Context) (engine.Date, error) {
	var out engine.Date
	err := a.store.WithTx(ctx, func(s engine.Store) error {
		d, err := AdvanceIn(ctx, s)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return engine.Date{}, err
	}
	a.log.Info("business date advanced", zap.String("date", out.String()))
	return out, nil
}

// =============================================================================
// TRANSACTION-SCOPED OPERATIONS - For callers already inside a WithTx
// =============================================================================

// GetIn reads (and lazily initializes) the business date against s.
func GetIn(ctx context.Context, s engine.Store) (engine.Date, error) {
	d, ok, err := s.GetBusinessDate(ctx)
	if err != nil {
		return engine.Date{}, fmt.Errorf("%w: read business date: %v", engine.ErrUnavailable, err)
	}
	if ok {
		return d, nil
	}
	today := engine.Today()
	if err := s.SetBusinessDate(ctx, today); err != nil {
		return engine.Date{}, fmt.Errorf("%w: initialize business date: %v", engine.ErrUnavailable, err)
	}
	return today, nil
}

// AdvanceIn performs the read-modify-write against s. The caller's
// transaction provides the atomicity.
func AdvanceIn(ctx context.Context, s engine.Store) (engine.Date, error) {
	current, err := GetIn(ctx, s)
	if err != nil {
		return engine.Date{}, err
	}
	next := current.AddDays(1)
	if err := s.SetBusinessDate(ctx, next); err != nil {
		return engine.Date{}, fmt.Errorf("%w: advance business date: %v", engine.ErrUnavailable, err)
	}
	return next, nil
}
