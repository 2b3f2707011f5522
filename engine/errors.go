/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Components wrap these sentinels with structured context; the HTTP layer
  maps categories to status codes without inspecting messages.

ERROR CATEGORIES:
  1. ErrInvalidInput       - Caller mistake (malformed range/id). Never retried.
  2. ErrNotFound           - No matching rate/policy/inventory row. Expected.
  3. ErrConflict           - Lost availability race, duplicate audit run.
  4. ErrInvariantViolation - Overlapping rate ranges, chained derivation. Fatal.
  5. ErrUnavailable        - Storage unreachable. Retryable with backoff.

USAGE:
  if errors.Is(err, engine.ErrConflict) { ... }

  var insuff *engine.InsufficientAvailabilityError
  if errors.As(err, &insuff) { log(insuff.Date) }

SEE ALSO:
  - store.go: Interfaces whose implementations surface these errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or missing ranges/ids.
	// This is a caller mistake and must not be retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when no rate, policy, or inventory row matches.
	// This is an expected outcome, not a system fault.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an availability race is lost or a
	// completed audit run would be repeated. Callers may retry with
	// different parameters.
	ErrConflict = errors.New("conflict")

	// ErrInvariantViolation is returned when stored data breaks an engine
	// invariant (overlapping rate ranges, chained derivations). It is a
	// programming/data error and is never silently repaired.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUnavailable is returned when the underlying store cannot be
	// reached. Retryable by the caller with backoff.
	ErrUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports a range whose end precedes its start.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s before start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidInput }

// NoInventoryRowError reports a night with no seeded inventory row.
type NoInventoryRowError struct {
	RoomTypeID RoomTypeID
	Date       Date
}

func (e *NoInventoryRowError) Error() string {
	return fmt.Sprintf("no inventory row for room type %s on %s", e.RoomTypeID, e.Date)
}

func (e *NoInventoryRowError) Unwrap() error { return ErrNotFound }

// InsufficientAvailabilityError reports the night that failed the ceiling
// check during an authoritative decrement. No partial mutation survives it.
type InsufficientAvailabilityError struct {
	RoomTypeID RoomTypeID
	Date       Date
	Requested  int
	Sold       int
	Ceiling    int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability for room type %s on %s: sold %d + requested %d exceeds ceiling %d",
		e.RoomTypeID, e.Date, e.Sold, e.Requested, e.Ceiling)
}

func (e *InsufficientAvailabilityError) Unwrap() error { return ErrConflict }

// RateNotFoundError reports that no rate row covers the date. Callers treat
// this as a normal outcome: not every plan prices every date.
type RateNotFoundError struct {
	RoomTypeID RoomTypeID
	RatePlanID RatePlanID
	Date       Date
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no rate for room type %s, plan %s on %s", e.RoomTypeID, e.RatePlanID, e.Date)
}

func (e *RateNotFoundError) Unwrap() error { return ErrNotFound }

// AdjustmentNotFoundError reports a missing (base, derived) adjustment.
type AdjustmentNotFoundError struct {
	BaseRoomTypeID    RoomTypeID
	DerivedRoomTypeID RoomTypeID
}

func (e *AdjustmentNotFoundError) Error() string {
	return fmt.Sprintf("no rate adjustment from base %s to derived %s", e.BaseRoomTypeID, e.DerivedRoomTypeID)
}

func (e *AdjustmentNotFoundError) Unwrap() error { return ErrNotFound }

// RateOverlapError reports a write that would create overlapping rate ranges
// for one (room type, plan) pair.
type RateOverlapError struct {
	RoomTypeID RoomTypeID
	RatePlanID RatePlanID
	Existing   DateRange
	Incoming   DateRange
}

func (e *RateOverlapError) Error() string {
	return fmt.Sprintf("rate range %s overlaps existing %s for room type %s, plan %s",
		e.Incoming, e.Existing, e.RoomTypeID, e.RatePlanID)
}

func (e *RateOverlapError) Unwrap() error { return ErrInvariantViolation }

// ChainedDerivationError reports an adjustment that would make a derived type
// act as a base (or a base act as derived). Derivations are single-level.
type ChainedDerivationError struct {
	BaseRoomTypeID    RoomTypeID
	DerivedRoomTypeID RoomTypeID
}

func (e *ChainedDerivationError) Error() string {
	return fmt.Sprintf("chained derivation rejected: %s -> %s would exceed one level",
		e.BaseRoomTypeID, e.DerivedRoomTypeID)
}

func (e *ChainedDerivationError) Unwrap() error { return ErrInvariantViolation }

// AlreadyAuditedError reports a re-run of a fully completed night audit.
type AlreadyAuditedError struct {
	BusinessDate Date
	RunID        string
}

func (e *AlreadyAuditedError) Error() string {
	return fmt.Sprintf("night audit already completed for %s (run %s)", e.BusinessDate, e.RunID)
}

func (e *AlreadyAuditedError) Unwrap() error { return ErrConflict }

// BusinessDateMismatchError reports an audit requested for a date other than
// the authority's current business date.
type BusinessDateMismatchError struct {
	Requested Date
	Current   Date
}

func (e *BusinessDateMismatchError) Error() string {
	return fmt.Sprintf("night audit requested for %s but current business date is %s", e.Requested, e.Current)
}

func (e *BusinessDateMismatchError) Unwrap() error { return ErrInvalidInput }

// PastDateError reports an attempt to create policy/rate rows effective
// before the current business date.
type PastDateError struct {
	Target  Date
	Current Date
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("date %s is before the current business date %s", e.Target, e.Current)
}

func (e *PastDateError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for lost races and duplicate runs.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
