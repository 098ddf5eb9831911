// Package apperr defines the error taxonomy shared by all Gatehouse
// components. Callers branch on the error kind (and, for state conflicts,
// the Reason code) to decide how to respond.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Reason identifies which invariant a rejected operation violated.
type Reason string

const (
	ReasonPhaseFinalized Reason = "phase_finalized"
	ReasonSlotFull       Reason = "slot_full"
	ReasonAlreadyBooked  Reason = "already_booked"
	ReasonTooLateCancel  Reason = "too_late_to_cancel"
	ReasonWrongStage     Reason = "wrong_stage"
	ReasonTrackImmutable Reason = "track_immutable"
	ReasonEventClosed    Reason = "event_closed"
	ReasonEventFull      Reason = "event_full"
	ReasonNoRanking      Reason = "no_ranking"
	ReasonCycleInactive  Reason = "cycle_inactive"
)

// ValidationError reports malformed or missing input. The caller can
// recover by correcting the input; it is never retried automatically.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError for a named field.
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// StateConflictError reports a stage or phase invariant violation. It is
// surfaced verbatim to the caller; the Reason code lets UI flows branch
// their messaging on which invariant failed.
type StateConflictError struct {
	Reason Reason
	Msg    string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Reason, e.Msg)
}

// Conflict builds a StateConflictError with the given reason code.
func Conflict(reason Reason, format string, args ...interface{}) error {
	return &StateConflictError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// ConflictReason extracts the Reason from err, or "" if err is not a
// StateConflictError.
func ConflictReason(err error) Reason {
	var sc *StateConflictError
	if errors.As(err, &sc) {
		return sc.Reason
	}
	return ""
}

// DependencyError reports an operation blocked by dependent records,
// typically a cascading delete that has not been confirmed. Summary lists
// what the confirmed call would remove.
type DependencyError struct {
	Op      string
	Summary []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: confirmation required: would delete %s", e.Op, strings.Join(e.Summary, ", "))
}

// SideEffectFailure wraps a failed best-effort side effect (notification,
// calendar invite, file storage). It is attached to an otherwise successful
// response as a warning and never rolls back core state.
type SideEffectFailure struct {
	Effect string
	Err    error
}

func (e *SideEffectFailure) Error() string {
	return fmt.Sprintf("side effect %s failed: %v", e.Effect, e.Err)
}

func (e *SideEffectFailure) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a StateConflictError.
func IsConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsDependency reports whether err is a DependencyError.
func IsDependency(err error) bool {
	var d *DependencyError
	return errors.As(err, &d)
}
