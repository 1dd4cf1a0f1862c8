// Package migration contains the pure business logic for the one-time
// import of a client-held character record.
// Guards are pure functions that evaluate preconditions without side effects.
package migration

import (
	"fmt"

	"github.com/example/charkeep/internal/core/record"
)

// Status classifies a connecting user for observability.
type Status string

const (
	// StatusHasRecord means the server already holds a record.
	StatusHasRecord Status = "has_server_record"
	// StatusEligible means the next successful flush will be the migration.
	StatusEligible Status = "eligible_to_migrate"
	// StatusRecordMissing means the user migrated before but the record is gone.
	StatusRecordMissing Status = "migrated_record_missing"
	// StatusBlocked means migrations are disabled and no record exists.
	StatusBlocked Status = "blocked"
)

// GateContext holds the pre-fetched facts the gate is evaluated against.
type GateContext struct {
	UserID            string
	RecordExists      bool
	MigrationsAllowed bool
	AlreadyMigrated   bool
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	// FirstWrite is set when an allowed write establishes the record and
	// must be followed by registering the user as migrated.
	FirstWrite bool
	err        error
}

// Error converts the guard result to an error if not allowed.
// The returned error wraps the matching record sentinel.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.err != nil {
		return fmt.Errorf("%w: %s", r.err, r.Reason)
	}
	return fmt.Errorf("%s", r.Reason)
}

// Classify reports which of the four connect-time states applies.
// It has no side effects and is not the enforcement point.
func Classify(ctx GateContext) Status {
	switch {
	case ctx.RecordExists:
		return StatusHasRecord
	case ctx.AlreadyMigrated:
		return StatusRecordMissing
	case ctx.MigrationsAllowed:
		return StatusEligible
	default:
		return StatusBlocked
	}
}

// CanWrite evaluates whether a flush may persist a payload.
// Rules:
// - An existing record may always be overwritten
// - A user already registered as migrated without a record is an inconsistency
// - A first write requires migrations to be allowed globally
func CanWrite(ctx GateContext) GuardResult {
	// Rule 1: existing record, plain overwrite
	if ctx.RecordExists {
		return GuardResult{Allowed: true}
	}

	// Rule 2: migrated earlier but the record is gone
	if ctx.AlreadyMigrated {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("user %s is registered as migrated but has no server record", ctx.UserID),
			err:     record.ErrInconsistency,
		}
	}

	// Rule 3: migrations must be enabled
	if !ctx.MigrationsAllowed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("migrations are disabled and user %s has no server record", ctx.UserID),
			err:     record.ErrMigrationBlocked,
		}
	}

	return GuardResult{Allowed: true, FirstWrite: true}
}
