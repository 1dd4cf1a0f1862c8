// Package flush plans the effects of persisting one buffered payload.
package flush

import (
	"github.com/example/charkeep/internal/core/effects"
	"github.com/example/charkeep/internal/core/migration"
	"github.com/example/charkeep/internal/core/record"
)

// PlanInput contains pre-fetched data for a flush.
type PlanInput struct {
	Key               record.Key
	Blob              []byte
	RecordExists      bool
	MigrationsAllowed bool
	AlreadyMigrated   bool
}

// Plan represents the planned effects for a flush, in execution order.
type Plan struct {
	Key        record.Key
	FirstWrite bool
	Ops        []effects.Effect
}

// Effects returns all effects as a flat slice for execution.
func (p Plan) Effects() []effects.Effect {
	return p.Ops
}

// GeneratePlan gates the write and lays out snapshot, write and
// registration in that order. It returns the gate error when the write is
// refused. This is a pure function - all input data must be pre-fetched.
func GeneratePlan(input PlanInput) (Plan, error) {
	gate := migration.CanWrite(migration.GateContext{
		UserID:            input.Key.UserID,
		RecordExists:      input.RecordExists,
		MigrationsAllowed: input.MigrationsAllowed,
		AlreadyMigrated:   input.AlreadyMigrated,
	})
	if err := gate.Error(); err != nil {
		return Plan{Key: input.Key}, err
	}

	plan := Plan{Key: input.Key, FirstWrite: gate.FirstWrite}
	if input.RecordExists {
		plan.Ops = append(plan.Ops, effects.SnapshotEffect{Key: input.Key})
	}
	plan.Ops = append(plan.Ops, effects.WriteRecordEffect{Key: input.Key, Blob: input.Blob})
	if gate.FirstWrite {
		// Migration becomes permanent only after the write it follows succeeds.
		plan.Ops = append(plan.Ops,
			effects.MarkMigratedEffect{UserID: input.Key.UserID},
			effects.LogEffect{
				Level:   "info",
				Message: "first record written",
				Fields:  map[string]any{"user_id": input.Key.UserID, "record": input.Key.String(), "bytes": len(input.Blob)},
			},
		)
	}
	return plan, nil
}
