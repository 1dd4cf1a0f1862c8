package migration

import (
	"errors"
	"testing"

	"github.com/example/charkeep/internal/core/record"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ctx  GateContext
		want Status
	}{
		{
			name: "record present wins over everything",
			ctx:  GateContext{UserID: "1", RecordExists: true, AlreadyMigrated: true, MigrationsAllowed: false},
			want: StatusHasRecord,
		},
		{
			name: "no record, allowed, not migrated",
			ctx:  GateContext{UserID: "1", MigrationsAllowed: true},
			want: StatusEligible,
		},
		{
			name: "no record but already migrated",
			ctx:  GateContext{UserID: "1", MigrationsAllowed: true, AlreadyMigrated: true},
			want: StatusRecordMissing,
		},
		{
			name: "no record, migrations disabled",
			ctx:  GateContext{UserID: "1"},
			want: StatusBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ctx); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		name           string
		ctx            GateContext
		wantAllowed    bool
		wantFirstWrite bool
		wantErr        error
		wantReason     string
	}{
		{
			name:        "overwrite existing record",
			ctx:         GateContext{UserID: "1", RecordExists: true, AlreadyMigrated: true},
			wantAllowed: true,
		},
		{
			name:        "overwrite existing record even when migrations disabled",
			ctx:         GateContext{UserID: "1", RecordExists: true},
			wantAllowed: true,
		},
		{
			name:           "first write when eligible",
			ctx:            GateContext{UserID: "1", MigrationsAllowed: true},
			wantAllowed:    true,
			wantFirstWrite: true,
		},
		{
			name:        "migrated user with missing record",
			ctx:         GateContext{UserID: "7", MigrationsAllowed: true, AlreadyMigrated: true},
			wantAllowed: false,
			wantErr:     record.ErrInconsistency,
			wantReason:  "user 7 is registered as migrated but has no server record",
		},
		{
			name:        "migrations disabled",
			ctx:         GateContext{UserID: "9"},
			wantAllowed: false,
			wantErr:     record.ErrMigrationBlocked,
			wantReason:  "migrations are disabled and user 9 has no server record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanWrite(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.FirstWrite != tt.wantFirstWrite {
				t.Errorf("FirstWrite = %v, want %v", result.FirstWrite, tt.wantFirstWrite)
			}
			if !tt.wantAllowed {
				if result.Reason != tt.wantReason {
					t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
				}
				if !errors.Is(result.Error(), tt.wantErr) {
					t.Errorf("Error() = %v, want wrapping %v", result.Error(), tt.wantErr)
				}
			} else if result.Error() != nil {
				t.Errorf("expected nil error, got %v", result.Error())
			}
		})
	}
}
