package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/charkeep/internal/ports/primary"
)

const timeLayout = "2006-01-02 15:04:05"

// AdminAdapter is a thin adapter that translates CLI operations to AdminService calls.
// It depends only on the AdminService interface, enabling easy testing with mocks.
type AdminAdapter struct {
	service primary.AdminService
	out     io.Writer
}

// NewAdminAdapter creates a new AdminAdapter with the given service.
func NewAdminAdapter(service primary.AdminService, out io.Writer) *AdminAdapter {
	return &AdminAdapter{
		service: service,
		out:     out,
	}
}

// Records lists every current record.
func (a *AdminAdapter) Records(ctx context.Context) ([]*primary.Record, error) {
	records, err := a.service.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records found.")
		return records, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "USER\tRECORD\tSIZE\tMODIFIED\tMIGRATED")
	fmt.Fprintln(w, "----\t------\t----\t--------\t--------")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.UserID,
			r.RecordName,
			r.Size,
			formatTime(r.ModifiedAt),
			yesNo(r.Migrated),
		)
	}

	w.Flush()
	return records, nil
}

// Backups lists the backups of one record, newest first.
func (a *AdminAdapter) Backups(ctx context.Context, userID, recordName string) ([]*primary.Backup, error) {
	backups, err := a.service.ListBackups(ctx, userID, recordName)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Fprintf(a.out, "No backups of %s/%s.\n", userID, recordName)
		return backups, nil
	}

	fmt.Fprintf(a.out, "Backups of %s/%s (newest first):\n\n", userID, recordName)
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tCREATED\tSIZE")
	fmt.Fprintln(w, "-----\t----\t-------\t----")

	for _, b := range backups {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", b.Index, b.Name, formatTime(b.CreatedAt), b.Size)
	}

	w.Flush()
	return backups, nil
}

// Restore replaces a record with one of its backups.
func (a *AdminAdapter) Restore(ctx context.Context, req primary.RestoreRequest) (*primary.Backup, error) {
	backup, err := a.service.Restore(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "%s Restored %s/%s from backup %d (%s)\n",
		color.New(color.FgGreen).Sprint("✓"), req.UserID, req.RecordName, backup.Index, backup.Name)
	return backup, nil
}

// Check reports disagreements between the registry and the records.
func (a *AdminAdapter) Check(ctx context.Context) (*primary.ConsistencyReport, error) {
	report, err := a.service.CheckConsistency(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check consistency: %w", err)
	}

	if report.Consistent() {
		fmt.Fprintf(a.out, "%s Registry and records are consistent\n", color.New(color.FgGreen).Sprint("✓"))
		return report, nil
	}

	total := len(report.RecordsWithoutRegistry) + len(report.RegisteredWithoutRecord)
	fmt.Fprintf(a.out, "%s %d inconsistencies found\n", color.New(color.FgYellow).Sprint("!"), total)

	if len(report.RecordsWithoutRegistry) > 0 {
		fmt.Fprintln(a.out, "\nRecords without a registry entry:")
		for _, r := range report.RecordsWithoutRegistry {
			fmt.Fprintf(a.out, "  %s/%s\n", r.UserID, r.RecordName)
		}
	}
	if len(report.RegisteredWithoutRecord) > 0 {
		fmt.Fprintln(a.out, "\nRegistered users without a record:")
		for _, id := range report.RegisteredWithoutRecord {
			fmt.Fprintf(a.out, "  %s\n", id)
		}
	}
	return report, nil
}

// History prints journal entries, newest first.
func (a *AdminAdapter) History(ctx context.Context, filters primary.FlushHistoryFilters) ([]*primary.FlushEntry, error) {
	entries, err := a.service.FlushHistory(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flush history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No flushes recorded.")
		return entries, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tTRIGGER\tHANDLE\tRECORD\tBYTES\tOUTCOME\tERROR")
	fmt.Fprintln(w, "----\t-------\t------\t------\t-----\t-------\t-----")

	for _, e := range entries {
		outcome := e.Outcome
		if e.FirstWrite {
			outcome += " (migrated)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s/%s\t%d\t%s\t%s\n",
			e.Timestamp,
			e.Trigger,
			e.Handle,
			e.UserID,
			e.RecordName,
			e.Bytes,
			outcomeColor(e.Outcome).Sprint(outcome),
			e.Error,
		)
	}

	w.Flush()
	return entries, nil
}

// PruneHistory deletes old journal entries.
func (a *AdminAdapter) PruneHistory(ctx context.Context, olderThanDays int) (int, error) {
	count, err := a.service.PruneHistory(ctx, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("failed to prune flush history: %w", err)
	}

	fmt.Fprintf(a.out, "%s Pruned %d flush entries older than %d days\n",
		color.New(color.FgGreen).Sprint("✓"), count, olderThanDays)
	return count, nil
}

// Summary prints the outcome of a batch flush.
func (a *AdminAdapter) Summary(summary *primary.FlushSummary) {
	fmt.Fprintf(a.out, "Flushed (%s): %d persisted, %d skipped, %d failed\n",
		summary.Trigger, summary.Persisted, summary.Skipped, summary.Failed)
	for _, msg := range summary.Errors {
		fmt.Fprintf(a.out, "  %s %s\n", color.New(color.FgRed).Sprint("✗"), msg)
	}
}

func outcomeColor(outcome string) *color.Color {
	switch outcome {
	case primary.OutcomePersisted:
		return color.New(color.FgGreen)
	case primary.OutcomeFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
