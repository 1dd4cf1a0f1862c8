// Package retention contains the pure rules for naming, ordering and
// pruning rotated record backups.
package retention

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/charkeep/internal/core/record"
)

// TimestampLayout has second granularity and sorts lexicographically in
// creation order.
const TimestampLayout = "20060102_150405"

// maxSeq bounds the same-second collision suffix.
const maxSeq = 999

// Entry describes one backup file.
type Entry struct {
	Name      string
	CreatedAt time.Time
	Seq       int
	Size      int64
}

// FormatName returns the backup filename for a snapshot taken at t.
// seq 0 yields the bare timestamp; higher values add a zero-padded suffix.
func FormatName(t time.Time, seq int) string {
	stamp := t.UTC().Format(TimestampLayout)
	if seq == 0 {
		return stamp + record.Extension
	}
	return fmt.Sprintf("%s_%03d%s", stamp, seq, record.Extension)
}

// ParseName extracts the creation instant and sequence from a backup name.
func ParseName(name string) (time.Time, int, bool) {
	if !strings.HasSuffix(name, record.Extension) {
		return time.Time{}, 0, false
	}
	base := strings.TrimSuffix(name, record.Extension)
	if len(base) < len(TimestampLayout) {
		return time.Time{}, 0, false
	}
	created, err := time.ParseInLocation(TimestampLayout, base[:len(TimestampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, 0, false
	}
	rest := base[len(TimestampLayout):]
	if rest == "" {
		return created, 0, true
	}
	if !strings.HasPrefix(rest, "_") {
		return time.Time{}, 0, false
	}
	seq, err := strconv.Atoi(rest[1:])
	if err != nil || seq <= 0 {
		return time.Time{}, 0, false
	}
	return created, seq, true
}

// NextName picks a backup name for a snapshot at now. Within one second
// the sequence is one past the highest already present, so the new name
// sorts newest even after older same-second backups were pruned.
func NextName(now time.Time, existing map[string]bool) (string, error) {
	stamp := now.UTC().Truncate(time.Second)
	next := 0
	for name := range existing {
		created, seq, ok := ParseName(name)
		if !ok || !created.Equal(stamp) {
			continue
		}
		if seq+1 > next {
			next = seq + 1
		}
	}
	if next > maxSeq {
		return "", fmt.Errorf("more than %d backups within one second at %s", maxSeq+1, stamp.Format(TimestampLayout))
	}
	return FormatName(now, next), nil
}

// SortNewestFirst orders entries by creation instant, then sequence, most
// recent first. Entries comparing equal keep their input order, which
// callers must treat as unspecified.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Seq > entries[j].Seq
	})
}

// PrunePlan lists the backups to delete to get back to the limit.
type PrunePlan struct {
	Keep   []Entry
	Delete []Entry
}

// PlanPrune keeps the limit most recent entries and schedules the rest for
// deletion, oldest last. entries need not be sorted; they are not modified.
func PlanPrune(entries []Entry, limit int) PrunePlan {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortNewestFirst(sorted)

	if limit < 0 {
		limit = 0
	}
	if len(sorted) <= limit {
		return PrunePlan{Keep: sorted}
	}
	return PrunePlan{
		Keep:   sorted[:limit],
		Delete: sorted[limit:],
	}
}

// CheckLimit returns record.ErrRetentionViolation when count exceeds limit.
func CheckLimit(count, limit int) error {
	if count > limit {
		return fmt.Errorf("%w: %d backups remain, limit is %d", record.ErrRetentionViolation, count, limit)
	}
	return nil
}
