// Package record contains the pure rules for naming persisted character
// records: key derivation, filename layout and the error taxonomy.
package record

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const (
	// Extension is the file extension of current records and backups.
	Extension = ".fch"

	// PreRestoreSuffix is appended to a current record path to form the
	// single pre-restore safety copy.
	PreRestoreSuffix = ".pre_restore"

	// TempSuffix marks in-flight atomic writes.
	TempSuffix = ".tmp"

	// Separator splits userId from the record name in filenames.
	Separator = "_"

	// RecordsDir is the directory under the configured root holding records.
	RecordsDir = "characters_server"

	// BackupsDir is the backup directory inside RecordsDir.
	BackupsDir = "backups"

	// RegistryFile is the migration registry log inside RecordsDir.
	RegistryFile = "migrated_players.txt"
)

const invalidNameChars = `<>:"/\|?*`

// Key identifies one persisted record. RecordName is always sanitized.
type Key struct {
	UserID     string
	RecordName string
}

// NewKey builds a Key from a user id and a display name.
// Display names differing only by case or invalid characters map to the
// same key; that collision is accepted behaviour.
func NewKey(userID, displayName string) (Key, error) {
	if err := ValidateUserID(userID); err != nil {
		return Key{}, err
	}
	return Key{UserID: userID, RecordName: SanitizeName(displayName)}, nil
}

// ValidateUserID rejects ids that cannot be embedded in a filename.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidKey)
	}
	if strings.ContainsAny(userID, invalidNameChars+Separator) || strings.Contains(userID, "..") {
		return fmt.Errorf("%w: user id %q contains reserved characters", ErrInvalidKey, userID)
	}
	for _, r := range userID {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: user id %q contains whitespace or control characters", ErrInvalidKey, userID)
		}
	}
	return nil
}

// SanitizeName case-folds a display name and replaces characters that are
// invalid in filenames with '_'.
func SanitizeName(name string) string {
	// Casers carry state and must not be shared between goroutines.
	folded := cases.Fold().String(name)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsControl(r) || strings.ContainsRune(invalidNameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "_"
	}
	return out
}

// Base returns "{userId}_{recordName}", the on-disk identity of the key.
func (k Key) Base() string {
	return k.UserID + Separator + k.RecordName
}

// FileName returns the current record filename.
func (k Key) FileName() string {
	return k.Base() + Extension
}

func (k Key) String() string {
	return k.Base()
}

// ParseFileName splits a current record filename on its first separator.
// ok is false for names that are not current records.
func ParseFileName(name string) (Key, bool) {
	if !strings.HasSuffix(name, Extension) {
		return Key{}, false
	}
	base := strings.TrimSuffix(name, Extension)
	userID, recordName, found := strings.Cut(base, Separator)
	if !found || userID == "" || recordName == "" {
		return Key{}, false
	}
	return Key{UserID: userID, RecordName: recordName}, true
}
