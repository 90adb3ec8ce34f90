package profile

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultProfileRoot returns the root directory for all profiles.
// Defaults to ~/.pocket/profiles, falls back to ./.pocket/profiles if home dir unavailable.
func DefaultProfileRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		// Fallback to current working directory
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".pocket", "profiles")
	}
	return filepath.Join(home, ".pocket", "profiles")
}

// EncodeProfilePath encodes a profile ID for filesystem use.
// Replaces "/" with "__" for path-style profile IDs.
func EncodeProfilePath(profileID string) string {
	return strings.ReplaceAll(profileID, "/", "__")
}

// DecodeProfilePath decodes an encoded profile path back to profile ID.
func DecodeProfilePath(encoded string) string {
	return strings.ReplaceAll(encoded, "__", "/")
}

// ProfileDBPath returns the full path to a profile's database file.
// Example: ProfileDBPath("acme/expenses") -> ~/.pocket/profiles/acme__expenses/receipts.db
func ProfileDBPath(profileID string) string {
	encoded := EncodeProfilePath(profileID)
	return filepath.Join(DefaultProfileRoot(), encoded, "receipts.db")
}
