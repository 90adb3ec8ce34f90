// Package profile provides multi-profile management for Pocket. A profile is
// an isolated local environment (its own receipts database and sync queue),
// letting one device hold separate personal and company workspaces.
package profile

import (
	"errors"
	"regexp"
	"strings"
)

// Profile ID validation errors.
var (
	// ErrInvalidProfileID indicates the profile ID format is invalid.
	ErrInvalidProfileID = errors.New("invalid profile ID: must be lowercase alphanumeric with hyphens, 1-4 path segments")

	// ErrReservedProfileID indicates the profile ID is reserved and cannot be created.
	ErrReservedProfileID = errors.New("reserved profile ID: cannot create profiles with reserved IDs")
)

// profileIDRegex validates profile ID format.
// Format: <segment>[/<segment>]*
// - 1-4 path segments separated by /
// - Segments: lowercase alphanumeric and hyphens (a-z, 0-9, -)
// - Segment length: 1-64 characters
// - No leading/trailing hyphens, no consecutive hyphens
// - Total max length: 256 characters
var profileIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(\/[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?){0,3}$`)

// Reserved profile IDs that cannot be created (but can be targeted).
var reservedProfileIDs = map[string]bool{
	"default": true,
	"_system": true,
}

// ValidateProfileID validates a profile ID format.
// Returns ErrInvalidProfileID if the ID doesn't match the required pattern.
// Reserved IDs (like "_system") are valid for targeting but not creation.
func ValidateProfileID(id string) error {
	if id == "" {
		return ErrInvalidProfileID
	}
	if len(id) > 256 {
		return ErrInvalidProfileID
	}
	// Allow reserved IDs to pass validation (they can be targeted)
	if reservedProfileIDs[id] {
		return nil
	}
	// Check for consecutive hyphens (not caught by regex)
	if strings.Contains(id, "--") {
		return ErrInvalidProfileID
	}
	if !profileIDRegex.MatchString(id) {
		return ErrInvalidProfileID
	}
	return nil
}

// IsReservedProfileID returns true if the profile ID is reserved.
func IsReservedProfileID(id string) bool {
	return reservedProfileIDs[id]
}

// ValidateProfileIDForCreation validates a profile ID for creation operations.
// Returns error if invalid format or reserved.
func ValidateProfileIDForCreation(id string) error {
	if err := ValidateProfileID(id); err != nil {
		return err
	}
	if IsReservedProfileID(id) {
		return ErrReservedProfileID
	}
	return nil
}
