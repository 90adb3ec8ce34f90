package profile

import (
	"fmt"
	"os"
)

// ResolveProfile determines the profile ID to use based on priority chain.
// Priority: explicit > POCKET_PROFILE env > "default"
// Returns the resolved profile ID and any validation error.
func ResolveProfile(explicit string) (string, error) {
	// 1. Explicit parameter takes precedence
	if explicit != "" {
		if err := ValidateProfileID(explicit); err != nil {
			return "", fmt.Errorf("invalid profile ID %q: %w", explicit, err)
		}
		return explicit, nil
	}

	// 2. Environment variable
	if envProfile := os.Getenv("POCKET_PROFILE"); envProfile != "" {
		if err := ValidateProfileID(envProfile); err != nil {
			return "", fmt.Errorf("invalid POCKET_PROFILE %q: %w", envProfile, err)
		}
		return envProfile, nil
	}

	// 3. Default fallback
	return "default", nil
}
