package profile_test

import (
	"errors"
	"testing"

	"github.com/receiptwise/pocket/internal/profile"
)

func TestResolveProfile_ExplicitWins(t *testing.T) {
	t.Setenv("POCKET_PROFILE", "from-env")

	got, err := profile.ResolveProfile("explicit")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if got != "explicit" {
		t.Errorf("resolved %q, want %q", got, "explicit")
	}
}

func TestResolveProfile_EnvFallback(t *testing.T) {
	t.Setenv("POCKET_PROFILE", "from-env")

	got, err := profile.ResolveProfile("")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if got != "from-env" {
		t.Errorf("resolved %q, want %q", got, "from-env")
	}
}

func TestResolveProfile_Default(t *testing.T) {
	t.Setenv("POCKET_PROFILE", "")

	got, err := profile.ResolveProfile("")
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if got != "default" {
		t.Errorf("resolved %q, want %q", got, "default")
	}
}

func TestResolveProfile_InvalidExplicit(t *testing.T) {
	_, err := profile.ResolveProfile("Not-Valid")
	if !errors.Is(err, profile.ErrInvalidProfileID) {
		t.Errorf("error = %v, want ErrInvalidProfileID", err)
	}
}

func TestResolveProfile_InvalidEnv(t *testing.T) {
	t.Setenv("POCKET_PROFILE", "bad__env")

	_, err := profile.ResolveProfile("")
	if !errors.Is(err, profile.ErrInvalidProfileID) {
		t.Errorf("error = %v, want ErrInvalidProfileID", err)
	}
}
