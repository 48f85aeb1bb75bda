package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("register: %w", NewValidationError("Passwords do not match"))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if err.Error() != "register: Passwords do not match" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFieldErrorsPicksFirstFieldMessage(t *testing.T) {
	err := FieldErrors(map[string][]string{
		"username": {"A user with that username already exists."},
		"password": {"This password is too short. It must contain at least 8 characters."},
	})
	if err.Message != "This password is too short. It must contain at least 8 characters." {
		t.Fatalf("message = %q", err.Message)
	}
}

func TestUpstreamAndAuthErrors(t *testing.T) {
	up := &UpstreamError{Service: "supabase", Message: "User already registered"}
	if !errors.Is(up, ErrUpstream) || up.Error() != "User already registered" {
		t.Fatalf("unexpected upstream error %v", up)
	}
	auth := &AuthError{Message: "Bearer token malformed"}
	if !errors.Is(auth, ErrUnauthorized) {
		t.Fatal("auth error must match ErrUnauthorized")
	}
}

func TestEmailLocalPart(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "alice",
		" bob@x.io ":        "bob",
		"noat":              "noat",
	}
	for in, want := range cases {
		if got := EmailLocalPart(in); got != want {
			t.Fatalf("EmailLocalPart(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAdminPromptString(t *testing.T) {
	p := AdminPrompt{IsActive: true, UpdatedAt: time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)}
	if got := p.String(); got != "Admin Prompt (Active) - 2024-03-05 14:07" {
		t.Fatalf("String() = %q", got)
	}
	p.IsActive = false
	if got := p.String(); got != "Admin Prompt (Inactive) - 2024-03-05 14:07" {
		t.Fatalf("String() = %q", got)
	}
}
