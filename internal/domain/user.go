package domain

import (
	"strings"
	"time"
)

// User is the local account mirrored from a Supabase identity.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	SupabaseID   string
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
	UpdatedAt    time.Time
}

// NewUser holds the fields required to insert a user row.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	SupabaseID   string
}

// EmailLocalPart returns the part of an address before the first "@".
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
