package domain

import "time"

// OAuthFlow carries the PKCE verifier between the authorize redirect and the callback.
type OAuthFlow struct {
	ID           string
	CodeVerifier string
	RedirectTo   string
	ExpiresAt    time.Time
}
