package model

import "time"

// RefreshToken is the persisted half of a token pair. Access tokens are
// stateless; a refresh token must match a live row to be usable.
type RefreshToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}
