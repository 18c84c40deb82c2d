package models

import "time"

// Profile is a verified identity as reported by the identity directory.
type Profile struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	VerifiedAt  time.Time `json:"verified_at"`
}
