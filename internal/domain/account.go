package domain

import "time"

// RegisteredAccount is a persisted credential record. The password is kept
// only as a bcrypt hash; accounts are keyed by lowercased email.
type RegisteredAccount struct {
	Email           string     `json:"email"`
	PasswordHash    string     `json:"password_hash"`
	RegisteredAt    time.Time  `json:"registered_at"`
	PasswordResetAt *time.Time `json:"password_reset_at,omitempty"`
}

// Session is the authenticated identity active for the current client.
// At most one session exists at a time.
type Session struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
