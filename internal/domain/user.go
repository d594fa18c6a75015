package domain

import "time"

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is a row of the registered-user list shown in the console.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         string
	Status       UserStatus
	RegisteredAt time.Time
	LastLoginAt  *time.Time
	Gender       string
	Prefecture   string
}
