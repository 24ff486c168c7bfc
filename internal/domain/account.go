package domain

import "time"

// Account is a login identity for the HTTP surface. The account ID doubles
// as the actor ID used in tickets and birthday records.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}
