// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered pantry account.
//
// PasswordHash is tagged json:"-" so a User can be written straight to a
// response without leaking the bcrypt hash.
//
// IsSuperuser is stored and reported but grants no extra access to food
// items: item operations only ever compare owner IDs.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
}
