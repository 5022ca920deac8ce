// Package domain contains core domain types for the wellness planner.
package domain

import (
	"strings"
	"time"
)

// User is the identity/credential record kept next to a user's session.
type User struct {
	UID            int64      `json:"uid"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	CredentialHash string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// HasEmail returns true if the user registered with an email address.
func (u *User) HasEmail() bool {
	return u.Email != ""
}

// NormalizeEmail lowercases and trims an email so the unique key is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SessionSummary is the listing projection of one user and their session.
type SessionSummary struct {
	UID         int64      `json:"uid"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}
