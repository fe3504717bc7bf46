// Package models - user.go defines the User model for registry accounts
// authenticated through GitHub OAuth.
package models

import "time"

// User represents a registry account
type User struct {
	ID          string    `json:"id" db:"id"`
	GitHubID    int64     `json:"github_id" db:"github_id"`
	Username    string    `json:"username" db:"username"`
	DisplayName *string   `json:"display_name,omitempty" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	Avatar      *string   `json:"avatar,omitempty" db:"avatar"`
	Banner      *string   `json:"banner,omitempty" db:"banner"`
	Permissions int32     `json:"permissions" db:"permissions"`
	APIKey      string    `json:"-" db:"api_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PublicProfile strips fields that must never leave the server for anyone but
// the account owner (email, API key).
func (u *User) PublicProfile() *User {
	p := *u
	p.Email = ""
	p.APIKey = ""
	return &p
}
