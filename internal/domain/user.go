package domain

import "time"

// AuthProvider tags how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// Role names are fixed; membership is re-read from the store on every request
// and never taken from token claims.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a principal that can authenticate against the API.
// A local account carries a password hash and ProviderLocal; an account minted
// from an OAuth2 callback carries an empty hash and ProviderGoogle.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	AvatarURL    string
	Provider     AuthProvider
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user's role set contains role.
func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is a convenience shortcut for HasRole(RoleAdmin).
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}
