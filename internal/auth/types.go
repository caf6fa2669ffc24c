package auth

import "time"

// User is a credential store record joined with its role. Read-only for the
// authentication flow except for the last-login bookkeeping.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	Department   string
	Permissions  []string
	Active       bool
	LastLogin    *time.Time
}

// PublicUser is the reduced view of a user returned by login responses. The
// password hash and raw permission internals never leave the flow.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Public returns the response-safe view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.FullName, Role: u.Role}
}
