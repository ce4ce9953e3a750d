// internal/domain/models/user.go
package models

import "time"

// User is a registered RefStack account.
//
// The same struct is stored by every backend: bson tags for MongoDB and
// db tags for the SQL stores. ID is a UUID string so it is portable
// between them.
type User struct {
	ID           string `bson:"_id" db:"id" json:"id"`
	Email        string `bson:"email" db:"email" json:"email"` // trimmed + lowercased, unique
	FullName     string `bson:"full_name" db:"full_name" json:"full_name"`
	PasswordHash string `bson:"password_hash" db:"password_hash" json:"-"`
	Active       bool   `bson:"active" db:"active" json:"active"`

	ConfirmedAt    *time.Time `bson:"confirmed_at,omitempty" db:"confirmed_at" json:"confirmed_at,omitempty"`
	LastLoginAt    *time.Time `bson:"last_login_at,omitempty" db:"last_login_at" json:"last_login_at,omitempty"`
	CurrentLoginIP string     `bson:"current_login_ip,omitempty" db:"current_login_ip" json:"-"`
	LoginCount     int        `bson:"login_count" db:"login_count" json:"login_count"`

	CreatedAt time.Time `bson:"created_at" db:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" db:"updated_at" json:"updated_at"`
}

// DisplayName returns the full name, falling back to the email address.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
