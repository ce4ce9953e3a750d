// Package userstore persists RefStack accounts.
//
// Two implementations share the Store interface: SQLStore (sqlite or
// postgres through sqlx) and MongoStore. Which one runs is decided by the
// scheme of database_url.
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/refstack/refstack/internal/domain/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errEmailRequired  = errors.New("email is required")
	errHashRequired   = errors.New("password hash is required")
)

// Store is the account persistence used by the auth features.
type Store interface {
	// Create assigns an ID and timestamps, normalizes the email and inserts.
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	// RecordLogin stamps the login time and address and bumps LoginCount.
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
