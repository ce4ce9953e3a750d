package userstore

import (
	"context"

	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/timeouts"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each request.
type Fetcher struct {
	store Store
}

// NewFetcher creates a UserFetcher backed by store.
func NewFetcher(store Store) *Fetcher {
	return &Fetcher{store: store}
}

// FetchUser retrieves a user by ID and returns nil if the user is not found,
// inactive, or if any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	if userID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := f.store.GetByID(ctx, userID)
	if err != nil || !u.Active {
		return nil
	}
	return &auth.SessionUser{
		ID:    u.ID,
		Name:  u.DisplayName(),
		Email: u.Email,
	}
}
