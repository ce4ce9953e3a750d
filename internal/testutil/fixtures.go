package testutil

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/domain/models"
)

// TestSalt is the password salt used by fixtures and handler tests.
const TestSalt = "test-salt"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewHasher returns the sha512_crypt hasher tests share with fixtures.
func NewHasher(t *testing.T) *passwords.Hasher {
	t.Helper()
	h, err := passwords.New(passwords.SHA512Crypt, TestSalt)
	if err != nil {
		t.Fatalf("create hasher: %v", err)
	}
	return h
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	t      *testing.T
	store  userstore.Store
	hasher *passwords.Hasher
}

// NewFixtures creates a new Fixtures instance over store.
func NewFixtures(t *testing.T, store userstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{t: t, store: store, hasher: NewHasher(t)}
}

// Store returns the underlying store for direct access in tests.
func (f *Fixtures) Store() userstore.Store {
	return f.store
}

// Hasher returns the hasher the fixtures hash passwords with.
func (f *Fixtures) Hasher() *passwords.Hasher {
	return f.hasher
}

// CreateUser creates an active user with the given password.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, password string) models.User {
	f.t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	u, err := f.store.Create(ctx, models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateInactiveUser creates a user that may not sign in.
func (f *Fixtures) CreateInactiveUser(ctx context.Context, fullName, email, password string) models.User {
	f.t.Helper()

	u := f.CreateUser(ctx, fullName, email, password)
	if err := f.store.SetActive(ctx, u.ID, false); err != nil {
		f.t.Fatalf("deactivate test user: %v", err)
	}
	u.Active = false
	return u
}
