package userstore_test

import (
	"context"
	"testing"
	"time"

	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/indexes"
	"github.com/refstack/refstack/internal/domain/models"
	"github.com/refstack/refstack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// backends returns a constructor per store implementation. Mongo is
// skipped unless REFSTACK_TEST_MONGO_URI is set.
func backends() map[string]func(t *testing.T) userstore.Store {
	return map[string]func(t *testing.T) userstore.Store{
		"sqlite": func(t *testing.T) userstore.Store {
			return userstore.NewSQL(testutil.SetupTestDB(t))
		},
		"mongo": func(t *testing.T) userstore.Store {
			db := testutil.SetupMongoDB(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()
			require.NoError(t, indexes.EnsureAll(ctx, db, zap.NewNop()))
			return userstore.NewMongo(db)
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store userstore.Store, ctx context.Context)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()
			fn(t, store, ctx)
		})
	}
}

func TestStore_Create(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		created, err := store.Create(ctx, models.User{
			FullName:     "  Ada   Lovelace ",
			Email:        "  Ada@Example.COM ",
			PasswordHash: "$6$hash",
			Active:       true,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, "Ada Lovelace", created.FullName)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, got.Email)
		assert.Equal(t, "$6$hash", got.PasswordHash)
		assert.True(t, got.Active)
		assert.Nil(t, got.LastLoginAt)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		_, err := store.Create(ctx, models.User{Email: "dup@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		_, err = store.Create(ctx, models.User{Email: "DUP@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, userstore.ErrDuplicateEmail)
	})
}

func TestStore_Create_RequiresFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		_, err := store.Create(ctx, models.User{Email: "  ", PasswordHash: "h"})
		assert.Error(t, err)

		_, err = store.Create(ctx, models.User{Email: "a@example.com"})
		assert.Error(t, err)
	})
}

func TestStore_GetByEmail(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		created, err := store.Create(ctx, models.User{Email: "case@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		got, err := store.GetByEmail(ctx, " CASE@Example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = store.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, userstore.ErrNotFound)
	})
}

func TestStore_GetByID_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		_, err := store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, userstore.ErrNotFound)
	})
}

func TestStore_UpdatePassword(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		created, err := store.Create(ctx, models.User{Email: "pw@example.com", PasswordHash: "old"})
		require.NoError(t, err)

		require.NoError(t, store.UpdatePassword(ctx, created.ID, "new"))

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)

		assert.ErrorIs(t, store.UpdatePassword(ctx, "missing", "x"), userstore.ErrNotFound)
		assert.Error(t, store.UpdatePassword(ctx, created.ID, ""))
	})
}

func TestStore_RecordLogin(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		created, err := store.Create(ctx, models.User{Email: "login@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
		require.NoError(t, store.RecordLogin(ctx, created.ID, "203.0.113.7", at))
		require.NoError(t, store.RecordLogin(ctx, created.ID, "198.51.100.2", at.Add(time.Hour)))

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.LoginCount)
		assert.Equal(t, "198.51.100.2", got.CurrentLoginIP)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, at.Add(time.Hour).Equal(*got.LastLoginAt))

		assert.ErrorIs(t, store.RecordLogin(ctx, "missing", "", at), userstore.ErrNotFound)
	})
}

func TestStore_SetActive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		created, err := store.Create(ctx, models.User{Email: "active@example.com", PasswordHash: "h", Active: true})
		require.NoError(t, err)

		require.NoError(t, store.SetActive(ctx, created.ID, false))
		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)

		assert.ErrorIs(t, store.SetActive(ctx, "missing", true), userstore.ErrNotFound)
	})
}

func TestStore_CountAndPing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store userstore.Store, ctx context.Context) {
		require.NoError(t, store.Ping(ctx))

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		for _, e := range []string{"a@example.com", "b@example.com"} {
			_, err := store.Create(ctx, models.User{Email: e, PasswordHash: "h"})
			require.NoError(t, err)
		}

		n, err = store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
