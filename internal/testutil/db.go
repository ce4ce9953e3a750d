package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/refstack/refstack/internal/app/store/migrations"
	"github.com/refstack/refstack/internal/app/system/dburl"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoURIEnv names the variable that enables MongoDB-backed tests.
const MongoURIEnv = "REFSTACK_TEST_MONGO_URI"

// TestContext returns a context with a timeout suitable for tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// SetupTestDB opens a private in-memory sqlite database with the schema
// migrated. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(db.DB, dburl.SQLite, zap.NewNop()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// SetupMongoDB connects to the server named by REFSTACK_TEST_MONGO_URI and
// returns a throwaway database that is dropped when the test ends. The test
// is skipped when the variable is unset.
func SetupMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set; skipping MongoDB test", MongoURIEnv)
	}

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping mongo: %v", err)
	}

	db := client.Database("refstack_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
