// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/refstack/refstack/internal/app/store/migrations"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/dburl"
	"github.com/refstack/refstack/internal/app/system/indexes"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// SQL pool settings for postgres. sqlite always runs with a single
// connection since writers serialize on the file lock anyway.
const (
	sqlMaxOpenConns    = 25
	sqlMaxIdleConns    = 5
	sqlConnMaxLifetime = 5 * time.Minute
)

// ConnectDB opens the backend named by database_url and verifies it with a
// ping.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	u, err := dburl.Parse(appCfg.DatabaseURL)
	if err != nil {
		return DBDeps{}, err
	}
	logger.Info("connecting to database",
		zap.String("dialect", string(u.Dialect)),
		zap.String("url", u.Redacted()))

	if u.IsSQL() {
		db, err := openSQL(ctx, u)
		if err != nil {
			return DBDeps{}, err
		}
		return DBDeps{URL: u, SQL: db, Users: userstore.NewSQL(db), Background: &Background{}}, nil
	}

	client, err := openMongo(ctx, u, appCfg)
	if err != nil {
		return DBDeps{}, err
	}
	db := client.Database(u.Database)
	return DBDeps{
		URL:           u,
		MongoClient:   client,
		MongoDatabase: db,
		Users:         userstore.NewMongo(db),
		Background:    &Background{},
	}, nil
}

func openSQL(ctx context.Context, u dburl.URL) (*sqlx.DB, error) {
	if u.Dialect == dburl.SQLite {
		if err := ensureSQLiteDir(u.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.Dialect, err)
	}

	if u.Dialect == dburl.SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(sqlMaxOpenConns)
		db.SetMaxIdleConns(sqlMaxIdleConns)
		db.SetConnMaxLifetime(sqlConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", u.Dialect, err)
	}
	return db, nil
}

// ensureSQLiteDir creates the directory holding a file-backed database.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %s: %w", dir, err)
	}
	return nil
}

func openMongo(ctx context.Context, u dburl.URL, appCfg AppConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(u.DSN)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureSchema runs the SQL migrations, or builds the MongoDB indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	switch {
	case deps.SQL != nil:
		if err := migrations.Up(deps.SQL.DB, deps.URL.Dialect, logger); err != nil {
			logger.Error("schema migration failed", zap.Error(err))
			return err
		}
	case deps.MongoDatabase != nil:
		ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		defer cancel()
		if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
			logger.Error("index setup failed", zap.Error(err))
			return err
		}
	default:
		return fmt.Errorf("no database connection")
	}
	return nil
}
