package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/domain/models"
)

const userColumns = `id, email, full_name, password_hash, active, confirmed_at,
	last_login_at, current_login_ip, login_count, created_at, updated_at`

// SQLStore keeps users in the "users" table created by the migrations
// package. Queries are written with ? placeholders and rebound for the
// connection's driver.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQL wraps an open sqlx handle.
func NewSQL(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, u models.User) (models.User, error) {
	u, err := prepareNew(u, time.Now())
	if err != nil {
		return models.User{}, err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :full_name, :password_hash, :active, :confirmed_at,
			:last_login_at, :current_login_ip, :login_count, :created_at, :updated_at)`, u)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "email = ?", normalize.Email(email))
}

func (s *SQLStore) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	q := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := s.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *SQLStore) UpdatePassword(ctx context.Context, id, hash string) error {
	if hash == "" {
		return errHashRequired
	}
	return s.exec(ctx, "update password",
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now(), id)
}

func (s *SQLStore) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return s.exec(ctx, "record login",
		`UPDATE users SET last_login_at = ?, current_login_ip = ?,
			login_count = login_count + 1, updated_at = ? WHERE id = ?`,
		at.UTC().Truncate(time.Millisecond), ip, now(), id)
}

func (s *SQLStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, "set active",
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		active, now(), id)
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// exec runs a single-row update and maps "no rows" to ErrNotFound.
func (s *SQLStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// isUniqueViolation recognizes unique-constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
