package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps users in the "users" collection. The unique index on
// email is created by indexes.EnsureAll.
type MongoStore struct {
	c *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection("users")}
}

func (s *MongoStore) Create(ctx context.Context, u models.User) (models.User, error) {
	u, err := prepareNew(u, time.Now())
	if err != nil {
		return models.User{}, err
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetByID loads a user by its UUID.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id, hash string) error {
	if hash == "" {
		return errHashRequired
	}
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    now(),
	}})
}

func (s *MongoStore) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"last_login_at":    at.UTC().Truncate(time.Millisecond),
			"current_login_ip": ip,
			"updated_at":       now(),
		},
		"$inc": bson.M{"login_count": 1},
	})
}

func (s *MongoStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"active":     active,
		"updated_at": now(),
	}})
}

func (s *MongoStore) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.c.Database().Client().Ping(ctx, readpref.Primary())
}
