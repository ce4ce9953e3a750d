package userstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/refstack/refstack/internal/app/system/normalize"
	"github.com/refstack/refstack/internal/domain/models"
)

// prepareNew fills the fields every backend sets on insert.
func prepareNew(u models.User, now time.Time) (models.User, error) {
	u.Email = normalize.Email(u.Email)
	u.FullName = normalize.Name(u.FullName)
	if u.Email == "" {
		return models.User{}, errEmailRequired
	}
	if u.PasswordHash == "" {
		return models.User{}, errHashRequired
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now = now.UTC().Truncate(time.Millisecond)
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}
