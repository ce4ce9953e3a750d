// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/jmoiron/sqlx"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/dburl"
	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"github.com/refstack/refstack/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app. Exactly one of
// SQL or MongoClient is set, depending on the database_url scheme.
type DBDeps struct {
	URL dburl.URL

	SQL *sqlx.DB

	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Users is backed by whichever connection was opened.
	Users userstore.Store

	// Background is filled by BuildHandler and stopped by Shutdown.
	Background *Background
}

// Background holds the long-running helpers started with the HTTP handler.
type Background struct {
	MailQueue *workers.MailQueue
	Guards    []*ratelimit.Guard
}

// stop is safe on a nil or partially filled Background.
func (b *Background) stop() {
	if b == nil {
		return
	}
	if b.MailQueue != nil {
		b.MailQueue.Stop()
	}
	for _, g := range b.Guards {
		g.Stop()
	}
}
