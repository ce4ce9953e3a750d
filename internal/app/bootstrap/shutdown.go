// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down DB connections and other resources.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Drain queued mail before the connections go away.
	deps.Background.stop()

	if deps.SQL != nil {
		logger.Info("closing SQL database", zap.String("dialect", string(deps.URL.Dialect)))
		if err := deps.SQL.Close(); err != nil {
			logger.Error("SQL close failed", zap.Error(err))
			return err
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
