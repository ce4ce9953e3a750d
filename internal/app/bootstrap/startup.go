// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/refstack/refstack/internal/app/resources"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It loads
// the shared layout templates and reports the account settings in effect.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	t := timeouts.Current()
	logger.Info("refstack starting",
		zap.String("env", coreCfg.Env),
		zap.Bool("debug", appCfg.Debug),
		zap.String("database", deps.URL.Redacted()),
		zap.String("password_hash", appCfg.PasswordHash),
		zap.Bool("registerable", appCfg.Registerable),
		zap.Bool("recoverable", appCfg.Recoverable),
		zap.String("post_login", PostLoginPath(appCfg.PostLoginView)),
		zap.Duration("timeout_ping", t.Ping),
		zap.Duration("timeout_short", t.Short),
		zap.Duration("timeout_medium", t.Medium),
		zap.Duration("timeout_mail", t.Mail))

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if n, err := deps.Users.Count(ctx); err != nil {
		logger.Warn("could not count users", zap.Error(err))
	} else {
		logger.Info("user accounts", zap.Int64("count", n))
	}
	return nil
}
