// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	dashboardfeature "github.com/refstack/refstack/internal/app/features/dashboard"
	errorsfeature "github.com/refstack/refstack/internal/app/features/errors"
	healthfeature "github.com/refstack/refstack/internal/app/features/health"
	homefeature "github.com/refstack/refstack/internal/app/features/home"
	loginfeature "github.com/refstack/refstack/internal/app/features/login"
	logoutfeature "github.com/refstack/refstack/internal/app/features/logout"
	registerfeature "github.com/refstack/refstack/internal/app/features/register"
	resetfeature "github.com/refstack/refstack/internal/app/features/reset"
	userstore "github.com/refstack/refstack/internal/app/store/users"
	"github.com/refstack/refstack/internal/app/system/auditlog"
	"github.com/refstack/refstack/internal/app/system/auth"
	"github.com/refstack/refstack/internal/app/system/authflow"
	"github.com/refstack/refstack/internal/app/system/mailer"
	"github.com/refstack/refstack/internal/app/system/passwords"
	"github.com/refstack/refstack/internal/app/system/ratelimit"
	"github.com/refstack/refstack/internal/app/system/timeouts"
	"github.com/refstack/refstack/internal/app/system/tokens"
	"github.com/refstack/refstack/internal/app/system/viewdata"
	"github.com/refstack/refstack/internal/app/system/workers"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for RefStack.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The account features mounted here are
// driven by AppConfig: /register only when Registerable, /reset only when
// Recoverable, and every successful sign-in lands on PostLoginView.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Debug runs over plain http://localhost, so cookies cannot be Secure.
	secure := !appCfg.Debug
	sessionMgr, err := auth.NewSessionManager(appCfg.SecretKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Reload the user on each request so disabled accounts lose access at once.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.Users))

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(appCfg.Debug || coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	hasher, err := passwords.New(appCfg.PasswordHash, appCfg.PasswordSalt)
	if err != nil {
		logger.Error("password hasher init failed", zap.Error(err))
		return nil, err
	}

	mail := mailer.New(newMailTransport(appCfg, logger), mailer.SenderAddress(appCfg.EmailSender), logger)
	queue := workers.NewMailQueue(mail, logger, appCfg.MailQueueSize, timeouts.Mail())
	queue.Start()

	loginGuard := ratelimit.NewLoginGuard()
	loginGuard.TrustProxy = appCfg.TrustProxy
	resetGuard := ratelimit.NewResetGuard()
	resetGuard.TrustProxy = appCfg.TrustProxy

	if deps.Background != nil {
		deps.Background.MailQueue = queue
		deps.Background.Guards = append(deps.Background.Guards, loginGuard, resetGuard)
	}

	postLogin := PostLoginPath(appCfg.PostLoginView)
	errLog := errorsfeature.NewErrorLogger(logger)
	completer := authflow.NewCompleter(deps.Users, sessionMgr, appCfg.TrustProxy, logger)
	audit := auditlog.New(logger, appCfg.AuditAuth, appCfg.TrustProxy)

	r := chi.NewRouter()

	if appCfg.Debug {
		r.Use(markPlaintext)
	}
	r.Use(csrf.Protect(
		csrfKey(appCfg.SecretKey),
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("CSRF check failed",
				zap.String("path", r.URL.Path),
				zap.Error(csrf.FailureReason(r)))
			errorsfeature.RenderForbidden(w, r, "Your form has expired. Please go back, reload the page and try again.", "")
		})),
	))

	r.Use(viewdata.WithFeatures(viewdata.Features{
		Registerable: appCfg.Registerable,
		Recoverable:  appCfg.Recoverable,
	}))

	// Loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	backend := string(deps.URL.Dialect)
	healthHandler := healthfeature.NewHandler(deps.Users, backend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	homeHandler := homefeature.NewHandler(sessionMgr, postLogin, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.Users, hasher, sessionMgr, completer, loginGuard, errLog, postLogin, logger)
	loginHandler.Audit = audit
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	logoutHandler.Audit = audit
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	if appCfg.Registerable {
		registerHandler := registerfeature.NewHandler(deps.Users, hasher, completer, queue, errLog, appCfg.BaseURL, postLogin, logger)
		registerHandler.Audit = audit
		r.Mount("/register", registerfeature.Routes(registerHandler))
	}

	if appCfg.Recoverable {
		signer := tokens.NewSigner(appCfg.SecretKey, tokens.PurposeReset, appCfg.ResetPasswordWithin)
		resetHandler := resetfeature.NewHandler(deps.Users, hasher, signer, sessionMgr, completer, queue, resetGuard, errLog, appCfg.BaseURL, postLogin, logger)
		resetHandler.Audit = audit
		r.Mount("/reset", resetfeature.Routes(resetHandler))
	}

	dashboardHandler := dashboardfeature.NewHandler(deps.Users, sessionMgr, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.NotFound(errorsHandler.NotFound)

	logger.Info("routes ready",
		zap.String("mail_transport", mail.TransportName()),
		zap.String("mail_from", mail.From()),
		zap.Bool("registerable", appCfg.Registerable),
		zap.Bool("recoverable", appCfg.Recoverable))

	return r, nil
}

// newMailTransport picks Mailgun when an API key is configured, SMTP when a
// server is, and the log otherwise. In debug mode without SMTP credentials
// mail is logged rather than sent to the default server.
func newMailTransport(appCfg AppConfig, logger *zap.Logger) mailer.Transport {
	switch {
	case appCfg.MailgunKey != "":
		return mailer.NewMailgun(appCfg.MailgunDomain, appCfg.MailgunKey, appCfg.MailgunAPI)
	case appCfg.MailServer != "" && !(appCfg.Debug && appCfg.MailPassword == ""):
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     appCfg.MailServer,
			Port:     appCfg.MailPort,
			Username: appCfg.MailUsername,
			Password: appCfg.MailPassword,
			UseSSL:   appCfg.MailUseSSL,
			UseTLS:   appCfg.MailUseTLS,
		})
	default:
		return mailer.LogTransport{Log: logger, ShowBody: appCfg.Debug}
	}
}

// csrfKey derives the 32-byte CSRF authentication key from secret_key.
func csrfKey(secret string) []byte {
	sum := sha256.Sum256([]byte("refstack-csrf:" + secret))
	return sum[:]
}

// markPlaintext tells gorilla/csrf the request arrived over plain HTTP so
// its origin checks do not demand https.
func markPlaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
