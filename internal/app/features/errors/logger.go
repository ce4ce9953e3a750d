// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/refstack/refstack/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs a handler failure with request context and then shows
// the user a friendly page. Internal details never reach the response.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger writing to logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// LogServerError logs err at error level and renders a 500 page with
// userMsg and a link back to backURL.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Error(msg, e.fields(r, err)...)
	RenderError(w, r, http.StatusInternalServerError, userMsg, backURL)
}

// LogBadRequest logs err at warn level and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Warn(msg, e.fields(r, err)...)
	RenderError(w, r, http.StatusBadRequest, userMsg, backURL)
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	return fields
}
