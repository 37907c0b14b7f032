// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// ErrorLogger logs a failure with request context and writes the JSON error
// body. Handlers hold one and call it on every non-2xx path so that 5xx
// responses never carry internal error text.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger wraps logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	f := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		f = append(f, zap.String("request_id", rid))
	}
	if err != nil {
		f = append(f, zap.Error(err))
	}
	return f
}

// LogServerError logs at error level and responds 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Error(logMsg, e.fields(r, err)...)
	if userMsg == "" {
		userMsg = "Server Error"
	}
	jsonutil.Error(w, r, http.StatusInternalServerError, userMsg)
}

// LogBadRequest logs at info level and responds 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg string) {
	e.Log.Info(logMsg, e.fields(r, err)...)
	jsonutil.Error(w, r, http.StatusBadRequest, userMsg)
}

// LogForbidden logs at warn level and responds 403 with userMsg.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, logMsg string, userMsg string) {
	e.Log.Warn(logMsg, e.fields(r, nil)...)
	jsonutil.Error(w, r, http.StatusForbidden, userMsg)
}

// NotFound is the router's fallback for unknown API paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, r, http.StatusNotFound, "Not Found - "+r.URL.Path)
}

// MethodNotAllowed is the router's fallback for known paths with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
}
