package observability

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

const panicMessage = "Recovered from panic"

func logPanic(logger *Logger, scope string, value any) {
	logger.WithFields(map[string]interface{}{
		"scope": scope,
		"panic": fmt.Sprint(value),
		"stack": string(debug.Stack()),
	}).Error(panicMessage)
}

// RecoverPanic logs a panic in the calling goroutine and swallows it.
// Defer it directly: recover has no effect from a nested call.
func RecoverPanic(logger *Logger, scope string) {
	if r := recover(); r != nil {
		logPanic(logger, scope, r)
	}
}

// RecoveryMiddleware answers 500 for a handler that panics. An
// http.ErrAbortHandler panic is re-raised so the server aborts the response.
func RecoveryMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logPanic(FromContext(r.Context(), logger).WithField("path", r.URL.Path), "http", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
