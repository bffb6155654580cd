// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// For the websocket endpoint the duration covers the whole connection.
func LogMiddleware(logger logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogConnect logs a client connecting over transport ("tcp" or "websocket").
func LogConnect(logger logrus.FieldLogger, transport, remoteAddr string) {
	logger.WithFields(logrus.Fields{
		"remote":    remoteAddr,
		"transport": transport,
	}).Info("Client connected")
}

// LogDisconnect logs a client going away. err is the reason the session ended, if any.
func LogDisconnect(logger logrus.FieldLogger, transport, remoteAddr string, connected time.Duration, err error) {
	fields := logrus.Fields{
		"remote":    remoteAddr,
		"transport": transport,
		"duration":  connected,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("Client disconnected")
}
