package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"tmis-business-guru/internal/common/auth"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody reads a bounded request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return nil, errors.NewValidationFailedError("failed to read request body")
	}
	return body, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationFailedError("invalid JSON body: " + err.Error())
	}
	return nil
}

// viewer returns the authenticated viewer; the auth middleware guarantees one under /api.
func viewer(r *http.Request) auth.Viewer {
	v, _ := auth.GetViewer(r.Context())
	return v
}

// owner keys per-viewer state such as intake sessions.
func owner(v auth.Viewer) string {
	if v.ID != "" {
		return v.ID
	}
	return v.Email
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"statusCode": ww.Status(),
				"bytes":      ww.BytesWritten(),
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  middleware.GetReqID(r.Context()),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Warn("request failed", fields)
				return
			}
			log.Debug("request served", fields)
		})
	}
}
