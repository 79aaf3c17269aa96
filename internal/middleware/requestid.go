// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ventidole/compass/internal/logging"
)

// requestIDHeader carries the request ID between proxy, service, and client.
const requestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID, honoring one set by an upstream
// proxy, and echoes it in the response header. The ID lives in the logging
// context only; handlers read it with logging.RequestIDFromContext.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logging.ContextWithRequestID(r.Context(), id)
		ctx = logging.ContextWithNewCorrelationID(ctx)

		next(w, r.WithContext(ctx))
	}
}
