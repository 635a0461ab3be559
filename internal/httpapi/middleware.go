/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sapcc/go-bits/logg"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/view"
)

type contextKey int

const principalContextKey contextKey = iota

// withMiddleware wraps h with request-ID logging, CORS headers and a
// request body size limit. Bearer-token verification is applied per-route
// via requireAuth, since not every route requires it.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return s.withCORS(s.withLogging(s.withBodyLimit(h)))
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		logg.Debug("[%s] %s %s", requestID, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logg.Debug("[%s] completed in %s", requestID, time.Since(start))
	})
}

func (s *Server) withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.allowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// requireJSONAccept enforces that the caller declares it accepts JSON, per
// spec: every response is JSON, so a caller that cannot accept it is
// rejected up front.
func requireJSONAccept(r *http.Request) error {
	accept := r.Header.Get("Accept")
	if accept == "" || strings.Contains(accept, "*/*") || strings.Contains(accept, "application/json") {
		return nil
	}
	return apierr.UnsupportedMediaType("this endpoint only produces application/json")
}

// requireJSONContentType enforces that a request body carrying a payload
// declares itself as JSON.
func requireJSONContentType(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	mediaType := strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	if mediaType != "application/json" {
		return apierr.UnsupportedMediaType("request body must be application/json")
	}
	return nil
}

// requireAuth wraps a handler with bearer-token verification, storing the
// resulting view.Principal in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireJSONAccept(r); err != nil {
			writeError(w, err)
			return
		}

		header := r.Header.Get("Authorization")
		prefix := s.authenticator.HeaderPrefix()
		if prefix == "" {
			prefix = "Bearer"
		}
		prefix += " "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, apierr.Unauthorized("missing or malformed Authorization header"))
			return
		}
		token := strings.TrimPrefix(header, prefix)

		principal, err := s.authenticator.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func principalFromContext(r *http.Request) view.Principal {
	p, _ := r.Context().Value(principalContextKey).(view.Principal)
	return p
}
