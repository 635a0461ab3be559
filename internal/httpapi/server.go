/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package httpapi wires the view engine, the authenticator and the mailer
// into a gorilla/mux router.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/majewsky/ldap-api-server/internal/auth"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/mailer"
	"github.com/majewsky/ldap-api-server/internal/view"
)

// maxBodyBytes bounds every request body this service accepts.
const maxBodyBytes = 1 << 20 // 1 MiB

// Server binds the view registry, authenticator and mailer to a gorilla/mux
// router implementing this service's REST surface.
type Server struct {
	registry      *view.Registry
	authenticator *auth.Authenticator
	mailSvc       *mailer.Mailer
	gw            directory.Gateway
	allowOrigins  []string
	router        *mux.Router
}

// NewServer builds the router and registers every route.
func NewServer(gw directory.Gateway, registry *view.Registry, authenticator *auth.Authenticator, mailSvc *mailer.Mailer, allowOrigins []string) *Server {
	s := &Server{
		registry:      registry,
		authenticator: authenticator,
		mailSvc:       mailSvc,
		gw:            gw,
		allowOrigins:  allowOrigins,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the fully wired http.Handler for this service, with all
// middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.Methods("POST").Path("/jwt-auth").HandlerFunc(s.handleJWTAuth)
	r.Methods("POST").Path("/jwt-refresh").HandlerFunc(s.requireAuth(s.handleJWTRefresh))
	r.Methods("GET").Path("/auth").HandlerFunc(s.requireAuth(s.handleGetAuth))
	r.Methods("GET").Path("/config").HandlerFunc(s.requireAuth(s.handleGetConfig))
	r.Methods("GET").Path("/register-config").HandlerFunc(s.handleRegisterConfig)
	r.Methods("POST").Path("/register").HandlerFunc(s.handleRegister)
	r.Methods("GET").Path("/anti-spam/").HandlerFunc(s.handleAntiSpam)
	r.Methods("POST").Path("/mail-login").HandlerFunc(s.handleMailLogin)

	r.Methods("GET").Path("/{view}").HandlerFunc(s.requireAuth(s.handleListView))
	r.Methods("POST").Path("/{view}").HandlerFunc(s.requireAuth(s.handleCreateDetail))
	r.Methods("GET").Path("/{view}/self").HandlerFunc(s.requireAuth(s.handleGetSelf))
	r.Methods("PATCH").Path("/{view}/self").HandlerFunc(s.requireAuth(s.handleUpdateSelf))
	r.Methods("GET").Path("/{view}/{pk}").HandlerFunc(s.requireAuth(s.handleGetDetail))
	r.Methods("PATCH").Path("/{view}/{pk}").HandlerFunc(s.requireAuth(s.handleUpdateDetail))
	r.Methods("DELETE").Path("/{view}/{pk}").HandlerFunc(s.requireAuth(s.handleDelete))

	return r
}
