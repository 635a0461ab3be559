/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/groups"
	"github.com/majewsky/ldap-api-server/internal/mailer"
	"github.com/majewsky/ldap-api-server/internal/view"
)

func decodeBody(r *http.Request, out any) error {
	if err := requireJSONContentType(r); err != nil {
		return err
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if err.Error() == "http: request body too large" {
			return apierr.PayloadTooLarge("request body exceeds %d bytes", maxBodyBytes)
		}
		return apierr.Validationf("malformed JSON body: %s", err.Error())
	}
	return nil
}

func decodeAssignment(r *http.Request) (map[string]groups.Assignment, error) {
	var assign map[string]groups.Assignment
	if err := decodeBody(r, &assign); err != nil {
		return nil, err
	}
	return assign, nil
}

func (s *Server) viewFromRequest(r *http.Request) (*view.View, error) {
	key := mux.Vars(r)["view"]
	v, ok := s.registry.View(key)
	if !ok {
		return nil, apierr.NotFound("unknown view %q", key)
	}
	return v, nil
}

// handleJWTAuth implements `POST /jwt-auth`.
func (s *Server) handleJWTAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := s.authenticator.Login(r.Context(), s.gw, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeTokenAndUser(w, r, token, req.Username)
}

// handleJWTRefresh implements `POST /jwt-refresh`.
func (s *Server) handleJWTRefresh(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r)
	token, err := s.authenticator.Relogin(r.Context(), principal.PrimaryKey)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeTokenAndUser(w, r, token, principal.PrimaryKey)
}

// writeTokenAndUser renders {token, user} as required by the jwt-auth and
// jwt-refresh responses; user is looked up through the auth view so the
// caller always sees the fresh record, not a stale claim snapshot.
func (s *Server) writeTokenAndUser(w http.ResponseWriter, r *http.Request, token, primaryKey string) {
	user, err := s.authenticator.View().GetAuthEntry(r.Context(), primaryKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// handleGetAuth implements `GET /auth`.
func (s *Server) handleGetAuth(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r)
	writeJSON(w, http.StatusOK, map[string]any{"primaryKey": principal.PrimaryKey, "permissions": principal.Permissions})
}

// handleGetConfig implements `GET /config`.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r)
	doc := map[string]any{}
	for _, key := range s.registry.Keys() {
		v, _ := s.registry.View(key)
		doc[key] = v.UserConfig(principal)
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleRegisterConfig implements `GET /register-config`.
func (s *Server) handleRegisterConfig(w http.ResponseWriter, r *http.Request) {
	if err := requireJSONAccept(r); err != nil {
		writeError(w, err)
		return
	}
	v := s.authenticator.View()
	doc := v.PublicConfig()
	if doc == nil {
		writeError(w, apierr.NotFound("this service has no self-registration view"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleRegister implements `POST /register`.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AntiSpamToken  string                        `json:"antiSpamToken"`
		AntiSpamAnswer string                        `json:"antiSpamAnswer"`
		Assignments    map[string]groups.Assignment `json:"assignments"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.authenticator.AntiSpam.VerifyAnswer(req.AntiSpamToken, req.AntiSpamAnswer); err != nil {
		writeError(w, err)
		return
	}

	v := s.authenticator.View()
	if err := v.CreateRegister(r.Context(), req.Assignments); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// handleAntiSpam implements `GET /anti-spam/`.
func (s *Server) handleAntiSpam(w http.ResponseWriter, r *http.Request) {
	if err := requireJSONAccept(r); err != nil {
		writeError(w, err)
		return
	}
	token, question, err := s.authenticator.AntiSpam.RandomQuestion()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "question": question})
}

// handleMailLogin implements `POST /mail-login`.
func (s *Server) handleMailLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mail string `json:"mail"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v := s.authenticator.View()
	pk, err := v.ResolvePrimaryKeyByMail(r.Context(), req.Mail)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := s.authenticator.AutoLogin(r.Context(), pk)
	if err != nil {
		writeError(w, err)
		return
	}
	language := requestLanguage(r)
	if err := s.mailSvc.Send(r.Context(), mailer.AutoLoginNoticeName, language, req.Mail, map[string]string{"Token": token}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// requestLanguage picks the primary language subtag off Accept-Language
// (e.g. "de-DE,de;q=0.9,en;q=0.8" -> "de"), defaulting to "en" when absent
// or unparsable. The mailer itself falls back to "en" for any language it
// has no template for, so an unsupported subtag here is harmless.
func requestLanguage(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return "en"
	}
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(first, "-")
	first = strings.TrimSpace(first)
	if first == "" {
		return "en"
	}
	return strings.ToLower(first)
}

// handleListView implements `GET /{view}`.
func (s *Server) handleListView(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := v.GetList(r.Context(), principalFromContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCreateDetail implements `POST /{view}`.
func (s *Server) handleCreateDetail(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	assign, err := decodeAssignment(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := v.CreateDetail(r.Context(), principalFromContext(r), assign); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleGetDetail implements `GET /{view}/{pk}`.
func (s *Server) handleGetDetail(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pk := mux.Vars(r)["pk"]
	result, err := v.GetDetailEntry(r.Context(), principalFromContext(r), pk)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUpdateDetail implements `PATCH /{view}/{pk}`.
func (s *Server) handleUpdateDetail(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pk := mux.Vars(r)["pk"]
	assign, err := decodeAssignment(r)
	if err != nil {
		writeError(w, err)
		return
	}
	principal := principalFromContext(r)
	if err := v.UpdateDetails(r.Context(), principal, pk, assign); err != nil {
		writeError(w, err)
		return
	}
	s.respondAfterWrite(w, r, principal, pk)
}

// handleDelete implements `DELETE /{view}/{pk}`.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pk := mux.Vars(r)["pk"]
	if err := v.Delete(r.Context(), principalFromContext(r), pk); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleGetSelf implements `GET /{view}/self`.
func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := v.GetSelfEntry(r.Context(), principalFromContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUpdateSelf implements `PATCH /{view}/self`.
func (s *Server) handleUpdateSelf(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	assign, err := decodeAssignment(r)
	if err != nil {
		writeError(w, err)
		return
	}
	principal := principalFromContext(r)
	if err := v.UpdateSelf(r.Context(), principal, assign); err != nil {
		writeError(w, err)
		return
	}
	s.respondAfterWrite(w, r, principal, principal.PrimaryKey)
}

// respondAfterWrite issues a refreshed token alongside a 200 whenever the
// caller just modified their own entry, since that write may have changed
// the permissions or invalidation timestamp embedded in their token.
func (s *Server) respondAfterWrite(w http.ResponseWriter, r *http.Request, principal view.Principal, pk string) {
	if pk != principal.PrimaryKey {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	token, err := s.authenticator.Relogin(r.Context(), principal.PrimaryKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
