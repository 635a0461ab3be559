/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sapcc/go-bits/logg"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logg.Error("cannot encode response body: %s", err.Error())
	}
}

// writeError renders err as a JSON error body, mapping its apierr.Kind to
// the matching HTTP status code.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		logg.Error("unexpected error: %s", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Kind: "internal_error", Message: "internal error"})
		return
	}

	status := statusForKind(apiErr.Kind)
	if apiErr.Kind == apierr.KindUpstreamDirectory || apiErr.Kind == apierr.KindMailer || apiErr.Kind == apierr.KindConfig {
		logg.Error("%s: %s", apiErr.Kind, apiErr.Error())
	}

	writeJSON(w, status, errorBody{
		Kind:    string(apiErr.Kind),
		Message: apiErr.Message,
		Field:   apiErr.Field,
	})
}

type errorBody struct {
	Kind    string           `json:"kind"`
	Message string           `json:"message"`
	Field   *apierr.FieldTree `json:"field,omitempty"`
}

func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindUnauthorized:
		return http.StatusUnauthorized
	case apierr.KindForbidden:
		return http.StatusForbidden
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindConflict:
		return http.StatusConflict
	case apierr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apierr.KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
