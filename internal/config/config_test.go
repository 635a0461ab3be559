/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"strings"
	"testing"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

func validRawRoot() rawRoot {
	return rawRoot{
		Listen: "127.0.0.1:8000",
		LDAP: rawLDAP{
			ServerURI: "ldap://localhost:389",
			Prefix:    "dc=example,dc=com",
		},
		Auth: rawAuth{
			SecretKey: "s3cr3t",
			View:      "users",
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validate(validRawRoot()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	raw := validRawRoot()
	raw.Listen = "not-an-address"
	raw.LDAP.Prefix = "not-a-suffix"
	raw.LDAP.ServerURI = ""
	raw.Auth.SecretKey = ""
	raw.Auth.View = ""

	err := validate(raw)
	if err == nil {
		t.Fatalf("expected error")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindConfig {
		t.Fatalf("expected KindConfig, got %v", err)
	}

	for _, want := range []string{"listen", "ldap.prefix", "ldap.serverUri", "auth.secretKey", "auth.view"} {
		if !strings.Contains(apiErr.Message, want) {
			t.Errorf("expected aggregated message to mention %q, got %q", want, apiErr.Message)
		}
	}
}

func TestValidateRejectsSingleBadField(t *testing.T) {
	raw := validRawRoot()
	raw.LDAP.Prefix = "cn=example"

	err := validate(raw)
	if err == nil {
		t.Fatalf("expected error for non-dc suffix")
	}
}
