/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestCamelToUnderscore(t *testing.T) {
	cases := map[string]string{
		"serverUri":           "server_uri",
		"autoLoginExpiration": "auto_login_expiration",
		"ssl":                 "ssl",
		"bindDn":              "bind_dn",
	}
	for in, want := range cases {
		if got := camelToUnderscore(in); got != want {
			t.Errorf("camelToUnderscore(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyEnvOverridesReplacesScalarLeaf(t *testing.T) {
	var doc yaml.Node
	src := "ldap:\n  serverUri: ldap://old:389\n  timeout: 5s\n"
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}

	t.Setenv("API_CONFIG_LDAP_SERVER_URI", "ldap://new:389")
	applyEnvOverrides(&doc, nil)

	var raw rawRoot
	if err := doc.Content[0].Decode(&raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if raw.LDAP.ServerURI != "ldap://new:389" {
		t.Fatalf("expected overridden serverUri, got %q", raw.LDAP.ServerURI)
	}
	if time.Duration(raw.LDAP.Timeout) != 5*time.Second {
		t.Fatalf("expected untouched timeout of 5s, got %s", time.Duration(raw.LDAP.Timeout))
	}
}

func TestApplyEnvOverridesLeavesSequencesAlone(t *testing.T) {
	var doc yaml.Node
	src := "allowOrigins:\n  - https://a.example\n  - https://b.example\n"
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}

	t.Setenv("API_CONFIG_ALLOW_ORIGINS", "https://should-not-apply.example")
	applyEnvOverrides(&doc, nil)

	var raw rawRoot
	if err := doc.Content[0].Decode(&raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(raw.AllowOrigins) != 2 {
		t.Fatalf("expected sequence to remain untouched, got %v", raw.AllowOrigins)
	}
}
