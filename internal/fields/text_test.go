/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"testing"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
)

func TestTextFieldGetRoundTrip(t *testing.T) {
	f, err := NewTextField("email", TextConfig{Field: "mail"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	fetch.Values["mail"] = []string{"alice@example.com"}

	out := Result{}
	if err := f.Get(fetch, out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["email"] != "alice@example.com" {
		t.Fatalf("got %v", out)
	}
}

func TestTextFieldSetIsParsimoniousWhenUnchanged(t *testing.T) {
	f, err := NewTextField("email", TextConfig{Field: "mail"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	fetch.Values["mail"] = []string{"alice@example.com"}
	modlist := directory.ModList{}

	err = f.Set(fetch, modlist, Assignment{"email": "alice@example.com"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(modlist) != 0 {
		t.Fatalf("expected no modlist entries for an unchanged value, got %v", modlist)
	}
}

func TestTextFieldSetEmitsReplaceWhenChanged(t *testing.T) {
	f, err := NewTextField("email", TextConfig{Field: "mail"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	fetch.Values["mail"] = []string{"alice@example.com"}
	modlist := directory.ModList{}

	err = f.Set(fetch, modlist, Assignment{"email": "alice@newdomain.example"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	changes, ok := modlist["mail"]
	if !ok || len(changes) != 1 || changes[0].Op != directory.ModReplace {
		t.Fatalf("expected single REPLACE change, got %v", modlist)
	}
	if changes[0].Values[0] != "alice@newdomain.example" {
		t.Fatalf("unexpected replace value %v", changes[0].Values)
	}
}

func TestTextFieldSetRejectsEnumViolation(t *testing.T) {
	f, err := NewTextField("role", TextConfig{Field: "role", Enum: []string{"admin", "member"}})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	modlist := directory.ModList{}
	err = f.Set(fetch, modlist, Assignment{"role": "superuser"})
	if err == nil {
		t.Fatalf("expected validation error for value outside enum")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestTextFieldSetRejectsWhenNotWritable(t *testing.T) {
	writable := false
	f, err := NewTextField("role", TextConfig{CommonConfig: CommonConfig{Writable: &writable}, Field: "role"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	modlist := directory.ModList{}
	err = f.Set(fetch, modlist, Assignment{"role": "member"})
	if err == nil {
		t.Fatalf("expected forbidden error for a non-writable field")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindForbidden {
		t.Fatalf("expected KindForbidden, got %v", err)
	}
}

func TestTextFieldCreateRejectsRequiredMissing(t *testing.T) {
	f, err := NewTextField("email", TextConfig{CommonConfig: CommonConfig{Required: true}, Field: "mail"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	addlist := directory.AddList{}
	err = f.Create(fetch, addlist, Assignment{})
	if err == nil {
		t.Fatalf("expected validation error for missing required field")
	}
}

func TestTextFieldCreateSetsAttributeAndFetch(t *testing.T) {
	f, err := NewTextField("email", TextConfig{Field: "mail"})
	if err != nil {
		t.Fatalf("NewTextField: %v", err)
	}

	fetch := NewFetch("uid=alice,dc=example,dc=com")
	addlist := directory.AddList{}
	err = f.Create(fetch, addlist, Assignment{"email": "alice@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := addlist["mail"]; len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("unexpected addlist %v", addlist)
	}
	if got := fetch.Values["mail"]; len(got) != 1 || got[0] != "alice@example.com" {
		t.Fatalf("fetch not rolled forward: %v", fetch.Values)
	}
}
