/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package directory

import (
	"context"
	"testing"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

func TestFakeGatewayAddSearchModifyDelete(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway()
	gw.Seed("dc=example,dc=com", map[string][]string{"objectClass": {"dcObject"}})

	dn := "uid=alice,dc=example,dc=com"
	err := gw.Add(ctx, dn, AddList{
		"objectClass": {"inetOrgPerson"},
		"uid":         {"alice"},
		"mail":        {"alice@example.com"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := gw.Add(ctx, dn, AddList{"uid": {"alice"}}); err == nil {
		t.Fatalf("expected conflict re-adding %s", dn)
	} else if apiErr, ok := apierr.As(err); !ok || apiErr.Kind != apierr.KindConflict {
		t.Fatalf("expected KindConflict, got %v", err)
	}

	entries, err := gw.Search(ctx, "dc=example,dc=com", ScopeSub, "(&(objectClass=inetOrgPerson)(uid=alice))", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 || entries[0].DN != dn {
		t.Fatalf("expected one match at %s, got %v", dn, entries)
	}

	noMatch, err := gw.Search(ctx, "dc=example,dc=com", ScopeSub, "(&(objectClass=inetOrgPerson)(uid=bob))", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(noMatch) != 0 {
		t.Fatalf("expected no matches, got %v", noMatch)
	}

	err = gw.Modify(ctx, dn, ModList{
		"mail": {{Op: ModReplace, Values: []string{"alice@newdomain.example"}}},
	})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	refetched, err := gw.Search(ctx, dn, ScopeBase, "(objectClass=*)", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := refetched[0].Attributes["mail"]; len(got) != 1 || got[0] != "alice@newdomain.example" {
		t.Fatalf("mail not replaced, got %v", got)
	}

	if err := gw.Delete(ctx, dn); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := gw.Search(ctx, dn, ScopeBase, "(objectClass=*)", nil); err == nil {
		t.Fatalf("expected NotFound after delete")
	}
}

func TestFakeGatewayModifyAddAndDeleteValues(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway()
	dn := "cn=admins,dc=example,dc=com"
	gw.Seed(dn, map[string][]string{"member": {"uid=alice,dc=example,dc=com"}})

	err := gw.Modify(ctx, dn, ModList{
		"member": {{Op: ModAdd, Values: []string{"uid=bob,dc=example,dc=com"}}},
	})
	if err != nil {
		t.Fatalf("Modify add: %v", err)
	}
	entries, _ := gw.Search(ctx, dn, ScopeBase, "(objectClass=*)", nil)
	if len(entries[0].Attributes["member"]) != 2 {
		t.Fatalf("expected 2 members, got %v", entries[0].Attributes["member"])
	}

	err = gw.Modify(ctx, dn, ModList{
		"member": {{Op: ModDelete, Values: []string{"uid=alice,dc=example,dc=com"}}},
	})
	if err != nil {
		t.Fatalf("Modify delete: %v", err)
	}
	entries, _ = gw.Search(ctx, dn, ScopeBase, "(objectClass=*)", nil)
	if got := entries[0].Attributes["member"]; len(got) != 1 || got[0] != "uid=bob,dc=example,dc=com" {
		t.Fatalf("expected only bob left, got %v", got)
	}
}

func TestFakeGatewayBind(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway()
	dn := "uid=alice,dc=example,dc=com"
	gw.SeedBindPassword(dn, "hunter2")

	if err := gw.Bind(ctx, dn, "hunter2"); err != nil {
		t.Fatalf("Bind with correct password: %v", err)
	}
	err := gw.Bind(ctx, dn, "wrong")
	if err == nil {
		t.Fatalf("expected Bind failure with wrong password")
	}
	if apiErr, ok := apierr.As(err); !ok || apiErr.Kind != apierr.KindUnauthorized {
		t.Fatalf("expected KindUnauthorized, got %v", err)
	}
}

func TestTryBuildDN(t *testing.T) {
	dn, ok := TryBuildDN("uid", "alice", "dc=example,dc=com")
	if !ok || dn != "uid=alice,dc=example,dc=com" {
		t.Fatalf("unexpected result: %q, %v", dn, ok)
	}

	if _, ok := TryBuildDN("uid", "", "dc=example,dc=com"); ok {
		t.Fatalf("expected failure for empty value")
	}
}

func TestEscapeFilterValuePreservesSafeChars(t *testing.T) {
	got := EscapeFilterValue("alice")
	if got != "alice" {
		t.Fatalf("plain value should pass through unescaped, got %q", got)
	}
}

func TestEscapeFilterValueEscapesSpecialChars(t *testing.T) {
	for _, special := range []string{"(", ")", "*", "\\"} {
		got := EscapeFilterValue("a" + special + "b")
		if got == "a"+special+"b" {
			t.Fatalf("expected %q to be escaped, got unchanged %q", special, got)
		}
	}
}
