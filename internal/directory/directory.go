/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package directory is the thin boundary over the LDAP transport. It exposes
// exactly the five primitives the view engine needs and normalizes every
// upstream failure into the apierr taxonomy. It keeps no cache: every method
// call round-trips to the directory server.
package directory

import "context"

// Scope selects the subtree a Search call looks at.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOne
	ScopeSub
)

// Entry is one directory object as returned by Search.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// ModOp is one of the four modify operations a Modlist entry can carry.
type ModOp int

const (
	ModAdd ModOp = iota
	ModDelete
	ModReplace
	ModIncrement
)

// ModChange is a single (op, values) pair within a Modlist attribute entry.
// Order within an attribute's slice is significant (DELETE must precede ADD
// when flipping a relationship).
type ModChange struct {
	Op     ModOp
	Values []string
}

// ModList is the structured write plan passed to Modify; nil or empty is a
// valid no-op and callers should skip the call entirely in that case.
type ModList map[string][]ModChange

// AddList is the structured attribute set passed to Add.
type AddList map[string][]string

// Gateway is the full interface the view engine talks to. Production code
// gets a *Client; tests substitute FakeGateway, an in-memory double.
type Gateway interface {
	Add(ctx context.Context, dn string, attrs AddList) error
	Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]Entry, error)
	Modify(ctx context.Context, dn string, modlist ModList) error
	Delete(ctx context.Context, dn string) error
	Bind(ctx context.Context, dn, password string) error
}
