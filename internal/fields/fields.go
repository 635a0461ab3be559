/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package fields implements the closed field library: the leaf lifecycle
// participants bound to one or more directory attributes. Every field kind
// implements the same six-phase Field interface; main.go-side configuration
// dispatches to a fixed constructor table (see NewField) rather than any
// form of dynamic lookup, per the "closed variant set" design note.
package fields

import (
	"github.com/majewsky/ldap-api-server/internal/directory"
)

// Values is the attribute-name to value-list map threaded through a request.
type Values map[string][]string

// Fetch is the request-local {dn, values} pair plus the `_enabled`
// sibling-gating context map (design note: formalized as an explicit
// per-request context rather than an ad-hoc side channel).
type Fetch struct {
	DN     string
	Values Values
	Ctx    map[string]bool
}

// NewFetch builds an empty fetch record for dn.
func NewFetch(dn string) *Fetch {
	return &Fetch{DN: dn, Values: Values{}, Ctx: map[string]bool{}}
}

// Enabled reports the current `_enabled` gating state; absent means enabled.
func (f *Fetch) Enabled() bool {
	v, ok := f.Ctx["_enabled"]
	if !ok {
		return true
	}
	return v
}

// Result is the JSON-shaped output of a fields group's get phase.
type Result map[string]any

// Assignment is the JSON-decoded per-field-group input of a write request.
type Assignment map[string]any

// ForeignView is the subset of view.View that field/group implementations
// need when following a foreignView reference. It lives here (not in
// package view) so that fields and groups never import view, avoiding the
// import cycle view -> groups/fields -> view.
type ForeignView interface {
	// DN builds this view's DN for primaryKey, failing if primaryKey cannot
	// be turned into a valid RDN value.
	DN(primaryKey string) (string, error)
	// TryDN is DN's fallible-without-erroring twin, used where an invalid
	// primary key should just be dropped rather than abort the request.
	TryDN(primaryKey string) (string, bool)
	// TryPrimaryKey extracts the primary key from dn if dn is a direct child
	// of this view's base DN; ok is false otherwise.
	TryPrimaryKey(dn string) (string, bool)
	// SaveForeignField issues a Modify against the entry identified by
	// primaryKey using the given modlist, bypassing permission checks (this
	// is the internal relationship-maintenance path).
	SaveForeignField(primaryKey string, modlist directory.ModList) error
	// GetListEntryPermitted renders primaryKey's list projection, skipping
	// an entry that no longer exists instead of failing the whole request.
	GetListEntryPermitted(primaryKey string) (Result, bool, error)
}

// ViewResolver resolves a foreignView config key to the view it names.
type ViewResolver interface {
	ResolveView(key string) (ForeignView, error)
}

// Field is the lifecycle contract every field kind implements.
type Field interface {
	Key() string
	// ConfigDoc renders the field's entry in a view's /config document.
	ConfigDoc() map[string]any

	Init(resolver ViewResolver, siblings map[string]Field) error
	GetFetch(fetches map[string]bool)
	Get(fetch *Fetch, out Result) error
	SetFetch(fetches map[string]bool, assign Assignment) error
	Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error
	Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error
	SetPost(fetch *Fetch, assign Assignment, isNew bool) error
}

// EnabledProvider is implemented by isMemberOf/objectClass fields configured
// with key == "_enabled"; FieldsGroup calls it to populate fetch.Ctx before
// running the field's siblings.
type EnabledProvider interface {
	// EnabledValue reports the field's boolean state. During the get phase
	// assign is nil and the current fetch is consulted; during write phases
	// assign carries the pending assignment, falling back to the current
	// fetch when the field's own key is absent from it.
	EnabledValue(fetch *Fetch, assign Assignment) bool
}

func boolValue(assign Assignment, key string) (bool, bool) {
	raw, ok := assign[key]
	if !ok {
		return false, false
	}
	b, ok := raw.(bool)
	return b, ok
}

func stringValue(assign Assignment, key string) (string, bool) {
	raw, ok := assign[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
