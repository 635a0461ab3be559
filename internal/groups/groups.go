/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package groups implements the group library: the keyed lifecycle
// participants that compose fields (group kind "fields") or expose
// relationship semantics ("member", "memberOf") within a projection.
package groups

import (
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
)

// Assignment is the per-group slice of a projection's write request: either
// a map of field key to value (fields groups) or {add, delete} (member and
// memberOf groups).
type Assignment = map[string]any

// Group is the lifecycle contract every group kind implements. It mirrors
// fields.Field one level up the tree: keyed, and operating on a nested JSON
// value instead of a single scalar.
type Group interface {
	Key() string
	ConfigDoc() map[string]any

	Init(resolver fields.ViewResolver) error
	GetFetch(fetches map[string]bool)
	Get(fetch *fields.Fetch) (any, error)
	SetFetch(fetches map[string]bool, assign Assignment) error
	Set(fetch *fields.Fetch, modlist directory.ModList, assign Assignment) error
	Create(fetch *fields.Fetch, addlist directory.AddList, assign Assignment) error
	SetPost(fetch *fields.Fetch, assign Assignment, isNew bool) error
}

// base carries the fields common to every group kind.
type base struct {
	key   string
	title string
	kind  string
}

func (b base) Key() string { return b.key }

func (b base) configDoc() map[string]any {
	return map[string]any{
		"key":   b.key,
		"type":  b.kind,
		"title": b.title,
	}
}
