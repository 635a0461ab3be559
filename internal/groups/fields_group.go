/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package groups

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
)

// FieldsGroup delegates every phase across its contained fields, in
// declaration order, annotating any field-level validation error with the
// field's key. It also implements the `_enabled` sibling-gating contract:
// a field keyed "_enabled" (an isMemberOf or objectClass field) is evaluated
// first in every phase and its boolean state is exposed via fetch.Ctx to
// gate the remaining fields.
type FieldsGroup struct {
	base
	list []fields.Field
	enabledField fields.Field
}

func NewFieldsGroup(key, title string, fieldList []fields.Field) *FieldsGroup {
	g := &FieldsGroup{
		base: base{key: key, title: title, kind: "fields"},
		list: fieldList,
	}
	for _, f := range fieldList {
		if f.Key() == "_enabled" {
			g.enabledField = f
		}
	}
	return g
}

func (g *FieldsGroup) ConfigDoc() map[string]any {
	doc := g.configDoc()
	docs := make([]map[string]any, len(g.list))
	for i, f := range g.list {
		docs[i] = f.ConfigDoc()
	}
	doc["fields"] = docs
	return doc
}

func (g *FieldsGroup) Init(resolver fields.ViewResolver) error {
	siblings := make(map[string]fields.Field, len(g.list))
	for _, f := range g.list {
		siblings[f.Key()] = f
	}
	for _, f := range g.list {
		if err := f.Init(resolver, siblings); err != nil {
			return err
		}
	}
	return nil
}

// computeEnabled updates fetch.Ctx["_enabled"] from the group's gating field
// (if any), using the current fetch for reads and assign (falling back to
// fetch) for writes. assign == nil means "read phase".
func (g *FieldsGroup) computeEnabled(fetch *fields.Fetch, assign fields.Assignment) {
	if g.enabledField == nil {
		return
	}
	provider, ok := g.enabledField.(fields.EnabledProvider)
	if !ok {
		return
	}
	fetch.Ctx["_enabled"] = provider.EnabledValue(fetch, assign)
}

func (g *FieldsGroup) runnable(f fields.Field, fetch *fields.Fetch) bool {
	return f == g.enabledField || fetch.Enabled()
}

func (g *FieldsGroup) GetFetch(fetches map[string]bool) {
	for _, f := range g.list {
		f.GetFetch(fetches)
	}
}

func (g *FieldsGroup) Get(fetch *fields.Fetch) (any, error) {
	g.computeEnabled(fetch, nil)
	res := fields.Result{}
	for _, f := range g.list {
		if !g.runnable(f, fetch) {
			continue
		}
		if err := f.Get(fetch, res); err != nil {
			return nil, apierr.WrapField(f.Key(), err)
		}
		if f == g.enabledField {
			g.computeEnabled(fetch, nil)
		}
	}
	return res, nil
}

func (g *FieldsGroup) SetFetch(fetches map[string]bool, assign Assignment) error {
	for _, f := range g.list {
		if err := f.SetFetch(fetches, fields.Assignment(assign)); err != nil {
			return apierr.WrapField(f.Key(), err)
		}
	}
	return nil
}

func (g *FieldsGroup) Set(fetch *fields.Fetch, modlist directory.ModList, assign Assignment) error {
	g.computeEnabled(fetch, fields.Assignment(assign))
	for _, f := range g.list {
		if !g.runnable(f, fetch) {
			continue
		}
		if err := f.Set(fetch, modlist, fields.Assignment(assign)); err != nil {
			return apierr.WrapField(f.Key(), err)
		}
		if f == g.enabledField {
			g.computeEnabled(fetch, fields.Assignment(assign))
		}
	}
	return nil
}

func (g *FieldsGroup) Create(fetch *fields.Fetch, addlist directory.AddList, assign Assignment) error {
	g.computeEnabled(fetch, fields.Assignment(assign))
	for _, f := range g.list {
		if !g.runnable(f, fetch) {
			continue
		}
		if err := f.Create(fetch, addlist, fields.Assignment(assign)); err != nil {
			return apierr.WrapField(f.Key(), err)
		}
		if f == g.enabledField {
			g.computeEnabled(fetch, fields.Assignment(assign))
		}
	}
	return nil
}

func (g *FieldsGroup) SetPost(fetch *fields.Fetch, assign Assignment, isNew bool) error {
	g.computeEnabled(fetch, fields.Assignment(assign))
	for _, f := range g.list {
		if !g.runnable(f, fetch) {
			continue
		}
		if err := f.SetPost(fetch, fields.Assignment(assign), isNew); err != nil {
			return apierr.WrapField(f.Key(), err)
		}
		if f == g.enabledField {
			g.computeEnabled(fetch, fields.Assignment(assign))
		}
	}
	return nil
}
