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

// MemberOfConfig configures a MemberOfGroup.
type MemberOfConfig struct {
	Title        string `yaml:"title"`
	Field        string `yaml:"field"`
	ForeignView  string `yaml:"foreignView"`
	ForeignField string `yaml:"foreignField"`
	Writable     *bool  `yaml:"writable"`
}

// MemberOfGroup is the incoming-reference group kind: it reads a
// multi-valued DN attribute on this entry (default `memberOf`) but any
// mutation is actually a write to the foreign entry's own attribute
// (default `member`), so all writes happen in SetPost, idempotently
// against the foreign side's current state.
type MemberOfGroup struct {
	base
	attr           string
	foreignViewKey string
	foreignView    fields.ForeignView
	foreignField   string
	writable       bool
}

func NewMemberOfGroup(key string, cfg MemberOfConfig) *MemberOfGroup {
	attr := cfg.Field
	if attr == "" {
		attr = "memberOf"
	}
	foreignField := cfg.ForeignField
	if foreignField == "" {
		foreignField = "member"
	}
	writable := true
	if cfg.Writable != nil {
		writable = *cfg.Writable
	}
	return &MemberOfGroup{
		base:           base{key: key, title: cfg.Title, kind: "memberOf"},
		attr:           attr,
		foreignViewKey: cfg.ForeignView,
		foreignField:   foreignField,
		writable:       writable,
	}
}

func (g *MemberOfGroup) ConfigDoc() map[string]any {
	doc := g.configDoc()
	doc["field"] = g.attr
	doc["foreignView"] = g.foreignViewKey
	doc["foreignField"] = g.foreignField
	doc["writable"] = g.writable
	return doc
}

func (g *MemberOfGroup) Init(resolver fields.ViewResolver) error {
	view, err := resolver.ResolveView(g.foreignViewKey)
	if err != nil {
		return err
	}
	g.foreignView = view
	return nil
}

func (g *MemberOfGroup) GetFetch(fetches map[string]bool) {
	fetches[g.attr] = true
}

func (g *MemberOfGroup) Get(fetch *fields.Fetch) (any, error) {
	dns, ok := fetch.Values[g.attr]
	if !ok {
		return []fields.Result{}, nil
	}
	out := make([]fields.Result, 0, len(dns))
	for _, dn := range dns {
		pk, ok := g.foreignView.TryPrimaryKey(dn)
		if !ok {
			continue
		}
		entry, found, err := g.foreignView.GetListEntryPermitted(pk)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (g *MemberOfGroup) SetFetch(fetches map[string]bool, assign Assignment) error {
	if len(refList(assign, "add")) > 0 || len(refList(assign, "delete")) > 0 {
		fetches[g.attr] = true
	}
	return nil
}

// Set is a no-op: the write happens in SetPost against the foreign entry.
func (g *MemberOfGroup) Set(*fields.Fetch, directory.ModList, Assignment) error { return nil }

// Create is a no-op for the same reason; SetPost runs for new entries too.
func (g *MemberOfGroup) Create(*fields.Fetch, directory.AddList, Assignment) error { return nil }

func (g *MemberOfGroup) SetPost(fetch *fields.Fetch, assign Assignment, isNew bool) error {
	addRefs := refList(assign, "add")
	deleteRefs := refList(assign, "delete")
	if len(addRefs) == 0 && len(deleteRefs) == 0 {
		return nil
	}
	if !g.writable {
		return apierr.Forbidden("cannot write %s", g.key)
	}

	current := fetch.Values[g.attr]
	for _, ref := range addRefs {
		foreignDN, err := g.foreignView.DN(ref)
		if err != nil {
			return err
		}
		if contains(current, foreignDN) {
			continue
		}
		modlist := directory.ModList{
			g.foreignField: {{Op: directory.ModAdd, Values: []string{fetch.DN}}},
		}
		if err := g.foreignView.SaveForeignField(ref, modlist); err != nil {
			return err
		}
		current = append(current, foreignDN)
	}

	for _, ref := range deleteRefs {
		foreignDN, err := g.foreignView.DN(ref)
		if err != nil {
			return err
		}
		if !contains(current, foreignDN) {
			continue
		}
		modlist := directory.ModList{
			g.foreignField: {{Op: directory.ModDelete, Values: []string{fetch.DN}}},
		}
		if err := g.foreignView.SaveForeignField(ref, modlist); err != nil {
			return err
		}
		current = removeOne(current, foreignDN)
	}

	fetch.Values[g.attr] = current
	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
