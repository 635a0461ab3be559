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

// MemberConfig configures a MemberGroup.
type MemberConfig struct {
	Title        string `yaml:"title"`
	Field        string `yaml:"field"`
	ForeignView  string `yaml:"foreignView"`
	ForeignField string `yaml:"foreignField"`
	Writable     *bool  `yaml:"writable"`
}

// MemberGroup is the outgoing-reference group kind: it owns a multi-valued
// DN attribute on this entry (default `member`) and writes directly into
// that attribute via modlist (not set_post, since the write is local).
type MemberGroup struct {
	base
	attr           string
	foreignViewKey string
	foreignView    fields.ForeignView
	foreignField   string
	writable       bool
}

func NewMemberGroup(key string, cfg MemberConfig) *MemberGroup {
	attr := cfg.Field
	if attr == "" {
		attr = "member"
	}
	foreignField := cfg.ForeignField
	if foreignField == "" {
		foreignField = "memberOf"
	}
	writable := true
	if cfg.Writable != nil {
		writable = *cfg.Writable
	}
	return &MemberGroup{
		base:           base{key: key, title: cfg.Title, kind: "member"},
		attr:           attr,
		foreignViewKey: cfg.ForeignView,
		foreignField:   foreignField,
		writable:       writable,
	}
}

func (g *MemberGroup) ConfigDoc() map[string]any {
	doc := g.configDoc()
	doc["field"] = g.attr
	doc["foreignView"] = g.foreignViewKey
	doc["foreignField"] = g.foreignField
	doc["writable"] = g.writable
	return doc
}

func (g *MemberGroup) Init(resolver fields.ViewResolver) error {
	view, err := resolver.ResolveView(g.foreignViewKey)
	if err != nil {
		return err
	}
	g.foreignView = view
	return nil
}

func (g *MemberGroup) GetFetch(fetches map[string]bool) {
	fetches[g.attr] = true
}

func (g *MemberGroup) Get(fetch *fields.Fetch) (any, error) {
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

func refList(assign Assignment, key string) []string {
	raw, ok := assign[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (g *MemberGroup) SetFetch(fetches map[string]bool, assign Assignment) error {
	if len(refList(assign, "add")) > 0 || len(refList(assign, "delete")) > 0 {
		fetches[g.attr] = true
	}
	return nil
}

func (g *MemberGroup) resolveDNs(refs []string) ([]string, error) {
	dns := make([]string, 0, len(refs))
	for _, ref := range refs {
		dn, err := g.foreignView.DN(ref)
		if err != nil {
			return nil, err
		}
		dns = append(dns, dn)
	}
	return dns, nil
}

func (g *MemberGroup) Set(fetch *fields.Fetch, modlist directory.ModList, assign Assignment) error {
	addDNs, err := g.resolveDNs(refList(assign, "add"))
	if err != nil {
		return err
	}
	if len(addDNs) > 0 {
		if !g.writable {
			return apierr.Forbidden("cannot write %s", g.key)
		}
		addDNs = dropAlreadyQueued(addDNs, modlist[g.attr])
		modlist[g.attr] = append(modlist[g.attr], directory.ModChange{Op: directory.ModAdd, Values: addDNs})
		fetch.Values[g.attr] = append(fetch.Values[g.attr], addDNs...)
	}

	deleteDNs, err := g.resolveDNs(refList(assign, "delete"))
	if err != nil {
		return err
	}
	if len(deleteDNs) > 0 {
		if current, ok := fetch.Values[g.attr]; ok {
			if !g.writable {
				return apierr.Forbidden("cannot write %s", g.key)
			}
			deleteDNs = intersect(deleteDNs, current)
			if len(deleteDNs) > 0 {
				modlist[g.attr] = append(modlist[g.attr], directory.ModChange{Op: directory.ModDelete, Values: deleteDNs})
				for _, dn := range deleteDNs {
					fetch.Values[g.attr] = removeOne(fetch.Values[g.attr], dn)
				}
			}
		}
	}
	return nil
}

func (g *MemberGroup) Create(fetch *fields.Fetch, addlist directory.AddList, assign Assignment) error {
	if len(refList(assign, "delete")) > 0 {
		return apierr.Validationf("cannot remove on creation")
	}
	addDNs, err := g.resolveDNs(refList(assign, "add"))
	if err != nil {
		return err
	}
	if len(addDNs) == 0 {
		return nil
	}
	if !g.writable {
		return apierr.Forbidden("cannot create %s", g.key)
	}
	addlist[g.attr] = append(addlist[g.attr], addDNs...)
	fetch.Values[g.attr] = append(fetch.Values[g.attr], addDNs...)
	return nil
}

func (g *MemberGroup) SetPost(*fields.Fetch, Assignment, bool) error { return nil }

func dropAlreadyQueued(candidates, queued []string) []string {
	queuedSet := make(map[string]bool, len(queued))
	for _, v := range queued {
		queuedSet[v] = true
	}
	out := candidates[:0]
	for _, v := range candidates {
		if !queuedSet[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	out := a[:0]
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func removeOne(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
