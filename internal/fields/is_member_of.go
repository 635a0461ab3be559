/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
)

// IsMemberOfConfig configures an IsMemberOfField.
type IsMemberOfConfig struct {
	CommonConfig `yaml:",inline"`
	MemberOf     string `yaml:"memberOf"`
	Field        string `yaml:"field"`
	ForeignView  string `yaml:"foreignView"`
	ForeignField string `yaml:"foreignField"`
}

// IsMemberOfField projects whether this entry is a member of one named
// foreign entry, and maintains that relationship on the foreign side during
// set_post. When key == "_enabled" it additionally acts as an EnabledProvider
// for sibling gating.
type IsMemberOfField struct {
	Base
	memberOfName   string
	memberOfDN     string
	attr           string
	foreignViewKey string
	foreignView    ForeignView
	foreignField   string
}

func NewIsMemberOfField(key string, cfg IsMemberOfConfig) *IsMemberOfField {
	attr := cfg.Field
	if attr == "" {
		attr = "memberOf"
	}
	foreignField := cfg.ForeignField
	if foreignField == "" {
		foreignField = "member"
	}
	return &IsMemberOfField{
		Base:           newBase(key, cfg.CommonConfig),
		memberOfName:   cfg.MemberOf,
		attr:           attr,
		foreignViewKey: cfg.ForeignView,
		foreignField:   foreignField,
	}
}

func (f *IsMemberOfField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["field"] = f.attr
	doc["memberOf"] = f.memberOfName
	doc["foreignView"] = f.foreignViewKey
	doc["foreignField"] = f.foreignField
	return doc
}

func (f *IsMemberOfField) Init(resolver ViewResolver, _ map[string]Field) error {
	view, err := resolver.ResolveView(f.foreignViewKey)
	if err != nil {
		return err
	}
	f.foreignView = view
	dn, err := view.DN(f.memberOfName)
	if err != nil {
		return apierr.Config("isMemberOf field %s: cannot resolve %q in foreign view: %s", f.key, f.memberOfName, err.Error())
	}
	f.memberOfDN = dn
	return nil
}

func (f *IsMemberOfField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches[f.attr] = true
}

func (f *IsMemberOfField) isMember(fetch *Fetch) bool {
	for _, dn := range fetch.Values[f.attr] {
		if dn == f.memberOfDN {
			return true
		}
	}
	return false
}

func (f *IsMemberOfField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	out[f.key] = f.isMember(fetch)
	return nil
}

func (f *IsMemberOfField) SetFetch(fetches map[string]bool, assign Assignment) error {
	value, present := boolValue(assign, f.key)
	if !present {
		return nil
	}
	if f.required && !value {
		return apierr.Validationf("%s is required", f.key)
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	fetches[f.attr] = true
	return nil
}

func (f *IsMemberOfField) Set(*Fetch, directory.ModList, Assignment) error { return nil }
func (f *IsMemberOfField) Create(*Fetch, directory.AddList, Assignment) error { return nil }

func (f *IsMemberOfField) SetPost(fetch *Fetch, assign Assignment, isNew bool) error {
	desired, present := boolValue(assign, f.key)
	if !present {
		if isNew && f.required {
			return apierr.Validationf("%s is required", f.key)
		}
		return nil
	}
	if !((isNew && f.creatable) || f.writable) {
		return apierr.Forbidden("cannot write %s", f.key)
	}

	isMember := f.isMember(fetch)
	if isMember == desired {
		return nil
	}

	if desired {
		err := f.foreignView.SaveForeignField(f.memberOfName, directory.ModList{
			f.foreignField: {{Op: directory.ModAdd, Values: []string{fetch.DN}}},
		})
		if err != nil {
			return err
		}
		fetch.Values[f.attr] = append(fetch.Values[f.attr], f.memberOfDN)
	} else {
		err := f.foreignView.SaveForeignField(f.memberOfName, directory.ModList{
			f.foreignField: {{Op: directory.ModDelete, Values: []string{fetch.DN}}},
		})
		if err != nil {
			return err
		}
		fetch.Values[f.attr] = removeString(fetch.Values[f.attr], f.memberOfDN)
	}
	return nil
}

// EnabledValue implements EnabledProvider for the _enabled pseudo-field.
func (f *IsMemberOfField) EnabledValue(fetch *Fetch, assign Assignment) bool {
	if assign != nil {
		if value, ok := boolValue(assign, f.key); ok {
			return value
		}
	}
	return f.isMember(fetch)
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
