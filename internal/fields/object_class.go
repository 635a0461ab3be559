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

// ObjectClassConfig configures an ObjectClassField.
type ObjectClassConfig struct {
	CommonConfig `yaml:",inline"`
	ObjectClass  string `yaml:"objectClass"`
}

// ObjectClassField projects whether a named objectClass is present on this
// same entry, and keeps it in sync with the objectClass attribute on write.
// Like isMemberOf, a field keyed "_enabled" additionally gates its siblings.
type ObjectClassField struct {
	Base
	class string
}

func NewObjectClassField(key string, cfg ObjectClassConfig) *ObjectClassField {
	return &ObjectClassField{Base: newBase(key, cfg.CommonConfig), class: cfg.ObjectClass}
}

func (f *ObjectClassField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["objectClass"] = f.class
	return doc
}

func (f *ObjectClassField) Init(ViewResolver, map[string]Field) error { return nil }

func (f *ObjectClassField) hasClass(fetch *Fetch) bool {
	for _, c := range fetch.Values["objectClass"] {
		if c == f.class {
			return true
		}
	}
	return false
}

func (f *ObjectClassField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches["objectClass"] = true
}

func (f *ObjectClassField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	out[f.key] = f.hasClass(fetch)
	return nil
}

func (f *ObjectClassField) SetFetch(fetches map[string]bool, assign Assignment) error {
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
	fetches["objectClass"] = true
	return nil
}

func (f *ObjectClassField) Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error {
	desired, present := boolValue(assign, f.key)
	if !present {
		return nil
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	has := f.hasClass(fetch)
	if has == desired {
		return nil
	}
	if desired {
		modlist["objectClass"] = append(modlist["objectClass"], directory.ModChange{Op: directory.ModAdd, Values: []string{f.class}})
		fetch.Values["objectClass"] = append(fetch.Values["objectClass"], f.class)
	} else {
		modlist["objectClass"] = append(modlist["objectClass"], directory.ModChange{Op: directory.ModDelete, Values: []string{f.class}})
		fetch.Values["objectClass"] = removeString(fetch.Values["objectClass"], f.class)
	}
	return nil
}

func (f *ObjectClassField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	desired, present := boolValue(assign, f.key)
	if !present {
		return nil
	}
	if err := f.checkCreatable(assign); err != nil {
		return err
	}
	if desired {
		addlist["objectClass"] = append(addlist["objectClass"], f.class)
		fetch.Values["objectClass"] = append(fetch.Values["objectClass"], f.class)
	}
	return nil
}

func (f *ObjectClassField) SetPost(*Fetch, Assignment, bool) error { return nil }

// EnabledValue implements EnabledProvider for the _enabled pseudo-field.
func (f *ObjectClassField) EnabledValue(fetch *Fetch, assign Assignment) bool {
	if assign != nil {
		if value, ok := boolValue(assign, f.key); ok {
			return value
		}
	}
	return f.hasClass(fetch)
}
