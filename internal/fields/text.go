/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"regexp"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
)

// TextConfig configures a TextField.
type TextConfig struct {
	CommonConfig `yaml:",inline"`
	Field        string   `yaml:"field"`
	Format       string   `yaml:"format"`
	Enum         []string `yaml:"enum"`
}

// TextField is a single-valued string bound to one directory attribute,
// validated against a full-match regex and an optional enum whitelist.
type TextField struct {
	Base
	attr   string
	format *regexp.Regexp
	enum   map[string]bool
}

func NewTextField(key string, cfg TextConfig) (*TextField, error) {
	attr := cfg.Field
	if attr == "" {
		attr = key
	}
	pattern := cfg.Format
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile("(?s)^(?:" + pattern + ")$")
	if err != nil {
		return nil, apierr.Config("field %s: invalid format regex: %s", key, err.Error())
	}
	var enum map[string]bool
	if len(cfg.Enum) > 0 {
		enum = make(map[string]bool, len(cfg.Enum))
		for _, v := range cfg.Enum {
			enum[v] = true
		}
	}
	return &TextField{
		Base:   newBase(key, cfg.CommonConfig),
		attr:   attr,
		format: re,
		enum:   enum,
	}, nil
}

func (f *TextField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["field"] = f.attr
	doc["format"] = f.format.String()
	if f.enum != nil {
		keys := make([]string, 0, len(f.enum))
		for k := range f.enum {
			keys = append(keys, k)
		}
		doc["enum"] = keys
	}
	return doc
}

func (f *TextField) Init(ViewResolver, map[string]Field) error { return nil }

func (f *TextField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches[f.attr] = true
}

func (f *TextField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	if values, ok := fetch.Values[f.attr]; ok && len(values) > 0 {
		out[f.key] = values[0]
	}
	return nil
}

func (f *TextField) SetFetch(fetches map[string]bool, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return nil
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	fetches[f.attr] = true
	return nil
}

func (f *TextField) validate(value string) error {
	if f.format != nil && !f.format.MatchString(value) {
		return apierr.Validationf("invalid value %q for %s, expecting %s", value, f.key, f.format.String())
	}
	if f.enum != nil && value != "" && !f.enum[value] {
		return apierr.Validationf("invalid value %q for %s, expecting one of %v", value, f.key, f.enum)
	}
	return nil
}

func (f *TextField) Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return nil
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	if err := f.validate(value); err != nil {
		return err
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	applyScalarWrite(fetch, modlist, f.attr, value)
	return nil
}

func (f *TextField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return f.checkRequired("")
	}
	if err := f.checkCreatable(assign); err != nil {
		return err
	}
	if err := f.validate(value); err != nil {
		return err
	}
	if _, already := fetch.Values[f.attr]; already {
		return apierr.Validationf("cannot modify value of %s", f.key)
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	if value != "" {
		addlist[f.attr] = []string{value}
	}
	fetch.Values[f.attr] = []string{value}
	return nil
}

func (f *TextField) SetPost(*Fetch, Assignment, bool) error { return nil }
