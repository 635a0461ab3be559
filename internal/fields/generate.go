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

var formatPlaceholderRx = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func extractFormatFieldNames(format string) []string {
	matches := formatPlaceholderRx.FindAllStringSubmatch(format, -1)
	seen := map[string]bool{}
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func renderFormat(format string, values map[string]string) string {
	return formatPlaceholderRx.ReplaceAllStringFunc(format, func(token string) string {
		name := token[1 : len(token)-1]
		return values[name]
	})
}

// GenerateConfig configures a GenerateField.
type GenerateConfig struct {
	CommonConfig `yaml:",inline"`
	Field        string `yaml:"field"`
	Format       string `yaml:"format"`
}

// GenerateField derives its value from a format template over sibling
// fields; it never accepts a direct assignment to its own key.
type GenerateField struct {
	Base
	attr        string
	format      string
	inputNames  []string
	inputFields []Field
}

func NewGenerateField(key string, cfg GenerateConfig) *GenerateField {
	attr := cfg.Field
	if attr == "" {
		attr = key
	}
	return &GenerateField{
		Base:       newBase(key, cfg.CommonConfig),
		attr:       attr,
		format:     cfg.Format,
		inputNames: extractFormatFieldNames(cfg.Format),
	}
}

func (f *GenerateField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["field"] = f.attr
	doc["format"] = f.format
	return doc
}

func (f *GenerateField) Init(resolver ViewResolver, siblings map[string]Field) error {
	f.inputFields = make([]Field, 0, len(f.inputNames))
	for _, name := range f.inputNames {
		sibling, ok := siblings[name]
		if !ok {
			return apierr.Config("generate field %s references unknown input field %s", f.key, name)
		}
		f.inputFields = append(f.inputFields, sibling)
	}
	return nil
}

func (f *GenerateField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches[f.attr] = true
}

func (f *GenerateField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	if values, ok := fetch.Values[f.attr]; ok && len(values) > 0 {
		out[f.key] = values[0]
	}
	return nil
}

func (f *GenerateField) anyInputAssigned(assign Assignment) bool {
	for _, name := range f.inputNames {
		if _, ok := assign[name]; ok {
			return true
		}
	}
	return false
}

func (f *GenerateField) SetFetch(fetches map[string]bool, assign Assignment) error {
	if _, present := assign[f.key]; present {
		return apierr.Forbidden("cannot assign value to generated field %s", f.key)
	}
	if !f.writable {
		return nil
	}
	if f.anyInputAssigned(assign) {
		for _, input := range f.inputFields {
			input.GetFetch(fetches)
		}
		fetches[f.attr] = true
	}
	return nil
}

func (f *GenerateField) renderArgs(fetch *Fetch, assign Assignment) map[string]string {
	args := make(map[string]string, len(f.inputNames))
	for i, name := range f.inputNames {
		if value, ok := stringValue(assign, name); ok {
			args[name] = value
			continue
		}
		out := Result{}
		_ = f.inputFields[i].Get(fetch, out)
		if v, ok := out[name].(string); ok {
			args[name] = v
		}
	}
	return args
}

func (f *GenerateField) Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error {
	if _, present := assign[f.key]; present {
		return apierr.Forbidden("cannot assign value to generated field %s", f.key)
	}
	if !f.writable || !f.anyInputAssigned(assign) {
		return nil
	}
	value := renderFormat(f.format, f.renderArgs(fetch, assign))
	applyScalarWrite(fetch, modlist, f.attr, value)
	return nil
}

func (f *GenerateField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	if _, present := assign[f.key]; present {
		return apierr.Forbidden("cannot assign value to generated field %s", f.key)
	}
	if !f.creatable {
		return nil
	}
	value := renderFormat(f.format, f.renderArgs(fetch, assign))
	if _, already := fetch.Values[f.attr]; already {
		return apierr.Validationf("cannot modify value of %s", f.key)
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	addlist[f.attr] = []string{value}
	fetch.Values[f.attr] = []string{value}
	return nil
}

func (f *GenerateField) SetPost(*Fetch, Assignment, bool) error { return nil }
