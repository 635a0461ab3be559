/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"time"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
)

// generalizedTimeLayout is the LDAP generalized-time string format
// (RFC 4517 section 3.3.13), UTC-only, the form directory servers store
// timestamp-typed attributes in (e.g. modifyTimestamp).
const generalizedTimeLayout = "20060102150405Z"

func parseGeneralizedTime(s string) (time.Time, error) {
	return time.Parse(generalizedTimeLayout, s)
}

func formatGeneralizedTime(t time.Time) string {
	return t.UTC().Format(generalizedTimeLayout)
}

// DatetimeConfig configures a DatetimeField.
type DatetimeConfig struct {
	CommonConfig `yaml:",inline"`
	Field        string `yaml:"field"`
}

// DatetimeField is single-valued like TextField but validates the wire value
// as ISO-8601/RFC3339 and stores the directory attribute as LDAP generalized
// time, round-tripping the canonical RFC3339 form back out on Get.
type DatetimeField struct {
	Base
	attr string
}

func NewDatetimeField(key string, cfg DatetimeConfig) *DatetimeField {
	attr := cfg.Field
	if attr == "" {
		attr = key
	}
	return &DatetimeField{Base: newBase(key, cfg.CommonConfig), attr: attr}
}

func (f *DatetimeField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["field"] = f.attr
	return doc
}

func (f *DatetimeField) Init(ViewResolver, map[string]Field) error { return nil }

func (f *DatetimeField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches[f.attr] = true
}

func (f *DatetimeField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	values := fetch.Values[f.attr]
	if len(values) == 0 {
		return nil
	}
	t, err := parseGeneralizedTime(values[0])
	if err != nil {
		return nil // an unparsable stored value renders as absent, not an error
	}
	out[f.key] = t.UTC().Format(time.RFC3339)
	return nil
}

func (f *DatetimeField) SetFetch(fetches map[string]bool, assign Assignment) error {
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

func (f *DatetimeField) validateAndConvert(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", apierr.Validationf("invalid value %q for %s, expecting ISO-8601 timestamp", value, f.key)
	}
	return formatGeneralizedTime(t), nil
}

func (f *DatetimeField) Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return nil
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	stored, err := f.validateAndConvert(value)
	if err != nil {
		return err
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	applyScalarWrite(fetch, modlist, f.attr, stored)
	return nil
}

func (f *DatetimeField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return f.checkRequired("")
	}
	if err := f.checkCreatable(assign); err != nil {
		return err
	}
	stored, err := f.validateAndConvert(value)
	if err != nil {
		return err
	}
	if _, already := fetch.Values[f.attr]; already {
		return apierr.Validationf("cannot modify value of %s", f.key)
	}
	if err := f.checkRequired(value); err != nil {
		return err
	}
	if stored != "" {
		addlist[f.attr] = []string{stored}
	}
	fetch.Values[f.attr] = []string{stored}
	return nil
}

func (f *DatetimeField) SetPost(*Fetch, Assignment, bool) error { return nil }
