/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"gopkg.in/yaml.v3"
)

// InitialConfig configures an InitialField. Target is the full nested field
// config (its own key and type), decoded recursively by NewInitialField.
type InitialConfig struct {
	CommonConfig `yaml:",inline"`
	Value        any       `yaml:"value"`
	Target       yaml.Node `yaml:"target"`
}

// InitialField is a create-only wrapper carrying a literal value forwarded
// to a nested target field at create time. Direct assignment is rejected.
type InitialField struct {
	Base
	value  any
	target Field
}

func NewInitialField(key string, cfg InitialConfig, deps Deps) (*InitialField, error) {
	var targetKey struct {
		Key string `yaml:"key"`
	}
	if err := cfg.Target.Decode(&targetKey); err != nil {
		return nil, apierr.Config("initial field %s: %s", key, err.Error())
	}
	target, err := NewField(targetKey.Key, &cfg.Target, deps)
	if err != nil {
		return nil, err
	}
	return &InitialField{
		Base:   newBase(key, cfg.CommonConfig),
		value:  cfg.Value,
		target: target,
	}, nil
}

func (f *InitialField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["value"] = f.value
	doc["target"] = f.target.ConfigDoc()
	return doc
}

func (f *InitialField) Init(resolver ViewResolver, siblings map[string]Field) error {
	return f.target.Init(resolver, siblings)
}

func (f *InitialField) GetFetch(map[string]bool) {}

func (f *InitialField) Get(*Fetch, Result) error { return nil }

func (f *InitialField) SetFetch(map[string]bool, Assignment) error { return nil }

func (f *InitialField) Set(*Fetch, directory.ModList, Assignment) error { return nil }

func (f *InitialField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	if _, present := assign[f.key]; present {
		return apierr.Forbidden("cannot assign %s", f.key)
	}
	forwarded := Assignment{}
	for k, v := range assign {
		forwarded[k] = v
	}
	forwarded[f.target.Key()] = f.value
	return f.target.Create(fetch, addlist, forwarded)
}

// SetPost is a no-op when is_new is false (Open Question decision: the
// original's dead `if not is_new: pass` is replaced with a real early
// return).
func (f *InitialField) SetPost(fetch *Fetch, assign Assignment, isNew bool) error {
	if !isNew {
		return nil
	}
	if _, present := assign[f.key]; present {
		return apierr.Forbidden("cannot assign %s", f.key)
	}
	forwarded := Assignment{}
	for k, v := range assign {
		forwarded[k] = v
	}
	forwarded[f.target.Key()] = f.value
	return f.target.SetPost(fetch, forwarded, isNew)
}
