/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import "github.com/majewsky/ldap-api-server/internal/apierr"

// Base carries the flags common to every field kind and the gating helpers
// shared by all of them. Concrete field kinds embed it.
type Base struct {
	key       string
	title     string
	kind      string
	required  bool
	creatable bool
	readable  bool
	writable  bool
}

// CommonConfig is the shape every field config document carries in its
// `type`-independent portion, mirrored from the original's ViewField.__init__.
type CommonConfig struct {
	Key       string `yaml:"-"`
	Title     string `yaml:"title"`
	Type      string `yaml:"type"`
	Required  bool   `yaml:"required"`
	Creatable *bool  `yaml:"creatable"`
	Readable  *bool  `yaml:"readable"`
	Writable  *bool  `yaml:"writable"`
}

func newBase(key string, cfg CommonConfig) Base {
	b := Base{
		key:       key,
		title:     cfg.Title,
		kind:      cfg.Type,
		required:  cfg.Required,
		creatable: true,
		readable:  true,
		writable:  true,
	}
	if cfg.Creatable != nil {
		b.creatable = *cfg.Creatable
	}
	if cfg.Readable != nil {
		b.readable = *cfg.Readable
	}
	if cfg.Writable != nil {
		b.writable = *cfg.Writable
	}
	return b
}

func (b Base) Key() string { return b.key }

func (b Base) configDoc() map[string]any {
	return map[string]any{
		"key":       b.key,
		"type":      b.kind,
		"title":     b.title,
		"required":  b.required,
		"creatable": b.creatable,
		"readable":  b.readable,
		"writable":  b.writable,
	}
}

// checkWritable enforces the common "assignment present but field not
// writable" gate shared by set_fetch/set across field kinds.
func (b Base) checkWritable(assign Assignment) error {
	if _, present := assign[b.key]; !present {
		return nil
	}
	if !b.writable {
		return apierr.Forbidden("cannot write %s", b.key)
	}
	return nil
}

func (b Base) checkCreatable(assign Assignment) error {
	if _, present := assign[b.key]; !present {
		return nil
	}
	if !b.creatable {
		return apierr.Forbidden("cannot create %s", b.key)
	}
	return nil
}

func (b Base) checkRequired(value string) error {
	if b.required && value == "" {
		return apierr.Validationf("%s is required", b.key)
	}
	return nil
}
