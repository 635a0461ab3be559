/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/crypt"
	"gopkg.in/yaml.v3"
)

// Deps carries the collaborators some field kinds need at construction time.
type Deps struct {
	// ResolveHasher maps a password field's configured `hashing` value to
	// the PasswordHasher it names (see crypt.HasherByName), so two password
	// fields configured with different schemes actually hash differently.
	ResolveHasher func(hashing string) (crypt.PasswordHasher, error)
	BreachCheck   crypt.BreachChecker
}

// NewField is the fixed constructor table the design notes call for: field
// kinds are a closed, tagged-variant set, and an unknown type is rejected at
// config load rather than looked up dynamically.
func NewField(key string, node *yaml.Node, deps Deps) (Field, error) {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, apierr.Config("field %s: %s", key, err.Error())
	}

	switch head.Type {
	case "text":
		var cfg TextConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewTextField(key, cfg)
	case "datetime":
		var cfg DatetimeConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewDatetimeField(key, cfg), nil
	case "password":
		var cfg PasswordConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		hasher, err := deps.ResolveHasher(cfg.Hashing)
		if err != nil {
			return nil, apierr.Config("field %s: hashing %q: %s", key, cfg.Hashing, err.Error())
		}
		return NewPasswordField(key, cfg, hasher, deps.BreachCheck), nil
	case "generate":
		var cfg GenerateConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewGenerateField(key, cfg), nil
	case "isMemberOf":
		var cfg IsMemberOfConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewIsMemberOfField(key, cfg), nil
	case "objectClass":
		var cfg ObjectClassConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewObjectClassField(key, cfg), nil
	case "initial":
		var cfg InitialConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("field %s: %s", key, err.Error())
		}
		return NewInitialField(key, cfg, deps)
	default:
		return nil, apierr.Config("field %s: unknown field type %q", key, head.Type)
	}
}
