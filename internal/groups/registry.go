/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package groups

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"gopkg.in/yaml.v3"
)

// NewGroup is the fixed constructor table for the closed group-kind set.
// For the "fields" kind, fieldOrder/fieldsByKey carry the already-decoded
// nested fields (decoded by the caller via fields.NewField, since a group's
// "fields" list is itself a sequence of tagged field configs keyed by the
// outer mapping order, which yaml.Node alone cannot preserve across an
// anonymous struct decode).
func NewGroup(key string, node *yaml.Node, fieldList []fields.Field) (Group, error) {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, apierr.Config("group %s: %s", key, err.Error())
	}

	switch head.Type {
	case "fields":
		var cfg struct {
			Title string `yaml:"title"`
		}
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("group %s: %s", key, err.Error())
		}
		return NewFieldsGroup(key, cfg.Title, fieldList), nil
	case "member":
		var cfg MemberConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("group %s: %s", key, err.Error())
		}
		return NewMemberGroup(key, cfg), nil
	case "memberOf":
		var cfg MemberOfConfig
		if err := node.Decode(&cfg); err != nil {
			return nil, apierr.Config("group %s: %s", key, err.Error())
		}
		return NewMemberOfGroup(key, cfg), nil
	default:
		return nil, apierr.Config("group %s: unknown group type %q", key, head.Type)
	}
}
