/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package view

import (
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"github.com/majewsky/ldap-api-server/internal/groups"
	"gopkg.in/yaml.v3"
)

// mapChild scans a mapping node's key/value pairs in order for key, since
// yaml.v3 does not expose a by-name lookup on Node itself.
func mapChild(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// mapPairs returns a mapping node's key/value pairs in declaration order.
func mapPairs(node *yaml.Node) ([]string, []*yaml.Node, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, apierr.Config("expected a mapping, got %v", node.Kind)
	}
	keys := make([]string, 0, len(node.Content)/2)
	values := make([]*yaml.Node, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
		values = append(values, node.Content[i+1])
	}
	return keys, values, nil
}

// decodeFieldList builds an ordered field list from a mapping node of
// key -> tagged field config, as used for the `list`/`auth` projections and
// for the nested `fields` list of a `fields`-kind group.
func decodeFieldList(node *yaml.Node, deps fields.Deps) ([]fields.Field, error) {
	keys, values, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	out := make([]fields.Field, 0, len(keys))
	for i, key := range keys {
		f, err := fields.NewField(key, values[i], deps)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// decodeGroupList builds an ordered group list from a mapping node of
// key -> tagged group config, as used for the `details`/`self`/`register`
// projections.
func decodeGroupList(node *yaml.Node, deps fields.Deps) ([]groups.Group, error) {
	keys, values, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	out := make([]groups.Group, 0, len(keys))
	for i, key := range keys {
		groupNode := values[i]
		var fieldList []fields.Field
		if fieldsNode := mapChild(groupNode, "fields"); fieldsNode != nil {
			fieldList, err = decodeFieldList(fieldsNode, deps)
			if err != nil {
				return nil, err
			}
		}
		g, err := groups.NewGroup(key, groupNode, fieldList)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// decodeAddList converts a mapping node of attribute -> (scalar | sequence)
// into a directory.AddList, for the `autoCreate` configuration key.
func decodeAddList(node *yaml.Node) (directory.AddList, error) {
	keys, values, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, nil
	}
	out := directory.AddList{}
	for i, key := range keys {
		valueNode := values[i]
		switch valueNode.Kind {
		case yaml.ScalarNode:
			out[key] = []string{valueNode.Value}
		case yaml.SequenceNode:
			values := make([]string, len(valueNode.Content))
			for j, item := range valueNode.Content {
				values[j] = item.Value
			}
			out[key] = values
		default:
			return nil, apierr.Config("autoCreate.%s: expected a scalar or list", key)
		}
	}
	return out, nil
}
