/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const envPrefix = "API_CONFIG_"

// camelToUnderscore renders a camelCase config key as the underscore form
// used in environment variable names, e.g. "autoLoginExpiration" becomes
// "auto_login_expiration".
func camelToUnderscore(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// applyEnvOverrides walks the parsed document and, for every scalar leaf,
// checks whether an environment variable named API_CONFIG_<dotted_path> (in
// underscore form, uppercased) is set; if so, it overrides the leaf's
// value. Sequences are left alone: there is no natural dotted path into a
// list element, and the `views` tree in particular must keep its ordering
// intact, which only the YAML source (not an environment variable) can
// express.
func applyEnvOverrides(node *yaml.Node, path []string) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			applyEnvOverrides(child, path)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			applyEnvOverrides(node.Content[i+1], append(append([]string(nil), path...), camelToUnderscore(key)))
		}
	case yaml.ScalarNode:
		envName := envPrefix + strings.ToUpper(strings.Join(path, "_"))
		if value, ok := os.LookupEnv(envName); ok {
			node.Value = value
			node.Tag = "!!str"
		}
	}
}
