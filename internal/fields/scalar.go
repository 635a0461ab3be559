/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import "github.com/majewsky/ldap-api-server/internal/directory"

// applyScalarWrite is the shared ADD/REPLACE/DELETE write strategy used by
// text, datetime, password, and generate: ADD if the attribute is currently
// absent, REPLACE if present with a different single value, DELETE if the
// new value is empty and the attribute is currently present, otherwise a
// no-op. It also rolls the fetch record forward so later phases in the same
// request observe the post-write state.
func applyScalarWrite(fetch *Fetch, modlist directory.ModList, attr, value string) {
	current, hadValue := fetch.Values[attr]

	switch {
	case value == "":
		if hadValue {
			modlist[attr] = append(modlist[attr], directory.ModChange{Op: directory.ModDelete})
		}
		delete(fetch.Values, attr)
	case hadValue:
		if len(current) != 1 || current[0] != value {
			modlist[attr] = append(modlist[attr], directory.ModChange{Op: directory.ModReplace, Values: []string{value}})
		}
		fetch.Values[attr] = []string{value}
	default:
		modlist[attr] = append(modlist[attr], directory.ModChange{Op: directory.ModAdd, Values: []string{value}})
		fetch.Values[attr] = []string{value}
	}
}

// scalarValue reads the single current value of attr out of a fetch record,
// returning "" if absent or empty.
func scalarValue(fetch *Fetch, attr string) string {
	values := fetch.Values[attr]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
