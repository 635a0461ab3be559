/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// EscapeRDNValue escapes a value for use on the right-hand side of an RDN
// (`attr=value`), e.g. when building a primary-key DN.
func EscapeRDNValue(value string) string {
	return ldap.EscapeDN(value)
}

// EscapeFilterValue escapes a value for use inside an LDAP search filter.
func EscapeFilterValue(value string) string {
	return ldap.EscapeFilter(value)
}

// TryBuildDN builds `{attr}={escape(value)},{baseDN}` and reports whether the
// value could be escaped at all: an empty value, or one that escapes to
// nothing usable, is rejected rather than silently producing a malformed RDN.
func TryBuildDN(attr, value, baseDN string) (string, bool) {
	if value == "" {
		return "", false
	}
	escaped := EscapeRDNValue(value)
	if escaped == "" {
		return "", false
	}
	return fmt.Sprintf("%s=%s,%s", attr, escaped, baseDN), true
}

// BuildDN is the infallible convenience wrapper used where the caller already
// knows the value is well-formed (e.g. it came out of a previous successful
// fetch).
func BuildDN(attr, value, baseDN string) string {
	dn, _ := TryBuildDN(attr, value, baseDN)
	return dn
}
