/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package grammars contains explicit implementations of the two config-value
// grammars that config.go validates on every load (and every file-watch
// reload): LDAP suffixes and listen addresses. These are two of the hottest
// paths in config validation, and writing them as plain byte scanners avoids
// compiling a regexp.Regexp on every reload for patterns this small and
// fixed.
package grammars

import (
	"strings"
)

//TODO: reevaluate LDAPSuffixRegex against current DNS RFCs

const (
	// LDAPSuffixRegex is a regex for matching LDAP suffixes like `dc=example,dc=com`.
	//
	// This is only shown for documentation purposes here; use func IsLDAPSuffix instead.
	LDAPSuffixRegex = `^dc=[a-z0-9_-]+(?:,dc=[a-z0-9_-]+)*$`

	// ListenAddressRegex is a regex for matching listen addresses (pairs of IP
	// addresses and port numbers) like `1.2.3.4:55` or `[::1]:8000`. Note that
	// IP addresses and port numbers are not fully parsed; this is only a sanity
	// check to find absolutely invalid characters.
	//
	// This is only shown for documentation purposes here; use func IsListenAddress instead.
	ListenAddressRegex = `^(?:[0-9.]+|\[[0-9a-f:]+\]):[0-9]+$`
)

// IsLDAPSuffix returns whether the string matches LDAPSuffixRegex.
func IsLDAPSuffix(input string) bool {
	for _, field := range strings.Split(input, ",") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return false
		}
		if key != "dc" {
			return false
		}
		if len(value) == 0 {
			return false
		}
		if !checkEachByte([]byte(value), checkByteInDomainComponent) {
			return false
		}
	}
	return true
}

func checkByteInDomainComponent(idx, length int, b byte) bool {
	_ = length
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	default:
		return false
	}
}

// IsListenAddress returns whether the string matches ListenAddressRegex.
func IsListenAddress(input string) bool {
	sepIndex := strings.LastIndexByte(input, ':')
	if sepIndex == -1 {
		return false
	}
	ipAddressInput := []byte(input[0:sepIndex])
	portNumberInput := []byte(input[sepIndex+1:])
	if len(ipAddressInput) == 0 || len(portNumberInput) == 0 {
		return false
	}
	if !checkEachByte(portNumberInput, checkByteInPortNumber) {
		return false
	}
	if ipAddressInput[0] == '[' {
		if len(ipAddressInput) < 3 {
			return false
		}
		return checkEachByte(ipAddressInput, checkByteInIPv6Address)
	} else {
		return checkEachByte(ipAddressInput, checkByteInIPv4Address)
	}
}

func checkByteInIPv4Address(idx, length int, b byte) bool {
	_, _ = idx, length
	return (b >= '0' && b <= '9') || b == '.'
}

func checkByteInIPv6Address(idx, length int, b byte) bool {
	switch idx {
	case 0:
		return b == '['
	case length - 1:
		return b == ']'
	default:
		return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || b == ':'
	}
}

func checkByteInPortNumber(idx, length int, b byte) bool {
	_, _ = idx, length
	return b >= '0' && b <= '9'
}

// Helper function: Returns whether each byte in the input is accepted by `check`.
func checkEachByte(bytes []byte, check func(idx, length int, b byte) bool) bool {
	l := len(bytes)
	for idx, b := range bytes {
		if !check(idx, l, b) {
			return false
		}
	}
	return true
}
