/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package directory

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

// FakeGateway is an in-memory Gateway double for tests, keyed by DN. It
// supports exactly the filter shapes this codebase ever generates:
// conjunctions of `(attr=value)` and `(attr=*)` terms.
type FakeGateway struct {
	entries map[string]Entry
	binds   map[string]string
}

// NewFakeGateway builds an empty in-memory directory.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{entries: map[string]Entry{}, binds: map[string]string{}}
}

// Seed inserts an entry directly, bypassing Add, for test setup.
func (g *FakeGateway) Seed(dn string, attrs map[string][]string) {
	g.entries[dn] = Entry{DN: dn, Attributes: cloneAttrs(attrs)}
}

// SeedBindPassword registers the plaintext password Bind should accept for
// dn, independent of any attribute stored on the entry.
func (g *FakeGateway) SeedBindPassword(dn, password string) {
	g.binds[dn] = password
}

func cloneAttrs(attrs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (g *FakeGateway) Add(ctx context.Context, dn string, attrs AddList) error {
	if _, exists := g.entries[dn]; exists {
		return apierr.Conflict("entry %s already exists", dn)
	}
	values := make(map[string][]string, len(attrs))
	for attr, vs := range attrs {
		values[attr] = append([]string(nil), vs...)
	}
	g.entries[dn] = Entry{DN: dn, Attributes: values}
	return nil
}

func (g *FakeGateway) Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]Entry, error) {
	matcher, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	var candidates []Entry
	switch scope {
	case ScopeBase:
		if e, ok := g.entries[base]; ok {
			candidates = []Entry{e}
		}
	case ScopeOne:
		for dn, e := range g.entries {
			if isImmediateChild(dn, base) {
				candidates = append(candidates, e)
			}
		}
	case ScopeSub:
		for dn, e := range g.entries {
			if dn == base || strings.HasSuffix(dn, ","+base) {
				candidates = append(candidates, e)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DN < candidates[j].DN })

	var result []Entry
	for _, e := range candidates {
		if !matcher(e) {
			continue
		}
		result = append(result, projectAttrs(e, attrs))
	}
	if len(result) == 0 && scope == ScopeBase {
		return nil, apierr.NotFound("no entry at %s", base)
	}
	return result, nil
}

func projectAttrs(e Entry, attrs []string) Entry {
	if len(attrs) == 0 {
		return Entry{DN: e.DN, Attributes: cloneAttrs(e.Attributes)}
	}
	out := make(map[string][]string, len(attrs))
	for _, a := range attrs {
		if v, ok := e.Attributes[a]; ok {
			out[a] = append([]string(nil), v...)
		}
	}
	return Entry{DN: e.DN, Attributes: out}
}

func isImmediateChild(dn, base string) bool {
	if !strings.HasSuffix(dn, ","+base) {
		return false
	}
	rdn := strings.TrimSuffix(dn, ","+base)
	return !strings.Contains(rdn, ",")
}

func (g *FakeGateway) Modify(ctx context.Context, dn string, modlist ModList) error {
	e, ok := g.entries[dn]
	if !ok {
		return apierr.NotFound("entry %s not found", dn)
	}
	for attr, changes := range modlist {
		for _, change := range changes {
			switch change.Op {
			case ModReplace:
				e.Attributes[attr] = append([]string(nil), change.Values...)
			case ModAdd:
				e.Attributes[attr] = appendMissing(e.Attributes[attr], change.Values)
			case ModDelete:
				if len(change.Values) == 0 {
					delete(e.Attributes, attr)
				} else {
					e.Attributes[attr] = removeAll(e.Attributes[attr], change.Values)
				}
			case ModIncrement:
				return apierr.Validationf("fake gateway: ModIncrement not supported")
			}
		}
	}
	g.entries[dn] = e
	return nil
}

func appendMissing(existing []string, add []string) []string {
	for _, v := range add {
		found := false
		for _, e := range existing {
			if e == v {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, v)
		}
	}
	return existing
}

func removeAll(existing []string, remove []string) []string {
	out := existing[:0]
	for _, e := range existing {
		drop := false
		for _, r := range remove {
			if e == r {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, e)
		}
	}
	return out
}

func (g *FakeGateway) Delete(ctx context.Context, dn string) error {
	if _, ok := g.entries[dn]; !ok {
		return apierr.NotFound("entry %s not found", dn)
	}
	delete(g.entries, dn)
	return nil
}

func (g *FakeGateway) Bind(ctx context.Context, dn, password string) error {
	want, ok := g.binds[dn]
	if !ok || want != password {
		return apierr.Unauthorized("invalid credentials")
	}
	return nil
}

var filterTermRx = regexp.MustCompile(`\(([^()=]+)=([^()]*)\)`)

// compileFilter understands exactly the conjunctions this codebase
// generates: `(&(term)(term)...)` where each term is `attr=value` or
// `attr=*`. It is not a general LDAP filter parser.
func compileFilter(filter string) (func(Entry) bool, error) {
	filter = strings.TrimSpace(filter)
	inner := filter
	if strings.HasPrefix(filter, "(&") && strings.HasSuffix(filter, ")") {
		inner = filter[2 : len(filter)-1]
	} else if strings.HasPrefix(filter, "(") && strings.HasSuffix(filter, ")") {
		inner = filter[1 : len(filter)-1]
	}

	matches := filterTermRx.FindAllStringSubmatch("("+inner+")", -1)
	if matches == nil {
		return nil, apierr.Validationf("fake gateway: cannot parse filter %q", filter)
	}

	type term struct {
		attr, value string
	}
	var terms []term
	for _, m := range matches {
		terms = append(terms, term{attr: m[1], value: m[2]})
	}

	return func(e Entry) bool {
		for _, t := range terms {
			values, ok := e.Attributes[t.attr]
			if !ok || len(values) == 0 {
				return false
			}
			if t.value == "*" {
				continue
			}
			found := false
			for _, v := range values {
				if v == t.value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, nil
}
