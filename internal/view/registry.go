/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"gopkg.in/yaml.v3"
)

// rawView is the YAML shape of one entry under the top-level `views` key.
// The five projection slots are kept as yaml.Node so their field/group
// order survives the decode (a Go map would not preserve it).
type rawView struct {
	DN              string    `yaml:"dn"`
	Title           string    `yaml:"title"`
	PrimaryKey      string    `yaml:"primaryKey"`
	Permissions     []string  `yaml:"permissions"`
	ReadPermissions []string  `yaml:"readPermissions"`
	ObjectClass     []string  `yaml:"objectClass"`
	AutoCreate      yaml.Node `yaml:"autoCreate"`
	Description     string    `yaml:"description"`
	IconClasses     string    `yaml:"iconClasses"`
	List            yaml.Node `yaml:"list"`
	Details         yaml.Node `yaml:"details"`
	Self            yaml.Node `yaml:"self"`
	Register        yaml.Node `yaml:"register"`
	Auth            yaml.Node `yaml:"auth"`
}

// Config is the top-level YAML shape this registry is built from.
type Config struct {
	BaseDN string    `yaml:"baseDN"`
	Views  yaml.Node `yaml:"views"`
}

// Registry holds every configured view, keyed by its configuration key, and
// implements fields.ViewResolver so that field/group Init phases can follow
// foreignView references across views.
type Registry struct {
	gw    directory.Gateway
	views map[string]*View
	order []string
}

var _ fields.ViewResolver = (*Registry)(nil)

// NewRegistry parses cfg into a fully-wired Registry: pass one decodes every
// view's projections and constructs its field/group trees; pass two resolves
// every foreignView reference now that every view exists.
func NewRegistry(gw directory.Gateway, cfg Config, deps fields.Deps) (*Registry, error) {
	keys, nodes, err := mapPairs(&cfg.Views)
	if err != nil {
		return nil, err
	}

	reg := &Registry{gw: gw, views: make(map[string]*View, len(keys)), order: keys}

	for i, key := range keys {
		v, err := buildView(gw, cfg.BaseDN, key, nodes[i], deps)
		if err != nil {
			return nil, err
		}
		reg.views[key] = v
	}

	for _, v := range reg.views {
		if err := v.list.init(reg); err != nil {
			return nil, apierr.Config("view %s: %s", v.key, err.Error())
		}
		if err := v.details.init(reg); err != nil {
			return nil, apierr.Config("view %s: %s", v.key, err.Error())
		}
		if v.self != nil {
			if err := v.self.init(reg); err != nil {
				return nil, apierr.Config("view %s: %s", v.key, err.Error())
			}
		}
		if v.register != nil {
			if err := v.register.init(reg); err != nil {
				return nil, apierr.Config("view %s: %s", v.key, err.Error())
			}
		}
		if v.auth != nil {
			if err := v.auth.init(reg); err != nil {
				return nil, apierr.Config("view %s: %s", v.key, err.Error())
			}
			v.mailFilter = buildMailFilter(v)
		}
	}

	return reg, nil
}

func buildView(gw directory.Gateway, baseDN, key string, node *yaml.Node, deps fields.Deps) (*View, error) {
	var raw rawView
	if err := node.Decode(&raw); err != nil {
		return nil, apierr.Config("view %s: %s", key, err.Error())
	}
	if raw.DN == "" || raw.PrimaryKey == "" || len(raw.ObjectClass) == 0 {
		return nil, apierr.Config("view %s: dn, primaryKey and objectClass are required", key)
	}

	listFields, err := decodeFieldList(&raw.List, deps)
	if err != nil {
		return nil, apierr.Config("view %s: list: %s", key, err.Error())
	}
	detailGroups, err := decodeGroupList(&raw.Details, deps)
	if err != nil {
		return nil, apierr.Config("view %s: details: %s", key, err.Error())
	}

	v := &View{
		gw:              gw,
		key:             key,
		dn:              raw.DN + "," + baseDN,
		title:           raw.Title,
		description:     raw.Description,
		iconClasses:     raw.IconClasses,
		primaryKey:      raw.PrimaryKey,
		permissions:     raw.Permissions,
		readPermissions: raw.ReadPermissions,
		objectClasses:   raw.ObjectClass,
		list:            newListProjection(listFields),
		details:         newDetailsProjection(detailGroups),
	}
	v.dnPrefix = v.primaryKey + "="
	v.dnSuffix = "," + v.dn
	v.classFilter = classFilter(raw.ObjectClass)

	if raw.AutoCreate.Kind != 0 {
		addList, err := decodeAddList(&raw.AutoCreate)
		if err != nil {
			return nil, apierr.Config("view %s: %s", key, err.Error())
		}
		v.autoCreate = addList
	}

	if raw.Self.Kind != 0 {
		selfGroups, err := decodeGroupList(&raw.Self, deps)
		if err != nil {
			return nil, apierr.Config("view %s: self: %s", key, err.Error())
		}
		v.self = newDetailsProjection(selfGroups)
	}
	if raw.Register.Kind != 0 {
		registerGroups, err := decodeGroupList(&raw.Register, deps)
		if err != nil {
			return nil, apierr.Config("view %s: register: %s", key, err.Error())
		}
		v.register = newDetailsProjection(registerGroups)
	}
	if raw.Auth.Kind != 0 {
		authFields, err := decodeFieldList(&raw.Auth, deps)
		if err != nil {
			return nil, apierr.Config("view %s: auth: %s", key, err.Error())
		}
		v.auth = newListProjection(authFields)
	}

	return v, nil
}

func classFilter(classes []string) string {
	var b strings.Builder
	b.WriteString("(&")
	for _, c := range classes {
		fmt.Fprintf(&b, "(objectClass=%s)", c)
	}
	b.WriteString(")")
	return b.String()
}

// buildMailFilter mirrors the original's best-effort derivation: if the
// auth projection declares exactly one fetched attribute under the key
// "mail", a filter template for resolving a primary key by mail address is
// prepared; otherwise mail-based lookup stays unavailable for this view.
func buildMailFilter(v *View) string {
	fetches := map[string]bool{}
	for _, f := range v.auth.fieldList {
		if f.Key() != "mail" {
			continue
		}
		f.GetFetch(fetches)
	}
	if len(fetches) != 1 {
		return ""
	}
	var mailAttr string
	for attr := range fetches {
		mailAttr = attr
	}
	return classFilterWithAttr(v.objectClasses, mailAttr)
}

func classFilterWithAttr(classes []string, attr string) string {
	var b strings.Builder
	b.WriteString("(&")
	for _, c := range classes {
		fmt.Fprintf(&b, "(objectClass=%s)", c)
	}
	fmt.Fprintf(&b, "(%s=%%s))", attr)
	return b.String()
}

// ResolveView implements fields.ViewResolver.
func (r *Registry) ResolveView(key string) (fields.ForeignView, error) {
	v, ok := r.views[key]
	if !ok {
		return nil, apierr.Config("unknown foreign view %q", key)
	}
	return v, nil
}

// View returns the configured view for key, or (nil, false) if unknown.
func (r *Registry) View(key string) (*View, bool) {
	v, ok := r.views[key]
	return v, ok
}

// Keys returns every configured view key, in declaration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// EnsureAutoCreated verifies every view's base DN, creating the ones that
// carry an autoCreate configuration and are missing. Called once at
// startup.
func (r *Registry) EnsureAutoCreated(ctx context.Context) error {
	for _, key := range r.order {
		if err := r.views[key].EnsureAutoCreated(ctx); err != nil {
			return fmt.Errorf("view %s: %w", key, err)
		}
	}
	return nil
}
