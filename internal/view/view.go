/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package view implements the view engine: the per-entity-kind orchestrator
// that binds a base DN and an object-class filter to a set of projections
// (list, details, self, register, auth) built from the field and group
// libraries, and turns view operations into directory.Gateway calls.
package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/fields"
	"github.com/majewsky/ldap-api-server/internal/groups"
)

// View binds one entity kind (e.g. "user" or "group") to its base DN,
// object-class filter, primary-key attribute, permission set, and
// projections.
type View struct {
	gw directory.Gateway

	key             string
	dn              string
	title           string
	description     string
	iconClasses     string
	primaryKey      string
	permissions     []string
	readPermissions []string
	objectClasses   []string
	autoCreate      directory.AddList

	classFilter string
	dnPrefix    string
	dnSuffix    string
	mailFilter  string

	list     *ListProjection
	details  *DetailsProjection
	self     *DetailsProjection
	register *DetailsProjection
	auth     *ListProjection
}

// HasSelf reports whether this view exposes a self-service projection.
func (v *View) HasSelf() bool { return v.self != nil }

// HasRegister reports whether this view exposes public self-registration.
func (v *View) HasRegister() bool { return v.register != nil }

// HasAuth reports whether this view exposes an auth projection.
func (v *View) HasAuth() bool { return v.auth != nil }

// Key returns the view's configuration key (e.g. "user").
func (v *View) Key() string { return v.key }

// PrimaryKeyField returns the attribute name used as this view's primary
// key (e.g. "uid").
func (v *View) PrimaryKeyField() string { return v.primaryKey }

// UserConfig renders the subset of this view's configuration a given
// principal is allowed to see, for the `GET /config` endpoint.
func (v *View) UserConfig(user Principal) map[string]any {
	doc := map[string]any{
		"key":             v.key,
		"primaryKey":      v.primaryKey,
		"permissions":     v.permissions,
		"readPermissions": v.readPermissions,
		"title":           v.title,
		"description":     v.description,
		"iconClasses":     v.iconClasses,
	}
	hasWrite := user.hasAny(v.permissions)
	hasRead := hasWrite || len(v.readPermissions) == 0 || user.hasAny(v.readPermissions)
	if v.list != nil && hasRead {
		doc["list"] = v.list.ConfigDoc()
	}
	if v.details != nil && hasWrite {
		doc["details"] = v.details.ConfigDoc()
	}
	if v.self != nil {
		doc["self"] = v.self.ConfigDoc()
	}
	if v.auth != nil {
		doc["auth"] = v.auth.ConfigDoc()
	}
	return doc
}

// PublicConfig renders the public, unauthenticated registration config, or
// nil if this view has no register projection.
func (v *View) PublicConfig() map[string]any {
	if v.register == nil {
		return nil
	}
	return map[string]any{
		"key":         v.key,
		"primaryKey":  v.primaryKey,
		"title":       v.title,
		"iconClasses": v.iconClasses,
		"description": v.description,
		"register":    v.register.ConfigDoc(),
	}
}

func (v *View) checkPermissions(user Principal, writing bool) error {
	if !writing {
		if len(v.readPermissions) == 0 {
			return nil
		}
		if user.hasAny(v.readPermissions) {
			return nil
		}
	}
	if user.hasAny(v.permissions) {
		return nil
	}
	return apierr.Forbidden("insufficient permissions")
}

// DN implements fields.ForeignView: it builds the DN for a primary key,
// failing only on a structurally invalid key.
func (v *View) DN(pk string) (string, error) {
	dn, ok := directory.TryBuildDN(v.primaryKey, pk, v.dn)
	if !ok {
		return "", apierr.Validationf("invalid value for %s", v.primaryKey)
	}
	return dn, nil
}

// TryDN implements fields.ForeignView.
func (v *View) TryDN(pk string) (string, bool) {
	return directory.TryBuildDN(v.primaryKey, pk, v.dn)
}

// TryPrimaryKey implements fields.ForeignView: it extracts the primary key
// from a DN if and only if that DN is an immediate child of this view's
// base DN keyed by this view's primary-key attribute.
func (v *View) TryPrimaryKey(dn string) (string, bool) {
	if !strings.HasPrefix(dn, v.dnPrefix) || !strings.HasSuffix(dn, v.dnSuffix) {
		return "", false
	}
	pk := dn[len(v.dnPrefix) : len(dn)-len(v.dnSuffix)]
	if strings.Contains(pk, "=") {
		return "", false
	}
	return pk, true
}

func (v *View) searchOne(ctx context.Context, dn string, attrs []string) (*fields.Fetch, error) {
	entries, err := v.gw.Search(ctx, dn, directory.ScopeBase, "(objectClass=*)", attrs)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if len(entries) == 0 {
		return nil, apierr.NotFound("entry not found")
	}
	return entryToFetch(entries[0]), nil
}

func entryToFetch(entry directory.Entry) *fields.Fetch {
	fetch := fields.NewFetch(entry.DN)
	for attr, values := range entry.Attributes {
		fetch.Values[attr] = append([]string(nil), values...)
	}
	return fetch
}

func translateNotFound(err error) error {
	if apiErr, ok := apierr.As(err); ok {
		return apiErr
	}
	return err
}

func fetchSet(fetches map[string]bool) []string {
	out := make([]string, 0, len(fetches))
	for attr := range fetches {
		out = append(out, attr)
	}
	return out
}

// GetList implements the `get_list` operation.
func (v *View) GetList(ctx context.Context, user Principal) ([]fields.Result, error) {
	if err := v.checkPermissions(user, false); err != nil {
		return nil, err
	}
	fetches := map[string]bool{}
	v.list.getFetch(fetches)
	entries, err := v.gw.Search(ctx, v.dn, directory.ScopeOne, v.classFilter, fetchSet(fetches))
	if err != nil {
		return nil, err
	}
	fetchList := make([]*fields.Fetch, len(entries))
	for i, entry := range entries {
		fetchList[i] = entryToFetch(entry)
	}
	return v.list.getAll(fetchList)
}

// GetListEntryPermitted implements fields.ForeignView: it looks up one
// entry through the list projection without any permission check, for use
// when a different view renders this entry as a foreign reference.
func (v *View) GetListEntryPermitted(pk string) (fields.Result, bool, error) {
	dn, ok := v.TryDN(pk)
	if !ok {
		return nil, false, nil
	}
	fetches := map[string]bool{}
	v.list.getFetch(fetches)
	fetch, err := v.searchOne(context.Background(), dn, fetchSet(fetches))
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.KindNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	res, err := v.list.get(fetch)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// GetListEntry implements the `get_list_entry` operation.
func (v *View) GetListEntry(ctx context.Context, user Principal, pk string) (fields.Result, error) {
	if err := v.checkPermissions(user, false); err != nil {
		return nil, err
	}
	return v.getListEntryUnchecked(ctx, pk)
}

func (v *View) getListEntryUnchecked(ctx context.Context, pk string) (fields.Result, error) {
	dn, err := v.DN(pk)
	if err != nil {
		return nil, err
	}
	fetches := map[string]bool{}
	v.list.getFetch(fetches)
	fetch, err := v.searchOne(ctx, dn, fetchSet(fetches))
	if err != nil {
		return nil, err
	}
	return v.list.get(fetch)
}

// GetSelfEntry implements the `get_self_entry` operation.
func (v *View) GetSelfEntry(ctx context.Context, user Principal) (fields.Result, error) {
	return v.getDetailsEntry(ctx, v.self, user.PrimaryKey)
}

// GetDetailEntry implements the `get_detail_entry` operation.
func (v *View) GetDetailEntry(ctx context.Context, user Principal, pk string) (fields.Result, error) {
	if err := v.checkPermissions(user, false); err != nil {
		return nil, err
	}
	return v.getDetailsEntry(ctx, v.details, pk)
}

// GetAuthEntry implements the `get_auth_entry` operation. It is used only
// internally by the auth subsystem and carries no permission check of its
// own.
func (v *View) GetAuthEntry(ctx context.Context, pk string) (fields.Result, error) {
	dn, err := v.DN(pk)
	if err != nil {
		return nil, err
	}
	fetches := map[string]bool{}
	v.auth.getFetch(fetches)
	fetch, err := v.searchOne(ctx, dn, fetchSet(fetches))
	if err != nil {
		return nil, err
	}
	return v.auth.get(fetch)
}

func (v *View) getDetailsEntry(ctx context.Context, proj *DetailsProjection, pk string) (fields.Result, error) {
	dn, err := v.DN(pk)
	if err != nil {
		return nil, err
	}
	fetches := map[string]bool{}
	proj.getFetch(fetches)
	fetch, err := v.searchOne(ctx, dn, fetchSet(fetches))
	if err != nil {
		return nil, err
	}
	return proj.get(fetch)
}

func extractPrimaryKey(assign map[string]groups.Assignment, primaryKeyField string) (string, bool) {
	for _, groupAssign := range assign {
		if raw, ok := groupAssign[primaryKeyField]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func (v *View) runCreate(ctx context.Context, proj *DetailsProjection, assign map[string]groups.Assignment) error {
	pk, ok := extractPrimaryKey(assign, v.primaryKey)
	if !ok {
		return apierr.WrapField(v.primaryKey, apierr.Validationf("missing primary key in assignments"))
	}
	dn, err := v.DN(pk)
	if err != nil {
		return err
	}
	addlist := directory.AddList{}
	for attr, values := range v.autoObjectClassList() {
		addlist[attr] = values
	}
	fetch := fields.NewFetch(dn)
	if err := proj.create(fetch, addlist, assign); err != nil {
		return err
	}
	if err := v.gw.Add(ctx, dn, addlist); err != nil {
		return err
	}
	fetch = fields.NewFetch(dn)
	return proj.setPost(fetch, assign, true)
}

func (v *View) autoObjectClassList() directory.AddList {
	return directory.AddList{"objectClass": append([]string(nil), v.objectClasses...)}
}

// CreateRegister implements the `create_register` operation. It is
// reachable without authentication and carries no permission check.
func (v *View) CreateRegister(ctx context.Context, assign map[string]groups.Assignment) error {
	if v.register == nil {
		return apierr.NotFound("view %s has no register projection", v.key)
	}
	return v.runCreate(ctx, v.register, assign)
}

// CreateDetail implements the `create_detail` operation.
func (v *View) CreateDetail(ctx context.Context, user Principal, assign map[string]groups.Assignment) error {
	if err := v.checkPermissions(user, true); err != nil {
		return err
	}
	return v.runCreate(ctx, v.details, assign)
}

func (v *View) runUpdate(ctx context.Context, proj *DetailsProjection, pk string, assign map[string]groups.Assignment) error {
	dn, err := v.DN(pk)
	if err != nil {
		return err
	}
	fetches := map[string]bool{}
	if err := proj.setFetch(fetches, assign); err != nil {
		return err
	}
	fetch, err := v.searchOne(ctx, dn, fetchSet(fetches))
	if err != nil {
		return err
	}
	modlist := directory.ModList{}
	if err := proj.set(fetch, modlist, assign); err != nil {
		return err
	}
	if len(modlist) > 0 {
		if err := v.gw.Modify(ctx, dn, modlist); err != nil {
			return err
		}
	}
	return proj.setPost(fetch, assign, false)
}

// UpdateSelf implements the `update_self` operation.
func (v *View) UpdateSelf(ctx context.Context, user Principal, assign map[string]groups.Assignment) error {
	return v.runUpdate(ctx, v.self, user.PrimaryKey, assign)
}

// UpdateDetails implements the `update_details` operation.
func (v *View) UpdateDetails(ctx context.Context, user Principal, pk string, assign map[string]groups.Assignment) error {
	if err := v.checkPermissions(user, true); err != nil {
		return err
	}
	return v.runUpdate(ctx, v.details, pk, assign)
}

// Delete implements the `delete` operation.
func (v *View) Delete(ctx context.Context, user Principal, pk string) error {
	if err := v.checkPermissions(user, true); err != nil {
		return err
	}
	dn, err := v.DN(pk)
	if err != nil {
		return err
	}
	return v.gw.Delete(ctx, dn)
}

// SaveForeignField implements fields.ForeignView: it applies a modlist to
// the entry identified by pk, as produced by another view's isMemberOf
// field or memberOf group.
func (v *View) SaveForeignField(pk string, modlist directory.ModList) error {
	if len(modlist) == 0 {
		return nil
	}
	dn, err := v.DN(pk)
	if err != nil {
		return err
	}
	return v.gw.Modify(context.Background(), dn, modlist)
}

// ResolvePrimaryKeyByMail implements the `resolve_primary_key_by_mail`
// operation, used by the mail auto-login flow.
func (v *View) ResolvePrimaryKeyByMail(ctx context.Context, mail string) (string, error) {
	if v.mailFilter == "" {
		return "", fmt.Errorf("view %s has no mail field in its auth projection", v.key)
	}
	filter := fmt.Sprintf(v.mailFilter, directory.EscapeFilterValue(mail))
	entries, err := v.gw.Search(ctx, v.dn, directory.ScopeOne, filter, []string{v.primaryKey})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", apierr.NotFound("no entry with that mail address")
	}
	values := entries[0].Attributes[v.primaryKey]
	if len(values) == 0 {
		return "", apierr.NotFound("no entry with that mail address")
	}
	return values[0], nil
}

// EnsureAutoCreated verifies this view's base DN exists, creating it from
// the configured autoCreate attribute set if it is missing and one was
// configured. It is called once at startup.
func (v *View) EnsureAutoCreated(ctx context.Context) error {
	_, err := v.gw.Search(ctx, v.dn, directory.ScopeBase, "(objectClass=*)", []string{"objectClass"})
	if err == nil {
		return nil
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindNotFound {
		return err
	}
	if v.autoCreate == nil {
		return err
	}
	if err := v.gw.Add(ctx, v.dn, v.autoCreate); err != nil {
		return err
	}
	_, err = v.gw.Search(ctx, v.dn, directory.ScopeBase, "(objectClass=*)", []string{"objectClass"})
	return err
}
