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
)

// ListProjection is the flat kind of projection: an ordered set of fields
// applied directly over one or more fetched entries, with no nesting and no
// write support. It backs the `list` and `auth` slots of a view.
type ListProjection struct {
	fieldList []fields.Field
}

func newListProjection(fieldList []fields.Field) *ListProjection {
	return &ListProjection{fieldList: fieldList}
}

func (p *ListProjection) ConfigDoc() []map[string]any {
	docs := make([]map[string]any, len(p.fieldList))
	for i, f := range p.fieldList {
		docs[i] = f.ConfigDoc()
	}
	return docs
}

func (p *ListProjection) init(resolver fields.ViewResolver) error {
	siblings := make(map[string]fields.Field, len(p.fieldList))
	for _, f := range p.fieldList {
		siblings[f.Key()] = f
	}
	for _, f := range p.fieldList {
		if err := f.Init(resolver, siblings); err != nil {
			return err
		}
	}
	return nil
}

func (p *ListProjection) getFetch(fetches map[string]bool) {
	for _, f := range p.fieldList {
		f.GetFetch(fetches)
	}
}

// get renders one entry's worth of result.
func (p *ListProjection) get(fetch *fields.Fetch) (fields.Result, error) {
	res := fields.Result{}
	for _, f := range p.fieldList {
		if err := f.Get(fetch, res); err != nil {
			return nil, apierr.WrapField(f.Key(), err)
		}
	}
	return res, nil
}

// getAll renders a whole batch of fetched entries, as used for the `list`
// slot of a view.
func (p *ListProjection) getAll(fetches []*fields.Fetch) ([]fields.Result, error) {
	out := make([]fields.Result, 0, len(fetches))
	for _, fetch := range fetches {
		res, err := p.get(fetch)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// DetailsProjection is the nested kind of projection: an ordered set of
// groups, each independently gating its own presence in a write request by
// the group's key. It backs the `details`, `self`, and `register` slots.
type DetailsProjection struct {
	groupList []groups.Group
}

func newDetailsProjection(groupList []groups.Group) *DetailsProjection {
	return &DetailsProjection{groupList: groupList}
}

func (p *DetailsProjection) ConfigDoc() []map[string]any {
	docs := make([]map[string]any, len(p.groupList))
	for i, g := range p.groupList {
		docs[i] = g.ConfigDoc()
	}
	return docs
}

func (p *DetailsProjection) init(resolver fields.ViewResolver) error {
	for _, g := range p.groupList {
		if err := g.Init(resolver); err != nil {
			return err
		}
	}
	return nil
}

func (p *DetailsProjection) getFetch(fetches map[string]bool) {
	for _, g := range p.groupList {
		g.GetFetch(fetches)
	}
}

func (p *DetailsProjection) get(fetch *fields.Fetch) (fields.Result, error) {
	res := fields.Result{}
	for _, g := range p.groupList {
		val, err := g.Get(fetch)
		if err != nil {
			return nil, apierr.WrapField(g.Key(), err)
		}
		res[g.Key()] = val
	}
	return res, nil
}

func (p *DetailsProjection) setFetch(fetches map[string]bool, assign map[string]groups.Assignment) error {
	for _, g := range p.groupList {
		groupAssign, present := assign[g.Key()]
		if !present {
			continue
		}
		if err := g.SetFetch(fetches, groupAssign); err != nil {
			return apierr.WrapField(g.Key(), err)
		}
	}
	return nil
}

func (p *DetailsProjection) set(fetch *fields.Fetch, modlist directory.ModList, assign map[string]groups.Assignment) error {
	for _, g := range p.groupList {
		groupAssign, present := assign[g.Key()]
		if !present {
			continue
		}
		if err := g.Set(fetch, modlist, groupAssign); err != nil {
			return apierr.WrapField(g.Key(), err)
		}
	}
	return nil
}

func (p *DetailsProjection) create(fetch *fields.Fetch, addlist directory.AddList, assign map[string]groups.Assignment) error {
	for _, g := range p.groupList {
		groupAssign, present := assign[g.Key()]
		if !present {
			continue
		}
		if err := g.Create(fetch, addlist, groupAssign); err != nil {
			return apierr.WrapField(g.Key(), err)
		}
	}
	return nil
}

func (p *DetailsProjection) setPost(fetch *fields.Fetch, assign map[string]groups.Assignment, isNew bool) error {
	for _, g := range p.groupList {
		groupAssign, present := assign[g.Key()]
		if !present {
			continue
		}
		if err := g.SetPost(fetch, groupAssign, isNew); err != nil {
			return apierr.WrapField(g.Key(), err)
		}
	}
	return nil
}
