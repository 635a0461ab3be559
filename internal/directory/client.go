/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/sapcc/go-bits/logg"
)

// ClientOptions configures the long-lived service connection.
type ClientOptions struct {
	ServerURI    string
	BindDN       string
	BindPassword string
	Timeout      time.Duration
}

// Client is the production Gateway: a process-global, mutex-guarded service
// connection plus short-lived per-attempt connections for Bind, redialing
// with exponential backoff on connection loss. This system does not keep an
// in-memory mirror of the directory, so there is no reconciliation loop
// here, only a guarded handle.
type Client struct {
	opts ClientOptions

	mu   sync.Mutex
	conn *ldap.Conn
}

// NewClient constructs a Client without connecting yet; the first operation
// establishes the connection lazily.
func NewClient(opts ClientOptions) *Client {
	return &Client{opts: opts}
}

// getConn returns the current service connection, (re-)dialing with
// exponential backoff if necessary.
func (c *Client) getConn(ctx context.Context) (*ldap.Conn, error) {
	if c.conn != nil && !c.conn.IsClosing() {
		return c.conn, nil
	}

	var lastErr error
	delay := 125 * time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		conn, err := ldap.DialURL(c.opts.ServerURI)
		if err != nil {
			lastErr = err
			logg.Error("cannot connect to LDAP server %s: %s", c.opts.ServerURI, err.Error())
			continue
		}
		if err := conn.Bind(c.opts.BindDN, c.opts.BindPassword); err != nil {
			lastErr = err
			conn.Close()
			logg.Error("cannot bind to LDAP server %s as %s: %s", c.opts.ServerURI, c.opts.BindDN, err.Error())
			continue
		}

		c.conn = conn
		return conn, nil
	}
	return nil, fmt.Errorf("giving up connecting to LDAP server %s: %w", c.opts.ServerURI, lastErr)
}

func (c *Client) withConn(ctx context.Context, fn func(*ldap.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.getConn(ctx)
	if err != nil {
		return apierr.UpstreamDirectory("transport", err)
	}
	err = fn(conn)
	if err != nil && ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		// drop the connection so the next call redials
		conn.Close()
		c.conn = nil
	}
	return err
}

func (c *Client) Add(ctx context.Context, dn string, attrs AddList) error {
	return c.withConn(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewAddRequest(dn, nil)
		for name, values := range attrs {
			req.Attribute(name, values)
		}
		err := conn.Add(req)
		return translateError(err)
	})
}

func (c *Client) Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]Entry, error) {
	var result []Entry
	err := c.withConn(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			base, toLDAPScope(scope), ldap.NeverDerefAliases,
			0, int(c.opts.Timeout.Seconds()), false,
			filter, attrs, nil,
		)
		res, err := conn.Search(req)
		if err != nil {
			return translateError(err)
		}
		result = make([]Entry, len(res.Entries))
		for i, entry := range res.Entries {
			attrMap := make(map[string][]string, len(entry.Attributes))
			for _, a := range entry.Attributes {
				attrMap[a.Name] = a.Values
			}
			result[i] = Entry{DN: entry.DN, Attributes: attrMap}
		}
		return nil
	})
	return result, err
}

func (c *Client) Modify(ctx context.Context, dn string, modlist ModList) error {
	if len(modlist) == 0 {
		return nil
	}
	return c.withConn(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewModifyRequest(dn, nil)
		for attr, changes := range modlist {
			for _, change := range changes {
				switch change.Op {
				case ModAdd:
					req.Add(attr, change.Values)
				case ModDelete:
					req.Delete(attr, change.Values)
				case ModReplace:
					req.Replace(attr, change.Values)
				case ModIncrement:
					req.Increment(attr, 1)
				}
			}
		}
		err := conn.Modify(req)
		return translateError(err)
	})
}

func (c *Client) Delete(ctx context.Context, dn string) error {
	return c.withConn(ctx, func(conn *ldap.Conn) error {
		req := ldap.NewDelRequest(dn, nil)
		err := conn.Del(req)
		return translateError(err)
	})
}

// Bind performs a short-lived, separate-connection credential check; it
// never touches the shared service connection, and it always closes its own
// connection on every exit path.
func (c *Client) Bind(ctx context.Context, dn, password string) error {
	conn, err := ldap.DialURL(c.opts.ServerURI)
	if err != nil {
		return apierr.UpstreamDirectory("transport", err)
	}
	defer conn.Close()

	if err := conn.Bind(dn, password); err != nil {
		return translateError(err)
	}
	return nil
}

func toLDAPScope(s Scope) int {
	switch s {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOne:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var lerr *ldap.Error
	if e, ok := err.(*ldap.Error); ok {
		lerr = e
	}
	if lerr != nil {
		switch lerr.ResultCode {
		case ldap.LDAPResultNoSuchObject:
			return apierr.NotFound("no such directory entry")
		case ldap.LDAPResultEntryAlreadyExists:
			return apierr.Conflict("directory entry already exists")
		case ldap.LDAPResultInvalidCredentials:
			return apierr.Unauthorized("invalid credentials")
		case ldap.LDAPResultObjectClassViolation, ldap.LDAPResultConstraintViolation:
			return apierr.Validationf("directory rejected attribute values: %s", lerr.Error())
		}
	}
	return apierr.UpstreamDirectory("transport", err)
}
