// Package mutation runs create/update/remove calls and, when the server
// confirms one, bumps the resource's version counter so every cached query for
// that resource reads as Stale. It never touches cache entries directly.
package mutation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/apiclient"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/versions"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// DefaultSuccessCode is what Strapi returns for create, update and delete.
const DefaultSuccessCode = http.StatusOK

// Sender is the part of the request client the coordinator needs.
type Sender interface {
	Send(ctx context.Context, r apiclient.Request) (*apiclient.Response, error)
}

var _ Sender = (*apiclient.Client)(nil)

type Options struct {
	// Required
	Client   Sender
	Versions versions.Store // the store the query caches read

	SuccessCodes map[string]int    // per resource; missing => DefaultSuccessCode
	Hooks        querycache.Hooks  // VersionBumpError is reported here
	Logger       querycache.Logger // nil => NopLogger
}

type Coordinator struct {
	client   Sender
	versions versions.Store
	codes    map[string]int
	hooks    querycache.Hooks
	log      querycache.Logger
}

func New(opts Options) (*Coordinator, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("mutation: client is required")
	}
	if opts.Versions == nil {
		return nil, fmt.Errorf("mutation: version store is required")
	}
	c := &Coordinator{
		client:   opts.Client,
		versions: opts.Versions,
		codes:    make(map[string]int, len(opts.SuccessCodes)),
		hooks:    opts.Hooks,
		log:      opts.Logger,
	}
	for r, code := range opts.SuccessCodes {
		c.codes[r] = code
	}
	if c.hooks == nil {
		c.hooks = querycache.NopHooks{}
	}
	c.log = querycache.LoggerOrNop(c.log)
	return c, nil
}

// Create sends POST /{resource}.
func (c *Coordinator) Create(ctx context.Context, resource string, payload any) (*apiclient.Response, error) {
	return c.do(ctx, OpCreate, http.MethodPost, resource, "", payload)
}

// Update sends PUT /{resource}/{id}.
func (c *Coordinator) Update(ctx context.Context, resource, id string, payload any) (*apiclient.Response, error) {
	return c.do(ctx, OpUpdate, http.MethodPut, resource, id, payload)
}

// Remove sends DELETE /{resource}/{id}.
func (c *Coordinator) Remove(ctx context.Context, resource, id string) (*apiclient.Response, error) {
	return c.do(ctx, OpRemove, http.MethodDelete, resource, id, nil)
}

func (c *Coordinator) do(ctx context.Context, op Op, method, resource, id string, payload any) (*apiclient.Response, error) {
	fail := func(err error) error {
		return &Error{Op: op, Resource: resource, ID: id, Payload: payload, Err: err}
	}

	if err := validation.Validate(resource, validation.Required, validation.By(noSlash)); err != nil {
		return nil, fail(errs.InvalidQueryParameter("resource", err))
	}
	path := "/" + resource
	if op != OpCreate {
		if err := validation.Validate(id, validation.Required); err != nil {
			return nil, fail(errs.InvalidQueryParameter("id", err))
		}
		path += "/" + url.PathEscape(id)
	}

	resp, err := c.client.Send(ctx, apiclient.Request{Method: method, Path: path, Body: payload})
	if err != nil {
		c.log.Debug("mutation failed", querycache.Fields{"op": string(op), "resource": resource, "id": id, "err": err})
		return resp, fail(err)
	}
	if want := c.successCode(resource); resp.Status != want {
		return resp, fail(&errs.HTTPError{
			Method: method,
			Path:   path,
			Status: resp.Status,
			Detail: fmt.Sprintf("expected status %d", want),
			Body:   resp.Body,
		})
	}

	// the server has committed; the bump must not be lost to the caller's cancellation
	v, err := c.versions.Bump(context.WithoutCancel(ctx), resource)
	if err != nil {
		c.hooks.VersionBumpError(resource, err)
		c.log.Error("version bump failed after committed mutation", querycache.Fields{
			"op": string(op), "resource": resource, "id": id, "err": err,
		})
		e := fail(err).(*Error)
		e.Committed = true
		return resp, e
	}
	c.log.Debug("mutation committed", querycache.Fields{"op": string(op), "resource": resource, "id": id, "version": v})
	return resp, nil
}

func (c *Coordinator) successCode(resource string) int {
	if code, ok := c.codes[resource]; ok {
		return code
	}
	return DefaultSuccessCode
}

func noSlash(v any) error {
	if s, _ := v.(string); strings.Contains(s, "/") {
		return fmt.Errorf("must be a single path segment")
	}
	return nil
}
