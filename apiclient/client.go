// Package apiclient is the authenticated request client for the Strapi-shaped
// REST API. Every call carries the current session's bearer token; a call made
// without a session fails with errs.ErrUnauthenticated before any network I/O.
//
// Failures are typed (see package errs): transport problems are
// errs.ErrNetworkFailure, non-2xx responses are *errs.HTTPError. Nothing is retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/session"
)

const (
	defaultTimeout = 15 * time.Second
	defaultMaxBody = 4 << 20
)

type Options struct {
	// Required
	BaseURL  string // e.g. "http://localhost:1337/api"
	Sessions session.Store

	HTTPClient   *http.Client      // nil => client with Timeout
	Timeout      time.Duration     // used only when HTTPClient is nil; 0 => 15s
	MaxBodyBytes int64             // responses larger than this fail; 0 => 4 MiB
	UserAgent    string            // optional
	Logger       querycache.Logger // nil => NopLogger
}

type Client struct {
	base     *url.URL
	sessions session.Store
	hc       *http.Client
	maxBody  int64
	ua       string
	log      querycache.Logger
}

// Request is one call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Anonymous bool // skip the session; only for login and registration
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func New(opts Options) (*Client, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("apiclient: session store is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", opts.BaseURL)
	}
	c := &Client{
		base:     base,
		sessions: opts.Sessions,
		hc:       opts.HTTPClient,
		maxBody:  opts.MaxBodyBytes,
		ua:       opts.UserAgent,
		log:      opts.Logger,
	}
	if c.hc == nil {
		t := opts.Timeout
		if t <= 0 {
			t = defaultTimeout
		}
		c.hc = &http.Client{Timeout: t}
	}
	if c.maxBody <= 0 {
		c.maxBody = defaultMaxBody
	}
	c.log = querycache.LoggerOrNop(c.log)
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Send(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Send performs r. A non-2xx status returns both the response and an *errs.HTTPError.
func (c *Client) Send(ctx context.Context, r Request) (*Response, error) {
	var token string
	if !r.Anonymous {
		sess, ok := c.sessions.Session(ctx)
		if !ok {
			return nil, errs.Unauthenticated("no session for " + r.Method + " " + r.Path)
		}
		token = sess.Token
	}

	op := r.Method + " " + r.Path
	req, err := c.build(ctx, r)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("request failed", querycache.Fields{"op": op, "err": err})
		return nil, errs.Network(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, errs.Network(op, fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, errs.Network(op, fmt.Errorf("response body exceeds %d bytes", c.maxBody))
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	c.log.Debug("request done", querycache.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &errs.HTTPError{
			Method: r.Method,
			Path:   r.Path,
			Status: resp.StatusCode,
			Detail: detail(body),
			Body:   body,
		}
	}
	return out, nil
}

func (c *Client) build(ctx context.Context, r Request) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	return req, nil
}

// detail extracts the server message from a Strapi error envelope:
// {"error": {"status": 400, "name": "...", "message": "..."}}.
func detail(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	if env.Error.Message != "" {
		return env.Error.Message
	}
	return env.Message
}
