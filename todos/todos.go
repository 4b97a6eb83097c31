// Package todos is the todo domain on top of the data layer: paginated and
// per-owner list reads through the query cache, and mutations through the
// coordinator.
package todos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/apiclient"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/mutation"
	"github.com/unkn0wn-root/querycache/querykey"
	"github.com/unkn0wn-root/querycache/session"
)

// Resource is the API collection and the first component of every todo key.
const Resource = "todos"

type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Page is one page of the list, with the paginator metadata.
type Page struct {
	Items     []Todo        `json:"items"`
	Page      int           `json:"page"`
	PageSize  int           `json:"pageSize"`
	PageCount int           `json:"pageCount"`
	Total     int           `json:"total"`
	Sort      querykey.Sort `json:"sort"`
}

// Owned is the logged-in user's own todos.
type Owned struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Todos    []Todo `json:"todos"`
}

// Input is the editable part of a todo.
type Input struct {
	Title       string
	Description string
}

func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Description, validation.Length(0, 10000)),
	)
}

type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*apiclient.Response, error)
}

type Mutator interface {
	Create(ctx context.Context, resource string, payload any) (*apiclient.Response, error)
	Update(ctx context.Context, resource, id string, payload any) (*apiclient.Response, error)
	Remove(ctx context.Context, resource, id string) (*apiclient.Response, error)
}

var (
	_ Getter  = (*apiclient.Client)(nil)
	_ Mutator = (*mutation.Coordinator)(nil)
)

type Options struct {
	Client    Getter
	Mutations Mutator
	Sessions  session.Store
	Pages     querycache.QueryCache[Page]
	Owned     querycache.QueryCache[Owned]
}

type Service struct {
	client   Getter
	muts     Mutator
	sessions session.Store
	pages    querycache.QueryCache[Page]
	owned    querycache.QueryCache[Owned]
}

func New(opts Options) (*Service, error) {
	switch {
	case opts.Client == nil:
		return nil, fmt.Errorf("todos: client is required")
	case opts.Mutations == nil:
		return nil, fmt.Errorf("todos: mutation coordinator is required")
	case opts.Sessions == nil:
		return nil, fmt.Errorf("todos: session store is required")
	case opts.Pages == nil || opts.Owned == nil:
		return nil, fmt.Errorf("todos: query caches are required")
	}
	return &Service{
		client:   opts.Client,
		muts:     opts.Mutations,
		sessions: opts.Sessions,
		pages:    opts.Pages,
		owned:    opts.Owned,
	}, nil
}

// ListPage reads one page of all todos, sorted by creation time.
func (s *Service) ListPage(ctx context.Context, page, size int, sort querykey.Sort) (Page, error) {
	p := querykey.Params{Resource: Resource, Page: page, PageSize: size, Sort: sort}
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	// cached pages are only served to a logged-in caller
	if _, err := s.session(ctx); err != nil {
		return Page{}, err
	}
	return s.pages.Read(ctx, p.Key(), func(ctx context.Context) (Page, error) {
		resp, err := s.client.Get(ctx, "/"+Resource, p.Values())
		if err != nil {
			return Page{}, err
		}
		return decodePage(resp, p)
	})
}

// OwnedKey is the cache key of a user's own list.
func OwnedKey(userID int64) querykey.Key {
	return querykey.New(Resource, "owner", strconv.FormatInt(userID, 10))
}

// Mine reads the logged-in user's todos.
func (s *Service) Mine(ctx context.Context) (Owned, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return Owned{}, err
	}
	return s.owned.Read(ctx, OwnedKey(sess.UserID), func(ctx context.Context) (Owned, error) {
		resp, err := s.client.Get(ctx, "/users/me", url.Values{"populate": {Resource}})
		if err != nil {
			return Owned{}, err
		}
		var me struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Todos    []Todo `json:"todos"`
		}
		if err := resp.Decode(&me); err != nil {
			return Owned{}, err
		}
		return Owned{UserID: me.ID, Username: me.Username, Todos: me.Todos}, nil
	})
}

// Create posts a todo owned by the logged-in user.
func (s *Service) Create(ctx context.Context, in Input) (Todo, error) {
	if err := in.Validate(); err != nil {
		return Todo{}, errs.InvalidQueryParameter("todo", err)
	}
	sess, err := s.session(ctx)
	if err != nil {
		return Todo{}, err
	}
	payload := map[string]any{"data": map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"user":        []int64{sess.UserID},
	}}
	resp, err := s.muts.Create(ctx, Resource, payload)
	if err != nil {
		return Todo{}, err
	}
	return decodeOne(resp)
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (Todo, error) {
	if err := in.Validate(); err != nil {
		return Todo{}, errs.InvalidQueryParameter("todo", err)
	}
	payload := map[string]any{"data": map[string]any{
		"title":       in.Title,
		"description": in.Description,
	}}
	resp, err := s.muts.Update(ctx, Resource, strconv.FormatInt(id, 10), payload)
	if err != nil {
		return Todo{}, err
	}
	return decodeOne(resp)
}

func (s *Service) Remove(ctx context.Context, id int64) error {
	_, err := s.muts.Remove(ctx, Resource, strconv.FormatInt(id, 10))
	return err
}

func (s *Service) session(ctx context.Context) (session.Session, error) {
	sess, ok := s.sessions.Session(ctx)
	if !ok {
		return session.Session{}, errs.Unauthenticated("not logged in")
	}
	return sess, nil
}

// strapi list envelope
type listBody struct {
	Data []entity `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

type entity struct {
	ID         int64           `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

func (e entity) todo() (Todo, error) {
	var t Todo
	if len(e.Attributes) > 0 && string(e.Attributes) != "null" {
		if err := json.Unmarshal(e.Attributes, &t); err != nil {
			return Todo{}, fmt.Errorf("decode todo %d: %w", e.ID, err)
		}
	}
	t.ID = e.ID
	return t, nil
}

func decodePage(resp *apiclient.Response, p querykey.Params) (Page, error) {
	var body listBody
	if err := resp.Decode(&body); err != nil {
		return Page{}, err
	}
	out := Page{
		Items:     make([]Todo, 0, len(body.Data)),
		Page:      p.Page,
		PageSize:  p.PageSize,
		PageCount: body.Meta.Pagination.PageCount,
		Total:     body.Meta.Pagination.Total,
		Sort:      p.Sort,
	}
	for _, e := range body.Data {
		t, err := e.todo()
		if err != nil {
			return Page{}, err
		}
		out.Items = append(out.Items, t)
	}
	return out, nil
}

func decodeOne(resp *apiclient.Response) (Todo, error) {
	if resp == nil || len(resp.Body) == 0 {
		return Todo{}, nil
	}
	var body struct {
		Data entity `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return Todo{}, err
	}
	return body.Data.todo()
}
