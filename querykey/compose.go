package querykey

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/querycache/errs"
)

// Sort is the ordering direction of a list query.
type Sort string

const (
	Ascending  Sort = "ascending"
	Descending Sort = "descending"
)

// PageSizes are the accepted page sizes.
var PageSizes = []int{10, 50, 100}

// SortField is the attribute list queries are ordered by.
const SortField = "createdAt"

// ParseSort accepts the long form, the short form and the API token
// (ascending/asc/ASC, descending/desc/DESC).
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	}
	return "", errs.InvalidQueryParameter("sort", fmt.Errorf("unknown sort direction %q", s))
}

// API returns the token the server expects in sort=field:DIR.
func (s Sort) API() string {
	if s == Ascending {
		return "ASC"
	}
	return "DESC"
}

// Params are the inputs of a paginated, sorted list query.
type Params struct {
	Resource string
	Page     int
	PageSize int
	Sort     Sort
}

// Validate rejects out-of-range input. Nothing is clamped.
func (p Params) Validate() error {
	checks := []struct {
		field string
		value any
		rules []validation.Rule
	}{
		{"resource", p.Resource, []validation.Rule{validation.Required}},
		{"page", p.Page, []validation.Rule{validation.Required, validation.Min(1)}},
		{"pageSize", p.PageSize, []validation.Rule{validation.Required, validation.In(pageSizeValues()...)}},
		{"sort", p.Sort, []validation.Rule{validation.Required, validation.In(Ascending, Descending)}},
	}
	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			return errs.InvalidQueryParameter(c.field, err)
		}
	}
	return nil
}

// Key renders the parameters as [resource, page, pageSize, sort]. Call
// Validate first; Compose does both.
func (p Params) Key() Key {
	return Key{p.Resource, strconv.Itoa(p.Page), strconv.Itoa(p.PageSize), string(p.Sort)}
}

// Values renders the Strapi query string for the list endpoint.
func (p Params) Values() url.Values {
	v := url.Values{}
	v.Set("pagination[pageSize]", strconv.Itoa(p.PageSize))
	v.Set("pagination[page]", strconv.Itoa(p.Page))
	v.Set("sort", SortField+":"+p.Sort.API())
	return v
}

// Compose validates the parameters and derives their key. Same input, same
// key; distinct input, distinct key.
func Compose(resource string, page, pageSize int, sort Sort) (Key, error) {
	p := Params{Resource: resource, Page: page, PageSize: pageSize, Sort: sort}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p.Key(), nil
}

func pageSizeValues() []any {
	out := make([]any, len(PageSizes))
	for i, s := range PageSizes {
		out[i] = s
	}
	return out
}
